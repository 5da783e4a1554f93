package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorClass classifies why a page fetch failed
type ErrorClass string

const (
	// ErrorClassTransport covers connection and protocol failures.
	ErrorClassTransport ErrorClass = "transport"
	// ErrorClassTimeout is a request that exceeded its per-request timeout.
	ErrorClassTimeout ErrorClass = "timeout"
	// ErrorClassStatus is a non-2xx HTTP response.
	ErrorClassStatus ErrorClass = "status"
	// ErrorClassDecode is a body that is not a JSON array of items.
	ErrorClassDecode ErrorClass = "decode"
)

// FetchError is returned for any failed page request. None of them are
// retried; the run stops on the first one.
type FetchError struct {
	// ItemSetID is the partition being paginated.
	ItemSetID  string
	Page       int
	URL        string
	StatusCode int
	Class      ErrorClass
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("item set %s page %d: %s error (status %d): %v",
			e.ItemSetID, e.Page, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("item set %s page %d: %s error: %v", e.ItemSetID, e.Page, e.Class, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifyTransportError tells timeouts apart from other transport failures.
// Cancellation of the run is reported as transport so that
// worker.FirstError can recognise it through errors.Is.
func classifyTransportError(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	return ErrorClassTransport
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
