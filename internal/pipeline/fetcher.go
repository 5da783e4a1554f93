package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/iwacpipe/internal/cache"
	"github.com/ppiankov/iwacpipe/internal/logging"
	"github.com/ppiankov/iwacpipe/internal/model"
	"github.com/ppiankov/iwacpipe/internal/worker"
)

// PageFetcher retrieves every item of a filtered /items collection
type PageFetcher interface {
	FetchAllPages(ctx context.Context, params url.Values) ([]model.RemoteItem, error)
}

// Credentials authenticate against the Omeka S API. Missing values are
// not checked locally; the API decides what an anonymous caller sees.
type Credentials struct {
	Key      string
	Identity string
}

// ClientConfig configures a Client
type ClientConfig struct {
	BaseURL     string
	Credentials Credentials
	// Timeout bounds each page request, body included.
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	HTTPProxy    string
	HTTPSProxy   string
}

// Client talks to the /items endpoint. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials
	timeout    time.Duration
	userAgent  string
	maxBytes   int64
	cache      cache.Cache
	cacheTTL   time.Duration
	limiter    *worker.Limiter
	metrics    *Metrics
	logger     zerolog.Logger
}

// ClientOption customises a Client
type ClientOption func(*Client)

// WithCache serves pages from c when present and stores fetched pages.
func WithCache(c cache.Cache, ttl time.Duration) ClientOption {
	return func(cl *Client) {
		cl.cache = c
		cl.cacheTTL = ttl
	}
}

// WithLimiter throttles page requests
func WithLimiter(l *worker.Limiter) ClientOption {
	return func(cl *Client) {
		cl.limiter = l
	}
}

func WithMetrics(m *Metrics) ClientOption {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// WithHTTPClient replaces the default transport-configured client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = hc
	}
}

// NewClient creates a Client for the given API
func NewClient(cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 20
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: newTransport(cfg.HTTPProxy, cfg.HTTPSProxy),
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		creds:     cfg.Credentials,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		logger:    logging.NewLogger("fetcher"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics()
	}

	return c, nil
}

// FetchAllPages requests page 1, 2, ... of /items filtered by params until
// a page decodes to an empty collection, and returns the items of all
// earlier pages in server order. The first failing page aborts the call.
func (c *Client) FetchAllPages(ctx context.Context, params url.Values) ([]model.RemoteItem, error) {
	items := []model.RemoteItem{}
	for page := 1; ; page++ {
		batch, err := c.fetchPage(ctx, params, page)
		if err != nil {
			if !isCancellation(err) {
				c.metrics.Errors.WithLabelValues(string(classOf(err))).Inc()
			}
			return nil, err
		}
		if len(batch) == 0 {
			return items, nil
		}
		c.metrics.Pages.Inc()
		items = append(items, batch...)
	}
}

func (c *Client) pageURL(params url.Values, page int) string {
	q := make(url.Values, len(params)+1)
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Set("page", strconv.Itoa(page))
	return c.baseURL + "/items?" + q.Encode()
}

func (c *Client) fetchPage(ctx context.Context, params url.Values, page int) ([]model.RemoteItem, error) {
	pageURL := c.pageURL(params, page)
	itemSetID := params.Get("item_set_id")
	logger := c.logger.With().Str("item_set", itemSetID).Int("page", page).Logger()

	fail := func(class ErrorClass, status int, err error) *FetchError {
		return &FetchError{
			ItemSetID:  itemSetID,
			Page:       page,
			URL:        pageURL,
			StatusCode: status,
			Class:      class,
			Err:        err,
		}
	}

	var key string
	if c.cache != nil {
		key = cache.PageKey(pageURL, c.creds.Identity)
		if body, ok := c.cache.Get(key); ok {
			batch, err := decodePage(body)
			if err == nil {
				c.metrics.CacheHits.Inc()
				logger.Debug().Bool("cache_hit", true).Int("items", len(batch)).Msg("Page served from cache")
				return batch, nil
			}
			// Unreadable entry: drop it and fetch again
			_ = c.cache.Delete(key)
		}
		c.metrics.CacheMisses.Inc()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, pageURL); err != nil {
			return nil, fail(ErrorClassTransport, 0, fmt.Errorf("rate limiter: %w", err))
		}
	}

	body, status, err := c.get(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			// The run was cancelled, not this request
			return nil, fail(ErrorClassTransport, 0, fmt.Errorf("%w: %v", ctx.Err(), err))
		}
		return nil, fail(classifyTransportError(err), 0, err)
	}

	if status < 200 || status >= 300 {
		logger.Warn().Int("status_code", status).Msg("Unexpected API status")
		return nil, fail(ErrorClassStatus, status, fmt.Errorf("unexpected status %d: %s", status, snippet(body)))
	}

	batch, err := decodePage(body)
	if err != nil {
		return nil, fail(ErrorClassDecode, status, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(key, body, c.cacheTTL); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache page")
		}
	}

	logger.Debug().Int("items", len(batch)).Msg("Fetched page")
	return batch, nil
}

// get performs one request under its own timeout and returns the body
// read within that timeout.
func (c *Client) get(ctx context.Context, pageURL string) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	if c.creds.Key != "" {
		req.Header.Set("X-Api-Key", c.creds.Key)
	}
	if c.creds.Identity != "" {
		req.Header.Set("X-Api-Identity", c.creds.Identity)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Requests.WithLabelValues("error").Inc()
		return nil, 0, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	c.metrics.RequestDuration.Observe(time.Since(start).Seconds())
	c.metrics.Requests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	return body, resp.StatusCode, nil
}

// decodePage accepts a JSON array of item objects. null counts as an
// empty page; anything else (an error object, HTML) is a decode error.
func decodePage(body []byte) ([]model.RemoteItem, error) {
	var batch []model.RemoteItem
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return batch, nil
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func classOf(err error) ErrorClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ErrorClassTransport
}
