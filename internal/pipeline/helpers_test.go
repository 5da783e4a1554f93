package pipeline

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeOmeka serves /items from in-memory pages keyed by item_set_id.
// Page n of an item set is pages[id][n-1]; later pages are empty.
type fakeOmeka struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	pages    map[string][][]map[string]any
	fail     map[string]int // item set -> page that returns 500
	requests []string       // "itemSet:page"
	headers  []http.Header
	delay    time.Duration
}

func newFakeOmeka(t *testing.T) *fakeOmeka {
	t.Helper()
	f := &fakeOmeka{
		t:     t,
		pages: make(map[string][][]map[string]any),
		fail:  make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOmeka) URL() string {
	return f.server.URL + "/api"
}

func (f *fakeOmeka) addPage(itemSet string, items ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[itemSet] = append(f.pages[itemSet], items)
}

func (f *fakeOmeka) failAt(itemSet string, page int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[itemSet] = page
}

func (f *fakeOmeka) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeOmeka) headerLog() []http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]http.Header(nil), f.headers...)
}

func (f *fakeOmeka) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/items" {
		http.NotFound(w, r)
		return
	}

	itemSet := r.URL.Query().Get("item_set_id")
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		http.Error(w, "bad page", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, fmt.Sprintf("%s:%d", itemSet, page))
	f.headers = append(f.headers, r.Header.Clone())
	failPage := f.fail[itemSet]
	var items []map[string]any
	if page <= len(f.pages[itemSet]) {
		items = f.pages[itemSet][page-1]
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if failPage == page {
		http.Error(w, `{"errors":{"error":"boom"}}`, http.StatusInternalServerError)
		return
	}

	if items == nil {
		items = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

// newsItem builds an Omeka item as the API returns it
func newsItem(itemSet, date, publisher string, subjects ...map[string]any) map[string]any {
	item := map[string]any{
		"o:id":       1000,
		"o:item_set": []map[string]any{{"@id": "x", "o:id": mustAtoi(itemSet)}},
	}
	if date != "" {
		item["dcterms:date"] = []map[string]any{{"type": "literal", "@value": date}}
	}
	if publisher != "" {
		item["dcterms:publisher"] = []map[string]any{{"type": "resource", "display_title": publisher, "value_resource_id": 77}}
	}
	if len(subjects) > 0 {
		item["dcterms:subject"] = subjects
	}
	return item
}

func subject(title string, resourceID int) map[string]any {
	return map[string]any{
		"type":              "resource:item",
		"display_title":     title,
		"value_resource_id": resourceID,
	}
}

func categoryItem(id int, title string) map[string]any {
	return map[string]any{
		"o:id":          id,
		"dcterms:title": []map[string]any{{"type": "literal", "@value": title}},
	}
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic(err)
	}
	return n
}

func newTestClient(t *testing.T, baseURL string, opts ...ClientOption) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		BaseURL:     baseURL,
		Credentials: Credentials{Key: "test-key", Identity: "test-identity"},
		Timeout:     5 * time.Second,
		UserAgent:   "iwacpipe-test",
	}, opts...)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}
