// Package testutil provides testing utilities for the Jikan catalog.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockResponse defines one scripted response of the mock API.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockJikan is a configurable mock of the Jikan API for testing.
//
// Responses are scripted per path as a sequence: each request consumes the
// next response and the last one repeats once the sequence is used up.
type MockJikan struct {
	server *httptest.Server

	mu        sync.Mutex
	handlers  map[string]http.HandlerFunc
	sequences map[string][]MockResponse
	counts    map[string]int
	queries   map[string][]url.Values
	lastHdr   http.Header
}

// NewMockJikan creates and starts a mock server.
func NewMockJikan() *MockJikan {
	m := &MockJikan{
		handlers:  make(map[string]http.HandlerFunc),
		sequences: make(map[string][]MockResponse),
		counts:    make(map[string]int),
		queries:   make(map[string][]url.Values),
	}

	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

func (m *MockJikan) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	path := r.URL.Path
	m.counts[path]++
	m.queries[path] = append(m.queries[path], r.URL.Query())
	m.lastHdr = r.Header.Clone()

	handler, hasHandler := m.handlers[path]

	var resp MockResponse
	seq, hasSeq := m.sequences[path]
	if hasSeq && len(seq) > 0 {
		resp = seq[0]
		if len(seq) > 1 {
			m.sequences[path] = seq[1:]
		}
	}
	m.mu.Unlock()

	if hasHandler {
		handler(w, r)
		return
	}

	if !hasSeq {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":404,"type":"BadResponseException","message":"Resource does not exist"}`))
		return
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server URL, usable as a client base URL.
func (m *MockJikan) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockJikan) Close() {
	m.server.Close()
}

// SetHandler installs a custom handler for path. It takes precedence over sequences.
func (m *MockJikan) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponses scripts the response sequence for path.
func (m *MockJikan) SetResponses(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[path] = responses
}

// RequestCount returns how many requests hit path.
func (m *MockJikan) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[path]
}

// Queries returns the query strings received for path, in arrival order.
func (m *MockJikan) Queries(path string) []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]url.Values, len(m.queries[path]))
	copy(out, m.queries[path])
	return out
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockJikan) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHdr
}

// Reset clears counters, scripted sequences and handlers.
func (m *MockJikan) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = make(map[string]http.HandlerFunc)
	m.sequences = make(map[string][]MockResponse)
	m.counts = make(map[string]int)
	m.queries = make(map[string][]url.Values)
	m.lastHdr = nil
}

// OK returns a 200 response with body.
func OK(body string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// RateLimited returns a 429 response shaped like Jikan's.
func RateLimited() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"status":429,"type":"RateLimitException","message":"You are being rate-limited."}`,
	}
}

// ServerError returns a 500 response.
func ServerError() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"status":500,"type":"InternalException","message":"Something went wrong"}`,
	}
}

// NotFound returns a 404 response.
func NotFound() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"status":404,"type":"BadResponseException","message":"Resource does not exist"}`,
	}
}

// Item is the minimal record the helpers below render.
type Item struct {
	MalID int    `json:"mal_id"`
	Title string `json:"title,omitempty"`
	Name  string `json:"name,omitempty"`
}

// ListBody renders a list response with the given ids.
func ListBody(hasNext bool, lastPage int, ids ...int) string {
	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, Item{MalID: id, Title: fmt.Sprintf("Title %d", id)})
	}
	return mustJSON(map[string]any{
		"data": items,
		"pagination": map[string]any{
			"last_visible_page": lastPage,
			"has_next_page":     hasNext,
			"items": map[string]int{
				"count":    len(items),
				"per_page": 25,
			},
		},
	})
}

// ItemBody renders a detail response for id.
func ItemBody(id int, title string) string {
	return mustJSON(map[string]any{"data": Item{MalID: id, Title: title}})
}

// Range returns the ints from..to inclusive.
func Range(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
