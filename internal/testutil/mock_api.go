// Package testutil provides testing utilities for page sources.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// Total modes understood by MockPagedAPI.
const (
	ModeTotalHeader = "header"
	ModePagesHeader = "pages"
	ModeEnvelope    = "envelope"
)

// MockPagedAPI is a configurable page-numbered JSON API for testing.
// Pages are addressed with ?page=N&per_page=M.
type MockPagedAPI struct {
	server *httptest.Server
	mu     sync.RWMutex
	items  []any
	mode   string
	delay  time.Duration

	// failures maps a page to the status codes returned on its next requests
	failures map[int][]int

	// Tracking
	RequestCount      int
	RequestedPages    []int
	LastRequestHeader http.Header
}

// NewMockPagedAPI creates a mock API serving items.
func NewMockPagedAPI(items []any) *MockPagedAPI {
	mock := &MockPagedAPI{
		items:    items,
		mode:     ModeTotalHeader,
		failures: make(map[int][]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// StringItems converts strings to the item slice NewMockPagedAPI expects.
func StringItems(values ...string) []any {
	items := make([]any, len(values))
	for i, v := range values {
		items[i] = v
	}
	return items
}

// URL returns the mock server URL.
func (m *MockPagedAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPagedAPI) Close() {
	m.server.Close()
}

// SetMode selects how the total is reported (ModeTotalHeader, ModePagesHeader, ModeEnvelope).
func (m *MockPagedAPI) SetMode(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

// SetDelay delays every response.
func (m *MockPagedAPI) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// FailPage makes the next len(statusCodes) requests for page answer with the
// given status codes.
func (m *MockPagedAPI) FailPage(page int, statusCodes ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[page] = append(m.failures[page], statusCodes...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPagedAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestedPages returns the page numbers requested so far, in order.
func (m *MockPagedAPI) GetRequestedPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.RequestedPages...)
}

func (m *MockPagedAPI) handle(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		http.Error(w, `{"error": "invalid page"}`, http.StatusBadRequest)
		return
	}
	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage < 1 {
		http.Error(w, `{"error": "invalid per_page"}`, http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.RequestCount++
	m.RequestedPages = append(m.RequestedPages, page)
	m.LastRequestHeader = r.Header.Clone()
	var failStatus int
	if pending := m.failures[page]; len(pending) > 0 {
		failStatus = pending[0]
		m.failures[page] = pending[1:]
	}
	mode, delay, items := m.mode, m.delay, m.items
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if failStatus != 0 {
		w.WriteHeader(failStatus)
		w.Write([]byte(`{"error": "injected failure"}`))
		return
	}

	start := (page - 1) * perPage
	if start > len(items) {
		start = len(items)
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	pageItems := items[start:end]

	var body any = pageItems
	switch mode {
	case ModePagesHeader:
		pages := (len(items) + perPage - 1) / perPage
		w.Header().Set("X-Pages", strconv.Itoa(pages))
	case ModeEnvelope:
		body = map[string]any{"items": pageItems, "total": len(items)}
	default:
		w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}
