package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// HTTPClient abstracts outbound HTTP calls for testability. Use
// http.DefaultClient in production; MockHTTPClient in tests.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// MockHTTPClient provides a testable HTTP client implementation. Canned
// responses are returned in order; once exhausted, DefaultError (or a
// 404) is returned.
type MockHTTPClient struct {
	mu           sync.Mutex
	Requests     []*http.Request
	responses    []mockResponse
	responseIdx  int
	DefaultError error
}

type mockResponse struct {
	status int
	body   string
}

// NewMockHTTPClient creates an empty MockHTTPClient.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// AddResponse queues a canned response with the given status and body.
func (m *MockHTTPClient) AddResponse(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{status: status, body: body})
}

// RequestCount returns the number of requests seen so far.
func (m *MockHTTPClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// Do records the request and returns the next canned response.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if m.DefaultError != nil && m.responseIdx >= len(m.responses) {
		return nil, m.DefaultError
	}

	if m.responseIdx >= len(m.responses) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Request:    req,
		}, nil
	}

	resp := m.responses[m.responseIdx]
	m.responseIdx++
	return &http.Response{
		StatusCode: resp.status,
		Body:       io.NopCloser(bytes.NewBufferString(resp.body)),
		Request:    req,
	}, nil
}
