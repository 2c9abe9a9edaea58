// Package httputil holds the small HTTP helpers shared by the Home Assistant
// client and the API server: an injectable client, a scripted fake for tests
// and JSON response writers.
package httputil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds a single REST call when no client is supplied.
const DefaultTimeout = 10 * time.Second

// HTTPClient is the subset of *http.Client the device backends need.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StandardClient sends requests through a real *http.Client.
type StandardClient struct {
	*http.Client
}

// NewStandardClient wraps c. A nil c gets a fresh client with
// DefaultTimeout rather than http.DefaultClient, which never times out.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = &http.Client{Timeout: DefaultTimeout}
	}
	return &StandardClient{Client: c}
}

// Do sends req.
func (c *StandardClient) Do(req *http.Request) (*http.Response, error) {
	return c.Client.Do(req)
}

// MockResponse is one scripted reply of a MockHTTPClient.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    http.Header
	Error      error
}

// MockHTTPClient replays queued responses in order and keeps every request
// with its body. Once the queue is drained it answers 200 with an empty
// JSON array, which is what an idle Home Assistant returns for most list
// calls.
type MockHTTPClient struct {
	mu        sync.Mutex
	requests  []*http.Request
	bodies    [][]byte
	responses []MockResponse
	next      int
}

// NewMockHTTPClient returns an empty mock.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// AddResponse queues a reply with status code and body.
func (m *MockHTTPClient) AddResponse(statusCode int, body string) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, MockResponse{StatusCode: statusCode, Body: body})
	return m
}

// AddErrorResponse queues a transport error.
func (m *MockHTTPClient) AddErrorResponse(err error) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, MockResponse{Error: err})
	return m
}

// Do records req, draining its body, and returns the next queued reply.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("mock: read request body: %w", err)
		}
		body = b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, body)

	reply := MockResponse{StatusCode: http.StatusOK, Body: "[]"}
	if m.next < len(m.responses) {
		reply = m.responses[m.next]
		m.next++
	}
	if reply.Error != nil {
		return nil, reply.Error
	}
	header := reply.Headers
	if header == nil {
		header = http.Header{"Content-Type": []string{"application/json"}}
	}
	return &http.Response{
		StatusCode: reply.StatusCode,
		Status:     fmt.Sprintf("%d %s", reply.StatusCode, http.StatusText(reply.StatusCode)),
		Header:     header,
		Body:       io.NopCloser(bytes.NewBufferString(reply.Body)),
		Request:    req,
	}, nil
}

// GetRequest returns the nth recorded request, or nil.
func (m *MockHTTPClient) GetRequest(n int) *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 || n >= len(m.requests) {
		return nil
	}
	return m.requests[n]
}

// RequestBody returns the body sent with the nth request.
func (m *MockHTTPClient) RequestBody(n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 || n >= len(m.bodies) {
		return nil
	}
	return m.bodies[n]
}

// RequestCount is the number of requests seen so far.
func (m *MockHTTPClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Pending is the number of queued replies not yet handed out.
func (m *MockHTTPClient) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.responses) - m.next
}
