// Package testutil provides testing utilities for the describe client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/visionkit/describe-client/pkg/vision"
)

// MockResponse defines the behavior of one mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// SubmitCall is one recorded describe submission.
type SubmitCall struct {
	Role     string   `json:"role"`
	Model    string   `json:"model"`
	Language string   `json:"language"`
	Prompt   string   `json:"prompt"`
	Names    []string `json:"names"`
	Items    []string `json:"items"`
}

// MockVision is a configurable mock vision description service.
type MockVision struct {
	server *httptest.Server
	mu     sync.Mutex

	submitFn  func(call SubmitCall) MockResponse
	pollSteps map[string][]MockResponse

	// Tracking
	SubmitCalls []SubmitCall
	PollCounts  map[string]int
}

// NewMockVision creates a new mock service. By default submissions
// answer synchronously with one placeholder description per item.
func NewMockVision() *MockVision {
	mock := &MockVision{
		pollSteps:  make(map[string][]MockResponse),
		PollCounts: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/describe", mock.handleSubmit)
	mux.HandleFunc("/v1/jobs/", mock.handlePoll)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockVision) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockVision) Close() {
	m.server.Close()
}

// Reset clears all tracking and scripted behavior.
func (m *MockVision) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubmitCalls = nil
	m.PollCounts = make(map[string]int)
	m.submitFn = nil
	m.pollSteps = make(map[string][]MockResponse)
}

// SetSubmitHandler scripts the submit endpoint. The handler receives
// the decoded submission and returns the response to serve.
func (m *MockVision) SetSubmitHandler(fn func(call SubmitCall) MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitFn = fn
}

// QueuePollResponses scripts the poll endpoint for one job handle. The
// responses are served in order; the final one repeats once exhausted.
func (m *MockVision) QueuePollResponses(jobHandle string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollSteps[jobHandle] = append(m.pollSteps[jobHandle], responses...)
}

// SubmitCount returns the number of submissions received.
func (m *MockVision) SubmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SubmitCalls)
}

func (m *MockVision) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var call SubmitCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		http.Error(w, `{"error": "bad request"}`, http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.SubmitCalls = append(m.SubmitCalls, call)
	fn := m.submitFn
	m.mu.Unlock()

	resp := m.defaultSubmitResponse(call)
	if fn != nil {
		resp = fn(call)
	}

	serve(w, resp)
}

func (m *MockVision) handlePoll(w http.ResponseWriter, r *http.Request) {
	jobHandle := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")

	m.mu.Lock()
	m.PollCounts[jobHandle]++
	steps := m.pollSteps[jobHandle]
	var resp MockResponse
	switch {
	case len(steps) == 0:
		resp = NewProcessingResponse()
	case len(steps) == 1:
		resp = steps[0]
	default:
		resp = steps[0]
		m.pollSteps[jobHandle] = steps[1:]
	}
	m.mu.Unlock()

	serve(w, resp)
}

// defaultSubmitResponse answers synchronously with one placeholder
// description per submitted item.
func (m *MockVision) defaultSubmitResponse(call SubmitCall) MockResponse {
	assets := make([]vision.AssetResult, len(call.Names))
	for i, name := range call.Names {
		assets[i] = Asset(name, fmt.Sprintf("description of %s", name), "mock")
	}
	return NewSyncResponse(assets...)
}

func serve(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// Asset builds one AssetResult with a single description.
func Asset(name, text, backend string) vision.AssetResult {
	return vision.AssetResult{
		Name:         name,
		Descriptions: []vision.Description{{Text: text, Backend: backend}},
	}
}

// NewSyncResponse creates a 200 response carrying completed assets.
func NewSyncResponse(assets ...vision.AssetResult) MockResponse {
	body, _ := json.Marshal(map[string]any{"assets": assets})
	return MockResponse{StatusCode: http.StatusOK, Body: string(body)}
}

// NewJobResponse creates a 200 response carrying a job handle.
func NewJobResponse(jobHandle string) MockResponse {
	body, _ := json.Marshal(map[string]string{"job": jobHandle})
	return MockResponse{StatusCode: http.StatusOK, Body: string(body)}
}

// NewRemoteErrorResponse creates a 200 response with an explicit error.
func NewRemoteErrorResponse(message string) MockResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return MockResponse{StatusCode: http.StatusOK, Body: string(body)}
}

// NewProcessingResponse creates a "still working" poll response.
func NewProcessingResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: `{"status": "processing"}`}
}

// NewFailedJobResponse creates a terminal poll failure response.
func NewFailedJobResponse(errs ...string) MockResponse {
	body, _ := json.Marshal(map[string]any{"errors": errs})
	return MockResponse{StatusCode: http.StatusOK, Body: string(body)}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "internal server error"}`,
	}
}

// NewRateLimitHeaders returns rate limit headers for a given budget.
func NewRateLimitHeaders(remaining, resetSeconds int) map[string]string {
	return map[string]string{
		"X-RateLimit-Remaining": fmt.Sprintf("%d", remaining),
		"X-RateLimit-Reset":     fmt.Sprintf("%d", resetSeconds),
	}
}
