package vision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fastRetry keeps test retries near-instant.
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	cfg := DefaultConfig(serverURL, "test-key")
	cfg.Retry = fastRetry()

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("https://api.example.com", "key-123"),
			expectError: false,
		},
		{
			name: "missing base URL",
			config: Config{
				APIKey: "key-123",
			},
			expectError: true,
			errorMsg:    "base URL is required",
		},
		{
			name: "missing api key",
			config: Config{
				BaseURL: "https://api.example.com",
			},
			expectError: true,
			errorMsg:    "api key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Fatal("Expected client, got nil")
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	client, err := New(Config{BaseURL: "https://api.example.com", APIKey: "k"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if client.config.UserAgent == "" {
		t.Error("Expected default user agent")
	}
	if client.config.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", client.config.HTTPTimeout)
	}
	if client.config.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", client.config.Retry.MaxAttempts)
	}
	if client.rateLimiter != nil {
		t.Error("Expected no rate limiter without Redis")
	}
}

func TestSubmit_Sync(t *testing.T) {
	var gotAuth, gotAgent, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/describe" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		gotContentType = r.Header.Get("Content-Type")

		w.Write([]byte(`{"assets": [{"name": "a.jpg", "descriptions": [{"text": "a dog", "backend": "m1"}]}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome, err := client.Submit(context.Background(), SubmitRequest{
		Items:    EncodePayloads([][]byte{[]byte("img")}),
		Names:    []string{"a.jpg"},
		Role:     FieldAltText.Role(),
		Model:    "default",
		Language: "en",
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if outcome.Kind != SubmitSync {
		t.Fatalf("Kind = %v, want sync", outcome.Kind)
	}
	if len(outcome.Assets) != 1 || outcome.Assets[0].Descriptions[0].Text != "a dog" {
		t.Errorf("Unexpected assets: %+v", outcome.Assets)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAgent == "" {
		t.Error("Expected User-Agent header")
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}

func TestSubmit_JobHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job": "job-7"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome, err := client.Submit(context.Background(), SubmitRequest{Role: "caption-writer"})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if outcome.Kind != SubmitPolling || outcome.JobHandle != "job-7" {
		t.Errorf("Outcome = %+v, want polling job-7", outcome)
	}
}

func TestSubmit_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": "upstream busy"}`))
			return
		}
		w.Write([]byte(`{"job": "job-9"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome, err := client.Submit(context.Background(), SubmitRequest{})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if outcome.Kind != SubmitPolling {
		t.Errorf("Kind = %v, want polling after retries", outcome.Kind)
	}
	if calls.Load() != 3 {
		t.Errorf("Server saw %d calls, want 3", calls.Load())
	}
}

func TestSubmit_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid role"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome, err := client.Submit(context.Background(), SubmitRequest{})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if outcome.Kind != SubmitRemoteError {
		t.Errorf("Kind = %v, want remote error", outcome.Kind)
	}
	if outcome.Message != "invalid role" {
		t.Errorf("Message = %q", outcome.Message)
	}
	if calls.Load() != 1 {
		t.Errorf("Server saw %d calls, want 1 (no retry on 4xx)", calls.Load())
	}
}

func TestSubmit_RetryExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Submit(context.Background(), SubmitRequest{})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
}

func TestSubmit_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Refuse connections

	client := newTestClient(t, server.URL)

	_, err := client.Submit(context.Background(), SubmitRequest{})
	if err == nil {
		t.Fatal("Expected error for refused connection")
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
}

func TestPoll(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"assets": [{"name": "b.png", "descriptions": [{"text": "a cat", "backend": "m1"}]}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome, err := client.Poll(context.Background(), "job-3")
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if outcome.Kind != PollDone {
		t.Fatalf("Kind = %v, want done", outcome.Kind)
	}
	if gotPath != "/v1/jobs/job-3" {
		t.Errorf("Path = %q, want /v1/jobs/job-3", gotPath)
	}
}

func TestPoll_StillWorking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome, err := client.Poll(context.Background(), "job-3")
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if outcome.Kind != PollWorking {
		t.Errorf("Kind = %v, want working for 202", outcome.Kind)
	}
}
