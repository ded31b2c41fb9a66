package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/visionkit/describe-client/pkg/ratelimit"
)

// Prometheus metrics for vision service calls.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_requests_total",
		Help: "Total vision service requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vision_request_duration_seconds",
		Help:    "Vision service request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_errors_total",
		Help: "Total vision service errors by class",
	}, []string{"class"})
)

const (
	submitEndpoint = "/v1/describe"
	jobsEndpoint   = "/v1/jobs/"
)

// Client is the HTTP client for the vision description service.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the vision description service.
	BaseURL string

	// APIKey for the Authorization header.
	APIKey string

	// User-Agent header sent with every request.
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Redis client for shared rate limit state. Optional; when nil the
	// client does not gate requests on the service error budget.
	Redis *redis.Client

	// HTTPTimeout bounds each individual HTTP call.
	HTTPTimeout time.Duration

	// Retry configuration for transient call failures.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		UserAgent:   "describe-client/0.1.0",
		HTTPTimeout: 30 * time.Second,
		Retry:       DefaultRetryConfig(),
	}
}

// New creates a new vision service client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = "describe-client/0.1.0"
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "vision-client").Logger()

	var tracker *ratelimit.Tracker
	if cfg.Redis != nil {
		tracker = ratelimit.NewTracker(cfg.Redis, logger)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		rateLimiter: tracker,
		config:      cfg,
		logger:      logger,
	}, nil
}

// EncodePayloads base64-encodes image payloads for the wire.
func EncodePayloads(payloads [][]byte) []string {
	encoded := make([]string, len(payloads))
	for i, p := range payloads {
		encoded[i] = base64.StdEncoding.EncodeToString(p)
	}
	return encoded
}

// Submit issues one describe call for a chunk of items and classifies
// the response. A non-nil error means the call itself failed (transport
// failure after retries or rate limit block); every service-level
// condition is expressed through the returned SubmitOutcome.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitOutcome, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return SubmitOutcome{}, fmt.Errorf("marshal submit request: %w", err)
	}

	c.logger.Debug().
		Str("role", req.Role).
		Int("items", len(req.Items)).
		Msg("Submitting describe request")

	status, body, err := c.do(ctx, http.MethodPost, submitEndpoint, c.config.BaseURL+submitEndpoint, payload)
	if err != nil {
		return SubmitOutcome{}, err
	}

	return ClassifySubmit(status, body), nil
}

// Poll queries the status of an async job and classifies the response.
func (c *Client) Poll(ctx context.Context, jobHandle string) (PollOutcome, error) {
	callURL := c.config.BaseURL + jobsEndpoint + url.PathEscape(jobHandle)

	status, body, err := c.do(ctx, http.MethodGet, jobsEndpoint, callURL, nil)
	if err != nil {
		return PollOutcome{}, err
	}

	return ClassifyPoll(status, body), nil
}

// do performs one HTTP call with rate limit gating and retry on
// transient failures. 4xx responses are returned to the caller for
// classification, not retried.
func (c *Client) do(ctx context.Context, method, endpoint, callURL string, payload []byte) (int, []byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Rate limit check failed")
			return 0, nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Msg("Request blocked by rate limiter")
			requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			return 0, nil, ErrRateLimited
		}
	}

	var status int
	var body []byte

	retryErr := retryWithBackoff(ctx, c.config.Retry, func() (ErrorClass, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, callURL, reqBody)
		if err != nil {
			return ErrorClassClient, fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return ErrorClassNetwork, err
		}
		defer resp.Body.Close()

		if c.rateLimiter != nil {
			if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
			}
		}

		requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return ErrorClassNetwork, fmt.Errorf("read response body: %w", err)
		}

		if class := classifyStatus(resp.StatusCode); class != "" && shouldRetry(class) {
			errorsTotal.WithLabelValues(string(class)).Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("Vision service call error")
			return class, &ServiceError{
				StatusCode: resp.StatusCode,
				ErrorClass: class,
				Message:    resp.Status,
			}
		}

		// 2xx and non-retriable 4xx go back to the caller for
		// classification against the response body.
		status = resp.StatusCode
		body = data
		return "", nil
	})

	if retryErr != nil {
		return 0, nil, retryErr
	}

	return status, body, nil
}

// classifyStatus categorizes an HTTP status code for retry decisions.
// Returns "" for success statuses.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 500:
		return ErrorClassServer
	case statusCode >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
