// Package client provides the Jikan HTTP client: request pacing, shared
// throttle tracking and bounded retries hidden behind a single Fetch call.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/jikan-catalog/pkg/metrics"
	"github.com/Sternrassler/jikan-catalog/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Jikan v4 API.
const DefaultBaseURL = "https://api.jikan.moe/v4"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 16 << 20

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jikan_requests_total",
		Help: "Total Jikan requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jikan_request_duration_seconds",
		Help:    "Logical fetch duration in seconds by endpoint, retries included",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jikan_errors_total",
		Help: "Total failed Jikan attempts by class",
	}, []string{"class"})
)

// Fetcher is anything that can perform a logical GET against the API.
type Fetcher interface {
	Get(ctx context.Context, endpoint string, params Params) ([]byte, error)
}

// Client is the Jikan client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	throttle   *ratelimit.Tracker
	policy     RetryPolicy
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, without trailing slash.
	BaseURL string

	// UserAgent sent with every request.
	UserAgent string

	// Timeout for a single HTTP attempt.
	Timeout time.Duration

	// MaxRetries is the default retry budget used by Get.
	MaxRetries int

	// Retry timing
	RateLimitBackoff time.Duration
	MaxBackoff       time.Duration
	TransientDelay   time.Duration
	JitterFraction   float64

	// Local pacing (token bucket)
	RequestsPerSecond float64
	Burst             int

	// Redis shares throttle state between processes. Optional.
	Redis *redis.Client
}

// DefaultConfig returns a configuration matching Jikan's published limits.
// redisClient may be nil.
func DefaultConfig(redisClient *redis.Client, userAgent string) Config {
	policy := DefaultRetryPolicy()
	return Config{
		BaseURL:           DefaultBaseURL,
		UserAgent:         userAgent,
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		RateLimitBackoff:  policy.RateLimitBackoff,
		MaxBackoff:        policy.MaxBackoff,
		TransientDelay:    policy.TransientDelay,
		JitterFraction:    policy.JitterFraction,
		RequestsPerSecond: 3,
		Burst:             3,
		Redis:             redisClient,
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests_per_second must be > 0 (got %v)", cfg.RequestsPerSecond)
	}

	if cfg.Burst < 1 {
		return nil, fmt.Errorf("burst must be >= 1 (got %d)", cfg.Burst)
	}

	if cfg.JitterFraction < 0 || cfg.JitterFraction >= 1 {
		return nil, fmt.Errorf("jitter must be in [0,1) (got %v)", cfg.JitterFraction)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "jikan-client").Logger()

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		throttle:   ratelimit.NewTracker(cfg.Redis, logger),
		policy: RetryPolicy{
			RateLimitBackoff: cfg.RateLimitBackoff,
			MaxBackoff:       cfg.MaxBackoff,
			TransientDelay:   cfg.TransientDelay,
			JitterFraction:   cfg.JitterFraction,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// Get fetches endpoint with the configured default retry budget.
func (c *Client) Get(ctx context.Context, endpoint string, params Params) ([]byte, error) {
	return c.Fetch(ctx, endpoint, params, c.config.MaxRetries)
}

// Fetch performs one logical fetch of endpoint with params, retrying
// recoverable failures at most attemptsRemaining times. The body of the
// first successful response is returned unmodified. Any returned error is
// a terminal *FetchError.
func (c *Client) Fetch(ctx context.Context, endpoint string, params Params, attemptsRemaining int) ([]byte, error) {
	if attemptsRemaining < 0 {
		attemptsRemaining = 0
	}

	label := metrics.EndpointLabel(endpoint)
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(label).Observe(time.Since(startTime).Seconds())
	}()

	rawURL := c.buildURL(endpoint, params)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", rawURL).
		Int("attempts_remaining", attemptsRemaining).
		Msg("Executing Jikan request")

	return c.fetchWithRetry(ctx, endpoint, rawURL, attemptsRemaining)
}

// attempt performs a single HTTP request. Failures come back as *APIError,
// or wrap ErrContextCancelled when pacing was interrupted.
func (c *Client) attempt(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: throttle wait: %v", ErrContextCancelled, err)
		}
		// An unreachable throttle store only loses the shared cooldown.
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Throttle state unavailable - proceeding without shared cooldown")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter wait: %v", ErrContextCancelled, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &APIError{ErrorClass: ErrorClassClient, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	label := metrics.EndpointLabel(endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(label, "network_error").Inc()
		return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if readErr != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassNetwork,
				Message:    "read body",
				Err:        readErr,
			}
		}
		if !json.Valid(body) {
			errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassDecode,
				Message:    "response body is not valid JSON",
			}
		}
		return body, nil
	}

	class := classifyStatus(resp.StatusCode)
	errorsTotal.WithLabelValues(string(class)).Inc()

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: class,
		Message:    resp.Status,
	}
	switch class {
	case ErrorClassNotFound:
		apiErr.Err = ErrNotFound
	case ErrorClassRateLimit:
		apiErr.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}

	c.logger.Warn().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Str("error_class", string(class)).
		Msg("Jikan request error")

	return nil, apiErr
}

// classifyStatus maps a non-2xx status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status == http.StatusNotFound:
		return ErrorClassNotFound
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		// 5xx, and anything else the API is not expected to send.
		return ErrorClassServer
	}
}

func (c *Client) buildURL(endpoint string, params Params) string {
	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if q := params.Encode().Encode(); q != "" {
		u += "?" + q
	}
	return u
}

// FetchJSON fetches endpoint through f and decodes the body into a T.
func FetchJSON[T any](ctx context.Context, f Fetcher, endpoint string, params Params) (*T, error) {
	body, err := f.Get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &FetchError{
			Endpoint:   endpoint,
			Class:      ErrorClassDecode,
			StatusCode: http.StatusOK,
			Attempts:   1,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return &out, nil
}

// Throttle returns the tracker holding the shared cooldown state.
func (c *Client) Throttle() *ratelimit.Tracker {
	return c.throttle
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
