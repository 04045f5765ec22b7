package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jikan_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jikan_retry_backoff_seconds",
		Help:    "Delay waited before a retry by error class",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jikan_retry_exhausted_total",
		Help: "Total number of fetches that exhausted their retry budget by error class",
	}, []string{"error_class"})
)

// RetryPolicy decides how long to wait before each retry.
//
// Rate limited responses back off exponentially: RateLimitBackoff doubled
// per retry already made (1s, 2s, 4s with defaults), capped at MaxBackoff.
// Every other recoverable failure waits the flat TransientDelay.
type RetryPolicy struct {
	RateLimitBackoff time.Duration
	MaxBackoff       time.Duration
	TransientDelay   time.Duration

	// JitterFraction spreads delays by ±fraction. 0 disables jitter.
	JitterFraction float64
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		RateLimitBackoff: 1 * time.Second,
		MaxBackoff:       30 * time.Second,
		TransientDelay:   1 * time.Second,
		JitterFraction:   0.2,
	}
}

// Backoff returns the un-jittered delay before retry number retryIndex
// (0 for the first retry). retryAfter is the upstream Retry-After hint,
// 0 when absent; it can lengthen a rate limit backoff but never past MaxBackoff.
func (p RetryPolicy) Backoff(class ErrorClass, retryIndex int, retryAfter time.Duration) time.Duration {
	if class != ErrorClassRateLimit {
		return p.TransientDelay
	}

	if retryIndex < 0 {
		retryIndex = 0
	}
	// Past 2^30 the multiplication would overflow; the cap applies long before.
	exp := math.Min(float64(retryIndex), 30)
	delay := time.Duration(float64(p.RateLimitBackoff) * math.Pow(2, exp))

	if retryAfter > delay {
		delay = retryAfter
	}
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		delay = p.MaxBackoff
	}
	return delay
}

// Delay returns Backoff with jitter applied.
func (p RetryPolicy) Delay(class ErrorClass, retryIndex int, retryAfter time.Duration) time.Duration {
	d := p.Backoff(class, retryIndex, retryAfter)
	if p.JitterFraction <= 0 || d <= 0 {
		return d
	}
	factor := 1 - p.JitterFraction + rand.Float64()*2*p.JitterFraction
	return time.Duration(float64(d) * factor)
}

// fetchWithRetry runs attempts against rawURL until one succeeds, a
// non-recoverable error occurs, or attemptsRemaining is used up. The budget
// is owned by this call alone; nothing is shared between fetches.
func (c *Client) fetchWithRetry(ctx context.Context, endpoint, rawURL string, attemptsRemaining int) ([]byte, error) {
	attempts := 0

	for retry := 0; ; retry++ {
		attempts++

		body, err := c.attempt(ctx, endpoint, rawURL)
		if err == nil {
			if retry > 0 {
				c.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempts).
					Msg("Request succeeded after retry")
			}
			return body, nil
		}

		class := ClassOf(err)
		var apiErr *APIError
		_ = errors.As(err, &apiErr)

		if errors.Is(err, ErrContextCancelled) || ctx.Err() != nil {
			if !errors.Is(err, ErrContextCancelled) {
				err = fmt.Errorf("%w: %w", ErrContextCancelled, err)
			}
			return nil, c.terminal(endpoint, class, apiErr, attempts, err)
		}

		if !shouldRetry(class) {
			return nil, c.terminal(endpoint, class, apiErr, attempts, err)
		}

		if attemptsRemaining <= 0 {
			retryExhaustedTotal.WithLabelValues(string(class)).Inc()
			c.logger.Error().
				Str("endpoint", endpoint).
				Str("error_class", string(class)).
				Int("attempts", attempts).
				Msg("Retry attempts exhausted")
			return nil, c.terminal(endpoint, class, apiErr, attempts, fmt.Errorf("%w: %w", ErrRetryExhausted, err))
		}

		var retryAfter time.Duration
		if apiErr != nil {
			retryAfter = apiErr.retryAfter
		}
		delay := c.policy.Delay(class, retry, retryAfter)

		if class == ErrorClassRateLimit {
			if terr := c.throttle.RecordThrottle(ctx, delay); terr != nil {
				c.logger.Warn().Err(terr).Msg("Failed to record throttle state")
			}
		}

		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(delay.Seconds())

		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("error_class", string(class)).
			Int("attempt", attempts).
			Int("attempts_remaining", attemptsRemaining).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if err := sleepContext(ctx, delay); err != nil {
			return nil, c.terminal(endpoint, class, apiErr, attempts, fmt.Errorf("%w: %w", ErrContextCancelled, err))
		}

		attemptsRemaining--
	}
}

func (c *Client) terminal(endpoint string, class ErrorClass, apiErr *APIError, attempts int, err error) *FetchError {
	fe := &FetchError{
		Endpoint: endpoint,
		Class:    class,
		Attempts: attempts,
		Err:      err,
	}
	if apiErr != nil {
		fe.StatusCode = apiErr.StatusCode
	}
	return fe
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
