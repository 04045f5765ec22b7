package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	if p.RateLimitBackoff != 1*time.Second {
		t.Errorf("RateLimitBackoff = %v, want 1s", p.RateLimitBackoff)
	}
	if p.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", p.MaxBackoff)
	}
	if p.TransientDelay != 1*time.Second {
		t.Errorf("TransientDelay = %v, want 1s", p.TransientDelay)
	}
	if p.JitterFraction != 0.2 {
		t.Errorf("JitterFraction = %v, want 0.2", p.JitterFraction)
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		name       string
		class      ErrorClass
		retryIndex int
		retryAfter time.Duration
		want       time.Duration
	}{
		{"rate limit first retry", ErrorClassRateLimit, 0, 0, 1 * time.Second},
		{"rate limit second retry", ErrorClassRateLimit, 1, 0, 2 * time.Second},
		{"rate limit third retry", ErrorClassRateLimit, 2, 0, 4 * time.Second},
		{"rate limit capped", ErrorClassRateLimit, 10, 0, 30 * time.Second},
		{"huge index capped", ErrorClassRateLimit, 1000, 0, 30 * time.Second},
		{"negative index", ErrorClassRateLimit, -3, 0, 1 * time.Second},
		{"retry-after widens", ErrorClassRateLimit, 0, 5 * time.Second, 5 * time.Second},
		{"retry-after smaller ignored", ErrorClassRateLimit, 2, 1 * time.Second, 4 * time.Second},
		{"retry-after capped", ErrorClassRateLimit, 0, 5 * time.Minute, 30 * time.Second},
		{"server flat", ErrorClassServer, 2, 0, 1 * time.Second},
		{"network flat", ErrorClassNetwork, 0, 0, 1 * time.Second},
		{"decode flat", ErrorClassDecode, 5, 0, 1 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Backoff(tt.class, tt.retryIndex, tt.retryAfter); got != tt.want {
				t.Errorf("Backoff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryPolicy_DelayJitter(t *testing.T) {
	p := DefaultRetryPolicy()

	for i := 0; i < 200; i++ {
		d := p.Delay(ErrorClassRateLimit, 1, 0)
		if d < 1600*time.Millisecond || d > 2400*time.Millisecond {
			t.Fatalf("Delay() = %v, want within ±20%% of 2s", d)
		}
	}

	p.JitterFraction = 0
	if d := p.Delay(ErrorClassRateLimit, 1, 0); d != 2*time.Second {
		t.Errorf("Delay() without jitter = %v, want 2s", d)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepContext() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepContext(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleepContext() did not return promptly on cancellation")
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "7", 7 * time.Second},
		{"negative", "-1", 0},
		{"garbage", "soon", 0},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.value, now); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
