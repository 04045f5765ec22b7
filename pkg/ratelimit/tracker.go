package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	throttleCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jikan_throttle_cooldowns_total",
		Help: "Total number of cooldowns recorded after a rate limited response",
	})

	throttleWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jikan_throttle_waits_total",
		Help: "Total number of requests held back by an active cooldown",
	})

	throttleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jikan_throttle_wait_seconds",
		Help:    "Time requests spent waiting for a cooldown to end",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// throttleCounterTTL is how long the throttle counter survives without new cooldowns.
const throttleCounterTTL = 10 * time.Minute

// recordThrottleScript extends the cooldown in one step so that concurrent
// writers can only ever push ThrottledUntil later. It returns the stored end.
var recordThrottleScript = redis.NewScript(`
local untilMs = ARGV[1]
local current = redis.call('GET', KEYS[1])
if current and tonumber(current) > tonumber(untilMs) then
	untilMs = current
end
redis.call('SET', KEYS[1], untilMs, 'PX', tonumber(untilMs) - tonumber(ARGV[2]))
redis.call('INCR', KEYS[2])
redis.call('PEXPIRE', KEYS[2], ARGV[3])
redis.call('SET', KEYS[3], ARGV[2], 'PX', ARGV[3])
return tonumber(untilMs)
`)

// Tracker records upstream cooldowns and gates requests on them.
// With a Redis client the state is shared across processes; without one
// it lives in memory and is shared by everything holding the same Tracker.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	local State
}

// NewTracker creates a tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
}

// Shared reports whether the state is backed by Redis.
func (t *Tracker) Shared() bool {
	return t.redis != nil
}

// GetState returns the current throttle state.
// A missing Redis state is reported as an idle (unthrottled) state.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		s := t.local
		return &s, nil
	}

	until, err := t.redis.Get(ctx, RedisKeyThrottledUntil).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get throttled until: %w", err)
	}

	throttles, err := t.redis.Get(ctx, RedisKeyThrottles).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get throttle count: %w", err)
	}

	lastUpdate, err := t.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	state := &State{Throttles: throttles}
	if until > 0 {
		state.ThrottledUntil = time.UnixMilli(until)
	}
	if lastUpdate > 0 {
		state.LastUpdate = time.UnixMilli(lastUpdate)
	}
	return state, nil
}

// RecordThrottle starts (or extends) a cooldown of d from now.
// An active cooldown that already ends later is left untouched.
func (t *Tracker) RecordThrottle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if d > MaxCooldown {
		d = MaxCooldown
	}

	now := t.now()
	until := now.Add(d)

	throttleCooldownsTotal.Inc()

	if t.redis == nil {
		t.mu.Lock()
		if until.After(t.local.ThrottledUntil) {
			t.local.ThrottledUntil = until
		}
		t.local.Throttles++
		t.local.LastUpdate = now
		t.mu.Unlock()
	} else {
		stored, err := recordThrottleScript.Run(ctx, t.redis,
			[]string{RedisKeyThrottledUntil, RedisKeyThrottles, RedisKeyLastUpdate},
			until.UnixMilli(), now.UnixMilli(), throttleCounterTTL.Milliseconds(),
		).Int64()
		if err != nil {
			return fmt.Errorf("store throttle state in redis: %w", err)
		}
		until = time.UnixMilli(stored)
	}

	t.logger.Warn().
		Dur("cooldown", d).
		Time("throttled_until", until).
		Bool("shared", t.Shared()).
		Msg("Upstream throttling recorded")

	return nil
}

// Wait blocks until no cooldown is active or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return fmt.Errorf("get throttle state: %w", err)
	}

	wait := state.Remaining(t.now())
	if wait <= 0 {
		return nil
	}

	throttleWaitsTotal.Inc()
	throttleWaitSeconds.Observe(wait.Seconds())
	t.logger.Debug().
		Dur("wait", wait).
		Msg("Cooldown active - holding request")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset clears the throttle state.
func (t *Tracker) Reset(ctx context.Context) error {
	if t.redis == nil {
		t.mu.Lock()
		t.local = State{}
		t.mu.Unlock()
		return nil
	}

	if err := t.redis.Del(ctx, RedisKeyThrottledUntil, RedisKeyThrottles, RedisKeyLastUpdate).Err(); err != nil {
		return fmt.Errorf("reset throttle state: %w", err)
	}
	return nil
}
