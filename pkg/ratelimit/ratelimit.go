// Package ratelimit provides adaptive rate limiting for calls to
// external scan services.
//
// Two gates must both pass before a request is admitted: a sliding
// window bounding sustained rate over a trailing interval, and a token
// bucket bounding bursts. The window cap scales with observed service
// health, and repeated failures buy an escalating backoff period during
// which every acquisition is rejected outright.
//
// Acquire never blocks. Rejections carry a retry-after estimate so
// callers can schedule their own waits.
package ratelimit

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/wraithscan/wraithscan/pkg/backoff"
	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/duration"
)

// Config holds rate limiting configuration for one service.
type Config struct {
	// MaxRequests is the nominal window cap before adaptive scaling.
	MaxRequests int

	// Window is the trailing interval requests are counted over.
	Window time.Duration

	// BurstCapacity is the token bucket size.
	BurstCapacity float64

	// RefillRate is tokens restored per second.
	RefillRate float64

	// FailureThreshold is the consecutive-failure count that triggers
	// a backoff period.
	FailureThreshold int

	// Backoff shapes how backoff periods grow with repeated failures.
	Backoff backoff.Config
}

// DefaultConfig returns the standard per-service limits.
func DefaultConfig() Config {
	return Config{
		MaxRequests:      defaults.LimiterRequests,
		Window:           duration.LimiterWindow,
		BurstCapacity:    defaults.LimiterBurst,
		RefillRate:       defaults.LimiterRefillPerSec,
		FailureThreshold: defaults.LimiterFailures,
		Backoff:          backoff.DefaultConfig(),
	}
}

// tokenBucket implements burst control. Access is serialized by the
// owning Limiter's mutex.
type tokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(capacity, refillRate float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: now,
	}
}

// refill restores tokens for the elapsed interval, clamped to capacity.
// A non-positive interval leaves the balance untouched, so refills can
// never drain the bucket.
func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed.Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// take refills, then takes n tokens if available. All or nothing: a
// failed take leaves the balance unchanged.
func (tb *tokenBucket) take(n float64, now time.Time) bool {
	tb.refill(now)
	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}
	return false
}

// slidingWindow tracks request timestamps in a trailing interval.
// Access is serialized by the owning Limiter's mutex.
type slidingWindow struct {
	window time.Duration
	times  []time.Time
}

func newSlidingWindow(window time.Duration, hint int) *slidingWindow {
	return &slidingWindow{
		window: window,
		times:  make([]time.Time, 0, hint),
	}
}

// prune drops timestamps that have left the window.
func (sw *slidingWindow) prune(now time.Time) {
	cutoff := now.Add(-sw.window)
	keep := sw.times[:0]
	for _, t := range sw.times {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	sw.times = keep
}

// tryRecord admits n requests when the capped count allows, recording
// them at now.
func (sw *slidingWindow) tryRecord(n, capacity int, now time.Time) bool {
	sw.prune(now)
	if len(sw.times)+n > capacity {
		return false
	}
	for i := 0; i < n; i++ {
		sw.times = append(sw.times, now)
	}
	return true
}

// waitTime reports how long until the oldest recorded request leaves
// the window.
func (sw *slidingWindow) waitTime(now time.Time) time.Duration {
	if len(sw.times) == 0 {
		return 0
	}
	d := sw.times[0].Add(sw.window).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Limiter is an adaptive rate limiter for one named service. One mutex
// serializes all state transitions.
type Limiter struct {
	name string
	cfg  Config

	mu     sync.Mutex
	bucket *tokenBucket
	window *slidingWindow

	multiplier          float64
	consecutiveFailures int
	successStreak       int
	failureStreak       int
	backoffUntil        time.Time
	lastFailure         time.Time

	total             int64
	allowed           int64
	rejected          int64
	backoffsTriggered int64

	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithLogger routes limiter decisions to the given logger.
func WithLogger(l *slog.Logger) Option {
	return func(lim *Limiter) {
		if l != nil {
			lim.logger = l
		}
	}
}

// New creates a limiter for the named service. Zero-value config fields
// fall back to DefaultConfig.
func New(name string, cfg Config, opts ...Option) *Limiter {
	def := DefaultConfig()
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.BurstCapacity <= 0 {
		cfg.BurstCapacity = def.BurstCapacity
	}
	if cfg.RefillRate <= 0 {
		cfg.RefillRate = def.RefillRate
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = def.Backoff
	}

	l := &Limiter{
		name:       name,
		cfg:        cfg,
		multiplier: defaults.MultiplierCeiling,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.bucket = newTokenBucket(cfg.BurstCapacity, cfg.RefillRate, l.now())
	l.window = newSlidingWindow(cfg.Window, cfg.MaxRequests)
	return l
}

// Name returns the service this limiter guards.
func (l *Limiter) Name() string { return l.name }

// Allow is Acquire for a single request.
func (l *Limiter) Allow() error { return l.Acquire(1) }

// Acquire admits tokens requests or rejects with a *LimitError. The
// gates run in order: backoff period, sliding window, token bucket. A
// backoff rejection leaves window and bucket untouched; a window
// rejection counts as a failure for adaptive purposes; a bucket
// rejection does not touch the health streaks.
func (l *Limiter) Acquire(tokens int) error {
	if tokens <= 0 {
		tokens = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	if now.Before(l.backoffUntil) {
		l.rejected++
		return &LimitError{
			Name:       l.name,
			Scope:      ScopeBackoff,
			RetryAfter: l.backoffUntil.Sub(now),
		}
	}

	l.total++

	if !l.window.tryRecord(tokens, l.effectiveCapLocked(), now) {
		l.rejected++
		l.recordFailureLocked(now)
		return &LimitError{
			Name:       l.name,
			Scope:      ScopeWindow,
			RetryAfter: l.window.waitTime(now),
		}
	}

	if !l.bucket.take(float64(tokens), now) {
		l.rejected++
		return &LimitError{
			Name:       l.name,
			Scope:      ScopeBucket,
			RetryAfter: l.bucketRetryAfterLocked(),
		}
	}

	l.allowed++
	l.recordSuccessLocked()
	return nil
}

// RecordSuccess reports that a guarded operation succeeded, feeding the
// adaptive rate recovery.
func (l *Limiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordSuccessLocked()
}

// RecordFailure reports that a guarded operation failed, feeding the
// adaptive rate reduction and possibly triggering a backoff period.
func (l *Limiter) RecordFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordFailureLocked(l.now())
}

// effectiveCapLocked is the window cap after adaptive scaling.
func (l *Limiter) effectiveCapLocked() int {
	return int(float64(l.cfg.MaxRequests) * l.multiplier)
}

func (l *Limiter) recordSuccessLocked() {
	l.consecutiveFailures = 0
	l.failureStreak = 0
	l.successStreak++

	if l.successStreak > defaults.RaiseStreak && l.multiplier < defaults.MultiplierCeiling {
		l.multiplier = math.Min(defaults.MultiplierCeiling, l.multiplier+defaults.MultiplierRaise)
		l.logger.Debug("raising rate multiplier",
			slog.String("limiter", l.name),
			slog.Float64("multiplier", l.multiplier))
	}
}

func (l *Limiter) recordFailureLocked(now time.Time) {
	l.consecutiveFailures++
	l.successStreak = 0
	l.failureStreak++
	l.lastFailure = now

	if l.failureStreak > defaults.CutStreak {
		l.multiplier = math.Max(defaults.MultiplierFloor, l.multiplier-defaults.MultiplierCut)
		l.logger.Debug("cutting rate multiplier",
			slog.String("limiter", l.name),
			slog.Float64("multiplier", l.multiplier))
	}

	if l.consecutiveFailures >= l.cfg.FailureThreshold {
		l.triggerBackoffLocked(now)
	}
}

func (l *Limiter) triggerBackoffLocked(now time.Time) {
	attempt := l.consecutiveFailures
	if attempt > defaults.RetryMax {
		attempt = defaults.RetryMax
	}
	delay := backoff.Delay(l.cfg.Backoff, attempt)
	l.backoffUntil = now.Add(delay)
	l.backoffsTriggered++

	l.logger.Warn("rate limiter entering backoff",
		slog.String("limiter", l.name),
		slog.Duration("for", delay),
		slog.Int("consecutive_failures", l.consecutiveFailures))
}

// bucketRetryAfterLocked estimates the wait for one token to refill,
// plus up to 10% jitter so synchronized callers spread out.
func (l *Limiter) bucketRetryAfterLocked() time.Duration {
	const needed = 1.0
	var secs float64
	if available := l.bucket.tokens; needed > available {
		secs = (needed - available) / l.cfg.RefillRate
	} else {
		secs = needed / l.cfg.RefillRate
	}
	secs += secs * defaults.JitterFactor * rand.Float64()
	return time.Duration(secs * float64(time.Second))
}

// Snapshot is a point-in-time view of limiter state.
type Snapshot struct {
	Name                string
	Total               int64
	Allowed             int64
	Rejected            int64
	WindowCount         int
	EffectiveCap        int
	AdaptiveMultiplier  float64
	ConsecutiveFailures int
	SuccessStreak       int
	FailureStreak       int
	BackoffsTriggered   int64
	BackoffRemaining    time.Duration
	Tokens              float64
	TokenCapacity       float64
}

// Snapshot returns current limiter state.
func (l *Limiter) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	remaining := l.backoffUntil.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	l.window.prune(now)

	return Snapshot{
		Name:                l.name,
		Total:               l.total,
		Allowed:             l.allowed,
		Rejected:            l.rejected,
		WindowCount:         len(l.window.times),
		EffectiveCap:        l.effectiveCapLocked(),
		AdaptiveMultiplier:  l.multiplier,
		ConsecutiveFailures: l.consecutiveFailures,
		SuccessStreak:       l.successStreak,
		FailureStreak:       l.failureStreak,
		BackoffsTriggered:   l.backoffsTriggered,
		BackoffRemaining:    remaining,
		Tokens:              l.bucket.tokens,
		TokenCapacity:       l.bucket.capacity,
	}
}

// Reset restores the limiter to its initial state: full bucket, empty
// window, nominal rate, no backoff.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.bucket = newTokenBucket(l.cfg.BurstCapacity, l.cfg.RefillRate, now)
	l.window = newSlidingWindow(l.cfg.Window, l.cfg.MaxRequests)
	l.multiplier = defaults.MultiplierCeiling
	l.consecutiveFailures = 0
	l.successStreak = 0
	l.failureStreak = 0
	l.backoffUntil = time.Time{}
	l.total = 0
	l.allowed = 0
	l.rejected = 0
	l.backoffsTriggered = 0

	l.logger.Info("rate limiter reset", slog.String("limiter", l.name))
}
