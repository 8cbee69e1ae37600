// Package breaker implements the circuit breaker pattern for calls to
// external scan services.
//
// A breaker starts Closed and trips Open after a run of consecutive
// failures. Open circuits fail fast until a recovery timeout passes,
// then admit calls in HalfOpen; a run of consecutive successes closes
// the circuit again and any failure during recovery reopens it. Every
// breaker also caps admitted calls per wall-clock minute and bounds
// each call with a deadline.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/duration"
)

// State is the circuit position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

var stateNames = [...]string{"closed", "open", "half_open"}

func (s State) String() string {
	if s < Closed || s > HalfOpen {
		return "unknown"
	}
	return stateNames[s]
}

// Config holds circuit breaker tuning for one service.
type Config struct {
	// FailureThreshold is the consecutive-failure run that opens a
	// closed circuit.
	FailureThreshold int

	// SuccessThreshold is the consecutive-success run that closes a
	// half-open circuit.
	SuccessThreshold int

	// RecoveryTimeout is how long an open circuit rejects calls before
	// admitting probes.
	RecoveryTimeout time.Duration

	// CallTimeout bounds each guarded call. A timed-out call counts as
	// a failure.
	CallTimeout time.Duration

	// MaxCallsPerMinute caps admitted calls per wall-clock minute.
	MaxCallsPerMinute int
}

// DefaultConfig returns the standard thresholds for external services.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  defaults.BreakerFailures,
		SuccessThreshold:  defaults.BreakerSuccesses,
		RecoveryTimeout:   duration.BreakerRecovery,
		CallTimeout:       duration.BreakerCall,
		MaxCallsPerMinute: defaults.BreakerCallsPerMinute,
	}
}

// Breaker guards calls to one named service. One mutex serializes all
// state transitions; the guarded call itself runs unlocked.
type Breaker struct {
	name string
	cfg  Config

	mu          sync.Mutex
	state       State
	failures    int // consecutive
	successes   int // consecutive
	openedAt    time.Time
	minute      time.Time
	minuteCalls int

	calls             int64
	succeeded         int64
	failed            int64
	timeouts          int64
	rejectedOpen      int64
	rejectedThrottled int64
	timesOpened       int64
	lastFailure       time.Time
	lastSuccess       time.Time

	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithLogger routes breaker decisions to the given logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Breaker) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a breaker for the named service. Zero-value config fields
// fall back to DefaultConfig.
func New(name string, cfg Config, opts ...Option) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.MaxCallsPerMinute <= 0 {
		cfg.MaxCallsPerMinute = def.MaxCallsPerMinute
	}

	b := &Breaker{
		name:   name,
		cfg:    cfg,
		state:  Closed,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the service this breaker guards.
func (b *Breaker) Name() string { return b.name }

// State reports the effective circuit position. An open circuit whose
// cooldown has elapsed reads as HalfOpen even before the next call
// performs the transition.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.RecoveryTimeout {
		return HalfOpen
	}
	return b.state
}

// Call runs op under the breaker. Rejections return *OpenError or
// *ThrottledError without invoking op. The call runs with a deadline of
// CallTimeout; hitting it counts as a failure. A call abandoned by the
// caller's own context counts neither for nor against the service.
func (b *Breaker) Call(ctx context.Context, op func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.admit(); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	err := op(callCtx)

	switch {
	case err == nil:
		b.recordSuccess()
		return nil
	case ctx.Err() != nil:
		return err
	case errors.Is(err, context.DeadlineExceeded):
		b.recordTimeout()
		return fmt.Errorf("breaker: %q call timed out after %s: %w",
			b.name, b.cfg.CallTimeout, err)
	default:
		b.recordFailure()
		return err
	}
}

// admit applies the quota gate and then the state gate. Rejected calls
// never consume quota.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()

	minute := now.Truncate(time.Minute)
	if !minute.Equal(b.minute) {
		b.minute = minute
		b.minuteCalls = 0
	}
	if b.minuteCalls >= b.cfg.MaxCallsPerMinute {
		b.rejectedThrottled++
		b.logger.Warn("call quota exceeded",
			slog.String("breaker", b.name),
			slog.Int("limit", b.cfg.MaxCallsPerMinute))
		return &ThrottledError{
			Name:       b.name,
			Limit:      b.cfg.MaxCallsPerMinute,
			RetryAfter: minute.Add(time.Minute).Sub(now),
		}
	}

	if b.state == Open {
		if now.Sub(b.openedAt) < b.cfg.RecoveryTimeout {
			b.rejectedOpen++
			return &OpenError{
				Name:       b.name,
				RetryAfter: b.openedAt.Add(b.cfg.RecoveryTimeout).Sub(now),
			}
		}
		b.transitionLocked(HalfOpen)
	}

	b.minuteCalls++
	b.calls++
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.succeeded++
	b.failures = 0
	b.successes++
	b.lastSuccess = b.now()

	if b.state == HalfOpen && b.successes >= b.cfg.SuccessThreshold {
		b.transitionLocked(Closed)
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordFailureLocked()
}

func (b *Breaker) recordTimeout() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeouts++
	b.recordFailureLocked()
}

func (b *Breaker) recordFailureLocked() {
	b.failed++
	b.successes = 0
	b.failures++
	b.lastFailure = b.now()

	switch {
	case b.state == Closed && b.failures >= b.cfg.FailureThreshold:
		b.transitionLocked(Open)
	case b.state == HalfOpen:
		b.transitionLocked(Open)
	}
}

// transitionLocked moves the circuit and resets the counters the new
// state depends on.
func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	switch to {
	case Open:
		b.openedAt = b.now()
		b.timesOpened++
		b.logger.Error("circuit opened",
			slog.String("breaker", b.name),
			slog.Int("consecutive_failures", b.failures))
	case HalfOpen:
		b.successes = 0
		b.logger.Info("circuit half-open",
			slog.String("breaker", b.name))
	case Closed:
		b.failures = 0
		b.logger.Info("circuit closed",
			slog.String("breaker", b.name),
			slog.Int("consecutive_successes", b.successes))
	}
}

// ForceOpen trips the circuit by hand. Forcing an already-open circuit
// restarts the cooldown.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		b.openedAt = b.now()
	} else {
		b.transitionLocked(Open)
	}
	b.logger.Warn("circuit forced open", slog.String("breaker", b.name))
}

// ForceClose returns the circuit to normal operation by hand. Counters
// other than the failure run survive.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Closed {
		b.transitionLocked(Closed)
	}
	b.failures = 0
	b.logger.Warn("circuit forced closed", slog.String("breaker", b.name))
}

// Reset restores the breaker to its initial state and zeroes every
// counter.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.failures = 0
	b.successes = 0
	b.openedAt = time.Time{}
	b.minute = time.Time{}
	b.minuteCalls = 0
	b.calls = 0
	b.succeeded = 0
	b.failed = 0
	b.timeouts = 0
	b.rejectedOpen = 0
	b.rejectedThrottled = 0
	b.timesOpened = 0
	b.lastFailure = time.Time{}
	b.lastSuccess = time.Time{}

	b.logger.Info("circuit breaker reset", slog.String("breaker", b.name))
}

// Snapshot is a point-in-time view of breaker state.
type Snapshot struct {
	Name                 string
	State                State
	Calls                int64
	Succeeded            int64
	Failed               int64
	Timeouts             int64
	RejectedOpen         int64
	RejectedThrottled    int64
	TimesOpened          int64
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	CallsThisMinute      int
	SuccessRate          float64 // percent of admitted calls that succeeded
	RecoveryRemaining    time.Duration
	LastFailure          time.Time
	LastSuccess          time.Time
}

// Snapshot returns current breaker state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()

	state := b.state
	var remaining time.Duration
	if b.state == Open {
		remaining = b.openedAt.Add(b.cfg.RecoveryTimeout).Sub(now)
		if remaining <= 0 {
			remaining = 0
			state = HalfOpen
		}
	}

	var rate float64
	if b.calls > 0 {
		rate = float64(b.succeeded) / float64(b.calls) * 100
	}

	minuteCalls := b.minuteCalls
	if !now.Truncate(time.Minute).Equal(b.minute) {
		minuteCalls = 0
	}

	return Snapshot{
		Name:                 b.name,
		State:                state,
		Calls:                b.calls,
		Succeeded:            b.succeeded,
		Failed:               b.failed,
		Timeouts:             b.timeouts,
		RejectedOpen:         b.rejectedOpen,
		RejectedThrottled:    b.rejectedThrottled,
		TimesOpened:          b.timesOpened,
		ConsecutiveFailures:  b.failures,
		ConsecutiveSuccesses: b.successes,
		CallsThisMinute:      minuteCalls,
		SuccessRate:          rate,
		RecoveryRemaining:    remaining,
		LastFailure:          b.lastFailure,
		LastSuccess:          b.lastSuccess,
	}
}
