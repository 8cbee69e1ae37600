// Package retry re-runs failed operations according to their fault
// classification.
//
// The controller owns the loop: classify the error, decide whether the
// category is transient, wait out the computed delay, and re-invoke.
// Provider-supplied retry-after hints take precedence over computed
// backoff. Wrap an error with Stop to abort retrying regardless of how
// it classifies.
//
// Usage:
//
//	ctrl := retry.New(retry.DefaultConfig())
//	result, err := ctrl.Execute(ctx, "web_scan", func(ctx context.Context) (any, error) {
//	    return probe(ctx, target)
//	})
package retry

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wraithscan/wraithscan/pkg/backoff"
	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/faults"
)

// Op is a unit of retryable work. Implementations must honor ctx.
type Op func(ctx context.Context) (any, error)

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts is the total number of invocations, first try
	// included.
	MaxAttempts int

	// Timeout bounds each individual attempt. Zero means no
	// per-attempt bound.
	Timeout time.Duration

	// Backoff shapes the wait between attempts.
	Backoff backoff.Config
}

// DefaultConfig returns the standard loop for guarded calls.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: defaults.RetryMedium,
		Backoff:     backoff.DefaultConfig(),
	}
}

// StopError wraps an error to signal that retrying must stop
// immediately, regardless of how the error would classify.
type StopError struct {
	Err error
}

func (e *StopError) Error() string { return e.Err.Error() }
func (e *StopError) Unwrap() error { return e.Err }

// Stop wraps err so the controller gives up without further attempts.
func Stop(err error) error { return &StopError{Err: err} }

// ShouldRetry decides whether a fault earns another attempt and how
// long to wait first. attempt is the 1-based number of invocations so
// far. An explicit retry-after hint on the fault wins over computed
// backoff, clamped to the configured ceiling.
func ShouldRetry(f *faults.Fault, cfg Config, attempt int) (bool, time.Duration) {
	if f == nil || !faults.Retryable(f) {
		return false, 0
	}
	if attempt >= cfg.MaxAttempts {
		return false, 0
	}
	if f.RetryAfter > 0 {
		d := f.RetryAfter
		if cfg.Backoff.Max > 0 && d > cfg.Backoff.Max {
			d = cfg.Backoff.Max
		}
		return true, d
	}
	return true, backoff.Delay(cfg.Backoff, attempt)
}

// sleeper lets tests intercept delays.
type sleeper interface {
	sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Controller runs retry loops and keeps counters across them.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	timer  sleeper

	attempts   atomic.Int64
	retries    atomic.Int64
	recoveries atomic.Int64
	exhausted  atomic.Int64
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger routes retry decisions to the given logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds a Controller. Zero-value config fields fall back to
// DefaultConfig.
func New(cfg Config, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff.Initial = def.Backoff.Initial
	}
	if cfg.Backoff.Max <= 0 {
		cfg.Backoff.Max = def.Backoff.Max
	}

	c := &Controller{
		cfg:    cfg,
		logger: slog.Default(),
		timer:  realSleeper{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs op until it succeeds, classifies as non-transient, or
// attempts run out. The returned error is always a *faults.Fault.
func (c *Controller) Execute(ctx context.Context, name string, op Op) (any, error) {
	var lastFault *faults.Fault

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, faults.Classify(err, name)
		}
		c.attempts.Add(1)

		result, err := c.invoke(ctx, op)
		if err == nil {
			if attempt > 1 {
				c.recoveries.Add(1)
			}
			return result, nil
		}

		var stop *StopError
		if errors.As(err, &stop) {
			return nil, faults.Classify(stop.Err, name)
		}

		lastFault = faults.Classify(err, name)
		ok, delay := ShouldRetry(lastFault, c.cfg, attempt)
		if !ok {
			if faults.Retryable(lastFault) {
				c.exhausted.Add(1)
				c.logger.Warn("retries exhausted",
					slog.String("op", name),
					slog.Int("attempts", attempt),
					slog.String("category", string(lastFault.Category)))
			}
			return nil, lastFault
		}

		c.retries.Add(1)
		c.logger.Debug("retrying operation",
			slog.String("op", name),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("category", string(lastFault.Category)))

		if err := c.timer.sleep(ctx, delay); err != nil {
			return nil, faults.Classify(err, name)
		}
	}
}

// invoke runs one attempt, bounded by the per-attempt timeout if set.
func (c *Controller) invoke(ctx context.Context, op Op) (any, error) {
	if c.cfg.Timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	return op(attemptCtx)
}

// Snapshot is a point-in-time view of controller counters.
type Snapshot struct {
	Attempts   int64
	Retries    int64
	Recoveries int64
	Exhausted  int64
}

// Snapshot returns current counters.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Attempts:   c.attempts.Load(),
		Retries:    c.retries.Load(),
		Recoveries: c.recoveries.Load(),
		Exhausted:  c.exhausted.Load(),
	}
}

// Do runs a one-off retry loop with cfg. Convenience for callers that
// do not need shared counters.
func Do(ctx context.Context, cfg Config, name string, op Op) (any, error) {
	return New(cfg).Execute(ctx, name, op)
}
