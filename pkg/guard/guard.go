// Package guard composes the resilience layers around calls to external
// scan services: rate limiter admission first, circuit breaker
// accounting second, and optionally a retry loop around the whole
// thing.
//
// Rejections and failures come back as *faults.Fault so callers and the
// retry controller see one taxonomy regardless of which layer said no.
package guard

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wraithscan/wraithscan/pkg/breaker"
	"github.com/wraithscan/wraithscan/pkg/faults"
	"github.com/wraithscan/wraithscan/pkg/ratelimit"
	"github.com/wraithscan/wraithscan/pkg/retry"
)

// Config bundles the per-service policies a Guard applies.
type Config struct {
	Limiter ratelimit.Config
	Breaker breaker.Config
	Retry   retry.Config
}

// DefaultConfig returns the standard policy set.
func DefaultConfig() Config {
	return Config{
		Limiter: ratelimit.DefaultConfig(),
		Breaker: breaker.DefaultConfig(),
		Retry:   retry.DefaultConfig(),
	}
}

// Guard runs operations against external services behind shared
// per-service limiters and breakers.
type Guard struct {
	limiters *ratelimit.Manager
	breakers *breaker.Manager
	retrier  *retry.Controller
	logger   *slog.Logger
}

// Option customizes a Guard.
type Option func(*Guard)

// WithLogger routes guard decisions, and those of the layers it owns,
// to the given logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// New builds a Guard from cfg.
func New(cfg Config, opts ...Option) *Guard {
	g := &Guard{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	g.limiters = ratelimit.NewManager(cfg.Limiter, ratelimit.WithLogger(g.logger))
	g.breakers = breaker.NewManager(cfg.Breaker, breaker.WithLogger(g.logger))
	g.retrier = retry.New(cfg.Retry, retry.WithLogger(g.logger))
	return g
}

// Call admits one operation against the named service. The rate limiter
// gates first, so a limited call never touches the breaker; the breaker
// gates second, so an open circuit never invokes op. Real outcomes, and
// only real outcomes, feed the adaptive limiter.
func (g *Guard) Call(ctx context.Context, service string, op retry.Op) (any, error) {
	lim := g.limiters.GetOrCreate(service)
	if err := lim.Allow(); err != nil {
		return nil, rejectionFault(faults.RateLimiting, service, err)
	}

	var out any
	err := g.breakers.GetOrCreate(service).Call(ctx, func(callCtx context.Context) error {
		v, opErr := op(callCtx)
		out = v
		return opErr
	})
	if err == nil {
		lim.RecordSuccess()
		return out, nil
	}

	switch {
	case errors.Is(err, breaker.ErrOpen):
		return nil, rejectionFault(faults.CircuitBreaker, service, err)
	case errors.Is(err, breaker.ErrThrottled):
		return nil, rejectionFault(faults.RateLimiting, service, err)
	case ctx.Err() != nil:
		// Caller abandoned the call. Not the service's fault.
		return nil, faults.Classify(err, service)
	default:
		lim.RecordFailure()
		return nil, faults.Classify(err, service)
	}
}

// CallWithRetry runs Call under the retry controller. Rate limited
// attempts wait out the rejection's retry-after hint; an open circuit
// classifies as non-retryable and stops the loop.
func (g *Guard) CallWithRetry(ctx context.Context, service string, op retry.Op) (any, error) {
	return g.retrier.Execute(ctx, service, func(ctx context.Context) (any, error) {
		return g.Call(ctx, service, op)
	})
}

// rejectionFault tags a gate rejection with its category and carries
// the gate's retry-after estimate into the fault.
func rejectionFault(cat faults.Category, service string, err error) *faults.Fault {
	f := faults.Wrap(cat, service, err)
	f.Service = service

	var le *ratelimit.LimitError
	var oe *breaker.OpenError
	var te *breaker.ThrottledError
	switch {
	case errors.As(err, &le):
		f.RetryAfter = le.RetryAfter
	case errors.As(err, &oe):
		f.RetryAfter = oe.RetryAfter
	case errors.As(err, &te):
		f.RetryAfter = te.RetryAfter
	}
	return f
}

// Limiters exposes the guard's rate limiter registry.
func (g *Guard) Limiters() *ratelimit.Manager { return g.limiters }

// Breakers exposes the guard's circuit breaker registry.
func (g *Guard) Breakers() *breaker.Manager { return g.breakers }

// Retrier exposes the guard's retry controller.
func (g *Guard) Retrier() *retry.Controller { return g.retrier }

// Snapshot is a combined view across all three layers.
type Snapshot struct {
	Limiters []ratelimit.Snapshot
	Breakers []breaker.Snapshot
	Retry    retry.Snapshot
}

// Snapshot returns current state across every service the guard has
// touched.
func (g *Guard) Snapshot() Snapshot {
	return Snapshot{
		Limiters: g.limiters.Snapshots(),
		Breakers: g.breakers.Snapshots(),
		Retry:    g.retrier.Snapshot(),
	}
}

// Reset restores every limiter and breaker the guard owns.
func (g *Guard) Reset() {
	g.limiters.ResetAll()
	g.breakers.ResetAll()
}
