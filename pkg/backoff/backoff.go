// Package backoff computes the wait between retry attempts.
//
// Delay is pure math: no sleeping, no clocks. Callers decide how to
// spend the wait, which keeps the strategies trivially testable and
// lets the rate limiter reuse them for failure cooldowns.
package backoff

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/duration"
)

// Strategy selects how delays grow across attempts.
type Strategy int

const (
	// Fixed waits the same delay every attempt.
	Fixed Strategy = iota

	// Linear grows the delay proportionally to the attempt number.
	Linear

	// Exponential multiplies the delay by Multiplier each attempt.
	Exponential

	// ExponentialJitter is Exponential with a random spread so
	// simultaneous failures do not retry in lockstep.
	ExponentialJitter

	// Fibonacci grows the delay along the Fibonacci sequence, a
	// middle ground between Linear and Exponential.
	Fibonacci
)

var strategyNames = map[Strategy]string{
	Fixed:             "fixed",
	Linear:            "linear",
	Exponential:       "exponential",
	ExponentialJitter: "exponential_jitter",
	Fibonacci:         "fibonacci",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy maps a profile string to its Strategy.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return Fixed, fmt.Errorf("backoff: unknown strategy %q", name)
}

// Config shapes the delay curve.
type Config struct {
	Strategy     Strategy
	Initial      time.Duration
	Max          time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultConfig returns the platform-wide delay curve.
func DefaultConfig() Config {
	return Config{
		Strategy:     ExponentialJitter,
		Initial:      duration.RetryInitial,
		Max:          duration.RetryCeiling,
		Multiplier:   defaults.BackoffMultiplier,
		JitterFactor: defaults.JitterFactor,
	}
}

// Delay computes the wait before the given attempt. Attempts are
// 1-based: attempt 1 is the wait after the first failure. Results are
// clamped to [0, cfg.Max].
func Delay(cfg Config, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := cfg.Initial.Seconds()
	multiplier := cfg.Multiplier
	if multiplier <= 0 {
		multiplier = defaults.BackoffMultiplier
	}

	var secs float64
	switch cfg.Strategy {
	case Linear:
		secs = initial * float64(attempt)
	case Exponential:
		secs = initial * math.Pow(multiplier, float64(attempt-1))
	case ExponentialJitter:
		secs = initial * math.Pow(multiplier, float64(attempt-1))
		secs += secs * cfg.JitterFactor * (rand.Float64() - 0.5)
	case Fibonacci:
		secs = initial * fibonacci(attempt)
	default:
		secs = initial
	}

	if maxSecs := cfg.Max.Seconds(); cfg.Max > 0 && secs > maxSecs {
		secs = maxSecs
	}
	if secs < 0 {
		secs = 0
	}
	return time.Duration(secs * float64(time.Second))
}

// fibonacci returns the nth value of the shifted sequence 1, 2, 3, 5, 8...
// The loop stops once the sum saturates at +Inf, so huge attempt
// numbers cost a bounded number of iterations.
func fibonacci(n int) float64 {
	if n <= 0 {
		return 0
	}
	a, b := 1.0, 2.0
	if n == 1 {
		return a
	}
	for i := 2; i < n && !math.IsInf(b, 1); i++ {
		a, b = b, a+b
	}
	return b
}
