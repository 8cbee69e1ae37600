package breaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrOpen matches fail-fast rejections from an open circuit.
// Callers should use errors.Is() to check for it.
var ErrOpen = errors.New("breaker: circuit open")

// ErrThrottled matches rejections from the per-minute call quota.
var ErrThrottled = errors.New("breaker: call quota exceeded")

// OpenError reports a rejected call and the cooldown left before the
// circuit admits a probe.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("breaker: %q is open, retry in %s",
		e.Name, e.RetryAfter.Round(time.Millisecond))
}

// Is lets errors.Is(err, ErrOpen) match any OpenError.
func (e *OpenError) Is(target error) bool { return target == ErrOpen }

// ThrottledError reports a quota rejection and the time until the
// minute window rolls over.
type ThrottledError struct {
	Name       string
	Limit      int
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("breaker: %q exceeded %d calls per minute, retry in %s",
		e.Name, e.Limit, e.RetryAfter.Round(time.Millisecond))
}

// Is lets errors.Is(err, ErrThrottled) match any ThrottledError.
func (e *ThrottledError) Is(target error) bool { return target == ErrThrottled }
