package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// ErrLimited matches any rejection from a Limiter.
// Callers should use errors.Is() to check for it.
var ErrLimited = errors.New("ratelimit: limit exceeded")

// Scope identifies which gate rejected an acquisition.
type Scope string

const (
	// ScopeBackoff means the limiter is sitting out a failure
	// backoff period.
	ScopeBackoff Scope = "backoff"

	// ScopeWindow means the sliding window cap was hit.
	ScopeWindow Scope = "window"

	// ScopeBucket means the token bucket ran dry.
	ScopeBucket Scope = "bucket"
)

// LimitError reports a rejected acquisition and how long to wait
// before trying again.
type LimitError struct {
	Name       string
	Scope      Scope
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("ratelimit: %q rejected by %s gate, retry in %s",
		e.Name, e.Scope, e.RetryAfter.Round(time.Millisecond))
}

// Is lets errors.Is(err, ErrLimited) match any LimitError.
func (e *LimitError) Is(target error) bool { return target == ErrLimited }
