// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all runtime configuration defaults.
//
// Usage:
//
//	limits.MaxConcurrent = defaults.SchedulerParallel
//	cfg.FailureThreshold = defaults.BreakerFailures
//	task.MaxAttempts = defaults.RetryLow
//
// DO NOT use hardcoded values like `MaxConcurrent: 6` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

// Version is the current wraithscan version
const Version = "1.4.1"

// ============================================================================
// SCHEDULER CONCURRENCY
// ============================================================================
//
// Ceilings for the parallel task executor. Running counts never exceed
// these at any instant.
// ============================================================================

const (
	// SchedulerParallel is the global concurrent-task ceiling (6)
	SchedulerParallel = 6

	// SchedulerCPUBound is the ceiling for CPU-intensive tasks (2)
	SchedulerCPUBound = 2

	// SchedulerNetBound is the ceiling for network-intensive tasks (10)
	SchedulerNetBound = 10

	// SchedulerMemoryMB is the advisory memory budget for a run (1024)
	SchedulerMemoryMB = 1024
)

// ============================================================================
// RETRY SETTINGS
// ============================================================================
//
// Use these for retry loops and error recovery.
// ============================================================================

const (
	// RetryNone disables retries (0)
	RetryNone = 0

	// RetryLow is for task re-execution after failure (2)
	RetryLow = 2

	// RetryMedium is the standard retry count for guarded calls (3)
	RetryMedium = 3

	// RetryHigh is for flaky operations (5)
	RetryHigh = 5

	// RetryMax caps the attempt number fed into backoff growth (10)
	RetryMax = 10
)

// ============================================================================
// CIRCUIT BREAKER THRESHOLDS
// ============================================================================

const (
	// BreakerFailures opens a closed circuit after this many
	// consecutive failures (5)
	BreakerFailures = 5

	// BreakerSuccesses closes a half-open circuit after this many
	// consecutive successes (3)
	BreakerSuccesses = 3

	// BreakerCallsPerMinute caps admitted calls per wall-clock minute (60)
	BreakerCallsPerMinute = 60
)

// ============================================================================
// RATE LIMITING
// ============================================================================
//
// Use these for the adaptive limiter. The multiplier scales the window
// cap between its floor and ceiling in fixed steps.
// ============================================================================

const (
	// LimiterRequests is the nominal per-window request cap (100)
	LimiterRequests = 100

	// LimiterBurst is the token bucket capacity (10)
	LimiterBurst = 10

	// LimiterRefillPerSec is the bucket refill rate (1.0 tokens/s)
	LimiterRefillPerSec = 1.0

	// LimiterFailures triggers a backoff period after this many
	// consecutive failures (5)
	LimiterFailures = 5

	// MultiplierFloor is the lowest adaptive window scale (0.1)
	MultiplierFloor = 0.1

	// MultiplierCeiling is the highest adaptive window scale (1.0)
	MultiplierCeiling = 1.0

	// MultiplierRaise is added after a healthy success streak (0.1)
	MultiplierRaise = 0.1

	// MultiplierCut is subtracted after a failure streak (0.2)
	MultiplierCut = 0.2

	// RaiseStreak is the success streak that earns a raise (10)
	RaiseStreak = 10

	// CutStreak is the failure streak that costs a cut (3)
	CutStreak = 3
)

// ============================================================================
// BACKOFF SHAPE
// ============================================================================

const (
	// BackoffMultiplier is the exponential growth factor (2.0)
	BackoffMultiplier = 2.0

	// JitterFactor scales the random spread around a computed delay (0.1)
	JitterFactor = 0.1
)

// ============================================================================
// SCAN PROFILES
// ============================================================================
//
// Defaults for assessment profiles and multi-target runs.
// ============================================================================

const (
	// PhaseRetries is how many times a phase re-runs after failing (2)
	PhaseRetries = 2

	// ProfileConcurrent is the phase-concurrency ceiling a profile gets
	// when it does not set one (3)
	ProfileConcurrent = 3

	// ProfileNetRequests is the per-window request budget a profile
	// grants its rate limiter when it does not set one (100)
	ProfileNetRequests = 100

	// ProfileMemoryMB is the advisory memory budget per assessment (512)
	ProfileMemoryMB = 512

	// TargetFanout caps how many targets are assessed at once (3)
	TargetFanout = 3
)

// ============================================================================
// CHANNEL SIZES
// ============================================================================
//
// Use these for buffered channels.
// ============================================================================

const (
	// ChannelTiny is for small buffers (10)
	ChannelTiny = 10

	// ChannelSmall is for typical buffers (100)
	ChannelSmall = 100
)

// ============================================================================
// SERVICE NAMES
// ============================================================================
//
// Canonical names for the external services guarded by breakers and
// limiters. Classification falls back to these when guessing which
// service produced an error.
// ============================================================================

const (
	ServiceOpenAI   = "openai"
	ServiceNmap     = "nmap"
	ServiceNuclei   = "nuclei"
	ServiceDatabase = "database"
	ServiceRedis    = "redis"
	ServiceHTTP     = "http"
	ServiceUnknown  = "unknown"
)
