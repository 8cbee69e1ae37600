// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.ContextShort)
//	RecoveryTimeout: duration.BreakerRecovery,
//	if task.EstimatedDuration == 0 { task.EstimatedDuration = duration.TaskEstimate }
//
// DO NOT use hardcoded time.Duration values like `30 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// CONTEXT/OPERATION TIMEOUTS
// ============================================================================
//
// Use these for context.WithTimeout() calls to bound operation duration.
// ============================================================================

const (
	// ContextShort is for quick operations (30s)
	ContextShort = 30 * time.Second

	// ContextMedium is for standard operations (5min)
	ContextMedium = 5 * time.Minute

	// ContextLong is for extended operations like single-phase scans (15min)
	ContextLong = 15 * time.Minute

	// ContextMax is for full assessment runs (30min)
	ContextMax = 30 * time.Minute
)

// ============================================================================
// CIRCUIT BREAKER TIMINGS
// ============================================================================
//
// These match the defaults in pkg/breaker and are re-exported here for
// packages that tune breakers without importing breaker.
// ============================================================================

const (
	// BreakerRecovery is how long an open circuit waits before probing (60s)
	BreakerRecovery = 60 * time.Second

	// BreakerCall bounds a single guarded call (30s)
	BreakerCall = 30 * time.Second
)

// ============================================================================
// RETRY/BACKOFF DELAYS
// ============================================================================
//
// Use these for retry loops and failure backoff.
// ============================================================================

const (
	// RetryInitial is the first-attempt backoff delay (1s)
	RetryInitial = 1 * time.Second

	// RetryCeiling is the maximum delay any backoff may produce (5min)
	RetryCeiling = 5 * time.Minute

	// RetryAfterFallback is assumed when a provider says "slow down"
	// without saying how long (60s)
	RetryAfterFallback = 60 * time.Second
)

// ============================================================================
// RATE LIMITER TIMINGS
// ============================================================================

const (
	// LimiterWindow is the trailing window for request counting (60s)
	LimiterWindow = 60 * time.Second
)

// ============================================================================
// SCHEDULER TIMINGS
// ============================================================================

const (
	// TaskEstimate is the assumed duration of a task that does not
	// declare one (60s)
	TaskEstimate = 60 * time.Second
)

// ============================================================================
// PHASE TIMEOUTS
// ============================================================================
//
// Per-phase ceilings used by the built-in scan profiles. Profiles may
// override these; nothing else should.
// ============================================================================

const (
	// PhaseRecon bounds passive reconnaissance (2min)
	PhaseRecon = 2 * time.Minute

	// PhasePortScan bounds port scanning (5min)
	PhasePortScan = 5 * time.Minute

	// PhaseWebScan bounds web application scanning (5min)
	PhaseWebScan = 5 * time.Minute

	// PhaseVulnScan bounds vulnerability scanning (10min)
	PhaseVulnScan = 10 * time.Minute

	// PhaseAIAnalysis bounds model-backed analysis (3min)
	PhaseAIAnalysis = 3 * time.Minute

	// PhaseExploitGen bounds exploit generation (2min)
	PhaseExploitGen = 2 * time.Minute
)

// ============================================================================
// UI/STREAMING INTERVALS
// ============================================================================
//
// Use these for progress updates and telemetry refresh rates.
// ============================================================================

const (
	// StreamFast is for real-time updates (1s)
	StreamFast = 1 * time.Second

	// StreamStd is for normal progress reporting (3s)
	StreamStd = 3 * time.Second

	// MetricsRead bounds reads on the metrics endpoint and its
	// shutdown grace (5s)
	MetricsRead = 5 * time.Second

	// MetricsWrite bounds one metrics scrape response (10s)
	MetricsWrite = 10 * time.Second
)
