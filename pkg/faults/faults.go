// Package faults defines the error taxonomy shared by the scheduling and
// resilience layers and classifies raw errors into it.
//
// Every error that crosses a component boundary is normalized into a
// *Fault carrying a category, a severity, and an optional retry-after
// hint. Retry decisions key off the category alone.
//
// Usage:
//
//	f := faults.Classify(err, "port_scan")
//	if faults.Retryable(f) {
//	    // schedule another attempt
//	}
package faults

import (
	"fmt"
	"time"
)

// Category identifies the failure domain of an error.
type Category string

const (
	Network         Category = "network"
	Timeout         Category = "timeout"
	ExternalService Category = "external_service"
	RateLimiting    Category = "rate_limiting"
	CircuitBreaker  Category = "circuit_breaker"
	Authentication  Category = "authentication"
	Authorization   Category = "authorization"
	Validation      Category = "validation"
	Database        Category = "database"
	FileSystem      Category = "file_system"
	Security        Category = "security"
	System          Category = "system"
	Unknown         Category = "unknown"
)

// Severity ranks how urgently a fault needs operator attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityFor maps each category to its default severity.
var severityFor = map[Category]Severity{
	Network:         SeverityHigh,
	Timeout:         SeverityHigh,
	ExternalService: SeverityHigh,
	RateLimiting:    SeverityMedium,
	CircuitBreaker:  SeverityHigh,
	Authentication:  SeverityHigh,
	Authorization:   SeverityHigh,
	Validation:      SeverityMedium,
	Database:        SeverityHigh,
	FileSystem:      SeverityMedium,
	Security:        SeverityCritical,
	System:          SeverityCritical,
	Unknown:         SeverityMedium,
}

// DefaultSeverity returns the severity assigned to faults of the given
// category when the producer does not override it.
func DefaultSeverity(cat Category) Severity {
	if s, ok := severityFor[cat]; ok {
		return s
	}
	return SeverityMedium
}

// Fault is a classified error. It satisfies the error interface and
// unwraps to the original cause, so errors.Is/As keep working through it.
type Fault struct {
	Category Category
	Severity Severity

	// Op is the logical operation or service the error came from.
	Op string

	// Message is a human-readable description.
	Message string

	// RetryAfter is a provider-supplied wait hint. Zero means the
	// provider gave none; retry timing falls back to backoff math.
	RetryAfter time.Duration

	// Service is the guessed upstream service for external faults.
	Service string

	// Err is the underlying cause, if any.
	Err error
}

// New builds a Fault with the category's default severity.
func New(cat Category, op, message string) *Fault {
	return &Fault{
		Category: cat,
		Severity: DefaultSeverity(cat),
		Op:       op,
		Message:  message,
	}
}

// Wrap builds a Fault around an existing error, keeping it reachable
// through Unwrap.
func Wrap(cat Category, op string, err error) *Fault {
	f := New(cat, op, "")
	if err != nil {
		f.Message = err.Error()
		f.Err = err
	}
	return f
}

func (f *Fault) Error() string {
	if f.Message != "" {
		return f.Message
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return string(f.Category)
}

func (f *Fault) Unwrap() error { return f.Err }

// String renders the fault for logs.
func (f *Fault) String() string {
	if f.Op != "" {
		return fmt.Sprintf("[%s/%s] %s: %s", f.Category, f.Severity, f.Op, f.Error())
	}
	return fmt.Sprintf("[%s/%s] %s", f.Category, f.Severity, f.Error())
}

// retryable is the set of categories worth another attempt. Everything
// else fails fast.
var retryable = map[Category]bool{
	Network:         true,
	ExternalService: true,
	Timeout:         true,
	RateLimiting:    true,
}

// Retryable reports whether a fault's category is transient. A nil
// fault is not retryable.
func Retryable(f *Fault) bool {
	if f == nil {
		return false
	}
	return retryable[f.Category]
}
