package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/wraithscan/wraithscan/pkg/defaults"
)

// Priority orders tasks for admission. Lower values run first.
type Priority int

const (
	Critical Priority = iota + 1
	High
	Normal
	Low
)

func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	default:
		return "unknown"
	}
}

// ParsePriority resolves a priority name from a profile file.
func ParsePriority(name string) (Priority, error) {
	switch name {
	case "critical":
		return Critical, nil
	case "high":
		return High, nil
	case "normal":
		return Normal, nil
	case "low":
		return Low, nil
	default:
		return 0, fmt.Errorf("scheduler: unknown priority %q", name)
	}
}

// Escalate bumps the priority one tier, capped at Critical. Retried
// tasks escalate so fresh submissions cannot starve them forever.
func (p Priority) Escalate() Priority {
	if p <= Critical {
		return Critical
	}
	return p - 1
}

// Op is the unit of work a task runs. Implementations must honor ctx.
type Op func(ctx context.Context) (any, error)

// Task describes one unit of work and its scheduling constraints.
type Task struct {
	// ID must be unique within one scheduler.
	ID string

	// Kind is a free-form label (recon, port_scan, web_scan, ...) used
	// for logs and metrics only.
	Kind string

	Priority Priority

	// Depends lists task IDs that must complete before this task may
	// start. A failed dependency fails this task without running it.
	Depends []string

	// CPUIntensive and NetworkIntensive place the task under the
	// matching class ceiling in Limits.
	CPUIntensive     bool
	NetworkIntensive bool

	// EstimatedDuration is advisory and feeds planning only.
	EstimatedDuration time.Duration

	// MaxAttempts is the total invocation budget, first try included.
	MaxAttempts int

	Op Op
}

// Result is the terminal outcome of one task. Exactly one of Value and
// Err is meaningful.
type Result struct {
	ID        string
	Kind      string
	Value     any
	Err       error
	Attempts  int
	Started   time.Time
	Completed time.Time
	Duration  time.Duration
}

// Succeeded reports whether the task finished without error.
func (r Result) Succeeded() bool { return r.Err == nil }

// Limits holds the process-wide admission ceilings. Running counts
// never exceed these at any instant.
type Limits struct {
	// MaxConcurrent caps tasks running at once, regardless of class.
	MaxConcurrent int

	// MaxCPU caps running CPU-intensive tasks.
	MaxCPU int

	// MaxNetwork caps running network-intensive tasks.
	MaxNetwork int

	// MemoryLimitMB is an advisory heap budget. While exceeded, new
	// admissions wait for running tasks to finish. Zero disables the
	// check.
	MemoryLimitMB int
}

// DefaultLimits returns the standard ceilings for assessment runs.
func DefaultLimits() Limits {
	return Limits{
		MaxConcurrent: defaults.SchedulerParallel,
		MaxCPU:        defaults.SchedulerCPUBound,
		MaxNetwork:    defaults.SchedulerNetBound,
		MemoryLimitMB: defaults.SchedulerMemoryMB,
	}
}

// EventType tags scheduler lifecycle notifications.
type EventType string

const (
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventRetried   EventType = "retried"
)

// Event is a lifecycle notification delivered to the observer, in
// order, from the coordinator goroutine.
type Event struct {
	Type     EventType
	Task     string
	Kind     string
	Attempt  int
	Priority Priority
	Err      error
	Duration time.Duration
}
