// Package scheduler runs dependency-ordered tasks in parallel under
// resource ceilings.
//
// Tasks are submitted up front, then Run drives them to completion:
// dependency graph validation first (unknown references and cycles
// fail before anything starts), then an event-driven admission loop
// that starts every ready task the ceilings allow and blocks until a
// running task finishes. Failed tasks retry with escalated priority
// until their attempt budget runs out; tasks downstream of a failure
// are failed without running.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gammazero/toposort"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/duration"
)

// taskState is the scheduler's private view of one submitted task.
type taskState struct {
	task     Task
	priority Priority // current tier, escalates on retry
	seq      int      // submission order, breaks priority ties
	attempts int

	started   time.Time
	completed time.Time
	value     any
	err       error
}

// completion is sent by a task goroutine when its Op returns.
type completion struct {
	id    string
	value any
	err   error
}

// Scheduler executes submitted tasks respecting dependencies,
// priorities and resource ceilings. Submit all tasks first, then call
// Run once. Snapshot is safe to call from other goroutines while Run
// is in flight.
type Scheduler struct {
	limits   Limits
	logger   *slog.Logger
	observer func(Event)

	mu        sync.Mutex
	tasks     map[string]*taskState
	pending   map[string]struct{}
	running   map[string]struct{}
	completed map[string]struct{}
	failed    map[string]struct{}
	seq       int
	ran       bool

	runningCPU int
	runningNet int
	peak       int
	retried    int
	startedAt  time.Time
	finishedAt time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for task lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers a callback invoked for every lifecycle event.
// Events arrive in order from a single goroutine.
func WithObserver(fn func(Event)) Option {
	return func(s *Scheduler) { s.observer = fn }
}

// New returns a Scheduler with the given ceilings. Non-positive
// ceilings fall back to defaults so a task class can never be
// stranded.
func New(limits Limits, opts ...Option) *Scheduler {
	if limits.MaxConcurrent <= 0 {
		limits.MaxConcurrent = defaults.SchedulerParallel
	}
	if limits.MaxCPU <= 0 {
		limits.MaxCPU = defaults.SchedulerCPUBound
	}
	if limits.MaxNetwork <= 0 {
		limits.MaxNetwork = defaults.SchedulerNetBound
	}
	s := &Scheduler{
		limits:    limits,
		logger:    slog.Default(),
		tasks:     make(map[string]*taskState),
		pending:   make(map[string]struct{}),
		running:   make(map[string]struct{}),
		completed: make(map[string]struct{}),
		failed:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit registers a task. It returns an error for an empty ID, a nil
// Op, a self-dependency, a duplicate ID, or when Run has already been
// called. Zero Priority, MaxAttempts and EstimatedDuration are filled
// with defaults.
func (s *Scheduler) Submit(t Task) error {
	if t.ID == "" {
		return ErrEmptyID
	}
	if t.Op == nil {
		return fmt.Errorf("%w: %s", ErrNilOp, t.ID)
	}
	for _, dep := range t.Depends {
		if dep == t.ID {
			return fmt.Errorf("%w: %s", ErrSelfDependency, t.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ran {
		return ErrRunStarted
	}
	if _, dup := s.tasks[t.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
	}

	if t.Priority < Critical || t.Priority > Low {
		t.Priority = Normal
	}
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = defaults.RetryMedium
	}
	if t.EstimatedDuration <= 0 {
		t.EstimatedDuration = duration.TaskEstimate
	}
	t.Depends = dedupe(t.Depends)

	s.seq++
	s.tasks[t.ID] = &taskState{task: t, priority: t.Priority, seq: s.seq}
	s.pending[t.ID] = struct{}{}
	s.logger.Debug("task submitted",
		slog.String("task", t.ID),
		slog.String("kind", t.Kind),
		slog.String("priority", t.Priority.String()),
		slog.Int("deps", len(t.Depends)))
	return nil
}

// Len reports how many tasks have been submitted.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Run executes every submitted task and returns a Result per task ID
// plus run-level metrics. It blocks until all tasks reach a terminal
// state. Canceling ctx stops new admissions and fails the remaining
// pending tasks; already-running tasks are waited for but not retried.
// Calling Run again returns the finished results.
func (s *Scheduler) Run(ctx context.Context) (map[string]Result, Metrics) {
	s.mu.Lock()
	if s.ran {
		defer s.mu.Unlock()
		return s.resultsLocked(), s.metricsLocked()
	}
	s.ran = true
	s.startedAt = time.Now()
	total := len(s.tasks)
	events := s.prevalidateLocked()
	s.mu.Unlock()
	s.emit(events...)

	s.logger.Info("run started",
		slog.Int("tasks", total),
		slog.Int("max_concurrent", s.limits.MaxConcurrent))

	// Every running task sends exactly one completion, and running
	// never exceeds MaxConcurrent, so sends cannot block.
	completions := make(chan completion, s.limits.MaxConcurrent)
	cancelC := ctx.Done()

	for {
		s.mu.Lock()
		events = s.resolveLocked()
		if ctx.Err() != nil {
			events = append(events, s.failPendingLocked(ctx.Err())...)
		} else {
			events = append(events, s.admitLocked(ctx, completions)...)
			if len(s.running) == 0 && len(s.pending) > 0 {
				// Unreachable after pre-validation: nothing runs and
				// nothing can become ready.
				events = append(events, s.failPendingLocked(ErrUnsatisfiable)...)
			}
		}
		pendingN, runningN := len(s.pending), len(s.running)
		s.mu.Unlock()
		s.emit(events...)

		if pendingN == 0 && runningN == 0 {
			break
		}
		if runningN == 0 {
			continue
		}

		select {
		case c := <-completions:
			s.mu.Lock()
			ev := s.finishLocked(c, ctx.Err() != nil)
			s.mu.Unlock()
			s.emit(ev)
		case <-cancelC:
			cancelC = nil
		}
	}

	s.mu.Lock()
	s.finishedAt = time.Now()
	results, metrics := s.resultsLocked(), s.metricsLocked()
	s.mu.Unlock()

	s.logger.Info("run finished",
		slog.Int("completed", metrics.Completed),
		slog.Int("failed", metrics.Failed),
		slog.Int("retried", metrics.Retried),
		slog.Duration("wall_clock", metrics.WallClock))
	return results, metrics
}

// prevalidateLocked fails tasks with unknown dependencies, then
// topologically sorts the rest and fails every member of a cycle.
// Invalid tasks never start.
func (s *Scheduler) prevalidateLocked() []Event {
	var events []Event

	for id := range s.pending {
		st := s.tasks[id]
		for _, dep := range st.task.Depends {
			if _, known := s.tasks[dep]; !known {
				events = append(events, s.failTaskLocked(st,
					fmt.Errorf("%w: %q requires %q", ErrUnknownDependency, id, dep)))
				break
			}
		}
	}

	edges := make([]toposort.Edge, 0, len(s.pending))
	for id := range s.pending {
		st := s.tasks[id]
		if len(st.task.Depends) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, dep := range st.task.Depends {
			edges = append(edges, toposort.Edge{dep, id})
		}
	}
	if _, err := toposort.Toposort(edges); err == nil {
		return events
	}

	// Peel off tasks whose dependencies can all be satisfied. Whatever
	// remains is inside a cycle or depends on one.
	satisfiable := make(map[string]bool, len(s.pending))
	for changed := true; changed; {
		changed = false
		for id := range s.pending {
			if satisfiable[id] {
				continue
			}
			ok := true
			for _, dep := range s.tasks[id].task.Depends {
				if _, pendingDep := s.pending[dep]; pendingDep && !satisfiable[dep] {
					ok = false
					break
				}
			}
			if ok {
				satisfiable[id] = true
				changed = true
			}
		}
	}
	for id := range s.pending {
		if !satisfiable[id] {
			events = append(events, s.failTaskLocked(s.tasks[id],
				fmt.Errorf("%w: %q", ErrDependencyCycle, id)))
		}
	}
	return events
}

// resolveLocked cascades dependency failures: any pending task with a
// failed dependency is failed itself, repeatedly, to a fixpoint.
func (s *Scheduler) resolveLocked() []Event {
	var events []Event
	for changed := true; changed; {
		changed = false
		for id := range s.pending {
			st := s.tasks[id]
			for _, dep := range st.task.Depends {
				if _, bad := s.failed[dep]; bad {
					events = append(events, s.failTaskLocked(st,
						fmt.Errorf("%w: %s", ErrDependencyFailed, dep)))
					changed = true
					break
				}
			}
		}
	}
	return events
}

// admitLocked starts every ready task the ceilings allow, most urgent
// first. The global ceiling stops admission for this pass; a class
// ceiling only skips tasks of that class so others can still start.
func (s *Scheduler) admitLocked(ctx context.Context, completions chan<- completion) []Event {
	var events []Event
	tight := s.memoryTight()
	for _, st := range s.readyLocked() {
		if len(s.running) >= s.limits.MaxConcurrent {
			break
		}
		if tight && len(s.running) > 0 {
			break
		}
		if st.task.CPUIntensive && s.runningCPU >= s.limits.MaxCPU {
			continue
		}
		if st.task.NetworkIntensive && s.runningNet >= s.limits.MaxNetwork {
			continue
		}
		events = append(events, s.startLocked(ctx, st, completions))
	}
	return events
}

// readyLocked returns pending tasks whose dependencies have all
// completed, ordered by priority then submission order.
func (s *Scheduler) readyLocked() []*taskState {
	ready := make([]*taskState, 0, len(s.pending))
	for id := range s.pending {
		st := s.tasks[id]
		ok := true
		for _, dep := range st.task.Depends {
			if _, done := s.completed[dep]; !done {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, st)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].priority != ready[j].priority {
			return ready[i].priority < ready[j].priority
		}
		return ready[i].seq < ready[j].seq
	})
	return ready
}

// memoryTight reports whether the advisory heap budget is exceeded.
// Admission defers while tight, except when nothing is running, so the
// run always makes progress.
func (s *Scheduler) memoryTight() bool {
	if s.limits.MemoryLimitMB <= 0 {
		return false
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	used := int(ms.HeapAlloc >> 20)
	if used <= s.limits.MemoryLimitMB {
		return false
	}
	s.logger.Warn("memory budget exceeded, deferring admissions",
		slog.Int("heap_mb", used),
		slog.Int("limit_mb", s.limits.MemoryLimitMB))
	return true
}

// startLocked moves a task from pending to running and launches its Op
// in a goroutine. A panicking Op is converted into a task failure.
func (s *Scheduler) startLocked(ctx context.Context, st *taskState, completions chan<- completion) Event {
	st.attempts++
	st.started = time.Now()
	delete(s.pending, st.task.ID)
	s.running[st.task.ID] = struct{}{}
	if st.task.CPUIntensive {
		s.runningCPU++
	}
	if st.task.NetworkIntensive {
		s.runningNet++
	}
	if n := len(s.running); n > s.peak {
		s.peak = n
	}
	s.logger.Info("task started",
		slog.String("task", st.task.ID),
		slog.String("kind", st.task.Kind),
		slog.String("priority", st.priority.String()),
		slog.Int("attempt", st.attempts))

	id, op := st.task.ID, st.task.Op
	go func() {
		value, err := runOp(ctx, op)
		completions <- completion{id: id, value: value, err: err}
	}()
	return Event{
		Type:     EventStarted,
		Task:     st.task.ID,
		Kind:     st.task.Kind,
		Attempt:  st.attempts,
		Priority: st.priority,
	}
}

func runOp(ctx context.Context, op Op) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return op(ctx)
}

// finishLocked settles one completion. Failures retry with escalated
// priority while attempts remain, unless the run is canceled.
func (s *Scheduler) finishLocked(c completion, canceled bool) Event {
	st := s.tasks[c.id]
	delete(s.running, c.id)
	if st.task.CPUIntensive {
		s.runningCPU--
	}
	if st.task.NetworkIntensive {
		s.runningNet--
	}
	st.completed = time.Now()

	if c.err == nil {
		st.value = c.value
		st.err = nil
		s.completed[c.id] = struct{}{}
		elapsed := st.completed.Sub(st.started)
		s.logger.Info("task completed",
			slog.String("task", c.id),
			slog.String("kind", st.task.Kind),
			slog.Duration("elapsed", elapsed),
			slog.Int("attempt", st.attempts))
		return Event{
			Type:     EventCompleted,
			Task:     c.id,
			Kind:     st.task.Kind,
			Attempt:  st.attempts,
			Priority: st.priority,
			Duration: elapsed,
		}
	}

	st.err = c.err
	if !canceled && st.attempts < st.task.MaxAttempts {
		st.priority = st.priority.Escalate()
		st.started, st.completed = time.Time{}, time.Time{}
		s.pending[c.id] = struct{}{}
		s.retried++
		s.logger.Warn("task failed, retrying",
			slog.String("task", c.id),
			slog.String("kind", st.task.Kind),
			slog.Int("attempt", st.attempts),
			slog.Int("max_attempts", st.task.MaxAttempts),
			slog.String("priority", st.priority.String()),
			slog.String("error", c.err.Error()))
		return Event{
			Type:     EventRetried,
			Task:     c.id,
			Kind:     st.task.Kind,
			Attempt:  st.attempts,
			Priority: st.priority,
			Err:      c.err,
		}
	}

	s.failed[c.id] = struct{}{}
	s.logger.Error("task failed",
		slog.String("task", c.id),
		slog.String("kind", st.task.Kind),
		slog.Int("attempts", st.attempts),
		slog.String("error", c.err.Error()))
	return Event{
		Type:     EventFailed,
		Task:     c.id,
		Kind:     st.task.Kind,
		Attempt:  st.attempts,
		Priority: st.priority,
		Err:      c.err,
	}
}

// failTaskLocked marks a pending task failed without running it.
func (s *Scheduler) failTaskLocked(st *taskState, reason error) Event {
	delete(s.pending, st.task.ID)
	st.err = reason
	s.failed[st.task.ID] = struct{}{}
	s.logger.Error("task failed without running",
		slog.String("task", st.task.ID),
		slog.String("kind", st.task.Kind),
		slog.String("error", reason.Error()))
	return Event{
		Type:     EventFailed,
		Task:     st.task.ID,
		Kind:     st.task.Kind,
		Attempt:  st.attempts,
		Priority: st.priority,
		Err:      reason,
	}
}

func (s *Scheduler) failPendingLocked(reason error) []Event {
	var events []Event
	for id := range s.pending {
		events = append(events, s.failTaskLocked(s.tasks[id], reason))
	}
	return events
}

func (s *Scheduler) emit(events ...Event) {
	if s.observer == nil {
		return
	}
	for _, ev := range events {
		s.observer(ev)
	}
}

func (s *Scheduler) resultsLocked() map[string]Result {
	results := make(map[string]Result, len(s.tasks))
	for id, st := range s.tasks {
		r := Result{
			ID:        id,
			Kind:      st.task.Kind,
			Value:     st.value,
			Err:       st.err,
			Attempts:  st.attempts,
			Started:   st.started,
			Completed: st.completed,
		}
		if !st.started.IsZero() && !st.completed.IsZero() {
			r.Duration = st.completed.Sub(st.started)
		}
		results[id] = r
	}
	return results
}

// Metrics summarizes one finished run.
type Metrics struct {
	TotalTasks      int
	Completed       int
	Failed          int
	Retried         int
	PeakConcurrent  int
	StartedAt       time.Time
	FinishedAt      time.Time
	WallClock       time.Duration
	AvgTaskDuration time.Duration
}

func (s *Scheduler) metricsLocked() Metrics {
	m := Metrics{
		TotalTasks:     len(s.tasks),
		Completed:      len(s.completed),
		Failed:         len(s.failed),
		Retried:        s.retried,
		PeakConcurrent: s.peak,
		StartedAt:      s.startedAt,
		FinishedAt:     s.finishedAt,
	}
	if !s.startedAt.IsZero() && !s.finishedAt.IsZero() {
		m.WallClock = s.finishedAt.Sub(s.startedAt)
	}
	if len(s.completed) > 0 {
		var sum time.Duration
		for id := range s.completed {
			st := s.tasks[id]
			sum += st.completed.Sub(st.started)
		}
		m.AvgTaskDuration = sum / time.Duration(len(s.completed))
	}
	return m
}

// Metrics returns the run metrics collected so far. Final values are
// available once Run returns.
func (s *Scheduler) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricsLocked()
}

// Snapshot is a point-in-time view of scheduler occupancy.
type Snapshot struct {
	Pending        int
	Running        int
	Completed      int
	Failed         int
	RunningCPU     int
	RunningNetwork int
	PeakConcurrent int
}

// Snapshot reports current occupancy. Safe to call concurrently with
// Run.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Pending:        len(s.pending),
		Running:        len(s.running),
		Completed:      len(s.completed),
		Failed:         len(s.failed),
		RunningCPU:     s.runningCPU,
		RunningNetwork: s.runningNet,
		PeakConcurrent: s.peak,
	}
}

// dedupe copies ids without duplicates so the scheduler never shares a
// slice with the caller.
func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
