package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/duration"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(limits Limits, opts ...Option) *Scheduler {
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(limits, opts...)
}

func okOp(value any) Op {
	return func(context.Context) (any, error) { return value, nil }
}

func failOp(err error) Op {
	return func(context.Context) (any, error) { return nil, err }
}

// orderLog records op milestones so tests can assert scheduling order.
type orderLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *orderLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *orderLog) index(entry string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

func (l *orderLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func TestScheduler_RunsIndependentTasks(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(Limits{MaxConcurrent: 4})
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("task-%d", i)
		if err := s.Submit(Task{ID: id, Kind: "recon", Op: okOp(id)}); err != nil {
			t.Fatalf("Submit(%s): %v", id, err)
		}
	}

	results, metrics := s.Run(context.Background())

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for id, r := range results {
		if !r.Succeeded() {
			t.Errorf("task %s failed: %v", id, r.Err)
		}
		if r.Value != id {
			t.Errorf("task %s value = %v, want %s", id, r.Value, id)
		}
		if r.Attempts != 1 {
			t.Errorf("task %s attempts = %d, want 1", id, r.Attempts)
		}
	}
	if metrics.Completed != 3 || metrics.Failed != 0 {
		t.Errorf("metrics = %d completed / %d failed, want 3 / 0", metrics.Completed, metrics.Failed)
	}
	if metrics.TotalTasks != 3 {
		t.Errorf("TotalTasks = %d, want 3", metrics.TotalTasks)
	}
	if metrics.WallClock <= 0 {
		t.Error("WallClock should be positive after a run")
	}
}

func TestScheduler_RunEmpty(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(Limits{})

	results, metrics := s.Run(context.Background())

	if len(results) != 0 {
		t.Fatalf("results = %d, want 0", len(results))
	}
	if metrics.TotalTasks != 0 || metrics.PeakConcurrent != 0 {
		t.Errorf("metrics = %+v, want zero totals", metrics)
	}
}

func TestScheduler_DependencyOrdering(t *testing.T) {
	t.Parallel()
	log := &orderLog{}
	s := newTestScheduler(Limits{MaxConcurrent: 4})

	err := s.Submit(Task{ID: "scan", Kind: "port_scan", Op: func(context.Context) (any, error) {
		time.Sleep(30 * time.Millisecond)
		log.add("scan done")
		return nil, nil
	}})
	if err != nil {
		t.Fatalf("Submit(scan): %v", err)
	}
	err = s.Submit(Task{ID: "analyze", Kind: "vuln_scan", Depends: []string{"scan"}, Op: func(context.Context) (any, error) {
		log.add("analyze start")
		return nil, nil
	}})
	if err != nil {
		t.Fatalf("Submit(analyze): %v", err)
	}

	results, _ := s.Run(context.Background())

	for id, r := range results {
		if r.Err != nil {
			t.Fatalf("task %s failed: %v", id, r.Err)
		}
	}
	done, start := log.index("scan done"), log.index("analyze start")
	if done == -1 || start == -1 || done > start {
		t.Fatalf("dependent started before dependency completed: %v", log.list())
	}
}

func TestScheduler_GlobalCeiling(t *testing.T) {
	t.Parallel()
	var inFlight, maxInFlight atomic.Int32
	s := newTestScheduler(Limits{MaxConcurrent: 2})
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("probe-%d", i)
		err := s.Submit(Task{ID: id, Kind: "recon", Op: func(context.Context) (any, error) {
			n := inFlight.Add(1)
			for {
				prev := maxInFlight.Load()
				if n <= prev || maxInFlight.CompareAndSwap(prev, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return nil, nil
		}})
		if err != nil {
			t.Fatalf("Submit(%s): %v", id, err)
		}
	}

	_, metrics := s.Run(context.Background())

	if metrics.Completed != 5 {
		t.Fatalf("Completed = %d, want 5", metrics.Completed)
	}
	if got := maxInFlight.Load(); got > 2 {
		t.Errorf("observed %d tasks in flight, ceiling is 2", got)
	}
	if metrics.PeakConcurrent != 2 {
		t.Errorf("PeakConcurrent = %d, want 2", metrics.PeakConcurrent)
	}
}

func TestScheduler_ClassCeilingDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	var cpuInFlight, cpuPeak atomic.Int32
	released := make(chan struct{})
	s := newTestScheduler(Limits{MaxConcurrent: 4, MaxCPU: 1, MaxNetwork: 4})

	cpuOp := func(ctx context.Context) (any, error) {
		n := cpuInFlight.Add(1)
		defer cpuInFlight.Add(-1)
		for {
			prev := cpuPeak.Load()
			if n <= prev || cpuPeak.CompareAndSwap(prev, n) {
				break
			}
		}
		select {
		case <-released:
			return nil, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("never released, admission stuck")
		}
	}

	// cpu-b is ahead of the plain tasks in submission order. With the
	// CPU ceiling full it must be skipped, not block the queue.
	if err := s.Submit(Task{ID: "cpu-a", CPUIntensive: true, Op: cpuOp}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "cpu-b", CPUIntensive: true, Op: func(context.Context) (any, error) {
		n := cpuInFlight.Add(1)
		defer cpuInFlight.Add(-1)
		if n > 1 {
			return nil, errors.New("two cpu tasks in flight")
		}
		return nil, nil
	}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "net", NetworkIntensive: true, Op: func(context.Context) (any, error) {
		close(released)
		return nil, nil
	}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "plain", Op: okOp(nil)}); err != nil {
		t.Fatal(err)
	}

	results, metrics := s.Run(context.Background())

	for id, r := range results {
		if r.Err != nil {
			t.Fatalf("task %s failed: %v", id, r.Err)
		}
	}
	if metrics.Completed != 4 {
		t.Errorf("Completed = %d, want 4", metrics.Completed)
	}
	if got := cpuPeak.Load(); got > 1 {
		t.Errorf("cpu tasks in flight peaked at %d, ceiling is 1", got)
	}
}

func TestScheduler_PriorityOrdersAdmission(t *testing.T) {
	t.Parallel()
	log := &orderLog{}
	s := newTestScheduler(Limits{MaxConcurrent: 1})

	submit := func(id string, p Priority) {
		t.Helper()
		err := s.Submit(Task{ID: id, Priority: p, Op: func(context.Context) (any, error) {
			log.add(id)
			return nil, nil
		}})
		if err != nil {
			t.Fatalf("Submit(%s): %v", id, err)
		}
	}
	submit("cleanup", Low)
	submit("web-1", Normal)
	submit("web-2", Normal)
	submit("auth-bypass", Critical)

	s.Run(context.Background())

	want := []string{"auth-bypass", "web-1", "web-2", "cleanup"}
	got := log.list()
	if len(got) != len(want) {
		t.Fatalf("ran %d tasks, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("admission order = %v, want %v", got, want)
		}
	}
}

func TestScheduler_RetryUsesWholeAttemptBudget(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	s := newTestScheduler(Limits{MaxConcurrent: 2})
	err := s.Submit(Task{ID: "flaky", MaxAttempts: 2, Op: func(context.Context) (any, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	}})
	if err != nil {
		t.Fatal(err)
	}

	results, metrics := s.Run(context.Background())

	if got := calls.Load(); got != 2 {
		t.Errorf("op invoked %d times, want exactly 2", got)
	}
	r := results["flaky"]
	if r.Err == nil {
		t.Fatal("expected failure after exhausting attempts")
	}
	if r.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", r.Attempts)
	}
	if metrics.Retried != 1 || metrics.Failed != 1 {
		t.Errorf("metrics = %d retried / %d failed, want 1 / 1", metrics.Retried, metrics.Failed)
	}
}

func TestScheduler_RetryRecovers(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	s := newTestScheduler(Limits{MaxConcurrent: 2})
	err := s.Submit(Task{ID: "flaky", MaxAttempts: 3, Op: func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return "banner", nil
	}})
	if err != nil {
		t.Fatal(err)
	}

	results, metrics := s.Run(context.Background())

	r := results["flaky"]
	if r.Err != nil {
		t.Fatalf("task failed: %v", r.Err)
	}
	if r.Value != "banner" || r.Attempts != 2 {
		t.Errorf("result = %v after %d attempts, want banner after 2", r.Value, r.Attempts)
	}
	if metrics.Completed != 1 || metrics.Retried != 1 {
		t.Errorf("metrics = %d completed / %d retried, want 1 / 1", metrics.Completed, metrics.Retried)
	}
}

func TestScheduler_RetryEscalatesPriority(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var events []Event
	var calls atomic.Int32

	s := newTestScheduler(Limits{MaxConcurrent: 1}, WithObserver(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))
	err := s.Submit(Task{ID: "flaky", Priority: Low, MaxAttempts: 3, Op: func(context.Context) (any, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("i/o timeout")
		}
		return nil, nil
	}})
	if err != nil {
		t.Fatal(err)
	}

	s.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	var started, retried []Priority
	for _, ev := range events {
		switch ev.Type {
		case EventStarted:
			started = append(started, ev.Priority)
		case EventRetried:
			retried = append(retried, ev.Priority)
		}
	}
	wantStarted := []Priority{Low, Normal, High}
	if len(started) != len(wantStarted) {
		t.Fatalf("started events = %v, want %v", started, wantStarted)
	}
	for i := range wantStarted {
		if started[i] != wantStarted[i] {
			t.Errorf("start %d at %s, want %s", i+1, started[i], wantStarted[i])
		}
	}
	wantRetried := []Priority{Normal, High}
	if len(retried) != len(wantRetried) {
		t.Fatalf("retried events = %v, want %v", retried, wantRetried)
	}
	for i := range wantRetried {
		if retried[i] != wantRetried[i] {
			t.Errorf("retry %d escalated to %s, want %s", i+1, retried[i], wantRetried[i])
		}
	}
}

func TestScheduler_DependencyFailureCascades(t *testing.T) {
	t.Parallel()
	var downstream atomic.Int32
	s := newTestScheduler(Limits{MaxConcurrent: 4})

	if err := s.Submit(Task{ID: "recon", MaxAttempts: 1, Op: failOp(errors.New("host unreachable"))}); err != nil {
		t.Fatal(err)
	}
	countOp := func(context.Context) (any, error) {
		downstream.Add(1)
		return nil, nil
	}
	if err := s.Submit(Task{ID: "scan", Depends: []string{"recon"}, Op: countOp}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "report", Depends: []string{"scan"}, Op: countOp}); err != nil {
		t.Fatal(err)
	}

	results, metrics := s.Run(context.Background())

	if downstream.Load() != 0 {
		t.Error("downstream ops ran despite failed dependency")
	}
	if !errors.Is(results["scan"].Err, ErrDependencyFailed) {
		t.Errorf("scan error = %v, want ErrDependencyFailed", results["scan"].Err)
	}
	if !strings.Contains(results["scan"].Err.Error(), "recon") {
		t.Errorf("scan error should name the failed dependency: %v", results["scan"].Err)
	}
	if !errors.Is(results["report"].Err, ErrDependencyFailed) {
		t.Errorf("report error = %v, want ErrDependencyFailed", results["report"].Err)
	}
	if !strings.Contains(results["report"].Err.Error(), "scan") {
		t.Errorf("report error should name the failed dependency: %v", results["report"].Err)
	}
	if metrics.Failed != 3 {
		t.Errorf("Failed = %d, want 3", metrics.Failed)
	}
}

func TestScheduler_UnknownDependencyFailsUpfront(t *testing.T) {
	t.Parallel()
	var invoked atomic.Int32
	s := newTestScheduler(Limits{MaxConcurrent: 2})
	err := s.Submit(Task{ID: "orphan", Depends: []string{"ghost"}, Op: func(context.Context) (any, error) {
		invoked.Add(1)
		return nil, nil
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "solo", Op: okOp("ok")}); err != nil {
		t.Fatal(err)
	}

	results, _ := s.Run(context.Background())

	if invoked.Load() != 0 {
		t.Error("op ran despite unknown dependency")
	}
	if !errors.Is(results["orphan"].Err, ErrUnknownDependency) {
		t.Errorf("orphan error = %v, want ErrUnknownDependency", results["orphan"].Err)
	}
	if !strings.Contains(results["orphan"].Err.Error(), "ghost") {
		t.Errorf("error should name the missing dependency: %v", results["orphan"].Err)
	}
	if results["solo"].Err != nil {
		t.Errorf("independent task failed: %v", results["solo"].Err)
	}
}

func TestScheduler_CycleFailsUpfront(t *testing.T) {
	t.Parallel()
	var invoked atomic.Int32
	countOp := func(context.Context) (any, error) {
		invoked.Add(1)
		return nil, nil
	}
	s := newTestScheduler(Limits{MaxConcurrent: 2})
	if err := s.Submit(Task{ID: "a", Depends: []string{"b"}, Op: countOp}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "b", Depends: []string{"a"}, Op: countOp}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "c", Depends: []string{"a"}, Op: countOp}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "solo", Op: okOp(nil)}); err != nil {
		t.Fatal(err)
	}

	results, metrics := s.Run(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		if !errors.Is(results[id].Err, ErrDependencyCycle) {
			t.Errorf("task %s error = %v, want ErrDependencyCycle", id, results[id].Err)
		}
		if results[id].Attempts != 0 {
			t.Errorf("task %s attempted %d times, want 0", id, results[id].Attempts)
		}
	}
	if got := invoked.Load(); got != 1 {
		t.Errorf("invoked = %d ops, want 1 (solo only)", got)
	}
	if results["solo"].Err != nil {
		t.Errorf("independent task failed: %v", results["solo"].Err)
	}
	if metrics.Completed != 1 || metrics.Failed != 3 {
		t.Errorf("metrics = %d completed / %d failed, want 1 / 3", metrics.Completed, metrics.Failed)
	}
}

func TestScheduler_CancelFailsPending(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pendingRan atomic.Int32
	s := newTestScheduler(Limits{MaxConcurrent: 1})
	err := s.Submit(Task{ID: "long", Op: func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})
	if err != nil {
		t.Fatal(err)
	}
	err = s.Submit(Task{ID: "queued", Op: func(context.Context) (any, error) {
		pendingRan.Add(1)
		return nil, nil
	}})
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	results, metrics := s.Run(ctx)

	if pendingRan.Load() != 0 {
		t.Error("pending task ran after cancellation")
	}
	if !errors.Is(results["long"].Err, context.Canceled) {
		t.Errorf("long error = %v, want context.Canceled", results["long"].Err)
	}
	if results["long"].Attempts != 1 {
		t.Errorf("long retried after cancellation: %d attempts", results["long"].Attempts)
	}
	if !errors.Is(results["queued"].Err, context.Canceled) {
		t.Errorf("queued error = %v, want context.Canceled", results["queued"].Err)
	}
	if results["queued"].Attempts != 0 {
		t.Errorf("queued attempted %d times, want 0", results["queued"].Attempts)
	}
	if metrics.Failed != 2 {
		t.Errorf("Failed = %d, want 2", metrics.Failed)
	}
}

func TestScheduler_PanicBecomesFailure(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(Limits{MaxConcurrent: 2})
	err := s.Submit(Task{ID: "bad", MaxAttempts: 1, Op: func(context.Context) (any, error) {
		panic("nil map write")
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "good", Op: okOp(nil)}); err != nil {
		t.Fatal(err)
	}

	results, _ := s.Run(context.Background())

	r := results["bad"]
	if r.Err == nil {
		t.Fatal("panicking op should fail the task")
	}
	if !strings.Contains(r.Err.Error(), "task panicked") || !strings.Contains(r.Err.Error(), "nil map write") {
		t.Errorf("error = %v, want panic description", r.Err)
	}
	if results["good"].Err != nil {
		t.Errorf("sibling task failed: %v", results["good"].Err)
	}
}

func TestScheduler_SubmitValidation(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(Limits{})

	if err := s.Submit(Task{Op: okOp(nil)}); !errors.Is(err, ErrEmptyID) {
		t.Errorf("empty id: err = %v, want ErrEmptyID", err)
	}
	if err := s.Submit(Task{ID: "noop"}); !errors.Is(err, ErrNilOp) {
		t.Errorf("nil op: err = %v, want ErrNilOp", err)
	}
	if err := s.Submit(Task{ID: "self", Depends: []string{"self"}, Op: okOp(nil)}); !errors.Is(err, ErrSelfDependency) {
		t.Errorf("self dep: err = %v, want ErrSelfDependency", err)
	}
	if err := s.Submit(Task{ID: "scan", Op: okOp(nil)}); err != nil {
		t.Fatalf("valid submit: %v", err)
	}
	if err := s.Submit(Task{ID: "scan", Op: okOp(nil)}); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("duplicate: err = %v, want ErrDuplicateTask", err)
	}

	st := s.tasks["scan"]
	if st.task.Priority != Normal {
		t.Errorf("zero priority = %s, want normal", st.task.Priority)
	}
	if st.task.MaxAttempts != defaults.RetryMedium {
		t.Errorf("zero MaxAttempts = %d, want %d", st.task.MaxAttempts, defaults.RetryMedium)
	}
	if st.task.EstimatedDuration != duration.TaskEstimate {
		t.Errorf("zero EstimatedDuration = %s, want %s", st.task.EstimatedDuration, duration.TaskEstimate)
	}

	s.Run(context.Background())
	if err := s.Submit(Task{ID: "late", Op: okOp(nil)}); !errors.Is(err, ErrRunStarted) {
		t.Errorf("submit after run: err = %v, want ErrRunStarted", err)
	}
}

func TestScheduler_DependsDeduplicated(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(Limits{})
	if err := s.Submit(Task{ID: "base", Op: okOp(nil)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "top", Depends: []string{"base", "base", "base"}, Op: okOp(nil)}); err != nil {
		t.Fatal(err)
	}
	if got := len(s.tasks["top"].task.Depends); got != 1 {
		t.Errorf("deps = %d, want 1", got)
	}

	results, _ := s.Run(context.Background())
	if results["top"].Err != nil {
		t.Errorf("top failed: %v", results["top"].Err)
	}
}

func TestScheduler_SecondRunReturnsSameResults(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	s := newTestScheduler(Limits{})
	err := s.Submit(Task{ID: "once", Op: func(context.Context) (any, error) {
		calls.Add(1)
		return 7, nil
	}})
	if err != nil {
		t.Fatal(err)
	}

	first, _ := s.Run(context.Background())
	second, metrics := s.Run(context.Background())

	if calls.Load() != 1 {
		t.Errorf("op invoked %d times across two Run calls, want 1", calls.Load())
	}
	if first["once"].Value != 7 || second["once"].Value != 7 {
		t.Errorf("results diverged: %v vs %v", first["once"].Value, second["once"].Value)
	}
	if metrics.Completed != 1 {
		t.Errorf("Completed = %d, want 1", metrics.Completed)
	}
}

func TestScheduler_SnapshotDuringRun(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(Limits{MaxConcurrent: 2})
	var mid Snapshot
	err := s.Submit(Task{ID: "watcher", NetworkIntensive: true, Op: func(context.Context) (any, error) {
		time.Sleep(10 * time.Millisecond)
		mid = s.Snapshot()
		return nil, nil
	}})
	if err != nil {
		t.Fatal(err)
	}

	s.Run(context.Background())

	if mid.Running != 1 || mid.RunningNetwork != 1 {
		t.Errorf("mid-run snapshot = %+v, want 1 running / 1 network", mid)
	}

	final := s.Snapshot()
	if final.Running != 0 || final.Pending != 0 || final.Completed != 1 {
		t.Errorf("final snapshot = %+v, want drained with 1 completed", final)
	}
}

func TestScheduler_ObserverEventSequence(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var seq []string
	s := newTestScheduler(Limits{MaxConcurrent: 2}, WithObserver(func(ev Event) {
		mu.Lock()
		seq = append(seq, string(ev.Type)+":"+ev.Task)
		mu.Unlock()
	}))
	if err := s.Submit(Task{ID: "a", Op: okOp(nil)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "b", Depends: []string{"a"}, Op: okOp(nil)}); err != nil {
		t.Fatal(err)
	}

	s.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	want := []string{"started:a", "completed:a", "started:b", "completed:b"}
	if len(seq) != len(want) {
		t.Fatalf("events = %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("events = %v, want %v", seq, want)
		}
	}
}

func TestScheduler_ResultsCoverEveryTask(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(Limits{MaxConcurrent: 4})
	if err := s.Submit(Task{ID: "ok", Op: okOp("fine")}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "broken", MaxAttempts: 1, Op: failOp(errors.New("boom"))}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Task{ID: "blocked", Depends: []string{"broken"}, Op: okOp(nil)}); err != nil {
		t.Fatal(err)
	}

	results, _ := s.Run(context.Background())

	if len(results) != 3 {
		t.Fatalf("results = %d entries, want 3", len(results))
	}
	for _, id := range []string{"ok", "broken", "blocked"} {
		if _, found := results[id]; !found {
			t.Errorf("missing result for %s", id)
		}
	}
	ok := results["ok"]
	if ok.Duration <= 0 || ok.Started.IsZero() || ok.Completed.IsZero() {
		t.Errorf("completed task missing timing: %+v", ok)
	}
	if blocked := results["blocked"]; !blocked.Started.IsZero() {
		t.Errorf("never-started task carries a start time: %+v", blocked)
	}
}

func TestScheduler_MemoryGateDisabledAndUnderBudget(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(Limits{MemoryLimitMB: 0})
	if s.memoryTight() {
		t.Error("zero limit should disable the memory gate")
	}
	roomy := newTestScheduler(Limits{MemoryLimitMB: 1 << 20})
	if roomy.memoryTight() {
		t.Error("heap cannot exceed a petabyte-scale budget")
	}
}

func TestPriority_EscalateAndString(t *testing.T) {
	t.Parallel()
	steps := []struct {
		from, to Priority
	}{
		{Low, Normal},
		{Normal, High},
		{High, Critical},
		{Critical, Critical},
	}
	for _, tc := range steps {
		if got := tc.from.Escalate(); got != tc.to {
			t.Errorf("Escalate(%s) = %s, want %s", tc.from, got, tc.to)
		}
	}

	names := []struct {
		p    Priority
		want string
	}{
		{Critical, "critical"},
		{High, "high"},
		{Normal, "normal"},
		{Low, "low"},
		{Priority(42), "unknown"},
		{Priority(-1), "unknown"},
	}
	for _, tc := range names {
		if got := tc.p.String(); got != tc.want {
			t.Errorf("Priority(%d).String() = %q, want %q", int(tc.p), got, tc.want)
		}
	}

	for _, name := range []string{"critical", "high", "normal", "low"} {
		p, err := ParsePriority(name)
		if err != nil {
			t.Fatalf("ParsePriority(%q): %v", name, err)
		}
		if p.String() != name {
			t.Errorf("round trip %q -> %s", name, p)
		}
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Error("ParsePriority should reject unknown names")
	}
}

func TestDefaultLimits(t *testing.T) {
	t.Parallel()
	l := DefaultLimits()
	if l.MaxConcurrent != defaults.SchedulerParallel {
		t.Errorf("MaxConcurrent = %d, want %d", l.MaxConcurrent, defaults.SchedulerParallel)
	}
	if l.MaxCPU != defaults.SchedulerCPUBound {
		t.Errorf("MaxCPU = %d, want %d", l.MaxCPU, defaults.SchedulerCPUBound)
	}
	if l.MaxNetwork != defaults.SchedulerNetBound {
		t.Errorf("MaxNetwork = %d, want %d", l.MaxNetwork, defaults.SchedulerNetBound)
	}
	if l.MemoryLimitMB != defaults.SchedulerMemoryMB {
		t.Errorf("MemoryLimitMB = %d, want %d", l.MemoryLimitMB, defaults.SchedulerMemoryMB)
	}
}

func BenchmarkScheduler_Run(b *testing.B) {
	for i := 0; i < b.N; i++ {
		s := New(Limits{MaxConcurrent: 8}, WithLogger(quietLogger()))
		for j := 0; j < 50; j++ {
			task := Task{ID: fmt.Sprintf("t-%d", j), Op: okOp(nil)}
			if j > 0 {
				task.Depends = []string{fmt.Sprintf("t-%d", j-1)}
			}
			if err := s.Submit(task); err != nil {
				b.Fatal(err)
			}
		}
		s.Run(context.Background())
	}
}
