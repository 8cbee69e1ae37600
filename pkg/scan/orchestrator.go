package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/guard"
	"github.com/wraithscan/wraithscan/pkg/scheduler"
)

// ErrNoTarget rejects an assessment without a target.
var ErrNoTarget = errors.New("scan: target is empty")

// ErrNilRunner rejects an assessment without a phase runner.
var ErrNilRunner = errors.New("scan: phase runner is nil")

// PhaseRequest carries everything a phase operation needs.
type PhaseRequest struct {
	RunID      string
	Target     string
	Phase      Phase
	Parameters map[string]any
}

// PhaseOp executes one phase against a target. The orchestrator owns
// scheduling, guarding and retries; implementations just do the work
// and honor ctx.
type PhaseOp func(ctx context.Context, req PhaseRequest) (any, error)

// PhaseResult is the terminal outcome of one phase.
type PhaseResult struct {
	Phase    Phase
	Value    any
	Err      error
	Attempts int
	Duration time.Duration
}

// Report is the outcome of assessing one target.
type Report struct {
	RunID    string
	Target   string
	Profile  string
	Type     ProfileType
	Started  time.Time
	Finished time.Time
	Phases   map[Phase]PhaseResult
	Metrics  scheduler.Metrics
}

// Succeeded reports whether every phase finished without error.
func (r *Report) Succeeded() bool {
	for _, pr := range r.Phases {
		if pr.Err != nil {
			return false
		}
	}
	return true
}

// FailedPhases lists the phases that ended in error, in canonical order.
func (r *Report) FailedPhases() []Phase {
	var failed []Phase
	for _, phase := range Phases() {
		if pr, ok := r.Phases[phase]; ok && pr.Err != nil {
			failed = append(failed, phase)
		}
	}
	return failed
}

// Progress is a live update delivered while an assessment runs.
// Percent is cumulative over terminal phases, weighted by Phase.Weight.
type Progress struct {
	RunID   string
	Target  string
	Phase   Phase
	Percent int
	Message string
	Err     error
}

// Config configures an Orchestrator.
type Config struct {
	Profile Profile

	// Guard policies for the services phases call. Zero fields fall
	// back to defaults; the profile's NetworkLimit overrides the
	// limiter's request budget.
	Guard guard.Config
}

// Orchestrator turns a profile into a task graph per target and drives
// it to completion behind the guard stack. One orchestrator may assess
// many targets; its breakers and limiters are shared across them, so
// service health learned on one target protects the rest.
type Orchestrator struct {
	profile  Profile
	guard    *guard.Guard
	logger   *slog.Logger
	pace     *rate.Limiter
	progress func(Progress)
	events   func(target string, ev scheduler.Event)
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger routes orchestration messages to the given logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProgress registers a callback for live progress updates. Updates
// for one target arrive in order from a single goroutine.
func WithProgress(fn func(Progress)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithEvents registers a callback for the raw scheduler events behind
// each assessment, tagged with the target they belong to. Telemetry
// uses this to count task lifecycle transitions without the
// orchestrator knowing about any metrics backend.
func WithEvents(fn func(target string, ev scheduler.Event)) Option {
	return func(o *Orchestrator) { o.events = fn }
}

// WithGuard shares an existing guard instead of building one from the
// config, so several orchestrators can pool breaker and limiter state.
func WithGuard(g *guard.Guard) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.guard = g
		}
	}
}

// New validates the profile and builds an Orchestrator for it.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	if issues := cfg.Profile.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("scan: invalid profile %q: %s", cfg.Profile.Name, strings.Join(issues, "; "))
	}

	o := &Orchestrator{
		profile: cfg.Profile,
		logger:  slog.Default(),
	}
	if cfg.Profile.StealthDelay > 0 {
		o.pace = rate.NewLimiter(rate.Every(cfg.Profile.StealthDelay), 1)
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.guard == nil {
		gcfg := cfg.Guard
		if cfg.Profile.NetworkLimit > 0 {
			gcfg.Limiter.MaxRequests = cfg.Profile.NetworkLimit
		}
		o.guard = guard.New(gcfg, guard.WithLogger(o.logger))
	}
	return o, nil
}

// Guard exposes the orchestrator's guard for telemetry and ops
// controls.
func (o *Orchestrator) Guard() *guard.Guard { return o.guard }

// Profile returns the profile this orchestrator runs.
func (o *Orchestrator) Profile() Profile { return o.profile }

// Assess runs every enabled phase against one target and blocks until
// the run finishes. The returned Report has an entry for each enabled
// phase whether it succeeded, failed, or never ran.
func (o *Orchestrator) Assess(ctx context.Context, target string, run PhaseOp) (*Report, error) {
	if target == "" {
		return nil, ErrNoTarget
	}
	if run == nil {
		return nil, ErrNilRunner
	}

	runID := uuid.New().String()
	if o.profile.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.profile.OverallTimeout)
		defer cancel()
	}

	sched := scheduler.New(o.profile.Limits(),
		scheduler.WithLogger(o.logger),
		scheduler.WithObserver(o.observer(runID, target)))

	tasks := o.plan(runID, target, run)
	for _, task := range tasks {
		if err := sched.Submit(task); err != nil {
			return nil, fmt.Errorf("scan: submit phase %s: %w", task.ID, err)
		}
	}

	o.logger.Info("assessment started",
		slog.String("run_id", runID),
		slog.String("target", target),
		slog.String("profile", o.profile.Name),
		slog.Int("phases", len(tasks)))

	started := time.Now()
	results, metrics := sched.Run(ctx)

	report := &Report{
		RunID:    runID,
		Target:   target,
		Profile:  o.profile.Name,
		Type:     o.profile.Type,
		Started:  started,
		Finished: time.Now(),
		Phases:   make(map[Phase]PhaseResult, len(results)),
		Metrics:  metrics,
	}
	for id, res := range results {
		phase := Phase(id)
		report.Phases[phase] = PhaseResult{
			Phase:    phase,
			Value:    res.Value,
			Err:      res.Err,
			Attempts: res.Attempts,
			Duration: res.Duration,
		}
	}

	o.logger.Info("assessment finished",
		slog.String("run_id", runID),
		slog.String("target", target),
		slog.Int("completed", metrics.Completed),
		slog.Int("failed", metrics.Failed),
		slog.Duration("wall_clock", metrics.WallClock))
	return report, nil
}

// AssessAll fans an assessment out over several targets, a bounded
// number at a time. Reports are keyed by target; an error from one
// target cancels the remainder.
func (o *Orchestrator) AssessAll(ctx context.Context, targets []string, run PhaseOp) (map[string]*Report, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaults.TargetFanout)

	var mu sync.Mutex
	reports := make(map[string]*Report, len(targets))
	seen := make(map[string]struct{}, len(targets))

	for _, target := range targets {
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		t := target
		g.Go(func() error {
			rep, err := o.Assess(gctx, t, run)
			if err != nil {
				return fmt.Errorf("target %s: %w", t, err)
			}
			mu.Lock()
			reports[t] = rep
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}

// plan builds one scheduler task per enabled phase, in canonical order
// so equal-priority phases keep their natural sequence.
func (o *Orchestrator) plan(runID, target string, run PhaseOp) []scheduler.Task {
	var tasks []scheduler.Task
	for _, phase := range Phases() {
		cfg, ok := o.profile.Phases[phase]
		if !ok || !cfg.Enabled {
			continue
		}
		deps := make([]string, 0, len(cfg.Dependencies))
		for _, dep := range cfg.Dependencies {
			deps = append(deps, string(dep))
		}
		tasks = append(tasks, scheduler.Task{
			ID:                string(phase),
			Kind:              string(phase),
			Priority:          tierFor(cfg.Priority),
			Depends:           deps,
			CPUIntensive:      phase.CPUIntensive(),
			NetworkIntensive:  phase.NetworkIntensive(),
			EstimatedDuration: cfg.Timeout,
			MaxAttempts:       cfg.MaxRetries + 1,
			Op:                o.phaseOp(runID, target, phase, cfg, run),
		})
	}
	return tasks
}

// phaseOp wraps the caller's runner for one phase: stealth pacing
// first, then the phase timeout, then the guard stack for the phase's
// service.
func (o *Orchestrator) phaseOp(runID, target string, phase Phase, cfg PhaseConfig, run PhaseOp) scheduler.Op {
	service := phase.Service()
	req := PhaseRequest{
		RunID:      runID,
		Target:     target,
		Phase:      phase,
		Parameters: cfg.Parameters,
	}
	return func(ctx context.Context) (any, error) {
		if o.pace != nil {
			if err := o.pace.Wait(ctx); err != nil {
				return nil, err
			}
		}
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		return o.guard.CallWithRetry(ctx, service, func(callCtx context.Context) (any, error) {
			return run(callCtx, req)
		})
	}
}

// tierFor maps a profile's ordinal phase priority onto scheduler tiers.
func tierFor(priority int) scheduler.Priority {
	switch {
	case priority <= 1:
		return scheduler.Critical
	case priority == 2:
		return scheduler.High
	case priority == 3:
		return scheduler.Normal
	default:
		return scheduler.Low
	}
}

// observer adapts scheduler events into progress updates. Percent
// advances when a phase reaches a terminal state, scaled so a full run
// always ends at 100 regardless of which phases the profile enables.
func (o *Orchestrator) observer(runID, target string) func(scheduler.Event) {
	total := 0
	for phase, cfg := range o.profile.Phases {
		if cfg.Enabled {
			total += phase.Weight()
		}
	}

	done := 0
	return func(ev scheduler.Event) {
		if o.events != nil {
			o.events(target, ev)
		}
		phase := Phase(ev.Task)
		var message string
		switch ev.Type {
		case scheduler.EventStarted:
			message = "phase started"
		case scheduler.EventRetried:
			message = "phase retrying"
		case scheduler.EventCompleted:
			done += phase.Weight()
			message = "phase completed"
		case scheduler.EventFailed:
			done += phase.Weight()
			message = "phase failed"
		default:
			return
		}

		percent := 0
		if total > 0 {
			percent = 100 * done / total
		}
		if o.progress != nil {
			o.progress(Progress{
				RunID:   runID,
				Target:  target,
				Phase:   phase,
				Percent: percent,
				Message: message,
				Err:     ev.Err,
			})
		}
	}
}
