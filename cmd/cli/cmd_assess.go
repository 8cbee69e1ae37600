package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/scan"
	"github.com/wraithscan/wraithscan/pkg/telemetry"
	"github.com/wraithscan/wraithscan/pkg/ui"
)

func runAssess() {
	assessFlags := flag.NewFlagSet("assess", flag.ExitOnError)
	targets := assessFlags.String("targets", "", "Comma-separated targets to assess")
	profileName := assessFlags.String("profile", "standard", "Built-in profile: quick, standard, comprehensive, stealth, compliance")
	profileFile := assessFlags.String("profile-file", "", "Load the profile from a YAML file instead of -profile")
	metricsPort := assessFlags.Int("metrics-port", 0, "Serve Prometheus metrics on this port (0 disables)")
	simLatency := assessFlags.Duration("sim-latency", 150*time.Millisecond, "Mean latency of a simulated phase")
	simFailRate := assessFlags.Float64("sim-fail-rate", 0.15, "Probability that a simulated phase attempt fails")
	seed := assessFlags.Uint64("seed", 0, "Simulation seed, 0 derives one from the clock")
	verbose := assessFlags.Bool("verbose", false, "Log scheduler and guard activity to stderr")
	silent := assessFlags.Bool("silent", false, "Suppress banner and progress output")
	noColor := assessFlags.Bool("no-color", false, "Disable colored output")
	assessFlags.Parse(os.Args[2:])

	ui.SetSilent(*silent)
	ui.SetNoColor(*noColor)

	targetList := splitList(*targets)
	if len(targetList) == 0 {
		exitWithUsage("no targets given", "wraithscan assess -targets host1,host2 [-profile quick]")
	}

	profile, err := resolveProfile(*profileFile, *profileName)
	if err != nil {
		exitWithError(defaults.ExitUserError, "%v", err)
	}

	ui.PrintBanner()
	ui.PrintSection("Security Assessment")
	ui.PrintConfigLine("Profile", fmt.Sprintf("%s (%s)", profile.Name, profile.Type))
	ui.PrintConfigLine("Targets", strings.Join(targetList, ", "))
	ui.PrintConfigLine("Concurrency", fmt.Sprintf("%d phases", profile.MaxConcurrentPhases))
	ui.PrintConfigLine("Net Budget", fmt.Sprintf("%d req/window", profile.NetworkLimit))
	if profile.StealthDelay > 0 {
		ui.PrintConfigLine("Stealth Delay", profile.StealthDelay.String())
	}
	if profile.OverallTimeout > 0 {
		ui.PrintConfigLine("Deadline", profile.OverallTimeout.String())
	}
	fmt.Fprintln(os.Stderr)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	opts := []scan.Option{scan.WithLogger(logger)}

	var exporter *telemetry.Exporter
	if *metricsPort > 0 {
		exporter, err = telemetry.New(telemetry.Options{Port: *metricsPort}, telemetry.WithLogger(logger))
		if err != nil {
			exitWithError(defaults.ExitInternalError, "metrics exporter: %v", err)
		}
		if err := exporter.Start(); err != nil {
			exitWithError(defaults.ExitInternalError, "metrics exporter: %v", err)
		}
		defer exporter.Close()
		opts = append(opts, scan.WithEvents(exporter.Observer()))
		ui.PrintInfo(fmt.Sprintf("Metrics at %s", exporter.MetricsAddr()))
	}

	expProgress := func(scan.Progress) {}
	if exporter != nil {
		expProgress = exporter.Progress()
	}
	opts = append(opts, scan.WithProgress(func(p scan.Progress) {
		expProgress(p)
		printProgress(p)
	}))

	orch, err := scan.New(scan.Config{Profile: profile}, opts...)
	if err != nil {
		exitWithError(defaults.ExitUserError, "%v", err)
	}
	if exporter != nil {
		if err := exporter.WatchGuard(orch.Guard()); err != nil {
			exitWithError(defaults.ExitInternalError, "metrics exporter: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		ui.PrintWarning("Interrupt received, shutting down gracefully...")
		cancel()
	}()

	runner := newSimRunner(*seed, *simLatency, *simFailRate)

	started := time.Now()
	reports, runErr := orch.AssessAll(ctx, targetList, runner.run)

	failures := 0
	rendered := 0
	seen := make(map[string]bool, len(targetList))
	for _, target := range targetList {
		if seen[target] {
			continue
		}
		seen[target] = true
		rep := reports[target]
		if rep == nil {
			failures++
			continue
		}
		if exporter != nil {
			exporter.RecordReport(rep)
		}
		ui.PrintAssessment(summarize(rep))
		rendered++
		if !rep.Succeeded() {
			failures++
		}
	}

	if runErr != nil {
		exitWithError(defaults.ExitInternalError, "assessment aborted: %v", runErr)
	}
	if failures > 0 {
		exitWithError(defaults.ExitPhaseFailure, "%d of %d targets had failed phases", failures, len(seen))
	}
	ui.PrintSuccess(fmt.Sprintf("All %d assessments completed in %s", rendered, time.Since(started).Round(time.Millisecond)))
}

// resolveProfile picks the assessment profile: an explicit YAML file
// wins, otherwise the named built-in.
func resolveProfile(file, name string) (scan.Profile, error) {
	if file != "" {
		return scan.Load(file)
	}
	return scan.BuiltIn(scan.ProfileType(name))
}

// printProgress renders one live progress line, e.g.
//
//	[completed] [port_scan] [api.example.com] [ 35%]
func printProgress(p scan.Progress) {
	parts := []ui.BracketPart{
		ui.OutcomeBracket(strings.TrimPrefix(p.Message, "phase ")),
		ui.PhaseBracket(string(p.Phase)),
		ui.TextBracket(p.Target),
		ui.MutedBracket(fmt.Sprintf("%3d%%", p.Percent)),
	}
	if p.Err != nil {
		parts = append(parts, ui.MutedBracket(p.Err.Error()))
	}
	ui.PrintBracketedInfo(parts...)
}

// summarize flattens a report into the shape the summary box renders,
// phases in canonical order.
func summarize(rep *scan.Report) ui.RunSummary {
	sum := ui.RunSummary{
		RunID:     rep.RunID,
		Target:    rep.Target,
		Profile:   rep.Profile,
		Duration:  rep.Finished.Sub(rep.Started),
		Completed: rep.Metrics.Completed,
		Failed:    rep.Metrics.Failed,
		Retried:   rep.Metrics.Retried,
	}
	for _, phase := range scan.Phases() {
		pr, ok := rep.Phases[phase]
		if !ok {
			continue
		}
		line := ui.PhaseLine{
			Phase:    string(phase),
			Outcome:  "completed",
			Attempts: pr.Attempts,
			Duration: pr.Duration,
		}
		if pr.Err != nil {
			line.Outcome = "failed"
			line.Err = pr.Err.Error()
		}
		sum.Phases = append(sum.Phases, line)
	}
	return sum
}

// splitList splits a comma-separated flag value, trimming whitespace
// and dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
