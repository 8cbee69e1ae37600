package ui

import (
	"testing"
	"time"
)

// TestVersion checks version constants
func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if BuildDate == "" {
		t.Error("BuildDate should not be empty")
	}
	if Author == "" {
		t.Error("Author should not be empty")
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if ua != "wraithscan/"+Version {
		t.Errorf("UserAgent() = %q", ua)
	}
}

func TestSilentMode(t *testing.T) {
	SetSilent(true)
	if !IsSilent() {
		t.Error("silent mode did not stick")
	}
	SetSilent(false)
	if IsSilent() {
		t.Error("silent mode did not clear")
	}
}

func TestOutcomeStyleSelectsKnownOutcomes(t *testing.T) {
	for _, outcome := range []string{"completed", "failed", "retrying", "running", "skipped"} {
		style := OutcomeStyle(outcome)
		if !style.GetBold() {
			t.Errorf("%s style should be bold", outcome)
		}
	}
	// Unknown outcomes still render, muted.
	_ = OutcomeStyle("???").Render("???")
}

func TestPriorityStyle(t *testing.T) {
	for _, tier := range []string{"critical", "high", "normal", "low", "unknown"} {
		got := PriorityStyle(tier).Render(tier)
		if got == "" {
			t.Errorf("PriorityStyle(%s) rendered nothing", tier)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "00:42"},
		{5*time.Minute + 3*time.Second, "05:03"},
		{2*time.Hour + 15*time.Minute + 9*time.Second, "02:15:09"},
		{0, "00:00"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.d); got != tc.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

// TestPrintAssessmentDoesNotPanic exercises the render paths; output
// formatting is visual, so this only guards against crashes.
func TestPrintAssessmentDoesNotPanic(t *testing.T) {
	SetSilent(false)
	defer SetSilent(false)

	PrintAssessment(RunSummary{
		RunID:     "run-1",
		Target:    "demo.example.com",
		Profile:   "Quick Scan",
		Duration:  83 * time.Second,
		Completed: 3,
		Failed:    1,
		Retried:   2,
		Phases: []PhaseLine{
			{Phase: "reconnaissance", Outcome: "completed", Attempts: 1, Duration: 1200 * time.Millisecond},
			{Phase: "port_scan", Outcome: "failed", Attempts: 2, Err: "connection refused"},
		},
	})

	SetSilent(true)
	PrintAssessment(RunSummary{Target: "quiet.example.com"})
}
