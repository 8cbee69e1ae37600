package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// PhaseLine is one phase row in the assessment summary.
type PhaseLine struct {
	Phase    string
	Outcome  string
	Attempts int
	Duration time.Duration
	Err      string
}

// RunSummary holds the rendered view of one finished assessment.
type RunSummary struct {
	RunID     string
	Target    string
	Profile   string
	Duration  time.Duration
	Completed int
	Failed    int
	Retried   int
	Phases    []PhaseLine
}

// PrintAssessment prints the summary box for one target.
func PrintAssessment(s RunSummary) {
	if IsSilent() {
		return
	}

	PrintSection("Assessment Summary")
	fmt.Println()

	fmt.Printf("  %s %s\n",
		ConfigLabelStyle.Render("Target:"),
		URLStyle.Render(s.Target),
	)
	fmt.Printf("  %s %s\n",
		ConfigLabelStyle.Render("Profile:"),
		ConfigValueStyle.Render(s.Profile),
	)
	fmt.Printf("  %s %s\n",
		ConfigLabelStyle.Render("Run ID:"),
		ConfigValueStyle.Render(s.RunID),
	)
	fmt.Println()

	// Results box - simple fixed-width ASCII layout.
	boxWidth := 50
	border := "+" + strings.Repeat("-", boxWidth-2) + "+"

	printRow := func(label string, value string, valueStyle lipgloss.Style) {
		const labelW = 18
		const totalInner = 46

		labelPadded := label
		for len(labelPadded) < labelW {
			labelPadded += " "
		}
		valueW := totalInner - labelW
		valuePadded := value
		for len([]rune(valuePadded)) < valueW {
			valuePadded += " "
		}

		fmt.Printf("  |  %s%s|\n",
			StatLabelStyle.Render(labelPadded),
			valueStyle.Render(valuePadded),
		)
	}

	fmt.Println(BracketStyle.Render("  " + border))
	printRow("Phases:", fmt.Sprintf("%d", len(s.Phases)), StatValueStyle)
	fmt.Println(BracketStyle.Render("  " + border))
	printRow("Completed:", fmt.Sprintf("[OK] %d", s.Completed), PassStyle)
	printRow("Failed:", fmt.Sprintf("[!!] %d", s.Failed), FailStyle)
	printRow("Retries:", fmt.Sprintf("[~~] %d", s.Retried), WarnStyle)
	fmt.Println(BracketStyle.Render("  " + border))
	printRow("Duration:", formatDuration(s.Duration), StatValueStyle)
	fmt.Println(BracketStyle.Render("  " + border))

	// Per-phase breakdown.
	fmt.Println()
	for _, line := range s.Phases {
		parts := []BracketPart{
			OutcomeBracket(line.Outcome),
			PhaseBracket(line.Phase),
			MutedBracket(fmt.Sprintf("attempts=%d", line.Attempts)),
		}
		if line.Duration > 0 {
			parts = append(parts, MutedBracket(line.Duration.Round(time.Millisecond).String()))
		}
		if line.Err != "" {
			parts = append(parts, BracketPart{Text: line.Err, Style: FailStyle})
		}
		PrintBracketedInfo(parts...)
	}

	fmt.Println()
	total := s.Completed + s.Failed
	var rate float64
	if total > 0 {
		rate = float64(s.Completed) / float64(total) * 100
	}
	PrintSuccessRate(rate)

	fmt.Println()
	if s.Failed > 0 {
		PrintError(fmt.Sprintf("%d phases failed - review required", s.Failed))
	} else {
		PrintSuccess("All phases completed")
	}
	fmt.Println()
}

// PrintSuccessRate prints a visual completion meter.
func PrintSuccessRate(percent float64) {
	barWidth := 25

	var color lipgloss.Color
	var icon string
	switch {
	case percent >= 99:
		color = lipgloss.Color("#00D26A")
		icon = "[+]"
	case percent >= 90:
		color = lipgloss.Color("#6BCB77")
		icon = "[+]"
	case percent >= 75:
		color = lipgloss.Color("#FFD93D")
		icon = "[!]"
	case percent >= 50:
		color = lipgloss.Color("#FF6B6B")
		icon = "[!]"
	default:
		color = lipgloss.Color("#FF0000")
		icon = "[X]"
	}

	filled := int(float64(barWidth) * percent / 100)
	bar := strings.Builder{}
	for i := 0; i < barWidth; i++ {
		if i < filled {
			bar.WriteString(lipgloss.NewStyle().Foreground(color).Render("#"))
		} else {
			bar.WriteString(ProgressEmptyStyle.Render("."))
		}
	}

	percentStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	fmt.Printf("  %s%s %s %s %s\n",
		StatLabelStyle.Render("Phase Success: "),
		bar.String(),
		percentStyle.Render(fmt.Sprintf("%.1f%%", percent)),
		icon,
		successRating(percent),
	)
}

// successRating returns a text rating for a success percentage.
func successRating(percent float64) string {
	switch {
	case percent >= 99:
		return PassStyle.Render("Excellent")
	case percent >= 90:
		return PassStyle.Render("Good")
	case percent >= 75:
		return WarnStyle.Render("Fair")
	case percent >= 50:
		return WarnStyle.Render("Poor")
	default:
		return FailStyle.Render("Critical")
	}
}

// formatDuration renders mm:ss, or hh:mm:ss past an hour.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
