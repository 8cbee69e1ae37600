package ui

import "github.com/charmbracelet/lipgloss"

// Color palette, severity scheme follows common scanner conventions.
var (
	// Brand colors
	Primary   = lipgloss.Color("#7C3AED") // Violet
	Secondary = lipgloss.Color("#2DD4BF") // Teal

	// Phase outcome colors
	Completed = lipgloss.Color("#00D26A") // Green
	Failed    = lipgloss.Color("#FF3838") // Red
	Retrying  = lipgloss.Color("#FFB800") // Amber
	Running   = lipgloss.Color("#4D96FF") // Blue
	Skipped   = lipgloss.Color("#6B7280") // Gray

	// Priority tier colors
	CriticalTier = lipgloss.Color("#FF0000")
	HighTier     = lipgloss.Color("#FF6B6B")
	NormalTier   = lipgloss.Color("#4D96FF")
	LowTier      = lipgloss.Color("#6BCB77")

	Muted = lipgloss.Color("#6B7280")
)

// Pre-configured styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)

	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Width(15)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAFAFA"))

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true)

	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	PhaseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3B3B4F")).
			Padding(0, 1)

	PassStyle = lipgloss.NewStyle().
			Foreground(Completed).
			Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(Failed).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(Retrying).
			Bold(true)

	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(Primary)

	ProgressFullStyle = lipgloss.NewStyle().
				Foreground(Primary)

	ProgressEmptyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#3B3B4F"))
)

// OutcomeStyle returns the style for a phase outcome.
func OutcomeStyle(outcome string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch outcome {
	case "completed":
		return base.Foreground(Completed)
	case "failed":
		return base.Foreground(Failed)
	case "retrying":
		return base.Foreground(Retrying)
	case "running", "started":
		return base.Foreground(Running)
	case "skipped":
		return base.Foreground(Skipped)
	default:
		return base.Foreground(Muted)
	}
}

// PriorityStyle returns the style for a scheduling tier.
func PriorityStyle(priority string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch priority {
	case "critical":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(CriticalTier)
	case "high":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(HighTier)
	case "normal":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(NormalTier)
	case "low":
		return base.Foreground(lipgloss.Color("#000000")).Background(LowTier)
	default:
		return base.Foreground(Muted)
	}
}
