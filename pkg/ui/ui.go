// Package ui renders the command line surface: banner, section
// headers, live phase updates and the assessment summary. Everything
// informational prints to stderr so stdout stays clean for piped
// output.
package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/wraithscan/wraithscan/pkg/defaults"
)

// Version information - these can be overridden at build time via ldflags:
// go build -ldflags "-X github.com/wraithscan/wraithscan/pkg/ui.Version=1.0.0"
var (
	Version   = defaults.Version
	BuildDate = "2026-08-25"
	Commit    = "dev"
)

const (
	Author  = "Wraithscan Team"
	Website = "https://wraithscan.dev"
)

// UserAgent returns the standard User-Agent string for outbound probes.
func UserAgent() string {
	return fmt.Sprintf("wraithscan/%s", Version)
}

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses most output)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

const bannerSeparator = "________________________________________________"

// PrintBanner prints the boxed application banner with version info.
func PrintBanner() {
	if IsSilent() {
		return
	}
	fmt.Fprintln(os.Stderr, BannerStyle.Render(bannerSeparator))
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, " %s %s\n",
		BannerStyle.Render("wraithscan"),
		VersionStyle.Render("v"+Version))
	fmt.Fprintf(os.Stderr, " %s\n", HelpStyle.Render(Website))
	fmt.Fprintln(os.Stderr, BannerStyle.Render(bannerSeparator))
}

// PrintMiniBanner prints a single version line.
func PrintMiniBanner() {
	fmt.Fprintf(os.Stderr, "wraithscan v%s (%s, %s)\n", Version, Commit, BuildDate)
}

// PrintDivider prints a horizontal rule (to stderr).
func PrintDivider() {
	divider := strings.Repeat("-", 75)
	fmt.Fprintln(os.Stderr, DividerStyle.Render(divider))
}

// PrintSection prints a section header (to stderr).
func PrintSection(title string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, SectionStyle.Render("> "+title))
	PrintDivider()
}

// PrintConfigLine prints a single config line.
func PrintConfigLine(key, value string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(os.Stderr, "  %s %s\n",
		ConfigLabelStyle.Render(key+":"),
		ConfigValueStyle.Render(value),
	)
}

// PrintSuccess prints a success message (to stderr).
func PrintSuccess(message string) {
	fmt.Fprintln(os.Stderr, PassStyle.Render("  [+] "+message))
}

// PrintError prints an error message (to stderr).
func PrintError(message string) {
	fmt.Fprintln(os.Stderr, FailStyle.Render("  [X] "+message))
}

// PrintWarning prints a warning message (to stderr).
func PrintWarning(message string) {
	fmt.Fprintln(os.Stderr, WarnStyle.Render("  [!] "+message))
}

// PrintInfo prints an info message (to stderr).
func PrintInfo(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(os.Stderr, "  %s %s\n", SpinnerStyle.Render("*"), message)
}

// PrintHelp prints contextual help (to stderr).
func PrintHelp(text string) {
	fmt.Fprintln(os.Stderr, HelpStyle.Render("  [i] "+text))
}

// BracketPart is one piece of a bracketed status line.
type BracketPart struct {
	Text  string
	Style lipgloss.Style
}

// PrintBracketedInfo prints a scanner-style bracketed line.
// Example: [completed] [port_scan] 12.3s
func PrintBracketedInfo(parts ...BracketPart) {
	if IsSilent() {
		return
	}
	var output strings.Builder
	for _, part := range parts {
		output.WriteString(BracketStyle.Render("["))
		output.WriteString(part.Style.Render(part.Text))
		output.WriteString(BracketStyle.Render("] "))
	}
	fmt.Fprintln(os.Stderr, output.String())
}

// OutcomeBracket styles a phase outcome for a bracketed line.
func OutcomeBracket(outcome string) BracketPart {
	return BracketPart{Text: outcome, Style: OutcomeStyle(outcome)}
}

// PhaseBracket styles a phase name for a bracketed line.
func PhaseBracket(phase string) BracketPart {
	return BracketPart{Text: phase, Style: PhaseStyle}
}

// TextBracket styles plain text for a bracketed line.
func TextBracket(text string) BracketPart {
	return BracketPart{Text: text, Style: lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))}
}

// MutedBracket styles secondary text for a bracketed line.
func MutedBracket(text string) BracketPart {
	return BracketPart{Text: text, Style: lipgloss.NewStyle().Foreground(Muted)}
}
