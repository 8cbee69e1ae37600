package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/scan"
	"github.com/wraithscan/wraithscan/pkg/ui"
)

func runProfiles() {
	ui.PrintBanner()
	ui.PrintSection("Built-in Profiles")

	for _, t := range scan.BuiltInTypes() {
		profile, err := scan.BuiltIn(t)
		if err != nil {
			exitWithError(defaults.ExitInternalError, "%v", err)
		}
		printProfile(profile)
	}

	ui.PrintHelp("Select one with 'wraithscan assess -profile <name>' or export a YAML file and pass -profile-file.")
	fmt.Fprintln(os.Stderr)
}

func printProfile(p scan.Profile) {
	fmt.Fprintf(os.Stderr, "%s  %s\n", ui.TitleStyle.Render(p.Name), ui.HelpStyle.Render(p.Description))
	ui.PrintConfigLine("Estimated", p.EstimatedDuration.String())
	ui.PrintConfigLine("Concurrency", fmt.Sprintf("%d phases", p.MaxConcurrentPhases))
	ui.PrintConfigLine("Net Budget", fmt.Sprintf("%d req/window", p.NetworkLimit))
	if p.StealthDelay > 0 {
		ui.PrintConfigLine("Stealth Delay", p.StealthDelay.String())
	}

	for _, phase := range scan.Phases() {
		cfg, ok := p.Phases[phase]
		if !ok {
			continue
		}
		parts := []ui.BracketPart{
			phaseState(cfg.Enabled),
			ui.PhaseBracket(string(phase)),
		}
		if cfg.Enabled {
			parts = append(parts, ui.MutedBracket(fmt.Sprintf("timeout %s", cfg.Timeout)))
			parts = append(parts, ui.MutedBracket(fmt.Sprintf("retries %d", cfg.MaxRetries)))
			if len(cfg.Dependencies) > 0 {
				parts = append(parts, ui.MutedBracket("after "+joinPhases(cfg.Dependencies)))
			}
		}
		ui.PrintBracketedInfo(parts...)
	}
	fmt.Fprintln(os.Stderr)
}

func phaseState(enabled bool) ui.BracketPart {
	if enabled {
		return ui.BracketPart{Text: "on ", Style: ui.PassStyle}
	}
	return ui.MutedBracket("off")
}

func joinPhases(phases []scan.Phase) string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
