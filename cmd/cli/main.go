// Command wraithscan runs resilient security assessments against one or
// more targets, driving every scan phase through the shared guard stack
// (rate limiter, circuit breaker, retry controller) and the dependency
// aware scheduler.
package main

import (
	"fmt"
	"os"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/ui"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(defaults.ExitUserError)
	}

	switch os.Args[1] {
	case "assess":
		runAssess()
	case "profiles":
		runProfiles()
	case "version", "-v", "--version":
		ui.PrintMiniBanner()
	case "help", "-h", "--help":
		printUsage()
	default:
		ui.PrintError(fmt.Sprintf("unknown command: %s", os.Args[1]))
		printUsage()
		os.Exit(defaults.ExitUserError)
	}
}

func printUsage() {
	ui.PrintBanner()

	fmt.Fprintln(os.Stderr, ui.SectionStyle.Render("USAGE"))
	fmt.Fprintln(os.Stderr, "  wraithscan <command> [options]")
	fmt.Fprintln(os.Stderr)

	fmt.Fprintln(os.Stderr, ui.SectionStyle.Render("COMMANDS"))
	printCommand("assess", "Run a security assessment against one or more targets")
	printCommand("profiles", "List the built-in assessment profiles")
	printCommand("version", "Print version information")
	printCommand("help", "Show this help")
	fmt.Fprintln(os.Stderr)

	fmt.Fprintln(os.Stderr, ui.SectionStyle.Render("EXAMPLES"))
	printExample("wraithscan assess -targets example.com")
	printExample("wraithscan assess -targets api.example.com,admin.example.com -profile quick")
	printExample("wraithscan assess -targets example.com -profile-file ./custom.yaml -metrics-port 9090")
	printExample("wraithscan profiles")
	fmt.Fprintln(os.Stderr)

	fmt.Fprintln(os.Stderr, ui.HelpStyle.Render("  Run 'wraithscan <command> -h' for command-specific options."))
	fmt.Fprintln(os.Stderr)
}

func printCommand(name, desc string) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", ui.PhaseStyle.Width(12).Render(name), desc)
}

func printExample(line string) {
	fmt.Fprintf(os.Stderr, "  %s\n", ui.HelpStyle.Render(line))
}
