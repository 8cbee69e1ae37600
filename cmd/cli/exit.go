package main

import (
	"fmt"
	"os"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/ui"
)

// exitWithError prints a formatted error message and exits with the
// given code from pkg/defaults.
func exitWithError(code int, format string, args ...any) {
	ui.PrintError(fmt.Sprintf(format, args...))
	os.Exit(code)
}

// exitWithUsage prints an error plus a usage hint and exits as a user
// error.
func exitWithUsage(msg, usage string) {
	ui.PrintError(msg)
	ui.PrintHelp(fmt.Sprintf("Usage: %s", usage))
	os.Exit(defaults.ExitUserError)
}
