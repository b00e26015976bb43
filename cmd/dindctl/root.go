// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for dindctl.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"dind-cli/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug-level logging
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "dindctl",
		Short: "Docker-in-Docker provisioning and runtime",
		Long: TitleStyle.Render("dindctl") + SubtitleStyle.Render(" - Docker-in-Docker provisioning and runtime") + `

dindctl installs a working Docker engine inside a container image build
and starts it at container runtime: engine and CLI packages (Moby or
Docker CE), the compose tooling generation mix (v2 plugin, standalone
v1, compose-switch shim), non-root access for a chosen user, and the
init sequence a nested daemon needs (kernel mounts, cgroup delegation,
cloud DNS detection).

` + SubtitleStyle.Render("Typical use:") + `
  Build phase:    dindctl install
  Runtime phase:  dindctl init -- <your command>

` + SubtitleStyle.Render("Examples:") + `
  dindctl install                        Install with defaults
  dindctl install true vscode true 24.0  Positional overrides
  dindctl resolve engine 24.0            Dry-run a version selector
  dindctl init -- sleep infinity         Start the daemon, then exec
  dindctl doctor                         Verify the daemon answers`,
	}
)

func init() {
	cobra.OnInitialize(initLogging)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/dindctl/config.cue)")

	// Add subcommands
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(doctorCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initLogging raises the default logger to debug level when requested.
func initLogging() {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
