// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"dind-cli/internal/config"
	"dind-cli/internal/installer"
	"dind-cli/internal/platform"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install [enable-nonroot] [username] [use-moby] [engine-version] [compose-version] [compose-switch-version] [compose-v1-version]",
	Short: "Install the engine, CLI, and compose tooling",
	Long: `Install provisions the container image: engine and CLI packages from
the selected family, compose tooling from release artifacts (verified
against their published checksums), non-root daemon access, and the
generated init wrapper script.

Positional arguments follow the historical order and override both the
config file and environment variables. An empty string leaves a
position at its configured value; the selector "none" skips a unit.`,
	Args: cobra.MaximumNArgs(7),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true

		if err := platform.RequireRoot(); err != nil {
			return fail(err)
		}

		opts, err := config.Load(cmd.Context(), config.LoadOptions{
			ConfigFilePath: cfgFile,
			Args:           args,
		})
		if err != nil {
			return fail(err)
		}

		host, err := platform.Detect()
		if err != nil {
			return fail(err)
		}

		username := config.ResolveUsername(opts.Username, config.SystemUserLookup{})

		inst := installer.New(opts, host, username,
			installer.WithGitHubClient(newGitHubClient()))
		if err := inst.Run(cmd.Context()); err != nil {
			return fail(err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Done!"))
		return nil
	},
}

// fail prints the error through the actionable formatter and converts it to
// the command's single failure exit code.
func fail(err error) error {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
	return &ExitError{Code: 1, Err: err}
}
