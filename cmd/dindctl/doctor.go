// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"dind-cli/internal/doctor"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify the daemon is reachable and responding",
	Long: `Doctor locates the daemon socket (DOCKER_HOST when set, otherwise the
standard socket path) and pings the daemon, reporting what answered.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true

		report, err := doctor.Check(cmd.Context())
		if err != nil {
			return fail(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, SuccessStyle.Render("Daemon is up"))
		fmt.Fprintln(out, SubtitleStyle.Render("  host:        ")+report.Host)
		fmt.Fprintln(out, SubtitleStyle.Render("  api version: ")+report.APIVersion)
		fmt.Fprintln(out, SubtitleStyle.Render("  os type:     ")+report.OSType)
		return nil
	},
}
