// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"dind-cli/internal/dockerd"

	"github.com/spf13/cobra"
)

var (
	initLogPath string
	initNoAzure bool
)

var initCmd = &cobra.Command{
	Use:   "init [-- command [args...]]",
	Short: "Start the daemon and exec the given command",
	Long: `Init prepares the container for a nested Docker daemon and starts it:
stale pid files are removed, securityfs and a writable /tmp are mounted,
cgroup v2 controllers are delegated, cloud-internal DNS is detected, and
dockerd launches in the background with its output in the log file.

On success the process is replaced by the given command line, so init
works as a container entrypoint wrapper. Without a command the process
sleeps forever, keeping only the daemon alive.`,
	Example: `  # As an entrypoint, keeping the container alive
  dindctl init

  # Wrap the real workload
  dindctl init -- npm start`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true

		opts := dockerd.DefaultOptions()
		if initLogPath != "" {
			opts.LogPath = initLogPath
		}
		opts.AzureDNSAutoDetection = !initNoAzure

		if os.Geteuid() != 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), noticeNotRoot())
		}

		rt := dockerd.NewRuntime(opts)
		if err := rt.Init(cmd.Context(), args); err != nil {
			return fail(err)
		}
		return nil
	},
}

// noticeNotRoot is the message shown before the runtime escalates via sudo.
func noticeNotRoot() string {
	return WarningStyle.Render("Warning: ") + "not running as root, re-executing through sudo"
}

func init() {
	initCmd.Flags().StringVar(&initLogPath, "log", "", "daemon log file (default /tmp/dockerd.log)")
	initCmd.Flags().BoolVar(&initNoAzure, "no-azure-dns", false, "disable cloud DNS auto-detection")
}
