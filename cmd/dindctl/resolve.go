// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"dind-cli/internal/ghrelease"
	"dind-cli/internal/hostpkg"
	"dind-cli/internal/hostver"
	"dind-cli/internal/platform"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <unit> <selector>",
	Short: "Dry-run a version selector without installing anything",
	Long: `Resolve shows what a version selector would install. Units:

  engine          engine/CLI package version against the apt listing
  compose         compose v2 plugin against release tags
  compose-switch  compose-switch shim against release tags

The selector is a full version, a prefix ("24.0" matches 24.0.2 but
never 24.10.x), or latest/current/lts/stable for the newest.`,
	Example: `  dindctl resolve engine 24.0
  dindctl resolve compose latest
  dindctl resolve compose-switch 1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true

		unit, selector := args[0], args[1]

		resolved, err := resolveUnit(cmd, unit, selector)
		if err != nil {
			return fail(err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), CmdStyle.Render(unit)+" "+selector+" -> "+SuccessStyle.Render(resolved))
		return nil
	},
}

var resolveUseMoby bool

func init() {
	resolveCmd.Flags().BoolVar(&resolveUseMoby, "use-moby", true, "resolve engine against the moby family")
}

// resolveUnit runs the same resolution path the installer uses, minus any
// side effect.
func resolveUnit(cmd *cobra.Command, unit, selector string) (string, error) {
	ctx := cmd.Context()

	switch unit {
	case "engine":
		host, err := platform.Detect()
		if err != nil {
			return "", err
		}
		family := hostpkg.SelectFamily(resolveUseMoby, host)
		runner := hostpkg.NewRunner()
		available, err := runner.ListVersions(ctx, family.EnginePkg)
		if err != nil {
			return "", err
		}
		return hostver.ResolveDeb(selector, available)

	case "compose", "compose-switch":
		repo := "docker/compose"
		if unit == "compose-switch" {
			repo = "docker/compose-switch"
		}
		client := newGitHubClient()
		tags, err := client.ListTags(ctx, repo)
		if err != nil {
			return "", err
		}
		versions := hostver.ExtractVersions(tags, hostver.DefaultTagScheme)
		return hostver.ResolveTag(selector, versions)

	default:
		return "", fmt.Errorf("unknown unit %q (expected engine, compose, or compose-switch)", unit)
	}
}

// newGitHubClient builds the release client, attaching a token when one is
// available for higher rate limits (5000/hour vs 60/hour unauthenticated).
func newGitHubClient(extra ...ghrelease.ClientOption) *ghrelease.Client {
	opts := []ghrelease.ClientOption{ghrelease.WithUserAgent("dindctl/" + Version)}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		opts = append(opts, ghrelease.WithToken(token))
	}
	return ghrelease.NewClient(append(opts, extra...)...)
}
