// SPDX-License-Identifier: MPL-2.0

// Package installer applies the resolved provisioning plan: engine/CLI
// packages from the selected apt family, compose tooling from GitHub
// releases, non-root access configuration, and the init wrapper script.
// Every unit is independently existence-checked so re-runs skip what is
// already in place instead of reinstalling it.
package installer

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"dind-cli/internal/config"
	"dind-cli/internal/ghrelease"
	"dind-cli/internal/hostpkg"
	"dind-cli/internal/hostver"
	"dind-cli/internal/initscript"
	"dind-cli/internal/issue"
	"dind-cli/internal/platform"

	"github.com/charmbracelet/log"
)

// buildMetadataURL is polled once per run for build telemetry settings.
// The fetch is best-effort; provisioning never depends on its contents.
const buildMetadataURL = "https://aka.ms/vscode-dev-containers/script-library/settings.env"

type (
	// Option configures an Installer.
	Option func(*Installer)

	// Installer owns one provisioning run. Collaborators are injected so the
	// orchestration is testable without apt, GitHub, or root privilege.
	Installer struct {
		opts       config.Options
		host       platform.Host
		family     hostpkg.Family
		username   string
		runner     *hostpkg.Runner
		gh         *ghrelease.Client
		httpClient *http.Client
		logger     *log.Logger
	}
)

// WithRunner injects the packaging command runner.
func WithRunner(r *hostpkg.Runner) Option {
	return func(i *Installer) {
		i.runner = r
	}
}

// WithGitHubClient injects the release client.
func WithGitHubClient(c *ghrelease.Client) Option {
	return func(i *Installer) {
		i.gh = c
	}
}

// WithHTTPClient injects the client used for non-GitHub fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(i *Installer) {
		i.httpClient = c
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(i *Installer) {
		i.logger = l
	}
}

// New creates an Installer for the given options, host, and resolved
// username.
func New(opts config.Options, host platform.Host, username string, options ...Option) *Installer {
	i := &Installer{
		opts:     opts,
		host:     host,
		family:   hostpkg.SelectFamily(opts.UseMoby, host),
		username: username,
		logger:   log.Default(),
	}
	for _, opt := range options {
		opt(i)
	}
	if i.runner == nil {
		i.runner = hostpkg.NewRunner(hostpkg.WithLogger(i.logger))
	}
	if i.gh == nil {
		i.gh = ghrelease.NewClient()
	}
	if i.httpClient == nil {
		i.httpClient = http.DefaultClient
	}
	return i
}

// Run executes the full provisioning plan.
func (i *Installer) Run(ctx context.Context) error {
	// The architecture gate runs before anything touches the host.
	if _, err := platform.ComposeArch(i.host.Arch); err != nil {
		return err
	}

	return execute(ctx, i.logger, []Step{
		{Name: "fetch build metadata", BestEffort: true, Run: i.fetchBuildMetadata},
		{Name: "refresh package index", BestEffort: true, Run: i.runner.EnsureIndex},
		{Name: "install engine and cli", Run: i.installEngine},
		{Name: "install compose plugin", Run: i.installComposePlugin},
		{Name: "install compose v1", Run: i.installComposeV1},
		{Name: "install compose switch", Run: i.installComposeSwitch},
		{Name: "configure non-root access", Run: i.configureNonRoot},
		{Name: "generate init script", Run: i.generateInitScript},
	})
}

// fetchBuildMetadata polls the settings endpoint. Contents are discarded;
// only reachability is interesting, and even that is tolerated failing.
func (i *Installer) fetchBuildMetadata(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, buildMetadataURL, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close() // contents unused
	return nil
}

// installEngine configures the family repository and installs the engine and
// CLI packages at the requested version. Both packages must resolve; a
// partial pair is a hard error, never a silent fallback.
func (i *Installer) installEngine(ctx context.Context) error {
	if i.runner.PackageInstalled(ctx, i.family.EnginePkg) && i.runner.PackageInstalled(ctx, i.family.CLIPkg) {
		i.logger.Info("engine and cli already installed, skipping",
			"engine", i.family.EnginePkg, "cli", i.family.CLIPkg)
		return nil
	}

	if err := i.runner.ConfigureRepository(ctx, i.family, i.host, i.httpClient); err != nil {
		return err
	}

	enginePin, err := i.resolvePackagePin(ctx, i.family.EnginePkg, i.opts.EngineVersion)
	if err != nil {
		return err
	}
	cliPin, err := i.resolvePackagePin(ctx, i.family.CLIPkg, i.opts.EngineVersion)
	if err != nil {
		return err
	}

	if err := i.runner.Install(ctx, enginePin, cliPin); err != nil {
		return err
	}

	// Companion plugin packages are nice-to-have: not every channel carries
	// them for every release.
	for _, pkg := range []string{i.family.BuildxPkg, i.family.ComposePkg} {
		if pkg == "" {
			continue
		}
		if err := i.runner.Install(ctx, pkg); err != nil {
			i.logger.Warn("optional plugin package unavailable", "pkg", pkg, "err", err)
		}
	}
	return nil
}

// resolvePackagePin resolves the requested version against the package
// repository listing and returns the pkg=version pin.
func (i *Installer) resolvePackagePin(ctx context.Context, pkg, requested string) (string, error) {
	available, err := i.runner.ListVersions(ctx, pkg)
	if err != nil {
		return "", err
	}

	resolved, err := hostver.ResolveDeb(requested, available)
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("resolve engine version").
			WithResource(pkg).
			WithSuggestion("Pass an explicit version prefix such as 24.0, or 'latest'").
			Wrap(err).
			BuildError()
	}

	i.logger.Info("resolved package version", "pkg", pkg, "version", resolved)
	return pkg + "=" + resolved, nil
}

// configureNonRoot creates the docker group and adds the resolved user. The
// init-script sentinel short-circuits this step entirely on re-runs.
func (i *Installer) configureNonRoot(ctx context.Context) error {
	if initscript.Installed(i.opts.InitScriptPath) {
		i.logger.Info("init script present, skipping user/group configuration")
		return nil
	}
	if !i.opts.EnableNonRootDocker {
		return nil
	}

	if err := i.runner.EnsureGroup(ctx, "docker"); err != nil {
		return err
	}
	return i.runner.AddUserToGroup(ctx, i.username, "docker")
}

// generateInitScript writes the wrapper script and, when enabled, the rc
// export line. Generation is sentinel-guarded inside the initscript package.
func (i *Installer) generateInitScript(context.Context) error {
	params := initscript.DefaultParams()
	params.AzureDNSAutoDetection = i.opts.AzureDNSAutoDetection

	owner := ""
	if i.opts.EnableNonRootDocker {
		owner = i.username
	}
	if err := initscript.Generate(i.opts.InitScriptPath, params, owner); err != nil {
		return err
	}

	if !i.opts.UpdateRC {
		return nil
	}
	for _, rc := range []string{"/etc/bash.bashrc", "/etc/zsh/zshrc"} {
		if _, err := os.Stat(filepath.Dir(rc)); err != nil {
			continue
		}
		if err := initscript.AppendRCLine(rc, "export DOCKER_BUILDKIT=1"); err != nil {
			i.logger.Warn("could not update rc file", "path", rc, "err", err)
		}
	}
	return nil
}

// skipUnit reports whether selector is the skip sentinel, logging when so.
func (i *Installer) skipUnit(unit, selector string) bool {
	if selector == config.SkipSentinel || selector == "" {
		i.logger.Info("unit skipped by request", "unit", unit)
		return true
	}
	return false
}

// alreadyPresent reports whether a previously installed binary exists at
// path, logging the skip.
func (i *Installer) alreadyPresent(unit, path string) bool {
	if _, err := os.Stat(path); err == nil {
		i.logger.Info("already installed, skipping", "unit", unit, "path", path)
		return true
	}
	return false
}

// composePluginPath is the final location of the compose v2 CLI plugin.
func (i *Installer) composePluginPath() string {
	return filepath.Join(i.opts.CLIPluginsDir, "docker-compose")
}
