// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dind-cli/internal/checksum"
	"dind-cli/internal/hostpkg"
	"dind-cli/internal/hostver"
	"dind-cli/internal/issue"
	"dind-cli/internal/platform"
)

const (
	composeRepo       = "docker/compose"
	composeSwitchRepo = "docker/compose-switch"
)

// installComposePlugin resolves and installs the compose v2 CLI plugin from
// its release artifacts, verifying the published sha256 before the binary
// reaches the plugins directory.
func (i *Installer) installComposePlugin(ctx context.Context) error {
	if i.skipUnit("compose plugin", i.opts.ComposeVersion) {
		return nil
	}
	dest := i.composePluginPath()
	if i.alreadyPresent("compose plugin", dest) {
		return nil
	}

	tag, err := i.resolveReleaseTag(ctx, composeRepo, i.opts.ComposeVersion)
	if err != nil {
		return err
	}

	suffix, err := platform.ComposeArch(i.host.Arch)
	if err != nil {
		return err
	}
	artifact := "docker-compose-linux-" + suffix

	if err := os.MkdirAll(i.opts.CLIPluginsDir, 0o755); err != nil {
		return fmt.Errorf("creating plugins directory: %w", err)
	}
	if err := i.downloadVerified(ctx, composeRepo, tag, artifact, artifact+".sha256", dest); err != nil {
		return err
	}

	i.logger.Info("installed compose plugin", "version", tag, "path", dest)
	return nil
}

// installComposeV1 installs the standalone v1 binary. On the reference
// architecture the published binary and its sha256 are used; elsewhere v1 was
// only ever distributed through pip, which carries no checksum pairing. That
// gap is logged, not hidden.
func (i *Installer) installComposeV1(ctx context.Context) error {
	if i.skipUnit("compose v1", i.opts.ComposeV1Version) {
		return nil
	}
	dest := filepath.Join(i.opts.BinDir, "docker-compose")
	if i.alreadyPresent("compose v1", dest) {
		return nil
	}

	if !platform.IsReferenceArch(i.host.Arch) {
		i.logger.Warn("no published compose v1 binary for this architecture, using pip",
			"arch", i.host.Arch)
		return i.runner.InstallPip(ctx, "docker-compose")
	}

	// v1 tags carry no prefix, unlike the v2 line in the same repository, so
	// every selector (including "1" and "latest") resolves against the bare
	// tags only.
	tags, err := i.gh.ListTags(ctx, composeRepo)
	if err != nil {
		return err
	}
	bare := hostver.ExtractVersions(tags, hostver.TagScheme{Prefix: "", Separator: "."})
	version, err := hostver.ResolveTag(i.opts.ComposeV1Version, bare)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("resolve compose v1 version").
			WithResource(composeRepo).
			WithSuggestion("Pass an explicit v1 version such as 1.29, or '1'").
			Wrap(err).
			BuildError()
	}

	artifact := "docker-compose-Linux-x86_64"
	if err := i.downloadVerified(ctx, composeRepo, version, artifact, artifact+".sha256", dest); err != nil {
		return err
	}

	i.logger.Info("installed compose v1", "version", version, "path", dest)
	return nil
}

// installComposeSwitch installs the compose-switch shim and, when a v1 binary
// coexists, renames it aside and registers both through the alternatives
// mechanism so plain docker-compose dispatches to the shim.
//
// The shim project publishes no checksum file alongside its binaries, so this
// is the one download that cannot be verified.
func (i *Installer) installComposeSwitch(ctx context.Context) error {
	if i.skipUnit("compose switch", i.opts.ComposeSwitchVersion) {
		return nil
	}
	dest := filepath.Join(i.opts.BinDir, "compose-switch")
	if i.alreadyPresent("compose switch", dest) {
		return nil
	}

	tag, err := i.resolveReleaseTag(ctx, composeSwitchRepo, i.opts.ComposeSwitchVersion)
	if err != nil {
		return err
	}

	artifact := "docker-compose-linux-" + i.host.Arch
	if err := i.downloadUnverified(ctx, composeSwitchRepo, tag, artifact, dest); err != nil {
		return err
	}

	composePath := filepath.Join(i.opts.BinDir, "docker-compose")
	v1Path := filepath.Join(i.opts.BinDir, "docker-compose-v1")
	if _, err := os.Stat(composePath); err == nil {
		if err := os.Rename(composePath, v1Path); err != nil {
			return fmt.Errorf("renaming compose v1 aside: %w", err)
		}
		if err := i.runner.RegisterAlternative(ctx, composePath, "docker-compose", v1Path, hostpkg.ComposeV1Priority); err != nil {
			return err
		}
	}
	if err := i.runner.RegisterAlternative(ctx, composePath, "docker-compose", dest, hostpkg.ComposeSwitchPriority); err != nil {
		return err
	}

	i.logger.Info("installed compose switch", "version", tag, "path", dest)
	return nil
}

// resolveReleaseTag lists the repository's tags and resolves the selector
// against the versions they encode. The returned value is the tag itself
// (v-prefixed), ready for a download URL.
func (i *Installer) resolveReleaseTag(ctx context.Context, repo, requested string) (string, error) {
	tags, err := i.gh.ListTags(ctx, repo)
	if err != nil {
		return "", err
	}

	versions := hostver.ExtractVersions(tags, hostver.DefaultTagScheme)
	resolved, err := hostver.ResolveTag(requested, versions)
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("resolve release version").
			WithResource(repo).
			WithSuggestion("Pass an explicit version such as 2.17, or 'latest'").
			Wrap(err).
			BuildError()
	}
	return hostver.DefaultTagScheme.Prefix + resolved, nil
}

// downloadVerified fetches the artifact's checksum file, streams the artifact
// to a temp file beside its destination, verifies the digest, and only then
// renames it into place executable. A mismatch leaves nothing at dest.
func (i *Installer) downloadVerified(ctx context.Context, repo, tag, artifact, checksumName, dest string) error {
	sums, err := i.fetchChecksums(ctx, repo, tag, checksumName)
	if err != nil {
		return err
	}

	tmp, err := i.downloadToTemp(ctx, repo, tag, artifact, dest)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }() // no-op after a successful rename

	if err := checksum.VerifyAgainst(tmp, artifact, bytes.NewReader(sums)); err != nil {
		return err
	}

	return promote(tmp, dest)
}

// downloadUnverified streams the artifact to a temp file and renames it into
// place without checksum verification.
func (i *Installer) downloadUnverified(ctx context.Context, repo, tag, artifact, dest string) error {
	tmp, err := i.downloadToTemp(ctx, repo, tag, artifact, dest)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	return promote(tmp, dest)
}

// fetchChecksums downloads the checksum file for one artifact. Release lines
// differ in layout: some publish a per-artifact "<name>.sha256", older ones a
// combined "checksums.txt". Both are tried, per-artifact first.
func (i *Installer) fetchChecksums(ctx context.Context, repo, tag, checksumName string) ([]byte, error) {
	body, err := i.gh.DownloadAsset(ctx, i.gh.DownloadURL(repo, tag, checksumName))
	if err != nil {
		var fallbackErr error
		body, fallbackErr = i.gh.DownloadAsset(ctx, i.gh.DownloadURL(repo, tag, "checksums.txt"))
		if fallbackErr != nil {
			return nil, fmt.Errorf("no checksum file for %s %s: %w", repo, tag, err)
		}
	}
	defer func() { _ = body.Close() }()

	sums, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading checksum file: %w", err)
	}
	return sums, nil
}

// downloadToTemp streams the artifact into a temp file in dest's directory so
// the final promotion is a same-filesystem rename.
func (i *Installer) downloadToTemp(ctx context.Context, repo, tag, artifact, dest string) (string, error) {
	body, err := i.gh.DownloadAsset(ctx, i.gh.DownloadURL(repo, tag, artifact))
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("downloading %s: %w", artifact, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return f.Name(), nil
}

// promote moves a verified temp file to its final path, executable.
func promote(tmp, dest string) error {
	if err := os.Chmod(tmp, 0o755); err != nil {
		return fmt.Errorf("marking %s executable: %w", dest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("installing %s: %w", dest, err)
	}
	return nil
}
