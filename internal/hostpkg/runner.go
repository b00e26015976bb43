// SPDX-License-Identifier: MPL-2.0

// Package hostpkg drives the host's packaging tools (apt, dpkg, adduser,
// update-alternatives) through an injectable command seam so the
// orchestration logic is testable without a real package manager.
package hostpkg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of fake implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures a Runner.
	Option func(*Runner)

	// Runner executes packaging commands. Every apt invocation carries
	// DEBIAN_FRONTEND=noninteractive in its own environment rather than
	// exporting it process-wide.
	Runner struct {
		execCommand ExecCommandFunc
		logger      *log.Logger
		aptListsDir string
	}
)

// WithExecCommand injects a command factory (used by tests).
func WithExecCommand(f ExecCommandFunc) Option {
	return func(r *Runner) {
		r.execCommand = f
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithAptListsDir overrides the apt index cache directory (used by tests).
func WithAptListsDir(dir string) Option {
	return func(r *Runner) {
		r.aptListsDir = dir
	}
}

// NewRunner creates a Runner with production defaults.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		execCommand: exec.CommandContext,
		logger:      log.Default(),
		aptListsDir: "/var/lib/apt/lists",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureIndex refreshes the apt package index, but only when the index cache
// directory is effectively empty, never unconditionally, to avoid redundant
// network calls across repeated invocations within one build.
func (r *Runner) EnsureIndex(ctx context.Context) error {
	if !r.indexEmpty() {
		r.logger.Debug("apt index cache present, skipping refresh")
		return nil
	}

	r.logger.Info("refreshing apt package index")
	return r.runApt(ctx, "apt-get", "update")
}

// RefreshIndex unconditionally refreshes the apt package index. Used after
// new source lists are written.
func (r *Runner) RefreshIndex(ctx context.Context) error {
	return r.runApt(ctx, "apt-get", "update")
}

// indexEmpty reports whether the lists directory contains no fetched index
// files (dotfiles and the partial/ scratch dir do not count).
func (r *Runner) indexEmpty() bool {
	entries, err := os.ReadDir(r.aptListsDir)
	if err != nil {
		return true
	}
	for _, e := range entries {
		name := e.Name()
		if name == "partial" || name == "auxfiles" || name == "lock" || strings.HasPrefix(name, ".") {
			continue
		}
		return false
	}
	return true
}

// ListVersions returns the available versions of pkg in apt's own preference
// order (most preferred first), as printed by apt-cache madison.
func (r *Runner) ListVersions(ctx context.Context, pkg string) ([]string, error) {
	out, err := r.output(ctx, "apt-cache", "madison", pkg)
	if err != nil {
		return nil, fmt.Errorf("listing versions of %s: %w", pkg, err)
	}
	return parseMadison(out), nil
}

// parseMadison extracts the version column from madison output lines of the
// form "  docker-ce | 5:24.0.2-1~ubuntu.22.04~jammy | https://... ".
func parseMadison(out string) []string {
	var versions []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, "|")
		if len(fields) < 2 {
			continue
		}
		v := strings.TrimSpace(fields[1])
		if v != "" {
			versions = append(versions, v)
		}
	}
	return versions
}

// Install installs the given packages (already pinned as pkg=version where a
// specific version is wanted) without recommends.
func (r *Runner) Install(ctx context.Context, pkgs ...string) error {
	args := append([]string{"install", "-y", "--no-install-recommends"}, pkgs...)
	if err := r.runApt(ctx, "apt-get", args...); err != nil {
		return fmt.Errorf("installing %s: %w", strings.Join(pkgs, " "), err)
	}
	return nil
}

// InstallPip installs a Python package via pip3, pulling pip3 itself in via
// apt first when absent. Used only where no published binary exists for the
// host architecture.
func (r *Runner) InstallPip(ctx context.Context, pkg string) error {
	if !r.BinaryPresent("pip3") {
		if err := r.Install(ctx, "python3-pip"); err != nil {
			return err
		}
	}
	if err := r.run(ctx, "pip3", "install", "--no-cache-dir", pkg); err != nil {
		return fmt.Errorf("pip installing %s: %w", pkg, err)
	}
	return nil
}

// PackageInstalled reports whether the package is in the installed state.
func (r *Runner) PackageInstalled(ctx context.Context, pkg string) bool {
	out, err := r.output(ctx, "dpkg", "-s", pkg)
	if err != nil {
		return false
	}
	return strings.Contains(out, "Status: install ok installed")
}

// BinaryPresent reports whether an executable with the given name is on PATH.
func (r *Runner) BinaryPresent(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// runApt runs an apt-family command with the non-interactive frontend marker
// attached to this command only.
func (r *Runner) runApt(ctx context.Context, name string, args ...string) error {
	cmd := r.execCommand(ctx, name, args...)
	// Preserve any environment the command factory set (the test seam does).
	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(env, "DEBIAN_FRONTEND=noninteractive")
	return r.runLogged(cmd)
}

// run executes a command, capturing stderr for error reporting.
func (r *Runner) run(ctx context.Context, name string, args ...string) error {
	return r.runLogged(r.execCommand(ctx, name, args...))
}

func (r *Runner) runLogged(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Debug("exec", "cmd", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", cmd.Args[0], err, msg)
		}
		return fmt.Errorf("%s: %w", cmd.Args[0], err)
	}
	return nil
}

// output executes a command and returns its stdout.
func (r *Runner) output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := r.execCommand(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("exec", "cmd", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", cmd.Args[0], err, msg)
		}
		return "", fmt.Errorf("%s: %w", cmd.Args[0], err)
	}
	return stdout.String(), nil
}
