// SPDX-License-Identifier: MPL-2.0

// Package dockerd prepares a container for running the Docker daemon inside
// it and hands control to the caller's command line: stale pid cleanup,
// kernel filesystem mounts, cgroup v2 delegation, cloud DNS detection, then
// the daemon itself in the background before exec'ing the payload.
package dockerd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

const (
	dockerPidFile     = "/var/run/docker.pid"
	containerdPidFile = "/var/run/docker-containerd.pid"

	resolvConfPath = "/etc/resolv.conf"

	// azureInternalDNS is the wireserver address that resolves Azure-internal
	// names when the container's search domain indicates an Azure network.
	azureInternalDNS = "168.63.129.16"
)

// azureSuffixPattern matches the search-domain suffixes Azure injects into
// resolv.conf inside its networks.
var azureSuffixPattern = regexp.MustCompile(`internal\.cloudapp\.net|reddog\.microsoft\.com`)

type (
	// Options controls daemon startup.
	Options struct {
		// LogPath receives the daemon's combined stdout and stderr.
		LogPath string

		// AzureDNSAutoDetection enables the resolv.conf suffix scan.
		AzureDNSAutoDetection bool

		// DockerdPath is the daemon binary; empty means PATH lookup.
		DockerdPath string
	}

	// Runtime executes the init sequence. The syscall surface is injected so
	// the pure decision logic is testable without privilege.
	Runtime struct {
		opts   Options
		logger *log.Logger

		mount      func(source, target, fstype string, flags uintptr, data string) error
		execve     func(argv0 string, argv, envv []string) error
		lookPath   func(file string) (string, error)
		geteuid    func() int
		cgroupRoot string
		// args is the process command line carried into the sudo re-exec.
		args []string
	}

	// RuntimeOption configures a Runtime.
	RuntimeOption func(*Runtime)
)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithCgroupRoot overrides the cgroup filesystem root (used by tests).
func WithCgroupRoot(root string) RuntimeOption {
	return func(r *Runtime) {
		r.cgroupRoot = root
	}
}

// DefaultOptions returns the standard daemon startup options.
func DefaultOptions() Options {
	return Options{
		LogPath:               "/tmp/dockerd.log",
		AzureDNSAutoDetection: true,
	}
}

// NewRuntime creates a Runtime with production syscall bindings.
func NewRuntime(opts Options, options ...RuntimeOption) *Runtime {
	r := &Runtime{
		opts:       opts,
		logger:     log.Default(),
		mount:      unix.Mount,
		execve:     unix.Exec,
		lookPath:   exec.LookPath,
		geteuid:    os.Geteuid,
		cgroupRoot: "/sys/fs/cgroup",
		args:       os.Args,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Init runs the full sequence and, on success, never returns: the process
// image is replaced by argv. An empty argv degenerates to a long sleep so the
// container stays alive with only the daemon running.
func (r *Runtime) Init(ctx context.Context, argv []string) error {
	if r.geteuid() != 0 {
		return r.reexecWithSudo()
	}

	r.cleanStalePidFiles()
	r.mountKernelFilesystems()

	if err := r.delegateCgroupV2(); err != nil {
		return err
	}

	args := []string{"dockerd"}
	if r.opts.AzureDNSAutoDetection && resolvConfNeedsAzureDNS(resolvConfPath) {
		r.logger.Info("cloud network detected, pointing daemon at internal DNS",
			"dns", azureInternalDNS)
		args = append(args, "--dns", azureInternalDNS)
	}

	if err := r.startDaemon(args); err != nil {
		return err
	}

	return r.execPayload(argv)
}

// reexecWithSudo replaces the process with a sudo re-invocation of the
// original command line so the privileged half runs once, as root. The full
// os.Args tail is carried over so flags survive the escalation.
func (r *Runtime) reexecWithSudo() error {
	sudo, err := r.lookPath("sudo")
	if err != nil {
		return fmt.Errorf("superuser privilege required and sudo not found: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating own binary: %w", err)
	}

	full := append([]string{sudo, self}, r.args[1:]...)
	return r.execve(sudo, full, os.Environ())
}

// cleanStalePidFiles removes pid files a previous container run left behind;
// dockerd refuses to start while they exist.
func (r *Runtime) cleanStalePidFiles() {
	for _, pidFile := range []string{dockerPidFile, containerdPidFile} {
		if err := os.Remove(pidFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("could not remove stale pid file", "path", pidFile, "err", err)
		}
	}
}

// mountKernelFilesystems mounts securityfs and a writable /tmp when absent.
// Both are warn-only: a read-only or restricted kernel surface degrades
// functionality but does not block the daemon.
func (r *Runtime) mountKernelFilesystems() {
	err := r.mount("securityfs", "/sys/kernel/security", "securityfs", 0, "")
	if err != nil && !errors.Is(err, unix.EBUSY) {
		r.logger.Warn("could not mount securityfs; AppArmor detection unavailable", "err", err)
	}

	if !mountpointActive("/tmp") {
		if err := r.mount("tmpfs", "/tmp", "tmpfs", 0, ""); err != nil {
			r.logger.Warn("could not mount /tmp tmpfs", "err", err)
		}
	}
}

// startDaemon launches dockerd detached, with output appended to the log
// file, in its own session so payload signals do not reach it. The daemon
// must outlive this process, so it is deliberately not context-bound.
func (r *Runtime) startDaemon(args []string) error {
	name := r.opts.DockerdPath
	if name == "" {
		resolved, err := r.lookPath("dockerd")
		if err != nil {
			return fmt.Errorf("dockerd not found on PATH: %w", err)
		}
		name = resolved
	}

	logFile, err := os.OpenFile(r.opts.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening daemon log %s: %w", r.opts.LogPath, err)
	}
	defer func() { _ = logFile.Close() }() // daemon holds its own copy of the fd

	cmd := exec.Command(name, args[1:]...) //nolint:gosec // resolved daemon path
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting dockerd: %w", err)
	}

	r.logger.Info("dockerd started", "pid", cmd.Process.Pid, "log", r.opts.LogPath)

	// Detach: the daemon outlives this process after the exec handoff.
	return cmd.Process.Release()
}

// execPayload replaces the current process with the caller's command line.
// There is no readiness barrier; payloads that need the daemon poll the
// socket themselves.
func (r *Runtime) execPayload(argv []string) error {
	if len(argv) == 0 {
		argv = []string{"sleep", "infinity"}
	}

	path, err := r.lookPath(argv[0])
	if err != nil {
		return fmt.Errorf("payload %s not found: %w", argv[0], err)
	}

	if err := r.execve(path, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}

// resolvConfNeedsAzureDNS reports whether the resolver configuration carries
// an Azure-internal search suffix.
func resolvConfNeedsAzureDNS(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return azureSuffixPattern.Match(data)
}

// mountpointActive reports whether path appears as a mount point in the
// process's mountinfo.
func mountpointActive(path string) bool {
	data, err := os.ReadFile("/proc/self/mountinfo")
	if err != nil {
		return false
	}
	return mountinfoLists(data, path)
}

// mountinfoLists scans mountinfo content (field 5 of each line is the mount
// point) for an exact match of path.
func mountinfoLists(data []byte, path string) bool {
	want := filepath.Clean(path)
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 5 && fields[4] == want {
			return true
		}
	}
	return false
}
