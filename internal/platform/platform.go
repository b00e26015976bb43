// SPDX-License-Identifier: MPL-2.0

// Package platform detects the host operating system release and CPU
// architecture, and maps architecture tokens between the Debian naming
// scheme and the naming used by compose release artifacts.
package platform

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// osReleasePath is the standard location of the os-release file on
// systemd-era distributions. Overridable in tests.
const osReleasePath = "/etc/os-release"

var (
	// ErrUnsupportedArch indicates the host CPU architecture has no
	// corresponding compose release artifact.
	ErrUnsupportedArch = errors.New("unsupported architecture")

	// ErrNotRoot indicates the process is not running with superuser privilege.
	ErrNotRoot = errors.New("superuser privilege required")
)

// Host describes the detected host environment. Immutable once built.
type Host struct {
	// OSID is the distribution id from os-release (e.g., "ubuntu", "debian").
	OSID string
	// Codename is the release codename used in apt source lists (e.g., "jammy").
	Codename string
	// Arch is the Debian architecture token (e.g., "amd64", "arm64").
	Arch string
}

// composeArchSuffixes maps Debian architecture tokens to the suffix used in
// compose release artifact filenames.
var composeArchSuffixes = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
}

// Detect reads os-release and the dpkg architecture to describe the host.
func Detect() (Host, error) {
	id, codename, err := readOSRelease(osReleasePath)
	if err != nil {
		return Host{}, fmt.Errorf("reading os-release: %w", err)
	}

	return Host{
		OSID:     id,
		Codename: codename,
		Arch:     dpkgArchitecture(),
	}, nil
}

// ComposeArch maps a Debian architecture token to the compose artifact
// suffix. Unknown tokens return ErrUnsupportedArch; callers must treat this
// as fatal before any installation step runs.
func ComposeArch(arch string) (string, error) {
	suffix, ok := composeArchSuffixes[arch]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: amd64, arm64)", ErrUnsupportedArch, arch)
	}
	return suffix, nil
}

// IsReferenceArch reports whether arch is the reference architecture for
// which standalone compose v1 binaries are published with checksums.
func IsReferenceArch(arch string) bool {
	return arch == "amd64"
}

// RequireRoot returns ErrNotRoot unless the process runs with euid 0.
func RequireRoot() error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("%w: re-run as root (or via sudo)", ErrNotRoot)
	}
	return nil
}

// dpkgArchitecture asks dpkg for the host architecture, falling back to the
// compiled GOARCH when dpkg is unavailable. The two agree on amd64/arm64,
// which are the only supported tokens anyway.
func dpkgArchitecture() string {
	out, err := exec.Command("dpkg", "--print-architecture").Output()
	if err != nil {
		return runtime.GOARCH
	}
	arch := strings.TrimSpace(string(out))
	if arch == "" {
		return runtime.GOARCH
	}
	return arch
}

// readOSRelease extracts ID and VERSION_CODENAME from an os-release file.
func readOSRelease(path string) (id, codename string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return parseOSRelease(data)
}

// parseOSRelease scans os-release key=value lines. Values may be quoted.
func parseOSRelease(data []byte) (id, codename string, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.Trim(value, `"'`)

		switch key {
		case "ID":
			id = value
		case "VERSION_CODENAME":
			codename = value
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("scanning os-release: %w", err)
	}

	if id == "" {
		return "", "", errors.New("os-release has no ID field")
	}
	return id, codename, nil
}
