// SPDX-License-Identifier: MPL-2.0

// Package initscript generates the init wrapper script written at provision
// time and executed at container start. The script template is embedded; the
// rendered output is parsed with a real shell parser before being written so
// a bad substitution can never ship a broken entrypoint.
package initscript

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"text/template"

	"mvdan.cc/sh/v3/syntax"
)

//go:embed docker-init.sh.tmpl
var scriptTemplate string

// Params are the substitutions applied to the script template.
type Params struct {
	// LogPath receives the daemon's combined output.
	LogPath string
	// AzureDNSAutoDetection enables the cloud DNS suffix check.
	AzureDNSAutoDetection bool
}

// DefaultParams returns the standard wrapper parameters.
func DefaultParams() Params {
	return Params{
		LogPath:               "/tmp/dockerd.log",
		AzureDNSAutoDetection: true,
	}
}

// Installed reports whether the wrapper already exists at path. Its presence
// is the setup-complete sentinel: provisioning short-circuits user/group
// configuration and generation when it is found.
func Installed(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Generate renders the wrapper and writes it to path with mode 0755, owned
// by owner and the root group. An existing file at path is left untouched
// (the not-installed -> installed transition is one-way). An empty owner
// skips the ownership change.
func Generate(path string, p Params, owner string) error {
	if Installed(path) {
		return nil
	}

	script, err := Render(p)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, script, 0o755); err != nil { //nolint:gosec // entrypoint script must be executable
		return fmt.Errorf("writing init script: %w", err)
	}

	if owner != "" {
		if err := chownToUser(path, owner); err != nil {
			return err
		}
	}
	return nil
}

// Render produces the script bytes for the given parameters and validates
// them with a POSIX shell parser.
func Render(p Params) ([]byte, error) {
	tmpl, err := template.New("docker-init.sh").Parse(scriptTemplate)
	if err != nil {
		return nil, fmt.Errorf("internal error: parsing script template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]string{
		"LogPath":               p.LogPath,
		"AzureDNSAutoDetection": strconv.FormatBool(p.AzureDNSAutoDetection),
	}); err != nil {
		return nil, fmt.Errorf("rendering init script: %w", err)
	}

	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(bytes.NewReader(buf.Bytes()), "docker-init.sh"); err != nil {
		return nil, fmt.Errorf("rendered init script is not valid shell: %w", err)
	}

	return buf.Bytes(), nil
}

// chownToUser sets ownership to owner's uid and the root group.
func chownToUser(path, owner string) error {
	u, err := user.Lookup(owner)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", owner, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("non-numeric uid %q for %s: %w", u.Uid, owner, err)
	}

	if err := os.Chown(path, uid, 0); err != nil {
		return fmt.Errorf("setting ownership of init script: %w", err)
	}
	return nil
}
