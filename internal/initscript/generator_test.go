// SPDX-License-Identifier: MPL-2.0

package initscript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRender_ValidPOSIXShell(t *testing.T) {
	t.Parallel()

	script, err := Render(DefaultParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := string(script)
	if !strings.HasPrefix(out, "#!/bin/sh") {
		t.Error("script must start with a sh shebang")
	}
	if !strings.Contains(out, "dockerd") {
		t.Error("script must start dockerd")
	}
	if !strings.Contains(out, `exec "$@"`) {
		t.Error("script must exec the caller's command")
	}
	if !strings.Contains(out, "/tmp/dockerd.log") {
		t.Error("daemon output must go to the configured log path")
	}
}

func TestRender_DNSDetectionToggle(t *testing.T) {
	t.Parallel()

	on, err := Render(Params{LogPath: "/tmp/dockerd.log", AzureDNSAutoDetection: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(on), `"true" = "true"`) {
		t.Error("enabled detection should render a passing guard")
	}

	off, err := Render(Params{LogPath: "/tmp/dockerd.log", AzureDNSAutoDetection: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(off), `"false" = "true"`) {
		t.Error("disabled detection should render a failing guard")
	}
	// The override address is always in the template; the guard decides use.
	if !strings.Contains(string(off), "168.63.129.16") {
		t.Error("override DNS address missing from template")
	}
}

func TestGenerate_WritesExecutable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "docker-init.sh")
	if err := Generate(path, DefaultParams(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}
	if !Installed(path) {
		t.Error("Installed should report true after Generate")
	}
}

func TestGenerate_SentinelShortCircuits(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "docker-init.sh")
	original := []byte("#!/bin/sh\n# operator-modified\n")
	if err := os.WriteFile(path, original, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := Generate(path, DefaultParams(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(original) {
		t.Error("existing script must not be regenerated")
	}
}

func TestInstalled_MissingFile(t *testing.T) {
	t.Parallel()

	if Installed(filepath.Join(t.TempDir(), "nope.sh")) {
		t.Error("Installed must be false for a missing file")
	}
}

func TestAppendRCLine_Idempotent(t *testing.T) {
	t.Parallel()

	rc := filepath.Join(t.TempDir(), ".bashrc")
	line := `export DOCKER_BUILDKIT=1`

	for i := 0; i < 3; i++ {
		if err := AppendRCLine(rc, line); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}

	data, err := os.ReadFile(rc)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), line); got != 1 {
		t.Errorf("line appears %d times, want 1:\n%s", got, data)
	}
}

func TestAppendRCLine_PreservesExistingContent(t *testing.T) {
	t.Parallel()

	rc := filepath.Join(t.TempDir(), ".zshrc")
	if err := os.WriteFile(rc, []byte("alias ll='ls -l'"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := AppendRCLine(rc, "export DOCKER_BUILDKIT=1"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "alias ll='ls -l'\n") {
		t.Errorf("existing content lost or left without newline separation:\n%s", data)
	}
}
