// SPDX-License-Identifier: MPL-2.0

package hostpkg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"dind-cli/internal/platform"
)

type (
	// mockCommandRecorder captures arguments passed to the exec seam. It uses
	// the TestHelperProcess pattern to simulate command execution.
	mockCommandRecorder struct {
		invocations []mockInvocation
		exitCode    int
		stdout      string
	}

	mockInvocation struct {
		name string
		args []string
	}
)

func (m *mockCommandRecorder) commandFunc() ExecCommandFunc {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		m.invocations = append(m.invocations, mockInvocation{name: name, args: args})

		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...) //nolint:gosec // test helper pattern
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", m.exitCode),
			fmt.Sprintf("GO_HELPER_STDOUT=%s", m.stdout),
		}
		return cmd
	}
}

// TestHelperProcess is not a real test; it simulates external commands for
// the mock recorder.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	fmt.Fprint(os.Stdout, os.Getenv("GO_HELPER_STDOUT"))

	code := 0
	fmt.Sscanf(os.Getenv("GO_HELPER_EXIT_CODE"), "%d", &code) //nolint:errcheck // empty means 0
	os.Exit(code)
}

func TestParseMadison(t *testing.T) {
	t.Parallel()

	out := ` docker-ce | 5:24.0.2-1~ubuntu.22.04~jammy | https://download.docker.com/linux/ubuntu jammy/stable amd64 Packages
 docker-ce | 5:24.0.1-1~ubuntu.22.04~jammy | https://download.docker.com/linux/ubuntu jammy/stable amd64 Packages
`

	got := parseMadison(out)
	want := []string{"5:24.0.2-1~ubuntu.22.04~jammy", "5:24.0.1-1~ubuntu.22.04~jammy"}
	if !slices.Equal(got, want) {
		t.Errorf("parseMadison = %v, want %v", got, want)
	}
}

func TestParseMadison_Empty(t *testing.T) {
	t.Parallel()

	if got := parseMadison(""); len(got) != 0 {
		t.Errorf("parseMadison(\"\") = %v, want empty", got)
	}
}

func TestEnsureIndex_SkipsWhenCachePresent(t *testing.T) {
	t.Parallel()

	lists := t.TempDir()
	if err := os.WriteFile(filepath.Join(lists, "archive_ubuntu_Packages"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &mockCommandRecorder{}
	r := NewRunner(WithExecCommand(rec.commandFunc()), WithAptListsDir(lists))

	if err := r.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.invocations) != 0 {
		t.Errorf("apt-get update ran despite populated cache: %v", rec.invocations)
	}
}

func TestEnsureIndex_RefreshesWhenCacheEmpty(t *testing.T) {
	t.Parallel()

	lists := t.TempDir()
	// partial/ and lock are scratch entries, not index files.
	if err := os.Mkdir(filepath.Join(lists, "partial"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lists, "lock"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &mockCommandRecorder{}
	r := NewRunner(WithExecCommand(rec.commandFunc()), WithAptListsDir(lists))

	if err := r.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.invocations) != 1 || rec.invocations[0].name != "apt-get" {
		t.Fatalf("invocations = %v, want one apt-get update", rec.invocations)
	}
	if rec.invocations[0].args[0] != "update" {
		t.Errorf("args = %v", rec.invocations[0].args)
	}
}

func TestListVersions_ParsesMadisonOutput(t *testing.T) {
	t.Parallel()

	rec := &mockCommandRecorder{
		stdout: " moby-engine | 24.0.2-1 | https://packages.microsoft.com jammy main amd64\n",
	}
	r := NewRunner(WithExecCommand(rec.commandFunc()))

	versions, err := r.ListVersions(context.Background(), "moby-engine")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(versions) != 1 || versions[0] != "24.0.2-1" {
		t.Errorf("versions = %v", versions)
	}
	if rec.invocations[0].name != "apt-cache" || rec.invocations[0].args[0] != "madison" {
		t.Errorf("invocation = %v", rec.invocations[0])
	}
}

func TestInstall_PassesPinnedPackages(t *testing.T) {
	t.Parallel()

	rec := &mockCommandRecorder{}
	r := NewRunner(WithExecCommand(rec.commandFunc()))

	err := r.Install(context.Background(), "moby-engine=24.0.2-1", "moby-cli=24.0.2-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args := rec.invocations[0].args
	joined := strings.Join(args, " ")
	if !strings.HasPrefix(joined, "install -y --no-install-recommends") {
		t.Errorf("args = %v", args)
	}
	if !slices.Contains(args, "moby-engine=24.0.2-1") || !slices.Contains(args, "moby-cli=24.0.2-1") {
		t.Errorf("pinned packages missing from %v", args)
	}
}

func TestInstall_FailurePropagates(t *testing.T) {
	t.Parallel()

	rec := &mockCommandRecorder{exitCode: 100}
	r := NewRunner(WithExecCommand(rec.commandFunc()))

	if err := r.Install(context.Background(), "moby-engine"); err == nil {
		t.Fatal("expected error from failing apt-get")
	}
}

func TestRegisterAlternative_Args(t *testing.T) {
	t.Parallel()

	rec := &mockCommandRecorder{}
	r := NewRunner(WithExecCommand(rec.commandFunc()))

	err := r.RegisterAlternative(context.Background(),
		"/usr/local/bin/docker-compose", "docker-compose",
		"/usr/local/bin/compose-switch", ComposeSwitchPriority)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"--install", "/usr/local/bin/docker-compose", "docker-compose",
		"/usr/local/bin/compose-switch", "99"}
	if rec.invocations[0].name != "update-alternatives" || !slices.Equal(rec.invocations[0].args, want) {
		t.Errorf("invocation = %v, want update-alternatives %v", rec.invocations[0], want)
	}
}

func TestSelectFamily_RepoLines(t *testing.T) {
	t.Parallel()

	host := platform.Host{OSID: "ubuntu", Codename: "jammy", Arch: "amd64"}

	moby := SelectFamily(true, host)
	if moby.Name != "moby" || moby.EnginePkg != "moby-engine" {
		t.Errorf("moby family = %+v", moby)
	}
	line := moby.RepoLine(host)
	if !strings.Contains(line, "microsoft-ubuntu-jammy-prod") || !strings.Contains(line, "arch=amd64") {
		t.Errorf("moby repo line = %q", line)
	}

	ce := SelectFamily(false, host)
	if ce.KeyURL != "https://download.docker.com/linux/ubuntu/gpg" {
		t.Errorf("docker-ce key URL = %q", ce.KeyURL)
	}
	if !strings.Contains(ce.RepoLine(host), "https://download.docker.com/linux/ubuntu jammy stable") {
		t.Errorf("docker-ce repo line = %q", ce.RepoLine(host))
	}
}
