// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Defaults()
	if cfg != want {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoad_PositionalArgs(t *testing.T) {
	args := []string{"true", "auto", "true", "latest", "none", "none", "none"}

	cfg, err := Load(context.Background(), LoadOptions{Args: args})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.EnableNonRootDocker || cfg.Username != "auto" || !cfg.UseMoby {
		t.Errorf("unexpected head options: %+v", cfg)
	}
	if cfg.EngineVersion != "latest" {
		t.Errorf("EngineVersion = %q, want latest", cfg.EngineVersion)
	}
	for name, got := range map[string]string{
		"ComposeVersion":       cfg.ComposeVersion,
		"ComposeSwitchVersion": cfg.ComposeSwitchVersion,
		"ComposeV1Version":     cfg.ComposeV1Version,
	} {
		if got != SkipSentinel {
			t.Errorf("%s = %q, want none", name, got)
		}
	}
}

func TestLoad_PartialArgsKeepDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), LoadOptions{Args: []string{"false", "", "false"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.EnableNonRootDocker {
		t.Error("EnableNonRootDocker should be false from args[0]")
	}
	if cfg.Username != Defaults().Username {
		t.Errorf("empty positional must keep default username, got %q", cfg.Username)
	}
	if cfg.UseMoby {
		t.Error("UseMoby should be false from args[2]")
	}
	if cfg.EngineVersion != "latest" {
		t.Errorf("EngineVersion = %q, want default latest", cfg.EngineVersion)
	}
}

func TestLoad_BadBoolArg(t *testing.T) {
	_, err := Load(context.Background(), LoadOptions{Args: []string{"yes-please"}})
	if err == nil {
		t.Fatal("expected error for non-boolean enable-nonroot argument")
	}
}

func TestLoad_TooManyArgs(t *testing.T) {
	args := make([]string, 8)
	if _, err := Load(context.Background(), LoadOptions{Args: args}); err == nil {
		t.Fatal("expected error for 8 positional arguments")
	}
}

func TestLoad_EnvBinding(t *testing.T) {
	t.Setenv("DOCKER_VERSION", "24.0")
	t.Setenv("USE_MOBY", "false")

	cfg, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.EngineVersion != "24.0" {
		t.Errorf("EngineVersion = %q, want 24.0 from env", cfg.EngineVersion)
	}
	if cfg.UseMoby {
		t.Error("UseMoby should be false from env")
	}
}

func TestLoad_CUEFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.cue")
	content := `
engine_version: "23.0"
compose_version: "none"
update_rc: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.EngineVersion != "23.0" {
		t.Errorf("EngineVersion = %q, want 23.0", cfg.EngineVersion)
	}
	if cfg.ComposeVersion != SkipSentinel {
		t.Errorf("ComposeVersion = %q, want none", cfg.ComposeVersion)
	}
	if cfg.UpdateRC {
		t.Error("UpdateRC should be false from file")
	}
}

func TestLoad_CUEFileSchemaViolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.cue")
	// init_script_path must be absolute per the schema.
	if err := os.WriteFile(path, []byte(`init_script_path: "relative/path.sh"`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(context.Background(), LoadOptions{ConfigFilePath: path}); err == nil {
		t.Fatal("expected schema validation error")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue"),
	})
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_ArgsBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.cue")
	if err := os.WriteFile(path, []byte(`engine_version: "23.0"`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(context.Background(), LoadOptions{
		ConfigFilePath: path,
		Args:           []string{"", "", "", "24.0"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.EngineVersion != "24.0" {
		t.Errorf("EngineVersion = %q, positional must beat file", cfg.EngineVersion)
	}
}
