// SPDX-License-Identifier: MPL-2.0

// Package config builds the immutable provisioning options from positional
// arguments, environment variables, and an optional CUE config file. The
// result is a plain value passed explicitly to every component; no ambient
// environment is consulted after startup.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"dind-cli/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "dindctl"
	// DefaultConfigPath is the conventional config file location.
	DefaultConfigPath = "/etc/dindctl/config.cue"
)

// SkipSentinel is the selector value that skips installation of a unit.
const SkipSentinel = "none"

//go:embed config_schema.cue
var configSchema string

// Options is the concrete execution plan for one provisioning run.
// Immutable once built.
type Options struct {
	// EnableNonRootDocker adds Username to the docker group and chowns the
	// generated init script to it.
	EnableNonRootDocker bool `mapstructure:"enable_nonroot_docker"`

	// Username is the account to configure: "auto"/"automatic" scans the
	// candidate list, "none" or an unknown account falls back to root.
	Username string `mapstructure:"username"`

	// UseMoby selects the open-source engine/CLI family over the licensed one.
	UseMoby bool `mapstructure:"use_moby"`

	// EngineVersion is the engine/CLI package selector
	// (latest/lts/stable or an explicit version prefix).
	EngineVersion string `mapstructure:"engine_version"`

	// ComposeVersion is the compose v2 plugin selector
	// (latest/current/lts, explicit version, or "none" to skip).
	ComposeVersion string `mapstructure:"compose_version"`

	// ComposeSwitchVersion is the compose-switch shim selector ("none" to skip).
	ComposeSwitchVersion string `mapstructure:"compose_switch_version"`

	// ComposeV1Version is the standalone compose v1 selector ("none" to skip).
	ComposeV1Version string `mapstructure:"compose_v1_version"`

	// AzureDNSAutoDetection controls the cloud DNS suffix check in the init
	// wrapper.
	AzureDNSAutoDetection bool `mapstructure:"azure_dns_auto_detection"`

	// UpdateRC controls whether shell rc files get the environment export
	// line appended.
	UpdateRC bool `mapstructure:"update_rc"`

	// InitScriptPath is where the generated wrapper script is written. Its
	// presence is the setup-complete sentinel.
	InitScriptPath string `mapstructure:"init_script_path"`

	// CLIPluginsDir receives the compose v2 plugin binary.
	CLIPluginsDir string `mapstructure:"cli_plugins_dir"`

	// BinDir receives compose v1 and compose-switch binaries.
	BinDir string `mapstructure:"bin_dir"`
}

// LoadOptions controls config resolution.
type LoadOptions struct {
	// ConfigFilePath points at an explicit CUE config file. Empty means the
	// default path, which is optional.
	ConfigFilePath string

	// Args are the positional arguments in the historical order:
	// enable-nonroot, username, use-moby, engine version, compose version,
	// compose-switch version, compose v1 version. Missing trailing arguments
	// take defaults. Positionals win over env and file values.
	Args []string
}

// Defaults returns the options used when nothing else is specified.
func Defaults() Options {
	return Options{
		EnableNonRootDocker:   true,
		Username:              "automatic",
		UseMoby:               true,
		EngineVersion:         "latest",
		ComposeVersion:        "latest",
		ComposeSwitchVersion:  SkipSentinel,
		ComposeV1Version:      "1",
		AzureDNSAutoDetection: true,
		UpdateRC:              true,
		InitScriptPath:        "/usr/local/share/docker-init.sh",
		CLIPluginsDir:         "/usr/local/lib/docker/cli-plugins",
		BinDir:                "/usr/local/bin",
	}
}

// Load builds the Options value. Precedence: positional args > config file >
// environment > defaults.
func Load(ctx context.Context, opts LoadOptions) (Options, error) {
	select {
	case <-ctx.Done():
		return Options{}, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := Defaults()
	v.SetDefault("enable_nonroot_docker", defaults.EnableNonRootDocker)
	v.SetDefault("username", defaults.Username)
	v.SetDefault("use_moby", defaults.UseMoby)
	v.SetDefault("engine_version", defaults.EngineVersion)
	v.SetDefault("compose_version", defaults.ComposeVersion)
	v.SetDefault("compose_switch_version", defaults.ComposeSwitchVersion)
	v.SetDefault("compose_v1_version", defaults.ComposeV1Version)
	v.SetDefault("azure_dns_auto_detection", defaults.AzureDNSAutoDetection)
	v.SetDefault("update_rc", defaults.UpdateRC)
	v.SetDefault("init_script_path", defaults.InitScriptPath)
	v.SetDefault("cli_plugins_dir", defaults.CLIPluginsDir)
	v.SetDefault("bin_dir", defaults.BinDir)

	bindEnvAliases(v)

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return Options{}, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return Options{}, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				Wrap(err).
				BuildError()
		}
	} else if fileExists(DefaultConfigPath) {
		if err := loadCUEIntoViper(v, DefaultConfigPath); err != nil {
			return Options{}, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(DefaultConfigPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Options
	if err := v.Unmarshal(&cfg); err != nil {
		return Options{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := applyArgs(&cfg, opts.Args); err != nil {
		return Options{}, err
	}

	return cfg, nil
}

// bindEnvAliases wires both the DINDCTL_* names and the historical
// devcontainer-feature names for each option.
func bindEnvAliases(v *viper.Viper) {
	// BindEnv with an explicit key list never errors; ignore returns.
	_ = v.BindEnv("enable_nonroot_docker", "DINDCTL_ENABLE_NONROOT_DOCKER", "ENABLE_NONROOT_DOCKER")          //nolint:errcheck
	_ = v.BindEnv("username", "DINDCTL_USERNAME", "USERNAME")                                                 //nolint:errcheck
	_ = v.BindEnv("use_moby", "DINDCTL_USE_MOBY", "USE_MOBY")                                                 //nolint:errcheck
	_ = v.BindEnv("engine_version", "DINDCTL_ENGINE_VERSION", "DOCKER_VERSION")                               //nolint:errcheck
	_ = v.BindEnv("compose_version", "DINDCTL_COMPOSE_VERSION", "DOCKER_DASH_COMPOSE_VERSION")                //nolint:errcheck
	_ = v.BindEnv("compose_switch_version", "DINDCTL_COMPOSE_SWITCH_VERSION", "COMPOSE_SWITCH_VERSION")       //nolint:errcheck
	_ = v.BindEnv("compose_v1_version", "DINDCTL_COMPOSE_V1_VERSION", "COMPOSE_V1_VERSION")                   //nolint:errcheck
	_ = v.BindEnv("azure_dns_auto_detection", "DINDCTL_AZURE_DNS_AUTO_DETECTION", "AZURE_DNS_AUTO_DETECTION") //nolint:errcheck
	_ = v.BindEnv("update_rc", "DINDCTL_UPDATE_RC", "UPDATE_RC")                                              //nolint:errcheck
	_ = v.BindEnv("init_script_path", "DINDCTL_INIT_SCRIPT_PATH")                                             //nolint:errcheck
	_ = v.BindEnv("cli_plugins_dir", "DINDCTL_CLI_PLUGINS_DIR")                                               //nolint:errcheck
	_ = v.BindEnv("bin_dir", "DINDCTL_BIN_DIR")                                                               //nolint:errcheck
}

// applyArgs overlays the positional parameters onto cfg. Empty strings leave
// the current value untouched so callers can skip positions.
func applyArgs(cfg *Options, args []string) error {
	setters := []func(string) error{
		func(s string) error { return parseBoolArg(s, "enable-nonroot", &cfg.EnableNonRootDocker) },
		func(s string) error { cfg.Username = s; return nil },
		func(s string) error { return parseBoolArg(s, "use-moby", &cfg.UseMoby) },
		func(s string) error { cfg.EngineVersion = s; return nil },
		func(s string) error { cfg.ComposeVersion = s; return nil },
		func(s string) error { cfg.ComposeSwitchVersion = s; return nil },
		func(s string) error { cfg.ComposeV1Version = s; return nil },
	}

	if len(args) > len(setters) {
		return fmt.Errorf("too many positional arguments: got %d, expected at most %d",
			len(args), len(setters))
	}

	for i, arg := range args {
		if arg == "" {
			continue
		}
		if err := setters[i](arg); err != nil {
			return err
		}
	}
	return nil
}

// parseBoolArg accepts the true/false tokens the historical interface used.
func parseBoolArg(s, name string, dst *bool) error {
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("argument %s: expected true or false, got %q", name, s)
	}
	*dst = val
	return nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config
// schema, and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cctx := cuecontext.New()

	schemaValue := cctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := cctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return fmt.Errorf("parsing %s: %w", path, userValue.Err())
	}

	// Unify with the schema to validate against the #Config definition.
	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("validating %s: %w", path, err)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	for key, value := range configMap {
		v.Set(key, value)
	}
	return nil
}

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
