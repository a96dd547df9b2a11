// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modulebox/modulebox/internal/issue"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "modulebox"
	// EnvPrefix prefixes environment overrides (MODULEBOX_ROOT).
	EnvPrefix = "MODULEBOX"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns $XDG_CONFIG_HOME/modulebox, defaulting XDG_CONFIG_HOME
// to ~/.config.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

// DefaultPath returns the config file path inside dir, or inside ConfigDir
// when dir is empty.
func DefaultPath(dir string) (string, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// loadWithOptions performs option-driven config loading. The returned path
// is the file that was read, or "" when only defaults and environment apply.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	resolvedPath, err := locate(opts)
	if err != nil {
		return nil, "", err
	}
	var special map[string]string
	if resolvedPath != "" {
		if special, err = loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'modulebox config init' to write a fresh default file").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Special = special

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check MODULEBOX_* environment variables for typos").
			WithSuggestion("Use 'modulebox config show' to see the effective configuration").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// newViper returns a Viper seeded with defaults and environment overrides.
// Every key has a default so AutomaticEnv can see it during Unmarshal.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("root", d.Root)
	v.SetDefault("modules_dir", d.ModulesDir)
	v.SetDefault("scan.extensions", d.Scan.Extensions)
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.mount", d.Server.Mount)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_resolve_concurrency", d.Server.MaxResolveConcurrency)
	v.SetDefault("cache.watch", d.Cache.Watch)
	v.SetDefault("cache.debounce", d.Cache.Debounce)
	v.SetDefault("cache.patterns", d.Cache.Patterns)
	v.SetDefault("log.level", string(d.Log.Level))
	v.SetDefault("ui.color_scheme", string(d.UI.ColorScheme))
	v.SetDefault("ui.verbose", d.UI.Verbose)
	return v
}

// locate picks the config file: the explicit path (which must exist), else
// the file in the config directory, else ./config.cue, else none.
func locate(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'modulebox config show' to see default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cuePath, err := DefaultPath(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	if fileExists(cuePath) {
		return cuePath, nil
	}

	localCuePath := ConfigFileName + "." + ConfigFileExt
	if fileExists(localCuePath) {
		return localCuePath, nil
	}
	return "", nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config to path unless a file
// already exists there. It reports whether a file was written.
func CreateDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := Save(DefaultConfig(), path); err != nil {
		return false, err
	}
	return true, nil
}

// Save writes cfg to path as CUE, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
