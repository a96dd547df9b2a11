// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/modulebox/modulebox/internal/box"
	"github.com/modulebox/modulebox/internal/config"
	"github.com/modulebox/modulebox/internal/detect"
	"github.com/modulebox/modulebox/internal/issue"
	"github.com/modulebox/modulebox/internal/localize"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

type (
	// App is the composition root of the CLI. Command handlers receive it and
	// reach configuration, the filesystem and output streams through it.
	App struct {
		Config    config.Provider
		Fs        afero.Fs
		stdout    io.Writer
		stderr    io.Writer
		configDir string
		flags     globalFlags
		// scheme is the color scheme of the last loaded config.
		scheme config.ColorScheme
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Fs     afero.Fs
		Stdout io.Writer
		Stderr io.Writer
		// ConfigDir overrides the directory searched for config.cue.
		ConfigDir string
	}

	// globalFlags are the persistent flags of the root command.
	globalFlags struct {
		verbose    bool
		configPath string
		root       string
	}
)

// NewApp builds an App from deps.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	return &App{
		Config:    deps.Config,
		Fs:        deps.Fs,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
		configDir: deps.ConfigDir,
	}
}

// loadConfig loads configuration and applies the root flag overrides.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.flags.configPath,
		ConfigDirPath:  a.configDir,
	})
	if err != nil {
		return nil, newServiceError(err, issue.ConfigLoadFailedId, "")
	}
	if a.flags.root != "" {
		cfg.Root = a.flags.root
	}
	a.scheme = cfg.UI.ColorScheme
	return cfg, nil
}

// verbose reports whether verbose output is on, from the flag or from
// ui.verbose.
func (a *App) verbose(cfg *config.Config) bool {
	return a.flags.verbose || (cfg != nil && cfg.UI.Verbose)
}

// newBox builds the Box described by cfg. The root and special module paths
// are made absolute so watcher events map back to jobs.
func (a *App) newBox(cfg *config.Config) (*box.Box, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", cfg.Root, err)
	}
	if ok, _ := afero.DirExists(a.Fs, root); !ok {
		err := issue.NewErrorContext().
			WithOperation("open module root").
			WithResource(root).
			WithSuggestion("Check the root setting or pass --root").
			WithIssue(issue.RootNotFoundId).
			Wrap(os.ErrNotExist).
			BuildError()
		return nil, newServiceError(err, issue.RootNotFoundId, "")
	}

	special := make(map[string]string, len(cfg.Special))
	for id, p := range cfg.Special {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		special[id] = filepath.Clean(p)
	}

	return box.New(box.Config{
		Root:           root,
		Fs:             a.Fs,
		Special:        special,
		Localizer:      localize.New(a.Fs, root, localize.WithModulesDir(cfg.ModulesDir)),
		Extractor:      detect.New(),
		Extensions:     cfg.Scan.Extensions,
		MaxConcurrency: cfg.Server.MaxResolveConcurrency,
	})
}

// newLogger returns the charm logger used by long-running commands.
func (a *App) newLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{
		Prefix:          config.AppName,
		ReportTimestamp: true,
	})
	level, err := log.ParseLevel(string(cfg.Log.Level))
	if err != nil {
		level = log.InfoLevel
	}
	if a.verbose(cfg) && level > log.DebugLevel {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}
