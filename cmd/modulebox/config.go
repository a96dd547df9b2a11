// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/modulebox/modulebox/internal/config"

	"github.com/spf13/cobra"
)

const (
	formatCUE  = "cue"
	formatTOML = "toml"
)

// ErrUnknownFormat is returned by config dump for an unsupported --format.
var ErrUnknownFormat = errors.New("unknown format")

func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage modulebox configuration",
		Long: `Manage modulebox configuration.

Configuration is read from the file named by --config, else from
$XDG_CONFIG_HOME/modulebox/config.cue (~/.config/modulebox/config.cue),
else from ./config.cue. MODULEBOX_* environment variables override file
values, for example MODULEBOX_SERVER_ADDRESS.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.configFilePath()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, p)
			return nil
		},
	})

	var format string
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpConfig(cmd.Context(), app, format)
		},
	}
	dumpCmd.Flags().StringVar(&format, "format", formatCUE, "output format (cue or toml)")
	cfgCmd.AddCommand(dumpCmd)

	return cfgCmd
}

// configFilePath is the file config init writes: --config when given, else
// the default location.
func (a *App) configFilePath() (string, error) {
	if a.flags.configPath != "" {
		return a.flags.configPath, nil
	}
	return config.DefaultPath(a.configDir)
}

func showConfig(ctx context.Context, app *App) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	w := app.stdout
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if p := app.Config.Path(); p != "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), p)
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	showValue(w, "root", cfg.Root)
	showValue(w, "modules_dir", cfg.ModulesDir)
	showValue(w, "scan.extensions", strings.Join(cfg.Scan.Extensions, ", "))
	showValue(w, "server.address", cfg.Server.Address)
	showValue(w, "server.mount", cfg.Server.Mount)
	showValue(w, "server.shutdown_timeout", cfg.Server.ShutdownTimeout.String())
	showValue(w, "server.max_resolve_concurrency", strconv.Itoa(cfg.Server.MaxResolveConcurrency))
	showValue(w, "cache.watch", strconv.FormatBool(cfg.Cache.Watch))
	showValue(w, "cache.debounce", cfg.Cache.Debounce.String())
	showValue(w, "cache.patterns", strings.Join(cfg.Cache.Patterns, ", "))
	showValue(w, "log.level", cfg.Log.Level.String())
	showValue(w, "ui.color_scheme", cfg.UI.ColorScheme.String())
	showValue(w, "ui.verbose", strconv.FormatBool(cfg.UI.Verbose))

	if len(cfg.Special) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, SubtitleStyle.Render("Special modules"))
		for _, id := range slices.Sorted(maps.Keys(cfg.Special)) {
			showValue(w, "  "+id, cfg.Special[id])
		}
	}
	return nil
}

func showValue(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render(key), SuccessStyle.Render(value))
}

func initConfig(app *App, force bool) error {
	p, err := app.configFilePath()
	if err != nil {
		return err
	}

	if force {
		if err := config.Save(config.DefaultConfig(), p); err != nil {
			return err
		}
		fmt.Fprintln(app.stdout, SuccessStyle.Render("Wrote ")+p)
		return nil
	}

	created, err := config.CreateDefaultConfig(p)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintln(app.stdout, WarningStyle.Render("Config file already exists: ")+p)
		fmt.Fprintln(app.stdout, SubtitleStyle.Render("Use --force to overwrite it."))
		return nil
	}
	fmt.Fprintln(app.stdout, SuccessStyle.Render("Created ")+p)
	return nil
}

func dumpConfig(ctx context.Context, app *App, format string) error {
	if format != formatCUE && format != formatTOML {
		return fmt.Errorf("%w %q (want %s or %s)", ErrUnknownFormat, format, formatCUE, formatTOML)
	}

	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	if format == formatTOML {
		data, err := config.MarshalTOML(cfg)
		if err != nil {
			return err
		}
		_, err = app.stdout.Write(data)
		return err
	}
	_, err = io.WriteString(app.stdout, config.GenerateCUE(cfg))
	return err
}
