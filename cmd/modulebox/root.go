// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/modulebox/modulebox/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "modulebox",
		Short: "An on-demand module bundler",
		Long: TitleStyle.Render("modulebox") + SubtitleStyle.Render(" - An on-demand module bundler") + `

modulebox serves the modules a client asks for, together with everything
they require, as one streamed document. Files the client already holds are
skipped and repeated requests are answered from a cache of resolutions.

` + SubtitleStyle.Render("Examples:") + `
  modulebox serve                     Serve the current directory
  modulebox bundle ./main.js          Print the bundle for main.js
  modulebox graph ./main.js           Print the load order of main.js
  modulebox config show               Show current configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is $HOME/.config/modulebox/config.cue)")
	rootCmd.PersistentFlags().StringVar(&app.flags.root, "root", "", "module root directory (overrides the root setting)")

	rootCmd.AddCommand(newServeCommand(app))
	rootCmd.AddCommand(newBundleCommand(app))
	rootCmd.AddCommand(newGraphCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))
	rootCmd.AddCommand(newVersionCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err == nil {
		return
	}

	if app.flags.verbose {
		fmt.Fprintln(os.Stderr, VerboseStyle.Render(formatErrorForDisplay(err, true)))
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		renderServiceError(os.Stderr, svcErr, app.scheme)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(1)
}

// formatErrorForDisplay formats an error for user display.
// ActionableErrors use their Format method; verbose adds the cause chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
