// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/modulebox/modulebox/internal/box"
	"github.com/modulebox/modulebox/internal/config"
	"github.com/modulebox/modulebox/internal/issue"
	"github.com/modulebox/modulebox/internal/server"
	"github.com/modulebox/modulebox/internal/watch"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// serveFlags override the server section of the configuration.
type serveFlags struct {
	address string
	mount   string
	watch   bool
}

func newServeCommand(app *App) *cobra.Command {
	var flags serveFlags

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve bundles over HTTP",
		Long: `Serve bundles over HTTP until interrupted.

The bundle endpoint takes the JSON-encoded query parameters from, normal,
special and request, and answers with a streamed document. Responses carry
a weak ETag once every module involved has been read, so repeated requests
can be answered with 304 Not Modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("address") {
				cfg.Server.Address = flags.address
			}
			if cmd.Flags().Changed("mount") {
				cfg.Server.Mount = flags.mount
			}
			if cmd.Flags().Changed("watch") {
				cfg.Cache.Watch = flags.watch
			}
			return runServe(cmd.Context(), app, cfg)
		},
	}

	serveCmd.Flags().StringVar(&flags.address, "address", config.DefaultConfig().Server.Address, "listen address (host:port)")
	serveCmd.Flags().StringVar(&flags.mount, "mount", config.DefaultConfig().Server.Mount, "path of the bundle endpoint")
	serveCmd.Flags().BoolVar(&flags.watch, "watch", false, "invalidate cached modules when files change")

	return serveCmd
}

// runServe starts the server, plus the watcher when cache.watch is set, and
// blocks until ctx ends or either of them fails.
func runServe(ctx context.Context, app *App, cfg *config.Config) error {
	b, err := app.newBox(cfg)
	if err != nil {
		return err
	}
	logger := app.newLogger(cfg)

	srv, err := server.New(b, server.Config{
		Address:         cfg.Server.Address,
		Mount:           cfg.Server.Mount,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, server.WithLogger(logger))
	if err != nil {
		return newServiceError(err, issue.ServerStartFailedId, "")
	}

	if err := srv.Start(ctx); err != nil {
		startErr := issue.NewErrorContext().
			WithOperation("start bundle server").
			WithResource(cfg.Server.Address).
			WithSuggestion("Pick a free port with --address or the server.address setting").
			WithIssue(issue.ServerStartFailedId).
			Wrap(err).
			BuildError()
		return newServiceError(startErr, issue.ServerStartFailedId, "")
	}

	var w *watch.Watcher
	if cfg.Cache.Watch {
		w, err = newWatcher(b, cfg, logger)
		if err != nil {
			return errors.Join(err, srv.Stop())
		}
	}

	fmt.Fprintln(app.stdout, SuccessStyle.Render("Serving ")+KeyStyle.Render(b.Root())+SubtitleStyle.Render(" at ")+srv.URL())

	g, gctx := errgroup.WithContext(ctx)
	if w != nil {
		g.Go(func() error {
			if err := w.Run(gctx); err != nil {
				return newServiceError(fmt.Errorf("watch %s: %w", b.Root(), err), issue.WatchFailedId, "")
			}
			return nil
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err, ok := <-srv.Err():
			if !ok {
				return nil
			}
			return err
		}
	})

	runErr := g.Wait()
	if err := srv.Stop(); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

// newWatcher watches the root and every special module file and drops the
// cache records a change makes stale.
func newWatcher(b *box.Box, cfg *config.Config, logger *log.Logger) (*watch.Watcher, error) {
	ids := b.SpecialIdentifiers()
	files := make([]string, 0, len(ids))
	for _, id := range ids {
		p, err := b.HostPath(box.SpecialJob(id))
		if err != nil {
			return nil, err
		}
		files = append(files, p)
	}

	w, err := watch.New(watch.Config{
		Root:     b.Root(),
		Files:    files,
		Patterns: cfg.Cache.Patterns,
		Debounce: cfg.Cache.Debounce,
		OnChange: watch.InvalidateCache(b, logger),
		Logger:   logger.WithPrefix(config.AppName + "/watch"),
	})
	if err != nil {
		return nil, newServiceError(err, issue.WatchFailedId, "")
	}
	return w, nil
}
