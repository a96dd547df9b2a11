// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/modulebox/modulebox/internal/box"
	"github.com/modulebox/modulebox/internal/bundle"
	"github.com/modulebox/modulebox/internal/config"
	"github.com/modulebox/modulebox/internal/issue"
	"github.com/modulebox/modulebox/internal/resolution"

	"github.com/spf13/cobra"
)

// ErrRequestFailed is returned when the document carries an error element
// instead of modules.
var ErrRequestFailed = errors.New("bundle request failed")

type bundleFlags struct {
	from            string
	acquired        []string
	acquiredSpecial []string
	output          string
}

func newBundleCommand(app *App) *cobra.Command {
	var flags bundleFlags

	bundleCmd := &cobra.Command{
		Use:   "bundle <identifier>...",
		Short: "Write the bundle document for a request",
		Long: `Write the bundle document for a request to stdout or a file.

Identifiers are resolved from the directory of --from, or from the root.
Modules listed with --acquired and --acquired-special are treated as already
held by the client and left out, along with everything only they require.`,
		Example: `  modulebox bundle ./main.js
  modulebox bundle lodash --from /src/app.js --acquired /src/app.js
  modulebox bundle ./main.js --output bundle.xml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			req := bundle.Request{
				From:            flags.from,
				Request:         args,
				Acquired:        flags.acquired,
				AcquiredSpecial: flags.acquiredSpecial,
			}
			return runBundle(cmd.Context(), app, cfg, req, flags.output)
		},
	}

	bundleCmd.Flags().StringVar(&flags.from, "from", "", "root-relative path of the requiring module")
	bundleCmd.Flags().StringSliceVar(&flags.acquired, "acquired", nil, "module paths the client already holds")
	bundleCmd.Flags().StringSliceVar(&flags.acquiredSpecial, "acquired-special", nil, "special modules the client already holds")
	bundleCmd.Flags().StringVarP(&flags.output, "output", "o", "", "write the document to this file instead of stdout")

	return bundleCmd
}

func runBundle(ctx context.Context, app *App, cfg *config.Config, req bundle.Request, output string) (err error) {
	b, err := app.newBox(cfg)
	if err != nil {
		return err
	}
	verbose := app.verbose(cfg)

	events := bundle.EventFuncs{
		OnWarning: func(desc resolution.ErrorDescriptor) {
			if verbose {
				fmt.Fprintln(app.stderr, WarningStyle.Render("warning: ")+desc.Name+": "+desc.Message)
			}
		},
		OnError: func(job box.Job, err error) {
			slog.Warn("failed to read module", "module", job.String(), "error", err)
		},
	}

	out := app.stdout
	if output != "" {
		f, createErr := app.Fs.Create(output)
		if createErr != nil {
			return newServiceError(issue.WrapWithContext(createErr, "create output file", output), issue.OutputWriteFailedId, "")
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = newServiceError(issue.WrapWithContext(closeErr, "close output file", output), issue.OutputWriteFailedId, "")
			}
		}()
		out = f
	}

	t := bundle.New(b, req, bundle.Options{Events: events})
	defer func() { _ = t.Close() }()

	n, err := t.Stream(ctx, out)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return newServiceError(issue.WrapWithContext(err, "write bundle", outputName(output)), issue.OutputWriteFailedId, "")
	}

	if desc := t.InitError(); desc != nil {
		return requestFailed(desc.Name, desc.Message)
	}

	if output != "" {
		fmt.Fprintln(app.stderr, SuccessStyle.Render("Wrote ")+KeyStyle.Render(output)+SubtitleStyle.Render(fmt.Sprintf(" (%d bytes)", n)))
	}
	if verbose {
		fp, err := requestFingerprint(ctx, b, req)
		if err != nil {
			return err
		}
		printFingerprint(app.stderr, fp)
	}
	return nil
}

// requestFingerprint prepares req again over the now warm box, which yields
// the validator a follow-up request would be answered with.
func requestFingerprint(ctx context.Context, b *box.Box, req bundle.Request) (box.Fingerprint, error) {
	t := bundle.New(b, req, bundle.Options{
		SkipContent: func(box.Fingerprint) bool { return true },
	})
	defer func() { _ = t.Close() }()

	if err := t.Prepare(ctx); err != nil {
		return box.Fingerprint{}, err
	}
	return t.Fingerprint(), nil
}

func printFingerprint(w io.Writer, fp box.Fingerprint) {
	if !fp.Known {
		fmt.Fprintln(w, VerboseStyle.Render("fingerprint: unknown"))
		return
	}
	fmt.Fprintln(w, VerboseStyle.Render("fingerprint: ")+VerboseHighlightStyle.Render(fp.Hash))
	if !fp.ModTime.IsZero() {
		fmt.Fprintln(w, VerboseStyle.Render("modified:    ")+VerboseHighlightStyle.Render(fp.ModTime.UTC().Format(time.RFC3339)))
	}
}

func outputName(output string) string {
	if output == "" {
		return "stdout"
	}
	return output
}
