// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/modulebox/modulebox/internal/box"
	"github.com/modulebox/modulebox/internal/bundle"
	"github.com/modulebox/modulebox/internal/config"
	"github.com/modulebox/modulebox/internal/dag"
	"github.com/modulebox/modulebox/internal/resolution"

	"github.com/spf13/cobra"
)

type (
	// loadPlan is the dependency-first order of a request's closure.
	loadPlan struct {
		Order    []box.Job
		Cycles   [][]box.Job
		Failures []failure
	}

	// failure is an identifier that did not resolve.
	failure struct {
		From       string
		Identifier string
		Err        resolution.ErrorDescriptor
	}
)

func newGraphCommand(app *App) *cobra.Command {
	var from string

	graphCmd := &cobra.Command{
		Use:   "graph <identifier>...",
		Short: "Print the load order of a request",
		Long: `Print every module a request reaches, dependencies first.

Modules that require each other are listed after the rest and reported as
cycles. Identifiers that failed to resolve are listed at the end.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			plan, err := buildLoadPlan(cmd.Context(), app, cfg, bundle.Request{From: from, Request: args})
			if err != nil {
				return err
			}
			printLoadPlan(app.stdout, plan)
			return nil
		},
	}

	graphCmd.Flags().StringVar(&from, "from", "", "root-relative path of the requiring module")

	return graphCmd
}

// buildLoadPlan streams req once so every reachable module has a cache
// record, then walks the records from the request's roots.
func buildLoadPlan(ctx context.Context, app *App, cfg *config.Config, req bundle.Request) (*loadPlan, error) {
	b, err := app.newBox(cfg)
	if err != nil {
		return nil, err
	}

	t := bundle.New(b, req, bundle.Options{})
	_, err = t.Stream(ctx, io.Discard)
	_ = t.Close()
	if err != nil {
		return nil, err
	}
	if desc := t.InitError(); desc != nil {
		return nil, requestFailed(desc.Name, desc.Message)
	}

	batch, err := b.ResolveBatch(ctx, req.StartDir(), req.Request)
	if err != nil {
		return nil, err
	}

	plan := &loadPlan{}
	for _, id := range batch.Normal.Keys() {
		if r := batch.Normal[id]; !r.OK() {
			plan.Failures = append(plan.Failures, failure{From: req.From, Identifier: id, Err: *r.Err})
		}
	}

	g := dag.New[box.Job]()
	seen := make(box.JobSet)
	queue := batch.Jobs()
	for _, j := range queue {
		seen.Add(j)
	}
	for len(queue) > 0 {
		job := queue[0]
		queue = queue[1:]
		g.AddNode(job)

		rec, ok := b.Cache().Get(job)
		if !ok {
			continue
		}
		for _, id := range rec.Dependencies.Keys() {
			if r := rec.Dependencies[id]; !r.OK() {
				plan.Failures = append(plan.Failures, failure{From: job.Value, Identifier: id, Err: *r.Err})
			}
		}
		for _, child := range rec.Children() {
			g.AddEdge(child, job)
			if !seen.Has(child) {
				seen.Add(child)
				queue = append(queue, child)
			}
		}
	}

	plan.Order = g.Order()
	plan.Cycles = g.Cycles()
	return plan, nil
}

func printLoadPlan(w io.Writer, plan *loadPlan) {
	fmt.Fprintln(w, TitleStyle.Render("Load order"))
	for i, job := range plan.Order {
		fmt.Fprintf(w, "  %3d. %s\n", i+1, jobLabel(job))
	}

	if len(plan.Cycles) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ErrorStyle.Render("Cycles"))
		for _, c := range plan.Cycles {
			labels := make([]string, len(c))
			for i, j := range c {
				labels[i] = jobLabel(j)
			}
			fmt.Fprintf(w, "  %s\n", strings.Join(labels, " <-> "))
		}
	}

	if len(plan.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, WarningStyle.Render("Unresolved"))
		for _, f := range plan.Failures {
			from := f.From
			if from == "" {
				from = "(root)"
			}
			fmt.Fprintf(w, "  %s %s %s: %s\n", KeyStyle.Render(f.Identifier), SubtitleStyle.Render("from"), from, f.Err.Message)
		}
	}
}

func jobLabel(job box.Job) string {
	if job.IsSpecial() {
		return KeyStyle.Render(job.Value) + SubtitleStyle.Render(" (special)")
	}
	return job.Value
}
