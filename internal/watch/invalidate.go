// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"

	"github.com/modulebox/modulebox/internal/box"

	"github.com/charmbracelet/log"
)

// jobLister is implemented by caches that can enumerate their records.
type jobLister interface {
	Jobs() []box.Job
}

// InvalidateCache returns an OnChangeFunc dropping stale records:
//   - the records of the jobs backed by changed paths;
//   - records that resolved an identifier to one of those jobs, since a
//     deleted or renamed file changes their resolution;
//   - when a changed path had no record (a new file, or a manifest such as
//     package.json), records holding a failed resolution, which may now
//     succeed.
//
// The last two need a cache implementing Jobs, as MemoryCache does.
func InvalidateCache(b *box.Box, logger *log.Logger) OnChangeFunc {
	return func(_ context.Context, changed []string) error {
		cache := b.Cache()

		targets := make(box.JobSet)
		unknown := false
		for _, p := range changed {
			job, ok := b.JobForHostPath(p)
			if !ok {
				continue
			}
			targets.Add(job)
			if _, cached := cache.Get(job); !cached {
				unknown = true
			}
		}
		if len(targets) == 0 {
			return nil
		}

		drop := make([]box.Job, 0, len(targets))
		for j := range targets {
			drop = append(drop, j)
		}
		if lister, ok := cache.(jobLister); ok {
			for _, j := range lister.Jobs() {
				if rec, ok := cache.Get(j); ok && stale(rec, targets, unknown) {
					drop = append(drop, j)
				}
			}
		}

		n := cache.Invalidate(drop...)
		if logger != nil && n > 0 {
			logger.Info("invalidated cached records", "changed", len(changed), "records", n)
		}
		return nil
	}
}

func stale(rec *box.Record, targets box.JobSet, unknown bool) bool {
	for _, child := range rec.Children() {
		if targets.Has(child) {
			return true
		}
	}
	if !unknown {
		return false
	}
	for _, r := range rec.Dependencies {
		if !r.OK() {
			return true
		}
	}
	return false
}
