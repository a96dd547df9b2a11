// SPDX-License-Identifier: MPL-2.0

package box

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"

	"github.com/modulebox/modulebox/internal/resolution"

	"golang.org/x/sync/errgroup"
)

type (
	// Batch is the resolution of a set of identifiers: normal identifiers
	// map to a filepath or a descriptor, special identifiers are listed.
	Batch struct {
		Normal  resolution.Map
		Special []string
	}

	// Scan is what a file requires.
	Scan struct {
		Dependencies resolution.Map
		Special      []string
	}
)

// Jobs returns the jobs a batch makes reachable: each concrete normal path,
// then each special identifier.
func (b Batch) Jobs() []Job {
	paths := b.Normal.Paths()
	out := make([]Job, 0, len(paths)+len(b.Special))
	for _, p := range paths {
		out = append(out, NormalJob(p))
	}
	for _, id := range b.Special {
		out = append(out, SpecialJob(id))
	}
	return out
}

// SpecialMap returns the special identifiers as an identity resolution map.
func (b Batch) SpecialMap() resolution.Map {
	m := make(resolution.Map, len(b.Special))
	for _, id := range b.Special {
		m[id] = resolution.Resolved(id)
	}
	return m
}

// stableBytes serializes the batch deterministically for fingerprinting.
func (b Batch) stableBytes() []byte {
	info := make(map[string]string, len(b.Normal)+len(b.Special))
	for id, r := range b.Normal {
		info[id] = r.StableString()
	}
	for _, id := range b.Special {
		info[id] = "special:" + id
	}
	// encoding/json sorts map keys, and a map of strings cannot fail to encode.
	data, _ := json.Marshal(info)
	return data
}

// ResolveBatch resolves identifiers required from fromDir. Duplicates are
// resolved once. Identifiers in the special table are listed in
// Batch.Special without calling the localizer. A localizer failure is
// recorded against its identifier only; the returned error is non-nil only
// when ctx is cancelled.
func (b *Box) ResolveBatch(ctx context.Context, fromDir string, identifiers []string) (Batch, error) {
	batch := Batch{Normal: resolution.Map{}}

	unique := slices.Clone(identifiers)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	var local []string
	for _, id := range unique {
		if b.IsSpecial(id) {
			batch.Special = append(batch.Special, id)
			continue
		}
		local = append(local, id)
	}

	if len(local) == 0 {
		return batch, ctx.Err()
	}

	results := make([]resolution.Resolution, len(local))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, id := range local {
		g.Go(func() error {
			p, err := b.localizer.Localize(gctx, fromDir, id)
			if err != nil {
				results[i] = resolution.Failed(err)
				return nil
			}
			results[i] = resolution.Resolved(p)
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	if err := ctx.Err(); err != nil {
		return Batch{}, fmt.Errorf("resolve batch from %s: %w", fromDir, err)
	}

	for i, id := range local {
		batch.Normal[id] = results[i]
	}
	return batch, nil
}

// ScanFile extracts the identifiers required by content and resolves them.
// Files whose extension is not a source extension have no dependencies and
// are not passed to the extractor. A special job may only require other
// special modules; any other identifier is recorded as not found.
//
// An extraction failure is returned as the error with an empty Scan; callers
// treat it as a warning.
func (b *Box) ScanFile(ctx context.Context, job Job, content []byte) (Scan, error) {
	empty := Scan{Dependencies: resolution.Map{}}
	if !b.isSource(job) {
		return empty, nil
	}

	calls, err := b.extractor.Extract(content)
	if err != nil {
		return empty, fmt.Errorf("scan %s: %w", job, err)
	}

	if job.IsSpecial() {
		scan := empty
		for _, id := range calls {
			if b.IsSpecial(id) {
				scan.Special = append(scan.Special, id)
				continue
			}
			scan.Dependencies[id] = resolution.Failed(&resolution.NotFoundError{Identifier: id})
		}
		slices.Sort(scan.Special)
		scan.Special = slices.Compact(scan.Special)
		return scan, nil
	}

	batch, err := b.ResolveBatch(ctx, path.Dir(job.Value), calls)
	if err != nil {
		return empty, err
	}
	return Scan{Dependencies: batch.Normal, Special: batch.Special}, nil
}
