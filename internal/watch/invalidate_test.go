// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"io"
	"path/filepath"
	"slices"
	"testing"

	"github.com/modulebox/modulebox/internal/box"
	"github.com/modulebox/modulebox/internal/detect"
	"github.com/modulebox/modulebox/internal/localize"
	"github.com/modulebox/modulebox/internal/resolution"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

const cacheRoot = "/srv/app"

func seededBox(t *testing.T) *box.Box {
	t.Helper()

	fs := afero.NewMemMapFs()
	b, err := box.New(box.Config{
		Root:      cacheRoot,
		Fs:        fs,
		Special:   map[string]string{"env": "/opt/host/env.js"},
		Localizer: localize.New(fs, cacheRoot),
		Extractor: detect.New(),
	})
	if err != nil {
		t.Fatalf("box.New() = %v", err)
	}

	c := b.Cache()
	c.Put(box.NormalJob("/main.js"), &box.Record{Dependencies: resolution.Map{
		"./lib.js": resolution.Resolved("/lib.js"),
	}})
	c.Put(box.NormalJob("/lib.js"), &box.Record{})
	c.Put(box.NormalJob("/wants_new.js"), &box.Record{Dependencies: resolution.Map{
		"./new.js": resolution.Failed(&resolution.NotFoundError{Identifier: "./new.js"}),
	}})
	c.Put(box.NormalJob("/uses_env.js"), &box.Record{Special: []string{"env"}})
	c.Put(box.SpecialJob("env"), &box.Record{})
	return b
}

func cachedJobs(b *box.Box) []box.Job {
	jobs := b.Cache().(*box.MemoryCache).Jobs()
	slices.SortFunc(jobs, box.Job.Compare)
	return jobs
}

func TestInvalidateCache(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		changed []string
		dropped []box.Job
	}{
		{
			name:    "unrelated path",
			changed: []string{"/etc/hosts"},
		},
		{
			name:    "leaf file drops dependents",
			changed: []string{filepath.Join(cacheRoot, "lib.js")},
			dropped: []box.Job{box.NormalJob("/lib.js"), box.NormalJob("/main.js")},
		},
		{
			name:    "top file only",
			changed: []string{filepath.Join(cacheRoot, "main.js")},
			dropped: []box.Job{box.NormalJob("/main.js")},
		},
		{
			name:    "new file retries failed resolutions",
			changed: []string{filepath.Join(cacheRoot, "new.js")},
			dropped: []box.Job{box.NormalJob("/wants_new.js")},
		},
		{
			name:    "special module file",
			changed: []string{"/opt/host/env.js"},
			dropped: []box.Job{box.NormalJob("/uses_env.js"), box.SpecialJob("env")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := seededBox(t)
			before := cachedJobs(b)

			onChange := InvalidateCache(b, log.New(io.Discard))
			if err := onChange(t.Context(), tt.changed); err != nil {
				t.Fatalf("OnChange() = %v", err)
			}

			want := slices.DeleteFunc(slices.Clone(before), func(j box.Job) bool {
				return slices.Contains(tt.dropped, j)
			})
			if got := cachedJobs(b); !slices.Equal(got, want) {
				t.Errorf("remaining jobs = %v, want %v", got, want)
			}
		})
	}
}
