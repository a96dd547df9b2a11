// SPDX-License-Identifier: MPL-2.0

package box

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

// DefaultMaxConcurrency bounds concurrent localizer calls per batch.
const DefaultMaxConcurrency = 8

var (
	// ErrNoLocalizer is returned by New when Config.Localizer is nil.
	ErrNoLocalizer = errors.New("box: localizer is required")
	// ErrNoExtractor is returned by New when Config.Extractor is nil.
	ErrNoExtractor = errors.New("box: extractor is required")
	// ErrUnknownSpecial is returned when a special job has no table entry.
	ErrUnknownSpecial = errors.New("box: unknown special module")
)

// DefaultExtensions lists the file extensions scanned for require calls.
var DefaultExtensions = []string{".js"}

type (
	// Localizer maps an identifier required from fromDir to a root-relative
	// filepath. A missing module is reported as *resolution.NotFoundError.
	Localizer interface {
		Localize(ctx context.Context, fromDir, identifier string) (string, error)
	}

	// LocalizerFunc adapts a function to Localizer.
	LocalizerFunc func(ctx context.Context, fromDir, identifier string) (string, error)

	// Extractor returns the identifiers passed to require calls in src, in
	// source order.
	Extractor interface {
		Extract(src []byte) ([]string, error)
	}

	// ExtractorFunc adapts a function to Extractor.
	ExtractorFunc func(src []byte) ([]string, error)

	// Config configures a Box.
	Config struct {
		// Root is the host directory backing normal jobs.
		Root string
		// Fs is the filesystem for both the root and special modules.
		// Defaults to the OS filesystem.
		Fs afero.Fs
		// Special maps special identifiers to host file paths.
		Special map[string]string
		// Localizer resolves identifiers for normal jobs.
		Localizer Localizer
		// Extractor extracts require calls from source files.
		Extractor Extractor
		// Cache stores records. Defaults to a new MemoryCache.
		Cache Cache
		// Extensions are the scanned source extensions. Defaults to DefaultExtensions.
		Extensions []string
		// MaxConcurrency bounds concurrent localizer calls per batch.
		MaxConcurrency int
	}

	// Box resolves, scans and fingerprints modules of one root.
	Box struct {
		root        string
		fs          afero.Fs
		rootFs      afero.Fs
		special     map[string]string
		localizer   Localizer
		extractor   Extractor
		cache       Cache
		extensions  []string
		concurrency int
	}
)

// Localize implements Localizer.
func (f LocalizerFunc) Localize(ctx context.Context, fromDir, identifier string) (string, error) {
	return f(ctx, fromDir, identifier)
}

// Extract implements Extractor.
func (f ExtractorFunc) Extract(src []byte) ([]string, error) {
	return f(src)
}

// New creates a Box. The Localizer and Extractor are required.
func New(cfg Config) (*Box, error) {
	if cfg.Localizer == nil {
		return nil, ErrNoLocalizer
	}
	if cfg.Extractor == nil {
		return nil, ErrNoExtractor
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache()
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}

	root := cfg.Root
	if root == "" {
		root = "."
	}

	special := make(map[string]string, len(cfg.Special))
	for id, p := range cfg.Special {
		special[id] = p
	}

	return &Box{
		root:        root,
		fs:          cfg.Fs,
		rootFs:      afero.NewBasePathFs(cfg.Fs, root),
		special:     special,
		localizer:   cfg.Localizer,
		extractor:   cfg.Extractor,
		cache:       cfg.Cache,
		extensions:  slices.Clone(cfg.Extensions),
		concurrency: cfg.MaxConcurrency,
	}, nil
}

// Root returns the host directory backing normal jobs.
func (b *Box) Root() string { return b.root }

// Cache returns the record cache shared by all traversals of this Box.
func (b *Box) Cache() Cache { return b.cache }

// IsSpecial reports whether id names a special module.
func (b *Box) IsSpecial(id string) bool {
	_, ok := b.special[id]
	return ok
}

// SpecialIdentifiers returns the special table keys, sorted.
func (b *Box) SpecialIdentifiers() []string {
	ids := make([]string, 0, len(b.special))
	for id := range b.special {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// HostPath returns the host filesystem path backing job.
func (b *Box) HostPath(job Job) (string, error) {
	if job.IsSpecial() {
		p, ok := b.special[job.Value]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownSpecial, job.Value)
		}
		return p, nil
	}
	return filepath.Join(b.root, filepath.FromSlash(path.Clean("/"+job.Value))), nil
}

// JobForHostPath maps a host path back to the job it backs. Special modules
// take precedence over files under the root.
func (b *Box) JobForHostPath(hostPath string) (Job, bool) {
	clean := filepath.Clean(hostPath)
	for id, p := range b.special {
		if filepath.Clean(p) == clean {
			return SpecialJob(id), true
		}
	}

	rel, err := filepath.Rel(b.root, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Job{}, false
	}
	return NormalJob("/" + filepath.ToSlash(rel)), true
}

// Open opens the file backing job for reading.
func (b *Box) Open(job Job) (afero.File, error) {
	if job.IsSpecial() {
		p, err := b.HostPath(job)
		if err != nil {
			return nil, err
		}
		return b.fs.Open(p)
	}
	return b.rootFs.Open(job.Value)
}

// Stat returns file info for the file backing job.
func (b *Box) Stat(job Job) (os.FileInfo, error) {
	if job.IsSpecial() {
		p, err := b.HostPath(job)
		if err != nil {
			return nil, err
		}
		return b.fs.Stat(p)
	}
	return b.rootFs.Stat(job.Value)
}

// isSource reports whether job's file is scanned for require calls.
func (b *Box) isSource(job Job) bool {
	name := job.Value
	if job.IsSpecial() {
		name = b.special[job.Value]
	}
	return slices.Contains(b.extensions, path.Ext(filepath.ToSlash(name)))
}
