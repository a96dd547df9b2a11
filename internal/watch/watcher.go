// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is unset.
const DefaultDebounce = 300 * time.Millisecond

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

// defaultIgnores are never reported. Dependency directories are not listed:
// they hold modules that bundles serve.
var defaultIgnores = []string{
	"**/.git/**",
	"**/.hg/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

type (
	// OnChangeFunc receives the absolute host paths changed during one
	// debounce window, sorted and without duplicates.
	OnChangeFunc func(ctx context.Context, changed []string) error

	// Config holds the parameters for a Watcher.
	Config struct {
		// Root is the directory watched recursively.
		Root string
		// Files are additional individual files to watch, such as special
		// module paths outside Root. Their parent directories are watched
		// but only events for the files themselves are reported.
		Files []string
		// Patterns are doublestar globs relative to Root selecting which
		// files are reported. Empty reports every non-ignored file.
		Patterns []string
		// Ignore extends the built-in ignore patterns.
		Ignore []string
		// Debounce is the quiet period after the last event. Zero or
		// negative values fall back to DefaultDebounce.
		Debounce time.Duration
		// OnChange is called once per debounce window.
		OnChange OnChangeFunc
		// Logger defaults to a discarding logger.
		Logger *log.Logger
	}

	// Watcher reports debounced file changes. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		root     string
		files    map[string]struct{}
		ignores  []string
		debounce time.Duration
		logger   *log.Logger
		started  atomic.Bool
	}
)

// New validates cfg, resolves Root to an absolute path and registers every
// non-ignored directory under it along with the parents of Files.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watch: root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}

	if err := validatePatterns(cfg.Patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	files := make(map[string]struct{}, len(cfg.Files))
	for _, f := range cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %q: %w", f, err)
		}
		files[abs] = struct{}{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		root:     root,
		files:    files,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		debounce: debounce,
		logger:   logger,
	}

	if err := w.register(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("close watcher after init failure", "error", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled, dispatching debounced OnChange calls.
// It returns nil on cancellation and an error when fsnotify fails fatally.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		busy    atomic.Bool
	)

	// fire runs on the timer goroutine. A callback still in progress defers
	// the batch by one more debounce period instead of running concurrently.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			mu.Lock()
			timer.Reset(w.debounce)
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if len(changed) == 0 || w.cfg.OnChange == nil {
			return
		}
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.logger.Error("change callback failed", "error", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if !w.reportable(evt.Name) {
				continue
			}
			w.logger.Debug("file changed", "path", evt.Name, "op", evt.Op)

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// register adds the root tree and the parent of every extra file.
func (w *Watcher) register() error {
	walkErr := filepath.WalkDir(w.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == w.root {
				return err
			}
			w.logger.Warn("skipping inaccessible path", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && w.ignoredDir(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", p, err)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk %s: %w", w.root, walkErr)
	}

	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for _, dir := range slices.Sorted(maps.Keys(dirs)) {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", dir, err)
		}
	}
	return nil
}

// maybeAddDir extends the recursive watch to directories created under the
// root after startup.
func (w *Watcher) maybeAddDir(p string) {
	if _, ok := w.relative(p); !ok {
		return
	}
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() || w.ignoredDir(p) {
		return
	}
	if err := w.fsw.Add(p); err != nil {
		w.logger.Warn("add new directory", "path", p, "error", err)
	}
}

// reportable reports whether a change to p is passed to OnChange.
func (w *Watcher) reportable(p string) bool {
	if _, ok := w.files[p]; ok {
		return true
	}
	rel, ok := w.relative(p)
	if !ok || w.ignored(rel) {
		return false
	}
	return w.matches(rel)
}

// relative returns p relative to the root in slash form, if p is inside it.
func (w *Watcher) relative(p string) (string, bool) {
	rel, err := filepath.Rel(w.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) ignoredDir(p string) bool {
	rel, ok := w.relative(p)
	return ok && (w.ignored(rel) || w.ignored(rel+"/"))
}

func (w *Watcher) ignored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) matches(rel string) bool {
	return len(w.cfg.Patterns) == 0 || matchAny(w.cfg.Patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q", label, pat)
		}
	}
	return nil
}
