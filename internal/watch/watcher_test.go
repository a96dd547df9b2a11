// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

const testDebounce = 50 * time.Millisecond

// recorder collects OnChange batches.
type recorder struct {
	mu      sync.Mutex
	batches [][]string
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, changed []string) error {
	r.mu.Lock()
	r.batches = append(r.batches, changed)
	r.mu.Unlock()
	r.notify <- struct{}{}
	return nil
}

func (r *recorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for OnChange")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[len(r.batches)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// startWatcher runs w until the test ends.
func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() = %v", err)
		}
	})
}

func TestWatcherDebounce(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	rec := newRecorder()
	w, err := New(Config{Root: root, Debounce: testDebounce, OnChange: rec.onChange})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	startWatcher(t, w)

	a := filepath.Join(root, "a.js")
	b := filepath.Join(root, "b.js")
	writeFile(t, a, "1")
	writeFile(t, b, "2")
	writeFile(t, a, "3")

	got := rec.wait(t)
	if !slices.Equal(got, []string{a, b}) {
		t.Errorf("changed = %v, want [%s %s]", got, a, b)
	}

	time.Sleep(4 * testDebounce)
	if n := rec.count(); n != 1 {
		t.Errorf("OnChange called %d times, want 1", n)
	}
}

func TestWatcherFilters(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	outside := t.TempDir()
	special := filepath.Join(outside, "env.js")
	writeFile(t, special, "exports.env = 1;")
	writeFile(t, filepath.Join(outside, "other.js"), "")
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	rec := newRecorder()
	w, err := New(Config{
		Root:     root,
		Files:    []string{special},
		Patterns: []string{"**/*.js"},
		Ignore:   []string{"vendor/**"},
		Debounce: testDebounce,
		OnChange: rec.onChange,
	})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	startWatcher(t, w)

	writeFile(t, filepath.Join(root, "notes.txt"), "not a pattern match")
	writeFile(t, filepath.Join(root, ".git", "index.js"), "default ignore")
	writeFile(t, filepath.Join(outside, "other.js"), "sibling of a watched file")
	writeFile(t, special, "exports.env = 2;")

	got := rec.wait(t)
	if !slices.Equal(got, []string{special}) {
		t.Errorf("changed = %v, want only %s", got, special)
	}
}

func TestWatcherNewDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	rec := newRecorder()
	w, err := New(Config{Root: root, Patterns: []string{"**/*.js"}, Debounce: testDebounce, OnChange: rec.onChange})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	startWatcher(t, w)

	dir := filepath.Join(root, "lib")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Let the create event register the directory before writing into it.
	time.Sleep(testDebounce)
	nested := filepath.Join(dir, "nested.js")
	writeFile(t, nested, "x")

	deadline := time.After(5 * time.Second)
	for {
		got := rec.wait(t)
		if slices.Contains(got, nested) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("no event for %s", nested)
		default:
		}
	}
}

func TestWatcherRunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("first Run() = %v", err)
	}
	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing root", Config{}},
		{"bad pattern", Config{Root: t.TempDir(), Patterns: []string{"[unclosed"}}},
		{"bad ignore", Config{Root: t.TempDir(), Ignore: []string{"{a,b"}}},
		{"root does not exist", Config{Root: filepath.Join(t.TempDir(), "absent")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := New(tt.cfg); err == nil {
				t.Error("New() succeeded")
			}
		})
	}
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	got := DefaultIgnores()
	got[0] = "mutated"
	if DefaultIgnores()[0] == "mutated" {
		t.Error("DefaultIgnores() exposes the internal slice")
	}

	w := &Watcher{ignores: defaultIgnores}
	tests := []struct {
		rel  string
		want bool
	}{
		{".git/HEAD", true},
		{"src/.main.js.swp", true},
		{"main.js~", true},
		{"node_modules/lib/index.js", false},
		{"src/main.js", false},
	}
	for _, tt := range tests {
		if got := w.ignored(tt.rel); got != tt.want {
			t.Errorf("ignored(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}
