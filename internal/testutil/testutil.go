// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"io"
	"path"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// Stopper is an interface for types that have a Stop method returning an error.
// This is commonly used for server types.
type Stopper interface {
	Stop() error
}

// WriteTree writes files under root on fs. Keys are slash-separated paths
// relative to root; parent directories are created as needed.
// The test fails immediately if any write fails.
func WriteTree(t testing.TB, fs afero.Fs, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := path.Join(root, name)
		if err := fs.MkdirAll(path.Dir(p), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", p, err)
		}
		if err := afero.WriteFile(fs, p, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", p, err)
		}
	}
}

// MustChtimes sets the modification time of name on fs.
// The test fails immediately if the operation fails.
func MustChtimes(t testing.TB, fs afero.Fs, name string, mtime time.Time) {
	t.Helper()
	if err := fs.Chtimes(name, mtime, mtime); err != nil {
		t.Fatalf("failed to set times on %s: %v", name, err)
	}
}

// MustClose closes the given io.Closer.
// The test fails immediately if the close fails.
func MustClose(t testing.TB, c io.Closer) {
	t.Helper()
	if err := c.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
}

// MustStop stops the given Stopper (typically a server).
// Unlike MustClose, this logs errors but doesn't fail the test,
// as shutdown errors during cleanup are typically non-fatal.
func MustStop(t testing.TB, s Stopper) {
	t.Helper()
	if err := s.Stop(); err != nil {
		t.Logf("warning: stop returned error: %v", err)
	}
}
