// SPDX-License-Identifier: MPL-2.0

// Package localize maps require identifiers to files under a module root.
//
// The rules are a small subset of Node's: root-absolute and relative
// identifiers are probed as a file, then as a directory; bare identifiers are
// looked up in a modules directory in every ancestor of the requiring file.
// All paths are virtual, slash-separated and rooted at "/", so a lookup can
// never leave the root.
package localize

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/modulebox/modulebox/internal/resolution"

	"github.com/spf13/afero"
)

// DefaultModulesDir is the directory searched for bare identifiers.
const DefaultModulesDir = "node_modules"

const manifestName = "package.json"

var (
	fileSuffixes = []string{"", ".js", ".json"}
	indexNames   = []string{"index.js", "index.json"}
)

type (
	// Localizer resolves identifiers against a rooted filesystem.
	Localizer struct {
		fs         afero.Fs
		modulesDir string
	}

	// Option configures a Localizer.
	Option func(*Localizer)

	manifest struct {
		Main string `json:"main"`
	}
)

// WithModulesDir sets the directory name searched for bare identifiers.
func WithModulesDir(name string) Option {
	return func(l *Localizer) {
		if name != "" {
			l.modulesDir = name
		}
	}
}

// New returns a Localizer over the files of root on fs.
func New(fs afero.Fs, root string, opts ...Option) *Localizer {
	l := &Localizer{
		fs:         afero.NewBasePathFs(fs, root),
		modulesDir: DefaultModulesDir,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Localize returns the root-relative path of the file identifier names when
// required from fromDir. A missing module yields *resolution.NotFoundError and
// an unreadable package manifest yields *resolution.SyntaxError.
func (l *Localizer) Localize(ctx context.Context, fromDir, identifier string) (string, error) {
	if identifier == "" {
		return "", &resolution.NotFoundError{Identifier: identifier}
	}
	fromDir = path.Clean("/" + fromDir)

	if isPathLike(identifier) {
		target := identifier
		if !strings.HasPrefix(identifier, "/") {
			target = path.Join(fromDir, identifier)
		}
		p, ok, err := l.probe(ctx, path.Clean("/"+target))
		if err != nil {
			return "", err
		}
		if ok {
			return p, nil
		}
		return "", &resolution.NotFoundError{Identifier: identifier}
	}

	for _, dir := range l.lookupDirs(fromDir) {
		p, ok, err := l.probe(ctx, path.Join(dir, identifier))
		if err != nil {
			return "", err
		}
		if ok {
			return p, nil
		}
	}
	return "", &resolution.NotFoundError{Identifier: identifier}
}

// lookupDirs returns the modules directories of fromDir and its ancestors,
// nearest first. Directories that are themselves modules directories are
// skipped.
func (l *Localizer) lookupDirs(fromDir string) []string {
	var dirs []string
	for dir := fromDir; ; dir = path.Dir(dir) {
		if path.Base(dir) != l.modulesDir {
			dirs = append(dirs, path.Join(dir, l.modulesDir))
		}
		if dir == "/" {
			return dirs
		}
	}
}

func (l *Localizer) probe(ctx context.Context, p string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if found, ok := l.probeFile(p); ok {
		return found, true, nil
	}
	return l.probeDir(p)
}

func (l *Localizer) probeFile(p string) (string, bool) {
	for _, suffix := range fileSuffixes {
		if l.isFile(p + suffix) {
			return p + suffix, true
		}
	}
	return "", false
}

func (l *Localizer) probeDir(dir string) (string, bool, error) {
	pkg := path.Join(dir, manifestName)
	if l.isFile(pkg) {
		data, err := afero.ReadFile(l.fs, pkg)
		if err != nil {
			return "", false, fmt.Errorf("read %s: %w", pkg, err)
		}
		var m manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return "", false, &resolution.SyntaxError{Message: fmt.Sprintf("Error parsing %s: %v", pkg, err)}
		}
		if m.Main != "" {
			main := path.Join(dir, m.Main)
			if found, ok := l.probeFile(main); ok {
				return found, true, nil
			}
			if found, ok := l.probeIndex(main); ok {
				return found, true, nil
			}
		}
	}
	found, ok := l.probeIndex(dir)
	return found, ok, nil
}

func (l *Localizer) probeIndex(dir string) (string, bool) {
	for _, name := range indexNames {
		p := path.Join(dir, name)
		if l.isFile(p) {
			return p, true
		}
	}
	return "", false
}

func (l *Localizer) isFile(p string) bool {
	info, err := l.fs.Stat(p)
	return err == nil && !info.IsDir()
}

func isPathLike(id string) bool {
	return id == "." || id == ".." ||
		strings.HasPrefix(id, "/") ||
		strings.HasPrefix(id, "./") ||
		strings.HasPrefix(id, "../")
}
