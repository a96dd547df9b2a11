// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modulebox/modulebox/internal/box"
	"github.com/modulebox/modulebox/internal/bundle"
	"github.com/modulebox/modulebox/internal/issue"
	"github.com/modulebox/modulebox/internal/testutil"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

const testRoot = "/srv/app"

type testApp struct {
	app    *App
	fs     afero.Fs
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	dir    string
}

func newTestApp(t *testing.T, files map[string]string) *testApp {
	t.Helper()

	fs := afero.NewMemMapFs()
	testutil.WriteTree(t, fs, testRoot, files)

	ta := &testApp{
		fs:     fs,
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		dir:    t.TempDir(),
	}
	ta.app = NewApp(Dependencies{
		Fs:        fs,
		Stdout:    ta.stdout,
		Stderr:    ta.stderr,
		ConfigDir: ta.dir,
	})
	return ta
}

func (ta *testApp) run(t *testing.T, args ...string) error {
	t.Helper()

	root := NewRootCommand(ta.app)
	root.SetArgs(args)
	root.SetOut(ta.stdout)
	root.SetErr(ta.stderr)
	return root.ExecuteContext(t.Context())
}

func appFiles() map[string]string {
	return map[string]string{
		"main.js":                        "var lib = require('./lib.js');\nrequire('left-pad');\n",
		"lib.js":                         "exports.lib = true;\n",
		"node_modules/left-pad/index.js": "module.exports = function () {};\n",
		"cycle/a.js":                     "require('./b.js');\n",
		"cycle/b.js":                     "require('./a.js');\n",
		"broken.js":                      "require('./nowhere.js');\n",
	}
}

func TestBundleCommand(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, appFiles())
	if err := ta.run(t, "--root", testRoot, "bundle", "./main.js"); err != nil {
		t.Fatalf("bundle: %v", err)
	}

	out := ta.stdout.String()
	for _, want := range []string{
		`<resolve special="false">{"./main.js":"/main.js"}</resolve>`,
		`<file special="false" path="/main.js">`,
		`<file special="false" path="/lib.js">`,
		`<file special="false" path="/node_modules/left-pad/index.js">`,
		"</modules>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("document does not contain %q:\n%s", want, out)
		}
	}
}

func TestBundleCommandAcquired(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, appFiles())
	err := ta.run(t, "--root", testRoot, "bundle", "./lib.js", "--from", "/main.js", "--acquired", "/main.js,/lib.js")
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	if strings.Contains(ta.stdout.String(), "<file ") {
		t.Errorf("acquired modules were sent:\n%s", ta.stdout.String())
	}
}

func TestBundleCommandOutputFile(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, appFiles())
	if err := ta.run(t, "--root", testRoot, "-v", "bundle", "./lib.js", "--output", "/out/bundle.xml"); err != nil {
		t.Fatalf("bundle: %v", err)
	}

	data, err := afero.ReadFile(ta.fs, "/out/bundle.xml")
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), `path="/lib.js"`) {
		t.Errorf("output file misses /lib.js:\n%s", data)
	}
	if ta.stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", ta.stdout.String())
	}
	if !strings.Contains(ta.stderr.String(), "fingerprint: ") {
		t.Errorf("verbose output misses the fingerprint: %q", ta.stderr.String())
	}
}

func TestBundleCommandErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing root", func(t *testing.T) {
		t.Parallel()

		ta := newTestApp(t, appFiles())
		err := ta.run(t, "--root", "/srv/none", "bundle", "./main.js")

		var svcErr *ServiceError
		if !errors.As(err, &svcErr) || svcErr.IssueID != issue.RootNotFoundId {
			t.Fatalf("err = %v, want RootNotFoundId service error", err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("err = %v, want os.ErrNotExist in chain", err)
		}
	})

	t.Run("no identifiers", func(t *testing.T) {
		t.Parallel()

		ta := newTestApp(t, appFiles())
		if err := ta.run(t, "--root", testRoot, "bundle"); err == nil {
			t.Fatal("expected an argument error")
		}
	})

	t.Run("unresolved identifier still writes a document", func(t *testing.T) {
		t.Parallel()

		ta := newTestApp(t, appFiles())
		if err := ta.run(t, "--root", testRoot, "bundle", "./nowhere.js"); err != nil {
			t.Fatalf("bundle: %v", err)
		}
		if !strings.Contains(ta.stdout.String(), `"code":"MODULE_NOT_FOUND"`) {
			t.Errorf("document misses the descriptor:\n%s", ta.stdout.String())
		}
	})
}

func TestBuildLoadPlan(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, appFiles())
	ta.app.flags.root = testRoot
	cfg, err := ta.app.loadConfig(t.Context())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	t.Run("dependencies first", func(t *testing.T) {
		t.Parallel()

		plan, err := buildLoadPlan(t.Context(), ta.app, cfg, requestOf("./main.js"))
		if err != nil {
			t.Fatalf("buildLoadPlan: %v", err)
		}
		pos := positions(plan.Order)
		if pos["/lib.js"] > pos["/main.js"] || pos["/node_modules/left-pad/index.js"] > pos["/main.js"] {
			t.Errorf("order = %v, want dependencies before /main.js", plan.Order)
		}
		if len(plan.Cycles) != 0 || len(plan.Failures) != 0 {
			t.Errorf("cycles = %v, failures = %v, want none", plan.Cycles, plan.Failures)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		t.Parallel()

		plan, err := buildLoadPlan(t.Context(), ta.app, cfg, requestOf("./cycle/a.js"))
		if err != nil {
			t.Fatalf("buildLoadPlan: %v", err)
		}
		if len(plan.Order) != 2 {
			t.Errorf("order = %v, want both cycle members", plan.Order)
		}
		if len(plan.Cycles) != 1 || len(plan.Cycles[0]) != 2 {
			t.Errorf("cycles = %v, want one cycle of two", plan.Cycles)
		}
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()

		plan, err := buildLoadPlan(t.Context(), ta.app, cfg, requestOf("./broken.js"))
		if err != nil {
			t.Fatalf("buildLoadPlan: %v", err)
		}
		if len(plan.Failures) != 1 || plan.Failures[0].Identifier != "./nowhere.js" || plan.Failures[0].From != "/broken.js" {
			t.Errorf("failures = %+v", plan.Failures)
		}
	})
}

func TestGraphCommand(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, appFiles())
	if err := ta.run(t, "--root", testRoot, "graph", "./cycle/a.js"); err != nil {
		t.Fatalf("graph: %v", err)
	}
	out := ta.stdout.String()
	for _, want := range []string{"Load order", "/cycle/a.js", "Cycles", " <-> "} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()

	t.Run("init then path and show", func(t *testing.T) {
		t.Parallel()

		ta := newTestApp(t, nil)
		if err := ta.run(t, "config", "init"); err != nil {
			t.Fatalf("config init: %v", err)
		}
		want := filepath.Join(ta.dir, "config.cue")
		if _, err := os.Stat(want); err != nil {
			t.Fatalf("config file not created: %v", err)
		}

		ta.stdout.Reset()
		if err := ta.run(t, "config", "init"); err != nil {
			t.Fatalf("second config init: %v", err)
		}
		if !strings.Contains(ta.stdout.String(), "already exists") {
			t.Errorf("second init output = %q", ta.stdout.String())
		}

		ta.stdout.Reset()
		if err := ta.run(t, "config", "path"); err != nil {
			t.Fatalf("config path: %v", err)
		}
		if got := strings.TrimSpace(ta.stdout.String()); got != want {
			t.Errorf("config path = %q, want %q", got, want)
		}

		ta.stdout.Reset()
		if err := ta.run(t, "config", "show"); err != nil {
			t.Fatalf("config show: %v", err)
		}
		if !strings.Contains(ta.stdout.String(), want) || !strings.Contains(ta.stdout.String(), "server.address") {
			t.Errorf("config show output:\n%s", ta.stdout.String())
		}
	})

	t.Run("dump toml", func(t *testing.T) {
		t.Parallel()

		ta := newTestApp(t, nil)
		if err := ta.run(t, "config", "dump", "--format", "toml"); err != nil {
			t.Fatalf("config dump: %v", err)
		}
		var doc map[string]any
		if err := toml.Unmarshal(ta.stdout.Bytes(), &doc); err != nil {
			t.Fatalf("dump is not TOML: %v\n%s", err, ta.stdout.String())
		}
		if doc["modules_dir"] != "node_modules" {
			t.Errorf("modules_dir = %v", doc["modules_dir"])
		}
	})

	t.Run("dump cue", func(t *testing.T) {
		t.Parallel()

		ta := newTestApp(t, nil)
		if err := ta.run(t, "config", "dump"); err != nil {
			t.Fatalf("config dump: %v", err)
		}
		if !strings.Contains(ta.stdout.String(), `modules_dir: "node_modules"`) {
			t.Errorf("dump output:\n%s", ta.stdout.String())
		}
	})

	t.Run("dump unknown format", func(t *testing.T) {
		t.Parallel()

		ta := newTestApp(t, nil)
		if err := ta.run(t, "config", "dump", "--format", "yaml"); !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("err = %v, want ErrUnknownFormat", err)
		}
	})
}

func requestOf(ids ...string) bundle.Request {
	return bundle.Request{Request: ids}
}

func positions(order []box.Job) map[string]int {
	pos := make(map[string]int, len(order))
	for i, j := range order {
		pos[j.Value] = i
	}
	return pos
}

func TestRunServe(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, appFiles())
	ta.app.flags.root = testRoot
	cfg, err := ta.app.loadConfig(t.Context())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.Server.Address = "127.0.0.1:0"

	ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
	defer cancel()

	if err := runServe(ctx, ta.app, cfg); err != nil {
		t.Fatalf("runServe: %v", err)
	}
	if !strings.Contains(ta.stdout.String(), "Serving") {
		t.Errorf("stdout = %q, want the serving banner", ta.stdout.String())
	}
	if !strings.Contains(ta.stderr.String(), "bundle server stopped") {
		t.Errorf("stderr = %q, want the stop log line", ta.stderr.String())
	}
}
