package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/scheduler"
)

func scriptGraph(t *testing.T) *dag.DAG {
	t.Helper()
	g := dag.New(nil)
	if err := g.AddNode(dag.Node{ID: "library:utilrb", Kind: dag.KindLibrary, Meta: dag.Metadata{"version": "3.1.0"}}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(dag.Node{ID: "component:base/types", Kind: dag.KindComponent}); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestScriptBuilder_Build(t *testing.T) {
	dir := t.TempDir()
	b, err := NewScriptBuilder(`echo "$STACKBUILD_PACKAGE $STACKBUILD_VERSION $STACKBUILD_KIND" > out.txt
echo building`, ScriptOptions{
		WorkDir: dir,
		Release: "master-21.06",
		Arch:    "amd64",
		Graph:   scriptGraph(t),
		Env:     []string{},
	})
	if err != nil {
		t.Fatal(err)
	}

	job := scheduler.Job{ID: "library:utilrb", Kind: dag.KindLibrary}
	if err := b.Build(context.Background(), job); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	jobDir := b.JobDir(job)
	if want := filepath.Join(dir, "master-21.06", "amd64", "library", "utilrb"); jobDir != want {
		t.Errorf("JobDir() = %s, want %s", jobDir, want)
	}
	out, err := os.ReadFile(filepath.Join(jobDir, "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(out)); got != "rock-master-21.06-ruby-utilrb 3.1.0 library" {
		t.Errorf("script saw %q", got)
	}
	log, err := os.ReadFile(filepath.Join(jobDir, BuildLogName))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(log)) != "building" {
		t.Errorf("build log = %q", log)
	}
}

func TestScriptBuilder_Failure(t *testing.T) {
	b, err := NewScriptBuilder("echo broken >&2; exit 3", ScriptOptions{WorkDir: t.TempDir(), Env: []string{}})
	if err != nil {
		t.Fatal(err)
	}
	job := scheduler.Job{ID: "component:base-cmake", Kind: dag.KindComponent}
	err = b.Build(context.Background(), job)
	if err == nil || !strings.Contains(err.Error(), "status 3") {
		t.Fatalf("Build() error = %v, want exit status 3", err)
	}
	log, _ := os.ReadFile(filepath.Join(b.JobDir(job), BuildLogName))
	if !strings.Contains(string(log), "broken") {
		t.Errorf("stderr not captured in build log: %q", log)
	}
}

func TestScriptBuilder_JobDirsAreDistinct(t *testing.T) {
	dir := t.TempDir()
	b, err := NewScriptBuilder(`echo "$STACKBUILD_NAME" > out.txt`, ScriptOptions{WorkDir: dir, Env: []string{}})
	if err != nil {
		t.Fatal(err)
	}

	names := []string{"foo-bar", "foo_bar", "foo.bar", "foo/bar", "Foo-Bar"}
	seen := make(map[string]string)
	for _, name := range names {
		job := scheduler.Job{ID: dag.NodeID(dag.KindLibrary, name), Kind: dag.KindLibrary}
		if err := b.Build(context.Background(), job); err != nil {
			t.Fatalf("Build(%s) error = %v", name, err)
		}
		jobDir := b.JobDir(job)
		if other, dup := seen[jobDir]; dup {
			t.Fatalf("%s and %s share %s", other, name, jobDir)
		}
		seen[jobDir] = name
		out, err := os.ReadFile(filepath.Join(jobDir, "out.txt"))
		if err != nil {
			t.Fatal(err)
		}
		if got := strings.TrimSpace(string(out)); got != name {
			t.Errorf("%s: out.txt = %q", name, got)
		}
	}
	if got := b.JobDir(scheduler.Job{ID: "library:foo-bar", Kind: dag.KindLibrary}); got != filepath.Join(dir, "library", "foo-bar") {
		t.Errorf("plain name dir = %s", got)
	}
}

func TestScriptBuilder_Cancelled(t *testing.T) {
	b, err := NewScriptBuilder("exit 0", ScriptOptions{WorkDir: t.TempDir(), Env: []string{}})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Build(ctx, scheduler.Job{ID: "component:a"}); err == nil {
		t.Error("Build() with cancelled context should fail")
	}
}

func TestScriptBuilder_Environ(t *testing.T) {
	b, err := NewScriptBuilder("true", ScriptOptions{
		Release: "master-21.06",
		Arch:    "arm64",
		Graph:   scriptGraph(t),
		Env:     []string{"PATH=/usr/bin"},
	})
	if err != nil {
		t.Fatal(err)
	}
	env := b.Environ(scheduler.Job{
		ID:           "component:base/types",
		Kind:         dag.KindComponent,
		Dependencies: []string{"component:base-cmake", "library:utilrb"},
	}, "work")

	for _, want := range []string{
		"PATH=/usr/bin",
		"STACKBUILD_ID=component:base/types",
		"STACKBUILD_NAME=base/types",
		"STACKBUILD_KIND=component",
		"STACKBUILD_PACKAGE=rock-master-21.06-base-types",
		"STACKBUILD_ARCH=arm64",
		"STACKBUILD_VERSION=",
		"STACKBUILD_DEPENDS=component:base-cmake library:utilrb",
	} {
		if !slices.Contains(env, want) {
			t.Errorf("environment lacks %q", want)
		}
	}
}

func TestNewScriptBuilder_Invalid(t *testing.T) {
	for _, script := range []string{"", "   ", "if then fi (("} {
		if _, err := NewScriptBuilder(script, ScriptOptions{}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
			t.Errorf("NewScriptBuilder(%q) error = %v, want invalid config", script, err)
		}
	}
}

func TestScriptKeepAlive(t *testing.T) {
	fn, err := ScriptKeepAlive("true", nil)
	if err != nil {
		t.Fatal(err)
	}
	fn(context.Background())

	if _, err := ScriptKeepAlive("", nil); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("empty keep-alive script error = %v", err)
	}
}
