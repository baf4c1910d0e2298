package config

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/deps"
	"github.com/matzehuels/stackbuild/pkg/errors"
)

const sample = `
[build]
parallel = 3
idle_timeout = "90s"
script = "echo $STACKBUILD_NAME"
release = "master-21.06"
arch = "amd64"

[naming]
prefix = "rock"

[[release]]
name = "master-20.06"
arch = ["amd64", "arm64"]

[[release]]
name = "master-21.06"
arch = ["amd64"]
depends_on = ["master-20.06"]
ephemeral = true

[prune]
repository = "http://rock.example.org/apt"
blacklist = ["base-cmake"]

[[priority]]
name = "base"
members = ["base-cmake"]

[[component]]
name = "base-cmake"

[[component]]
name = "base-types"
depends = ["base-cmake", "gem:utilrb >= 3.0"]
gemfile = "Gemfile"

[[meta]]
name = "rock-core"
depends = ["base-types"]

[policy]
alternatives = [["qt5", "qt4"]]
exclude = ["libc"]

[gems]
utilrb = [">= 3.0", "< 4"]

[[gem]]
name = "utilrb"
version = "3.1.0"
depends = ["facets >= 2"]

[[gem]]
name = "facets"
version = "2.9.3"
`

func writeWorkspace(t *testing.T, content string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeWorkspace(t, sample, map[string]string{
		"Gemfile": "source 'https://rubygems.org'\ngem 'rake', '~> 13.0'\n",
	})
	ws, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg := ws.Config

	if cfg.Build.Parallel != 3 || cfg.Build.IdleTimeout != 90*time.Second {
		t.Errorf("build = %+v", cfg.Build)
	}
	if cfg.Build.WorkDir != DefaultWorkDir || cfg.Build.StatusFile != DefaultStatusFile {
		t.Errorf("defaults not applied: %+v", cfg.Build)
	}
	if len(cfg.Releases) != 2 || !cfg.Releases[1].Ephemeral {
		t.Errorf("releases = %+v", cfg.Releases)
	}
	if ws.Path() != path {
		t.Errorf("Path() = %s", ws.Path())
	}

	kind, err := ws.ComponentKind("rock-core")
	if err != nil || kind != dag.KindMeta {
		t.Errorf("ComponentKind(rock-core) = %v, %v", kind, err)
	}
	got, err := ws.ComponentDependencies("base-types")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"base-cmake", "gem:utilrb >= 3.0", "gem:rake ~> 13.0"}
	if !slices.Equal(got, want) {
		t.Errorf("ComponentDependencies(base-types) = %q, want %q", got, want)
	}
	if _, err := ws.ComponentDependencies("nope"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown package error = %v", err)
	}

	if got := ws.Packages(); !slices.Equal(got, []string{"base-cmake", "base-types", "rock-core"}) {
		t.Errorf("Packages() = %v", got)
	}
	if got := ws.Seeds(); !slices.Equal(got, []string{"rock-core"}) {
		t.Errorf("Seeds() = %v", got)
	}
	if got := ws.Pins().Get("utilrb"); !slices.Equal(got, []string{">= 3.0", "< 4"}) {
		t.Errorf("Pins() utilrb = %v", got)
	}
	if n := len(ws.Policies()); n != 2 {
		t.Errorf("Policies() returned %d policies, want 2", n)
	}
	chain, err := ws.Releases().Chain("master-21.06")
	if err != nil || len(chain) != 1 || chain[0].Name != "master-20.06" {
		t.Errorf("Chain(master-21.06) = %v, %v", chain, err)
	}
	if ws.Resolve("build") != filepath.Join(filepath.Dir(path), "build") {
		t.Errorf("Resolve(build) = %s", ws.Resolve("build"))
	}
}

func TestWorkspace_LocalIndex(t *testing.T) {
	ws, err := Load(writeWorkspace(t, sample, map[string]string{"Gemfile": ""}))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	versions, err := ws.LocalIndex().Versions(ctx, "utilrb")
	if err != nil || !slices.Equal(versions, []string{"3.1.0"}) {
		t.Errorf("Versions(utilrb) = %v, %v", versions, err)
	}
	reqs, err := ws.LocalIndex().Dependencies(ctx, "utilrb", "3.1.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 1 || reqs[0].Name != "facets" || !slices.Equal(reqs[0].Constraints, []string{">= 2"}) {
		t.Errorf("Dependencies(utilrb) = %v", reqs)
	}

	g, err := deps.NewClosure(ws, ws.LocalIndex(), deps.Options{Constraints: ws.Pins()}).
		Build(ctx, []string{"base-cmake", "gem:utilrb"})
	if err != nil {
		t.Fatal(err)
	}
	if !g.Has("library:facets") {
		t.Errorf("closure over local gems = %v", g.IDs())
	}
}

func TestFingerprint(t *testing.T) {
	a, err := Load(writeWorkspace(t, sample, map[string]string{"Gemfile": "gem 'rake'\n"}))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load(writeWorkspace(t, sample, map[string]string{"Gemfile": "gem 'rake'\n"}))
	if err != nil {
		t.Fatal(err)
	}
	c, err := Load(writeWorkspace(t, sample, map[string]string{"Gemfile": "gem 'rake', '< 13'\n"}))
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() == "" || a.Fingerprint() != b.Fingerprint() {
		t.Errorf("equal workspaces have fingerprints %q and %q", a.Fingerprint(), b.Fingerprint())
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("a changed Gemfile should change the fingerprint")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode errors.Code
	}{
		{"syntax", "[build", errors.ErrCodeInvalidConfig},
		{"unknown key", "[build]\nparalel = 2\n", errors.ErrCodeInvalidConfig},
		{"duplicate package", "[[component]]\nname = \"a\"\n[[meta]]\nname = \"a\"\n", errors.ErrCodeInvalidConfig},
		{"bad dependency", "[[component]]\nname = \"a\"\ndepends = [\"gem:\"]\n", errors.ErrCodeInvalidConfig},
		{"bad package name", "[[component]]\nname = \"../a\"\n", errors.ErrCodeInvalidConfig},
		{"missing gemfile", "[[component]]\nname = \"a\"\ngemfile = \"nope\"\n", errors.ErrCodeInvalidConfig},
		{"meta gemfile", "[[meta]]\nname = \"a\"\ngemfile = \"Gemfile\"\n", errors.ErrCodeInvalidConfig},
		{"release cycle", "[[release]]\nname = \"a\"\ndepends_on = [\"b\"]\n[[release]]\nname = \"b\"\ndepends_on = [\"a\"]\n", errors.ErrCodeInvalidRelease},
		{"unknown build release", "[build]\nrelease = \"x\"\n", errors.ErrCodeInvalidConfig},
		{"unsupported build arch", "[build]\nrelease = \"a\"\narch = \"arm64\"\n[[release]]\nname = \"a\"\narch = [\"amd64\"]\n", errors.ErrCodeInvalidConfig},
		{"negative parallel", "[build]\nparallel = -1\n", errors.ErrCodeInvalidConfig},
		{"bad repository", "[prune]\nrepository = \"ftp://x\"\n", errors.ErrCodeInvalidConfig},
		{"bad pin", "[gems]\nrake = [\"~~ 1\"]\n", errors.ErrCodeInvalidConfig},
		{"bad gem version", "[[gem]]\nname = \"rake\"\nversion = \"\"\n", errors.ErrCodeInvalidConfig},
		{"single alternative", "[policy]\nalternatives = [[\"qt5\"]]\n", errors.ErrCodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeWorkspace(t, tt.content, nil))
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("Load() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Load() error = %v, want not found", err)
	}
	if err != nil && !strings.Contains(err.Error(), DefaultFileName) {
		t.Errorf("error should name the file: %v", err)
	}
}
