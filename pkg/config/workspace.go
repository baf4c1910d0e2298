package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackbuild/pkg/cache"
	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/deps"
	"github.com/matzehuels/stackbuild/pkg/deps/ruby"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/release"
	"github.com/matzehuels/stackbuild/pkg/version"
)

// Workspace is a validated configuration. It implements
// [deps.MetadataProvider] over the declared components and meta packages.
type Workspace struct {
	Config *Config

	path        string
	fingerprint string
	kinds       map[string]dag.Kind
	depends     map[string][]string
	releases    *release.Hierarchy
	local       *deps.StaticIndex
}

// Load reads and validates the workspace file at path.
func Load(path string) (*Workspace, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	ws, err := New(cfg, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ws.path = path
	return ws, nil
}

// New validates cfg. Relative Gemfile paths are resolved against dir.
func New(cfg *Config, dir string) (*Workspace, error) {
	ws := &Workspace{
		Config:  cfg,
		kinds:   make(map[string]dag.Kind),
		depends: make(map[string][]string),
		local:   deps.NewStaticIndex(),
	}

	var fp bytes.Buffer
	if err := toml.NewEncoder(&fp).Encode(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "encode workspace")
	}
	for _, p := range cfg.Components {
		extra, err := readGemfile(dir, p.Gemfile)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", p.Name, err)
		}
		fp.WriteString(strings.Join(extra, "\n"))
		if err := ws.add(p, dag.KindComponent, extra); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.Metas {
		if p.Gemfile != "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "meta package %s cannot declare a Gemfile", p.Name)
		}
		if err := ws.add(p, dag.KindMeta, nil); err != nil {
			return nil, err
		}
	}
	ws.fingerprint = cache.Hash(fp.Bytes())

	releases, err := release.NewHierarchy(cfg.Releases...)
	if err != nil {
		return nil, err
	}
	ws.releases = releases

	if err := ws.validate(); err != nil {
		return nil, err
	}
	return ws, nil
}

func (w *Workspace) add(p Package, kind dag.Kind, extra []string) error {
	if err := errors.ValidatePackageName(p.Name); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s %q", kind, p.Name)
	}
	if prev, dup := w.kinds[p.Name]; dup {
		return errors.New(errors.ErrCodeInvalidConfig, "%s %s already declared as %s", kind, p.Name, prev)
	}
	all := append(slices.Clone(p.Depends), extra...)
	for _, d := range all {
		if _, err := deps.ParseDependency(d); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s %s: dependency %q", kind, p.Name, d)
		}
	}
	w.kinds[p.Name] = kind
	w.depends[p.Name] = all
	return nil
}

func (w *Workspace) validate() error {
	cfg := w.Config
	if cfg.Build.Parallel < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "build.parallel must not be negative")
	}
	if cfg.Build.IdleTimeout < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "build.idle_timeout must not be negative")
	}
	if cfg.Build.Release != "" {
		r, ok := w.releases.Get(cfg.Build.Release)
		if !ok {
			return errors.New(errors.ErrCodeInvalidConfig, "build.release %s is not declared", cfg.Build.Release)
		}
		if cfg.Build.Arch != "" && !r.Supports(cfg.Build.Arch) {
			return errors.New(errors.ErrCodeInvalidConfig, "release %s does not build for %s", r.Name, cfg.Build.Arch)
		}
	}
	if cfg.Prune.Repository != "" {
		if err := errors.ValidateURL(cfg.Prune.Repository); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "prune.repository")
		}
	}
	if cfg.RubyGems.URL != "" {
		if err := errors.ValidateURL(cfg.RubyGems.URL); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "rubygems.url")
		}
	}
	for _, grp := range cfg.Priorities {
		if grp.Name == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "priority group without name")
		}
	}
	for _, alt := range cfg.Policies.Alternatives {
		if len(alt) < 2 {
			return errors.New(errors.ErrCodeInvalidConfig, "alternatives %v need at least two names", alt)
		}
	}
	for name, cons := range cfg.Pins {
		if _, err := version.ParseRequirement(cons...); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "gems.%s", name)
		}
	}
	for _, g := range cfg.Gems {
		if err := errors.ValidatePackageName(g.Name); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "gem %q", g.Name)
		}
		if _, err := version.Parse(g.Version); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "gem %s", g.Name)
		}
		var reqs []deps.Requirement
		for _, d := range g.Depends {
			dep, err := deps.ParseDependency(deps.LibraryPrefix + d)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidConfig, err, "gem %s %s: dependency %q", g.Name, g.Version, d)
			}
			reqs = append(reqs, deps.Requirement{Name: dep.Name, Constraints: dep.Constraints})
		}
		w.local.Add(g.Name, g.Version, reqs...)
	}
	return nil
}

// ComponentKind implements [deps.MetadataProvider].
func (w *Workspace) ComponentKind(name string) (dag.Kind, error) {
	kind, ok := w.kinds[name]
	if !ok {
		return 0, &errors.NotFoundError{Name: name}
	}
	return kind, nil
}

// ComponentDependencies implements [deps.MetadataProvider].
func (w *Workspace) ComponentDependencies(name string) ([]string, error) {
	d, ok := w.depends[name]
	if !ok {
		return nil, &errors.NotFoundError{Name: name}
	}
	return slices.Clone(d), nil
}

// Packages returns the declared component and meta names, sorted.
func (w *Workspace) Packages() []string {
	names := make([]string, 0, len(w.kinds))
	for n := range w.kinds {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Releases returns the validated release hierarchy.
func (w *Workspace) Releases() *release.Hierarchy { return w.releases }

// LocalIndex returns the libraries declared with [[gem]].
func (w *Workspace) LocalIndex() *deps.StaticIndex { return w.local }

// Pins returns the configured library constraints.
func (w *Workspace) Pins() deps.ConstraintSet {
	var pins deps.ConstraintSet
	for name, cons := range w.Config.Pins {
		pins.Add(name, cons...)
	}
	return pins
}

// Policies returns the configured dependency rewrites in a fixed order:
// exclusions first, then each alternatives group.
func (w *Workspace) Policies() []deps.Policy {
	var out []deps.Policy
	if ex := w.Config.Policies.Exclude; len(ex) > 0 {
		out = append(out, deps.Exclude(ex...))
	}
	for _, alt := range w.Config.Policies.Alternatives {
		out = append(out, deps.PreferFirst(alt...))
	}
	return out
}

// Seeds returns the configured default seeds, or every meta package when
// none are configured.
func (w *Workspace) Seeds() []string {
	if len(w.Config.Build.Seeds) > 0 {
		return slices.Clone(w.Config.Build.Seeds)
	}
	var seeds []string
	for _, p := range w.Config.Metas {
		seeds = append(seeds, p.Name)
	}
	return seeds
}

// Fingerprint identifies the workspace content, including referenced
// Gemfiles. It changes whenever resolution could produce a different graph.
func (w *Workspace) Fingerprint() string { return w.fingerprint }

// Path returns the file the workspace was loaded from, if any.
func (w *Workspace) Path() string { return w.path }

// Resolve returns path relative to the workspace directory unless it is
// absolute.
func (w *Workspace) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || w.path == "" {
		return path
	}
	return filepath.Join(filepath.Dir(w.path), path)
}

func readGemfile(dir, name string) ([]string, error) {
	if name == "" {
		return nil, nil
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	reqs, err := ruby.ReadGemfile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "gemfile %s not found", name)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read gemfile %s", name)
	}
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		d := deps.LibraryPrefix + r.Name
		if len(r.Constraints) > 0 {
			d += " " + strings.Join(r.Constraints, ", ")
		}
		out = append(out, d)
	}
	return out, nil
}

var _ deps.MetadataProvider = (*Workspace)(nil)
