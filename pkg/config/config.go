// Package config loads stackbuild.toml workspace files.
//
// A workspace declares the natively built components and meta packages,
// the target releases and their ancestry, the package repository used for
// pruning, and the defaults of the build command:
//
//	[build]
//	parallel = 4
//	script = "deb-build \"$STACKBUILD_NAME\""
//
//	[[release]]
//	name = "master-21.06"
//	arch = ["amd64"]
//	depends_on = ["master-20.06"]
//
//	[[component]]
//	name = "base-types"
//	depends = ["base-cmake", "gem:utilrb >= 3.0"]
//
// [Load] validates the file and returns a [Workspace], which serves as the
// metadata provider of the closure builder.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/release"
)

// DefaultFileName is the workspace file looked up by the CLI.
const DefaultFileName = "stackbuild.toml"

const (
	DefaultWorkDir    = "build"            // Default root of per-job directories
	DefaultStatusFile = "build/status.yml" // Default status snapshot path
)

// Config mirrors the TOML document.
type Config struct {
	Build      BuildConfig         `toml:"build"`
	Naming     release.Naming      `toml:"naming"`
	Releases   []release.Release   `toml:"release"`
	Prune      PruneConfig         `toml:"prune"`
	Priorities []dag.PriorityGroup `toml:"priority"`
	Components []Package           `toml:"component"`
	Metas      []Package           `toml:"meta"`
	Policies   PolicyConfig        `toml:"policy"`
	RubyGems   RubyGemsConfig      `toml:"rubygems"`

	// Pins constrains libraries up front: gem name -> constraints.
	Pins map[string][]string `toml:"gems"`

	// Gems declares libraries locally, for offline workspaces.
	Gems []Gem `toml:"gem"`
}

// BuildConfig holds the defaults of the build command.
type BuildConfig struct {
	Seeds       []string      `toml:"seeds"`
	Release     string        `toml:"release"`
	Arch        string        `toml:"arch"`
	Parallel    int           `toml:"parallel"`
	IdleTimeout time.Duration `toml:"idle_timeout"`
	Script      string        `toml:"script"`
	KeepAlive   string        `toml:"keep_alive"`
	WorkDir     string        `toml:"work_dir"`
	StatusFile  string        `toml:"status_file"`
}

// PruneConfig points at the APT repository of the ancestor releases.
type PruneConfig struct {
	Repository string   `toml:"repository"`
	Component  string   `toml:"component"`
	Blacklist  []string `toml:"blacklist"`
}

// PolicyConfig declares dependency rewrites applied during resolution.
type PolicyConfig struct {
	// Alternatives lists groups of mutually exclusive packages; a node
	// depending on several members of a group keeps the first one listed.
	Alternatives [][]string `toml:"alternatives"`
	// Exclude drops dependencies provided by the base system.
	Exclude []string `toml:"exclude"`
}

// RubyGemsConfig selects where libraries are resolved.
type RubyGemsConfig struct {
	URL      string        `toml:"url"`
	CacheTTL time.Duration `toml:"cache_ttl"`
	// Offline resolves libraries against the [[gem]] declarations only.
	Offline bool `toml:"offline"`
}

// Package is a component or meta package declaration.
type Package struct {
	Name    string   `toml:"name"`
	Depends []string `toml:"depends"`
	// Gemfile adds the gems of a Gemfile, relative to the workspace file,
	// as library dependencies. Components only.
	Gemfile string `toml:"gemfile"`
}

// Gem is a locally declared library version.
type Gem struct {
	Name    string   `toml:"name"`
	Version string   `toml:"version"`
	Depends []string `toml:"depends"` // "name" or "name >= 1, < 2"
}

// WithDefaults returns a copy of Config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	cfg := c
	if cfg.Build.WorkDir == "" {
		cfg.Build.WorkDir = DefaultWorkDir
	}
	if cfg.Build.StatusFile == "" {
		cfg.Build.StatusFile = DefaultStatusFile
	}
	cfg.Naming = cfg.Naming.WithDefaults()
	return cfg
}

// Parse decodes a TOML document. Unknown keys are rejected so typos do not
// go unnoticed.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse workspace")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown key %s", undecoded[0])
	}
	cfg = cfg.WithDefaults()
	return &cfg, nil
}

// ReadFile parses the workspace file at path.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.NotFoundError{Name: "workspace " + path}
		}
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
