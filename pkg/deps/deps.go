package deps

import (
	"context"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/errors"
)

const (
	DefaultMaxRounds   = 1000           // Default bound on closure rounds
	DefaultMaxNodes    = 5000           // Default bound on closure size
	DefaultConcurrency = 8              // Default concurrent lookups per round
	DefaultCacheTTL    = 24 * time.Hour // Default HTTP cache duration
)

// LibraryPrefix marks a dependency declaration as a RubyGems library.
const LibraryPrefix = "gem:"

// Options configures closure building.
type Options struct {
	MaxRounds   int           // Maximum resolution rounds (default: 1000)
	MaxNodes    int           // Maximum nodes in the closure (default: 5000)
	Concurrency int           // Concurrent lookups per round (default: 8)
	CacheTTL    time.Duration // HTTP cache duration (default: 24h)
	Refresh     bool          // Bypass cache for fresh data
	Policies    []Policy      // Dependency rewrites, applied in order
	Constraints ConstraintSet // Constraints applied to libraries up front (pins)
	Logger      *log.Logger   // Progress logger (default: discard)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = DefaultMaxNodes
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return opts
}

// Requirement is a library name with the constraints a dependent places on
// it. An empty Constraints list accepts any version.
type Requirement struct {
	Name        string
	Constraints []string
}

// String renders the requirement as "name (c1, c2)".
func (r Requirement) String() string {
	if len(r.Constraints) == 0 {
		return r.Name
	}
	return r.Name + " (" + strings.Join(r.Constraints, ", ") + ")"
}

// Dependency is a declared dependency of a node. Components and meta nodes
// are referred to by name; their kind comes from the [MetadataProvider].
type Dependency struct {
	Kind        dag.Kind
	Name        string
	Constraints []string // libraries only
}

// ID returns the namespaced node ID of the dependency.
func (d Dependency) ID() string { return dag.NodeID(d.Kind, d.Name) }

// ParseDependency parses a dependency declaration:
//
//	base-cmake              component or meta node
//	gem:utilrb              library, any version
//	gem:utilrb >= 3.0, < 4  library with constraints
//
// A declaration already namespaced as an ID ("library:utilrb") is accepted
// too.
func ParseDependency(s string) (Dependency, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Dependency{}, errors.New(errors.ErrCodeInvalidPackage, "empty dependency")
	}
	if rest, ok := strings.CutPrefix(s, LibraryPrefix); ok {
		rest = strings.TrimSpace(rest)
		name, constraints := rest, ""
		if i := strings.IndexAny(rest, " <>=!~"); i >= 0 {
			name, constraints = rest[:i], rest[i:]
		}
		d := Dependency{Kind: dag.KindLibrary, Name: name}
		if c := strings.TrimSpace(constraints); c != "" {
			d.Constraints = splitConstraints(c)
		}
		return d, validateDependency(d)
	}
	if kind, name, ok := dag.SplitID(s); ok {
		return Dependency{Kind: kind, Name: name}, validateDependency(Dependency{Name: name})
	}
	d := Dependency{Kind: dag.KindComponent, Name: s}
	return d, validateDependency(d)
}

func validateDependency(d Dependency) error {
	return errors.ValidatePackageName(d.Name)
}

func splitConstraints(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Index lists the published versions of libraries and their dependencies.
// Implementations return an error carrying errors.ErrCodeNotFound when a
// library is unknown.
type Index interface {
	Versions(ctx context.Context, name string) ([]string, error)
	Dependencies(ctx context.Context, name, version string) ([]Requirement, error)
}

// MetadataProvider describes the natively built packages of a workspace.
// Implementations return an error carrying errors.ErrCodeNotFound for
// unknown names.
type MetadataProvider interface {
	// ComponentKind reports whether name is a component or a meta node.
	ComponentKind(name string) (dag.Kind, error)
	// ComponentDependencies returns the declared dependencies of a component
	// or meta node in [ParseDependency] syntax.
	ComponentDependencies(name string) ([]string, error)
}

// ConstraintSet accumulates library constraints across requesters. For each
// library it keeps an ordered list without duplicates. The zero value is
// ready to use after a call to Add.
type ConstraintSet map[string][]string

// Add appends constraints to a library, skipping ones already present. It
// reports whether the set changed.
func (s *ConstraintSet) Add(name string, constraints ...string) bool {
	if *s == nil {
		*s = make(ConstraintSet)
	}
	cur, known := (*s)[name]
	changed := !known
	for _, c := range constraints {
		c = strings.TrimSpace(c)
		if c == "" || slices.Contains(cur, c) {
			continue
		}
		cur = append(cur, c)
		changed = true
	}
	(*s)[name] = cur
	return changed
}

// Get returns a copy of the constraints accumulated for a library.
func (s ConstraintSet) Get(name string) []string {
	return slices.Clone(s[name])
}

// Clone returns a deep copy.
func (s ConstraintSet) Clone() ConstraintSet {
	c := make(ConstraintSet, len(s))
	for k, v := range s {
		c[k] = slices.Clone(v)
	}
	return c
}
