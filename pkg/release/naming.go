package release

import (
	"strings"

	"github.com/matzehuels/stackbuild/pkg/dag"
)

// DefaultPrefix is the package name prefix used when none is configured.
const DefaultPrefix = "rock"

// Naming maps graph nodes to Debian package names. The release token is
// part of every name, so the equivalent package of an ancestor release is
// found by substituting the ancestor's name.
type Naming struct {
	Prefix string `toml:"prefix" json:"prefix"`
}

// WithDefaults returns a copy with an empty prefix replaced by [DefaultPrefix].
func (n Naming) WithDefaults() Naming {
	if n.Prefix == "" {
		n.Prefix = DefaultPrefix
	}
	return n
}

// PackageName returns "<prefix>-<release>-<name>" for components and meta
// nodes and "<prefix>-<release>-ruby-<name>" for libraries, with the node
// name normalized by [Normalize].
func (n Naming) PackageName(release string, node dag.Node) string {
	n = n.WithDefaults()
	parts := []string{Normalize(n.Prefix), release}
	if node.Kind == dag.KindLibrary {
		parts = append(parts, "ruby")
	}
	name := node.Name
	if name == "" {
		_, name, _ = dag.SplitID(node.ID)
	}
	return strings.Join(append(parts, Normalize(name)), "-")
}

var normalizer = strings.NewReplacer("_", "-", "/", "-", ".", "-")

// Normalize lowercases a name and maps characters Debian does not allow in
// package names to dashes.
func Normalize(name string) string {
	return normalizer.Replace(strings.ToLower(name))
}
