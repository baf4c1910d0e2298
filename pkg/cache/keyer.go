package cache

import (
	"fmt"
	"slices"
)

// Keyer derives cache keys.
type Keyer interface {
	// HTTPKey returns the key for a cached HTTP response.
	HTTPKey(namespace, key string) string
	// MembershipKey returns the key recording whether a binary package is
	// published for a release and architecture.
	MembershipKey(pkg, release, arch string) string
	// ClosureKey returns the key for a resolved dependency closure. The
	// fingerprint identifies the workspace the closure was computed from.
	ClosureKey(seeds []string, fingerprint string) string
}

// DefaultKeyer produces readable keys for HTTP responses and hashed keys for
// everything else.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default Keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey returns "http:<namespace>:<key>".
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return fmt.Sprintf("http:%s:%s", namespace, key)
}

// MembershipKey returns "membership:<sha256(pkg, release, arch)>".
func (DefaultKeyer) MembershipKey(pkg, release, arch string) string {
	return hashKey("membership", pkg, release, arch)
}

// ClosureKey returns "closure:<sha256(seeds, fingerprint)>". Seed order does
// not matter.
func (DefaultKeyer) ClosureKey(seeds []string, fingerprint string) string {
	sorted := slices.Clone(seeds)
	slices.Sort(sorted)
	return hashKey("closure", sorted, fingerprint)
}
