package cache

// ScopedKeyer wraps a Keyer with a prefix so that several build farms can
// share one cache backend without seeing each other's entries.
//
// Example usage:
//
//	// Keys for the "rock" farm
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "rock:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// MembershipKey generates a prefixed key for package-index membership.
func (k *ScopedKeyer) MembershipKey(pkg, release, arch string) string {
	return k.prefix + k.inner.MembershipKey(pkg, release, arch)
}

// ClosureKey generates a prefixed key for a resolved closure.
func (k *ScopedKeyer) ClosureKey(seeds []string, fingerprint string) string {
	return k.prefix + k.inner.ClosureKey(seeds, fingerprint)
}
