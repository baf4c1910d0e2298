package prune

import (
	"context"
	"sync"
	"time"

	"github.com/matzehuels/stackbuild/pkg/cache"
	"github.com/matzehuels/stackbuild/pkg/observability"
	"github.com/matzehuels/stackbuild/pkg/release"
)

// DefaultMembershipTTL is how long persisted membership answers stay valid.
const DefaultMembershipTTL = 7 * 24 * time.Hour

// PackageIndex answers whether a binary package is published for a release
// and architecture. Implementations may query the network.
type PackageIndex interface {
	Exists(ctx context.Context, name, release, arch string) (bool, error)
}

type memberKey struct {
	name, release, arch string
}

// MembershipCache is a read-through cache in front of a [PackageIndex].
//
// Answers are kept for the lifetime of the cache and the first answer for a
// key wins. For non-ephemeral releases answers are also persisted to a
// [cache.Cache] so later runs skip the lookup; answers about ephemeral
// releases are neither read from nor written to the persistent store.
type MembershipCache struct {
	index PackageIndex
	store cache.Cache
	keyer cache.Keyer
	ttl   time.Duration

	mu    sync.Mutex
	known map[memberKey]bool
}

// NewMembershipCache wraps index. A nil store keeps answers in memory only.
func NewMembershipCache(index PackageIndex, store cache.Cache) *MembershipCache {
	if store == nil {
		store = cache.NewNullCache()
	}
	return &MembershipCache{
		index: index,
		store: store,
		keyer: cache.NewDefaultKeyer(),
		ttl:   DefaultMembershipTTL,
		known: make(map[memberKey]bool),
	}
}

// SetKeyer replaces the keyer used for persistent keys.
func (c *MembershipCache) SetKeyer(k cache.Keyer) { c.keyer = k }

// SetTTL sets the expiry of persisted answers. Zero keeps them forever.
func (c *MembershipCache) SetTTL(ttl time.Duration) { c.ttl = ttl }

// Exists reports whether the package name is published in r for arch.
func (c *MembershipCache) Exists(ctx context.Context, name string, r *release.Release, arch string) (bool, error) {
	k := memberKey{name, r.Name, arch}
	if ok, hit := c.lookup(k); hit {
		return ok, nil
	}

	persist := !r.Ephemeral
	ck := c.keyer.MembershipKey(name, r.Name, arch)
	if persist {
		if data, hit, err := c.store.Get(ctx, ck); err == nil && hit && len(data) == 1 {
			observability.Cache().OnCacheHit(ctx, "membership")
			return c.remember(k, data[0] == '1'), nil
		}
		observability.Cache().OnCacheMiss(ctx, "membership")
	}

	ok, err := c.index.Exists(ctx, name, r.Name, arch)
	if err != nil {
		return false, err
	}
	ok = c.remember(k, ok)
	if persist {
		v := []byte{'0'}
		if ok {
			v[0] = '1'
		}
		if c.store.Set(ctx, ck, v, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, "membership", len(v))
		}
	}
	return ok, nil
}

// Len returns the number of answers held in memory.
func (c *MembershipCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.known)
}

func (c *MembershipCache) lookup(k memberKey) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok, hit := c.known[k]
	return ok, hit
}

// remember stores an answer unless one is already present and returns the
// stored answer.
func (c *MembershipCache) remember(k memberKey, ok bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, hit := c.known[k]; hit {
		return prev
	}
	c.known[k] = ok
	return ok
}
