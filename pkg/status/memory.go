package status

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemorySink keeps every saved snapshot in memory.
type MemorySink struct {
	mu    sync.Mutex
	saved []Snapshot
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Save implements [Sink]. The snapshot is copied.
func (m *MemorySink) Save(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, clone(s))
	return nil
}

// Latest implements [Store].
func (m *MemorySink) Latest(context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil, ErrNoSnapshot
	}
	s := clone(m.saved[len(m.saved)-1])
	return &s, nil
}

// Get returns the latest snapshot of one run.
func (m *MemorySink) Get(_ context.Context, runID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].RunID == runID {
			s := clone(m.saved[i])
			return &s, nil
		}
	}
	return nil, ErrNoSnapshot
}

// Snapshots returns copies of all saved snapshots in save order.
func (m *MemorySink) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, len(m.saved))
	for i, s := range m.saved {
		out[i] = clone(s)
	}
	return out
}

func clone(s Snapshot) Snapshot {
	c := s
	c.Succeeded = cloneEntries(s.Succeeded)
	c.Failed = cloneEntries(s.Failed)
	c.Jobs = maps.Clone(s.Jobs)
	return c
}

func cloneEntries(m map[string][]Entry) map[string][]Entry {
	if m == nil {
		return nil
	}
	out := make(map[string][]Entry, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

var (
	_ Store    = (*MemorySink)(nil)
	_ RunStore = (*MemorySink)(nil)
)
