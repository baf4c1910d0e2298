// Package status persists build progress.
//
// The scheduler hands a complete [Snapshot] to a [Sink] after every job
// completion, so an interrupted run leaves an accurate record of what was
// built. Backends:
//   - [FileSink]: YAML document on disk, replaced atomically (CLI default)
//   - [MongoSink]: one document per run, for build farms
//   - [MemorySink]: keeps every snapshot, for tests
//   - [NullSink]: discards everything
//
// [MultiSink] fans a snapshot out to several sinks.
package status

import (
	"context"
	"errors"
	"slices"
	"time"
)

// ErrNoSnapshot is returned by [Store.Latest] when nothing was saved yet.
var ErrNoSnapshot = errors.New("no status snapshot")

// Entry is one successfully or unsuccessfully built job. Index is the
// position of the job in completion order within its kind.
type Entry struct {
	Kind  string `yaml:"kind" json:"kind" bson:"kind"`
	Index int    `yaml:"index" json:"index" bson:"index"`
	ID    string `yaml:"id" json:"id" bson:"id"`
}

// Snapshot is the full state of a run at one point in time.
type Snapshot struct {
	RunID     string    `yaml:"run_id" json:"run_id" bson:"_id"`
	Release   string    `yaml:"release,omitempty" json:"release,omitempty" bson:"release,omitempty"`
	Arch      string    `yaml:"arch,omitempty" json:"arch,omitempty" bson:"arch,omitempty"`
	StartedAt time.Time `yaml:"started_at" json:"started_at" bson:"started_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at" bson:"updated_at"`
	Done      bool      `yaml:"done" json:"done" bson:"done"`
	Cancelled bool      `yaml:"cancelled,omitempty" json:"cancelled,omitempty" bson:"cancelled,omitempty"`

	// Succeeded and Failed are keyed by kind ("component", "library", "meta").
	Succeeded map[string][]Entry `yaml:"succeeded" json:"succeeded" bson:"succeeded"`
	Failed    map[string][]Entry `yaml:"failed" json:"failed" bson:"failed"`

	// Jobs maps every job ID to its current status.
	Jobs map[string]string `yaml:"jobs,omitempty" json:"jobs,omitempty" bson:"jobs,omitempty"`
}

// SucceededIDs returns the IDs of every succeeded job across kinds.
func (s *Snapshot) SucceededIDs() []string {
	var ids []string
	for _, entries := range s.Succeeded {
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// Counts returns the number of jobs per status.
func (s *Snapshot) Counts() map[string]int {
	counts := make(map[string]int)
	for _, st := range s.Jobs {
		counts[st]++
	}
	return counts
}

// Sink receives snapshots. Save is called from a single goroutine; a failing
// Save does not stop the run.
type Sink interface {
	Save(ctx context.Context, s Snapshot) error
}

// Store is a Sink that can return the most recently saved snapshot.
type Store interface {
	Sink
	Latest(ctx context.Context) (*Snapshot, error)
}

// RunStore looks up the snapshot of a specific run.
type RunStore interface {
	Get(ctx context.Context, runID string) (*Snapshot, error)
}

// NullSink discards snapshots.
type NullSink struct{}

// Save does nothing.
func (NullSink) Save(context.Context, Snapshot) error { return nil }

// MultiSink saves to every sink in order and joins their errors.
type MultiSink []Sink

// Save implements [Sink].
func (m MultiSink) Save(ctx context.Context, s Snapshot) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Save(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sink = NullSink{}
	_ Sink = MultiSink(nil)
)
