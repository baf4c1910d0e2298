package status

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		RunID:     "run-1",
		Release:   "master",
		Arch:      "amd64",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC),
		Succeeded: map[string][]Entry{
			"component": {{Kind: "component", Index: 0, ID: "component:base-cmake"}},
			"library":   {{Kind: "library", Index: 0, ID: "library:utilrb"}},
		},
		Failed: map[string][]Entry{
			"component": {{Kind: "component", Index: 0, ID: "component:base-types"}},
		},
		Jobs: map[string]string{
			"component:base-cmake": "finished",
			"library:utilrb":       "finished",
			"component:base-types": "failed",
			"meta:rock-core":       "skipped",
		},
	}
}

func TestFileSink(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "build", "status.yml")
	sink := NewFileSink(path)

	if _, err := sink.Latest(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Latest() on missing file error = %v, want ErrNoSnapshot", err)
	}

	want := sampleSnapshot()
	if err := sink.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := sink.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got.RunID != want.RunID || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("Latest() = %+v", got)
	}
	if !slices.Equal(got.SucceededIDs(), []string{"component:base-cmake", "library:utilrb"}) {
		t.Errorf("SucceededIDs() = %v", got.SucceededIDs())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestSnapshotYAMLShape(t *testing.T) {
	data, err := yaml.Marshal(sampleSnapshot())
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"run_id", "release", "arch", "updated_at", "succeeded", "failed"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("document lacks %q:\n%s", key, data)
		}
	}
	succeeded, _ := doc["succeeded"].(map[string]any)
	components, _ := succeeded["component"].([]any)
	if len(components) != 1 {
		t.Fatalf("succeeded.component = %v", succeeded["component"])
	}
	entry, _ := components[0].(map[string]any)
	if entry["kind"] != "component" || entry["index"] != 0 || entry["id"] != "component:base-cmake" {
		t.Errorf("entry = %v", entry)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.yml")
	if err := os.WriteFile(path, []byte("run_id: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	if _, err := sink.Latest(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Latest() error = %v", err)
	}

	s := sampleSnapshot()
	_ = sink.Save(ctx, s)
	s.Jobs["meta:rock-core"] = "finished"
	s.Done = true
	_ = sink.Save(ctx, s)

	saved := sink.Snapshots()
	if len(saved) != 2 {
		t.Fatalf("Snapshots() len = %d, want 2", len(saved))
	}
	if saved[0].Jobs["meta:rock-core"] != "skipped" {
		t.Error("Save() should copy the snapshot")
	}
	latest, _ := sink.Latest(ctx)
	if !latest.Done {
		t.Error("Latest() should return the last snapshot")
	}
	if got := latest.Counts(); got["finished"] != 3 || got["failed"] != 1 {
		t.Errorf("Counts() = %v", got)
	}
}

type errSink struct{ err error }

func (e errSink) Save(context.Context, Snapshot) error { return e.err }

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemorySink(), NewMemorySink()
	boom := errors.New("disk full")

	err := MultiSink{a, errSink{boom}, nil, b, NullSink{}}.Save(ctx, sampleSnapshot())
	if !errors.Is(err, boom) {
		t.Errorf("Save() error = %v, want %v", err, boom)
	}
	if len(a.Snapshots()) != 1 || len(b.Snapshots()) != 1 {
		t.Error("every sink should receive the snapshot despite errors")
	}
}
