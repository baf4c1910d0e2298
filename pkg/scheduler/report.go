package scheduler

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/status"
)

// Report is the outcome of a run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Cancelled  bool

	// Statuses holds the final status of every job.
	Statuses map[string]Status

	// Succeeded and Failed list job IDs per kind in completion order.
	Succeeded map[dag.Kind][]string
	Failed    map[dag.Kind][]string

	// Errors holds a *errors.BuildFailedError for every failed job.
	Errors map[string]error
}

func newReport(runID string, started time.Time) *Report {
	return &Report{
		RunID:     runID,
		StartedAt: started,
		Statuses:  make(map[string]Status),
		Succeeded: make(map[dag.Kind][]string),
		Failed:    make(map[dag.Kind][]string),
		Errors:    make(map[string]error),
	}
}

// Count returns the number of jobs in status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, st := range r.Statuses {
		if st == s {
			n++
		}
	}
	return n
}

// IDs returns the IDs of jobs in status s, sorted.
func (r *Report) IDs(s Status) []string {
	var ids []string
	for id, st := range r.Statuses {
		if st == s {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// OK reports whether every job finished.
func (r *Report) OK() bool {
	return !r.Cancelled && r.Count(Finished) == len(r.Statuses)
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary renders a short human-readable account of the run.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d jobs: %d finished, %d failed, %d skipped",
		len(r.Statuses), r.Count(Finished), r.Count(Failed), r.Count(Skipped))
	if n := r.Count(Pending); n > 0 {
		fmt.Fprintf(&b, ", %d pending", n)
	}
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(&b, " in %s", d.Round(time.Millisecond))
	}
	if r.Cancelled {
		b.WriteString(" (cancelled)")
	}
	for _, k := range dag.Kinds {
		if ids := r.Failed[k]; len(ids) > 0 {
			fmt.Fprintf(&b, "\nfailed %s: %s", k, strings.Join(ids, ", "))
		}
	}
	return b.String()
}

// Snapshot converts the report to its persisted form.
func (r *Report) Snapshot(release, arch string, updated time.Time, done bool) status.Snapshot {
	jobs := make(map[string]string, len(r.Statuses))
	for id, st := range r.Statuses {
		jobs[id] = st.String()
	}
	return status.Snapshot{
		RunID:     r.RunID,
		Release:   release,
		Arch:      arch,
		StartedAt: r.StartedAt,
		UpdatedAt: updated,
		Done:      done,
		Cancelled: r.Cancelled,
		Succeeded: entries(r.Succeeded),
		Failed:    entries(r.Failed),
		Jobs:      jobs,
	}
}

func entries(byKind map[dag.Kind][]string) map[string][]status.Entry {
	out := make(map[string][]status.Entry, len(byKind))
	for _, k := range slices.Sorted(maps.Keys(byKind)) {
		ids := byKind[k]
		if len(ids) == 0 {
			continue
		}
		list := make([]status.Entry, len(ids))
		for i, id := range ids {
			list[i] = status.Entry{Kind: k.String(), Index: i, ID: id}
		}
		out[k.String()] = list
	}
	return out
}
