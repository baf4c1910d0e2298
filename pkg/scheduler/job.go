package scheduler

import (
	"fmt"
	"strings"

	"github.com/matzehuels/stackbuild/pkg/dag"
)

// Status is the state of a job.
type Status int

const (
	Pending Status = iota
	Running
	Finished
	Failed
	Skipped
)

var statusNames = [...]string{"pending", "running", "finished", "failed", "skipped"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Terminal reports whether the job will not change status again.
func (s Status) Terminal() bool { return s == Finished || s == Failed || s == Skipped }

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if strings.EqualFold(string(b), name) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown job status %q", b)
}

// Job is one package to build. Dependencies name other jobs by ID.
type Job struct {
	ID           string
	Kind         dag.Kind
	Dependencies []string
	Status       Status
}

// Name returns the un-namespaced part of the job ID.
func (j Job) Name() string {
	if _, name, ok := dag.SplitID(j.ID); ok {
		return name
	}
	return j.ID
}

// Jobs converts a build graph to pending jobs in ID order.
func Jobs(g *dag.DAG) []Job {
	nodes := g.Nodes()
	jobs := make([]Job, len(nodes))
	for i, n := range nodes {
		jobs[i] = Job{ID: n.ID, Kind: n.Kind, Dependencies: g.Children(n.ID)}
	}
	return jobs
}
