package scheduler

import "github.com/matzehuels/stackbuild/pkg/dag"

// EventType identifies a scheduler transition.
type EventType int

const (
	EventStarted EventType = iota
	EventFinished
	EventFailed
	EventSkipped
	EventKeepAlive
	EventCancelled
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventFinished:
		return "finished"
	case EventFailed:
		return "failed"
	case EventSkipped:
		return "skipped"
	case EventKeepAlive:
		return "keep-alive"
	case EventCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Event describes one transition together with the counters after it.
type Event struct {
	Type EventType
	ID   string // empty for keep-alive and cancellation
	Kind dag.Kind
	Err  error

	Running int
	Pending int
	Done    int
	Total   int
}
