package scheduler

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/status"
)

// DefaultIdleTimeout is how long the coordinator waits for a completion
// before invoking the keep-alive callback.
const DefaultIdleTimeout = 60 * time.Second

// BuildFunc builds one job. It runs on a worker goroutine and must only
// touch resources namespaced by the job ID. It should return promptly once
// ctx is cancelled.
type BuildFunc func(ctx context.Context, job Job) error

// KeepAliveFunc is invoked on every idle timeout.
type KeepAliveFunc func(ctx context.Context)

// Option configures [Schedule].
type Option func(*config)

type config struct {
	idleTimeout time.Duration
	keepAlive   KeepAliveFunc
	sink        status.Sink
	logger      *log.Logger
	priorities  []dag.PriorityGroup
	finished    []string
	events      func(Event)
	release     string
	arch        string
	runID       string
	now         func() time.Time
}

func newConfig(opts []Option) config {
	cfg := config{
		idleTimeout: DefaultIdleTimeout,
		keepAlive:   func(context.Context) {},
		sink:        status.NullSink{},
		logger:      log.New(io.Discard),
		events:      func(Event) {},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithIdleTimeout sets how long to wait for a completion before calling
// the keep-alive callback. Non-positive values keep the default.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.idleTimeout = d
		}
	}
}

// WithKeepAlive sets the callback invoked on idle timeouts.
func WithKeepAlive(fn KeepAliveFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.keepAlive = fn
		}
	}
}

// WithSink persists a snapshot after every completion.
func WithSink(s status.Sink) Option {
	return func(c *config) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithLogger sets the logger for job transitions.
func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPriorities sets the groups breaking ties between dispatchable jobs.
func WithPriorities(groups []dag.PriorityGroup) Option {
	return func(c *config) { c.priorities = groups }
}

// WithFinished marks jobs as already built, e.g. by an interrupted earlier
// run. They start as finished and are never dispatched.
func WithFinished(ids ...string) Option {
	return func(c *config) { c.finished = append(c.finished, ids...) }
}

// WithEvents registers a callback receiving every transition. It is called
// from the coordinator goroutine and must not block.
func WithEvents(fn func(Event)) Option {
	return func(c *config) {
		if fn != nil {
			c.events = fn
		}
	}
}

// WithTarget labels snapshots with the release and architecture built.
func WithTarget(release, arch string) Option {
	return func(c *config) { c.release, c.arch = release, arch }
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(c *config) { c.runID = id }
}
