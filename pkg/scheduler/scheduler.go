package scheduler

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/observability"
)

type result struct {
	id  string
	err error
}

type coordinator struct {
	cfg     config
	build   BuildFunc
	limit   int
	jobs    map[string]*Job
	order   []string // dispatch preference
	started map[string]time.Time
	results chan result
	report  *Report

	running int
	pending int
	done    int

	cancelled bool
}

// Schedule builds jobs with at most maxParallel concurrent calls to build.
//
// A job is dispatched once all of its dependencies finished; among jobs
// dispatchable at the same time, priority groups and then IDs decide. A job
// whose dependency failed or was skipped is skipped without running. A
// snapshot is persisted after every completion.
//
// Schedule returns a *errors.NotFoundError if a job depends on an unknown
// ID and a *errors.UnsatisfiableScheduleError, together with the partial
// report, when pending jobs can never become dispatchable. Build failures
// are recorded in the report, not returned. When ctx is cancelled, pending
// jobs are skipped, running builds are cancelled and awaited, and the
// partial report is returned without error.
func Schedule(ctx context.Context, jobs []Job, maxParallel int, build BuildFunc, opts ...Option) (*Report, error) {
	cfg := newConfig(opts)
	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}

	c := &coordinator{
		cfg:     cfg,
		build:   build,
		limit:   max(maxParallel, 1),
		jobs:    make(map[string]*Job, len(jobs)),
		started: make(map[string]time.Time),
		results: make(chan result, len(jobs)),
		report:  newReport(cfg.runID, cfg.now()),
	}
	if err := c.load(jobs); err != nil {
		return nil, err
	}
	return c.run(ctx)
}

// load validates jobs and computes the dispatch preference.
func (c *coordinator) load(jobs []Job) error {
	nodes := make([]*dag.Node, 0, len(jobs))
	for _, j := range jobs {
		if j.ID == "" {
			return errors.New(errors.ErrCodeInvalidInput, "job without ID")
		}
		if _, dup := c.jobs[j.ID]; dup {
			return errors.New(errors.ErrCodeInvalidInput, "duplicate job: %s", j.ID)
		}
		j.Dependencies = slices.Clone(j.Dependencies)
		j.Status = Pending
		c.jobs[j.ID] = &j
		nodes = append(nodes, &dag.Node{ID: j.ID, Name: j.Name(), Kind: j.Kind})
	}
	for _, n := range nodes {
		for _, dep := range c.jobs[n.ID].Dependencies {
			if _, ok := c.jobs[dep]; !ok {
				return &errors.NotFoundError{Name: dep, From: n.ID}
			}
		}
	}

	prio := dag.NewPriorities(c.cfg.priorities)
	slices.SortFunc(nodes, func(a, b *dag.Node) int {
		switch {
		case prio.Less(a, b):
			return -1
		case prio.Less(b, a):
			return 1
		}
		return 0
	})
	c.order = dag.NodeIDs(nodes)

	for _, id := range c.order {
		c.report.Statuses[id] = Pending
	}
	c.pending = len(c.order)

	for _, id := range c.cfg.finished {
		if j, ok := c.jobs[id]; ok && j.Status == Pending {
			c.set(j, Finished)
			c.report.Succeeded[j.Kind] = append(c.report.Succeeded[j.Kind], id)
		}
	}
	return nil
}

func (c *coordinator) run(ctx context.Context) (*Report, error) {
	log := c.cfg.logger
	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	cancelled := ctx.Done()
	idle := time.NewTimer(c.cfg.idleTimeout)
	defer idle.Stop()

	log.Info("build started", "run", c.cfg.runID, "jobs", len(c.order), "parallel", c.limit)
	for {
		if !c.cancelled && ctx.Err() != nil {
			cancelled = nil
			c.cancel(ctx)
		}
		if !c.cancelled {
			c.propagateSkips(ctx)
			c.dispatch(workCtx)
		}
		if c.running == 0 {
			if c.pending == 0 || c.cancelled {
				break
			}
			err := c.deadlock()
			log.Error("build stuck", "pending", c.pending)
			c.finish(ctx)
			return c.report, err
		}

		idle.Reset(c.cfg.idleTimeout)
		select {
		case r := <-c.results:
			c.complete(ctx, r)
		case <-cancelled:
			cancelled = nil
			c.cancel(ctx)
		case <-idle.C:
			log.Debug("idle", "running", c.running)
			observability.Scheduler().OnKeepAlive(ctx, c.running)
			c.emit(Event{Type: EventKeepAlive})
			c.cfg.keepAlive(ctx)
		}
	}

	c.finish(ctx)
	log.Info("build done", "run", c.cfg.runID, "finished", c.report.Count(Finished),
		"failed", c.report.Count(Failed), "skipped", c.report.Count(Skipped), "cancelled", c.cancelled)
	return c.report, nil
}

// propagateSkips skips pending jobs depending on a failed or skipped job
// until nothing changes.
func (c *coordinator) propagateSkips(ctx context.Context) {
	for changed := true; changed; {
		changed = false
		for _, id := range c.order {
			j := c.jobs[id]
			if j.Status != Pending {
				continue
			}
			for _, dep := range j.Dependencies {
				if st := c.jobs[dep].Status; st == Failed || st == Skipped {
					c.cfg.logger.Warn("skipped", "job", id, "because", dep)
					c.set(j, Skipped)
					c.emit(Event{Type: EventSkipped, ID: id, Kind: j.Kind})
					observability.Scheduler().OnJobComplete(ctx, id, j.Kind.String(), Skipped.String(), 0, nil)
					changed = true
					break
				}
			}
		}
	}
}

func (c *coordinator) dispatch(ctx context.Context) {
	for _, id := range c.order {
		if c.running >= c.limit {
			return
		}
		j := c.jobs[id]
		if j.Status != Pending || !c.ready(j) {
			continue
		}
		c.set(j, Running)
		c.started[id] = c.cfg.now()
		c.cfg.logger.Info("building", "job", id)
		observability.Scheduler().OnJobStart(ctx, id, j.Kind.String())
		c.emit(Event{Type: EventStarted, ID: id, Kind: j.Kind})

		job := *j
		job.Dependencies = slices.Clone(j.Dependencies)
		go c.work(ctx, job)
	}
}

// work runs on a worker goroutine. It only communicates through results.
func (c *coordinator) work(ctx context.Context, job Job) {
	var err error
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("build panicked: %v", p)
		}
		c.results <- result{id: job.ID, err: err}
	}()
	err = c.build(ctx, job)
}

func (c *coordinator) ready(j *Job) bool {
	for _, dep := range j.Dependencies {
		if c.jobs[dep].Status != Finished {
			return false
		}
	}
	return true
}

func (c *coordinator) complete(ctx context.Context, r result) {
	j := c.jobs[r.id]
	elapsed := c.cfg.now().Sub(c.started[r.id])
	if r.err != nil {
		err := &errors.BuildFailedError{ID: r.id, Err: r.err}
		c.set(j, Failed)
		c.report.Failed[j.Kind] = append(c.report.Failed[j.Kind], r.id)
		c.report.Errors[r.id] = err
		c.cfg.logger.Error("build failed", "job", r.id, "err", r.err, "elapsed", elapsed)
		c.emit(Event{Type: EventFailed, ID: r.id, Kind: j.Kind, Err: err})
		observability.Scheduler().OnJobComplete(ctx, r.id, j.Kind.String(), Failed.String(), elapsed, err)
	} else {
		c.set(j, Finished)
		c.report.Succeeded[j.Kind] = append(c.report.Succeeded[j.Kind], r.id)
		c.cfg.logger.Info("built", "job", r.id, "elapsed", elapsed)
		c.emit(Event{Type: EventFinished, ID: r.id, Kind: j.Kind})
		observability.Scheduler().OnJobComplete(ctx, r.id, j.Kind.String(), Finished.String(), elapsed, nil)
	}
	if !c.cancelled {
		c.propagateSkips(ctx)
	}
	c.persist(ctx, false)
}

// cancel stops dispatching and skips every pending job. Running builds see
// the cancelled context and are awaited by the main loop.
func (c *coordinator) cancel(ctx context.Context) {
	c.cancelled = true
	c.report.Cancelled = true
	c.cfg.logger.Warn("build cancelled", "running", c.running, "pending", c.pending)
	for _, id := range c.order {
		if j := c.jobs[id]; j.Status == Pending {
			c.set(j, Skipped)
		}
	}
	c.emit(Event{Type: EventCancelled})
	c.persist(ctx, false)
}

func (c *coordinator) deadlock() error {
	stuck := make(map[string][]string)
	for _, id := range c.order {
		j := c.jobs[id]
		if j.Status != Pending {
			continue
		}
		var outstanding []string
		for _, dep := range j.Dependencies {
			if c.jobs[dep].Status != Finished {
				outstanding = append(outstanding, dep)
			}
		}
		stuck[id] = outstanding
	}
	return &errors.UnsatisfiableScheduleError{Stuck: stuck}
}

func (c *coordinator) finish(ctx context.Context) {
	c.report.FinishedAt = c.cfg.now()
	c.persist(ctx, true)
}

func (c *coordinator) persist(ctx context.Context, done bool) {
	snap := c.report.Snapshot(c.cfg.release, c.cfg.arch, c.cfg.now(), done)
	if err := c.cfg.sink.Save(context.WithoutCancel(ctx), snap); err != nil {
		c.cfg.logger.Warn("could not persist build status", "err", err)
	}
}

// set moves a job to a new status and keeps the counters in sync.
func (c *coordinator) set(j *Job, s Status) {
	switch j.Status {
	case Pending:
		c.pending--
	case Running:
		c.running--
	}
	switch s {
	case Pending:
		c.pending++
	case Running:
		c.running++
	default:
		c.done++
	}
	j.Status = s
	c.report.Statuses[j.ID] = s
}

func (c *coordinator) emit(e Event) {
	e.Running, e.Pending, e.Done, e.Total = c.running, c.pending, c.done, len(c.order)
	c.cfg.events(e)
}
