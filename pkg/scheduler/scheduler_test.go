package scheduler

import (
	"context"
	stderrors "errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/status"
)

// recorder is a BuildFunc that logs start and end of every build and
// tracks the peak number of concurrent builds.
type recorder struct {
	mu      sync.Mutex
	log     []string
	running int
	peak    int
	fail    map[string]bool
	delay   time.Duration
}

func (r *recorder) build(ctx context.Context, job Job) error {
	r.mu.Lock()
	r.log = append(r.log, "start:"+job.ID)
	r.running++
	r.peak = max(r.peak, r.running)
	r.mu.Unlock()

	time.Sleep(r.delay)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, "end:"+job.ID)
	r.running--
	if r.fail[job.ID] {
		return stderrors.New("compile error")
	}
	return nil
}

func (r *recorder) index(entry string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Index(r.log, entry)
}

func diamond() []Job {
	return []Job{
		{ID: "A"},
		{ID: "B", Dependencies: []string{"A"}},
		{ID: "C", Dependencies: []string{"A"}},
		{ID: "D", Dependencies: []string{"B", "C"}},
	}
}

func TestSchedule_Diamond(t *testing.T) {
	rec := &recorder{delay: 10 * time.Millisecond}
	report, err := Schedule(context.Background(), diamond(), 2, rec.build)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if !report.OK() {
		t.Fatalf("report not OK: %s", report.Summary())
	}

	endA := rec.index("end:A")
	for _, id := range []string{"B", "C"} {
		if rec.index("start:"+id) < endA {
			t.Errorf("%s started before A finished: %v", id, rec.log)
		}
	}
	startD := rec.index("start:D")
	if startD < rec.index("end:B") || startD < rec.index("end:C") {
		t.Errorf("D started before B and C finished: %v", rec.log)
	}
	if rec.peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", rec.peak)
	}
	if got := report.Succeeded[dag.KindComponent]; len(got) != 4 || got[0] != "A" || got[3] != "D" {
		t.Errorf("Succeeded = %v", got)
	}
}

func TestSchedule_FailureSkipsDependents(t *testing.T) {
	rec := &recorder{fail: map[string]bool{"B": true}}
	report, err := Schedule(context.Background(), diamond(), 2, rec.build)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	want := map[string]Status{"A": Finished, "B": Failed, "C": Finished, "D": Skipped}
	for id, st := range want {
		if report.Statuses[id] != st {
			t.Errorf("status of %s = %v, want %v", id, report.Statuses[id], st)
		}
	}
	if rec.index("start:D") >= 0 {
		t.Error("D must never run")
	}
	if got := report.Failed[dag.KindComponent]; !slices.Equal(got, []string{"B"}) {
		t.Errorf("Failed = %v, want [B]", got)
	}
	var bf *errors.BuildFailedError
	if !stderrors.As(report.Errors["B"], &bf) || bf.ID != "B" {
		t.Errorf("Errors[B] = %v, want BuildFailedError", report.Errors["B"])
	}
	if report.OK() {
		t.Error("OK() should be false with failures")
	}
}

func TestSchedule_SkipsCascade(t *testing.T) {
	jobs := []Job{
		{ID: "a"},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c", Dependencies: []string{"b"}},
		{ID: "d", Dependencies: []string{"c"}},
	}
	rec := &recorder{fail: map[string]bool{"a": true}}
	report, err := Schedule(context.Background(), jobs, 4, rec.build)
	if err != nil {
		t.Fatal(err)
	}
	if got := report.IDs(Skipped); !slices.Equal(got, []string{"b", "c", "d"}) {
		t.Errorf("skipped = %v, want [b c d]", got)
	}
}

func TestSchedule_ParallelLimit(t *testing.T) {
	var jobs []Job
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		jobs = append(jobs, Job{ID: id})
	}

	for _, limit := range []int{1, 0, -3} {
		rec := &recorder{delay: 2 * time.Millisecond}
		if _, err := Schedule(context.Background(), jobs, limit, rec.build); err != nil {
			t.Fatal(err)
		}
		if rec.peak != 1 {
			t.Errorf("maxParallel=%d: peak = %d, want 1", limit, rec.peak)
		}
	}

	rec := &recorder{delay: 20 * time.Millisecond}
	if _, err := Schedule(context.Background(), jobs, 3, rec.build); err != nil {
		t.Fatal(err)
	}
	if rec.peak > 3 {
		t.Errorf("peak = %d, want <= 3", rec.peak)
	}
}

func TestSchedule_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startedA := make(chan struct{})
	build := func(ctx context.Context, job Job) error {
		if job.ID != "A" {
			t.Errorf("%s should never run", job.ID)
			return nil
		}
		close(startedA)
		<-ctx.Done()
		return ctx.Err()
	}
	go func() {
		<-startedA
		cancel()
	}()

	jobs := []Job{
		{ID: "A"},
		{ID: "B", Dependencies: []string{"A"}},
		{ID: "C"},
	}
	sink := status.NewMemorySink()
	report, err := Schedule(ctx, jobs, 1, build, WithSink(sink))
	if err != nil {
		t.Fatalf("Schedule() error = %v, want nil", err)
	}
	if !report.Cancelled {
		t.Error("Cancelled = false")
	}
	if st := report.Statuses["A"]; st != Finished && st != Failed {
		t.Errorf("status of A = %v", st)
	}
	for _, id := range []string{"B", "C"} {
		if report.Statuses[id] != Skipped {
			t.Errorf("status of %s = %v, want skipped", id, report.Statuses[id])
		}
	}

	last, _ := sink.Latest(context.Background())
	if !last.Done || !last.Cancelled {
		t.Errorf("final snapshot = %+v", last)
	}
}

func TestSchedule_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	report, err := Schedule(ctx, diamond(), 2, rec.build)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.log) != 0 {
		t.Errorf("builds ran after cancellation: %v", rec.log)
	}
	if report.Count(Skipped) != 4 {
		t.Errorf("skipped = %d, want 4", report.Count(Skipped))
	}
}

func TestSchedule_Deadlock(t *testing.T) {
	jobs := []Job{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c"},
	}
	rec := &recorder{}

	done := make(chan struct{})
	var report *Report
	var err error
	go func() {
		report, err = Schedule(context.Background(), jobs, 2, rec.build)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Schedule() did not return")
	}

	var ue *errors.UnsatisfiableScheduleError
	if !stderrors.As(err, &ue) {
		t.Fatalf("Schedule() error = %v, want UnsatisfiableScheduleError", err)
	}
	if !slices.Equal(ue.Stuck["a"], []string{"b"}) || !slices.Equal(ue.Stuck["b"], []string{"a"}) {
		t.Errorf("Stuck = %v", ue.Stuck)
	}
	if report == nil || report.Statuses["c"] != Finished {
		t.Errorf("independent job should still be built: %v", report)
	}
}

func TestSchedule_InvalidJobs(t *testing.T) {
	tests := []struct {
		name string
		jobs []Job
		code errors.Code
	}{
		{"unknown dependency", []Job{{ID: "a", Dependencies: []string{"ghost"}}}, errors.ErrCodeNotFound},
		{"duplicate", []Job{{ID: "a"}, {ID: "a"}}, errors.ErrCodeInvalidInput},
		{"empty id", []Job{{ID: ""}}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			_, err := Schedule(context.Background(), tt.jobs, 1, rec.build)
			if !errors.Is(err, tt.code) {
				t.Errorf("Schedule() error = %v, want %s", err, tt.code)
			}
			if len(rec.log) != 0 {
				t.Error("no build should run for invalid input")
			}
		})
	}
}

func TestSchedule_KeepAlive(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	keepAlive := func(context.Context) {
		if calls.Add(1) == 2 {
			close(release)
		}
	}
	build := func(ctx context.Context, job Job) error {
		select {
		case <-release:
			return nil
		case <-time.After(5 * time.Second):
			return stderrors.New("keep-alive never called")
		}
	}

	report, err := Schedule(context.Background(), []Job{{ID: "slow"}}, 1, build,
		WithIdleTimeout(5*time.Millisecond), WithKeepAlive(keepAlive))
	if err != nil {
		t.Fatal(err)
	}
	if report.Statuses["slow"] != Finished {
		t.Errorf("idle timeouts must not fail the job: %s", report.Summary())
	}
	if calls.Load() < 2 {
		t.Errorf("keep-alive calls = %d, want >= 2", calls.Load())
	}
}

func TestSchedule_Priorities(t *testing.T) {
	jobs := []Job{
		{ID: "component:a"},
		{ID: "component:b"},
		{ID: "component:c"},
		{ID: "library:z", Kind: dag.KindLibrary},
	}
	groups := []dag.PriorityGroup{
		{Name: "first", Members: []string{"c"}},
		{Name: "second", Members: []string{"library:z"}},
	}
	rec := &recorder{}
	if _, err := Schedule(context.Background(), jobs, 1, rec.build, WithPriorities(groups)); err != nil {
		t.Fatal(err)
	}
	var started []string
	for _, e := range rec.log {
		if id, ok := strings.CutPrefix(e, "start:"); ok {
			started = append(started, id)
		}
	}
	want := []string{"component:c", "library:z", "component:a", "component:b"}
	if !slices.Equal(started, want) {
		t.Errorf("dispatch order = %v, want %v", started, want)
	}
}

func TestSchedule_PersistsEveryCompletion(t *testing.T) {
	sink := status.NewMemorySink()
	rec := &recorder{fail: map[string]bool{"B": true}}
	_, err := Schedule(context.Background(), diamond(), 1, rec.build,
		WithSink(sink), WithTarget("master", "amd64"), WithRunID("run-42"))
	if err != nil {
		t.Fatal(err)
	}

	snaps := sink.Snapshots()
	// Three completions (A, B, C) plus the final snapshot.
	if len(snaps) != 4 {
		t.Fatalf("snapshots = %d, want 4", len(snaps))
	}
	for i, s := range snaps {
		if s.RunID != "run-42" || s.Release != "master" || s.Arch != "amd64" {
			t.Errorf("snapshot %d labels = %s %s %s", i, s.RunID, s.Release, s.Arch)
		}
	}
	if snaps[0].Succeeded["component"][0].ID != "A" {
		t.Errorf("first snapshot = %+v", snaps[0].Succeeded)
	}
	last := snaps[len(snaps)-1]
	if !last.Done {
		t.Error("last snapshot should be marked done")
	}
	if got := last.Failed["component"]; len(got) != 1 || got[0] != (status.Entry{Kind: "component", Index: 0, ID: "B"}) {
		t.Errorf("failed entries = %+v", got)
	}
	if last.Jobs["D"] != "skipped" {
		t.Errorf("Jobs[D] = %q, want skipped", last.Jobs["D"])
	}
}

func TestSchedule_WithFinished(t *testing.T) {
	rec := &recorder{}
	report, err := Schedule(context.Background(), diamond(), 2, rec.build, WithFinished("A", "B", "unknown"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.index("start:A") >= 0 || rec.index("start:B") >= 0 {
		t.Errorf("resumed jobs were rebuilt: %v", rec.log)
	}
	if !report.OK() {
		t.Errorf("report = %s", report.Summary())
	}
}

func TestSchedule_BuildPanics(t *testing.T) {
	build := func(context.Context, Job) error { panic("boom") }
	report, err := Schedule(context.Background(), []Job{{ID: "a"}}, 1, build)
	if err != nil {
		t.Fatal(err)
	}
	if report.Statuses["a"] != Failed {
		t.Errorf("status = %v, want failed", report.Statuses["a"])
	}
}

func TestSchedule_Events(t *testing.T) {
	counts := make(map[EventType]int)
	var last Event
	rec := &recorder{fail: map[string]bool{"B": true}}
	_, err := Schedule(context.Background(), diamond(), 2, rec.build, WithEvents(func(e Event) {
		counts[e.Type]++
		last = e
	}))
	if err != nil {
		t.Fatal(err)
	}
	if counts[EventStarted] != 3 || counts[EventFinished] != 2 || counts[EventFailed] != 1 || counts[EventSkipped] != 1 {
		t.Errorf("event counts = %v", counts)
	}
	if last.Total != 4 || last.Done+last.Running+last.Pending != 4 {
		t.Errorf("last event counters = %+v", last)
	}
}

func TestReportSummary(t *testing.T) {
	r := newReport("run", time.Unix(0, 0))
	r.FinishedAt = time.Unix(2, 0)
	r.Statuses = map[string]Status{"a": Finished, "b": Failed, "c": Skipped}
	r.Failed[dag.KindComponent] = []string{"b"}

	got := r.Summary()
	for _, want := range []string{"3 jobs: 1 finished, 1 failed, 1 skipped", "in 2s", "failed component: b"} {
		if !strings.Contains(got, want) {
			t.Errorf("Summary() = %q, missing %q", got, want)
		}
	}
}

func TestStatusText(t *testing.T) {
	for _, s := range []Status{Pending, Running, Finished, Failed, Skipped} {
		text, _ := s.MarshalText()
		var back Status
		if err := back.UnmarshalText(text); err != nil || back != s {
			t.Errorf("round trip of %v = %v, %v", s, back, err)
		}
	}
	var s Status
	if err := s.UnmarshalText([]byte("exploded")); err == nil {
		t.Error("UnmarshalText() should reject unknown statuses")
	}
}

func TestJobs(t *testing.T) {
	g, err := dag.FromEdgeMap(map[string][]string{
		"meta:core":      {"component:base", "library:rake"},
		"component:base": nil,
		"library:rake":   nil,
	})
	if err != nil {
		t.Fatal(err)
	}
	jobs := Jobs(g)
	if len(jobs) != 3 {
		t.Fatalf("Jobs() = %v", jobs)
	}
	for _, j := range jobs {
		if j.ID == "meta:core" {
			if j.Kind != dag.KindMeta || !slices.Equal(j.Dependencies, []string{"component:base", "library:rake"}) {
				t.Errorf("meta job = %+v", j)
			}
			if j.Name() != "core" {
				t.Errorf("Name() = %q", j.Name())
			}
		}
	}
}
