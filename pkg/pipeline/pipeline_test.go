package pipeline

import (
	"context"
	stderrors "errors"
	"slices"
	"sync"
	"testing"

	"github.com/matzehuels/stackbuild/pkg/cache"
	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/deps"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/prune"
	"github.com/matzehuels/stackbuild/pkg/release"
	"github.com/matzehuels/stackbuild/pkg/scheduler"
	"github.com/matzehuels/stackbuild/pkg/status"
)

// workspace is an in-memory MetadataProvider.
type workspace struct {
	components map[string][]string
	metas      map[string][]string
}

func (w workspace) ComponentKind(name string) (dag.Kind, error) {
	if _, ok := w.components[name]; ok {
		return dag.KindComponent, nil
	}
	if _, ok := w.metas[name]; ok {
		return dag.KindMeta, nil
	}
	return 0, &errors.NotFoundError{Name: name}
}

func (w workspace) ComponentDependencies(name string) ([]string, error) {
	if d, ok := w.components[name]; ok {
		return d, nil
	}
	if d, ok := w.metas[name]; ok {
		return d, nil
	}
	return nil, &errors.NotFoundError{Name: name}
}

// built records the IDs passed to a build callback.
type built struct {
	mu  sync.Mutex
	ids []string
}

func (b *built) build(_ context.Context, job scheduler.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = append(b.ids, job.ID)
	return nil
}

func (b *built) list() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.ids)
}

func newTestRunner(t *testing.T, c cache.Cache) (*Runner, *prune.StaticIndex) {
	t.Helper()
	ws := workspace{
		components: map[string][]string{
			"base-types": {"base-cmake", "gem:utilrb >= 3.0"},
			"base-cmake": nil,
			"tools":      {"base-types"},
		},
		metas: map[string][]string{
			"rock-core": {"base-types", "tools"},
		},
	}
	idx := deps.NewStaticIndex().
		Add("utilrb", "3.1", deps.Requirement{Name: "facets"}).
		Add("facets", "2.0")

	releases, err := release.NewHierarchy(
		release.Release{Name: "master-20.06", Architectures: []string{"amd64"}},
		release.Release{Name: "master-21.06", Architectures: []string{"amd64"}, DependsOn: []string{"master-20.06"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	packages := prune.NewStaticIndex().
		Add("master-20.06", "amd64", "rock-master-20.06-base-cmake", "rock-master-20.06-ruby-facets")

	r := NewRunner(c, nil, nil)
	r.Provider = ws
	r.Index = idx
	r.Releases = releases
	r.Packages = packages
	return r, packages
}

func TestValidateAndSetDefaults(t *testing.T) {
	noop := func(context.Context, scheduler.Job) error { return nil }
	tests := []struct {
		name     string
		opts     Options
		wantCode errors.Code
	}{
		{"no seeds", Options{Build: noop}, errors.ErrCodeInvalidInput},
		{"bad seed", Options{Seeds: []string{"gem:"}, Build: noop}, errors.ErrCodeInvalidPackage},
		{"arch without release", Options{Seeds: []string{"a"}, Arch: "amd64", Build: noop}, errors.ErrCodeInvalidInput},
		{"release without arch", Options{Seeds: []string{"a"}, Release: "master", Build: noop}, errors.ErrCodeInvalidInput},
		{"bad release", Options{Seeds: []string{"a"}, Release: "Master", Arch: "amd64", Build: noop}, errors.ErrCodeInvalidRelease},
		{"no build callback", Options{Seeds: []string{"a"}}, errors.ErrCodeInvalidInput},
		{"ok", Options{Seeds: []string{"a"}, Release: "master", Arch: "amd64", Build: noop}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestValidateAndSetDefaults_Defaults(t *testing.T) {
	opts := Options{Seeds: []string{"a"}, Build: func(context.Context, scheduler.Job) error { return nil }}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Parallel != DefaultParallel {
		t.Errorf("Parallel = %d, want %d", opts.Parallel, DefaultParallel)
	}
	if opts.IdleTimeout != scheduler.DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v", opts.IdleTimeout)
	}
	if opts.Naming.Prefix != release.DefaultPrefix {
		t.Errorf("Naming.Prefix = %q", opts.Naming.Prefix)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}
	if opts.Target() != "" {
		t.Errorf("Target() = %q, want empty", opts.Target())
	}

	// Idempotent
	opts.Parallel = 9
	if err := opts.ValidateAndSetDefaults(); err != nil || opts.Parallel != 9 {
		t.Errorf("second call changed options: parallel=%d err=%v", opts.Parallel, err)
	}
}

func TestExecute(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	sink := status.NewMemorySink()
	var b built

	res, err := r.Execute(context.Background(), Options{
		Seeds:    []string{"rock-core"},
		Release:  "master-21.06",
		Arch:     "amd64",
		Parallel: 2,
		Build:    b.build,
		Sink:     sink,
		RunID:    "run-1",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if res.Stats.NodeCount != 6 {
		t.Errorf("NodeCount = %d, want 6: %v", res.Stats.NodeCount, res.Graph.IDs())
	}
	if res.Stats.PrunedCount != 2 {
		t.Errorf("PrunedCount = %d, want 2", res.Stats.PrunedCount)
	}
	for _, id := range []string{"component:base-cmake", "library:facets"} {
		if res.Pruned.Has(id) {
			t.Errorf("%s should be pruned", id)
		}
	}

	pos := make(map[string]int)
	for i, id := range res.Order {
		pos[id] = i
	}
	for _, e := range res.Pruned.Edges() {
		if pos[e.To] >= pos[e.From] {
			t.Errorf("%s ordered before its dependency %s: %v", e.From, e.To, res.Order)
		}
	}

	if !res.Report.OK() {
		t.Errorf("report not OK: %s", res.Report.Summary())
	}
	got := b.list()
	slices.Sort(got)
	want := []string{"component:base-types", "component:tools", "library:utilrb", "meta:rock-core"}
	if !slices.Equal(got, want) {
		t.Errorf("built %v, want %v", got, want)
	}

	snap, err := sink.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.RunID != "run-1" || snap.Release != "master-21.06" || snap.Arch != "amd64" || !snap.Done {
		t.Errorf("final snapshot = %+v", snap)
	}
}

func TestExecute_Resume(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	var b built

	res, err := r.Execute(context.Background(), Options{
		Seeds:    []string{"rock-core"},
		Release:  "master-21.06",
		Arch:     "amd64",
		Build:    b.build,
		Finished: []string{"library:utilrb", "component:base-types"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := b.list()
	slices.Sort(got)
	if want := []string{"component:tools", "meta:rock-core"}; !slices.Equal(got, want) {
		t.Errorf("built %v, want %v", got, want)
	}
	if !res.Report.OK() {
		t.Errorf("report not OK: %s", res.Report.Summary())
	}
}

func TestExecute_Cycle(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	r.Provider = workspace{components: map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}}
	var b built

	res, err := r.Execute(context.Background(), Options{Seeds: []string{"a"}, Build: b.build})
	if !errors.Is(err, errors.ErrCodeCyclicDependency) {
		t.Fatalf("error = %v, want cyclic dependency", err)
	}
	if res == nil || res.Graph == nil {
		t.Fatal("result should carry the resolved graph")
	}
	if len(b.list()) != 0 {
		t.Error("nothing should be built")
	}
}

func TestResolve_Cache(t *testing.T) {
	mem := cache.NewMemoryCache()
	r, _ := newTestRunner(t, mem)
	ctx := context.Background()

	opts := Options{Seeds: []string{"rock-core"}}
	if _, hit, err := r.ResolveWithCacheInfo(ctx, opts); err != nil || hit {
		t.Fatalf("unfingerprinted resolve: hit=%v err=%v", hit, err)
	}
	if mem.Len() != 0 {
		t.Fatalf("closure cached without fingerprint")
	}

	opts.Fingerprint = "ws-1"
	first, hit, err := r.ResolveWithCacheInfo(ctx, opts)
	if err != nil || hit {
		t.Fatalf("first resolve: hit=%v err=%v", hit, err)
	}
	second, hit, err := r.ResolveWithCacheInfo(ctx, opts)
	if err != nil || !hit {
		t.Fatalf("second resolve: hit=%v err=%v", hit, err)
	}
	if !slices.Equal(first.IDs(), second.IDs()) {
		t.Errorf("cached closure %v differs from %v", second.IDs(), first.IDs())
	}
	if n, _ := second.Node("library:utilrb"); n.Meta["version"] != "3.1" {
		t.Errorf("cached utilrb version = %v", n.Meta["version"])
	}

	opts.Refresh = true
	if _, hit, _ := r.ResolveWithCacheInfo(ctx, opts); hit {
		t.Error("refresh should bypass the cache")
	}

	opts.Refresh = false
	opts.Pins = deps.ConstraintSet{"utilrb": {"< 4"}}
	if _, hit, _ := r.ResolveWithCacheInfo(ctx, opts); hit {
		t.Error("different pins should not share a cache entry")
	}
}

func TestResolve_Cancelled(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, Options{Seeds: []string{"rock-core"}})
	if !errors.Is(err, errors.ErrCodeCancelled) {
		t.Fatalf("error = %v, want cancelled", err)
	}
	var ce *errors.CancelledError
	if !stderrors.As(err, &ce) {
		t.Fatalf("error %T is not a *CancelledError", err)
	}
}

func TestPrune(t *testing.T) {
	r, packages := newTestRunner(t, nil)
	ctx := context.Background()
	g, err := r.Resolve(ctx, Options{Seeds: []string{"rock-core"}})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("no release", func(t *testing.T) {
		out, err := r.Prune(ctx, g, Options{})
		if err != nil || out != g {
			t.Errorf("Prune() without release should return the input graph, err=%v", err)
		}
	})

	t.Run("root release", func(t *testing.T) {
		before := packages.Queries()
		out, err := r.Prune(ctx, g, Options{Release: "master-20.06", Arch: "amd64"})
		if err != nil || out.NodeCount() != g.NodeCount() {
			t.Errorf("root release pruned %d nodes, err=%v", g.NodeCount()-out.NodeCount(), err)
		}
		if packages.Queries() != before {
			t.Error("root release should not query the index")
		}
	})

	t.Run("shared lookups", func(t *testing.T) {
		if _, err := r.Prune(ctx, g, Options{Release: "master-21.06", Arch: "amd64"}); err != nil {
			t.Fatal(err)
		}
		before := packages.Queries()
		if _, err := r.Prune(ctx, g, Options{Release: "master-21.06", Arch: "amd64"}); err != nil {
			t.Fatal(err)
		}
		if packages.Queries() != before {
			t.Errorf("second prune queried the index %d times", packages.Queries()-before)
		}
	})

	t.Run("blacklist", func(t *testing.T) {
		out, err := r.Prune(ctx, g, Options{Release: "master-21.06", Arch: "amd64", Blacklist: []string{"base-cmake"}})
		if err != nil {
			t.Fatal(err)
		}
		if !out.Has("component:base-cmake") || out.Has("library:facets") {
			t.Errorf("pruned graph = %v", out.IDs())
		}
	})

	t.Run("unknown release", func(t *testing.T) {
		if _, err := r.Prune(ctx, g, Options{Release: "nope", Arch: "amd64"}); !errors.Is(err, errors.ErrCodeNotFound) {
			t.Errorf("error = %v, want not found", err)
		}
	})

	t.Run("unsupported arch", func(t *testing.T) {
		if _, err := r.Prune(ctx, g, Options{Release: "master-21.06", Arch: "arm64"}); !errors.Is(err, errors.ErrCodeInvalidRelease) {
			t.Errorf("error = %v, want invalid release", err)
		}
	})
}
