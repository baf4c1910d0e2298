package deps

import (
	"context"
	stderrors "errors"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/version"
)

// Closure builds the transitive dependency graph of a set of seed packages
// across both universes: components and meta nodes described by a
// [MetadataProvider], and libraries resolved against an [Index].
type Closure struct {
	provider MetadataProvider
	resolver *VersionResolver
	opts     Options
}

// NewClosure creates a closure builder. provider may be nil when only
// libraries are seeded.
func NewClosure(provider MetadataProvider, index Index, opts Options) *Closure {
	return &Closure{
		provider: provider,
		resolver: NewVersionResolver(index),
		opts:     opts.WithDefaults(),
	}
}

// Build expands seeds ([ParseDependency] syntax) to a fixed point and returns
// the graph of every reachable node. Library nodes carry their resolved
// version in Meta["version"] and the constraints placed on them by the final
// graph in Meta["constraints"].
//
// Each round resolves the current frontier concurrently. Constraints are
// tracked per requester: when a node is expanded again, the constraints of
// its previous expansion are withdrawn, and nodes that became unreachable are
// removed together with everything they required. A library is resolved
// again when its version no longer satisfies the live constraints, or when
// a constraint it was resolved under was withdrawn.
//
// Build fails with *errors.NotFoundError for unknown packages,
// *errors.UnsatisfiableConstraintError for conflicting constraints,
// *errors.ResolutionDivergedError when the round or node bounds are exceeded
// and *errors.CancelledError when ctx is done.
func (c *Closure) Build(ctx context.Context, seeds []string) (*dag.DAG, error) {
	b := &builder{
		Closure:     c,
		g:           dag.New(nil),
		pins:         c.opts.Constraints.Clone(),
		placed:       make(map[string]map[string][]string),
		resolved:     make(map[string]*version.Version),
		resolvedWith: make(map[string][]string),
		requiredBy:   make(map[string]string),
		frontier:     make(map[string]bool),
	}
	if err := b.seed(seeds); err != nil {
		return nil, err
	}
	if err := b.run(ctx); err != nil {
		return nil, err
	}
	b.finish()
	return b.g, nil
}

type builder struct {
	*Closure
	g            *dag.DAG
	pins         ConstraintSet                  // pins and seed constraints
	placed       map[string]map[string][]string // library name -> requester ID -> constraints
	resolved     map[string]*version.Version    // library name -> chosen version
	resolvedWith map[string][]string            // library name -> constraints it was chosen under
	requiredBy   map[string]string              // node ID -> first dependent
	frontier     map[string]bool
	roots        []string
	rounds       int
}

type expansion struct {
	version     *version.Version
	constraints []string
	deps        []Dependency
}

func (b *builder) seed(seeds []string) error {
	for _, s := range seeds {
		d, err := ParseDependency(s)
		if err != nil {
			return err
		}
		if d, err = b.classify(d, ""); err != nil {
			return err
		}
		id := d.ID()
		if d.Kind == dag.KindLibrary {
			b.pins.Add(d.Name, d.Constraints...)
		}
		if !b.g.Has(id) {
			_ = b.g.AddNode(dag.Node{ID: id, Name: d.Name, Kind: d.Kind})
			b.frontier[id] = true
			b.roots = append(b.roots, id)
		}
	}
	return nil
}

// classify fills in the kind of a non-library dependency.
func (b *builder) classify(d Dependency, from string) (Dependency, error) {
	if d.Kind == dag.KindLibrary {
		return d, nil
	}
	if b.provider == nil {
		return d, &errors.NotFoundError{Name: d.Name, From: from}
	}
	kind, err := b.provider.ComponentKind(d.Name)
	if err != nil {
		return d, notFound(err, d.Name, from)
	}
	d.Kind = kind
	return d, nil
}

func (b *builder) run(ctx context.Context) error {
	for len(b.frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return &errors.CancelledError{Stage: "resolution", Err: err}
		}
		b.rounds++
		if b.rounds > b.opts.MaxRounds {
			return b.diverged()
		}

		ids := slices.Sorted(maps.Keys(b.frontier))
		clear(b.frontier)
		b.opts.Logger.Debug("resolution round", "round", b.rounds, "frontier", len(ids), "nodes", b.g.NodeCount())

		results := make([]expansion, len(ids))
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(b.opts.Concurrency)
		for i, id := range ids {
			node, _ := b.g.Node(id)
			n := *node
			var cons []string
			if n.Kind == dag.KindLibrary {
				cons = b.constraintsFor(n.Name)
			}
			eg.Go(func() error {
				exp, err := b.expand(gctx, &n, cons)
				exp.constraints = cons
				results[i] = exp
				return err
			})
		}
		if err := eg.Wait(); err != nil {
			if ctx.Err() != nil {
				return &errors.CancelledError{Stage: "resolution", Err: ctx.Err()}
			}
			return err
		}

		dirty := make(map[string]bool)
		for i, id := range ids {
			b.apply(id, results[i], dirty)
		}
		b.dropUnreachable(dirty)
		if err := b.recheck(dirty); err != nil {
			return err
		}
		if b.g.NodeCount() > b.opts.MaxNodes {
			return b.diverged()
		}
	}
	return nil
}

// expand looks up the direct dependencies of one node. It runs concurrently
// with other expansions and only reads builder state.
func (b *builder) expand(ctx context.Context, n *dag.Node, constraints []string) (expansion, error) {
	var exp expansion
	if n.Kind == dag.KindLibrary {
		v, reqs, err := b.resolver.Resolve(ctx, n.Name, constraints)
		if err != nil {
			return exp, notFound(err, n.Name, b.requiredBy[n.ID])
		}
		exp.version = v
		for _, r := range reqs {
			exp.deps = append(exp.deps, Dependency{Kind: dag.KindLibrary, Name: r.Name, Constraints: r.Constraints})
		}
	} else {
		if b.provider == nil {
			return exp, &errors.NotFoundError{Name: n.Name, From: b.requiredBy[n.ID]}
		}
		raw, err := b.provider.ComponentDependencies(n.Name)
		if err != nil {
			return exp, notFound(err, n.Name, b.requiredBy[n.ID])
		}
		for _, s := range raw {
			d, err := ParseDependency(s)
			if err != nil {
				return exp, err
			}
			if d, err = b.classify(d, n.ID); err != nil {
				return exp, err
			}
			exp.deps = append(exp.deps, d)
		}
	}

	for _, p := range b.opts.Policies {
		deps, err := p.Apply(ctx, n, exp.deps)
		if err != nil {
			return exp, err
		}
		exp.deps = deps
	}
	return exp, nil
}

// apply records an expansion in the graph. Outgoing edges and placed
// constraints of a node are replaced, so a re-resolved library only keeps
// the requirements of its new version.
func (b *builder) apply(id string, exp expansion, dirty map[string]bool) {
	node, _ := b.g.Node(id)
	if exp.version != nil {
		if prev, ok := b.resolved[node.Name]; ok && !prev.Equal(exp.version) {
			b.opts.Logger.Debug("library version changed", "library", node.Name, "from", prev, "to", exp.version)
		}
		b.resolved[node.Name] = exp.version
		b.resolvedWith[node.Name] = exp.constraints
		node.Meta["version"] = exp.version.String()
		dirty[node.Name] = true
	}

	for _, child := range b.g.Children(id) {
		b.g.RemoveEdge(id, child)
	}
	b.withdraw(id, dirty)
	for _, d := range exp.deps {
		did := d.ID()
		if d.Kind == dag.KindLibrary {
			b.place(d.Name, id, d.Constraints)
			dirty[d.Name] = true
		}
		if !b.g.Has(did) {
			_ = b.g.AddNode(dag.Node{ID: did, Name: d.Name, Kind: d.Kind})
			b.requiredBy[did] = id
			b.frontier[did] = true
		}
		_ = b.g.AddEdge(dag.Edge{From: id, To: did})
	}
}

func (b *builder) place(name, requester string, constraints []string) {
	by := b.placed[name]
	if by == nil {
		by = make(map[string][]string)
		b.placed[name] = by
	}
	by[requester] = append(by[requester], constraints...)
}

// withdraw removes every constraint placed by requester.
func (b *builder) withdraw(requester string, dirty map[string]bool) {
	for name, by := range b.placed {
		if _, ok := by[requester]; ok {
			delete(by, requester)
			dirty[name] = true
		}
	}
}

// constraintsFor returns the pins of a library followed by the constraints
// of its current requesters in ID order.
func (b *builder) constraintsFor(name string) []string {
	var set ConstraintSet
	set.Add(name, b.pins[name]...)
	by := b.placed[name]
	for _, requester := range slices.Sorted(maps.Keys(by)) {
		set.Add(name, by[requester]...)
	}
	return set.Get(name)
}

// recheck re-queues resolved libraries whose version no longer satisfies
// their live constraints, or which were resolved under a constraint that
// has since been withdrawn and may now have a newer candidate.
func (b *builder) recheck(dirty map[string]bool) error {
	for _, name := range slices.Sorted(maps.Keys(dirty)) {
		v, ok := b.resolved[name]
		if !ok {
			continue
		}
		cons := b.constraintsFor(name)
		req, err := version.ParseRequirement(cons...)
		if err != nil {
			return err
		}
		relaxed := slices.ContainsFunc(b.resolvedWith[name], func(c string) bool {
			return !slices.Contains(cons, c)
		})
		if !req.Matches(v) || relaxed {
			id := dag.NodeID(dag.KindLibrary, name)
			b.opts.Logger.Debug("re-resolving library", "library", name, "version", v, "constraints", req)
			b.frontier[id] = true
		}
	}
	return nil
}

// dropUnreachable removes nodes no longer reachable from the seeds along
// with the constraints they placed. A dropped node that is required again
// later is expanded from scratch.
func (b *builder) dropUnreachable(dirty map[string]bool) {
	reachable := b.reachable()
	for _, id := range b.g.IDs() {
		if reachable[id] {
			continue
		}
		n, _ := b.g.Node(id)
		b.opts.Logger.Debug("dropping unreachable node", "node", id)
		if n.Kind == dag.KindLibrary {
			delete(b.resolved, n.Name)
			delete(b.resolvedWith, n.Name)
		}
		b.withdraw(id, dirty)
		delete(b.requiredBy, id)
		delete(b.frontier, id)
		b.g.RemoveNode(id)
	}
}

func (b *builder) reachable() map[string]bool {
	reachable := make(map[string]bool)
	stack := slices.Clone(b.roots)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reachable[id] {
			continue
		}
		reachable[id] = true
		stack = append(stack, b.g.Children(id)...)
	}
	return reachable
}

// finish records the final constraints on library nodes.
func (b *builder) finish() {
	for _, n := range b.g.Nodes() {
		if n.Kind == dag.KindLibrary {
			n.Meta["constraints"] = b.constraintsFor(n.Name)
		}
	}
}

func (b *builder) diverged() error {
	return &errors.ResolutionDivergedError{
		Rounds:  b.rounds,
		Nodes:   b.g.NodeCount(),
		Pending: slices.Sorted(maps.Keys(b.frontier)),
	}
}

// notFound attaches the dependent to not-found errors so the message names
// both ends of the broken edge.
func notFound(err error, name, from string) error {
	if !errors.Is(err, errors.ErrCodeNotFound) {
		return err
	}
	var nf *errors.NotFoundError
	if stderrors.As(err, &nf) {
		if nf.From != "" {
			return err
		}
		return &errors.NotFoundError{Name: nf.Name, From: from, Err: nf.Err}
	}
	return &errors.NotFoundError{Name: name, From: from, Err: err}
}
