package prune

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/observability"
	"github.com/matzehuels/stackbuild/pkg/release"
)

// DefaultConcurrency is the default number of concurrent index lookups.
const DefaultConcurrency = 8

// Options configures a [Pruner].
type Options struct {
	// Blacklist names nodes (by ID or name) that are always rebuilt, even
	// when an ancestor publishes them.
	Blacklist   []string       `toml:"blacklist"`
	Naming      release.Naming `toml:"-"`
	Concurrency int            `toml:"concurrency"`
	Logger      *log.Logger    `toml:"-"`
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	opts.Naming = opts.Naming.WithDefaults()
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return opts
}

// Pruner removes nodes already published by an ancestor release.
type Pruner struct {
	members *MembershipCache
	opts    Options
}

// NewPruner creates a pruner answering membership questions through members.
func NewPruner(members *MembershipCache, opts Options) *Pruner {
	return &Pruner{members: members, opts: opts.WithDefaults()}
}

// Prune returns a copy of g without the nodes some ancestor of target
// already publishes. Edges to removed nodes are dropped with them. The input
// graph is not modified. Pruning a pruned graph again removes nothing.
func (p *Pruner) Prune(ctx context.Context, g *dag.DAG, target release.Target) (*dag.DAG, error) {
	start := time.Now()
	nodes := g.Nodes()
	owners := make([]string, len(nodes))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.Concurrency)
	for i, n := range nodes {
		eg.Go(func() error {
			owner, err := p.Satisfied(gctx, *n, target)
			owners[i] = owner
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, &errors.CancelledError{Stage: "pruning", Err: ctx.Err()}
		}
		return nil, err
	}

	out := g.Clone()
	for i, n := range nodes {
		if owners[i] == "" {
			continue
		}
		p.opts.Logger.Debug("pruned", "node", n.ID, "release", owners[i])
		out.RemoveNode(n.ID)
	}
	observability.Pipeline().OnPruneComplete(ctx, target.String(), g.NodeCount(), out.NodeCount(), time.Since(start))
	p.opts.Logger.Info("pruned ancestor packages", "target", target, "before", g.NodeCount(), "after", out.NodeCount())
	return out, nil
}

// Satisfied returns the closest ancestor of target publishing node, or ""
// when the node must be built. Blacklisted nodes are never satisfied.
func (p *Pruner) Satisfied(ctx context.Context, node dag.Node, target release.Target) (string, error) {
	if p.blacklisted(node) {
		return "", nil
	}
	for _, anc := range target.Ancestors {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name := p.opts.Naming.PackageName(anc.Name, node)
		ok, err := p.members.Exists(ctx, name, anc, target.Arch)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeNetwork, err, "query %s in %s/%s", name, anc.Name, target.Arch)
		}
		if ok {
			return anc.Name, nil
		}
	}
	return "", nil
}

func (p *Pruner) blacklisted(n dag.Node) bool {
	return slices.Contains(p.opts.Blacklist, n.ID) || slices.Contains(p.opts.Blacklist, n.Name)
}
