package version

import (
	"regexp"
	"slices"
	"strings"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

// Op is a constraint comparison operator.
type Op string

// Supported operators.
const (
	OpEq          Op = "="
	OpNe          Op = "!="
	OpGt          Op = ">"
	OpGe          Op = ">="
	OpLt          Op = "<"
	OpLe          Op = "<="
	OpPessimistic Op = "~>"
)

// Constraint is a single operator/version pair.
type Constraint struct {
	Op      Op
	Version *Version
}

var constraintRegex = regexp.MustCompile(`^\s*(=|!=|>=|<=|>|<|~>)?\s*(\S+)\s*$`)

// ParseConstraint parses a single constraint such as ">= 1.2" or "~> 3.0".
func ParseConstraint(s string) (Constraint, error) {
	m := constraintRegex.FindStringSubmatch(s)
	if m == nil {
		return Constraint{}, errors.New(errors.ErrCodeInvalidVersion, "invalid constraint %q", s)
	}
	v, err := Parse(m[2])
	if err != nil {
		return Constraint{}, errors.Wrap(errors.ErrCodeInvalidVersion, err, "invalid constraint %q", s)
	}
	op := Op(m[1])
	if op == "" {
		op = OpEq
	}
	return Constraint{Op: op, Version: v}, nil
}

// String renders the constraint in canonical "op version" form.
func (c Constraint) String() string {
	return string(c.Op) + " " + c.Version.String()
}

// Matches reports whether v satisfies the constraint.
func (c Constraint) Matches(v *Version) bool {
	cmp := v.Compare(c.Version)
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpPessimistic:
		return cmp >= 0 && v.Release().Compare(c.Version.Bump()) < 0
	default:
		return false
	}
}

// Requirement is a conjunction of constraints. The zero value matches any
// version.
type Requirement []Constraint

// ParseRequirement parses one or more requirement strings. Each string may
// hold several comma-separated constraints; all of them must hold.
func ParseRequirement(exprs ...string) (Requirement, error) {
	var req Requirement
	for _, expr := range exprs {
		for _, part := range strings.Split(expr, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			c, err := ParseConstraint(part)
			if err != nil {
				return nil, err
			}
			req = append(req, c)
		}
	}
	return req, nil
}

// Matches reports whether v satisfies every constraint.
func (r Requirement) Matches(v *Version) bool {
	for _, c := range r {
		if !c.Matches(v) {
			return false
		}
	}
	return true
}

// AllowsPrerelease reports whether any constraint names a prerelease
// version explicitly. Prereleases are otherwise never selected.
func (r Requirement) AllowsPrerelease() bool {
	return slices.ContainsFunc(r, func(c Constraint) bool { return c.Version.Prerelease() })
}

// Strings renders each constraint in canonical form.
func (r Requirement) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.String()
	}
	return out
}

// String renders the requirement as a comma-separated list, or ">= 0" when
// it has no constraints.
func (r Requirement) String() string {
	if len(r) == 0 {
		return ">= 0"
	}
	return strings.Join(r.Strings(), ", ")
}

// Select returns the highest version in available that satisfies r.
// Unparseable entries are ignored. The second return value is false when
// nothing matches. The result only depends on the set of available versions,
// not on their order.
func (r Requirement) Select(available []string) (*Version, bool) {
	pre := r.AllowsPrerelease()
	var best *Version
	for _, s := range available {
		v, err := Parse(s)
		if err != nil {
			continue
		}
		if v.Prerelease() && !pre {
			continue
		}
		if !r.Matches(v) {
			continue
		}
		if best == nil || v.Compare(best) > 0 || (v.Compare(best) == 0 && v.original < best.original) {
			best = v
		}
	}
	return best, best != nil
}

// Sort sorts versions in ascending precedence, ties broken by their
// original spelling.
func Sort(vs []*Version) {
	slices.SortFunc(vs, func(a, b *Version) int {
		if c := a.Compare(b); c != 0 {
			return c
		}
		return strings.Compare(a.original, b.original)
	})
}
