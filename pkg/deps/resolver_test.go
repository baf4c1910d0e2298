package deps

import (
	"context"
	stderrors "errors"
	"slices"
	"testing"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

func TestVersionResolver(t *testing.T) {
	idx := NewStaticIndex().
		Add("utilrb", "1.0").
		Add("utilrb", "1.4").
		Add("utilrb", "1.8", Requirement{Name: "facets", Constraints: []string{">= 2"}}).
		Add("utilrb", "2.0").
		Add("utilrb", "2.1.rc1")

	v, reqs, err := NewVersionResolver(idx).Resolve(context.Background(), "utilrb", []string{">= 1.0", "< 2.0", ">= 1.5"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if v.String() != "1.8" {
		t.Errorf("Resolve() = %s, want 1.8", v)
	}
	if len(reqs) != 1 || reqs[0].Name != "facets" {
		t.Errorf("Resolve() deps = %v", reqs)
	}

	v, _, err = NewVersionResolver(idx).Resolve(context.Background(), "utilrb", nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "2.0" {
		t.Errorf("Resolve(any) = %s, want 2.0 (prerelease skipped)", v)
	}
}

func TestVersionResolver_Unsatisfiable(t *testing.T) {
	idx := NewStaticIndex().Add("utilrb", "2.1").Add("utilrb", "0.9")

	_, _, err := NewVersionResolver(idx).Resolve(context.Background(), "utilrb", []string{">= 1.0", "< 2.0", ">= 1.5"})
	var ue *errors.UnsatisfiableConstraintError
	if !stderrors.As(err, &ue) {
		t.Fatalf("Resolve() error = %v, want UnsatisfiableConstraintError", err)
	}
	if ue.Name != "utilrb" {
		t.Errorf("Name = %s", ue.Name)
	}
	if !slices.Equal(ue.Constraints, []string{">= 1.0", "< 2.0", ">= 1.5"}) {
		t.Errorf("Constraints = %v", ue.Constraints)
	}
	if !slices.Equal(ue.Available, []string{"0.9", "2.1"}) {
		t.Errorf("Available = %v", ue.Available)
	}
}

func TestVersionResolver_NotFound(t *testing.T) {
	_, _, err := NewVersionResolver(NewStaticIndex()).Resolve(context.Background(), "ghost", nil)
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Resolve() error = %v, want NOT_FOUND", err)
	}
}

func TestVersionResolver_InvalidConstraint(t *testing.T) {
	idx := NewStaticIndex().Add("rake", "13.0")
	_, _, err := NewVersionResolver(idx).Resolve(context.Background(), "rake", []string{"=> 1"})
	if !errors.Is(err, errors.ErrCodeInvalidVersion) {
		t.Errorf("Resolve() error = %v, want INVALID_VERSION", err)
	}
}
