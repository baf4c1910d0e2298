package dag

import (
	stderrors "errors"
	"slices"
	"testing"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

func TestOrder(t *testing.T) {
	tests := []struct {
		name   string
		edges  map[string][]string
		groups []PriorityGroup
		want   []string
	}{
		{
			name:  "chain",
			edges: map[string][]string{"c": {"b"}, "b": {"a"}, "a": nil},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "ties broken by id",
			edges: map[string][]string{"z": nil, "m": nil, "a": nil},
			want:  []string{"a", "m", "z"},
		},
		{
			name:   "priority group wins tie",
			edges:  map[string][]string{"z": nil, "m": nil, "a": nil},
			groups: []PriorityGroup{{Name: "first", Members: []string{"z"}}, {Name: "second", Members: []string{"m"}}},
			want:   []string{"z", "m", "a"},
		},
		{
			name: "priority never overrides dependencies",
			edges: map[string][]string{
				"prio": {"dep"},
				"dep":  nil,
				"aaa":  nil,
			},
			groups: []PriorityGroup{{Name: "g", Members: []string{"prio"}}},
			want:   []string{"aaa", "dep", "prio"},
		},
		{
			name:   "members match un-namespaced names",
			edges:  map[string][]string{"library:zz": nil, "component:aa": nil},
			groups: []PriorityGroup{{Members: []string{"zz"}}},
			want:   []string{"library:zz", "component:aa"},
		},
		{
			name:   "first containing group counts",
			edges:  map[string][]string{"x": nil, "y": nil},
			groups: []PriorityGroup{{Members: []string{"y"}}, {Members: []string{"x", "y"}}},
			want:   []string{"y", "x"},
		},
		{
			name:  "empty graph",
			edges: map[string][]string{},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := FromEdgeMap(tt.edges)
			if err != nil {
				t.Fatal(err)
			}
			got, err := Order(g, tt.groups)
			if err != nil {
				t.Fatalf("Order() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Order() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrder_DependenciesFirst(t *testing.T) {
	edges := map[string][]string{
		"app":  {"log", "net", "zlib"},
		"log":  {"fmt"},
		"net":  {"zlib", "fmt"},
		"zlib": nil,
		"fmt":  nil,
		"tool": {"app"},
	}
	g, _ := FromEdgeMap(edges)
	order, err := Order(g, []PriorityGroup{{Members: []string{"net"}}})
	if err != nil {
		t.Fatal(err)
	}
	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	for id, deps := range edges {
		for _, dep := range deps {
			if pos[dep] >= pos[id] {
				t.Errorf("%s ordered before its dependency %s: %v", id, dep, order)
			}
		}
	}
}

func TestOrder_Cycle(t *testing.T) {
	g, _ := FromEdgeMap(map[string][]string{
		"root": {"a"},
		"a":    {"b"},
		"b":    {"a"},
		"ok":   nil,
	})
	_, err := Order(g, nil)
	var ce *errors.CyclicDependencyError
	if !stderrors.As(err, &ce) {
		t.Fatalf("Order() error = %v, want CyclicDependencyError", err)
	}
	if want := []string{"a", "b", "a"}; !slices.Equal(ce.Cycle, want) {
		t.Errorf("Cycle = %v, want %v", ce.Cycle, want)
	}
}

func TestLevels_Cycle(t *testing.T) {
	g, _ := FromEdgeMap(map[string][]string{"a": {"a"}})
	if _, err := Levels(g); !errors.Is(err, errors.ErrCodeCyclicDependency) {
		t.Errorf("Levels() error = %v, want cyclic dependency", err)
	}
}
