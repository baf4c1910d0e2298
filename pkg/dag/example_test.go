package dag_test

import (
	"fmt"

	"github.com/matzehuels/stackbuild/pkg/dag"
)

func ExampleNodeID() {
	fmt.Println(dag.NodeID(dag.KindComponent, "utilrb"))
	fmt.Println(dag.NodeID(dag.KindLibrary, "utilrb"))
	// Output:
	// component:utilrb
	// library:utilrb
}

func ExampleDAG_traversal() {
	// app depends on auth and cache
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "app"})
	_ = g.AddNode(dag.Node{ID: "auth"})
	_ = g.AddNode(dag.Node{ID: "cache"})
	_ = g.AddEdge(dag.Edge{From: "app", To: "auth"})
	_ = g.AddEdge(dag.Edge{From: "app", To: "cache"})

	fmt.Println("Children of app:", g.Children("app"))
	fmt.Println("Parents of auth:", g.Parents("auth"))
	fmt.Println("Out-degree of app:", g.OutDegree("app"))
	// Output:
	// Children of app: [auth cache]
	// Parents of auth: [app]
	// Out-degree of app: 2
}

func ExampleOrder() {
	g, _ := dag.FromEdgeMap(map[string][]string{
		"app":   {"log", "zlib"},
		"log":   {"zlib"},
		"zlib":  nil,
		"extra": nil,
	})

	order, _ := dag.Order(g, []dag.PriorityGroup{{Name: "base", Members: []string{"zlib", "extra"}}})
	fmt.Println(order)
	// Output:
	// [extra zlib log app]
}

func ExampleOrder_cycle() {
	g, _ := dag.FromEdgeMap(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	})

	_, err := dag.Order(g, nil)
	fmt.Println(err)
	// Output:
	// dependency cycle: a -> b -> a
}

func ExampleLevels() {
	g, _ := dag.FromEdgeMap(map[string][]string{
		"app":  {"log", "zlib"},
		"log":  {"zlib"},
		"zlib": nil,
		"fmt":  nil,
	})

	levels, _ := dag.Levels(g)
	for i, level := range levels {
		fmt.Println(i, level)
	}
	// Output:
	// 0 [fmt zlib]
	// 1 [log]
	// 2 [app]
}
