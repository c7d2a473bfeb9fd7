package compose

import (
	"sort"

	graphlib "github.com/dominikbraun/graph"
)

// depGraph mirrors node edges in a graph library instance for the whole-graph
// queries: reachability, reverse reachability and toposort.
type depGraph struct {
	g     graphlib.Graph[int, int]
	nodes []*Node
}

func newDepGraph(nodes []*Node) *depGraph {
	g := graphlib.New(graphlib.IntHash, graphlib.Directed())
	for _, n := range nodes {
		_ = g.AddVertex(n.ID)
	}
	for _, n := range nodes {
		for _, e := range n.Edges {
			// повторное ребро допустимо: ErrEdgeAlreadyExists игнорируем
			_ = g.AddEdge(n.ID, e.To.ID)
		}
	}
	return &depGraph{g: g, nodes: nodes}
}

// reachesAny reports whether from reaches (or is) a node of targets.
func (d *depGraph) reachesAny(from int, targets map[int]bool) bool {
	if len(targets) == 0 {
		return false
	}
	found := false
	_ = graphlib.DFS(d.g, from, func(id int) bool {
		if targets[id] {
			found = true
			return true
		}
		return false
	})
	return found
}

// dependents walks predecessor links from ids.
func (d *depGraph) dependents(ids []int) []int {
	preds, err := d.g.PredecessorMap()
	if err != nil {
		return nil
	}
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	queue := append([]int(nil), ids...)
	var out []int
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for pred := range preds[id] {
			if seen[pred] {
				continue
			}
			seen[pred] = true
			out = append(out, pred)
			queue = append(queue, pred)
		}
	}
	sort.Ints(out)
	return out
}

// order returns dependencies before dependents. Edges point from a user to the
// fragment it uses, so the topological order is reversed.
func (d *depGraph) order() []int {
	ids, err := graphlib.StableTopologicalSort(d.g, func(a, b int) bool { return a < b })
	if err != nil {
		ids = make([]int, len(d.nodes))
		for i := range d.nodes {
			ids[i] = i
		}
		return ids
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}
