package typegen

import (
	"slices"
	"sort"
)

// typeGraph is the dependency graph of one emission unit. IDs are assigned
// in name order so that ties in the toposort resolve alphabetically.
type typeGraph struct {
	names []string
	edges [][]int // edges[dep] = типы, которые ссылаются на dep
	indeg []int
}

type topo struct {
	order  []int
	cyclic bool
	cycles []int // узлы, оставшиеся в цикле
}

func buildTypeGraph(types []*GeneratedType) (typeGraph, map[string]*GeneratedType) {
	byName := make(map[string]*GeneratedType, len(types))
	for _, t := range types {
		if _, ok := byName[t.Name]; !ok {
			byName[t.Name] = t
		}
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	ids := make(map[string]int, len(names))
	for i, name := range names {
		ids[name] = i
	}

	g := typeGraph{
		names: names,
		edges: make([][]int, len(names)),
		indeg: make([]int, len(names)),
	}
	for i, name := range names {
		for _, dep := range byName[name].Deps {
			from, ok := ids[dep]
			if !ok || from == i {
				// внешний тип или ссылка на себя
				continue
			}
			g.edges[from] = append(g.edges[from], i)
			g.indeg[i]++
		}
	}
	return g, byName
}

func toposortKahn(g typeGraph) *topo {
	n := len(g.names)
	indeg := make([]int, n)
	copy(indeg, g.indeg)

	t := &topo{order: make([]int, 0, n)}
	current := make([]int, 0, n)
	for i := range n {
		if indeg[i] == 0 {
			current = append(current, i)
		}
	}

	for len(current) > 0 {
		next := make([]int, 0)
		for _, id := range current {
			t.order = append(t.order, id)
			for _, to := range g.edges[id] {
				indeg[to]--
				if indeg[to] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if len(t.order) != n {
		t.cyclic = true
		for i := range n {
			if indeg[i] > 0 {
				t.cycles = append(t.cycles, i)
			}
		}
	}
	return t
}

// Order sorts types so that every type follows the types it references.
// Ties are broken by name; mutually recursive types (input objects may
// refer to themselves) are appended in name order.
func Order(types []*GeneratedType) []*GeneratedType {
	g, byName := buildTypeGraph(types)
	t := toposortKahn(g)
	out := make([]*GeneratedType, 0, len(g.names))
	for _, id := range t.order {
		out = append(out, byName[g.names[id]])
	}
	if t.cyclic {
		for _, id := range t.cycles {
			out = append(out, byName[g.names[id]])
		}
	}
	return out
}
