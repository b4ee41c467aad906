package graph

import (
	"strings"
)

// cycleFrom extracts the loop closed by an edge back to target, given the
// current DFS path.
func cycleFrom(path []string, target string) []string {
	start := -1
	for i, p := range path {
		if p == target {
			start = i
			break
		}
	}
	if start == -1 {
		return nil
	}
	cycle := make([]string, len(path)-start)
	copy(cycle, path[start:])
	return cycle
}

// String renders the cycle as "a -> b -> a".
func (c Cycle) String() string {
	if len(c.Path) == 0 {
		return ""
	}
	return strings.Join(append(append([]string(nil), c.Path...), c.Path[0]), " -> ")
}

// CycleMap groups cycle members by the node each cycle starts at.
func (w Warnings) CycleMap() map[string][]string {
	out := make(map[string][]string, len(w.Cycles))
	for _, c := range w.Cycles {
		if len(c.Path) == 0 {
			continue
		}
		key := c.Path[0]
		seen := make(map[string]bool, len(out[key]))
		for _, p := range out[key] {
			seen[p] = true
		}
		for _, p := range c.Path {
			if !seen[p] {
				seen[p] = true
				out[key] = append(out[key], p)
			}
		}
	}
	return out
}

// InCycle reports whether path is a member of any recorded cycle.
func (w Warnings) InCycle(path string) bool {
	for _, c := range w.Cycles {
		for _, p := range c.Path {
			if p == path {
				return true
			}
		}
	}
	return false
}

// FindImportChain returns the shortest import chain from -> to, following
// edges in source order.
func (g *DependencyGraph) FindImportChain(from, to string) ([]string, bool) {
	if _, ok := g.Nodes[from]; !ok {
		return nil, false
	}
	if _, ok := g.Nodes[to]; !ok {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	queue := []string{from}
	visited := map[string]bool{from: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, next := range g.Edges[curr] {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr
			if next == to {
				chain := []string{to}
				for at := curr; ; at = prev[at] {
					chain = append(chain, at)
					if at == from {
						break
					}
				}
				for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
					chain[i], chain[j] = chain[j], chain[i]
				}
				return chain, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}
