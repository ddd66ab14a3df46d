// Package scheduler implements the Dependency Scheduler (C2): builds an
// entity dependency graph and emits a deterministic, level-by-level
// processing order, handling cycles via Tarjan's SCC algorithm.
//
// Per spec.md §9's design note, the graph is represented as index-based
// arenas rather than a pointer graph, so Tarjan's walk is a plain slice
// scan with an explicit stack.
package scheduler

import (
	"log/slog"
	"sort"

	"github.com/codegraph-labs/justify/pkg/graph"
)

// Build constructs the dependency graph from entities and relationships:
// every relationship kind for which graph.IsDependencyEdge is true becomes
// an edge u->v meaning "u depends on v". Edges whose endpoint is not in
// entities are dropped.
func Build(entities []graph.Entity, relationships []graph.Relationship) map[string]*graph.DependencyNode {
	nodes := make(map[string]*graph.DependencyNode, len(entities))
	for _, e := range entities {
		nodes[e.ID] = graph.NewDependencyNode(e.ID, e.Kind)
	}
	for _, r := range relationships {
		if !graph.IsDependencyEdge(r.Kind) {
			continue
		}
		from, ok := nodes[r.FromID]
		if !ok {
			continue
		}
		to, ok := nodes[r.ToID]
		if !ok {
			continue
		}
		from.DependsOn[r.ToID] = true
		to.DependedBy[r.FromID] = true
	}
	return nodes
}

// Schedule runs Kahn's topological sort over in-degrees, falling back to
// Tarjan's SCC on the remainder whenever no zero-in-degree node is left.
// Ordering inside a level is sorted by entity id for reproducibility.
func Schedule(nodes map[string]*graph.DependencyNode) graph.ProcessingOrder {
	remaining := make(map[string]*graph.DependencyNode, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	for id, n := range nodes {
		remaining[id] = n
		inDegree[id] = len(n.DependsOn)
	}

	var order graph.ProcessingOrder
	order.TotalEntities = len(nodes)

	level := 0
	for len(remaining) > 0 {
		zero := zeroInDegree(remaining, inDegree)
		if len(zero) > 0 {
			order.Levels = append(order.Levels, graph.ProcessingLevel{
				Level:     level,
				EntityIDs: zero,
				IsCycle:   false,
			})
			for _, id := range zero {
				delete(remaining, id)
				delete(inDegree, id)
				for _, dependent := range neighborsDependingOn(nodes, id, remaining) {
					inDegree[dependent]--
				}
			}
			level++
			continue
		}

		// No zero-in-degree node remains but nodes persist: run Tarjan's
		// SCC on the remainder.
		sccs := tarjanSCCs(remaining)
		if len(sccs) == 0 {
			// Invariant violation per spec.md §4.2 ("impossible under
			// invariants"): terminate with what we have, treating the
			// remainder as one final isolated level.
			slog.Error("scheduler: remainder nonempty but no SCC found; emitting final isolated level",
				"remaining", len(remaining))
			ids := idsOf(remaining)
			order.Levels = append(order.Levels, graph.ProcessingLevel{
				Level:     level,
				EntityIDs: ids,
				IsCycle:   false,
			})
			break
		}

		// Emit the first SCC found (size order is irrelevant; all
		// remaining nodes are processed across successive iterations).
		scc := sccs[0]
		cycleLevel := graph.ProcessingLevel{
			Level:     level,
			EntityIDs: scc,
			IsCycle:   true,
			CycleSize: len(scc),
		}
		order.Levels = append(order.Levels, cycleLevel)
		order.CycleCount++
		order.EntitiesInCycles += len(scc)
		for _, id := range scc {
			delete(remaining, id)
			delete(inDegree, id)
		}
		// Dependents outside the SCC whose dependency was inside it now
		// have a satisfied edge; recompute their in-degree against what
		// remains.
		for id, n := range remaining {
			count := 0
			for dep := range n.DependsOn {
				if _, stillThere := remaining[dep]; stillThere {
					count++
				}
			}
			inDegree[id] = count
		}
		level++
	}

	return order
}

func idsOf(m map[string]*graph.DependencyNode) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func zeroInDegree(remaining map[string]*graph.DependencyNode, inDegree map[string]int) []string {
	var ids []string
	for id := range remaining {
		if inDegree[id] == 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func neighborsDependingOn(nodes map[string]*graph.DependencyNode, id string, remaining map[string]*graph.DependencyNode) []string {
	n, ok := nodes[id]
	if !ok {
		return nil
	}
	var out []string
	for dependent := range n.DependedBy {
		if _, stillThere := remaining[dependent]; stillThere {
			out = append(out, dependent)
		}
	}
	return out
}

// tarjanSCCs finds strongly connected components restricted to the
// remaining node set, returning only components of size >= 2 plus any
// self-looped singleton, each sorted by entity id, the whole result sorted
// by first id for determinism.
func tarjanSCCs(remaining map[string]*graph.DependencyNode) [][]string {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var sccs [][]string

	ids := idsOf(remaining)

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		deps := sortedDeps(remaining[v], remaining)
		for _, w := range deps {
			if _, visited := indices[w]; !visited {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var comp []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			isSelfLoop := len(comp) == 1 && remaining[comp[0]].DependsOn[comp[0]]
			if len(comp) >= 2 || isSelfLoop {
				sort.Strings(comp)
				sccs = append(sccs, comp)
			}
		}
	}

	for _, id := range ids {
		if _, visited := indices[id]; !visited {
			strongconnect(id)
		}
	}

	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0] < sccs[j][0] })
	return sccs
}

func sortedDeps(n *graph.DependencyNode, remaining map[string]*graph.DependencyNode) []string {
	var out []string
	for dep := range n.DependsOn {
		if _, ok := remaining[dep]; ok {
			out = append(out, dep)
		}
	}
	sort.Strings(out)
	return out
}
