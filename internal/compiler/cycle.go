package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/patchwork/internal/ir"
)

// CycleWarning reports components that reference each other.
//
// Cycles are warnings, not errors: change notification fires only when a
// component goes from clean to dirty, so a cycle settles after one round.
// Every member still rebuilds whenever any member changes.
type CycleWarning struct {
	Path    []string `json:"path"`    // ["a", "b", "a"]
	Message string   `json:"message"` // human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeCycles finds reference cycles between components.
//
// The algorithm:
//  1. Build component → referenced component edges from Ref attributes
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-reference
//
// Nodes are visited in declaration order so the output is deterministic.
func AnalyzeCycles(scene *ir.SceneDef) []CycleWarning {
	warnings := []CycleWarning{}
	if scene == nil || len(scene.Components) == 0 {
		return warnings
	}

	graph, order := buildReferenceGraph(scene)
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// referenceGraph maps component → components it references.
type referenceGraph map[string][]string

func buildReferenceGraph(scene *ir.SceneDef) (referenceGraph, []string) {
	graph := make(referenceGraph, len(scene.Components))
	order := make([]string, 0, len(scene.Components))
	for _, def := range scene.Components {
		if _, ok := graph[def.Name]; !ok {
			order = append(order, def.Name)
			graph[def.Name] = []string{}
		}
	}
	for _, def := range scene.Components {
		for _, ref := range def.References() {
			// Dangling references are reported by Validate.
			if _, ok := graph[ref.Target]; ok {
				graph[def.Name] = append(graph[def.Name], ref.Target)
			}
		}
	}
	return graph, order
}

func hasSelfLoop(node string, graph referenceGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Single-node SCCs without self-loops are not cycles.
func tarjanSCC(graph referenceGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, graph referenceGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("component references itself: %s → %s", name, name),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("reference cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the SCC from the member visited
// first until it returns to it.
func reconstructCyclePath(scc []string, graph referenceGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
