// Package dag tracks the reference graph between template files: which
// template includes, extends, embeds or imports which. The build uses it
// for cycle detection and the watcher uses it to find which outputs a
// changed file invalidates.
package dag

import (
	"fmt"
	"sort"
)

// Graph is a directed graph of template paths. An edge runs from a
// template to each template that references it, so walking forward from a
// node reaches everything a change to it affects.
type Graph struct {
	nodes      map[string]struct{}
	dependents map[string][]string // referenced path -> referencing paths
	refs       map[string][]string // referencing path -> referenced paths
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[string]struct{}),
		dependents: make(map[string][]string),
		refs:       make(map[string][]string),
	}
}

// Add ensures path exists as a node.
func (g *Graph) Add(path string) {
	if _, ok := g.nodes[path]; !ok {
		g.nodes[path] = struct{}{}
	}
}

// SetRefs replaces the outgoing reference set of path. Referenced paths
// are added as nodes if missing. The replace semantics make re-scans after
// a file change idempotent.
func (g *Graph) SetRefs(path string, referenced []string) {
	g.Add(path)

	for _, ref := range g.refs[path] {
		g.dependents[ref] = remove(g.dependents[ref], path)
	}
	g.refs[path] = nil

	for _, ref := range referenced {
		if ref == path {
			continue
		}
		g.Add(ref)
		if !contains(g.refs[path], ref) {
			g.refs[path] = append(g.refs[path], ref)
			g.dependents[ref] = append(g.dependents[ref], path)
		}
	}
}

// Remove deletes path and every edge touching it.
func (g *Graph) Remove(path string) {
	for _, ref := range g.refs[path] {
		g.dependents[ref] = remove(g.dependents[ref], path)
	}
	for _, dep := range g.dependents[path] {
		g.refs[dep] = remove(g.refs[dep], path)
	}
	delete(g.nodes, path)
	delete(g.refs, path)
	delete(g.dependents, path)
}

// Refs returns the templates path references, sorted.
func (g *Graph) Refs(path string) []string {
	out := append([]string(nil), g.refs[path]...)
	sort.Strings(out)
	return out
}

// Dependents returns the templates referencing path, sorted.
func (g *Graph) Dependents(path string) []string {
	out := append([]string(nil), g.dependents[path]...)
	sort.Strings(out)
	return out
}

// Nodes returns all paths, sorted.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for path := range g.nodes {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Cycle returns a reference cycle if one exists, as the path sequence with
// the starting node repeated at the end, or nil.
func (g *Graph) Cycle() []string {
	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	cameFrom := make(map[string]string)

	var cycle []string
	var dfs func(path string) bool
	dfs = func(path string) bool {
		visited[path] = true
		inStack[path] = true

		for _, ref := range g.refs[path] {
			if !visited[ref] {
				cameFrom[ref] = path
				if dfs(ref) {
					return true
				}
			} else if inStack[ref] {
				cycle = []string{ref}
				for cur := path; cur != ref; cur = cameFrom[cur] {
					cycle = append([]string{cur}, cycle...)
				}
				cycle = append([]string{ref}, cycle...)
				return true
			}
		}

		inStack[path] = false
		return false
	}

	for _, path := range g.Nodes() {
		if !visited[path] {
			if dfs(path) {
				return cycle
			}
		}
	}
	return nil
}

// Sorted returns the nodes in dependency order, referenced templates
// before their referencers. Fails on a cycle.
func (g *Graph) Sorted() ([]string, error) {
	if cycle := g.Cycle(); cycle != nil {
		return nil, fmt.Errorf("template reference cycle: %v", cycle)
	}

	visited := make(map[string]bool)
	var order []string

	var visit func(path string)
	visit = func(path string) {
		if visited[path] {
			return
		}
		visited[path] = true
		for _, ref := range g.Refs(path) {
			visit(ref)
		}
		order = append(order, path)
	}

	for _, path := range g.Nodes() {
		visit(path)
	}
	return order, nil
}

// Affected returns changed plus every transitive dependent, sorted. These
// are the templates whose outputs a rebuild must regenerate.
func (g *Graph) Affected(changed []string) []string {
	affected := make(map[string]bool)

	var mark func(path string)
	mark = func(path string) {
		if affected[path] {
			return
		}
		affected[path] = true
		for _, dep := range g.dependents[path] {
			mark(dep)
		}
	}

	for _, path := range changed {
		if _, ok := g.nodes[path]; ok {
			mark(path)
		}
	}

	out := make([]string, 0, len(affected))
	for path := range affected {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
