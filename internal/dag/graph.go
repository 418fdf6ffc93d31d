// Package dag models the job dependency graph of a workflow run: jobs as
// nodes, requires entries as directed edges, with validation and Kahn
// layering for the engine.
package dag

import (
	"sort"
	"sync"

	"github.com/vk/crosspipe/internal/config"
)

// node is one vertex of the graph. deps are the jobs this node requires;
// dependents are the jobs that require it.
type node struct {
	job        *config.Job
	deps       map[string]*node
	dependents map[string]*node
}

// Graph is a directed acyclic graph of named jobs. All methods are safe for
// concurrent use.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// FromModel builds a graph containing every job of the given model. Edges
// come from each job's Requires list; validation is a separate step so a
// malformed definition is reported with the full error, not a partial graph.
func FromModel(model *config.Model) *Graph {
	g := New()
	for _, job := range model.Jobs {
		g.AddJob(job)
	}
	return g
}

// AddJob adds a job node to the graph. Adding the same name twice replaces
// the earlier definition, matching last-definition-wins merge semantics of
// the loaders.
func (g *Graph) AddJob(job *config.Job) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.nodes[job.Name] = &node{
		job:        job,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}

// Job returns the job definition for the given name.
func (g *Graph) Job(name string) (*config.Job, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return nil, false
	}
	return n.job, true
}

// Len returns the number of jobs in the graph.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// Names returns the sorted names of every job in the graph.
func (g *Graph) Names() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Requires returns the names of the jobs the given job requires.
func (g *Graph) Requires(name string) []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	reqs := make([]string, 0, len(n.job.Requires))
	reqs = append(reqs, n.job.Requires...)
	sort.Strings(reqs)
	return reqs
}

// Dependents returns the sorted names of the jobs that require the given job.
// Only meaningful after Validate has linked the edges.
func (g *Graph) Dependents(name string) []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	deps := make([]string, 0, len(n.dependents))
	for id := range n.dependents {
		deps = append(deps, id)
	}
	sort.Strings(deps)
	return deps
}

// Validate links the requires edges and checks structural integrity. It
// returns an *UnknownDependencyError if a job requires an undefined name,
// and a *CycleError if the edges form a cycle. The engine fails fast on
// either error before any job runs.
func (g *Graph) Validate() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	// Link edges first so the cycle check sees the complete graph.
	for _, n := range g.nodes {
		n.deps = make(map[string]*node)
		n.dependents = make(map[string]*node)
	}
	for name, n := range g.nodes {
		for _, req := range n.job.Requires {
			dep, ok := g.nodes[req]
			if !ok {
				return &UnknownDependencyError{Job: name, Requires: req}
			}
			n.deps[req] = dep
			dep.dependents[name] = n
		}
	}

	return g.detectCycles()
}

// detectCycles runs a classic depth-first search with three node sets:
// permanent nodes are fully visited and known safe, temporary nodes are in
// the current recursion stack, everything else is unvisited. Hitting a
// temporary node again means a cycle. Callers must hold the write lock.
func (g *Graph) detectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string

	var visit func(name string, n *node) error
	visit = func(name string, n *node) error {
		if permanent[name] {
			return nil
		}
		if temporary[name] {
			// Trim the stack to the cycle entry point for a readable report.
			start := 0
			for i, s := range stack {
				if s == name {
					start = i
					break
				}
			}
			return &CycleError{Members: append(append([]string{}, stack[start:]...), name)}
		}

		temporary[name] = true
		stack = append(stack, name)

		// Deterministic visit order keeps the reported cycle stable.
		depNames := make([]string, 0, len(n.deps))
		for depName := range n.deps {
			depNames = append(depNames, depName)
		}
		sort.Strings(depNames)
		for _, depName := range depNames {
			if err := visit(depName, n.deps[depName]); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(temporary, name)
		permanent[name] = true
		return nil
	}

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !permanent[name] {
			if err := visit(name, g.nodes[name]); err != nil {
				return err
			}
		}
	}
	return nil
}
