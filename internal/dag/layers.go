package dag

import "sort"

// Layers computes the execution order using Kahn's algorithm: repeatedly
// extract the set of jobs with zero unresolved in-degree, remove them, and
// decrement their dependents. Each returned set may run concurrently; every
// job's requires set is fully contained in the union of earlier layers.
//
// Edges are derived from each job's Requires list here, so the result does
// not depend on Validate having run first. If nodes remain after the
// algorithm drains, Layers returns a *CycleError rather than a partial
// ordering. Requires entries naming undefined jobs are Validate's to
// report and carry no edge here.
func (g *Graph) Layers() ([][]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	inDegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for name := range g.nodes {
		inDegree[name] = 0
	}
	for name, n := range g.nodes {
		for _, req := range n.job.Requires {
			if _, ok := g.nodes[req]; !ok {
				continue
			}
			inDegree[name]++
			dependents[req] = append(dependents[req], name)
		}
	}

	var layers [][]string
	remaining := len(g.nodes)

	for remaining > 0 {
		var layer []string
		for name, degree := range inDegree {
			if degree == 0 {
				layer = append(layer, name)
			}
		}
		if len(layer) == 0 {
			var members []string
			for name := range inDegree {
				members = append(members, name)
			}
			sort.Strings(members)
			return nil, &CycleError{Members: members}
		}
		sort.Strings(layer)

		for _, name := range layer {
			delete(inDegree, name)
			for _, depName := range dependents[name] {
				if _, ok := inDegree[depName]; ok {
					inDegree[depName]--
				}
			}
		}

		layers = append(layers, layer)
		remaining -= len(layer)
	}

	return layers, nil
}
