package entity

// dependencyGraph maps an entity name to the names it depends on.
type dependencyGraph map[string][]string

// findCycle returns one dependency cycle as a closed path
// (["a", "b", "a"]), or nil for a DAG.
//
// Uses Tarjan's algorithm; nodes are visited in the given order so the
// reported cycle is deterministic.
func findCycle(graph dependencyGraph, order []string) []string {
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 {
			return cyclePath(scc, graph)
		}
		if len(scc) == 1 && hasSelfLoop(scc[0], graph) {
			return []string{scc[0], scc[0]}
		}
	}
	return nil
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of entity names.
// Single-node SCCs without self-loops are NOT cycles. Roots are visited
// in order rather than map order.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
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
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				// Successor w has not yet been visited; recurse on it
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				// Successor w is on stack and hence in the current SCC
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
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

	// Visit all nodes
	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cyclePath walks edges inside one SCC from its first member until it
// returns there.
func cyclePath(scc []string, graph dependencyGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[len(scc)-1]
	path := []string{start}
	seen := map[string]bool{start: true}
	cur := start
	for {
		next := ""
		for _, w := range graph[cur] {
			if members[w] {
				next = w
				if w == start || !seen[w] {
					break
				}
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start || seen[next] {
			return path
		}
		seen[next] = true
		cur = next
	}
}
