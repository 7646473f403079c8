package graph

// MultiNode is one strongly connected component of a graph.  Its keys are in
// the order in which the component was discovered.
type MultiNode[K comparable] struct {
	Keys []K
}

// IsCycle returns whether the component is a real cycle: more than one node or
// a single node with an edge to itself.
func (mn MultiNode[K]) IsCycle(g *DirectedGraph[K]) bool {
	if len(mn.Keys) > 1 {
		return true
	}

	n, _ := g.Node(mn.Keys[0])
	for _, e := range n.DirectEdges {
		if e == n {
			return true
		}
	}

	return false
}

// Condense computes the condensation of the graph using the Kosaraju-Sharir
// algorithm.  The strongly connected components are returned in topological
// order: for every edge `a -> b` between different components, the component
// of `a` comes before the component of `b`.
func Condense[K comparable](g *DirectedGraph[K]) []MultiNode[K] {
	// First pass: order the nodes by decreasing DFS finish time over the
	// direct edges.
	visited := make(map[*Node[K]]bool, g.Len())
	finished := make([]*Node[K], 0, g.Len())

	type frame struct {
		node *Node[K]
		next int
	}

	for _, start := range g.order {
		if visited[start] {
			continue
		}

		visited[start] = true
		stack := []*frame{{node: start}}

		for len(stack) > 0 {
			top := stack[len(stack)-1]

			if top.next < len(top.node.DirectEdges) {
				s := top.node.DirectEdges[top.next]
				top.next++

				if !visited[s] {
					visited[s] = true
					stack = append(stack, &frame{node: s})
				}

				continue
			}

			finished = append(finished, top.node)
			stack = stack[:len(stack)-1]
		}
	}

	// Second pass: walk the reversed edges in decreasing finish order.  Every
	// walk collects exactly one component, and components come out in
	// topological order.
	assigned := make(map[*Node[K]]bool, g.Len())
	var result []MultiNode[K]

	for i := len(finished) - 1; i >= 0; i-- {
		root := finished[i]
		if assigned[root] {
			continue
		}

		var keys []K
		assigned[root] = true
		work := []*Node[K]{root}

		for len(work) > 0 {
			n := work[len(work)-1]
			work = work[:len(work)-1]
			keys = append(keys, n.Key)

			for _, r := range n.ReversedEdges {
				if !assigned[r] {
					assigned[r] = true
					work = append(work, r)
				}
			}
		}

		result = append(result, MultiNode[K]{Keys: keys})
	}

	return result
}
