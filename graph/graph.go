// Package graph provides the small directed graph abstraction shared by the
// closure analyzer and the library/cache dependency resolution.
package graph

// Node is a single node of a directed graph.  Both edge directions are kept so
// that the condensation can walk the graph backwards without rebuilding it.
type Node[K comparable] struct {
	Key K

	DirectEdges   []*Node[K]
	ReversedEdges []*Node[K]
}

// DirectedGraph is a directed graph keyed by `K`.  Nodes are kept in insertion
// order so every traversal is deterministic.
type DirectedGraph[K comparable] struct {
	nodes map[K]*Node[K]
	order []*Node[K]
}

// New creates a new empty graph.
func New[K comparable]() *DirectedGraph[K] {
	return &DirectedGraph[K]{nodes: make(map[K]*Node[K])}
}

// AddNode adds a node with the given key if it does not already exist and
// returns it.
func (g *DirectedGraph[K]) AddNode(key K) *Node[K] {
	if n, ok := g.nodes[key]; ok {
		return n
	}

	n := &Node[K]{Key: key}
	g.nodes[key] = n
	g.order = append(g.order, n)
	return n
}

// AddEdge adds an edge `from -> to`, creating either node as necessary.
// Duplicate edges are ignored.
func (g *DirectedGraph[K]) AddEdge(from, to K) {
	fromNode, toNode := g.AddNode(from), g.AddNode(to)

	for _, e := range fromNode.DirectEdges {
		if e == toNode {
			return
		}
	}

	fromNode.DirectEdges = append(fromNode.DirectEdges, toNode)
	toNode.ReversedEdges = append(toNode.ReversedEdges, fromNode)
}

// Node returns the node with the given key.
func (g *DirectedGraph[K]) Node(key K) (*Node[K], bool) {
	n, ok := g.nodes[key]
	return n, ok
}

// Nodes returns all the nodes of the graph in insertion order.
func (g *DirectedGraph[K]) Nodes() []*Node[K] {
	return g.order
}

// Len returns the number of nodes in the graph.
func (g *DirectedGraph[K]) Len() int {
	return len(g.order)
}

// -----------------------------------------------------------------------------

// ReversePostorder returns every key reachable from `roots` (the roots
// included) in reverse postorder of a depth-first search following `succ`.
// The traversal is iterative so deep include chains cannot exhaust the stack.
func ReversePostorder[K comparable](roots []K, succ func(K) []K) []K {
	visited := make(map[K]bool)
	var postorder []K

	type frame struct {
		key  K
		next int
		succ []K
	}

	for _, root := range roots {
		if visited[root] {
			continue
		}

		visited[root] = true
		stack := []*frame{{key: root, succ: succ(root)}}

		for len(stack) > 0 {
			top := stack[len(stack)-1]

			if top.next < len(top.succ) {
				s := top.succ[top.next]
				top.next++

				if !visited[s] {
					visited[s] = true
					stack = append(stack, &frame{key: s, succ: succ(s)})
				}

				continue
			}

			postorder = append(postorder, top.key)
			stack = stack[:len(stack)-1]
		}
	}

	for i, j := 0, len(postorder)-1; i < j; i, j = i+1, j-1 {
		postorder[i], postorder[j] = postorder[j], postorder[i]
	}

	return postorder
}
