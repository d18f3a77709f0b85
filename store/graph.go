package store

// Node is one record in a Graph snapshot.
type Node struct {
	Label    string
	Strong   []ID // targets of strong slots
	Weak     []ID // targets of weak slots
	ID       ID
	Count    int // strong count
	External int // strong count not explained by slots of other live records
	Live     bool
}

// Graph is a snapshot of the reference graph held in a store.
type Graph struct {
	nodes map[ID]*Node
	order []ID
	Roots []ID // live records with at least one external strong handle
}

// Node returns the node for id, or nil.
func (g *Graph) Node(id ID) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Each iterates over nodes in store order.
func (g *Graph) Each(fn func(*Node) bool) {
	for _, id := range g.order {
		if !fn(g.nodes[id]) {
			return
		}
	}
}

// Graph snapshots the records present in s together with their outgoing
// references. Slot edges are the only references the store can see, so any
// strong count beyond them is attributed to handles held outside the store.
func (s *Store) Graph() *Graph {
	g := &Graph{nodes: make(map[ID]*Node)}

	incoming := make(map[ID]int)
	s.Each(func(info Info) bool {
		n := &Node{
			ID:    info.ID,
			Label: info.Label,
			Count: info.Strong,
			Live:  info.Live,
		}
		for _, ref := range info.Slots {
			if ref.Weak {
				n.Weak = append(n.Weak, ref.Target)
				continue
			}
			n.Strong = append(n.Strong, ref.Target)
			if info.Live {
				incoming[ref.Target]++
			}
		}
		g.nodes[info.ID] = n
		g.order = append(g.order, info.ID)
		return true
	})

	for _, id := range g.order {
		n := g.nodes[id]
		n.External = n.Count - incoming[id]
		if n.Live && n.External > 0 {
			g.Roots = append(g.Roots, id)
		}
	}
	return g
}

// Reachable returns the set of records reachable from the roots through
// strong slots.
func (g *Graph) Reachable() map[ID]bool {
	seen := make(map[ID]bool, len(g.order))
	stack := append([]ID(nil), g.Roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		if n := g.nodes[id]; n != nil {
			stack = append(stack, n.Strong...)
		}
	}
	return seen
}

// Leaks returns the live objects that no externally held strong handle can
// reach: retain cycles and everything they keep alive. Clearing handles can
// never finalize them. The store reports them and does nothing else.
func (s *Store) Leaks() []Info {
	g := s.Graph()
	reachable := g.Reachable()

	var leaked []Info
	for _, id := range g.order {
		n := g.nodes[id]
		if !n.Live || reachable[id] {
			continue
		}
		info, err := s.Info(id)
		if err != nil {
			continue
		}
		leaked = append(leaked, info)
	}
	return leaked
}
