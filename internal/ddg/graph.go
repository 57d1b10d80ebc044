package ddg

import (
	"math"

	"github.com/ttasched/ttasched/internal/config"
	"github.com/ttasched/ttasched/internal/ir"
)

// Infinity is the sentinel EarliestCycle returns when a required
// predecessor is unplaced, and LatestCycle returns when no placed successor
// bounds the node (spec.md section 4.1). Neither returns NegInfinity; it is
// the lower sentinel of cycle ranges elsewhere, such as rename's live-range
// bounds.
const (
	Infinity    = math.MaxInt32
	NegInfinity = -1
)

// Graph is a directed multigraph of move-nodes. A Graph built by Subgraph
// shares node and edge identity with its parent: AddEdge/RemoveEdge/DropNode
// called on the subgraph are mirrored onto the parent, matching the
// "subgraph consistency" invariant of spec.md section 4.1.
type Graph struct {
	nodes map[ir.MoveNodeID]*ir.MoveNode
	out   map[ir.MoveNodeID][]*Edge
	in    map[ir.MoveNodeID][]*Edge

	parent *Graph
	edgePool config.Pool[Edge]

	// ii is the initiation interval this graph is being analyzed under; 0
	// means flat (non-loop) scheduling.
	ii int
}

// New creates an empty, parentless graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[ir.MoveNodeID]*ir.MoveNode),
		out:      make(map[ir.MoveNodeID][]*Edge),
		in:       make(map[ir.MoveNodeID][]*Edge),
		edgePool: config.NewPool[Edge](),
	}
}

// SetInitiationInterval records the II this graph is scheduled under. It
// only affects how EarliestCycle/LatestCycle interpret back-edges.
func (g *Graph) SetInitiationInterval(ii int) { g.ii = ii }

// InitiationInterval returns the II passed to SetInitiationInterval.
func (g *Graph) InitiationInterval() int { return g.ii }

// HasNode reports whether id is a member of this graph.
func (g *Graph) HasNode(id ir.MoveNodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the move-node for id, or nil if it isn't in this graph.
func (g *Graph) Node(id ir.MoveNodeID) *ir.MoveNode { return g.nodes[id] }

// Nodes returns every move-node currently in this graph, in no particular
// order.
func (g *Graph) Nodes() []*ir.MoveNode {
	out := make([]*ir.MoveNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// AddNode inserts n into this graph (and, if this is a subgraph, implicitly
// makes it visible to edge queries scoped to the subgraph only — the parent
// already owns n's identity).
func (g *Graph) AddNode(n *ir.MoveNode) {
	g.nodes[n.ID] = n
}

// newEdge allocates an Edge from the arena pool and fills it in.
func (g *Graph) newEdge(from, to ir.MoveNodeID, kind EdgeKind, reg ir.Register, latency int, back bool) *Edge {
	e := g.edgePool.Allocate()
	e.From, e.To, e.Kind, e.Register, e.Latency, e.BackEdge = from, to, kind, reg, latency, back
	return e
}

// AddEdge inserts e into this graph and, if present, the parent graph too,
// preserving the "same *Edge pointer in both graphs" sharing invariant.
func (g *Graph) AddEdge(e *Edge) {
	g.out[e.From] = append(g.out[e.From], e)
	g.in[e.To] = append(g.in[e.To], e)
	if g.parent != nil {
		g.parent.AddEdge(e)
		return
	}
	g.checkInvariants()
}

// AddDependence builds and inserts a new edge, returning it.
func (g *Graph) AddDependence(from, to ir.MoveNodeID, kind EdgeKind, reg ir.Register, latency int, back bool) *Edge {
	e := g.newEdge(from, to, kind, reg, latency, back)
	g.AddEdge(e)
	return e
}

// RemoveEdge deletes e from this graph and, if present, the parent.
func (g *Graph) RemoveEdge(e *Edge) {
	g.out[e.From] = removeEdge(g.out[e.From], e)
	g.in[e.To] = removeEdge(g.in[e.To], e)
	if g.parent != nil {
		g.parent.RemoveEdge(e)
		return
	}
	g.checkInvariants()
}

func removeEdge(es []*Edge, target *Edge) []*Edge {
	for i, e := range es {
		if e == target {
			return append(es[:i], es[i+1:]...)
		}
	}
	return es
}

// OutEdges returns the edges leaving n.
func (g *Graph) OutEdges(n ir.MoveNodeID) []*Edge { return g.out[n] }

// InEdges returns the edges entering n.
func (g *Graph) InEdges(n ir.MoveNodeID) []*Edge { return g.in[n] }

// Subgraph returns a new Graph restricted to bb's move-nodes, sharing node
// and edge identity with g. When includeBackEdges is false, edges marked
// BackEdge are omitted (the flat, non-loop scheduling path); when true,
// they're included (the software-pipelined loop path).
func (g *Graph) Subgraph(bb *ir.BasicBlock, includeBackEdges bool) *Graph {
	sub := &Graph{
		nodes:    make(map[ir.MoveNodeID]*ir.MoveNode, len(bb.Nodes)),
		out:      make(map[ir.MoveNodeID][]*Edge),
		in:       make(map[ir.MoveNodeID][]*Edge),
		parent:   g,
		edgePool: config.NewPool[Edge](),
		ii:       g.ii,
	}
	for _, n := range bb.Nodes {
		if g.HasNode(n.ID) {
			sub.nodes[n.ID] = n
		}
	}
	for id := range sub.nodes {
		for _, e := range g.OutEdges(id) {
			if e.BackEdge && !includeBackEdges {
				continue
			}
			if _, ok := sub.nodes[e.To]; ok {
				sub.out[id] = append(sub.out[id], e)
				sub.in[e.To] = append(sub.in[e.To], e)
			}
		}
	}
	return sub
}
