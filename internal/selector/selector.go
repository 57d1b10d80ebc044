// Package selector implements the ready-set priority queue the bottom-up
// basic-block scheduler consults (spec.md section 4.5): which move-node
// groups can be scheduled next, ordered by longest-path-to-sink, with lazy
// caching invalidated by DDG edits (spec.md section 9, "Selector
// priority").
package selector

import (
	"sort"

	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/ir"
)

// Group is a unit of scheduling work: either every move of one program
// operation (Operation non-nil), or a single plain move (Operation nil,
// e.g. a temp copy or a bare register move with no FU involvement).
type Group struct {
	Operation *ir.ProgramOperation
	Nodes     []*ir.MoveNode
}

// Selector tracks readiness and priority over one basic block's graph. It
// is scoped to a single scheduling attempt: construct a fresh one whenever
// the underlying BB/graph changes basic-block identity.
type Selector struct {
	g  *ddg.Graph
	bb *ir.BasicBlock

	priority map[ir.MoveNodeID]int
}

// New builds a Selector over bb's graph g.
func New(g *ddg.Graph, bb *ir.BasicBlock) *Selector {
	return &Selector{g: g, bb: bb, priority: make(map[ir.MoveNodeID]int)}
}

// Invalidate drops the cached priority values. Call after any DDG edit
// that can change longest-path-to-sink distances: CopyDepsOver+DropNode,
// Merge/Unmerge, or connectivity chain splicing/undo.
func (s *Selector) Invalidate() {
	s.priority = make(map[ir.MoveNodeID]int)
}

// priorityOf returns node's longest path to a sink (a node with no
// out-edges), measured in summed edge latency, computing and memoizing it
// on first use.
func (s *Selector) priorityOf(id ir.MoveNodeID) int {
	if p, ok := s.priority[id]; ok {
		return p
	}
	s.priority[id] = 0 // break cycles through back-edges conservatively
	best := 0
	for _, e := range s.g.OutEdges(id) {
		if e.BackEdge {
			continue
		}
		if cand := e.Latency + s.priorityOf(e.To); cand > best {
			best = cand
		}
	}
	s.priority[id] = best
	return best
}

// groupKey identifies the group a node belongs to: its operation's ID, or
// its own node ID (as a negative-offset sentinel) when it has none.
func groupKey(n *ir.MoveNode) ir.OperationID {
	if n.Operation != nil {
		return n.Operation.ID
	}
	return ir.OperationID(-1 - int(n.ID))
}

func (s *Selector) groups() map[ir.OperationID][]*ir.MoveNode {
	out := make(map[ir.OperationID][]*ir.MoveNode)
	for _, n := range s.bb.Nodes {
		if n.Placement.Placed || n.Dead() {
			continue
		}
		k := groupKey(n)
		out[k] = append(out[k], n)
	}
	return out
}

// ready reports whether every external successor of every node in group
// (a successor not itself a member of group) is already placed. Internal
// edges between a group's own nodes (operand -> trigger -> result) are the
// per-operation state machine's concern, not the selector's.
func (s *Selector) ready(nodes []*ir.MoveNode) bool {
	member := make(map[ir.MoveNodeID]bool, len(nodes))
	for _, n := range nodes {
		member[n.ID] = true
	}
	for _, n := range nodes {
		for _, e := range s.g.OutEdges(n.ID) {
			if member[e.To] {
				continue
			}
			head := s.g.Node(e.To)
			if head == nil || !head.Placement.Placed {
				return false
			}
		}
	}
	return true
}

// Candidates returns every ready group, ordered by descending priority
// (longest path to sink first), then by ascending node ID for a stable
// tie-break.
func (s *Selector) Candidates() []*Group {
	var out []*Group
	for _, nodes := range s.groups() {
		if !s.ready(nodes) {
			continue
		}
		var op *ir.ProgramOperation
		if nodes[0].Operation != nil {
			op = nodes[0].Operation
		}
		out = append(out, &Group{Operation: op, Nodes: nodes})
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := s.groupPriority(out[i]), s.groupPriority(out[j])
		if pi != pj {
			return pi > pj
		}
		return out[i].Nodes[0].ID < out[j].Nodes[0].ID
	})
	return out
}

func (s *Selector) groupPriority(g *Group) int {
	best := 0
	for _, n := range g.Nodes {
		if p := s.priorityOf(n.ID); p > best {
			best = p
		}
	}
	return best
}

// NotifyScheduled tells the selector that node has just been placed. The
// selector itself holds no ready-set cache beyond priority (readiness is
// recomputed from Placement state on every Candidates call), so this only
// exists as the documented hook spec.md section 4.5 names; callers that
// maintain their own incremental ready-set can treat it as a no-op-safe
// sync point.
func (s *Selector) NotifyScheduled(node *ir.MoveNode) {}

// MightBeReady is a heuristic hint that node's readiness may have changed
// (e.g. after a DDG edit that touched one of its edges). Since Candidates
// recomputes readiness from scratch, the only actionable work here is
// dropping node's own stale cached priority so it's recomputed against the
// graph's current edge set.
func (s *Selector) MightBeReady(node *ir.MoveNode) {
	delete(s.priority, node.ID)
}
