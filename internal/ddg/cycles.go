package ddg

import "github.com/ttasched/ttasched/internal/ir"

// edgeFilter bundles the ignore-flags shared by EarliestCycle and
// LatestCycle.
type edgeFilter struct {
	ignoreRegWAR   bool
	ignoreRegWAW   bool
	ignoreGuards   bool
}

func (g *Graph) skip(e *Edge, f edgeFilter) bool {
	switch e.Kind {
	case EdgeRegisterWAR:
		return f.ignoreRegWAR
	case EdgeRegisterWAW:
		return f.ignoreRegWAW
	case EdgeGuardRAW:
		return f.ignoreGuards
	default:
		return false
	}
}

// EarliestCycle computes the lower bound on node's cycle implied by its
// currently-scheduled predecessors: max over in-edges e of
// (tail.cycle + latency(e) - (isBackEdge(e) ? ii : 0)). Returns Infinity if
// some required predecessor is unscheduled.
func (g *Graph) EarliestCycle(node *ir.MoveNode, ii int, ignoreRegWAR, ignoreGuards bool) int {
	bound := 0
	f := edgeFilter{ignoreRegWAR: ignoreRegWAR, ignoreGuards: ignoreGuards}
	for _, e := range g.InEdges(node.ID) {
		if g.skip(e, f) {
			continue
		}
		tail := g.Node(e.From)
		if tail == nil || !tail.Placement.Placed {
			return Infinity
		}
		lb := tail.Placement.Cycle + e.Latency
		if e.BackEdge {
			lb -= ii
		}
		if lb > bound {
			bound = lb
		}
	}
	return bound
}

// LatestCycle computes the upper bound on node's cycle implied by its
// currently-scheduled successors, symmetric to EarliestCycle. Returns
// Infinity when no scheduled successor constrains node yet; callers min it
// against their own upper bound before using it as a ceiling.
func (g *Graph) LatestCycle(node *ir.MoveNode, ii int, ignoreRegWAW, ignoreRegWAR, ignoreGuards bool) int {
	bound := Infinity
	f := edgeFilter{ignoreRegWAR: ignoreRegWAR, ignoreRegWAW: ignoreRegWAW, ignoreGuards: ignoreGuards}
	for _, e := range g.OutEdges(node.ID) {
		if g.skip(e, f) {
			continue
		}
		head := g.Node(e.To)
		if head == nil || !head.Placement.Placed {
			continue
		}
		ub := head.Placement.Cycle - e.Latency
		if e.BackEdge {
			ub += ii
		}
		if ub < bound {
			bound = ub
		}
	}
	return bound
}
