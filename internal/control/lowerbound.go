package control

import (
	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

// ResourceLowerBound computes the resource-constrained II lower bound
// (II_res) of spec.md section 8 S4: for each resource class (the bus set as
// a whole, and each function unit individually), the usage count divided by
// that resource's multiplicity, taking the maximum across all classes —
// the original's ResourceConstraintAnalyzer (SPEC_FULL.md section C.3).
func ResourceLowerBound(bb *ir.BasicBlock, mach *machine.Machine) int {
	bound := 0

	if n := len(mach.Buses); n > 0 {
		bound = maxInt(bound, ceilDiv(len(bb.Nodes), n))
	}

	fuCycles := make(map[string]int)
	for _, n := range bb.Nodes {
		if !n.IsTrigger || n.Operation == nil {
			continue
		}
		fu := mach.FU(n.Operation.FU)
		if fu == nil {
			continue
		}
		spec, ok := fu.Operation(n.Operation.OperationName)
		if !ok {
			continue
		}
		pipeline := spec.Pipeline
		if pipeline < 1 {
			pipeline = 1
		}
		fuCycles[fu.Name] += pipeline
	}
	for _, cycles := range fuCycles {
		bound = maxInt(bound, cycles)
	}

	return bound
}

// RecurrenceLowerBound computes the recurrence-constrained II lower bound
// (II_rec) of spec.md section 8 S4: the longest elementary dependence cycle
// closed by a back-edge, measured as the forward-edge longest path from the
// back-edge's head to its tail plus the back-edge's own latency, maximized
// over every back-edge in g. This assumes (as a single-BB loop's DDG
// always does here) that each elementary cycle closes through exactly one
// back-edge, so no division by a per-cycle back-edge count is needed.
func RecurrenceLowerBound(g *ddg.Graph) int {
	bound := 0
	for _, n := range g.Nodes() {
		for _, e := range g.OutEdges(n.ID) {
			if !e.BackEdge {
				continue
			}
			length := e.Latency
			if e.From != e.To {
				// memo entries hold path lengths to one target, so each
				// back-edge gets its own.
				memo := make(map[ir.MoveNodeID]int)
				length += longestForwardPath(g, e.To, e.From, memo, make(map[ir.MoveNodeID]bool))
			}
			bound = maxInt(bound, length)
		}
	}
	return bound
}

// longestForwardPath returns the longest path from `from` to `to` using
// only non-back-edges, or 0 if `to` is unreachable from `from` this way.
// visiting tracks the current recursion stack to guard against a cycle
// slipping through (every genuine cycle in the loop's DDG closes through a
// back-edge, but this is a defensive bound, not an assumed invariant).
func longestForwardPath(g *ddg.Graph, from, to ir.MoveNodeID, memo map[ir.MoveNodeID]int, visiting map[ir.MoveNodeID]bool) int {
	if from == to {
		return 0
	}
	if cached, ok := memo[from]; ok {
		return cached
	}
	if visiting[from] {
		return 0
	}
	visiting[from] = true
	defer delete(visiting, from)

	best := -1
	for _, e := range g.OutEdges(from) {
		if e.BackEdge {
			continue
		}
		if e.To == to {
			if cand := e.Latency; cand > best {
				best = cand
			}
			continue
		}
		sub := longestForwardPath(g, e.To, to, memo, visiting)
		if sub < 0 {
			continue
		}
		if cand := e.Latency + sub; cand > best {
			best = cand
		}
	}
	if best < 0 {
		best = 0
	}
	memo[from] = best
	return best
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
