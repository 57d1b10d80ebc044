package ddg

import "github.com/ttasched/ttasched/internal/ir"

// compatible reports whether two edge kinds may be combined by
// CopyDepsOver into a single transitive edge: both register-dependence
// kinds, both memory-dependence kinds, or identically the same kind.
func compatible(a, b EdgeKind) bool {
	if a == b {
		return true
	}
	return (a.IsRegister() && b.IsRegister()) || (a.IsMemory() && b.IsMemory())
}

// CopyDepsOver preserves transitive ordering through node before it is
// removed: for every predecessor edge (pred -> node) and successor edge
// (node -> succ) with compatible kinds, it adds a (pred -> succ) edge with
// summed latency, unless that edge would be redundant with one already
// present. Callers must call this before DropNode (spec.md section 4.1).
func (g *Graph) CopyDepsOver(node *ir.MoveNode) {
	preds := g.InEdges(node.ID)
	succs := g.OutEdges(node.ID)
	for _, pe := range preds {
		if pe.From == node.ID {
			continue // no self-loops except back-edges, which never touch a dropped node's own identity here
		}
		for _, se := range succs {
			if se.To == node.ID || se.To == pe.From {
				continue
			}
			if !compatible(pe.Kind, se.Kind) {
				continue
			}
			if g.hasEdge(pe.From, se.To, se.Kind) {
				continue
			}
			reg := se.Register
			if !reg.Valid() {
				reg = pe.Register
			}
			g.AddDependence(pe.From, se.To, se.Kind, reg, pe.Latency+se.Latency, pe.BackEdge || se.BackEdge)
		}
	}
}

func (g *Graph) hasEdge(from, to ir.MoveNodeID, kind EdgeKind) bool {
	for _, e := range g.out[from] {
		if e.To == to && e.Kind == kind {
			return true
		}
	}
	return false
}

// DropNode removes node from the graph: every edge incident on it is
// deleted and node itself is forgotten. Callers must have already called
// CopyDepsOver(node) to preserve transitive ordering.
func (g *Graph) DropNode(node *ir.MoveNode) {
	for _, e := range append([]*Edge(nil), g.InEdges(node.ID)...) {
		g.RemoveEdge(e)
	}
	for _, e := range append([]*Edge(nil), g.OutEdges(node.ID)...) {
		g.RemoveEdge(e)
	}
	delete(g.nodes, node.ID)
	delete(g.out, node.ID)
	delete(g.in, node.ID)
}

// OnlyRegisterRawSource returns the single register-RAW predecessor of
// node, if it has exactly one; used by bypass to find the producer to
// merge from (spec.md section 4.1).
func (g *Graph) OnlyRegisterRawSource(node *ir.MoveNode) (*ir.MoveNode, bool) {
	var found *ir.MoveNode
	for _, e := range g.InEdges(node.ID) {
		if e.Kind != EdgeRegisterRAW {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = g.Node(e.From)
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

// OnlyRegisterRawDestinations returns the single register-RAW successor of
// node, if it has exactly one.
func (g *Graph) OnlyRegisterRawDestinations(node *ir.MoveNode) (*ir.MoveNode, bool) {
	var found *ir.MoveNode
	for _, e := range g.OutEdges(node.ID) {
		if e.Kind != EdgeRegisterRAW {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = g.Node(e.To)
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

// MoveFUDependenciesToTrigger re-attaches every FU-pipeline dependence edge
// of trigger's operation onto trigger itself (spec.md section 4.1).
// buildOperationEdges wires operand -> trigger and trigger -> result edges
// using the trigger index known at DDG construction time, but
// maybeSwapTrigger's commutative-operand swap can change which operand is
// the trigger after the graph has already been built, leaving the old
// edges anchored to the operand that is no longer the trigger. This walks
// trigger's operation and corrects every such edge, preserving its latency
// and back-edge flag. Callers must invoke it once the final trigger is
// known, before the trigger or any other operand is scheduled, since their
// latest-cycle bounds are read from these edges. The bottom-up scheduler
// places the results first and calls it right after the commutative swap.
func (g *Graph) MoveFUDependenciesToTrigger(trigger *ir.MoveNode) {
	op := trigger.Operation
	if op == nil || !trigger.IsTrigger {
		return
	}
	for i, opd := range op.Operands {
		if opd == nil || i == op.TriggerIndex {
			continue
		}
		g.rehomeOperand(opd, trigger)
	}
	for _, res := range op.Results {
		if res != nil {
			g.rehomeResult(trigger, res)
		}
	}
}

// rehomeOperand makes opd -> trigger the only EdgeOperation edge between the
// two, replacing a stale trigger -> opd edge left by a trigger swap (opd
// used to be the trigger itself) and adding the edge outright if the pair
// never had one.
func (g *Graph) rehomeOperand(opd, trigger *ir.MoveNode) {
	for _, e := range append([]*Edge(nil), g.OutEdges(trigger.ID)...) {
		if e.Kind == EdgeOperation && e.To == opd.ID {
			g.RemoveEdge(e)
			g.addOperationEdgeIfMissing(opd, trigger, e.Latency, e.BackEdge)
			return
		}
	}
	g.addOperationEdgeIfMissing(opd, trigger, 0, false)
}

// rehomeResult makes trigger -> res the only EdgeOperation edge between the
// two, replacing a stale edge still anchored to the operand that used to be
// the trigger.
func (g *Graph) rehomeResult(trigger, res *ir.MoveNode) {
	for _, e := range append([]*Edge(nil), g.InEdges(res.ID)...) {
		if e.Kind == EdgeOperation && e.From != trigger.ID {
			g.RemoveEdge(e)
			g.addOperationEdgeIfMissing(trigger, res, e.Latency, e.BackEdge)
			return
		}
	}
	g.addOperationEdgeIfMissing(trigger, res, 1, false)
}

func (g *Graph) addOperationEdgeIfMissing(from, to *ir.MoveNode, latency int, back bool) {
	if g.hasEdge(from.ID, to.ID, EdgeOperation) {
		return
	}
	g.AddDependence(from.ID, to.ID, EdgeOperation, ir.Register{}, latency, back)
}
