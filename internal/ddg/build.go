package ddg

import (
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

// RegisterEdgeLatency is the latency of a register RAW/WAW edge: a write is
// readable one cycle after it's issued. The connectivity package reuses
// this constant when splicing register-copy chains, since each hop is an
// ordinary register move subject to the same latency.
const RegisterEdgeLatency = 1

const registerEdgeLatency = RegisterEdgeLatency

// BuildBlock constructs the DDG for a single basic block by scanning its
// moves in program order and tracking per-register last-writer/last-readers
// (register RAW/WAR/WAW), per-FU intra-operation edges (operand -> trigger,
// trigger -> result), guard edges, and conservative in-program-order memory
// edges (no alias analysis is performed). When includeBackEdges is true and bb is a known-trip-count
// single-BB loop, a closing back-edge is added from each register's final
// writer in iteration i to the consumers that, in iteration i+1, read the
// same register before it is rewritten (approximated here as: the first
// read of the register in program order, mirroring the "carries across the
// iteration boundary" loop body self-dependence used for software
// pipelining).
func BuildBlock(bb *ir.BasicBlock, mach *machine.Machine, includeBackEdges bool) *Graph {
	g := New()
	for _, n := range bb.Nodes {
		g.AddNode(n)
	}

	lastWriter := make(map[ir.Register]*ir.MoveNode)
	firstReader := make(map[ir.Register]*ir.MoveNode)
	lastReaders := make(map[ir.Register][]*ir.MoveNode)
	var lastMemWrite *ir.MoveNode
	var lastMemReads []*ir.MoveNode

	for _, n := range bb.Nodes {
		mv := n.Move

		if mv.Source.Kind == ir.TerminalRegister {
			r := mv.Source.Reg
			if w, ok := lastWriter[r]; ok {
				g.AddDependence(w.ID, n.ID, EdgeRegisterRAW, r, registerEdgeLatency, false)
			}
			if _, ok := firstReader[r]; !ok {
				firstReader[r] = n
			}
			lastReaders[r] = append(lastReaders[r], n)
		}

		if mv.Guard != nil {
			gr := mv.Guard.Reg
			if w, ok := lastWriter[gr]; ok {
				lat := mv.Guard.Latency
				if ml, ok := mach.GuardLatency(machine.RegisterRef{File: gr.File, Index: gr.Index}); ok {
					lat = ml
				}
				g.AddDependence(w.ID, n.ID, EdgeGuardRAW, gr, lat, false)
			}
		}

		if n.Operation != nil {
			switch n.Operation.MemoryAccess {
			case ir.MemoryAccessLoad:
				if lastMemWrite != nil {
					g.AddDependence(lastMemWrite.ID, n.ID, EdgeMemoryRAW, ir.Register{}, 1, false)
				}
				lastMemReads = append(lastMemReads, n)
			case ir.MemoryAccessStore:
				for _, rd := range lastMemReads {
					g.AddDependence(rd.ID, n.ID, EdgeMemoryWAR, ir.Register{}, 0, false)
				}
				if lastMemWrite != nil {
					g.AddDependence(lastMemWrite.ID, n.ID, EdgeMemoryWAW, ir.Register{}, 1, false)
				}
				lastMemWrite = n
				lastMemReads = nil
			}
		}

		if mv.Destination.Kind == ir.TerminalRegister {
			r := mv.Destination.Reg
			for _, rd := range lastReaders[r] {
				if rd.ID != n.ID {
					g.AddDependence(rd.ID, n.ID, EdgeRegisterWAR, r, 0, false)
				}
			}
			if w, ok := lastWriter[r]; ok {
				g.AddDependence(w.ID, n.ID, EdgeRegisterWAW, r, registerEdgeLatency, false)
			}
			lastWriter[r] = n
			lastReaders[r] = nil
		}
	}

	buildOperationEdges(g, bb, mach)

	if includeBackEdges && bb.IsSingleBBLoop() {
		for r, w := range lastWriter {
			if fr, ok := firstReader[r]; ok && fr.ID != w.ID {
				g.AddDependence(w.ID, fr.ID, EdgeRegisterRAW, r, registerEdgeLatency, true)
			}
		}
	}

	return g
}

func buildOperationEdges(g *Graph, bb *ir.BasicBlock, mach *machine.Machine) {
	for _, op := range bb.Operations {
		trigger := op.Trigger()
		var spec *machine.OperationSpec
		if fu := mach.FU(op.FU); fu != nil {
			spec, _ = fu.Operation(op.OperationName)
		}
		for i, opd := range op.Operands {
			if opd == nil || i == op.TriggerIndex || trigger == nil {
				continue
			}
			g.AddDependence(opd.ID, trigger.ID, EdgeOperation, ir.Register{}, 0, false)
		}
		if trigger == nil {
			continue
		}
		for i, res := range op.Results {
			if res == nil {
				continue
			}
			lat := 1
			if spec != nil {
				if l, ok := spec.ResultLatency[i]; ok {
					lat = l
				}
			}
			g.AddDependence(trigger.ID, res.ID, EdgeOperation, ir.Register{}, lat, false)
		}
	}
}

// PrePruneDead drops every move whose register destination is neither read
// again within the block nor live across the block's boundary (per
// liveOut), before the bottom-up scheduler runs at all. Moves that belong
// to a program operation are kept even when their destination is dead.
// This mirrors the
// original TCE compiler's PreOptimizer dead-code pre-pass (see
// SPEC_FULL.md section C.2); it is distinct from bypass's dead-result
// elimination, which only fires after a producer's sole use has been
// bypassed away during scheduling.
func (g *Graph) PrePruneDead(bb *ir.BasicBlock, liveOut map[ir.Register]bool) {
	for _, n := range append([]*ir.MoveNode(nil), bb.Nodes...) {
		if n.Move.Destination.Kind != ir.TerminalRegister {
			continue
		}
		if liveOut[n.Move.Destination.Reg] {
			continue
		}
		hasRAWSuccessor := false
		for _, e := range g.OutEdges(n.ID) {
			if e.Kind == EdgeRegisterRAW {
				hasRAWSuccessor = true
				break
			}
		}
		if hasRAWSuccessor || n.Operation != nil {
			continue
		}
		g.CopyDepsOver(n)
		g.DropNode(n)
		bb.RemoveNode(n)
	}
}
