// Package rename implements the register renamer of spec.md section 4.4: a
// best-effort heuristic that widens a node's candidate registers when its
// fixed source or destination register is the only obstacle to scheduling
// it. Renaming is explicitly allowed to fail silently — callers treat a
// false return as "no improvement available," not an error.
package rename

import (
	"sort"

	"github.com/ttasched/ttasched/internal/connectivity"
	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

// Renamer renames the register read or written by a node's live range,
// scoped to one basic block's scheduling attempt.
type Renamer struct {
	mach *machine.Machine
	g    *ddg.Graph
	bb   *ir.BasicBlock
}

// New builds a Renamer over bb's graph g.
func New(mach *machine.Machine, g *ddg.Graph, bb *ir.BasicBlock) *Renamer {
	return &Renamer{mach: mach, g: g, bb: bb}
}

// Record journals a successful rename so Undo can reverse it exactly,
// matching the "all renaming... is journaled" requirement of spec.md
// section 4.5.
type Record struct {
	OldRegs      map[ir.MoveNodeID]regSide
	AddedEdges   []*ddg.Edge
	RemovedEdges []*ddg.Edge
}

type regSide struct {
	reg      ir.Register
	isSource bool
}

// LiveRange returns the transitive set of move-nodes connected to node by
// register-RAW edges on reg: the defining write, every read of it, and
// (recursively) any further writes/reads chained the same way. This is the
// "live range" the rename operations rewrite as one unit.
func LiveRange(g *ddg.Graph, node *ir.MoveNode, reg ir.Register) []*ir.MoveNode {
	seen := map[ir.MoveNodeID]*ir.MoveNode{node.ID: node}
	queue := []*ir.MoveNode{node}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range g.InEdges(n.ID) {
			if e.Kind != ddg.EdgeRegisterRAW || !e.Register.Equal(reg) {
				continue
			}
			if _, ok := seen[e.From]; ok {
				continue
			}
			tail := g.Node(e.From)
			if tail == nil {
				continue
			}
			seen[e.From] = tail
			queue = append(queue, tail)
		}
		for _, e := range g.OutEdges(n.ID) {
			if e.Kind != ddg.EdgeRegisterRAW || !e.Register.Equal(reg) {
				continue
			}
			if _, ok := seen[e.To]; ok {
				continue
			}
			head := g.Node(e.To)
			if head == nil {
				continue
			}
			seen[e.To] = head
			queue = append(queue, head)
		}
	}
	out := make([]*ir.MoveNode, 0, len(seen))
	for _, n := range seen {
		out = append(out, n)
	}
	return out
}

func liveRangeBounds(lr []*ir.MoveNode) (lo, hi int, anyPlaced bool) {
	lo, hi = ddg.Infinity, ddg.NegInfinity
	for _, n := range lr {
		if !n.Placement.Placed {
			continue
		}
		anyPlaced = true
		if n.Placement.Cycle < lo {
			lo = n.Placement.Cycle
		}
		if n.Placement.Cycle > hi {
			hi = n.Placement.Cycle
		}
	}
	if !anyPlaced {
		lo, hi = ddg.NegInfinity, ddg.Infinity
	}
	return lo, hi, anyPlaced
}

func inSet(lr []*ir.MoveNode, id ir.MoveNodeID) bool {
	for _, n := range lr {
		if n.ID == id {
			return true
		}
	}
	return false
}

// candidates lists every register eligible to replace old: same width
// always; same register file only when allowSameRF; a different file only
// when allowDifferentRF. Registers already referenced elsewhere in the
// block are sorted first (register reuse minimizes pressure, spec.md
// section 4.4 item 3).
func (r *Renamer) candidates(old ir.Register, allowSameRF, allowDifferentRF bool) []ir.Register {
	oldRF := r.mach.RF(old.File)
	if oldRF == nil {
		return nil
	}
	var out []ir.Register
	for _, rf := range r.mach.RegisterFiles {
		if rf.Scratch {
			continue
		}
		if rf.Name == old.File {
			if !allowSameRF {
				continue
			}
		} else {
			if !allowDifferentRF || rf.Width != oldRF.Width {
				continue
			}
		}
		for i := 0; i < rf.Size; i++ {
			cand := ir.Register{File: rf.Name, Index: i}
			if cand.Equal(old) {
				continue
			}
			out = append(out, cand)
		}
	}
	reused := make(map[ir.Register]bool)
	for _, n := range r.bb.Nodes {
		if n.Move.Source.Kind == ir.TerminalRegister {
			reused[n.Move.Source.Reg] = true
		}
		if n.Move.Destination.Kind == ir.TerminalRegister {
			reused[n.Move.Destination.Reg] = true
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := reused[out[i]], reused[out[j]]
		if ri != rj {
			return ri
		}
		return false
	})
	return out
}

// free reports whether cand is usable for liveRange: no other move in the
// block touches cand at all, or every other move that does is placed
// strictly outside the live range's cycle span (spec.md section 4.4 item
// 2: "free across the whole live range, or only read before it / only
// written after it"). If some other toucher of cand is itself unplaced we
// can't prove disjointness yet, so conservatively reject it.
func (r *Renamer) free(cand ir.Register, liveRange []*ir.MoveNode) bool {
	lo, hi, _ := liveRangeBounds(liveRange)
	for _, n := range r.bb.Nodes {
		if inSet(liveRange, n.ID) {
			continue
		}
		touches := (n.Move.Source.Kind == ir.TerminalRegister && n.Move.Source.Reg.Equal(cand)) ||
			(n.Move.Destination.Kind == ir.TerminalRegister && n.Move.Destination.Reg.Equal(cand))
		if !touches {
			continue
		}
		if !n.Placement.Placed {
			return false
		}
		if n.Placement.Cycle >= lo && n.Placement.Cycle <= hi {
			return false
		}
	}
	return true
}

// renameTo rewrites every node of liveRange that references old to
// reference newReg instead, and re-splices anti-dependence edges: any
// WAR/WAW edge that encoded old's exclusivity is dropped, and new ones are
// added against whatever else (already placed, by construction of free)
// uses newReg in the block.
func (r *Renamer) renameTo(old, newReg ir.Register, liveRange []*ir.MoveNode) *Record {
	rec := &Record{OldRegs: make(map[ir.MoveNodeID]regSide)}

	for _, n := range liveRange {
		if n.Move.Source.Kind == ir.TerminalRegister && n.Move.Source.Reg.Equal(old) {
			rec.OldRegs[n.ID] = regSide{reg: old, isSource: true}
			n.Move.Source.Reg = newReg
		}
		if n.Move.Destination.Kind == ir.TerminalRegister && n.Move.Destination.Reg.Equal(old) {
			rec.OldRegs[n.ID] = regSide{reg: old, isSource: false}
			n.Move.Destination.Reg = newReg
		}
	}

	for _, n := range liveRange {
		for _, e := range append([]*ddg.Edge(nil), r.g.OutEdges(n.ID)...) {
			if (e.Kind == ddg.EdgeRegisterWAR || e.Kind == ddg.EdgeRegisterWAW) && e.Register.Equal(old) && !inSet(liveRange, e.To) {
				r.g.RemoveEdge(e)
				rec.RemovedEdges = append(rec.RemovedEdges, e)
			}
		}
		for _, e := range append([]*ddg.Edge(nil), r.g.InEdges(n.ID)...) {
			if (e.Kind == ddg.EdgeRegisterWAR || e.Kind == ddg.EdgeRegisterWAW) && e.Register.Equal(old) && !inSet(liveRange, e.From) {
				r.g.RemoveEdge(e)
				rec.RemovedEdges = append(rec.RemovedEdges, e)
			}
		}
	}

	lo, hi, _ := liveRangeBounds(liveRange)
	var before, after []*ir.MoveNode
	for _, n := range r.bb.Nodes {
		if inSet(liveRange, n.ID) || !n.Placement.Placed {
			continue
		}
		touchesNew := (n.Move.Source.Kind == ir.TerminalRegister && n.Move.Source.Reg.Equal(newReg)) ||
			(n.Move.Destination.Kind == ir.TerminalRegister && n.Move.Destination.Reg.Equal(newReg))
		if !touchesNew {
			continue
		}
		if n.Placement.Cycle < lo {
			before = append(before, n)
		} else if n.Placement.Cycle > hi {
			after = append(after, n)
		}
	}
	first, last := liveRangeEndpoints(liveRange)
	for _, n := range before {
		if n.Move.Destination.Kind == ir.TerminalRegister && n.Move.Destination.Reg.Equal(newReg) {
			rec.AddedEdges = append(rec.AddedEdges, r.g.AddDependence(n.ID, first.ID, ddg.EdgeRegisterWAW, newReg, ddg.RegisterEdgeLatency, false))
		}
		if n.Move.Source.Kind == ir.TerminalRegister && n.Move.Source.Reg.Equal(newReg) {
			rec.AddedEdges = append(rec.AddedEdges, r.g.AddDependence(n.ID, first.ID, ddg.EdgeRegisterWAR, newReg, 0, false))
		}
	}
	for _, n := range after {
		if n.Move.Destination.Kind == ir.TerminalRegister && n.Move.Destination.Reg.Equal(newReg) {
			rec.AddedEdges = append(rec.AddedEdges, r.g.AddDependence(last.ID, n.ID, ddg.EdgeRegisterWAR, newReg, 0, false))
		}
	}

	return rec
}

// liveRangeEndpoints picks a representative earliest/latest node of the
// live range to anchor newly-added anti-edges against, preferring placed
// cycle order and falling back to the passed-in node otherwise.
func liveRangeEndpoints(lr []*ir.MoveNode) (first, last *ir.MoveNode) {
	first, last = lr[0], lr[0]
	for _, n := range lr {
		if !n.Placement.Placed {
			continue
		}
		if !first.Placement.Placed || n.Placement.Cycle < first.Placement.Cycle {
			first = n
		}
		if !last.Placement.Placed || n.Placement.Cycle > last.Placement.Cycle {
			last = n
		}
	}
	return first, last
}

// RenameSourceRegister attempts to replace node's source register with one
// that leaves it (and its live range) still schedulable, taking the first
// free candidate in candidates' order. directConnectOnly restricts
// candidates to those with a bus straight to node's destination (no
// copy-chain needed); without it, connectivity does not affect the choice.
func (r *Renamer) RenameSourceRegister(node *ir.MoveNode, allowSameRF, allowDifferentRF, directConnectOnly bool) (*Record, bool) {
	if node.Move.Source.Kind != ir.TerminalRegister {
		return nil, false
	}
	old := node.Move.Source.Reg
	lr := LiveRange(r.g, node, old)

	for _, cand := range r.candidates(old, allowSameRF, allowDifferentRF) {
		if !r.free(cand, lr) {
			continue
		}
		trial := node.Move
		trial.Source.Reg = cand
		if ok, _ := connectivity.CanTransportMove(r.mach, trial); !ok {
			if directConnectOnly {
				continue
			}
		}
		return r.renameTo(old, cand, lr), true
	}
	return nil, false
}

// RenameDestinationRegister is RenameSourceRegister's mirror for node's
// destination register.
func (r *Renamer) RenameDestinationRegister(node *ir.MoveNode, allowSameRF, allowDifferentRF, directConnectOnly bool) (*Record, bool) {
	if node.Move.Destination.Kind != ir.TerminalRegister {
		return nil, false
	}
	old := node.Move.Destination.Reg
	lr := LiveRange(r.g, node, old)

	for _, cand := range r.candidates(old, allowSameRF, allowDifferentRF) {
		if !r.free(cand, lr) {
			continue
		}
		trial := node.Move
		trial.Destination.Reg = cand
		if ok, _ := connectivity.CanTransportMove(r.mach, trial); !ok {
			if directConnectOnly {
				continue
			}
		}
		return r.renameTo(old, cand, lr), true
	}
	return nil, false
}

// Undo reverses a successful rename exactly: restores every rewritten
// terminal's original register and removes/re-adds the anti-edges renameTo
// spliced, in the opposite order it spliced them.
func (r *Renamer) Undo(g *ddg.Graph, rec *Record) {
	for _, e := range rec.AddedEdges {
		g.RemoveEdge(e)
	}
	for _, e := range rec.RemovedEdges {
		g.AddEdge(e)
	}
	for id, side := range rec.OldRegs {
		n := g.Node(id)
		if n == nil {
			continue
		}
		if side.isSource {
			n.Move.Source.Reg = side.reg
		} else {
			n.Move.Destination.Reg = side.reg
		}
	}
}
