package control

import (
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

// computeLiveOut runs a standard backward dataflow fixpoint over the whole
// procedure's CFG and returns, for every basic block, the set of registers
// live across its boundary into some successor — the `liveOut` PrePruneDead
// needs (SPEC_FULL.md section C.2's PreOptimizer-style dead-code pre-pass).
// Sink blocks seed their liveOut with whatever inter-pass registers survive
// into the caller (stack/frame pointer, return value), since nothing in the
// procedure itself marks them used.
func (c *Controller) computeLiveOut() map[ir.BasicBlockID]map[ir.Register]bool {
	uses := make(map[ir.BasicBlockID]map[ir.Register]bool, len(c.proc.BasicBlocks))
	defs := make(map[ir.BasicBlockID]map[ir.Register]bool, len(c.proc.BasicBlocks))
	for _, bb := range c.proc.BasicBlocks {
		u, d := upwardExposed(bb)
		uses[bb.ID] = u
		defs[bb.ID] = d
	}

	sinkSeed := make(map[ir.Register]bool)
	for _, r := range c.calleeSurvivingRegisters() {
		sinkSeed[r] = true
	}

	liveIn := make(map[ir.BasicBlockID]map[ir.Register]bool, len(c.proc.BasicBlocks))
	liveOut := make(map[ir.BasicBlockID]map[ir.Register]bool, len(c.proc.BasicBlocks))
	for _, bb := range c.proc.BasicBlocks {
		liveIn[bb.ID] = make(map[ir.Register]bool)
		if bb.IsSink() {
			liveOut[bb.ID] = cloneRegSet(sinkSeed)
		} else {
			liveOut[bb.ID] = make(map[ir.Register]bool)
		}
	}

	changed := true
	for changed {
		changed = false
		for i := len(c.proc.BasicBlocks) - 1; i >= 0; i-- {
			bb := c.proc.BasicBlocks[i]

			newOut := make(map[ir.Register]bool)
			if bb.IsSink() {
				for r := range sinkSeed {
					newOut[r] = true
				}
			}
			for _, s := range bb.Successors {
				for r := range liveIn[s] {
					newOut[r] = true
				}
			}

			newIn := make(map[ir.Register]bool)
			for r := range uses[bb.ID] {
				newIn[r] = true
			}
			for r := range newOut {
				if !defs[bb.ID][r] {
					newIn[r] = true
				}
			}

			if !regSetEqual(newOut, liveOut[bb.ID]) || !regSetEqual(newIn, liveIn[bb.ID]) {
				liveOut[bb.ID] = newOut
				liveIn[bb.ID] = newIn
				changed = true
			}
		}
	}

	return liveOut
}

// calleeSurvivingRegisters lists the registers a sink block must treat as
// live-out even though nothing in the procedure reads them again: the
// stack/frame pointer and return value registers supplied via the
// inter-pass data channel (spec.md section 6), which the caller reads
// after this procedure returns.
func (c *Controller) calleeSurvivingRegisters() []ir.Register {
	if c.ip == nil {
		return nil
	}
	var out []ir.Register
	for _, ref := range []*machine.RegisterRef{c.ip.StackPointer, c.ip.FramePointer, c.ip.ReturnValue, c.ip.ReturnValueHigh} {
		if ref != nil {
			out = append(out, ir.Register{File: ref.File, Index: ref.Index})
		}
	}
	return out
}

// upwardExposed returns bb's upward-exposed register reads (read before any
// local write) and the full set of registers it writes anywhere, the two
// per-block facts a liveness fixpoint needs.
func upwardExposed(bb *ir.BasicBlock) (uses, defs map[ir.Register]bool) {
	uses = make(map[ir.Register]bool)
	defs = make(map[ir.Register]bool)
	definedSoFar := make(map[ir.Register]bool)
	for _, n := range bb.Nodes {
		if n.Move.Source.Kind == ir.TerminalRegister {
			r := n.Move.Source.Reg
			if !definedSoFar[r] {
				uses[r] = true
			}
		}
		if n.Move.Destination.Kind == ir.TerminalRegister {
			r := n.Move.Destination.Reg
			defs[r] = true
			definedSoFar[r] = true
		}
	}
	return uses, defs
}

func cloneRegSet(s map[ir.Register]bool) map[ir.Register]bool {
	out := make(map[ir.Register]bool, len(s))
	for r := range s {
		out[r] = true
	}
	return out
}

func regSetEqual(a, b map[ir.Register]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for r := range a {
		if !b[r] {
			return false
		}
	}
	return true
}
