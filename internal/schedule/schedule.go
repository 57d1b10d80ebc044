// Package schedule implements the basic-block schedulers of spec.md
// section 4.5: the shared Scheduler contract and the bottom-up, top-down
// and bubble-fish variants, each consuming a DDG, a resource manager and a
// machine description to produce a placement (and reporting makespan, or
// an error when the block can't be scheduled at all).
package schedule

import (
	"github.com/sirupsen/logrus"

	"github.com/ttasched/ttasched/internal/connectivity"
	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/interpass"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
	"github.com/ttasched/ttasched/internal/rename"
	"github.com/ttasched/ttasched/internal/resource"
	"github.com/ttasched/ttasched/internal/selector"
	"github.com/ttasched/ttasched/internal/xerrors"
)

// Options tunes one scheduling attempt over a single basic block.
type Options struct {
	// EndCycle is the last cycle a flat block's schedule may use; for a
	// software-pipelined loop body the controller instead passes
	// 2*II-1 (spec.md section 4.5).
	EndCycle int
	// DelaySlots is the block's control-unit delay-slot count; a
	// control-flow move must be placed at or before EndCycle-DelaySlots.
	DelaySlots int
	// BypassDistance bounds how many register-RAW producer hops
	// software bypass may merge through in one scheduleMove call; 0
	// disables bypass entirely (spec.md section 6's `bypassDistance`
	// control option).
	BypassDistance int
	// RenameEnabled turns on the register renamer as a connectivity
	// fallback, tried before resorting to a temp-copy chain.
	RenameEnabled bool
	// TempCopiesAllowed permits inserting a register-copy chain when
	// neither direct connectivity nor renaming resolves a move.
	TempCopiesAllowed bool
	// KeepDeadResults disables dead-result elimination (spec.md section 6):
	// when true, a bypassed producer with no remaining consumer is still
	// scheduled as ordinary dead code rather than marked Dead() and dropped
	// at finalize. Default false leaves elimination on; the controller sets
	// this to the negation of its DeadResultElimination option.
	KeepDeadResults bool
}

// Scheduler is the shared contract of spec.md section 9 ("Polymorphism"):
// one entry point, three implementations (top-down, bottom-up, bubble-
// fish) selected by the controller's configuration. testOnly runs the
// attempt and then rolls every placement back, for II feasibility probing.
type Scheduler interface {
	Schedule(g *ddg.Graph, rm *resource.Manager, mach *machine.Machine, testOnly bool) (int, error)
}

// attempt holds the mutable state of one scheduling pass over one basic
// block: the DDG/RM/machine being scheduled against, and the selector/
// adder/renamer helpers scoped to this attempt.
type attempt struct {
	proc *ir.Procedure
	bb   *ir.BasicBlock
	ip   *interpass.Data
	opts Options

	g    *ddg.Graph
	rm   *resource.Manager
	mach *machine.Machine

	sel   *selector.Selector
	adder *connectivity.Adder
	ren   *rename.Renamer

	log *logrus.Entry
}

func newAttempt(proc *ir.Procedure, bb *ir.BasicBlock, ip *interpass.Data, opts Options, g *ddg.Graph, rm *resource.Manager, mach *machine.Machine) *attempt {
	return &attempt{
		proc: proc, bb: bb, ip: ip, opts: opts,
		g: g, rm: rm, mach: mach,
		sel:   selector.New(g, bb),
		adder: connectivity.NewAdder(mach, ip),
		ren:   rename.New(mach, g, bb),
		log:   logrus.WithField("block", bb.Name),
	}
}

// finalize drops every node bypass marked as a dead-result candidate. The
// selector is notified of placements in the scheduling loop, not here.
func (a *attempt) finalize() {
	for _, n := range append([]*ir.MoveNode(nil), a.bb.Nodes...) {
		if !n.Dead() {
			continue
		}
		a.g.CopyDepsOver(n)
		a.g.DropNode(n)
		a.bb.RemoveNode(n)
	}
}

// makespan reports the attempt's schedule length: the number of cycles
// spanned by every placement the RM currently holds, or 0 if nothing was
// placed.
func (a *attempt) makespan() int {
	lo, hi := a.rm.SmallestCycle(), a.rm.LargestCycle()
	if lo == -1 || hi == -1 {
		return 0
	}
	return hi - lo + 1
}

// endCycleCap returns the effective upper bound a move may never exceed,
// accounting for the control-flow/delay-slot rule of spec.md section 4.5
// item 3 ("scheduling a single move, step 3").
func (a *attempt) endCycleCap(node *ir.MoveNode) int {
	if node.Move.IsControlFlow() {
		return a.opts.EndCycle - a.opts.DelaySlots
	}
	return a.opts.EndCycle
}

// scheduleMove places a single move-node at the latest feasible cycle at
// or before upperBound (spec.md section 4.5, "Scheduling a single move").
// When allowBypass is set it first tries to bypass node's register source
// straight from its producer's own source (spec.md section 4.5's
// "bypassNode"), then resolves any remaining missing connectivity (rename,
// then temp-copy chain, in that preference order). Of a newly-inserted
// chain it places only the hop resolveConnectivity returns; the other hops
// stay unplaced in the block for the selector to offer later. It returns
// whether placement succeeded, the node actually placed (a chain hop when
// a temp-copy chain replaced node; a bypass merge rewrites node in place),
// and an undo list the caller must run, in order, on failure of anything
// built on top of this move.
func (a *attempt) scheduleMove(node *ir.MoveNode, upperBound int, allowTempCopies, allowBypass bool) (ok bool, placed *ir.MoveNode, undo []func()) {
	if allowBypass && a.opts.BypassDistance > 0 {
		if bypassUndo, did := a.tryBypass(node, a.opts.BypassDistance); did {
			undo = append(undo, bypassUndo...)
		}
	}

	ok, resolved, connUndo := a.resolveConnectivity(node, allowTempCopies)
	undo = append(undo, connUndo...)
	if !ok {
		a.undoAll(undo)
		return false, nil, nil
	}
	node = resolved

	latest := upperBound
	if l := a.g.LatestCycle(node, a.rm.InitiationInterval(), false, false, false); l < latest {
		latest = l
	}
	if cap := a.endCycleCap(node); cap < latest {
		latest = cap
	}

	cyc := a.rm.LatestCycle(latest, node)
	if cyc == resource.NegInfinity {
		a.undoAll(undo)
		return false, node, nil
	}
	if !a.rm.Assign(cyc, node) {
		a.undoAll(undo)
		return false, node, nil
	}
	node.Placement.Place(cyc)
	n := node
	undo = append(undo, func() {
		a.rm.Unassign(n)
		n.Placement.Unplace()
	})

	if node.IsTrigger {
		if fu, spec := a.operationSpec(node); fu != nil && spec != nil {
			pipelineEnd := cyc + maxInt(spec.Pipeline, 1) - 1
			if pipelineEnd > a.opts.EndCycle {
				a.undoAll(undo)
				return false, node, nil
			}
		}
	}

	return true, node, undo
}

// tryBypass implements spec.md section 4.5's bypassNode: while node reads a
// register with exactly one register-RAW producer p, and hops remain in the
// budget, it merges p into node (node now reads directly from whatever p
// read), marking p a dead-result candidate once it has no remaining
// register-RAW consumer other than node; it stops as soon as the merged
// source is directly transportable to node's destination, or the hop budget
// or producer chain runs out. It reports the undo closures (to reverse, in
// order, on failure) and whether any hop was taken at all.
func (a *attempt) tryBypass(node *ir.MoveNode, maxHops int) ([]func(), bool) {
	var undo []func()
	hops := 0
	for hops < maxHops {
		if node.Move.Source.Kind != ir.TerminalRegister {
			break
		}
		producer, ok := a.g.OnlyRegisterRawSource(node)
		if !ok || producer.Dead() {
			break
		}

		rec, err := a.g.Merge(producer, node)
		if err != nil {
			break
		}
		undo = append(undo, func() { a.g.Unmerge(rec) })
		hops++

		// producer has no other consumer exactly when node is its sole
		// register-RAW destination (spec.md section 4.1's
		// OnlyRegisterRawDestinations).
		otherConsumer := true
		if only, ok := a.g.OnlyRegisterRawDestinations(producer); ok && only.ID == node.ID {
			otherConsumer = false
		}
		if !otherConsumer && !a.opts.KeepDeadResults {
			producer.MarkDead()
			undo = append(undo, func() { producer.UnmarkDead() })
		}

		if ok, _ := connectivity.CanTransportMove(a.mach, node.Move); ok {
			break
		}
	}
	if hops == 0 {
		return nil, false
	}
	return undo, true
}

func (a *attempt) operationSpec(node *ir.MoveNode) (*machine.FunctionUnit, *machine.OperationSpec) {
	if node.Operation == nil {
		return nil, nil
	}
	fu := a.mach.FU(node.Operation.FU)
	if fu == nil {
		return nil, nil
	}
	spec, _ := fu.Operation(node.Operation.OperationName)
	return fu, spec
}

// resolveConnectivity ensures node's move is transportable, preferring (in
// order) doing nothing, renaming, then splicing a temp-copy chain, and
// returns whichever node now carries the (possibly rewritten) move that
// the caller should continue scheduling — the original node, or the last
// hop of a spliced chain when node was an operand/trigger move, or the
// first hop when it was a result move (spec.md section 4.5 item 1).
func (a *attempt) resolveConnectivity(node *ir.MoveNode, allowTempCopies bool) (bool, *ir.MoveNode, []func()) {
	if ok, _ := connectivity.CanTransportMove(a.mach, node.Move); ok {
		return true, node, nil
	}

	if a.opts.RenameEnabled {
		if node.Move.Source.Kind == ir.TerminalRegister {
			if rec, ok := a.ren.RenameSourceRegister(node, true, true, true); ok {
				if ok2, _ := connectivity.CanTransportMove(a.mach, node.Move); ok2 {
					return true, node, []func(){func() { a.ren.Undo(a.g, rec) }}
				}
				a.ren.Undo(a.g, rec)
			}
		}
		if node.Move.Destination.Kind == ir.TerminalRegister {
			if rec, ok := a.ren.RenameDestinationRegister(node, true, true, true); ok {
				if ok2, _ := connectivity.CanTransportMove(a.mach, node.Move); ok2 {
					return true, node, []func(){func() { a.ren.Undo(a.g, rec) }}
				}
				a.ren.Undo(a.g, rec)
			}
		}
	}

	if !allowTempCopies || !a.opts.TempCopiesAllowed {
		return false, nil, nil
	}

	files, ok := a.adder.FindChain(node.Move.Source, node.Move.Destination)
	if !ok {
		return false, nil, nil
	}
	rec, err := a.adder.SpliceChain(a.proc, a.g, a.bb, node, files)
	if err != nil {
		return false, nil, nil
	}
	undo := []func(){func() { a.adder.UndoChain(a.proc, a.g, a.bb, rec) }}

	var anchor *ir.MoveNode
	if node.Move.Destination.Kind == ir.TerminalFUOperand {
		anchor = rec.Hops[len(rec.Hops)-1]
	} else {
		anchor = rec.Hops[0]
	}
	return true, anchor, undo
}

func (a *attempt) undoAll(undo []func()) {
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

var errNoProgress = xerrors.ErrSchedulingFailed
