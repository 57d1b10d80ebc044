package schedule

import (
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

// scheduleOperationGroup runs the per-operation state machine of spec.md
// section 4.5 over one program operation's moves: try-results (each result
// move, backing off the ceiling on failure), try-trigger (with and without
// bypass), then try-operands (with and without bypass on the trigger,
// retried). It returns whether the whole operation was placed and the undo
// list the caller must run, in order, on failure of anything scheduled
// after it.
func (a *attempt) scheduleOperationGroup(op *ir.ProgramOperation, ceiling int) (bool, []func()) {
	resultsStart := ceiling
	var resultsUndo []func()
	for {
		ok, undo := a.tryResults(op, resultsStart)
		if ok {
			resultsUndo = undo
			break
		}
		a.undoAll(undo)
		resultsStart--
		if resultsStart < 0 {
			return false, nil
		}
	}

	swapUndo := a.maybeSwapTrigger(op)
	trigger := op.Trigger()
	if trigger == nil {
		swapUndo()
		a.undoAll(resultsUndo)
		return false, nil
	}

	// The commutative swap above may have picked a different trigger than
	// the one the DDG was built against; re-home its FU-pipeline edges
	// before the trigger or any other operand is scheduled, so their
	// latest-cycle bounds read the corrected edges (spec.md section 4.1).
	a.g.MoveFUDependenciesToTrigger(trigger)

	for _, bypassOnTrigger := range bypassAttempts(a.opts.BypassDistance > 0) {
		okT, trigUndo := a.tryTrigger(trigger, resultsStart, bypassOnTrigger)
		if !okT {
			a.undoAll(trigUndo)
			continue
		}

		for _, bypassOnOperands := range bypassAttempts(a.opts.BypassDistance > 0) {
			okO, opUndo := a.tryOperands(op, trigger, bypassOnOperands)
			if okO {
				all := make([]func(), 0, len(resultsUndo)+len(trigUndo)+len(opUndo))
				all = append(all, resultsUndo...)
				all = append(all, trigUndo...)
				all = append(all, opUndo...)
				return true, all
			}
			a.undoAll(opUndo)
		}
		a.undoAll(trigUndo)
	}

	swapUndo()
	a.undoAll(resultsUndo)
	return false, nil
}

// tryResults schedules every non-dead result move of op at or before
// ceiling. A result already marked dead by a prior bypass is skipped
// entirely: it will never occupy a cycle, since finalize drops it.
func (a *attempt) tryResults(op *ir.ProgramOperation, ceiling int) (bool, []func()) {
	var undo []func()
	for _, r := range op.Results {
		if r == nil || r.Dead() {
			continue
		}
		ok, _, mUndo := a.scheduleMove(r, ceiling, a.opts.TempCopiesAllowed, false)
		if !ok {
			a.undoAll(undo)
			return false, nil
		}
		undo = append(undo, mUndo...)
	}
	return true, undo
}

// tryTrigger schedules trigger itself, optionally attempting bypass first.
func (a *attempt) tryTrigger(trigger *ir.MoveNode, ceiling int, bypassOn bool) (bool, []func()) {
	ok, _, undo := a.scheduleMove(trigger, ceiling, a.opts.TempCopiesAllowed, bypassOn)
	return ok, undo
}

// tryOperands schedules every non-trigger operand of op at or before the
// cycle the trigger itself landed at (an operand must be ready no later
// than the cycle that reads it).
func (a *attempt) tryOperands(op *ir.ProgramOperation, trigger *ir.MoveNode, bypassOn bool) (bool, []func()) {
	ceiling := trigger.Placement.Cycle
	var undo []func()
	for i, o := range op.Operands {
		if o == nil || i == op.TriggerIndex {
			continue
		}
		ok, _, mUndo := a.scheduleMove(o, ceiling, a.opts.TempCopiesAllowed, bypassOn)
		if !ok {
			a.undoAll(undo)
			return false, nil
		}
		undo = append(undo, mUndo...)
	}
	return true, undo
}

func bypassAttempts(enabled bool) []bool {
	if enabled {
		return []bool{true, false}
	}
	return []bool{false}
}

// maybeSwapTrigger implements the commutative-operand-swap heuristic of
// spec.md section 4.5/9: for a two-operand commutative operation, prefer an
// immediate operand as trigger over a register operand, since a constant
// never needs connectivity resolution. It returns the undo closure to
// restore the original trigger index.
//
// Open question (spec.md section 9, item (a)): when several FUs support the
// same operation at different trigger-operand indices, picking the best
// trigger also means picking the best FU binding; that joint search isn't
// attempted here; the swap only ever exchanges the two operands of the FU
// binding already chosen by the IR. This is a documented limitation, not a
// correctness issue, since an unprofitable trigger choice only costs
// schedule quality, never validity.
func (a *attempt) maybeSwapTrigger(op *ir.ProgramOperation) func() {
	_, spec := a.operationSpecForOp(op)
	if spec == nil || !spec.Commutative || len(op.Operands) != 2 {
		return func() {}
	}
	cur := op.TriggerIndex
	other := 1 - cur
	curNode, otherNode := op.Operands[cur], op.Operands[other]
	if curNode == nil || otherNode == nil || curNode.Placement.Placed || otherNode.Placement.Placed {
		return func() {}
	}
	if otherNode.Move.Source.Kind != ir.TerminalImmediate || curNode.Move.Source.Kind == ir.TerminalImmediate {
		return func() {}
	}
	a.swapTrigger(op, cur, other)
	return func() { a.swapTrigger(op, other, cur) }
}

func (a *attempt) swapTrigger(op *ir.ProgramOperation, from, to int) {
	op.Operands[from].IsTrigger = false
	op.Operands[to].IsTrigger = true
	op.TriggerIndex = to
}

func (a *attempt) operationSpecForOp(op *ir.ProgramOperation) (*machine.FunctionUnit, *machine.OperationSpec) {
	fu := a.mach.FU(op.FU)
	if fu == nil {
		return nil, nil
	}
	spec, _ := fu.Operation(op.OperationName)
	return fu, spec
}
