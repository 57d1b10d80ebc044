package schedule

import (
	"github.com/pkg/errors"

	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/interpass"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
	"github.com/ttasched/ttasched/internal/resource"
)

// BottomUpScheduler is the resource-constrained list scheduler of spec.md
// section 4.5: it repeatedly asks the selector for the highest-priority
// ready group (a whole program operation, or a single plain move) and
// schedules it backwards from the block's end cycle, until nothing remains
// ready or a group can't be placed at all.
type BottomUpScheduler struct {
	Proc *ir.Procedure
	BB   *ir.BasicBlock
	IP   *interpass.Data
	Opts Options
}

// NewBottomUp builds a BottomUpScheduler for one basic block.
func NewBottomUp(proc *ir.Procedure, bb *ir.BasicBlock, ip *interpass.Data, opts Options) *BottomUpScheduler {
	return &BottomUpScheduler{Proc: proc, BB: bb, IP: ip, Opts: opts}
}

// Schedule implements Scheduler.
func (s *BottomUpScheduler) Schedule(g *ddg.Graph, rm *resource.Manager, mach *machine.Machine, testOnly bool) (int, error) {
	a := newAttempt(s.Proc, s.BB, s.IP, s.Opts, g, rm, mach)
	a.log.Debug("bottom-up schedule starting")

	var allUndo []func()
	for {
		cands := a.sel.Candidates()
		if len(cands) == 0 {
			break
		}
		group := cands[0]

		var ok bool
		var undo []func()
		if group.Operation != nil {
			ok, undo = a.scheduleOperationGroup(group.Operation, a.opts.EndCycle)
		} else {
			var placed *ir.MoveNode
			ok, placed, undo = a.scheduleMove(group.Nodes[0], a.opts.EndCycle, a.opts.TempCopiesAllowed, a.opts.BypassDistance > 0)
			_ = placed
		}

		if !ok {
			a.undoAll(allUndo)
			return 0, errors.Wrapf(errNoProgress, "block %q: no feasible placement for n%d", s.BB.Name, group.Nodes[0].ID)
		}
		allUndo = append(allUndo, undo...)
		for _, n := range group.Nodes {
			a.sel.NotifyScheduled(n)
		}
		a.sel.Invalidate()
	}

	if unscheduled := a.countUnscheduled(); unscheduled > 0 {
		a.undoAll(allUndo)
		return 0, errors.Wrapf(errNoProgress, "block %q: %d moves never became ready", s.BB.Name, unscheduled)
	}

	size := a.makespan()
	if testOnly {
		a.undoAll(allUndo)
		return size, nil
	}
	a.finalize()
	return size, nil
}

// countUnscheduled returns how many of the block's moves are neither placed
// nor dropped as dead-result candidates; a positive count after the
// candidate loop drains means some move never became ready, which is a
// scheduler defect (a dependence cycle that slipped past DDG construction)
// rather than ordinary resource exhaustion.
func (a *attempt) countUnscheduled() int {
	n := 0
	for _, node := range a.bb.Nodes {
		if !node.Placement.Placed && !node.Dead() {
			n++
		}
	}
	return n
}
