package schedule

import (
	"github.com/pkg/errors"

	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/interpass"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
	"github.com/ttasched/ttasched/internal/resource"
)

// TopDownScheduler schedules a basic block forward from cycle 0, placing
// each move at the earliest cycle its already-placed predecessors and the
// resource manager allow. It predates the bottom-up scheduler in spec.md's
// own history and is kept for blocks where bottom-up's successors-first
// readiness model gives no benefit (e.g. a block with no result-consuming
// tail); it does not bypass, rename, or retry with backed-off ceilings.
type TopDownScheduler struct {
	Proc *ir.Procedure
	BB   *ir.BasicBlock
	IP   *interpass.Data
	Opts Options
}

// NewTopDown builds a TopDownScheduler for one basic block. It clears
// opts.RenameEnabled, since top-down scheduling does not rename.
func NewTopDown(proc *ir.Procedure, bb *ir.BasicBlock, ip *interpass.Data, opts Options) *TopDownScheduler {
	opts.RenameEnabled = false
	return &TopDownScheduler{Proc: proc, BB: bb, IP: ip, Opts: opts}
}

// Schedule implements Scheduler.
func (s *TopDownScheduler) Schedule(g *ddg.Graph, rm *resource.Manager, mach *machine.Machine, testOnly bool) (int, error) {
	a := newAttempt(s.Proc, s.BB, s.IP, s.Opts, g, rm, mach)
	a.log.Debug("top-down schedule starting")

	var allUndo []func()
	for {
		progressed := false
		for _, n := range s.BB.Nodes {
			if n.Placement.Placed || n.Dead() {
				continue
			}
			if !a.predecessorsPlaced(n) {
				continue
			}
			ok, undo := a.scheduleMoveForward(n)
			if !ok {
				continue
			}
			allUndo = append(allUndo, undo...)
			progressed = true
		}
		if !progressed {
			break
		}
	}

	// spec.md section 9, open question (b): the legacy exception for "some
	// move never became ready" is kept as a fatal assertion, not a returned
	// error — reaching it means the DDG itself has a dependence cycle, which
	// is a scheduler bug, not a condition a caller can meaningfully recover
	// from by retrying with different options.
	if unscheduled := a.countUnscheduled(); unscheduled > 0 {
		a.undoAll(allUndo)
		panic(errors.Errorf("top-down schedule of block %q: %d moves never became ready (dependence cycle?)", s.BB.Name, unscheduled))
	}

	size := a.makespan()
	if testOnly {
		a.undoAll(allUndo)
		return size, nil
	}
	a.finalize()
	return size, nil
}

// predecessorsPlaced reports whether every in-edge of n originates at an
// already-placed (or dropped-dead) node.
func (a *attempt) predecessorsPlaced(n *ir.MoveNode) bool {
	for _, e := range a.g.InEdges(n.ID) {
		if e.BackEdge {
			continue
		}
		pred := a.g.Node(e.From)
		if pred == nil {
			continue
		}
		if !pred.Placement.Placed && !pred.Dead() {
			return false
		}
	}
	return true
}

// scheduleMoveForward is scheduleMove's forward-direction counterpart: it
// resolves connectivity the same way, but searches for the earliest
// feasible cycle at or after node's DDG/resource lower bound rather than
// the latest at or before an upper bound. Top-down scheduling doesn't
// attempt bypass or renaming; spec.md section 9 keeps those as bottom-up-
// only refinements.
func (a *attempt) scheduleMoveForward(node *ir.MoveNode) (bool, []func()) {
	ok, resolved, connUndo := a.resolveConnectivity(node, a.opts.TempCopiesAllowed)
	if !ok {
		a.undoAll(connUndo)
		return false, nil
	}
	node = resolved

	lower := a.g.EarliestCycle(node, a.rm.InitiationInterval(), false, false)
	cyc := a.rm.EarliestCycle(lower, node)
	if cyc == resource.Infinity {
		a.undoAll(connUndo)
		return false, nil
	}
	if !a.rm.Assign(cyc, node) {
		a.undoAll(connUndo)
		return false, nil
	}
	node.Placement.Place(cyc)
	n := node
	undo := append(connUndo, func() {
		a.rm.Unassign(n)
		n.Placement.Unplace()
	})
	return true, undo
}
