package schedule

import (
	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/interpass"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
	"github.com/ttasched/ttasched/internal/resource"
)

// BubbleFishScheduler is spec.md section 6's selected default: bottom-up
// list scheduling under the caller's bypass, renaming and temp-copy
// settings, followed by a bubble pass that slides each
// placed move as early as its DDG/resource constraints allow without
// changing the makespan, shortening register live ranges and register-port
// occupancy without another full scheduling attempt.
type BubbleFishScheduler struct {
	inner *BottomUpScheduler
}

// NewBubbleFish builds a BubbleFishScheduler whose bottom-up pass runs
// with opts unchanged.
func NewBubbleFish(proc *ir.Procedure, bb *ir.BasicBlock, ip *interpass.Data, opts Options) *BubbleFishScheduler {
	return &BubbleFishScheduler{inner: NewBottomUp(proc, bb, ip, opts)}
}

// Schedule implements Scheduler. For a testOnly (II feasibility) probe the
// bubble pass is skipped, since its only effect is shuffling cycles within
// the makespan the probe already reports and the whole attempt is about to
// be rolled back anyway.
func (s *BubbleFishScheduler) Schedule(g *ddg.Graph, rm *resource.Manager, mach *machine.Machine, testOnly bool) (int, error) {
	if testOnly {
		return s.inner.Schedule(g, rm, mach, true)
	}
	if _, err := s.inner.Schedule(g, rm, mach, false); err != nil {
		return 0, err
	}
	a := newAttempt(s.inner.Proc, s.inner.BB, s.inner.IP, s.inner.Opts, g, rm, mach)
	bubbleEarlier(a)
	return a.makespan(), nil
}

// bubbleEarlier walks every placed, non-dead move once in program order and
// tries to reassign it to the earliest cycle its current DDG/resource
// constraints allow, without disturbing any other placement. A move that
// can't move earlier (DDG predecessor pressure, or no free resource) is left
// where the main scheduling pass put it.
func bubbleEarlier(a *attempt) {
	for _, n := range a.bb.Nodes {
		if !n.Placement.Placed {
			continue
		}
		cur := n.Placement.Cycle
		lower := a.g.EarliestCycle(n, a.rm.InitiationInterval(), false, false)
		if lower >= cur {
			continue
		}
		a.rm.Unassign(n)
		n.Placement.Unplace()

		cyc := a.rm.EarliestCycle(lower, n)
		if cyc == resource.Infinity || cyc >= cur || !a.rm.Assign(cyc, n) {
			// Restore: either nothing earlier is free, or the earlier slot
			// isn't actually better; put n back exactly where it was.
			a.rm.Assign(cur, n)
			n.Placement.Place(cur)
			continue
		}
		n.Placement.Place(cyc)
	}
}
