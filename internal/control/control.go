// Package control implements the scheduler controller of spec.md section
// 4.6: the four-pass CFG walk that drives the per-basic-block scheduler,
// the binary-search loop-scheduling path for single-BB software pipelining,
// and write-back of the resource manager's final placement into the
// procedure's instruction stream.
package control

import (
	"github.com/sirupsen/logrus"

	"github.com/ttasched/ttasched/internal/config"
	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/interpass"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
	"github.com/ttasched/ttasched/internal/resource"
	"github.com/ttasched/ttasched/internal/schedule"
	"github.com/ttasched/ttasched/internal/xerrors"
)

// Variant selects which Scheduler implementation the controller drives
// (spec.md section 6's "enable top-down/bottom-up/bubble-fish variant").
type Variant int

const (
	// BubbleFish is the selected default.
	BubbleFish Variant = iota
	BottomUp
	TopDown
)

// Options configures one controller run over a whole procedure.
type Options struct {
	Variant Variant

	BypassDistance    int
	RenameEnabled     bool
	TempCopiesAllowed bool
	// DeadResultElimination enables dropping a bypassed-away producer with
	// no remaining consumer instead of scheduling it as dead code
	// (spec.md section 6). Defaults false (off) like every other Options
	// field's zero value; ttasched.Options passes its own field of the same
	// name through unchanged, so the public API defaults it off too.
	DeadResultElimination bool

	// LoopSchedulingEnabled turns on the binary-search software-pipelining
	// path for single-BB loops; when false every block is scheduled flat.
	LoopSchedulingEnabled bool

	// LowMemThreshold disables whole-procedure DDG construction above that
	// instruction count (spec.md section 6). This implementation always
	// builds one DDG per basic block rather than one shared whole-procedure
	// graph (see DESIGN.md), so the threshold is checked per block instead:
	// a block at or above it is scheduled with bypass/renaming/temp-copies
	// all disabled, trading schedule quality for a bounded analysis cost on
	// the block the caller flagged as oversized. 0 disables the check.
	LowMemThreshold int

	Verbosity int

	// Graphs, when non-nil, supplies pre-built DDGs keyed by basic block
	// for a driver that already holds both the CFG and the DDG (spec.md
	// section 6's `schedule(cfg, ddg, machine)` entry point); a block
	// missing from the map falls back to building its own. Loop-scheduling
	// probes always build their own II-specific graphs regardless, since a
	// supplied graph is flat by construction.
	Graphs map[ir.BasicBlockID]*ddg.Graph
}

// Controller drives one procedure's worth of scheduling.
type Controller struct {
	proc *ir.Procedure
	mach *machine.Machine
	ip   *interpass.Data
	opts Options

	liveOut map[ir.BasicBlockID]map[ir.Register]bool

	log *logrus.Entry
}

// New builds a Controller for proc.
func New(proc *ir.Procedure, mach *machine.Machine, ip *interpass.Data, opts Options) *Controller {
	return &Controller{proc: proc, mach: mach, ip: ip, opts: opts, log: config.NewLogger(opts.Verbosity).WithField("procedure", proc.Name)}
}

// Schedule walks the procedure's basic blocks in the four passes of
// spec.md section 4.6 and schedules each, mutating the procedure in place.
func (c *Controller) Schedule() error {
	scheduled := make(map[ir.BasicBlockID]bool)
	c.liveOut = c.computeLiveOut()

	for _, bb := range c.proc.BasicBlocks {
		if bb.IsSingleBBLoop() {
			if err := c.scheduleBlock(bb, scheduled); err != nil {
				return err
			}
		}
	}
	for _, bb := range c.proc.BasicBlocks {
		if scheduled[bb.ID] {
			continue
		}
		if bb.IsSink() {
			if err := c.scheduleBlock(bb, scheduled); err != nil {
				return err
			}
		}
	}
	for i := len(c.proc.BasicBlocks) - 1; i >= 0; i-- {
		bb := c.proc.BasicBlocks[i]
		if scheduled[bb.ID] {
			continue
		}
		if successorsScheduled(bb, scheduled) {
			if err := c.scheduleBlock(bb, scheduled); err != nil {
				return err
			}
		}
	}
	for _, bb := range c.proc.BasicBlocks {
		if scheduled[bb.ID] {
			continue
		}
		if err := c.scheduleBlock(bb, scheduled); err != nil {
			return err
		}
	}
	return nil
}

func successorsScheduled(bb *ir.BasicBlock, scheduled map[ir.BasicBlockID]bool) bool {
	if len(bb.Successors) == 0 {
		return false // sinks are handled in pass 2; don't re-claim them here
	}
	for _, s := range bb.Successors {
		if !scheduled[s] {
			return false
		}
	}
	return true
}

// scheduleBlock schedules one basic block, attempting the loop-scheduling
// path first when eligible, falling back to flat scheduling, and writes the
// result back into bb.Instructions.
func (c *Controller) scheduleBlock(bb *ir.BasicBlock, scheduled map[ir.BasicBlockID]bool) error {
	defer func() { scheduled[bb.ID] = true }()

	pruneGraph := ddg.BuildBlock(bb, c.mach, bb.IsSingleBBLoop())
	pruneGraph.PrePruneDead(bb, c.liveOut[bb.ID])

	opts := c.schedulerOptions(bb)

	if bb.IsSingleBBLoop() && c.opts.LoopSchedulingEnabled {
		ok, err := c.tryLoopSchedule(bb, opts)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		c.log.WithField("block", bb.Name).Debug("loop scheduling infeasible, falling back to flat")
	}

	opts.EndCycle = len(bb.Nodes) + bb.DelaySlots + 8
	opts.DelaySlots = bb.DelaySlots
	g := c.opts.Graphs[bb.ID]
	if g == nil {
		g = ddg.BuildBlock(bb, c.mach, false)
	}
	rm := resource.New(c.mach, 0)

	sched := c.newScheduler(bb, opts)
	if _, err := sched.Schedule(g, rm, c.mach, false); err != nil {
		return xerrors.Wrapf(err, "scheduling block %q", bb.Name)
	}
	writeBack(bb, rm)
	return nil
}

// schedulerOptions builds the schedule.Options this block should use,
// applying the lowMemThreshold downgrade when the block is oversized.
func (c *Controller) schedulerOptions(bb *ir.BasicBlock) schedule.Options {
	opts := schedule.Options{
		BypassDistance:    c.opts.BypassDistance,
		RenameEnabled:     c.opts.RenameEnabled,
		TempCopiesAllowed: c.opts.TempCopiesAllowed,
		KeepDeadResults:   !c.opts.DeadResultElimination,
	}
	if c.opts.LowMemThreshold > 0 && len(bb.Nodes) >= c.opts.LowMemThreshold {
		opts.BypassDistance = 0
		opts.RenameEnabled = false
		opts.TempCopiesAllowed = false
	}
	return opts
}

func (c *Controller) newScheduler(bb *ir.BasicBlock, opts schedule.Options) schedule.Scheduler {
	switch c.opts.Variant {
	case BottomUp:
		return schedule.NewBottomUp(c.proc, bb, c.ip, opts)
	case TopDown:
		return schedule.NewTopDown(c.proc, bb, c.ip, opts)
	default:
		return schedule.NewBubbleFish(c.proc, bb, c.ip, opts)
	}
}

// writeBack copies the resource manager's final cycle assignments into
// bb.Instructions, cycle-indexed from the block's smallest used cycle
// (spec.md section 4.6: "its resource-manager state is copied back into
// the block as ordinary instructions").
func writeBack(bb *ir.BasicBlock, rm *resource.Manager) {
	lo, hi := rm.SmallestCycle(), rm.LargestCycle()
	if lo == -1 {
		bb.Instructions = nil
		return
	}
	instrs := make([][]ir.MoveNodeID, hi-lo+1)
	for _, n := range bb.Nodes {
		if !n.Placement.Placed {
			continue
		}
		idx := n.Placement.Cycle - lo
		instrs[idx] = append(instrs[idx], n.ID)
	}
	bb.Instructions = instrs
}
