package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/interpass"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
	"github.com/ttasched/ttasched/internal/resource"
	"github.com/ttasched/ttasched/internal/schedule"
)

func reg(i int) ir.Register { return ir.Register{File: "RF", Index: i} }

// oneBusMachine is a single-bus, single-ADD-FU machine, enough to schedule
// one add with a register destination.
func oneBusMachine() *machine.Machine {
	mach := machine.New()
	mach.Buses = []*machine.Bus{{Name: "B0", Width: 32, ShortImmediateWidth: 8}}
	mach.RegisterFiles = []*machine.RegisterFile{{Name: "RF", Width: 32, Size: 32, ReadPorts: 2, WritePorts: 2}}
	mach.FunctionUnits = []*machine.FunctionUnit{{
		Name: "ADD", NumOperandPorts: 2, NumResultPorts: 1,
		Operations: map[string]*machine.OperationSpec{
			"add": {Name: "add", NumOperands: 2, TriggerOperand: 1, ResultLatency: map[int]int{0: 2}, Pipeline: 1},
		},
	}}
	mach.Connect("B0", machine.RegisterReadSocket("RF"), machine.RegisterWriteSocket("RF"))
	mach.Connect("B0", machine.RegisterReadSocket("RF"), machine.FUOperandSocket("ADD", 0))
	mach.Connect("B0", machine.RegisterReadSocket("RF"), machine.FUOperandSocket("ADD", 1))
	mach.Connect("B0", machine.FUResultSocket("ADD", 0), machine.RegisterWriteSocket("RF"))
	return mach
}

func buildAddOperation(proc *ir.Procedure, bb *ir.BasicBlock, src0, src1, dst ir.Register) *ir.ProgramOperation {
	op := proc.NewOperation("ADD", "add")

	o0 := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(src0), Destination: ir.FUOperandTerminal("ADD", 0)})
	o1 := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(src1), Destination: ir.FUOperandTerminal("ADD", 1)})
	o0.Operation, o0.OperandIndex = op, 0
	o1.Operation, o1.OperandIndex, o1.IsTrigger = op, 1, true

	r0 := proc.NewNode(bb, ir.Move{Source: ir.FUResultTerminal("ADD", 0), Destination: ir.RegisterTerminal(dst)})
	r0.Operation, r0.ResultIndex = op, 0

	op.Operands = []*ir.MoveNode{o0, o1}
	op.TriggerIndex = 1
	op.Results = []*ir.MoveNode{r0}
	return op
}

func TestBottomUpSchedulesSingleOperation(t *testing.T) {
	mach := oneBusMachine()
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	buildAddOperation(proc, bb, reg(0), reg(1), reg(2))

	g := ddg.BuildBlock(bb, mach, false)
	rm := resource.New(mach, 0)
	ip := &interpass.Data{}
	opts := schedule.Options{EndCycle: 20}

	sched := schedule.NewBottomUp(proc, bb, ip, opts)
	size, err := sched.Schedule(g, rm, mach, false)
	require.NoError(t, err)
	require.Greater(t, size, 0)

	for _, n := range bb.Nodes {
		require.True(t, n.Placement.Placed, "n%d never scheduled", n.ID)
	}
}

func TestBottomUpBypassesChainedMoveIntoOperand(t *testing.T) {
	mach := oneBusMachine()
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")

	// A plain copy reg(5) -> reg(0), then reg(0) consumed as an ADD operand:
	// with bypass enabled the operand should read straight from reg(5) and
	// the copy should end up marked dead (dropped at finalize).
	copyNode := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(5)), Destination: ir.RegisterTerminal(reg(0))})
	buildAddOperation(proc, bb, reg(0), reg(1), reg(2))

	g := ddg.BuildBlock(bb, mach, false)
	rm := resource.New(mach, 0)
	ip := &interpass.Data{}
	opts := schedule.Options{EndCycle: 20, BypassDistance: 1}

	sched := schedule.NewBottomUp(proc, bb, ip, opts)
	_, err := sched.Schedule(g, rm, mach, false)
	require.NoError(t, err)

	for _, n := range bb.Nodes {
		require.NotEqual(t, copyNode.ID, n.ID, "dead copy should have been dropped by finalize")
	}
}

func TestBottomUpFailsWhenNoBusCanEverCarryTheMove(t *testing.T) {
	mach := machine.New()
	mach.RegisterFiles = []*machine.RegisterFile{{Name: "RF", Width: 32, Size: 32, ReadPorts: 1, WritePorts: 1}}
	// No buses at all: the single move can never be transported.
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(0)), Destination: ir.RegisterTerminal(reg(1))})

	g := ddg.BuildBlock(bb, mach, false)
	rm := resource.New(mach, 0)
	ip := &interpass.Data{}
	opts := schedule.Options{EndCycle: 20}

	sched := schedule.NewBottomUp(proc, bb, ip, opts)
	_, err := sched.Schedule(g, rm, mach, false)
	require.Error(t, err)
}

func TestBottomUpResourceExhaustionForcesSeparateCyclesNotFailure(t *testing.T) {
	mach := oneBusMachine()
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	a := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(3)), Destination: ir.RegisterTerminal(reg(4))})
	b := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(5)), Destination: ir.RegisterTerminal(reg(6))})

	g := ddg.BuildBlock(bb, mach, false)
	rm := resource.New(mach, 0)
	ip := &interpass.Data{}
	opts := schedule.Options{EndCycle: 20}

	sched := schedule.NewBottomUp(proc, bb, ip, opts)
	_, err := sched.Schedule(g, rm, mach, false)
	require.NoError(t, err)
	require.NotEqual(t, a.Placement.Cycle, b.Placement.Cycle, "single bus forces the two independent moves onto different cycles")
}

func TestBubbleFishSchedulesSingleOperation(t *testing.T) {
	mach := oneBusMachine()
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	buildAddOperation(proc, bb, reg(0), reg(1), reg(2))

	g := ddg.BuildBlock(bb, mach, false)
	rm := resource.New(mach, 0)
	ip := &interpass.Data{}
	opts := schedule.Options{EndCycle: 20}

	sched := schedule.NewBubbleFish(proc, bb, ip, opts)
	size, err := sched.Schedule(g, rm, mach, false)
	require.NoError(t, err)
	require.Greater(t, size, 0)
}
