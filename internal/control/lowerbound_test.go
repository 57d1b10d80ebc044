package control_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttasched/ttasched/internal/control"
	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

func TestResourceLowerBoundBusBound(t *testing.T) {
	mach := machine.New()
	mach.Buses = []*machine.Bus{{Name: "B0"}, {Name: "B1"}}

	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	for i := 0; i < 5; i++ {
		proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(i), Destination: ir.RegisterTerminal(reg(i))})
	}

	require.Equal(t, 3, control.ResourceLowerBound(bb, mach), "5 moves over 2 buses ceiling-divides to 3")
}

func TestResourceLowerBoundFUPipelineBound(t *testing.T) {
	mach := machine.New()
	mach.Buses = []*machine.Bus{{Name: "B0"}}
	mach.FunctionUnits = []*machine.FunctionUnit{{
		Name:       "MUL",
		Operations: map[string]*machine.OperationSpec{"mul": {Name: "mul", Pipeline: 4}},
	}}

	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	op := proc.NewOperation("MUL", "mul")
	trig := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(0)), Destination: ir.FUOperandTerminal("MUL", 0)})
	trig.Operation, trig.IsTrigger = op, true
	op.Operands, op.TriggerIndex = []*ir.MoveNode{trig}, 0
	bb.Operations = append(bb.Operations, op)

	require.Equal(t, 4, control.ResourceLowerBound(bb, mach), "MUL's 4-cycle pipeline occupancy dominates the single-move bus bound")
}

func TestRecurrenceLowerBoundTwoNodeCycle(t *testing.T) {
	mach := machine.New()
	mach.Buses = []*machine.Bus{{Name: "B0"}}
	mach.RegisterFiles = []*machine.RegisterFile{{Name: "RF", Size: 32}}

	proc := ir.NewProcedure("p")
	loop := proc.NewBasicBlock("loop")
	loop.Successors = []ir.BasicBlockID{loop.ID}
	trip := 50
	loop.TripCount = &trip

	proc.NewNode(loop, ir.Move{Source: ir.RegisterTerminal(reg(0)), Destination: ir.RegisterTerminal(reg(1))})
	proc.NewNode(loop, ir.Move{Source: ir.RegisterTerminal(reg(1)), Destination: ir.RegisterTerminal(reg(0))})

	g := ddg.BuildBlock(loop, mach, true)
	require.Equal(t, 2, control.RecurrenceLowerBound(g), "the reg(0)<->reg(1) carried dependence closes a length-2 cycle")
}
