package ddg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

func TestBuildBlockMemoryOrdering(t *testing.T) {
	mach := machine.New()
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")

	ld := proc.NewOperation("LSU", "ld")
	st := proc.NewOperation("LSU", "st")

	ldTrig := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(r("RF", 1)), Destination: ir.FUOperandTerminal("LSU", 0)})
	ldRes := proc.NewNode(bb, ir.Move{Source: ir.FUResultTerminal("LSU", 0), Destination: ir.RegisterTerminal(r("RF", 2))})
	ldTrig.Operation, ldRes.Operation = ld, ld
	ldTrig.IsTrigger = true
	ld.Operands = []*ir.MoveNode{ldTrig}
	ld.TriggerIndex = 0
	ld.Results = []*ir.MoveNode{ldRes}
	ldRes.ResultIndex = 0
	ld.MemoryAccess = ir.MemoryAccessLoad
	bb.Operations = append(bb.Operations, ld)

	stTrig := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(r("RF", 3)), Destination: ir.FUOperandTerminal("LSU", 0)})
	stTrig.Operation = st
	stTrig.IsTrigger = true
	st.Operands = []*ir.MoveNode{stTrig}
	st.TriggerIndex = 0
	st.MemoryAccess = ir.MemoryAccessStore
	bb.Operations = append(bb.Operations, st)

	g := ddg.BuildBlock(bb, mach, false)

	found := false
	for _, e := range g.OutEdges(ldTrig.ID) {
		if e.To == stTrig.ID && e.Kind == ddg.EdgeMemoryWAR {
			found = true
		}
	}
	require.True(t, found, "expected load->store memory WAR edge in program order")
}

func TestBuildBlockGuardEdge(t *testing.T) {
	mach := machine.New()
	mach.Guards = []*machine.GuardSpec{{Reg: machine.RegisterRef{File: "RF", Index: 4}, Latency: 2}}

	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")

	def := proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(0), Destination: ir.RegisterTerminal(r("RF", 4))})
	guarded := proc.NewNode(bb, ir.Move{
		Source:      ir.RegisterTerminal(r("RF", 5)),
		Destination: ir.RegisterTerminal(r("RF", 6)),
		Guard:       &ir.Guard{Reg: r("RF", 4), Latency: 1},
	})

	g := ddg.BuildBlock(bb, mach, false)

	found := false
	for _, e := range g.OutEdges(def.ID) {
		if e.To == guarded.ID && e.Kind == ddg.EdgeGuardRAW {
			require.Equal(t, 2, e.Latency, "machine guard latency should override the move's own Guard.Latency")
			found = true
		}
	}
	require.True(t, found, "expected guard-RAW edge from the guard register's definer")
}

func TestPrePruneDeadDropsDeadDestination(t *testing.T) {
	mach := machine.New()
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")

	dead := proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(1), Destination: ir.RegisterTerminal(r("RF", 9))})
	_ = proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(2), Destination: ir.RegisterTerminal(r("RF", 10))})

	g := ddg.BuildBlock(bb, mach, false)
	require.True(t, g.HasNode(dead.ID))

	g.PrePruneDead(bb, map[ir.Register]bool{r("RF", 10): true})

	require.False(t, g.HasNode(dead.ID), "move whose destination is neither read again nor live-out should be pruned")
	require.Len(t, bb.Nodes, 1)
}
