package rename_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
	"github.com/ttasched/ttasched/internal/rename"
)

func renameMachine() *machine.Machine {
	mach := machine.New()
	mach.Buses = []*machine.Bus{{Name: "B0", Width: 32, ShortImmediateWidth: 8}}
	mach.RegisterFiles = []*machine.RegisterFile{{Name: "RF", Width: 32, Size: 4, ReadPorts: 1, WritePorts: 1}}
	mach.Connect("B0", machine.RegisterReadSocket("RF"), machine.RegisterWriteSocket("RF"))
	return mach
}

func reg(i int) ir.Register { return ir.Register{File: "RF", Index: i} }

func TestRenameSourceRegisterFindsFreeCandidate(t *testing.T) {
	mach := renameMachine()
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")

	// other reads r0 and writes r2 at cycle 0. Registers already used in
	// the block are tried first, so r2 comes up and is rejected (other,
	// placed, touches it inside node's unbounded live range), then r3 is
	// taken: only node itself touches it.
	other := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(0)), Destination: ir.RegisterTerminal(reg(2))})
	other.Placement.Place(0)

	node := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(0)), Destination: ir.RegisterTerminal(reg(3))})

	g := ddg.New()
	g.AddNode(other)
	g.AddNode(node)

	r := rename.New(mach, g, bb)
	rec, ok := r.RenameSourceRegister(node, true, false, false)
	require.True(t, ok)
	require.NotEqual(t, reg(0), node.Move.Source.Reg)

	old := node.Move.Source.Reg
	r.Undo(g, rec)
	require.Equal(t, reg(0), node.Move.Source.Reg)
	require.NotEqual(t, old, node.Move.Source.Reg)
}

func TestRenameFailsWhenNoCandidateFree(t *testing.T) {
	mach := machine.New()
	mach.Buses = []*machine.Bus{{Name: "B0", Width: 32, ShortImmediateWidth: 8}}
	mach.RegisterFiles = []*machine.RegisterFile{{Name: "RF", Width: 32, Size: 1, ReadPorts: 1, WritePorts: 1}}
	mach.Connect("B0", machine.RegisterReadSocket("RF"), machine.RegisterWriteSocket("RF"))

	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	node := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(0)), Destination: ir.RegisterTerminal(reg(0))})

	g := ddg.New()
	g.AddNode(node)

	r := rename.New(mach, g, bb)
	_, ok := r.RenameSourceRegister(node, true, false, false)
	require.False(t, ok, "RF has only one register, so there is no other candidate")
}

func TestLiveRangeFollowsRAWChain(t *testing.T) {
	mach := renameMachine()
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")

	producer := proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(1), Destination: ir.RegisterTerminal(reg(0))})
	consumer := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(0)), Destination: ir.RegisterTerminal(reg(1))})

	g := ddg.New()
	g.AddNode(producer)
	g.AddNode(consumer)
	g.AddDependence(producer.ID, consumer.ID, ddg.EdgeRegisterRAW, reg(0), 1, false)

	lr := rename.LiveRange(g, consumer, reg(0))
	require.Len(t, lr, 2)
}
