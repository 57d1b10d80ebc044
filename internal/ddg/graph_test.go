package ddg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

func r(name string, i int) ir.Register { return ir.Register{File: name, Index: i} }

func buildAddBlock(t *testing.T) (*ir.Procedure, *ir.BasicBlock, *machine.Machine) {
	t.Helper()
	mach := machine.New()
	mach.RegisterFiles = []*machine.RegisterFile{{Name: "RF", Size: 32, Width: 32, ReadPorts: 2, WritePorts: 2}}
	mach.FunctionUnits = []*machine.FunctionUnit{{
		Name: "ADD", NumOperandPorts: 2, NumResultPorts: 1,
		Operations: map[string]*machine.OperationSpec{
			"add": {Name: "add", NumOperands: 2, TriggerOperand: 1, ResultLatency: map[int]int{0: 1}, Pipeline: 1},
		},
	}}

	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")

	op := proc.NewOperation("ADD", "add")
	n1 := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(r("RF", 1)), Destination: ir.FUOperandTerminal("ADD", 0)})
	n2 := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(r("RF", 2)), Destination: ir.FUOperandTerminal("ADD", 1)})
	n3 := proc.NewNode(bb, ir.Move{Source: ir.FUResultTerminal("ADD", 0), Destination: ir.RegisterTerminal(r("RF", 3))})
	n1.Operation, n2.Operation, n3.Operation = op, op, op
	n1.OperandIndex, n2.OperandIndex = 0, 1
	n2.IsTrigger = true
	n3.ResultIndex = 0
	op.Operands = []*ir.MoveNode{n1, n2}
	op.TriggerIndex = 1
	op.Results = []*ir.MoveNode{n3}
	bb.Operations = []*ir.ProgramOperation{op}

	return proc, bb, mach
}

func TestBuildBlockOperationEdges(t *testing.T) {
	_, bb, mach := buildAddBlock(t)
	g := ddg.BuildBlock(bb, mach, false)

	n1, n2, n3 := bb.Nodes[0], bb.Nodes[1], bb.Nodes[2]

	// operand 0 -> trigger (n2)
	found := false
	for _, e := range g.OutEdges(n1.ID) {
		if e.To == n2.ID && e.Kind == ddg.EdgeOperation {
			found = true
		}
	}
	require.True(t, found, "expected operand->trigger edge")

	// trigger -> result, latency 1
	found = false
	for _, e := range g.OutEdges(n2.ID) {
		if e.To == n3.ID && e.Kind == ddg.EdgeOperation && e.Latency == 1 {
			found = true
		}
	}
	require.True(t, found, "expected trigger->result edge with latency 1")
}

func TestEarliestLatestCycle(t *testing.T) {
	_, bb, mach := buildAddBlock(t)
	g := ddg.BuildBlock(bb, mach, false)
	n1, n2, n3 := bb.Nodes[0], bb.Nodes[1], bb.Nodes[2]

	require.Equal(t, ddg.Infinity, g.EarliestCycle(n2, 0, false, false), "unplaced predecessor n1 leaves n2 unbounded")

	n1.Placement.Place(5)
	require.Equal(t, 5, g.EarliestCycle(n2, 0, false, false))

	n2.Placement.Place(5)
	require.Equal(t, 6, g.EarliestCycle(n3, 0, false, false))

	require.Equal(t, 5, g.LatestCycle(n1, 0, false, false, false), "n1's only successor n2 is placed at cycle 5 with 0 latency")
	require.Equal(t, ddg.Infinity, g.LatestCycle(n3, 0, false, false, false), "n3 has no successors to bound it")
}

func TestDropNodePreservesTransitiveOrdering(t *testing.T) {
	mach := machine.New()
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	a := proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(1), Destination: ir.RegisterTerminal(r("RF", 1))})
	b := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(r("RF", 1)), Destination: ir.RegisterTerminal(r("RF", 2))})
	c := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(r("RF", 2)), Destination: ir.RegisterTerminal(r("RF", 3))})

	g := ddg.BuildBlock(bb, mach, false)
	require.NotEmpty(t, g.InEdges(b.ID))
	require.NotEmpty(t, g.InEdges(c.ID))

	g.CopyDepsOver(b)
	g.DropNode(b)
	bb.RemoveNode(b)

	found := false
	for _, e := range g.OutEdges(a.ID) {
		if e.To == c.ID && e.Kind == ddg.EdgeRegisterRAW {
			found = true
			require.Equal(t, 2, e.Latency)
		}
	}
	require.True(t, found, "expected a->c edge after dropping intermediate node b")
	require.False(t, g.HasNode(b.ID))
}

func TestMergeUnmerge(t *testing.T) {
	mach := machine.New()
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	producer := proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(7), Destination: ir.RegisterTerminal(r("RF", 1))})
	user := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(r("RF", 1)), Destination: ir.RegisterTerminal(r("RF", 2))})

	g := ddg.BuildBlock(bb, mach, false)
	originalSource := user.Move.Source

	rec, err := g.Merge(producer, user)
	require.NoError(t, err)
	require.Equal(t, producer.Move.Source, user.Move.Source)

	g.Unmerge(rec)
	require.Equal(t, originalSource, user.Move.Source)
}
