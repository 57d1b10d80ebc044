package selector_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/selector"
)

func reg(i int) ir.Register { return ir.Register{File: "RF", Index: i} }

func TestCandidatesOnlyReturnsNodesWithPlacedSuccessors(t *testing.T) {
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")

	producer := proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(1), Destination: ir.RegisterTerminal(reg(0))})
	consumer := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(0)), Destination: ir.RegisterTerminal(reg(1))})

	g := ddg.New()
	g.AddNode(producer)
	g.AddNode(consumer)
	g.AddDependence(producer.ID, consumer.ID, ddg.EdgeRegisterRAW, reg(0), 1, false)

	sel := selector.New(g, bb)

	cands := sel.Candidates()
	require.Len(t, cands, 1, "only consumer (the sink) is ready in this bottom-up graph")
	require.Same(t, consumer, cands[0].Nodes[0])

	consumer.Placement.Place(5)
	cands = sel.Candidates()
	require.Len(t, cands, 1)
	require.Same(t, producer, cands[0].Nodes[0])
}

func TestCandidatesGroupsOperationMovesTogether(t *testing.T) {
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	op := proc.NewOperation("ADD", "add")

	operand := proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(1), Destination: ir.FUOperandTerminal("ADD", 0)})
	result := proc.NewNode(bb, ir.Move{Source: ir.FUResultTerminal("ADD", 0), Destination: ir.RegisterTerminal(reg(0))})
	operand.Operation, operand.OperandIndex, operand.IsTrigger = op, 0, true
	result.Operation, result.ResultIndex = op, 0
	op.Operands = []*ir.MoveNode{operand}
	op.Results = []*ir.MoveNode{result}
	op.TriggerIndex = 0

	g := ddg.New()
	g.AddNode(operand)
	g.AddNode(result)
	g.AddDependence(operand.ID, result.ID, ddg.EdgeOperation, ir.Register{}, 2, false)

	sel := selector.New(g, bb)
	cands := sel.Candidates()
	require.Len(t, cands, 1, "operand and result have no external successors, so the whole operation is one ready group")
	require.Len(t, cands[0].Nodes, 2)
	require.Same(t, op, cands[0].Operation)
}

func TestCandidatesOrderedByLongestPathToSink(t *testing.T) {
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")

	sinkNear := proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(1), Destination: ir.RegisterTerminal(reg(0))})
	sinkFar := proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(2), Destination: ir.RegisterTerminal(reg(1))})
	sinkNear.Placement.Place(10)
	sinkFar.Placement.Place(10)

	nearProducer := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(2)), Destination: ir.RegisterTerminal(reg(0))})
	farProducer := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(3)), Destination: ir.RegisterTerminal(reg(1))})

	g := ddg.New()
	g.AddNode(sinkNear)
	g.AddNode(sinkFar)
	g.AddNode(nearProducer)
	g.AddNode(farProducer)
	g.AddDependence(nearProducer.ID, sinkNear.ID, ddg.EdgeRegisterWAW, reg(0), 2, false)
	g.AddDependence(farProducer.ID, sinkFar.ID, ddg.EdgeRegisterWAW, reg(1), 5, false)

	sel := selector.New(g, bb)
	cands := sel.Candidates()
	require.Len(t, cands, 2, "both producers are ready since their only successor is already placed")
	require.Same(t, farProducer, cands[0].Nodes[0], "farProducer's longer edge latency gives it higher priority")
	require.Same(t, nearProducer, cands[1].Nodes[0])
}
