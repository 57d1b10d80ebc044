package ddg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/ir"
)

func TestValidateRejectsSelfLoopWithoutBackEdgeFlag(t *testing.T) {
	// config.DDGInvariantChecksEnabled is a compile-time switch that is on
	// in this build, so AddEdge itself panics on the violation.
	g := ddg.New()
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	n := proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(1), Destination: ir.RegisterTerminal(r("RF", 1))})
	g.AddNode(n)

	e := &ddg.Edge{From: n.ID, To: n.ID, Kind: ddg.EdgeRegisterRAW}
	require.Panics(t, func() { g.AddEdge(e) })
}

func TestValidateAcceptsLoopBackEdge(t *testing.T) {
	g := ddg.New()
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	n := proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(r("RF", 1)), Destination: ir.RegisterTerminal(r("RF", 1))})
	g.AddNode(n)

	e := &ddg.Edge{From: n.ID, To: n.ID, Kind: ddg.EdgeRegisterRAW, BackEdge: true}
	g.AddEdge(e)

	require.NoError(t, g.Validate())
}
