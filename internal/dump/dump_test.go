package dump_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/dump"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

func reg(i int) ir.Register { return ir.Register{File: "RF", Index: i} }

func buildSimpleGraph() *ddg.Graph {
	mach := machine.New()
	mach.RegisterFiles = []*machine.RegisterFile{{Name: "RF", Width: 32, Size: 32, ReadPorts: 1, WritePorts: 1}}
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(0)), Destination: ir.RegisterTerminal(reg(1))})
	proc.NewNode(bb, ir.Move{Source: ir.RegisterTerminal(reg(1)), Destination: ir.RegisterTerminal(reg(2))})
	return ddg.BuildBlock(bb, mach, false)
}

func TestDOTIncludesEveryNodeAndEdge(t *testing.T) {
	g := buildSimpleGraph()
	out := dump.DOT(g)
	require.True(t, strings.HasPrefix(out, "digraph ddg {"))
	require.Contains(t, out, "n0")
	require.Contains(t, out, "n1")
	require.Contains(t, out, "->")
}

func TestXMLMarshalsWithoutError(t *testing.T) {
	g := buildSimpleGraph()
	out, err := dump.XML(g)
	require.NoError(t, err)
	require.Contains(t, out, "<ddg>")
	require.Contains(t, out, "<node")
}
