package connectivity_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttasched/ttasched/internal/connectivity"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

func twoBusMachine() *machine.Machine {
	mach := machine.New()
	mach.Buses = []*machine.Bus{
		{Name: "B0", Width: 32, ShortImmediateWidth: 8},
		{Name: "B1", Width: 32, ShortImmediateWidth: 8},
	}
	mach.RegisterFiles = []*machine.RegisterFile{
		{Name: "RF1", Width: 32, Size: 8, ReadPorts: 1, WritePorts: 1},
		{Name: "RF2", Width: 32, Size: 8, ReadPorts: 1, WritePorts: 1},
	}
	mach.Connect("B0", machine.RegisterReadSocket("RF1"), machine.RegisterWriteSocket("RF1"))
	mach.Connect("B1", machine.RegisterReadSocket("RF2"), machine.RegisterWriteSocket("RF2"))
	return mach
}

func TestCanTransportMoveDirect(t *testing.T) {
	mach := twoBusMachine()
	mv := ir.Move{
		Source:      ir.RegisterTerminal(ir.Register{File: "RF1", Index: 0}),
		Destination: ir.RegisterTerminal(ir.Register{File: "RF1", Index: 1}),
	}
	ok, buses := connectivity.CanTransportMove(mach, mv)
	require.True(t, ok)
	require.Equal(t, []string{"B0"}, buses)
}

func TestCanTransportMoveNoCommonBus(t *testing.T) {
	mach := twoBusMachine()
	mv := ir.Move{
		Source:      ir.RegisterTerminal(ir.Register{File: "RF1", Index: 0}),
		Destination: ir.RegisterTerminal(ir.Register{File: "RF2", Index: 1}),
	}
	ok, buses := connectivity.CanTransportMove(mach, mv)
	require.False(t, ok)
	require.Empty(t, buses)
}

func TestCanTransportMoveImmediate(t *testing.T) {
	mach := twoBusMachine()
	mv := ir.Move{
		Source:      ir.ImmediateTerminal(7),
		Destination: ir.RegisterTerminal(ir.Register{File: "RF2", Index: 0}),
	}
	ok, buses := connectivity.CanTransportMove(mach, mv)
	require.True(t, ok)
	require.Equal(t, []string{"B1"}, buses)
}
