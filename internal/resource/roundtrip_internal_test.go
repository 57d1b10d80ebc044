package resource

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

// deepCopy clones every reservation table of m so a before/after comparison
// isn't comparing a map against itself (spec.md section 8.7's round-trip
// property: assign followed by unassign must leave state byte-identical).
func deepCopy(m *Manager) *Manager {
	clone := &Manager{
		mach:        m.mach,
		ii:          m.ii,
		maxCycle:    m.maxCycle,
		hasMax:      m.hasMax,
		busUse:      cloneNested(m.busUse),
		fuUse:       cloneNested(m.fuUse),
		rfRead:      cloneNestedInt(m.rfRead),
		rfWrite:     cloneNestedInt(m.rfWrite),
		iuUse:       cloneNested(m.iuUse),
		assignments: make(map[ir.MoveNodeID]*assignment, len(m.assignments)),
	}
	for k, v := range m.assignments {
		cp := *v
		cp.fuCycles = append([]int(nil), v.fuCycles...)
		clone.assignments[k] = &cp
	}
	return clone
}

func cloneNested(src map[string]map[int]ir.MoveNodeID) map[string]map[int]ir.MoveNodeID {
	out := make(map[string]map[int]ir.MoveNodeID, len(src))
	for k, v := range src {
		inner := make(map[int]ir.MoveNodeID, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		out[k] = inner
	}
	return out
}

func cloneNestedInt(src map[string]map[int]int) map[string]map[int]int {
	out := make(map[string]map[int]int, len(src))
	for k, v := range src {
		inner := make(map[int]int, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		out[k] = inner
	}
	return out
}

func TestAssignUnassignRoundTrip(t *testing.T) {
	mach := machine.New()
	mach.Buses = []*machine.Bus{{Name: "B0", Width: 32, ShortImmediateWidth: 8}}
	mach.RegisterFiles = []*machine.RegisterFile{{Name: "RF", Width: 32, Size: 32, ReadPorts: 1, WritePorts: 1}}
	mach.Connect("B0", machine.RegisterReadSocket("RF"), machine.RegisterWriteSocket("RF"))

	rm := New(mach, 0)
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	n := proc.NewNode(bb, ir.Move{
		Source:      ir.RegisterTerminal(ir.Register{File: "RF", Index: 1}),
		Destination: ir.RegisterTerminal(ir.Register{File: "RF", Index: 2}),
	})

	before := deepCopy(rm)
	if !rm.Assign(3, n) {
		t.Fatal("expected Assign to succeed")
	}
	rm.Unassign(n)

	if diff := cmp.Diff(before, rm, cmp.AllowUnexported(Manager{}, assignment{}), cmp.Comparer(func(a, b *machine.Machine) bool { return a == b })); diff != "" {
		t.Fatalf("resource manager state differs after assign/unassign round-trip (-before +after):\n%s", diff)
	}
	if n.Move.Bus != ir.AnyBus {
		t.Fatalf("expected Move.Bus reset to AnyBus, got %d", n.Move.Bus)
	}
}

func TestAssignUnassignRoundTripWithLongImmediateAndFU(t *testing.T) {
	mach := machine.New()
	mach.Buses = []*machine.Bus{{Name: "B0", Width: 32, ShortImmediateWidth: 4}}
	mach.RegisterFiles = []*machine.RegisterFile{{Name: "RF", Width: 32, Size: 32, ReadPorts: 1, WritePorts: 1}}
	mach.FunctionUnits = []*machine.FunctionUnit{{
		Name: "ADD", NumOperandPorts: 1, NumResultPorts: 1,
		Operations: map[string]*machine.OperationSpec{
			"add": {Name: "add", NumOperands: 1, TriggerOperand: 0, ResultLatency: map[int]int{0: 1}, Pipeline: 2},
		},
	}}
	mach.ImmediateUnits = []*machine.ImmediateUnit{{Name: "IU0", Width: 32, Latency: 1}}
	mach.Connect("B0", machine.RegisterReadSocket("RF"), machine.FUOperandSocket("ADD", 0))

	rm := New(mach, 0)
	proc := ir.NewProcedure("p")
	bb := proc.NewBasicBlock("bb0")
	op := proc.NewOperation("ADD", "add")
	trig := proc.NewNode(bb, ir.Move{Source: ir.ImmediateTerminal(1 << 10), Destination: ir.FUOperandTerminal("ADD", 0)})
	trig.Operation, trig.IsTrigger, trig.OperandIndex = op, true, 0
	op.Operands = []*ir.MoveNode{trig}
	op.TriggerIndex = 0

	before := deepCopy(rm)
	if !rm.Assign(5, trig) {
		t.Fatal("expected Assign to succeed via the long-immediate unit")
	}
	rm.Unassign(trig)

	if diff := cmp.Diff(before, rm, cmp.AllowUnexported(Manager{}, assignment{}), cmp.Comparer(func(a, b *machine.Machine) bool { return a == b })); diff != "" {
		t.Fatalf("resource manager state differs after round-trip (-before +after):\n%s", diff)
	}
}
