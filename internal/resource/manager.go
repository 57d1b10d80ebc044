// Package resource implements the cycle-indexed reservation table that the
// bottom-up basic-block scheduler consults and updates: bus occupancy,
// function-unit pipeline slots, register-file port usage, and
// immediate-unit usage (spec.md section 4.2). All bookkeeping is modulo the
// manager's initiation interval when one has been set, so the same table
// serves both flat and software-pipelined scheduling.
package resource

import (
	"math/bits"

	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

// Manager is the resource manager (RM) of spec.md section 4.2. A Manager is
// scoped to one basic block for the duration of one scheduling attempt; the
// controller creates a fresh one per block, and a fresh one for every
// initiation interval the loop-scheduling search tries.
type Manager struct {
	mach *machine.Machine

	ii       int
	maxCycle int
	hasMax   bool

	busUse map[string]map[int]ir.MoveNodeID
	fuUse  map[string]map[int]ir.MoveNodeID
	rfRead map[string]map[int]int
	rfWrite map[string]map[int]int
	iuUse  map[string]map[int]ir.MoveNodeID

	assignments map[ir.MoveNodeID]*assignment
}

// assignment journals exactly what Assign reserved for one move-node, so
// Unassign can restore the manager's state byte-for-byte (spec.md section
// 4.2's round-trip guarantee, tested in section 8.7).
type assignment struct {
	cycle int
	bus   string

	readRF, writeRF string
	iu              string

	fuName   string
	fuCycles []int
}

// New creates an empty resource manager for mach with the given initiation
// interval (0 for a flat, non-pipelined basic block).
func New(mach *machine.Machine, ii int) *Manager {
	return &Manager{
		mach:        mach,
		ii:          ii,
		busUse:      make(map[string]map[int]ir.MoveNodeID),
		fuUse:       make(map[string]map[int]ir.MoveNodeID),
		rfRead:      make(map[string]map[int]int),
		rfWrite:     make(map[string]map[int]int),
		iuUse:       make(map[string]map[int]ir.MoveNodeID),
		assignments: make(map[ir.MoveNodeID]*assignment),
	}
}

// InitiationInterval returns the II this manager reserves modulo, or 0 for
// flat scheduling.
func (m *Manager) InitiationInterval() int { return m.ii }

// SetMaxCycle sets the hard ceiling past which Assign always fails.
func (m *Manager) SetMaxCycle(c int) {
	m.maxCycle = c
	m.hasMax = true
}

// LargestCycle returns the largest cycle at which a move is currently
// assigned, or -1 if nothing has been assigned yet. FU pipeline slots a
// trigger reserves after its own cycle are not counted.
func (m *Manager) LargestCycle() int {
	largest := -1
	for _, uses := range m.busUse {
		for c := range uses {
			if c > largest {
				largest = c
			}
		}
	}
	for _, a := range m.assignments {
		if a.cycle > largest {
			largest = a.cycle
		}
	}
	return largest
}

// SmallestCycle returns the smallest cycle at which a move is currently
// assigned, or -1 if nothing has been assigned yet.
func (m *Manager) SmallestCycle() int {
	smallest := -1
	for _, a := range m.assignments {
		if smallest == -1 || a.cycle < smallest {
			smallest = a.cycle
		}
	}
	return smallest
}

func (m *Manager) modulo(cycle int) int {
	if m.ii <= 0 {
		return cycle
	}
	c := cycle % m.ii
	if c < 0 {
		c += m.ii
	}
	return c
}

// socket resolves the read or write socket a terminal names, mirroring the
// connection relation the machine model exposes (spec.md section 4.3).
func socket(t ir.Terminal, isSource bool) (machine.Socket, bool) {
	switch t.Kind {
	case ir.TerminalRegister:
		if isSource {
			return machine.RegisterReadSocket(t.Reg.File), true
		}
		return machine.RegisterWriteSocket(t.Reg.File), true
	case ir.TerminalFUOperand:
		if !isSource {
			return machine.FUOperandSocket(t.FU, t.Port), true
		}
	case ir.TerminalFUResult:
		if isSource {
			return machine.FUResultSocket(t.FU, t.Port), true
		}
	case ir.TerminalReturnAddress:
		if !isSource {
			return machine.Socket{Kind: machine.SocketReturnAddress}, true
		}
	}
	return machine.Socket{}, false
}

// immediateBitWidth returns the number of bits needed to represent v in a
// sign-extended immediate field.
func immediateBitWidth(v int64) int {
	if v == 0 {
		return 1
	}
	if v > 0 {
		return bits.Len64(uint64(v)) + 1
	}
	return bits.Len64(^uint64(v)) + 1
}

// candidateBuses lists the buses that could carry mv, ignoring current
// reservations: for an immediate source, every bus that writes the
// destination socket and that can transport the constant (directly, or via
// a long-immediate unit); otherwise every bus connecting the source and
// destination sockets.
func (m *Manager) candidateBuses(mv ir.Move) []string {
	dst, ok := socket(mv.Destination, false)
	if !ok {
		return nil
	}
	toBuses := m.mach.BusesToSocket(dst)

	if mv.Source.Kind == ir.TerminalImmediate {
		needed := immediateBitWidth(mv.Source.Imm)
		var out []string
		for _, name := range toBuses {
			if b := m.mach.Bus(name); b != nil && b.ShortImmediateWidth >= needed {
				out = append(out, name)
			}
		}
		if len(out) == 0 {
			if _, ok := m.longImmediateUnit(needed); ok {
				return append([]string(nil), toBuses...)
			}
		}
		return out
	}

	src, ok := socket(mv.Source, true)
	if !ok {
		return nil
	}
	fromBuses := m.mach.BusesFromSocket(src)
	var out []string
	for _, f := range fromBuses {
		for _, t := range toBuses {
			if f == t {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// longImmediateUnit returns the narrowest immediate unit wide enough to
// carry a needed-bit constant, since a narrower unit costs fewer cycles to
// read out when more than one would serve (spec.md section 6: immediate
// units are one of the external collaborators the RM only queries).
func (m *Manager) longImmediateUnit(needed int) (*machine.ImmediateUnit, bool) {
	var best *machine.ImmediateUnit
	for _, iu := range m.mach.ImmediateUnits {
		if iu.Width < needed {
			continue
		}
		if best == nil || iu.Width < best.Width {
			best = iu
		}
	}
	return best, best != nil
}

// usesLongImmediate reports whether transporting mv's constant requires a
// long-immediate unit rather than a bus's short-immediate field, and which
// unit, given the currently chosen bus's short-immediate width.
func (m *Manager) usesLongImmediate(mv ir.Move, bus string) (string, bool) {
	if mv.Source.Kind != ir.TerminalImmediate {
		return "", false
	}
	needed := immediateBitWidth(mv.Source.Imm)
	if b := m.mach.Bus(bus); b != nil && b.ShortImmediateWidth >= needed {
		return "", false
	}
	iu, ok := m.longImmediateUnit(needed)
	if !ok {
		return "", false
	}
	return iu.Name, true
}

// CanTransportImmediate reports whether some bus (directly or via a
// long-immediate unit) can carry mv's constant value, without reserving
// anything.
func (m *Manager) CanTransportImmediate(mv ir.Move) bool {
	if mv.Source.Kind != ir.TerminalImmediate {
		return true
	}
	return len(m.candidateBuses(mv)) > 0
}

// busFree reports whether bus is unreserved at cycle (modulo II).
func (m *Manager) busFree(bus string, cycle int) bool {
	uses := m.busUse[bus]
	_, used := uses[m.modulo(cycle)]
	return !used
}

func (m *Manager) rfPortsFree(rf string, cycle int, read bool) bool {
	f := m.mach.RF(rf)
	if f == nil {
		return false
	}
	var table map[string]map[int]int
	var limit int
	if read {
		table = m.rfRead
		limit = f.ReadPorts
	} else {
		table = m.rfWrite
		limit = f.WritePorts
	}
	return table[rf][m.modulo(cycle)] < limit
}

func (m *Manager) fuPipelineFree(fu string, startCycle, pipeline int) bool {
	uses := m.fuUse[fu]
	for i := 0; i < pipeline; i++ {
		if _, used := uses[m.modulo(startCycle+i)]; used {
			return false
		}
	}
	return true
}

// operationSpec looks up the OperationSpec and owning FU name for node's
// program operation, if any.
func (m *Manager) operationSpec(node *ir.MoveNode) (*machine.FunctionUnit, *machine.OperationSpec) {
	if node.Operation == nil {
		return nil, nil
	}
	fu := m.mach.FU(node.Operation.FU)
	if fu == nil {
		return nil, nil
	}
	spec, _ := fu.Operation(node.Operation.OperationName)
	return fu, spec
}

// EarliestCycle returns the smallest cycle >= lowerBound at which node could
// be assigned given current reservations, or +Infinity if none exists
// within a reasonable search horizon (bounded by maxCycle, or by II when
// set, trying every residue once).
func (m *Manager) EarliestCycle(lowerBound int, node *ir.MoveNode) int {
	limit := lowerBound + m.searchHorizon()
	for c := lowerBound; c <= limit; c++ {
		if m.hasMax && c > m.maxCycle {
			break
		}
		if m.feasible(c, node) {
			return c
		}
	}
	return Infinity
}

// LatestCycle returns the largest cycle <= upperBound at which node could be
// assigned, or -1 if none exists within the search horizon.
func (m *Manager) LatestCycle(upperBound int, node *ir.MoveNode) int {
	if m.hasMax && upperBound > m.maxCycle {
		upperBound = m.maxCycle
	}
	limit := upperBound - m.searchHorizon()
	for c := upperBound; c >= limit; c-- {
		if c < 0 {
			break
		}
		if m.feasible(c, node) {
			return c
		}
	}
	return NegInfinity
}

// searchHorizon bounds how many candidate cycles EarliestCycle/LatestCycle
// will probe: one full period when software-pipelining (reservations repeat
// every II cycles, so nothing is gained scanning further), or a generous
// flat-schedule horizon otherwise.
func (m *Manager) searchHorizon() int {
	if m.ii > 0 {
		return m.ii
	}
	return 4096
}

// pickBus returns a bus free at cycle that can carry mv, plus the
// long-immediate unit it would need (if any), or ok=false if none is free.
func (m *Manager) pickBus(cycle int, mv ir.Move) (bus, iu string, ok bool) {
	for _, b := range m.candidateBuses(mv) {
		if !m.busFree(b, cycle) {
			continue
		}
		neededIU, usesIU := m.usesLongImmediate(mv, b)
		if usesIU && !m.iuFree(neededIU, cycle) {
			continue
		}
		return b, neededIU, true
	}
	return "", "", false
}

func (m *Manager) iuFree(iu string, cycle int) bool {
	_, used := m.iuUse[iu][m.modulo(cycle)]
	return !used
}

// feasible reports whether node could be assigned at cycle without actually
// reserving anything.
func (m *Manager) feasible(cycle int, node *ir.MoveNode) bool {
	if cycle < 0 {
		return false
	}
	if _, _, ok := m.pickBus(cycle, node.Move); !ok {
		return false
	}
	if node.Move.Source.Kind == ir.TerminalRegister {
		if !m.rfPortsFree(node.Move.Source.Reg.File, cycle, true) {
			return false
		}
	}
	if node.Move.Destination.Kind == ir.TerminalRegister {
		if !m.rfPortsFree(node.Move.Destination.Reg.File, cycle, false) {
			return false
		}
	}
	if node.IsTrigger {
		fu, spec := m.operationSpec(node)
		if fu != nil && spec != nil {
			if !m.fuPipelineFree(fu.Name, cycle, maxInt(spec.Pipeline, 1)) {
				return false
			}
		}
	}
	return true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Assign reserves every resource node needs at cycle: a free bus, register
// read/write ports, and (if node triggers an operation) the FU's pipeline
// slots for the operation's duration. It succeeds iff EarliestCycle or
// LatestCycle would have returned cycle for node; callers must not call it
// speculatively on a cycle they haven't already validated.
func (m *Manager) Assign(cycle int, node *ir.MoveNode) bool {
	if m.hasMax && cycle > m.maxCycle {
		return false
	}
	if !m.feasible(cycle, node) {
		return false
	}
	if _, already := m.assignments[node.ID]; already {
		return false
	}

	bus, iu, ok := m.pickBus(cycle, node.Move)
	if !ok {
		return false
	}

	a := &assignment{cycle: cycle, bus: bus}

	mc := m.modulo(cycle)
	if m.busUse[bus] == nil {
		m.busUse[bus] = make(map[int]ir.MoveNodeID)
	}
	m.busUse[bus][mc] = node.ID
	node.Move.Bus = busIndex(m.mach, bus)

	if iu != "" {
		if m.iuUse[iu] == nil {
			m.iuUse[iu] = make(map[int]ir.MoveNodeID)
		}
		m.iuUse[iu][mc] = node.ID
		a.iu = iu
	}

	if node.Move.Source.Kind == ir.TerminalRegister {
		rf := node.Move.Source.Reg.File
		if m.rfRead[rf] == nil {
			m.rfRead[rf] = make(map[int]int)
		}
		m.rfRead[rf][mc]++
		a.readRF = rf
	}
	if node.Move.Destination.Kind == ir.TerminalRegister {
		rf := node.Move.Destination.Reg.File
		if m.rfWrite[rf] == nil {
			m.rfWrite[rf] = make(map[int]int)
		}
		m.rfWrite[rf][mc]++
		a.writeRF = rf
	}
	if node.IsTrigger {
		if fu, spec := m.operationSpec(node); fu != nil && spec != nil {
			pipeline := maxInt(spec.Pipeline, 1)
			if m.fuUse[fu.Name] == nil {
				m.fuUse[fu.Name] = make(map[int]ir.MoveNodeID)
			}
			for i := 0; i < pipeline; i++ {
				mci := m.modulo(cycle + i)
				m.fuUse[fu.Name][mci] = node.ID
				a.fuCycles = append(a.fuCycles, mci)
			}
			a.fuName = fu.Name
		}
	}

	m.assignments[node.ID] = a
	return true
}

// busIndex maps a bus name back to the machine's declaration-order index,
// the representation Move.Bus uses (spec.md section 3: "bus is chosen at
// scheduling time").
func busIndex(mach *machine.Machine, name string) int {
	for i, b := range mach.Buses {
		if b.Name == name {
			return i
		}
	}
	return ir.AnyBus
}

// Unassign is the exact inverse of Assign: it restores every reservation
// table to the state it had before node was assigned.
func (m *Manager) Unassign(node *ir.MoveNode) {
	a, ok := m.assignments[node.ID]
	if !ok {
		return
	}
	delete(m.assignments, node.ID)

	mc := m.modulo(a.cycle)
	delete(m.busUse[a.bus], mc)
	if len(m.busUse[a.bus]) == 0 {
		delete(m.busUse, a.bus)
	}
	node.Move.Bus = ir.AnyBus

	if a.iu != "" {
		delete(m.iuUse[a.iu], mc)
		if len(m.iuUse[a.iu]) == 0 {
			delete(m.iuUse, a.iu)
		}
	}

	if a.readRF != "" {
		m.rfRead[a.readRF][mc]--
		if m.rfRead[a.readRF][mc] == 0 {
			delete(m.rfRead[a.readRF], mc)
		}
		if len(m.rfRead[a.readRF]) == 0 {
			delete(m.rfRead, a.readRF)
		}
	}
	if a.writeRF != "" {
		m.rfWrite[a.writeRF][mc]--
		if m.rfWrite[a.writeRF][mc] == 0 {
			delete(m.rfWrite[a.writeRF], mc)
		}
		if len(m.rfWrite[a.writeRF]) == 0 {
			delete(m.rfWrite, a.writeRF)
		}
	}
	if a.fuName != "" {
		for _, c := range a.fuCycles {
			delete(m.fuUse[a.fuName], c)
		}
		if len(m.fuUse[a.fuName]) == 0 {
			delete(m.fuUse, a.fuName)
		}
	}
}

// Infinity and NegInfinity are the sentinel return values of EarliestCycle
// and LatestCycle, matching ddg.Infinity/ddg.NegInfinity (spec.md section
// 4.2).
const (
	Infinity    = 1<<31 - 1
	NegInfinity = -1
)
