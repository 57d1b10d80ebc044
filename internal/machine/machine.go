// Package machine is the read-only description of a target exposed-datapath
// processor: its buses, function units (with per-operation latency tables
// and per-operand ports), register files (with read/write ports and
// widths), immediate units, guards and the connection relation between
// them. Nothing in the scheduler core is allowed to mutate a *Machine once
// it has been built (spec.md section 5).
package machine

// Bus is a transport channel: at most one move may use a given bus in a
// given cycle.
type Bus struct {
	Name string
	// Width is the full data width the bus can carry.
	Width int
	// ShortImmediateWidth is the widest immediate this bus can carry
	// directly; wider constants need a long-immediate unit (spec.md
	// section 4.3/4.2 canTransportImmediate).
	ShortImmediateWidth int
	// Guarded is true if moves on this bus may carry a guard.
	Guarded bool
}

// OperationSpec describes one operation a FunctionUnit supports: its
// operand count, which operand index triggers it, and the latency from
// trigger to each result becoming readable.
type OperationSpec struct {
	Name           string
	NumOperands    int
	TriggerOperand int
	// ResultLatency maps result index to the number of cycles after the
	// trigger's cycle at which that result is ready (spec.md section 3's
	// "resultLatency(result-operand)").
	ResultLatency map[int]int
	// Pipeline is the number of consecutive cycles, starting at the
	// trigger's cycle, during which the FU's issue slot for this operation
	// is occupied and cannot accept another trigger.
	Pipeline int
	// Commutative marks an operation whose operands may be freely
	// reordered, enabling the scheduler's commutative-operand-swap
	// heuristic (spec.md section 4.5) to pick the most advantageous
	// operand as trigger.
	Commutative bool
}

// NumResults returns how many result ports this operation produces.
func (o *OperationSpec) NumResults() int { return len(o.ResultLatency) }

// FunctionUnit is a functional unit exposing one operand port per operand
// slot and one result port per result slot, across all operations it
// supports (the union of operand/result counts, per TCE's "binding to the
// same FU once the trigger is placed").
type FunctionUnit struct {
	Name           string
	Operations     map[string]*OperationSpec
	NumOperandPorts int
	NumResultPorts  int
}

// Operation looks up an operation supported by the FU by name.
func (f *FunctionUnit) Operation(name string) (*OperationSpec, bool) {
	op, ok := f.Operations[name]
	return op, ok
}

// RegisterFile is a bank of architectural registers of uniform width.
type RegisterFile struct {
	Name       string
	Width      int
	Size       int
	ReadPorts  int
	WritePorts int
	// Scratch marks a register file that is reserved for use as a temp-copy
	// bridge by the connectivity/copy-adder subsystem, not for ordinary
	// register allocation output (spec.md section 4.3, GLOSSARY).
	Scratch bool
}

// ImmediateUnit transports a long immediate that doesn't fit in any bus's
// short-immediate field; reading it out costs an extra Latency cycles
// relative to a directly bus-transported constant.
type ImmediateUnit struct {
	Name    string
	Width   int
	Latency int
}

// GuardSpec declares that a register may be used as a one-bit guard, and
// how many cycles must elapse between the register's defining move and any
// move it guards.
type GuardSpec struct {
	Reg     RegisterRef
	Latency int
}

// RegisterRef names a register independent of the ir package, so the
// machine model has no dependency on the procedure IR it describes.
type RegisterRef struct {
	File  string
	Index int
}

// SocketKind discriminates what a Socket names.
type SocketKind int

const (
	SocketRegisterRead SocketKind = iota
	SocketRegisterWrite
	SocketFUOperand
	SocketFUResult
	SocketImmediateUnit
	SocketReturnAddress
)

// Socket is an addressable read or write point in the datapath: a register
// file's read or write ports, a function unit's operand or result port, an
// immediate unit, or the control unit's return-address port.
type Socket struct {
	Kind SocketKind
	Name string // register file name, or FU name
	Port int    // operand/result index; unused for register/IU/RA sockets
}

// RegisterReadSocket builds the read socket of a register file.
func RegisterReadSocket(rf string) Socket { return Socket{Kind: SocketRegisterRead, Name: rf} }

// RegisterWriteSocket builds the write socket of a register file.
func RegisterWriteSocket(rf string) Socket { return Socket{Kind: SocketRegisterWrite, Name: rf} }

// FUOperandSocket builds the operand socket of a function unit.
func FUOperandSocket(fu string, port int) Socket {
	return Socket{Kind: SocketFUOperand, Name: fu, Port: port}
}

// FUResultSocket builds the result socket of a function unit.
func FUResultSocket(fu string, port int) Socket {
	return Socket{Kind: SocketFUResult, Name: fu, Port: port}
}

// Machine is the complete read-only target description.
type Machine struct {
	Buses          []*Bus
	FunctionUnits  []*FunctionUnit
	RegisterFiles  []*RegisterFile
	ImmediateUnits []*ImmediateUnit
	Guards         []*GuardSpec

	// readBuses[s] lists the buses that can carry a value read out of
	// socket s; writeBuses[s] lists the buses that can carry a value into
	// socket s. Together these define the connection relation queried by
	// the connectivity package.
	readBuses  map[Socket][]string
	writeBuses map[Socket][]string
}

// New creates an empty Machine; callers populate the slices and then call
// Connect for each readable/writable socket pair before first use.
func New() *Machine {
	return &Machine{
		readBuses:  make(map[Socket][]string),
		writeBuses: make(map[Socket][]string),
	}
}

// Connect declares that bus can carry a value out of readSocket into
// writeSocket. Call once per (bus, source-socket, dest-socket) triple the
// ADF actually wires up.
func (m *Machine) Connect(bus string, readSocket, writeSocket Socket) {
	m.readBuses[readSocket] = appendUnique(m.readBuses[readSocket], bus)
	m.writeBuses[writeSocket] = appendUnique(m.writeBuses[writeSocket], bus)
}

func appendUnique(ss []string, s string) []string {
	for _, x := range ss {
		if x == s {
			return ss
		}
	}
	return append(ss, s)
}

// BusesFromSocket returns the buses that can read out of s.
func (m *Machine) BusesFromSocket(s Socket) []string { return m.readBuses[s] }

// BusesToSocket returns the buses that can write into s.
func (m *Machine) BusesToSocket(s Socket) []string { return m.writeBuses[s] }

// FU looks up a function unit by name.
func (m *Machine) FU(name string) *FunctionUnit {
	for _, f := range m.FunctionUnits {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// RF looks up a register file by name.
func (m *Machine) RF(name string) *RegisterFile {
	for _, r := range m.RegisterFiles {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Bus looks up a bus by name.
func (m *Machine) Bus(name string) *Bus {
	for _, b := range m.Buses {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// GuardLatency returns the declared guard latency for reg, and whether reg
// may be used as a guard at all.
func (m *Machine) GuardLatency(reg RegisterRef) (int, bool) {
	for _, g := range m.Guards {
		if g.Reg == reg {
			return g.Latency, true
		}
	}
	return 0, false
}

// ScratchRegisterFiles returns every register file marked Scratch, in
// declaration order (the processor-global scratch-file list of spec.md
// section 4.3).
func (m *Machine) ScratchRegisterFiles() []*RegisterFile {
	var out []*RegisterFile
	for _, rf := range m.RegisterFiles {
		if rf.Scratch {
			out = append(out, rf)
		}
	}
	return out
}
