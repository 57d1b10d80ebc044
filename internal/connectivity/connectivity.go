// Package connectivity implements the static queries of spec.md section 4.3:
// whether a move is directly representable on the target interconnect, and,
// when it isn't, the register-copy chain that bridges it through scratch
// register files.
package connectivity

import (
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

// socket resolves the read or write socket a terminal names. This mirrors
// resource.socket; the two packages answer different questions (reservation
// vs. reachability) over the same connection relation, so each keeps its
// own copy rather than sharing an exported helper across an otherwise
// unrelated dependency.
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

// CanTransportMove reports whether some bus connects a socket mv's source
// can write onto, to a socket mv's destination can read from, and returns
// the candidate buses. An immediate source is always transportable onto
// whatever bus reaches the destination (short/long-immediate feasibility is
// the resource manager's concern, not connectivity's).
func CanTransportMove(mach *machine.Machine, mv ir.Move) (bool, []string) {
	dst, ok := socket(mv.Destination, false)
	if !ok {
		return false, nil
	}
	toBuses := mach.BusesToSocket(dst)

	if mv.Source.Kind == ir.TerminalImmediate {
		return len(toBuses) > 0, append([]string(nil), toBuses...)
	}

	src, ok := socket(mv.Source, true)
	if !ok {
		return false, nil
	}
	fromBuses := mach.BusesFromSocket(src)

	var common []string
	for _, f := range fromBuses {
		for _, t := range toBuses {
			if f == t {
				common = append(common, f)
				break
			}
		}
	}
	return len(common) > 0, common
}
