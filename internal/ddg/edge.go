// Package ddg builds and maintains the per-basic-block data-dependence
// graph: a directed multigraph of move-nodes with typed, latency-labelled
// edges, supporting the subgraphing, earliest/latest-cycle queries and
// merge/unmerge-for-bypass operations the scheduler relies on (spec.md
// section 4.1).
package ddg

import (
	"fmt"

	"github.com/ttasched/ttasched/internal/ir"
)

// EdgeKind discriminates the dependence relation an Edge represents.
type EdgeKind int

const (
	EdgeRegisterRAW EdgeKind = iota
	EdgeRegisterWAR
	EdgeRegisterWAW
	EdgeMemoryRAW
	EdgeMemoryWAR
	EdgeMemoryWAW
	// EdgeOperation is the intra-program-operation edge from each
	// non-trigger operand to the trigger, and from the trigger to each
	// result.
	EdgeOperation
	// EdgeGuardRAW runs from the defining move of a guard register to
	// every move it guards.
	EdgeGuardRAW
)

// String implements fmt.Stringer.
func (k EdgeKind) String() string {
	switch k {
	case EdgeRegisterRAW:
		return "reg-raw"
	case EdgeRegisterWAR:
		return "reg-war"
	case EdgeRegisterWAW:
		return "reg-waw"
	case EdgeMemoryRAW:
		return "mem-raw"
	case EdgeMemoryWAR:
		return "mem-war"
	case EdgeMemoryWAW:
		return "mem-waw"
	case EdgeOperation:
		return "operation"
	case EdgeGuardRAW:
		return "guard-raw"
	default:
		return "unknown"
	}
}

// IsRegister reports whether k is one of the register dependence kinds.
func (k EdgeKind) IsRegister() bool {
	return k == EdgeRegisterRAW || k == EdgeRegisterWAR || k == EdgeRegisterWAW
}

// IsMemory reports whether k is one of the memory dependence kinds.
func (k EdgeKind) IsMemory() bool {
	return k == EdgeMemoryRAW || k == EdgeMemoryWAR || k == EdgeMemoryWAW
}

// Edge is a typed, latency-labelled dependence edge between two move-nodes:
// From.Cycle + Latency <= To.Cycle must hold at schedule time (or, for a
// back-edge in a loop body, From.Cycle + Latency <= To.Cycle + II).
type Edge struct {
	From, To ir.MoveNodeID
	Kind     EdgeKind
	Register ir.Register // valid when Kind.IsRegister()
	Latency  int
	BackEdge bool
}

// String implements fmt.Stringer for debugging.
func (e *Edge) String() string {
	be := ""
	if e.BackEdge {
		be = " (back)"
	}
	return fmt.Sprintf("n%d -[%s/%d]-> n%d%s", e.From, e.Kind, e.Latency, e.To, be)
}
