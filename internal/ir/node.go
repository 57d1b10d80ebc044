package ir

import "fmt"

// MoveNodeID is a stable identity for a MoveNode across all transformations
// (bypass, renaming, copy insertion). It is the index into the owning
// Procedure's node arena.
type MoveNodeID int

// Placement is a move-node's scheduling state.
type Placement struct {
	Placed bool
	Cycle  int
}

// Unplace resets p to the Unplaced state.
func (p *Placement) Unplace() { *p = Placement{} }

// Place sets p to Placed(cycle).
func (p *Placement) Place(cycle int) { *p = Placement{Placed: true, Cycle: cycle} }

// OperationID identifies a ProgramOperation within a BasicBlock.
type OperationID int

// MoveNode is a Move together with its placement state and its membership
// in a program operation, if any. Identity (ID) is stable across subgraphing,
// merging, renaming and copy insertion; moving a node to a different basic
// block requires creating a new node (spec.md section 3).
type MoveNode struct {
	ID   MoveNodeID
	Move Move
	BB   BasicBlockID

	Placement Placement

	// Operation is the program operation this node belongs to, or nil for a
	// plain register-to-register move (e.g. a temp copy) that isn't part of
	// one.
	Operation *ProgramOperation
	// OperandIndex is this node's operand index within Operation (only
	// meaningful for operand moves); -1 otherwise.
	OperandIndex int
	// IsTrigger is true if this operand node is the one whose write starts
	// the operation's pipeline.
	IsTrigger bool
	// ResultIndex is this node's result index within Operation (only
	// meaningful for result moves); -1 otherwise.
	ResultIndex int

	// dead marks a node identified as a dead-result candidate by bypass;
	// finalize drops it from the DDG and the block.
	dead bool
}

// Dead reports whether this node has been marked as a dead-result
// candidate by bypass (spec.md section 4.5).
func (n *MoveNode) Dead() bool { return n.dead }

// MarkDead marks n as a dead-result candidate.
func (n *MoveNode) MarkDead() { n.dead = true }

// UnmarkDead reverses MarkDead, e.g. when a bypass that made n's result
// unused is rolled back.
func (n *MoveNode) UnmarkDead() { n.dead = false }

// IsOperand reports whether n is an operand move of a program operation.
func (n *MoveNode) IsOperand() bool { return n.Operation != nil && n.ResultIndex < 0 }

// IsResult reports whether n is a result move of a program operation.
func (n *MoveNode) IsResult() bool { return n.Operation != nil && n.ResultIndex >= 0 }

// String implements fmt.Stringer for debugging.
func (n *MoveNode) String() string {
	state := "unplaced"
	if n.Placement.Placed {
		state = fmt.Sprintf("@%d", n.Placement.Cycle)
	}
	return fmt.Sprintf("n%d(%s)%s", n.ID, n.Move, state)
}

// MemoryAccessKind classifies whether a program operation touches memory,
// and how, for conservative memory dependence ordering in the DDG.
type MemoryAccessKind int

const (
	MemoryAccessNone MemoryAccessKind = iota
	MemoryAccessLoad
	MemoryAccessStore
)

// ProgramOperation is the set of move-nodes that together invoke one machine
// operation: one or more operand moves (one of them the trigger) and zero
// or more result moves.
type ProgramOperation struct {
	ID            OperationID
	FU            string
	OperationName string

	Operands     []*MoveNode // indexed by operand index
	TriggerIndex int
	Results      []*MoveNode // indexed by result index

	// FUBound is true once any operand of this operation has been placed,
	// at which point the FU binding is fixed (spec.md section 3).
	FUBound bool

	// MemoryAccess classifies this operation for conservative memory
	// dependence edges (no alias analysis is performed; all loads and
	// stores within a basic block are ordered by program order, matching
	// the DDG's "Memory RAW|WAR|WAW" edge kinds of spec.md section 3).
	MemoryAccess MemoryAccessKind
}

// Trigger returns the operand node that fires the operation, or nil if it
// hasn't been assigned an operand list yet.
func (p *ProgramOperation) Trigger() *MoveNode {
	if p.TriggerIndex < 0 || p.TriggerIndex >= len(p.Operands) {
		return nil
	}
	return p.Operands[p.TriggerIndex]
}
