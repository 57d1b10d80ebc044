package ir

// Ref is a reference-stable handle to a move-node, used for jump targets
// and other outstanding pointers into the procedure that must keep
// resolving correctly across instruction replacement (spec.md section 6).
// This mirrors the role of the original TCE compiler's
// TerminalBasicBlockReference: a jump doesn't point at "the Nth instruction
// of block B" but at a handle that gets forwarded whenever that instruction
// is replaced.
type Ref struct {
	id int
}

// RefManager owns the mapping from Ref handles to their current target
// move-node. The copy adder forwards references from a move it replaces
// with a chain to the chain's first hop, and back when the chain is undone.
// The renamer rewrites a move in place, so its references stay valid. A
// move dropped as dead code (the pre-scheduling pass, or bypass's
// dead-result drop) is not forwarded: a reference to it keeps resolving to
// the dropped node.
type RefManager struct {
	targets []*MoveNode
}

// NewRefManager creates an empty RefManager.
func NewRefManager() *RefManager { return &RefManager{} }

// NewRef creates a fresh reference pointing at target.
func (m *RefManager) NewRef(target *MoveNode) Ref {
	r := Ref{id: len(m.targets)}
	m.targets = append(m.targets, target)
	return r
}

// Target returns the move-node that ref currently resolves to.
func (m *RefManager) Target(ref Ref) *MoveNode {
	if ref.id < 0 || ref.id >= len(m.targets) {
		return nil
	}
	return m.targets[ref.id]
}

// Forward retargets every outstanding reference to old so that it now
// resolves to replacement. The copy adder's SpliceChain and UndoChain call
// it.
func (m *RefManager) Forward(old, replacement *MoveNode) {
	for i, t := range m.targets {
		if t == old {
			m.targets[i] = replacement
		}
	}
}
