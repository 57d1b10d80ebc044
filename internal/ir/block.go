package ir

// BasicBlockID identifies a basic block within a Procedure.
type BasicBlockID int

// NoBlock is the sentinel BasicBlockID for "no such block".
const NoBlock BasicBlockID = -1

// BasicBlock is an ordered sequence of instructions, each instruction being
// the set of moves issued in one cycle on distinct buses. Before scheduling,
// a basic block is just its Nodes in program order; after scheduling,
// Instructions holds the cycle-indexed write-back.
type BasicBlock struct {
	ID   BasicBlockID
	Name string

	Nodes      []*MoveNode
	Operations []*ProgramOperation

	// TripCount is the known iteration count for a single-basic-block loop,
	// or nil if unknown/not a loop.
	TripCount *int

	// Successors lists the jump targets of this block's control-flow move,
	// in CFG edge order. A block with no successors is a sink.
	Successors []BasicBlockID

	// DelaySlots is the number of cycles after a control-flow move's cycle
	// during which non-control instructions may still execute.
	DelaySlots int

	// Instructions is the final cycle-indexed placement, populated by
	// write-back after scheduling: Instructions[cycle] holds the moves
	// placed at that cycle.
	Instructions [][]MoveNodeID

	nextLocal MoveNodeID
}

// IsSink reports whether bb has no outgoing jump edge (spec.md section 4.6).
func (bb *BasicBlock) IsSink() bool { return len(bb.Successors) == 0 }

// IsSingleBBLoop reports whether bb is a candidate for software pipelining:
// it has a known trip count and one of its successors is itself.
func (bb *BasicBlock) IsSingleBBLoop() bool {
	if bb.TripCount == nil {
		return false
	}
	for _, s := range bb.Successors {
		if s == bb.ID {
			return true
		}
	}
	return false
}

// ControlFlowNode returns the move-node whose destination is the
// return-address port, or nil if this block has none.
func (bb *BasicBlock) ControlFlowNode() *MoveNode {
	for _, n := range bb.Nodes {
		if n.Move.IsControlFlow() {
			return n
		}
	}
	return nil
}

// addNode appends a freshly-built move-node to bb. Procedure.NewNode, which
// also registers the node in the procedure's node arena, calls this.
func (bb *BasicBlock) addNode(n *MoveNode) {
	n.BB = bb.ID
	bb.Nodes = append(bb.Nodes, n)
}

// Reattach re-inserts a previously-removed node (one that already has a
// stable ID from Procedure.NewNode) back into bb.Nodes, e.g. when a
// connectivity register-copy chain is rolled back. Unlike Procedure.NewNode
// it allocates no new identity.
func (bb *BasicBlock) Reattach(n *MoveNode) {
	bb.addNode(n)
}

// RemoveNode deletes n from bb.Nodes. It does not touch the DDG; callers
// must have already detached n from any graph that references it.
func (bb *BasicBlock) RemoveNode(n *MoveNode) {
	for i, m := range bb.Nodes {
		if m.ID == n.ID {
			bb.Nodes = append(bb.Nodes[:i], bb.Nodes[i+1:]...)
			return
		}
	}
}
