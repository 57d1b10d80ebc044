package ir

// Procedure owns all instructions and moves of one function body: an
// ordered set of basic blocks forming a CFG, plus the arena of move-nodes
// and program operations they reference.
type Procedure struct {
	Name        string
	BasicBlocks []*BasicBlock

	nodes      []*MoveNode
	operations []*ProgramOperation
	byID       map[BasicBlockID]*BasicBlock

	Refs *RefManager
}

// NewProcedure creates an empty procedure.
func NewProcedure(name string) *Procedure {
	return &Procedure{
		Name: name,
		byID: make(map[BasicBlockID]*BasicBlock),
		Refs: NewRefManager(),
	}
}

// NewBasicBlock creates and appends a new basic block.
func (p *Procedure) NewBasicBlock(name string) *BasicBlock {
	bb := &BasicBlock{ID: BasicBlockID(len(p.BasicBlocks)), Name: name}
	p.BasicBlocks = append(p.BasicBlocks, bb)
	p.byID[bb.ID] = bb
	return bb
}

// Block looks up a basic block by ID.
func (p *Procedure) Block(id BasicBlockID) *BasicBlock { return p.byID[id] }

// NewNode allocates a fresh MoveNode owned by the procedure and appends it
// to bb. Identity (ID) is stable for the lifetime of the procedure.
func (p *Procedure) NewNode(bb *BasicBlock, mv Move) *MoveNode {
	n := &MoveNode{ID: MoveNodeID(len(p.nodes)), Move: mv, OperandIndex: -1, ResultIndex: -1}
	p.nodes = append(p.nodes, n)
	bb.addNode(n)
	return n
}

// Node looks up a move-node by ID.
func (p *Procedure) Node(id MoveNodeID) *MoveNode {
	if int(id) < 0 || int(id) >= len(p.nodes) {
		return nil
	}
	return p.nodes[id]
}

// Nodes returns every move-node owned by the procedure, across all blocks.
func (p *Procedure) Nodes() []*MoveNode { return p.nodes }

// NewOperation allocates a fresh ProgramOperation.
func (p *Procedure) NewOperation(fu, op string) *ProgramOperation {
	po := &ProgramOperation{ID: OperationID(len(p.operations)), FU: fu, OperationName: op, TriggerIndex: -1}
	p.operations = append(p.operations, po)
	return po
}

// Successors returns the basic blocks that are jump targets of bb.
func (p *Procedure) Successors(bb *BasicBlock) []*BasicBlock {
	out := make([]*BasicBlock, 0, len(bb.Successors))
	for _, id := range bb.Successors {
		out = append(out, p.byID[id])
	}
	return out
}

// Predecessors returns every basic block whose successor list contains bb.
func (p *Procedure) Predecessors(bb *BasicBlock) []*BasicBlock {
	var out []*BasicBlock
	for _, cand := range p.BasicBlocks {
		for _, s := range cand.Successors {
			if s == bb.ID {
				out = append(out, cand)
				break
			}
		}
	}
	return out
}
