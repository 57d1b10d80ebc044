package connectivity

import (
	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/interpass"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
	"github.com/ttasched/ttasched/internal/xerrors"
)

// Adder inserts register-copy chains through scratch register files when
// CanTransportMove finds no direct bus (spec.md section 4.3). One Adder is
// scoped to a single basic-block scheduling attempt: it remembers the last
// chain-inserted use of each scratch file so successive chains that reuse
// the same scratch register get ordered against each other. Scratch files
// are reserved exclusively for the adder's own bridging use (see
// machine.RegisterFile.Scratch), so no other producer of anti-dependence
// edges on them exists within the block.
type Adder struct {
	mach    *machine.Machine
	scratch map[string]ir.Register

	lastUse map[string]*ir.MoveNode
}

// NewAdder builds an Adder for mach, reading the scratch-register inventory
// out of the inter-pass channel.
func NewAdder(mach *machine.Machine, ip *interpass.Data) *Adder {
	s := make(map[string]ir.Register, len(ip.ScratchRegisters))
	for _, sr := range ip.ScratchRegisters {
		s[sr.File] = ir.Register{File: sr.File, Index: sr.Index}
	}
	return &Adder{mach: mach, scratch: s, lastUse: make(map[string]*ir.MoveNode)}
}

const (
	nodeSource = "\x00source"
	nodeDest   = "\x00dest"
)

// FindChain does a breadth-first search over the register-file connectivity
// relation, restricted to scratch files, for the shortest hop sequence
// bridging src to dst. It returns ok=false if none exists (the caller should
// surface xerrors.ErrConnectivityUnsatisfiable).
func (a *Adder) FindChain(src, dst ir.Terminal) ([]*machine.RegisterFile, bool) {
	srcSocket, ok := socket(src, true)
	if !ok {
		return nil, false
	}
	dstSocket, ok := socket(dst, false)
	if !ok {
		return nil, false
	}

	scratch := a.mach.ScratchRegisterFiles()
	if len(scratch) == 0 {
		return nil, false
	}

	adj := func(node string) []string {
		var out []string
		switch node {
		case nodeSource:
			for _, rf := range scratch {
				if busConnects(a.mach, srcSocket, machine.RegisterWriteSocket(rf.Name)) {
					out = append(out, rf.Name)
				}
			}
		default:
			for _, rf := range scratch {
				if rf.Name == node {
					continue
				}
				if busConnects(a.mach, machine.RegisterReadSocket(node), machine.RegisterWriteSocket(rf.Name)) {
					out = append(out, rf.Name)
				}
			}
			if busConnects(a.mach, machine.RegisterReadSocket(node), dstSocket) {
				out = append(out, nodeDest)
			}
		}
		return out
	}

	prev := map[string]string{nodeSource: ""}
	queue := []string{nodeSource}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == nodeDest {
			return reconstructChain(a.mach, prev, cur), true
		}
		for _, next := range adj(cur) {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			queue = append(queue, next)
		}
	}
	return nil, false
}

func busConnects(mach *machine.Machine, read, write machine.Socket) bool {
	for _, b := range mach.BusesFromSocket(read) {
		for _, b2 := range mach.BusesToSocket(write) {
			if b == b2 {
				return true
			}
		}
	}
	return false
}

func reconstructChain(mach *machine.Machine, prev map[string]string, end string) []*machine.RegisterFile {
	var names []string
	for n := end; n != nodeSource; n = prev[n] {
		if n != nodeDest {
			names = append(names, n)
		}
	}
	// names was built dest-to-source; reverse to source-to-dest order.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	out := make([]*machine.RegisterFile, len(names))
	for i, n := range names {
		out[i] = mach.RF(n)
	}
	return out
}

// ChainRecord journals a spliced chain so the caller can unwind it on
// scheduling failure, mirroring ddg.MergeRecord's reversible-transaction
// shape (spec.md section 4.5: "all of bypass/merge/renaming/temp-copy
// additions are journaled").
type ChainRecord struct {
	Original *ir.MoveNode
	Hops     []*ir.MoveNode
}

// SpliceChain replaces node, whose move could not be transported directly,
// with a chain of hops through files (as found by FindChain): node.Source
// -> files[0] -> ... -> files[n-1] -> node.Destination. It rewires every
// DDG edge that was incident on node onto the chain's endpoints, and — if
// node was an operand or result move of a program operation — repoints that
// operation's operand/result slot at the new endpoint node.
func (a *Adder) SpliceChain(proc *ir.Procedure, g *ddg.Graph, bb *ir.BasicBlock, node *ir.MoveNode, files []*machine.RegisterFile) (*ChainRecord, error) {
	if len(files) == 0 {
		return nil, xerrors.Wrap(xerrors.ErrConnectivityUnsatisfiable, "register copy adder: empty chain")
	}

	regs := make([]ir.Register, len(files))
	for i, f := range files {
		r, ok := a.scratch[f.Name]
		if !ok {
			return nil, xerrors.Wrapf(xerrors.ErrIllegalMachine, "scratch register file %q has no reserved register", f.Name)
		}
		regs[i] = r
	}

	path := make([]ir.Terminal, 0, len(regs)+2)
	path = append(path, node.Move.Source)
	for _, r := range regs {
		path = append(path, ir.RegisterTerminal(r))
	}
	path = append(path, node.Move.Destination)

	hops := make([]*ir.MoveNode, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		var guard *ir.Guard
		if i == len(path)-2 {
			guard = node.Move.Guard
		}
		hop := proc.NewNode(bb, ir.Move{Source: path[i], Destination: path[i+1], Guard: guard})
		hops = append(hops, hop)
		g.AddNode(hop)
	}

	for i := 0; i < len(hops)-1; i++ {
		g.AddDependence(hops[i].ID, hops[i+1].ID, ddg.EdgeRegisterRAW, regs[i], ddg.RegisterEdgeLatency, false)
	}

	a.linkScratchReuse(g, hops, regs)

	for _, e := range append([]*ddg.Edge(nil), g.InEdges(node.ID)...) {
		g.RemoveEdge(e)
		g.AddDependence(e.From, hops[0].ID, e.Kind, e.Register, e.Latency, e.BackEdge)
	}
	for _, e := range append([]*ddg.Edge(nil), g.OutEdges(node.ID)...) {
		g.RemoveEdge(e)
		g.AddDependence(hops[len(hops)-1].ID, e.To, e.Kind, e.Register, e.Latency, e.BackEdge)
	}

	if node.Operation != nil {
		if node.IsOperand() && node.OperandIndex >= 0 && node.OperandIndex < len(node.Operation.Operands) {
			last := hops[len(hops)-1]
			last.Operation, last.OperandIndex, last.IsTrigger = node.Operation, node.OperandIndex, node.IsTrigger
			node.Operation.Operands[node.OperandIndex] = last
		}
		if node.IsResult() && node.ResultIndex >= 0 && node.ResultIndex < len(node.Operation.Results) {
			first := hops[0]
			first.Operation, first.ResultIndex = node.Operation, node.ResultIndex
			node.Operation.Results[node.ResultIndex] = first
		}
	}

	proc.Refs.Forward(node, hops[0])
	g.DropNode(node)
	bb.RemoveNode(node)

	return &ChainRecord{Original: node, Hops: hops}, nil
}

// linkScratchReuse orders this chain's scratch writes after whatever chain
// most recently used the same scratch file: a WAW edge from that chain's
// writer, and a WAR edge from each of its register-RAW readers of the
// scratch register. It then updates the bookkeeping for the next chain to
// consult.
func (a *Adder) linkScratchReuse(g *ddg.Graph, hops []*ir.MoveNode, regs []ir.Register) {
	for i, r := range regs {
		writer := hops[i] // hops[i].Move.Destination == RegisterTerminal(r), i.e. hops[i] writes regs[i]
		if prev, ok := a.lastUse[r.File]; ok {
			g.AddDependence(prev.ID, writer.ID, ddg.EdgeRegisterWAW, r, ddg.RegisterEdgeLatency, false)
			for _, e := range g.OutEdges(prev.ID) {
				if e.Kind == ddg.EdgeRegisterRAW && e.Register.Equal(r) && e.To != writer.ID {
					g.AddDependence(e.To, writer.ID, ddg.EdgeRegisterWAR, r, 0, false)
				}
			}
		}
		a.lastUse[r.File] = writer
	}
}

// UndoChain reverses SpliceChain: removes the hops from the graph and block
// and restores the original node, re-pointing any operation slot back.
func (a *Adder) UndoChain(proc *ir.Procedure, g *ddg.Graph, bb *ir.BasicBlock, rec *ChainRecord) {
	node := rec.Original
	g.AddNode(node)
	bb.Reattach(node)
	proc.Refs.Forward(rec.Hops[0], node)

	first, last := rec.Hops[0], rec.Hops[len(rec.Hops)-1]
	for _, e := range append([]*ddg.Edge(nil), g.InEdges(first.ID)...) {
		g.RemoveEdge(e)
		g.AddDependence(e.From, node.ID, e.Kind, e.Register, e.Latency, e.BackEdge)
	}
	for _, e := range append([]*ddg.Edge(nil), g.OutEdges(last.ID)...) {
		g.RemoveEdge(e)
		g.AddDependence(node.ID, e.To, e.Kind, e.Register, e.Latency, e.BackEdge)
	}

	if node.Operation != nil {
		if node.IsOperand() && node.OperandIndex >= 0 && node.OperandIndex < len(node.Operation.Operands) {
			node.Operation.Operands[node.OperandIndex] = node
		}
		if node.IsResult() && node.ResultIndex >= 0 && node.ResultIndex < len(node.Operation.Results) {
			node.Operation.Results[node.ResultIndex] = node
		}
	}

	for _, h := range rec.Hops {
		g.DropNode(h)
		bb.RemoveNode(h)
	}
}
