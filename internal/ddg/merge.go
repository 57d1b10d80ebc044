package ddg

import (
	"github.com/pkg/errors"

	"github.com/ttasched/ttasched/internal/ir"
)

// MergeRecord journals a Merge so it can be undone by Unmerge. The journal
// is an explicit list of inverse operations rather than a copy-on-write
// snapshot of the graph (spec.md section 9: "Transactional state").
type MergeRecord struct {
	User        *ir.MoveNode
	OldSource   ir.Terminal
	CopiedEdges []*Edge
}

// guardImplied reports whether userGuard is implied by sourceGuard: every
// cycle at which source's guard would allow it to fire, user's guard (if
// any) would too. A nil userGuard is trivially implied (bypassing into an
// unguarded move never needs a guard). This is a conservative same-register
// check, not general implication over arbitrary guard expressions, since
// the machine model only exposes one-bit register guards.
func guardImplied(userGuard, sourceGuard *ir.Guard) bool {
	if userGuard == nil {
		return true
	}
	if sourceGuard == nil {
		return false
	}
	return userGuard.Reg.Equal(sourceGuard.Reg) && userGuard.Inverted == sourceGuard.Inverted
}

// Merge rewrites user.Move.Source to read directly from source.Move.Source
// (software bypass) and copies every register-RAW in-edge of source onto
// user, so user now depends on whatever source depended on. Fails with an
// error if user's guard is not implied by source's guard.
func (g *Graph) Merge(source, user *ir.MoveNode) (*MergeRecord, error) {
	if !guardImplied(user.Move.Guard, source.Move.Guard) {
		return nil, errors.Errorf("ddg: merge n%d into n%d: guard of user not implied by guard of source", source.ID, user.ID)
	}
	rec := &MergeRecord{User: user, OldSource: user.Move.Source}
	user.Move.Source = source.Move.Source
	for _, e := range g.InEdges(source.ID) {
		if e.Kind != EdgeRegisterRAW {
			continue
		}
		ne := g.AddDependence(e.From, user.ID, EdgeRegisterRAW, e.Register, e.Latency, e.BackEdge)
		rec.CopiedEdges = append(rec.CopiedEdges, ne)
	}
	return rec, nil
}

// Unmerge reverses a Merge: restores user's original source terminal and
// removes the copied dependency edges.
func (g *Graph) Unmerge(rec *MergeRecord) {
	rec.User.Move.Source = rec.OldSource
	for _, e := range rec.CopiedEdges {
		g.RemoveEdge(e)
	}
}
