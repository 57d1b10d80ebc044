package ddg

import (
	"github.com/pkg/errors"

	"github.com/ttasched/ttasched/internal/config"
)

// Validate checks the structural invariants of spec.md section 4.1 that
// hold for any well-formed graph: every edge stored under its own From
// node, and no self-loops except back-edges. It is called after AddEdge and
// RemoveEdge on a root graph when config.DDGInvariantChecksEnabled is set,
// and is otherwise available for tests to call directly.
func (g *Graph) Validate() error {
	for from, edges := range g.out {
		for _, e := range edges {
			if e.From != from {
				return errors.Errorf("ddg: edge %s stored under wrong From bucket %d", e, from)
			}
			if e.From == e.To && !e.BackEdge {
				return errors.Errorf("ddg: self-loop n%d without BackEdge flag", e.From)
			}
		}
	}
	return nil
}

// checkInvariants is called internally after mutations guarded by the
// compile-time debug switch; it panics on violation since reaching it
// indicates a scheduler bug, not a user error (spec.md section 9, open
// question (b)).
func (g *Graph) checkInvariants() {
	if !config.DDGInvariantChecksEnabled {
		return
	}
	if err := g.Validate(); err != nil {
		panic(err)
	}
}
