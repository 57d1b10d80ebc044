// Package ttasched is the scheduler core's public boundary (spec.md
// section 6): two entry points, `Schedule` and `ScheduleCFG`, each mutating
// the given procedure in place, plus the control options observable at the
// boundary (variant selection, bypass distance, dead-result elimination,
// register renaming, loop scheduling, lowMemThreshold, verbosity, and DDG
// dump format).
package ttasched

import (
	"github.com/ttasched/ttasched/internal/control"
	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/dump"
	"github.com/ttasched/ttasched/internal/interpass"
	"github.com/ttasched/ttasched/internal/ir"
	"github.com/ttasched/ttasched/internal/machine"
)

// Variant selects which basic-block scheduler the core drives.
type Variant = control.Variant

const (
	// BubbleFish is the selected default (spec.md section 6).
	BubbleFish = control.BubbleFish
	// BottomUp is the resource-constrained list scheduler without the
	// bubble-fish post-pass.
	BottomUp = control.BottomUp
	// TopDown is the legacy forward variant.
	TopDown = control.TopDown
)

// DumpFormat selects the DDG dump format emitted by Options.Dump, if set.
type DumpFormat int

const (
	// DumpNone disables dumping.
	DumpNone DumpFormat = iota
	// DumpDOT emits Graphviz DOT.
	DumpDOT
	// DumpXML emits the XML dump.
	DumpXML
)

// Options configures one Schedule/ScheduleCFG call, mirroring spec.md
// section 6's "control options observable on the boundary".
type Options struct {
	// Variant selects top-down, bottom-up, or bubble-fish (default).
	Variant Variant

	// BypassDistance bounds software bypass's producer-hop budget; 0
	// disables bypass.
	BypassDistance int
	// DeadResultElimination drops a bypassed producer with no remaining
	// consumer instead of scheduling it as dead code.
	DeadResultElimination bool
	// RenameEnabled turns on the register renamer as a connectivity
	// fallback.
	RenameEnabled bool
	// TempCopiesAllowed permits inserting register-copy chains as a last
	// connectivity resort.
	TempCopiesAllowed bool
	// LoopSchedulingEnabled turns on software pipelining for single-BB
	// loops with a known trip count.
	LoopSchedulingEnabled bool
	// LowMemThreshold disables bypass/rename/temp-copies on any basic
	// block at or above this instruction count; 0 disables the check.
	LowMemThreshold int
	// Verbosity sets the level of the controller's logrus logger: 0 logs
	// warnings and errors only, 1 adds Info, 2 or more adds Debug. The
	// per-block scheduler attempts log through logrus' standard logger,
	// which this does not affect.
	Verbosity int

	// Dump, when not DumpNone, causes Schedule to return a rendering of
	// each basic block's DDG (pre-scheduling) in the requested format
	// alongside the usual error. ScheduleCFG ignores it.
	Dump DumpFormat
}

func (o Options) controlOptions() control.Options {
	return control.Options{
		Variant:               o.Variant,
		BypassDistance:        o.BypassDistance,
		DeadResultElimination: o.DeadResultElimination,
		RenameEnabled:         o.RenameEnabled,
		TempCopiesAllowed:     o.TempCopiesAllowed,
		LoopSchedulingEnabled: o.LoopSchedulingEnabled,
		LowMemThreshold:       o.LowMemThreshold,
		Verbosity:             o.Verbosity,
	}
}

// Schedule mutates proc in place, scheduling every basic block against
// mach under opts, using ip for scratch-register and renaming inter-pass
// data (spec.md section 6's `schedule(procedure, machine)`). If
// opts.Dump is set, it also returns one dump string per basic block, keyed
// by block name, of that block's DDG as built before scheduling.
func Schedule(proc *ir.Procedure, mach *machine.Machine, opts Options, ip *interpass.Data) (map[string]string, error) {
	dumps, err := dumpGraphs(proc, mach, opts)
	if err != nil {
		return nil, err
	}
	c := control.New(proc, mach, ip, opts.controlOptions())
	if err := c.Schedule(); err != nil {
		return dumps, err
	}
	return dumps, nil
}

// ScheduleCFG is the CFG/DDG-granularity entry point of spec.md section 6
// for a driver that already holds both: graphs supplies one pre-built flat
// DDG per basic block, reused instead of rebuilding it internally (loop
// scheduling still builds its own II-specific graphs regardless, since a
// flat graph can't answer modulo-scheduled queries).
func ScheduleCFG(proc *ir.Procedure, graphs map[ir.BasicBlockID]*ddg.Graph, mach *machine.Machine, opts Options, ip *interpass.Data) error {
	co := opts.controlOptions()
	co.Graphs = graphs
	c := control.New(proc, mach, ip, co)
	return c.Schedule()
}

func dumpGraphs(proc *ir.Procedure, mach *machine.Machine, opts Options) (map[string]string, error) {
	if opts.Dump == DumpNone {
		return nil, nil
	}
	out := make(map[string]string, len(proc.BasicBlocks))
	for _, bb := range proc.BasicBlocks {
		g := ddg.BuildBlock(bb, mach, bb.IsSingleBBLoop())
		switch opts.Dump {
		case DumpDOT:
			out[bb.Name] = dump.DOT(g)
		case DumpXML:
			s, err := dump.XML(g)
			if err != nil {
				return nil, err
			}
			out[bb.Name] = s
		}
	}
	return out, nil
}
