// Package interpass models the inter-pass data channel the core reads from
// (spec.md section 6): the scratch-register inventory supplied under the
// key SCRATCH_REGISTERS, the stack/frame/return-value register data, and
// the procedure filtering lists. The channel itself is a plain struct here
// rather than a generic keyed map, since the core only ever reads these
// fixed keys; a driver embedding this core is free to keep its own
// string-keyed side-channel and translate into this struct at the
// boundary.
package interpass

import "github.com/ttasched/ttasched/internal/machine"

// ScratchRegister names one reserved temp register within a scratch
// register file (spec.md section 4.3 / GLOSSARY): one register per scratch
// file, process-wide, never mutated after setup (spec.md section 9).
type ScratchRegister struct {
	File  string
	Index int
}

// Data holds every inter-pass datum the core may consult.
type Data struct {
	// ScratchRegisters is the per-machine list supplied under the
	// SCRATCH_REGISTERS key.
	ScratchRegisters []ScratchRegister

	// StackPointer, FramePointer, ReturnValue and ReturnValueHigh mirror
	// the STACK_POINTER, FRAME_POINTER, RV_REGISTER and RV_HIGH_REGISTER
	// keys. A nil pointer means the datum wasn't supplied. The controller
	// treats every supplied register as live out of the procedure's sink
	// blocks; the renamer does not consult any of them.
	StackPointer    *machine.RegisterRef
	FramePointer    *machine.RegisterRef
	ReturnValue     *machine.RegisterRef
	ReturnValueHigh *machine.RegisterRef

	// FunctionsToProcess and FunctionsToIgnore mirror the
	// FUNCTIONS_TO_PROCESS / FUNCTIONS_TO_IGNORE keys used for procedure
	// filtering by an embedding driver; the core itself doesn't consult
	// these since it's handed one Procedure at a time, but it carries them
	// through so a driver looping over many procedures can share one Data.
	FunctionsToProcess []string
	FunctionsToIgnore  []string
}

// RenamingEnabled reports whether ReturnValue was supplied. Nothing in the
// scheduler calls it: whether the renamer runs is decided by the
// RenameEnabled option alone.
func (d *Data) RenamingEnabled() bool {
	return d.ReturnValue != nil
}

// ScratchFiles returns the register file names referenced by
// ScratchRegisters, in declaration order, with duplicates removed.
func (d *Data) ScratchFiles() []string {
	seen := make(map[string]bool, len(d.ScratchRegisters))
	var out []string
	for _, s := range d.ScratchRegisters {
		if !seen[s.File] {
			seen[s.File] = true
			out = append(out, s.File)
		}
	}
	return out
}
