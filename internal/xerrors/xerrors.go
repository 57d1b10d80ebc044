// Package xerrors implements the error taxonomy of spec.md section 7.
// ResourceExhausted never reaches here: it is represented inside the BB
// scheduler as sentinel return values (±infinity cycles, false) and never
// allocates an error. The four remaining classes are sentinel errors that
// get wrapped with context via github.com/pkg/errors as they propagate out
// to a basic-block or procedure boundary.
package xerrors

import "github.com/pkg/errors"

// Sentinel errors for the four fatal classes of spec.md section 7. Use
// errors.Is to classify an error returned across a package boundary.
var (
	// ErrConnectivityUnsatisfiable: no chain of scratch register files
	// bridges a move's source and destination at all. Fatal for the basic
	// block being scheduled.
	ErrConnectivityUnsatisfiable = errors.New("connectivity unsatisfiable")

	// ErrIllegalMachine: the machine description is self-contradictory,
	// e.g. an immediate requires a long-immediate unit that doesn't exist,
	// or an FU claims to support an operation with no trigger port defined.
	// Fatal for the whole run.
	ErrIllegalMachine = errors.New("illegal machine description")

	// ErrInvalidInput: the procedure IR violates a documented invariant,
	// e.g. a control-flow move is not the last move of its basic block.
	// Fatal.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSchedulingFailed: after exhausting bypass/rename/copy-adder
	// retries, some operation could not be placed. The recommended
	// recovery is to rerun with bypass disabled.
	ErrSchedulingFailed = errors.New("scheduling failed")
)

// Wrap annotates err with msg while preserving its identity for errors.Is,
// mirroring the teacher-adjacent idiom (moby-moby) of wrapping with
// pkg/errors at every boundary crossing rather than losing the original
// error.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.WithMessage(err, msg)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.WithMessagef(err, format, args...)
}
