package config

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Variant selects which BB-scheduler algorithm the controller drives.
type Variant int

const (
	// VariantTopDown is the legacy forward list scheduler.
	VariantTopDown Variant = iota
	// VariantBottomUp schedules from the end of the block backward.
	VariantBottomUp
	// VariantBubbleFish runs the bottom-up scheduler and then slides each
	// placed move as early as its constraints allow; this is the selected
	// default (spec.md section 6).
	VariantBubbleFish
)

// String implements fmt.Stringer.
func (v Variant) String() string {
	switch v {
	case VariantTopDown:
		return "top-down"
	case VariantBottomUp:
		return "bottom-up"
	case VariantBubbleFish:
		return "bubble-fish"
	default:
		return "unknown"
	}
}

// DumpFormat selects the serialization used when dumping a DDG snapshot
// for debugging (spec.md section 6).
type DumpFormat int

const (
	DumpNone DumpFormat = iota
	DumpDOT
	DumpXML
)

// Options bundles every control option observable on the core's boundary
// (spec.md section 6).
type Options struct {
	Variant Variant

	EnableBypass                bool
	BypassDistance               int
	EnableDeadResultElimination bool
	EnableRegisterRenaming      bool
	EnableLoopScheduling        bool

	// LowMemThreshold is an instruction count. The controller always
	// builds one DDG per basic block, and its own LowMemThreshold option
	// disables bypass, renaming and temp copies on any block at or above
	// the count.
	LowMemThreshold int

	// Verbosity controls how much the controller logs: 0 is silent (Warn
	// level and above), 1 raises to Info, 2+ raises to Debug.
	Verbosity int
	Dump      DumpFormat

	Logger *logrus.Logger
}

// Default returns the recommended option set: bubble-fish variant, bypass
// and renaming and loop scheduling and dead-result elimination all on, a
// generous bypass distance, and no DDG dumping.
func Default() Options {
	return Options{
		Variant:                     VariantBubbleFish,
		EnableBypass:                true,
		BypassDistance:              8,
		EnableDeadResultElimination: true,
		EnableRegisterRenaming:      true,
		EnableLoopScheduling:        true,
		LowMemThreshold:             100000,
		Logger:                      NewLogger(0),
	}
}

// NewLogger builds the logrus.Logger used for all core logging, with its
// level derived from verbosity (spec.md section 6).
func NewLogger(verbosity int) *logrus.Logger {
	l := logrus.New()
	switch {
	case verbosity >= 2:
		l.SetLevel(logrus.DebugLevel)
	case verbosity == 1:
		l.SetLevel(logrus.InfoLevel)
	default:
		l.SetLevel(logrus.WarnLevel)
	}
	return l
}

// Validate reports an error describing the first inconsistent combination
// of options found, or nil if o is internally consistent.
func (o Options) Validate() error {
	if o.EnableBypass && o.BypassDistance < 0 {
		return errors.New("config: bypass enabled but bypassDistance is negative")
	}
	if !o.EnableBypass && o.BypassDistance != 0 {
		return errors.New("config: bypass disabled but bypassDistance is nonzero; set it to 0 or enable bypass")
	}
	if o.LowMemThreshold < 0 {
		return errors.New("config: lowMemThreshold must be non-negative")
	}
	if o.Variant < VariantTopDown || o.Variant > VariantBubbleFish {
		return errors.Errorf("config: unknown scheduler variant %d", o.Variant)
	}
	return nil
}

// Log returns o.Logger, falling back to a verbosity-derived default if the
// caller built an Options literal without one.
func (o Options) Log() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return NewLogger(o.Verbosity)
}
