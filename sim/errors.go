package sim

import (
	"errors"
	"fmt"
)

// ErrConfig marks synchronously detected configuration mistakes: invalid
// step sizes or durations, duplicate module registration, unknown element
// or bus identifiers. All such failures wrap ErrConfig so callers can test
// with errors.Is.
var ErrConfig = errors.New("configuration error")

// configErrorf builds an ErrConfig-wrapping error.
func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfig}, args...)...)
}

// StepError reports a failed simulation step. The step is not considered to
// have occurred: the clock holds its pre-step value and no public state from
// the failing step is visible.
type StepError struct {
	Module string // name of the failing module
	Phase  string // "reset", "calculate" or "update"
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step failed: module %q %s: %v", e.Module, e.Phase, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
