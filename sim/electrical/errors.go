package electrical

import "fmt"

// TopologyError reports a network that cannot be solved as laid out:
// disconnected buses, a missing or duplicate slack, or a branch with
// non-physical impedance. Detected at solve time before any iteration
// begins; the electrical calculate phase aborts for that step and no bus
// voltage is modified.
type TopologyError struct {
	Reason string
}

func (e *TopologyError) Error() string {
	return "topology error: " + e.Reason
}

func topologyErrorf(format string, args ...any) error {
	return &TopologyError{Reason: fmt.Sprintf(format, args...)}
}

// ConvergenceError reports that the Newton-Raphson iteration exhausted its
// iteration cap without driving the power mismatch below tolerance. This
// signals a numerically ill-conditioned or physically infeasible scheduled
// operating point, never a silent partial result: no voltages are published
// when it is returned.
type ConvergenceError struct {
	Iterations int     // iterations performed (equals the configured cap)
	Residual   float64 // max abs power mismatch at the last iteration, per-unit
	Tolerance  float64 // the convergence threshold that was not met
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("load flow did not converge after %d iterations (residual %.3e, tolerance %.3e)",
		e.Iterations, e.Residual, e.Tolerance)
}

// NumericalError reports a singular or ill-conditioned linear system during
// a solve. It is distinct from ConvergenceError so callers can tell "never
// converges" from "not solvable at all".
type NumericalError struct {
	Op  string // the linear-algebra operation that failed
	Err error
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical error in %s: %v", e.Op, e.Err)
}

func (e *NumericalError) Unwrap() error { return e.Err }
