package electrical

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Default Newton-Raphson configuration. Conventional choices; both are
// plain struct fields, so callers can override them before the first
// Solve.
const (
	DefaultTolerance     = 1e-9 // per-unit max abs power mismatch
	DefaultMaxIterations = 50
)

// NewtonSolver implements the Newton-Raphson load-flow method. The state
// vector is the voltage angle of every non-slack bus plus the voltage
// magnitude of every PQ bus; each iteration computes the power mismatch,
// assembles the full H/N/M/L Jacobian of injected power with respect to
// the state, solves J * dx = mismatch and applies dx.
//
// The solve converges when the maximum absolute power mismatch falls below
// Tolerance, and fails with a ConvergenceError after MaxIterations without
// reaching it. A singular Jacobian fails with a NumericalError instead, so
// "never converges" and "not solvable at all" stay distinguishable.
type NewtonSolver struct {
	// Tolerance is the per-unit max-abs power mismatch below which the
	// iteration stops.
	Tolerance float64
	// MaxIterations caps the iteration count before declaring divergence.
	MaxIterations int
	// WarmStart seeds the state vector with the previous converged result
	// instead of a flat start, when one exists for the same topology.
	WarmStart bool

	net  *network
	g, b *mat.Dense // real and imaginary parts of the admittance matrix

	lastV  []float64
	lastTh []float64
	solved bool
}

// NewNewtonSolver creates an unprepared Newton-Raphson solver with the
// default tolerance and iteration cap.
func NewNewtonSolver() *NewtonSolver {
	return &NewtonSolver{
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
	}
}

func (s *NewtonSolver) Name() string { return "newton-raphson" }

// Prepare assembles the network and splits the admittance matrix into its
// real and imaginary parts used by the mismatch and Jacobian computations.
func (s *NewtonSolver) Prepare(sBase, vBase float64, isPV []bool, branches [][2]int, yb [][4]complex128) error {
	net, err := newNetwork(sBase, vBase, isPV, branches, yb)
	if err != nil {
		return err
	}
	n := net.n
	g := mat.NewDense(n, n, nil)
	b := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			y := net.y.At(i, j)
			g.Set(i, j, real(y))
			b.Set(i, j, imag(y))
		}
	}
	s.net = net
	s.g = g
	s.b = b
	s.lastV = nil
	s.lastTh = nil
	s.solved = false
	return nil
}

// injections computes the active and reactive power injected at every bus
// from the current voltage estimate and the admittance matrix.
func (s *NewtonSolver) injections(v, th []float64) (pCalc, qCalc []float64) {
	n := s.net.n
	pCalc = make([]float64, n)
	qCalc = make([]float64, n)
	for i := 0; i < n; i++ {
		var p, q float64
		for j := 0; j < n; j++ {
			gij := s.g.At(i, j)
			bij := s.b.At(i, j)
			dth := th[i] - th[j]
			cosd := math.Cos(dth)
			sind := math.Sin(dth)
			p += v[i] * v[j] * (gij*cosd + bij*sind)
			q += v[i] * v[j] * (gij*sind - bij*cosd)
		}
		pCalc[i] = p
		qCalc[i] = q
	}
	return pCalc, qCalc
}

// Solve iterates from the start point until the power mismatch at every
// bus drops below Tolerance. Inputs and outputs follow the Solver vector
// conventions; nothing is written to the vectors unless the solve
// converges.
func (s *NewtonSolver) Solve(p, q, v, th []float64) error {
	if s.net == nil {
		return errors.New("solver not prepared")
	}
	n := s.net.n
	if len(p) != n || len(q) != n || len(v) != n || len(th) != n {
		return topologyErrorf("vector length mismatch: network has %d buses", n)
	}

	// Working copies: the caller's vectors stay untouched on failure.
	vw := make([]float64, n)
	thw := make([]float64, n)
	copy(vw, v)
	if s.WarmStart && len(s.lastV) == n {
		copy(vw, s.lastV)
		copy(thw, s.lastTh)
		// Fixed magnitudes are never warm-started.
		vw[0] = v[0]
		for i := 1; i < n; i++ {
			if s.net.isPV[i] {
				vw[i] = v[i]
			}
		}
	} else {
		// Flat start: unknown magnitudes at 1.0 per-unit, all angles zero.
		for i := 1; i < n; i++ {
			if s.net.isPQ[i] {
				vw[i] = 1.0
			}
		}
	}

	// Index maps for the state vector layout [dTh(non-slack); dV(PQ)].
	nState := n - 1
	pqPos := make([]int, 0, n)
	for i := 1; i < n; i++ {
		if s.net.isPQ[i] {
			pqPos = append(pqPos, i)
		}
	}
	nPQ := len(pqPos)
	dim := nState + nPQ

	var pCalc, qCalc []float64
	mismatch := make([]float64, dim)
	jac := mat.NewDense(dim, dim, nil)

	for iter := 1; ; iter++ {
		pCalc, qCalc = s.injections(vw, thw)

		// A NaN mismatch poisons the residual so it can never satisfy
		// the tolerance check below.
		residual := 0.0
		for i := 1; i < n; i++ {
			mismatch[i-1] = p[i] - pCalc[i]
			if r := math.Abs(mismatch[i-1]); r > residual || math.IsNaN(r) {
				residual = r
			}
		}
		for k, i := range pqPos {
			mismatch[nState+k] = q[i] - qCalc[i]
			if r := math.Abs(mismatch[nState+k]); r > residual || math.IsNaN(r) {
				residual = r
			}
		}

		if residual <= s.Tolerance {
			break
		}
		if iter > s.MaxIterations {
			return &ConvergenceError{
				Iterations: s.MaxIterations,
				Residual:   residual,
				Tolerance:  s.Tolerance,
			}
		}

		s.fillJacobian(jac, vw, thw, pCalc, qCalc, pqPos)

		var lu mat.LU
		lu.Factorize(jac)
		var dx mat.VecDense
		if err := lu.SolveVecTo(&dx, false, mat.NewVecDense(dim, mismatch)); err != nil {
			return &NumericalError{Op: "Jacobian solve", Err: err}
		}

		for i := 1; i < n; i++ {
			thw[i] += dx.AtVec(i - 1)
		}
		for k, i := range pqPos {
			vw[i] += dx.AtVec(nState + k)
		}
	}

	// Converged: publish the solved state and the dependent quantities.
	copy(v, vw)
	copy(th, thw)
	p[0] = pCalc[0]
	q[0] = qCalc[0]
	for i := 1; i < n; i++ {
		if s.net.isPV[i] {
			q[i] = qCalc[i]
		}
	}

	s.lastV = append(s.lastV[:0], vw...)
	s.lastTh = append(s.lastTh[:0], thw...)
	s.solved = true
	return nil
}

// fillJacobian assembles the [H N; M L] Jacobian of the injected powers
// with respect to the state vector [Th(non-slack); V(PQ)]:
//
//	H = dP/dTh   N = dP/dV
//	M = dQ/dTh   L = dQ/dV
func (s *NewtonSolver) fillJacobian(jac *mat.Dense, v, th, pCalc, qCalc []float64, pqPos []int) {
	n := s.net.n
	nState := n - 1

	for i := 1; i < n; i++ {
		for j := 1; j < n; j++ {
			var h float64
			if i == j {
				h = -qCalc[i] - s.b.At(i, i)*v[i]*v[i]
			} else {
				dth := th[i] - th[j]
				h = v[i] * v[j] * (s.g.At(i, j)*math.Sin(dth) - s.b.At(i, j)*math.Cos(dth))
			}
			jac.Set(i-1, j-1, h)
		}
		for k, j := range pqPos {
			var nn float64
			if i == j {
				nn = pCalc[i]/v[i] + s.g.At(i, i)*v[i]
			} else {
				dth := th[i] - th[j]
				nn = v[i] * (s.g.At(i, j)*math.Cos(dth) + s.b.At(i, j)*math.Sin(dth))
			}
			jac.Set(i-1, nState+k, nn)
		}
	}
	for ki, i := range pqPos {
		for j := 1; j < n; j++ {
			var m float64
			if i == j {
				m = pCalc[i] - s.g.At(i, i)*v[i]*v[i]
			} else {
				dth := th[i] - th[j]
				m = -v[i] * v[j] * (s.g.At(i, j)*math.Cos(dth) + s.b.At(i, j)*math.Sin(dth))
			}
			jac.Set(nState+ki, j-1, m)
		}
		for kj, j := range pqPos {
			var l float64
			if i == j {
				l = qCalc[i]/v[i] - s.b.At(i, i)*v[i]
			} else {
				dth := th[i] - th[j]
				l = v[i] * (s.g.At(i, j)*math.Sin(dth) - s.b.At(i, j)*math.Cos(dth))
			}
			jac.Set(nState+ki, nState+kj, l)
		}
	}
}

// BranchFlows returns the full complex power flows implied by the last
// converged solve.
func (s *NewtonSolver) BranchFlows() (*BranchFlows, error) {
	if !s.solved {
		return nil, errors.New("Solve has to be called first")
	}
	return s.net.flows(s.lastV, s.lastTh), nil
}
