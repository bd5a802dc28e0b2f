package electrical

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// DirectSolver implements the direct (linearized, DC) load-flow method: it
// assumes small angle differences and near-nominal voltage magnitudes and
// solves a single linear system derived from the susceptance image of the
// admittance matrix for the bus angles. Deterministic, single pass, no
// iteration. Voltage magnitudes and reactive powers are left untouched.
//
// The method follows Seifi & Sepasian, Electric Power System Planning,
// pp. 246-248.
type DirectSolver struct {
	net *network

	lu mat.LU     // factorization of B' (B with slack row/column removed)
	ba *mat.Dense // branch-angle incidence scaled by branch susceptance

	lastTh []float64
	solved bool
}

// NewDirectSolver creates an unprepared direct solver.
func NewDirectSolver() *DirectSolver {
	return &DirectSolver{}
}

func (s *DirectSolver) Name() string { return "direct" }

// Prepare assembles the network, builds the B' matrix (off-diagonal
// elements are the negated imaginary parts of Y, diagonal elements the
// negated row sums) and factorizes it once per topology.
func (s *DirectSolver) Prepare(sBase, vBase float64, isPV []bool, branches [][2]int, yb [][4]complex128) error {
	net, err := newNetwork(sBase, vBase, isPV, branches, yb)
	if err != nil {
		return err
	}

	n := net.n
	b := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				b.Set(i, j, -imag(net.y.At(i, j)))
			}
		}
	}
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			if j != i {
				sum += b.At(i, j)
			}
		}
		b.Set(i, i, -sum)
	}

	// Remove the slack row and column before factorizing.
	var lu mat.LU
	lu.Factorize(mat.DenseCopyOf(b.Slice(1, n, 1, n)))

	// Branch active power is the angle difference across the branch scaled
	// by the branch susceptance, expressed as a sparse incidence product.
	ba := mat.NewDense(len(branches), n, nil)
	for i, br := range net.branches {
		mb := b.At(br[0], br[1])
		ba.Set(i, br[0], -mb)
		ba.Set(i, br[1], mb)
	}

	s.net = net
	s.lu = lu
	s.ba = ba
	s.lastTh = nil
	s.solved = false
	return nil
}

// Solve computes bus voltage angles from the non-slack active powers and
// fills in the slack active power under the lossless assumption. Reactive
// powers and voltage magnitudes are not touched.
func (s *DirectSolver) Solve(p, q, v, th []float64) error {
	if s.net == nil {
		return errors.New("solver not prepared")
	}
	n := s.net.n
	if len(p) != n || len(q) != n || len(v) != n || len(th) != n {
		return topologyErrorf("vector length mismatch: network has %d buses", n)
	}

	// Lossless network: the slack delivers whatever the others consume.
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += p[i]
	}
	p[0] = -sum

	rhs := mat.NewVecDense(n-1, p[1:n])
	var angles mat.VecDense
	if err := s.lu.SolveVecTo(&angles, false, rhs); err != nil {
		return &NumericalError{Op: "susceptance matrix solve", Err: err}
	}

	th[0] = 0
	for i := 1; i < n; i++ {
		th[i] = angles.AtVec(i - 1)
	}

	s.lastTh = append(s.lastTh[:0], th...)
	s.solved = true
	return nil
}

// BranchFlows returns the active power flows implied by the last solve.
// The direct method computes no reactive flows, so Qij and Qji are nil and
// Pji is exactly -Pij.
func (s *DirectSolver) BranchFlows() (*BranchFlows, error) {
	if !s.solved {
		return nil, errors.New("Solve has to be called first")
	}
	m := len(s.net.branches)
	fl := &BranchFlows{
		Pij: make([]float64, m),
		Pji: make([]float64, m),
	}
	thVec := mat.NewVecDense(s.net.n, s.lastTh)
	var pbr mat.VecDense
	pbr.MulVec(s.ba, thVec)
	for i := 0; i < m; i++ {
		fl.Pij[i] = pbr.AtVec(i)
		fl.Pji[i] = -pbr.AtVec(i)
	}
	return fl, nil
}
