package electrical

import (
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Solver computes the steady-state voltage phasor at every bus of a
// prepared network such that the power implied by each bus's voltage and
// the admittance matrix matches its scheduled injection within tolerance.
//
// A solver is prepared once per topology (Prepare) and then invoked once
// per step (Solve). Solve operates in-place on per-unit vectors indexed by
// bus id, slack at index 0:
//
//   - inputs: P of all non-slack buses, Q of PQ buses, V of slack and PV
//     buses (slack/PV magnitudes are held fixed across the solve)
//   - outputs: P and Q of the slack bus, Q of PV buses, V of PQ buses, and
//     Th of every bus
//
// On any error the vectors hold no meaningful outputs and nothing may be
// published from them.
type Solver interface {
	// Name identifies the method ("direct", "newton-raphson").
	Name() string

	// Prepare ingests the network description: per-unit bases, the PV tag
	// per bus (index 0, the slack, must not be tagged), the from/to bus
	// ids per branch, and the four two-port admittance terms per branch.
	Prepare(sBase, vBase float64, isPV []bool, branches [][2]int, yb [][4]complex128) error

	// Solve runs the method on the prepared network. See the interface
	// comment for vector conventions.
	Solve(p, q, v, th []float64) error

	// BranchFlows returns the per-branch power flows implied by the last
	// successful Solve. Fails if Solve has not succeeded yet.
	BranchFlows() (*BranchFlows, error)
}

// BranchFlows carries per-branch power flows, indexed like the branch
// table passed to Prepare. Qij/Qji are nil when the method does not
// compute reactive flows (the direct method).
type BranchFlows struct {
	Pij []float64 // active power entering from the from-bus terminal
	Qij []float64 // reactive power entering from the from-bus terminal
	Pji []float64 // active power entering from the to-bus terminal
	Qji []float64 // reactive power entering from the to-bus terminal
}

// network is a solver's prepared view of the topology: scaled branch
// admittance terms plus the assembled bus admittance matrix.
type network struct {
	n        int         // number of buses, slack first
	isPV     []bool      // PV tag per bus
	isPQ     []bool      // derived: not PV and not slack
	branches [][2]int    // from/to bus id per branch
	yb       [][4]complex128
	y        *mat.CDense // n x n bus admittance matrix
}

// newNetwork validates the description and assembles the admittance
// matrix. Parallel branches between the same bus pair combine by
// admittance summation: every term accumulates, none overwrites.
func newNetwork(sBase, vBase float64, isPV []bool, branches [][2]int, yb [][4]complex128) (*network, error) {
	if sBase <= 0 {
		return nil, topologyErrorf("reference power sBase must be strictly positive, got %g", sBase)
	}
	if vBase <= 0 {
		return nil, topologyErrorf("reference voltage vBase must be strictly positive, got %g", vBase)
	}
	n := len(isPV)
	if n < 2 {
		return nil, topologyErrorf("network needs at least two buses, got %d", n)
	}
	if isPV[0] {
		return nil, topologyErrorf("bus 0 is the slack bus and cannot be tagged PV")
	}
	if len(branches) != len(yb) {
		return nil, topologyErrorf("branch table and admittance table disagree: %d vs %d rows",
			len(branches), len(yb))
	}
	if len(branches) == 0 {
		return nil, topologyErrorf("network has no branches")
	}
	for _, b := range branches {
		if b[0] < 0 || b[0] >= n || b[1] < 0 || b[1] >= n {
			return nil, topologyErrorf("branch references unknown bus id %v", b)
		}
		if b[0] == b[1] {
			return nil, topologyErrorf("branch connects bus %d to itself", b[0])
		}
	}

	net := &network{
		n:        n,
		isPV:     isPV,
		isPQ:     make([]bool, n),
		branches: branches,
		yb:       make([][4]complex128, len(yb)),
	}
	for i := 1; i < n; i++ {
		net.isPQ[i] = !isPV[i]
	}

	// Branch admittances arrive in physical units unless the bases already
	// put them in per-unit. S = V^2 * Y, so Y scales by vBase^2/sBase.
	scale := complex(vBase*vBase/sBase, 0)
	for i, row := range yb {
		if scale != 1 {
			for k := range row {
				row[k] *= scale
			}
		}
		net.yb[i] = row
	}

	// Bus admittance matrix: self terms accumulate on the diagonal, mutual
	// terms accumulate negated off-diagonal.
	net.y = mat.NewCDense(n, n, nil)
	for i, b := range net.branches {
		from, to := b[0], b[1]
		net.y.Set(from, from, net.y.At(from, from)+net.yb[i][0])
		net.y.Set(to, to, net.y.At(to, to)+net.yb[i][2])
		net.y.Set(from, to, net.y.At(from, to)-net.yb[i][1])
		net.y.Set(to, from, net.y.At(to, from)-net.yb[i][3])
	}

	if err := net.checkConnected(); err != nil {
		return nil, err
	}
	return net, nil
}

// checkConnected verifies every bus is reachable from the slack bus
// through branches, treating the graph as undirected.
func (net *network) checkConnected() error {
	adjacent := make([][]int, net.n)
	for _, b := range net.branches {
		adjacent[b[0]] = append(adjacent[b[0]], b[1])
		adjacent[b[1]] = append(adjacent[b[1]], b[0])
	}
	seen := make([]bool, net.n)
	queue := []int{0}
	seen[0] = true
	for len(queue) > 0 {
		bus := queue[0]
		queue = queue[1:]
		for _, next := range adjacent[bus] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	for bus, ok := range seen {
		if !ok {
			return topologyErrorf("bus %d is not reachable from the slack bus", bus)
		}
	}
	return nil
}

// flows computes the generic complex-power branch flows for the given
// solved voltage magnitudes and angles.
func (net *network) flows(v, th []float64) *BranchFlows {
	m := len(net.branches)
	fl := &BranchFlows{
		Pij: make([]float64, m),
		Qij: make([]float64, m),
		Pji: make([]float64, m),
		Qji: make([]float64, m),
	}
	for i, b := range net.branches {
		from, to := b[0], b[1]
		vi, vj := v[from], v[to]
		dth := th[from] - th[to]
		rot := cmplx.Exp(complex(0, dth))

		// Flow into the branch at the from-bus terminal.
		eYij := rot * cmplx.Conj(net.yb[i][1])
		fl.Pij[i] = vi*vi*real(net.yb[i][0]) - vi*vj*real(eYij)
		fl.Qij[i] = -vi*vi*imag(net.yb[i][0]) - vi*vj*imag(eYij)

		// Flow into the branch at the to-bus terminal.
		eYji := cmplx.Conj(rot) * cmplx.Conj(net.yb[i][3])
		fl.Pji[i] = vj*vj*real(net.yb[i][2]) - vi*vj*real(eYji)
		fl.Qji[i] = -vj*vj*imag(net.yb[i][2]) - vi*vj*imag(eYji)
	}
	return fl
}
