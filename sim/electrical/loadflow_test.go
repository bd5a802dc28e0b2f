package electrical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// symmetricYb builds the admittance row of a plain series branch.
func symmetricYb(y complex128) [4]complex128 {
	return [4]complex128{y, y, y, y}
}

func TestNewNetwork_Validation(t *testing.T) {
	okBranch := [][2]int{{0, 1}}
	okYb := [][4]complex128{symmetricYb(complex(0, -10))}

	tests := []struct {
		name     string
		sBase    float64
		vBase    float64
		isPV     []bool
		branches [][2]int
		yb       [][4]complex128
	}{
		{name: "zero sBase", sBase: 0, vBase: 1, isPV: []bool{false, false}, branches: okBranch, yb: okYb},
		{name: "zero vBase", sBase: 1, vBase: 0, isPV: []bool{false, false}, branches: okBranch, yb: okYb},
		{name: "single bus", sBase: 1, vBase: 1, isPV: []bool{false}, branches: okBranch, yb: okYb},
		{name: "PV slack", sBase: 1, vBase: 1, isPV: []bool{true, false}, branches: okBranch, yb: okYb},
		{name: "no branches", sBase: 1, vBase: 1, isPV: []bool{false, false}, branches: nil, yb: nil},
		{name: "table mismatch", sBase: 1, vBase: 1, isPV: []bool{false, false}, branches: okBranch, yb: nil},
		{name: "bad bus id", sBase: 1, vBase: 1, isPV: []bool{false, false}, branches: [][2]int{{0, 7}}, yb: okYb},
		{name: "self branch", sBase: 1, vBase: 1, isPV: []bool{false, false}, branches: [][2]int{{1, 1}}, yb: okYb},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newNetwork(tt.sBase, tt.vBase, tt.isPV, tt.branches, tt.yb)
			var topoErr *TopologyError
			assert.ErrorAs(t, err, &topoErr)
		})
	}
}

func TestNewNetwork_AdmittanceAssembly(t *testing.T) {
	// One asymmetric branch so every term lands in a distinct slot.
	yb := [][4]complex128{{complex(1, -10), complex(2, -20), complex(3, -30), complex(4, -40)}}
	net, err := newNetwork(1, 1, []bool{false, false}, [][2]int{{0, 1}}, yb)
	require.NoError(t, err)

	assert.Equal(t, complex(1, -10), net.y.At(0, 0))
	assert.Equal(t, complex(-2, 20), net.y.At(0, 1))
	assert.Equal(t, complex(3, -30), net.y.At(1, 1))
	assert.Equal(t, complex(-4, 40), net.y.At(1, 0))
}

// TestNewNetwork_ParallelBranchesAccumulate verifies two branches between
// the same pair of buses combine by admittance summation.
func TestNewNetwork_ParallelBranchesAccumulate(t *testing.T) {
	y := complex(0, -10)
	single, err := newNetwork(1, 1, []bool{false, false},
		[][2]int{{0, 1}}, [][4]complex128{symmetricYb(y)})
	require.NoError(t, err)
	double, err := newNetwork(1, 1, []bool{false, false},
		[][2]int{{0, 1}, {0, 1}}, [][4]complex128{symmetricYb(y), symmetricYb(y)})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.Equal(t, 2*single.y.At(i, j), double.y.At(i, j), "y[%d][%d]", i, j)
		}
	}
}

func TestNewNetwork_PerUnitScaling(t *testing.T) {
	y := complex(0, -10)
	base, err := newNetwork(1, 1, []bool{false, false},
		[][2]int{{0, 1}}, [][4]complex128{symmetricYb(y)})
	require.NoError(t, err)

	// vBase^2/sBase = 4/2 = 2: every admittance doubles.
	scaled, err := newNetwork(2, 2, []bool{false, false},
		[][2]int{{0, 1}}, [][4]complex128{symmetricYb(y)})
	require.NoError(t, err)

	assert.Equal(t, 2*base.y.At(0, 0), scaled.y.At(0, 0))
	assert.Equal(t, 2*base.y.At(0, 1), scaled.y.At(0, 1))
}

func TestNewNetwork_DisconnectedBus(t *testing.T) {
	// Bus 2 has no branch at all.
	_, err := newNetwork(1, 1, []bool{false, false, false},
		[][2]int{{0, 1}}, [][4]complex128{symmetricYb(complex(0, -10))})

	var topoErr *TopologyError
	require.ErrorAs(t, err, &topoErr)
	assert.Contains(t, topoErr.Reason, "bus 2")
}

func TestNewNetwork_IslandBehindRemovedPath(t *testing.T) {
	// 0-1 connected, 2-3 an island among themselves.
	y := symmetricYb(complex(0, -10))
	_, err := newNetwork(1, 1, []bool{false, false, false, false},
		[][2]int{{0, 1}, {2, 3}}, [][4]complex128{y, y})

	var topoErr *TopologyError
	assert.ErrorAs(t, err, &topoErr)
}

// TestNetworkFlows_LosslessBranchConservesActivePower checks Pij == -Pji
// when the branch has no resistance.
func TestNetworkFlows_LosslessBranchConservesActivePower(t *testing.T) {
	line, err := NewTransmissionLine(1, 0, 0.1, 0)
	require.NoError(t, err)
	yii, yij, yjj, yji := line.Admittances()
	net, err := newNetwork(1, 1, []bool{false, false},
		[][2]int{{0, 1}}, [][4]complex128{{yii, yij, yjj, yji}})
	require.NoError(t, err)

	fl := net.flows([]float64{1, 1}, []float64{0, -0.02})
	require.Len(t, fl.Pij, 1)
	assert.InDelta(t, fl.Pij[0], -fl.Pji[0], 1e-12)
	// Power flows from the leading-angle bus.
	assert.Greater(t, fl.Pij[0], 0.0)
}
