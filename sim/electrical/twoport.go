package electrical

import (
	"math/cmplx"
)

// TwoPort is an electrical element placed on a network branch: a
// transmission line, a transformer, a phase shifter. Its only job towards
// the solver is to contribute the four admittance terms of the branch's
// two-port PI model.
type TwoPort interface {
	// Admittances returns the branch admittance terms (Yii, Yij, Yjj,
	// Yji): the self admittances seen from each terminal on the diagonal
	// positions and the mutual admittances off-diagonal. Symmetric for a
	// transmission line, asymmetric for a transformer with a complex
	// turns ratio.
	Admittances() (yii, yij, yjj, yji complex128)
}

// TransmissionLine is a branch two-port with the usual PI model: series
// impedance R + jX and total line charging susceptance B split in two
// shunt halves.
type TransmissionLine struct {
	Length float64 // line length
	R      float64 // series resistance per unit length
	X      float64 // series reactance per unit length
	B      float64 // charging susceptance per unit length
}

// NewTransmissionLine validates the line parameters. X must be strictly
// positive, R and B non-negative, length strictly positive.
func NewTransmissionLine(length, r, x, b float64) (*TransmissionLine, error) {
	if length <= 0 {
		return nil, topologyErrorf("line length must be strictly positive, got %g", length)
	}
	if x <= 0 {
		return nil, topologyErrorf("line reactance X must be strictly positive, got %g", x)
	}
	if r < 0 {
		return nil, topologyErrorf("line resistance R cannot be negative, got %g", r)
	}
	if b < 0 {
		return nil, topologyErrorf("line charging B cannot be negative, got %g", b)
	}
	return &TransmissionLine{Length: length, R: r, X: x, B: b}, nil
}

func (l *TransmissionLine) Admittances() (yii, yij, yjj, yji complex128) {
	// R, X and B are per unit length; the series impedance grows and the
	// charging accumulates with the line.
	y := 1 / (complex(l.R, l.X) * complex(l.Length, 0))
	shunt := complex(0, l.B*l.Length/2)
	return y + shunt, y, y + shunt, y
}

// Transformer is a branch two-port representing a transformer and/or phase
// shifter with complex ratio 1:K. A real K changes voltage magnitude, a
// complex K additionally shifts phase, which makes the branch admittance
// asymmetric.
type Transformer struct {
	K complex128 // turns ratio
	R float64    // series resistance, per-unit
	X float64    // series reactance, per-unit
}

// NewTransformer validates the transformer parameters. K must be non-zero,
// X strictly positive, R non-negative.
func NewTransformer(k complex128, r, x float64) (*Transformer, error) {
	if k == 0 {
		return nil, topologyErrorf("transformer K-factor cannot be zero")
	}
	if x <= 0 {
		return nil, topologyErrorf("transformer reactance X must be strictly positive, got %g", x)
	}
	if r < 0 {
		return nil, topologyErrorf("transformer resistance R cannot be negative, got %g", r)
	}
	return &Transformer{K: k, R: r, X: x}, nil
}

func (t *Transformer) Admittances() (yii, yij, yjj, yji complex128) {
	y := 1 / complex(t.R, t.X)
	absK := cmplx.Abs(t.K)
	return y, y / t.K, y / complex(absK*absK, 0), y / cmplx.Conj(t.K)
}
