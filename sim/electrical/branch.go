package electrical

import "math"

// branchFlowValues is one copy of a branch's solved power flows, per-unit.
// Values are NaN when a solver does not produce them (the direct method
// yields no reactive flows).
type branchFlowValues struct {
	Pij float64 // active power entering from the from-bus terminal
	Qij float64 // reactive power entering from the from-bus terminal
	Pji float64 // active power entering from the to-bus terminal
	Qji float64 // reactive power entering from the to-bus terminal
}

func emptyFlows() branchFlowValues {
	nan := math.NaN()
	return branchFlowValues{Pij: nan, Qij: nan, Pji: nan, Qji: nan}
}

// Branch connects two buses through a two-port. It is oriented from one
// bus to the other; topology is undirected for connectivity purposes, but
// the two-port admittance terms are directional in the admittance matrix.
// Branches are simulation elements so their solved flows are published
// through the same two-phase protocol as everything else.
type Branch struct {
	name    string
	from    *Bus
	to      *Bus
	twoPort TwoPort

	state     branchFlowValues
	published branchFlowValues
}

// Name returns the branch name, unique within the module.
func (br *Branch) Name() string { return br.name }

// From returns the bus the branch starts from.
func (br *Branch) From() *Bus { return br.from }

// To returns the bus the branch goes to.
func (br *Branch) To() *Bus { return br.to }

// TwoPort returns the element placed on the branch.
func (br *Branch) TwoPort() TwoPort { return br.twoPort }

// Pij returns the published active power entering the branch at the
// from-bus terminal, per-unit. NaN before the first solve.
func (br *Branch) Pij() float64 { return br.published.Pij }

// Qij returns the published reactive power entering at the from-bus
// terminal. NaN under the direct method.
func (br *Branch) Qij() float64 { return br.published.Qij }

// Pji returns the published active power entering at the to-bus terminal.
func (br *Branch) Pji() float64 { return br.published.Pji }

// Qji returns the published reactive power entering at the to-bus
// terminal. NaN under the direct method.
func (br *Branch) Qji() float64 { return br.published.Qji }

// Reset clears the branch flows in both private and public copies.
func (br *Branch) Reset() {
	br.state = emptyFlows()
	br.published = br.state
}

// Calculate is a no-op: the module scatters solver branch flows into the
// private copy itself.
func (br *Branch) Calculate(t, dt float64) {}

// Update publishes the solved flows.
func (br *Branch) Update(t, dt float64) {
	br.published = br.state
}

// Attributes exposes the published branch flows.
func (br *Branch) Attributes() map[string]float64 {
	return map[string]float64{
		"Pij": br.published.Pij,
		"Qij": br.published.Qij,
		"Pji": br.published.Pji,
		"Qji": br.published.Qji,
	}
}
