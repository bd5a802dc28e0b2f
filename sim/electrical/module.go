// Package electrical models a steady-state electrical network as a
// simulation module: buses connected by transmission lines and
// transformers, with consumer and producer elements attached to buses.
// Every step the module folds element energy flows into the scheduled bus
// injections and runs a load-flow solve to find voltages, angles and
// branch power flows.
package electrical

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gridflow-sim/gridflow-sim/sim"
)

// Module is an electrical network simulation module. A freshly created
// module holds only the slack bus; buses, branches and elements are added
// before the first step. Topology changes mark the module dirty and the
// next solve re-prepares the solver.
type Module struct {
	name   string
	solver Solver

	sBase float64 // apparent power base, VA
	vBase float64 // voltage base, V

	buses     []*Bus
	busByName map[string]*Bus
	branches  []*Branch
	attached  map[int][]CPSElement
	elements  []CPSElement

	dirty bool
}

// New creates an electrical module using the given load-flow solver. The
// slack bus is created implicitly under the name "slack" with a scheduled
// voltage of 1.0 per-unit; SetSlackVoltage adjusts it.
func New(name string, solver Solver) *Module {
	m := &Module{
		name:      name,
		solver:    solver,
		sBase:     1.0,
		vBase:     1.0,
		busByName: make(map[string]*Bus),
		attached:  make(map[int][]CPSElement),
		dirty:     true,
	}
	slack := &Bus{name: "slack", kind: Slack, id: 0, scheduledV: 1.0}
	m.buses = append(m.buses, slack)
	m.busByName[slack.name] = slack
	return m
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Slack returns the reference bus.
func (m *Module) Slack() *Bus { return m.buses[0] }

// SetBase sets the per-unit system bases. Admittances passed to Connect
// are physical values and get scaled onto these bases; element powers are
// watts and get scaled by the apparent power base.
func (m *Module) SetBase(sBase, vBase float64) error {
	if sBase <= 0 || vBase <= 0 {
		return fmt.Errorf("%w: bases must be positive, got S=%v V=%v", sim.ErrConfig, sBase, vBase)
	}
	m.sBase = sBase
	m.vBase = vBase
	m.dirty = true
	return nil
}

// SetSlackVoltage sets the fixed slack voltage magnitude, per-unit.
func (m *Module) SetSlackVoltage(v float64) error {
	if v <= 0 {
		return fmt.Errorf("%w: slack voltage must be positive, got %v", sim.ErrConfig, v)
	}
	m.buses[0].scheduledV = v
	return nil
}

func (m *Module) addBus(b *Bus) (*Bus, error) {
	if b.name == "" {
		return nil, fmt.Errorf("%w: bus name must not be empty", sim.ErrConfig)
	}
	if _, ok := m.busByName[b.name]; ok {
		return nil, fmt.Errorf("%w: duplicate bus name %q", sim.ErrConfig, b.name)
	}
	b.id = len(m.buses)
	m.buses = append(m.buses, b)
	m.busByName[b.name] = b
	m.dirty = true
	return b, nil
}

// AddPQBus adds a load bus with the given scheduled active and reactive
// injections, per-unit. Consumption is a negative injection.
func (m *Module) AddPQBus(name string, p, q float64) (*Bus, error) {
	return m.addBus(&Bus{name: name, kind: PQ, scheduledP: p, scheduledQ: q})
}

// AddPVBus adds a voltage-controlled bus with the given scheduled active
// injection and voltage magnitude, per-unit.
func (m *Module) AddPVBus(name string, p, v float64) (*Bus, error) {
	if v <= 0 {
		return nil, fmt.Errorf("%w: PV bus voltage must be positive, got %v", sim.ErrConfig, v)
	}
	return m.addBus(&Bus{name: name, kind: PV, scheduledP: p, scheduledV: v})
}

// Bus looks up a bus by name.
func (m *Module) Bus(name string) (*Bus, bool) {
	b, ok := m.busByName[name]
	return b, ok
}

// Connect adds a branch between two existing buses. Parallel branches
// between the same pair of buses are allowed and their admittances
// combine.
func (m *Module) Connect(name, from, to string, tp TwoPort) (*Branch, error) {
	fb, ok := m.busByName[from]
	if !ok {
		return nil, fmt.Errorf("%w: unknown bus %q", sim.ErrConfig, from)
	}
	tb, ok := m.busByName[to]
	if !ok {
		return nil, fmt.Errorf("%w: unknown bus %q", sim.ErrConfig, to)
	}
	if fb == tb {
		return nil, fmt.Errorf("%w: branch %q connects bus %q to itself", sim.ErrConfig, name, from)
	}
	for _, br := range m.branches {
		if br.name == name {
			return nil, fmt.Errorf("%w: duplicate branch name %q", sim.ErrConfig, name)
		}
	}
	br := &Branch{name: name, from: fb, to: tb, twoPort: tp}
	br.state = emptyFlows()
	br.published = br.state
	m.branches = append(m.branches, br)
	m.dirty = true
	return br, nil
}

// RemoveBranch takes a branch out of the network. The next solve runs on
// the reduced topology; removing the last path to a bus makes the solve
// fail with a TopologyError.
func (m *Module) RemoveBranch(name string) error {
	for i, br := range m.branches {
		if br.name == name {
			m.branches = append(m.branches[:i], m.branches[i+1:]...)
			m.dirty = true
			return nil
		}
	}
	return fmt.Errorf("%w: unknown branch %q", sim.ErrConfig, name)
}

// Attach connects a consumer or producer element to a bus. The slack bus
// absorbs the network imbalance and takes no elements.
func (m *Module) Attach(busName string, e CPSElement) error {
	b, ok := m.busByName[busName]
	if !ok {
		return fmt.Errorf("%w: unknown bus %q", sim.ErrConfig, busName)
	}
	if b.kind == Slack {
		return fmt.Errorf("%w: cannot attach element %q to the slack bus", sim.ErrConfig, e.Name())
	}
	for _, other := range m.elements {
		if other.Name() == e.Name() {
			return fmt.Errorf("%w: duplicate element name %q", sim.ErrConfig, e.Name())
		}
	}
	m.attached[b.id] = append(m.attached[b.id], e)
	m.elements = append(m.elements, e)
	return nil
}

// prepare rebuilds the solver's view of the topology. Called lazily so a
// burst of topology edits costs one preparation.
func (m *Module) prepare() error {
	if !m.dirty {
		return nil
	}
	n := len(m.buses)
	isPV := make([]bool, n)
	for i, b := range m.buses {
		isPV[i] = b.kind == PV
	}
	branches := make([][2]int, len(m.branches))
	yb := make([][4]complex128, len(m.branches))
	for k, br := range m.branches {
		branches[k] = [2]int{br.from.id, br.to.id}
		yii, yij, yjj, yji := br.twoPort.Admittances()
		yb[k] = [4]complex128{yii, yij, yjj, yji}
	}
	if err := m.solver.Prepare(m.sBase, m.vBase, isPV, branches, yb); err != nil {
		return err
	}
	m.dirty = false
	logrus.Debugf("%s: prepared %d-bus network with %d branches for the %s solver",
		m.name, n, len(m.branches), m.solver.Name())
	return nil
}

// Reset prepares the solver for the current topology and restores every
// bus, branch and element to its initial state.
func (m *Module) Reset() error {
	if err := m.prepare(); err != nil {
		return err
	}
	for _, b := range m.buses {
		b.Reset()
	}
	for _, br := range m.branches {
		br.Reset()
	}
	for _, e := range m.elements {
		e.Reset()
	}
	return nil
}

// Calculate runs the per-step load flow. Element energy demands are taken
// from their published values of the previous step, folded into the
// scheduled bus injections, and the solve writes the resulting operating
// point into the private state of every bus and branch. On a failed solve
// nothing is written, so the published state keeps the last good operating
// point.
func (m *Module) Calculate(t, dt float64) error {
	if err := m.prepare(); err != nil {
		return err
	}
	for _, e := range m.elements {
		e.Calculate(t, dt)
	}

	n := len(m.buses)
	p := make([]float64, n)
	q := make([]float64, n)
	v := make([]float64, n)
	th := make([]float64, n)
	for i, b := range m.buses {
		p[i] = b.scheduledP
		q[i] = b.scheduledQ
		if b.kind == PQ {
			v[i] = 1.0
		} else {
			v[i] = b.scheduledV
		}
	}
	for id, elems := range m.attached {
		for _, e := range elems {
			p[id] -= e.DeltaEnergy() / dt / m.sBase
		}
	}

	if err := m.solver.Solve(p, q, v, th); err != nil {
		return err
	}
	for i, b := range m.buses {
		b.state = busValues{P: p[i], Q: q[i], V: v[i], Th: th[i]}
	}

	fl, err := m.solver.BranchFlows()
	if err != nil {
		return err
	}
	for k, br := range m.branches {
		br.state = emptyFlows()
		br.state.Pij = fl.Pij[k]
		br.state.Pji = fl.Pji[k]
		if fl.Qij != nil {
			br.state.Qij = fl.Qij[k]
			br.state.Qji = fl.Qji[k]
		}
	}
	return nil
}

// Update publishes the operating point solved during calculate.
func (m *Module) Update(t, dt float64) error {
	for _, e := range m.elements {
		e.Update(t, dt)
	}
	for _, b := range m.buses {
		b.Update(t, dt)
	}
	for _, br := range m.branches {
		br.Update(t, dt)
	}
	return nil
}

// Elements lists the module's buses, branches and attached elements, in
// that order.
func (m *Module) Elements() []sim.Element {
	out := make([]sim.Element, 0, len(m.buses)+len(m.branches)+len(m.elements))
	for _, b := range m.buses {
		out = append(out, b)
	}
	for _, br := range m.branches {
		out = append(out, br)
	}
	for _, e := range m.elements {
		out = append(out, e)
	}
	return out
}
