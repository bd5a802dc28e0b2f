// Package thermal models lumped thermal masses exchanging heat through
// conductive couplings. Each process is a body with a heat capacity and a
// temperature; each coupling moves heat between two processes proportional
// to their published temperature difference. Heat flows are computed from
// the previous step's temperatures, so exchange is explicit in time and
// order-independent.
package thermal

import (
	"fmt"

	"github.com/gridflow-sim/gridflow-sim/sim"
)

// Process is a thermal mass with uniform temperature.
type Process struct {
	name     string
	mass     float64 // kg
	capacity float64 // specific heat, J/(kg K)
	initial  float64 // starting temperature, K

	heatPower float64 // external heat input, W, settable

	pendingEnergy float64 // heat accumulated during calculate, J
	temperature   float64 // private
	published     float64
}

// NewProcess creates a thermal mass starting at the given temperature.
func NewProcess(name string, mass, capacity, temperature float64) (*Process, error) {
	if mass <= 0 {
		return nil, fmt.Errorf("%w: process %q mass must be positive, got %v", sim.ErrConfig, name, mass)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: process %q heat capacity must be positive, got %v", sim.ErrConfig, name, capacity)
	}
	return &Process{name: name, mass: mass, capacity: capacity, initial: temperature}, nil
}

func (p *Process) Name() string { return p.name }

// Temperature returns the published temperature in kelvin.
func (p *Process) Temperature() float64 { return p.published }

func (p *Process) Reset() {
	p.temperature = p.initial
	p.published = p.initial
	p.pendingEnergy = 0
}

// Calculate starts the step's heat balance with the external input,
// discarding leftovers from an aborted step. Couplings add their
// exchanged heat on top via addEnergy.
func (p *Process) Calculate(t, dt float64) {
	p.pendingEnergy = p.heatPower * dt
}

// Update converts the accumulated heat into a temperature change and
// publishes it.
func (p *Process) Update(t, dt float64) {
	p.temperature += p.pendingEnergy / (p.mass * p.capacity)
	p.pendingEnergy = 0
	p.published = p.temperature
}

func (p *Process) Attributes() map[string]float64 {
	return map[string]float64{"T": p.published}
}

// SetAttribute adjusts "power", the external heat input in watts.
func (p *Process) SetAttribute(name string, value float64) error {
	if name != "power" {
		return fmt.Errorf("%w: process %q has no settable attribute %q", sim.ErrConfig, p.name, name)
	}
	p.heatPower = value
	return nil
}

func (p *Process) addEnergy(joules float64) {
	p.pendingEnergy += joules
}

// Coupling conducts heat between two processes. The flow is
// conductance * (Ta - Tb) using published temperatures, positive when heat
// moves from a to b.
type Coupling struct {
	name        string
	a, b        *Process
	conductance float64 // W/K

	flow      float64 // private, W
	published float64
}

func newCoupling(name string, a, b *Process, conductance float64) (*Coupling, error) {
	if a == b {
		return nil, fmt.Errorf("%w: coupling %q connects process %q to itself", sim.ErrConfig, name, a.name)
	}
	if conductance <= 0 {
		return nil, fmt.Errorf("%w: coupling %q conductance must be positive, got %v", sim.ErrConfig, name, conductance)
	}
	return &Coupling{name: name, a: a, b: b, conductance: conductance}, nil
}

func (c *Coupling) Name() string { return c.name }

// Flow returns the published heat flow in watts, positive from the first
// process to the second.
func (c *Coupling) Flow() float64 { return c.published }

func (c *Coupling) Reset() {
	c.flow = 0
	c.published = 0
}

// Calculate computes the heat flow from the published temperatures and
// moves the step's energy between the two processes.
func (c *Coupling) Calculate(t, dt float64) {
	c.flow = c.conductance * (c.a.Temperature() - c.b.Temperature())
	c.a.addEnergy(-c.flow * dt)
	c.b.addEnergy(c.flow * dt)
}

func (c *Coupling) Update(t, dt float64) {
	c.published = c.flow
}

func (c *Coupling) Attributes() map[string]float64 {
	return map[string]float64{"flow": c.published}
}

// Module is a thermal network simulation module.
type Module struct {
	name      string
	processes []*Process
	byName    map[string]*Process
	couplings []*Coupling
}

// New creates an empty thermal module.
func New(name string) *Module {
	return &Module{name: name, byName: make(map[string]*Process)}
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// AddProcess adds a thermal mass starting at the given temperature.
func (m *Module) AddProcess(name string, mass, capacity, temperature float64) (*Process, error) {
	if _, ok := m.byName[name]; ok {
		return nil, fmt.Errorf("%w: duplicate process name %q", sim.ErrConfig, name)
	}
	p, err := NewProcess(name, mass, capacity, temperature)
	if err != nil {
		return nil, err
	}
	m.processes = append(m.processes, p)
	m.byName[name] = p
	return p, nil
}

// Process looks up a process by name.
func (m *Module) Process(name string) (*Process, bool) {
	p, ok := m.byName[name]
	return p, ok
}

// Couple adds a conductive coupling between two existing processes.
func (m *Module) Couple(name, a, b string, conductance float64) (*Coupling, error) {
	pa, ok := m.byName[a]
	if !ok {
		return nil, fmt.Errorf("%w: unknown process %q", sim.ErrConfig, a)
	}
	pb, ok := m.byName[b]
	if !ok {
		return nil, fmt.Errorf("%w: unknown process %q", sim.ErrConfig, b)
	}
	for _, c := range m.couplings {
		if c.name == name {
			return nil, fmt.Errorf("%w: duplicate coupling name %q", sim.ErrConfig, name)
		}
	}
	c, err := newCoupling(name, pa, pb, conductance)
	if err != nil {
		return nil, err
	}
	m.couplings = append(m.couplings, c)
	return c, nil
}

// Reset restores every process and coupling to its initial state.
func (m *Module) Reset() error {
	for _, p := range m.processes {
		p.Reset()
	}
	for _, c := range m.couplings {
		c.Reset()
	}
	return nil
}

// Calculate accumulates this step's heat: external inputs first, then the
// coupling exchanges, all based on published temperatures.
func (m *Module) Calculate(t, dt float64) error {
	for _, p := range m.processes {
		p.Calculate(t, dt)
	}
	for _, c := range m.couplings {
		c.Calculate(t, dt)
	}
	return nil
}

// Update integrates the accumulated heat and publishes the new
// temperatures and flows.
func (m *Module) Update(t, dt float64) error {
	for _, p := range m.processes {
		p.Update(t, dt)
	}
	for _, c := range m.couplings {
		c.Update(t, dt)
	}
	return nil
}

// Elements lists the module's processes and couplings.
func (m *Module) Elements() []sim.Element {
	out := make([]sim.Element, 0, len(m.processes)+len(m.couplings))
	for _, p := range m.processes {
		out = append(out, p)
	}
	for _, c := range m.couplings {
		out = append(out, c)
	}
	return out
}
