package sim

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"
)

// Simulator owns the simulation clock and the ordered module registry, and
// drives all modules through reset/step/run. Registration order determines
// both calculate-phase and update-phase execution order within a step and is
// preserved for the lifetime of the Simulator.
//
// The Simulator is single-goroutine: exactly one step is in flight at a
// time, and Run honors cancellation between steps only, never mid-step.
type Simulator struct {
	time    float64
	started bool // a reset has happened (explicit or implicit)

	modules []Module
	names   map[string]bool

	recorders []Recorder
	bindings  []*recorderBinding

	pending []Command
}

// NewSimulator creates an empty Simulator with time zero and no modules.
func NewSimulator() *Simulator {
	return &Simulator{
		names: make(map[string]bool),
	}
}

// Time returns the current simulation time in seconds.
func (s *Simulator) Time() float64 { return s.time }

// Register appends a module to the registry. Registering the same instance
// twice, or a second module with the same name, is a configuration error.
// Modules registered after the simulation started participate from the next
// step on.
func (s *Simulator) Register(m Module) error {
	if m == nil {
		return configErrorf("cannot register nil module")
	}
	for _, existing := range s.modules {
		if existing == m {
			return configErrorf("module %q registered twice", m.Name())
		}
	}
	if s.names[m.Name()] {
		return configErrorf("duplicate module name %q", m.Name())
	}
	s.modules = append(s.modules, m)
	s.names[m.Name()] = true
	return nil
}

// Module returns the registered module with the given name, or nil.
func (s *Simulator) Module(name string) Module {
	for _, m := range s.modules {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// Element searches all registered modules for an element with the given
// name and returns the first match, or nil.
func (s *Simulator) Element(name string) Element {
	for _, m := range s.modules {
		for _, el := range m.Elements() {
			if el.Name() == name {
				return el
			}
		}
	}
	return nil
}

// Reset sets the clock to zero, drops queued commands, and resets every
// registered module in registration order, restoring all element private
// and public state to initial values. Calling Reset twice yields the same
// state as once.
func (s *Simulator) Reset() error {
	s.time = 0
	s.pending = nil
	for _, m := range s.modules {
		if err := m.Reset(); err != nil {
			return &StepError{Module: m.Name(), Phase: "reset", Err: err}
		}
	}
	for _, b := range s.bindings {
		b.reset()
	}
	s.started = true
	return nil
}

func validStep(dt float64) bool {
	return dt > 0 && !math.IsInf(dt, 1) && !math.IsNaN(dt)
}

// Step executes one simulation step of size dt: calculate on every module
// in registration order, clock advance, then update on every module in the
// same order. If the simulation has never been reset an implicit Reset
// happens first. On any module error the step is abandoned, the clock keeps
// its pre-step value, and the error is returned wrapped in a StepError.
func (s *Simulator) Step(dt float64) error {
	if !validStep(dt) {
		return configErrorf("step size must be a positive finite number, got %v", dt)
	}
	if !s.started {
		if err := s.Reset(); err != nil {
			return err
		}
	}

	logrus.Debugf("[t=%10.3fs] step dt=%gs (%d modules)", s.time, dt, len(s.modules))

	for _, m := range s.modules {
		if err := m.Calculate(s.time, dt); err != nil {
			return &StepError{Module: m.Name(), Phase: "calculate", Err: err}
		}
	}

	s.time += dt

	for _, m := range s.modules {
		if err := m.Update(s.time, dt); err != nil {
			s.time -= dt // the failed step never happened
			return &StepError{Module: m.Name(), Phase: "update", Err: err}
		}
	}

	s.sampleRecorders()

	return s.applyPending()
}

// Run repeatedly steps the simulation with the given step size until the
// accumulated elapsed time reaches duration. The final step is shortened so
// the total never exceeds duration. Cancellation of ctx is honored between
// steps only; an interrupted run leaves the simulation at the end of the
// last completed step.
func (s *Simulator) Run(ctx context.Context, duration, stepSize float64) error {
	if duration < 0 || math.IsNaN(duration) {
		return configErrorf("duration must be non-negative, got %v", duration)
	}
	if !validStep(stepSize) {
		return configErrorf("step size must be a positive finite number, got %v", stepSize)
	}

	elapsed := 0.0
	for elapsed < duration {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		dt := stepSize
		if remaining := duration - elapsed; remaining < dt {
			dt = remaining
		}
		if err := s.Step(dt); err != nil {
			return err
		}
		elapsed += dt
	}
	return nil
}

// Send queues a control command for application after the next update phase
// completes. Commands never run inside the protected calculate/update
// window.
func (s *Simulator) Send(cmd Command) {
	s.pending = append(s.pending, cmd)
}

func (s *Simulator) applyPending() error {
	if len(s.pending) == 0 {
		return nil
	}
	cmds := s.pending
	s.pending = nil
	for _, cmd := range cmds {
		if err := cmd.Apply(s); err != nil {
			return configErrorf("control command: %v", err)
		}
	}
	return nil
}
