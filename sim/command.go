package sim

import "fmt"

// Command is a deferred control-strategy write. Commands queued with
// Simulator.Send are applied after the update phase of the step during
// which they were queued, so they can never race the protected
// calculate-to-update state copy.
type Command interface {
	Apply(s *Simulator) error
}

// SetAttr sets a named attribute on a named element. The target element
// must implement AttrSetter. The core does not validate the physical
// plausibility of the written value.
type SetAttr struct {
	Element   string
	Attribute string
	Value     float64
}

func (c SetAttr) Apply(s *Simulator) error {
	el := s.Element(c.Element)
	if el == nil {
		return fmt.Errorf("unknown element %q", c.Element)
	}
	setter, ok := el.(AttrSetter)
	if !ok {
		return fmt.Errorf("element %q does not accept attribute writes", c.Element)
	}
	if err := setter.SetAttribute(c.Attribute, c.Value); err != nil {
		return fmt.Errorf("element %q: %w", c.Element, err)
	}
	return nil
}

// CommandFunc adapts a plain function to the Command interface.
type CommandFunc func(s *Simulator) error

func (f CommandFunc) Apply(s *Simulator) error { return f(s) }
