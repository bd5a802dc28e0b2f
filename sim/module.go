package sim

// Module is one simulation domain (electrical, thermal, ...) registered with
// the Simulator. The Simulator drives every module through the two-phase
// protocol: Calculate on all modules, clock advance, then Update on all
// modules, always in registration order.
//
// A module may implement Calculate by delegating to each element's own
// Calculate, or by a single vectorized computation across all its elements
// (the electrical module does the latter, since a coupled load-flow system
// cannot be expressed per element). Either way the module must scatter
// results into element private state before Update runs, so that Update
// remains a uniform private-to-public copy.
type Module interface {
	// Name identifies the module's domain ("electrical", "thermal", ...).
	// Names must be unique within one Simulator.
	Name() string

	// Reset restores every owned element to its initial state, both private
	// and public copies.
	Reset() error

	// Calculate computes the next private state of every owned element from
	// published public state. t is the simulation time at the start of the
	// step, dt the step size.
	Calculate(t, dt float64) error

	// Update publishes each element's private state. Runs only after every
	// registered module finished Calculate for the same step.
	Update(t, dt float64) error

	// Elements returns all elements owned by the module, in a stable order.
	// The Simulator uses this for recorder bindings and element lookup.
	Elements() []Element
}

// Element is a leaf simulation entity owned by exactly one Module.
type Element interface {
	// Name identifies the element. Must be unique within its module.
	Name() string

	// Reset restores private and public state to initial values.
	Reset()

	// Calculate computes the element's next private state. Only the
	// element's own private state may be written here.
	Calculate(t, dt float64)

	// Update copies the element's private state to its public state.
	Update(t, dt float64)

	// Attributes exposes the element's public state as named numeric
	// values. Recorders sample these after each update phase; the mapping
	// must reflect only published (public) state.
	Attributes() map[string]float64
}

// AttrSetter is implemented by elements that accept external writes to a
// named attribute. Control commands use it between steps; the core never
// validates the physical plausibility of such writes.
type AttrSetter interface {
	SetAttribute(name string, value float64) error
}
