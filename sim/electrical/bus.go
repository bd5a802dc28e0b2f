package electrical

// BusKind tags the role a bus plays in the load-flow problem.
type BusKind int

const (
	// Slack is the single reference bus: fixed voltage magnitude and
	// angle, absorbing any power imbalance in the solved network.
	Slack BusKind = iota
	// PV is a voltage-controlled bus: active power and voltage magnitude
	// are scheduled, reactive power and angle are solved.
	PV
	// PQ is a load bus: active and reactive power are scheduled, voltage
	// magnitude and angle are solved.
	PQ
)

func (k BusKind) String() string {
	switch k {
	case Slack:
		return "slack"
	case PV:
		return "PV"
	case PQ:
		return "PQ"
	default:
		return "unknown"
	}
}

// busValues is one copy of a bus's electrical operating point, per-unit.
type busValues struct {
	P  float64 // active power injection
	Q  float64 // reactive power injection
	V  float64 // voltage magnitude
	Th float64 // voltage angle, radians
}

// Bus is one node of the electrical network. Buses are created through
// Module.AddBus (the slack bus comes with the module) and are simulation
// elements: the module writes solved values into the private copy during
// calculate, and update publishes them.
type Bus struct {
	name string
	kind BusKind
	id   int // row/column in the admittance matrix, slack is 0

	// Scheduled operating point, per-unit. ScheduledP/ScheduledQ are the
	// base injections for PV/PQ buses (elements attached to the bus add
	// on top); ScheduledV is the fixed magnitude for slack and PV buses.
	scheduledP float64
	scheduledQ float64
	scheduledV float64

	state     busValues // written during calculate
	published busValues // visible to other elements and recorders
}

// Name returns the bus name, unique within the module.
func (b *Bus) Name() string { return b.name }

// Kind returns the bus type tag.
func (b *Bus) Kind() BusKind { return b.kind }

// ID returns the bus position in the admittance matrix.
func (b *Bus) ID() int { return b.id }

// P returns the published active power injection, per-unit.
func (b *Bus) P() float64 { return b.published.P }

// Q returns the published reactive power injection, per-unit.
func (b *Bus) Q() float64 { return b.published.Q }

// V returns the published voltage magnitude, per-unit.
func (b *Bus) V() float64 { return b.published.V }

// Th returns the published voltage angle in radians.
func (b *Bus) Th() float64 { return b.published.Th }

func (b *Bus) initialValues() busValues {
	v := 1.0
	if b.kind != PQ {
		v = b.scheduledV
	}
	return busValues{V: v}
}

// Reset restores the bus to its initial operating point: flat voltage
// (scheduled magnitude for slack/PV, 1.0 per-unit for PQ), zero angle and
// zero injections, in both private and public copies.
func (b *Bus) Reset() {
	b.state = b.initialValues()
	b.published = b.state
}

// Calculate is a no-op: the electrical module computes bus values in a
// single vectorized load-flow solve and scatters them into bus private
// state itself.
func (b *Bus) Calculate(t, dt float64) {}

// Update publishes the solved values.
func (b *Bus) Update(t, dt float64) {
	b.published = b.state
}

// Attributes exposes the published operating point.
func (b *Bus) Attributes() map[string]float64 {
	return map[string]float64{
		"P":  b.published.P,
		"Q":  b.published.Q,
		"V":  b.published.V,
		"Th": b.published.Th,
	}
}
