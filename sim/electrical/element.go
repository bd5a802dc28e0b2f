package electrical

import (
	"math"
	"math/rand"

	"github.com/gridflow-sim/gridflow-sim/sim"
	"github.com/gridflow-sim/gridflow-sim/sim/timeseries"
)

// CPSElement is an energy consumer or producer attached to a bus. Its
// published delta energy is the energy drawn from the grid over the last
// step; negative values feed energy in. The electrical module folds the
// published values of all attached elements into the scheduled power of
// their bus before solving.
type CPSElement interface {
	sim.Element
	DeltaEnergy() float64
}

// cpsBase carries the two-phase delta-energy state shared by all element
// kinds. Calculate writes the private value, Update publishes it.
type cpsBase struct {
	name string

	deltaEnergy         float64 // published
	internalDeltaEnergy float64 // pending
}

func (c *cpsBase) Name() string         { return c.name }
func (c *cpsBase) DeltaEnergy() float64 { return c.deltaEnergy }

func (c *cpsBase) Reset() {
	c.deltaEnergy = 0
	c.internalDeltaEnergy = 0
}

func (c *cpsBase) Update(t, dt float64) {
	c.deltaEnergy = c.internalDeltaEnergy
}

func (c *cpsBase) Attributes() map[string]float64 {
	return map[string]float64{"E": c.deltaEnergy}
}

// ConstantElement draws a fixed power. The power is adjustable through the
// control command path, so it doubles as the actuator for external
// controllers.
type ConstantElement struct {
	cpsBase
	power float64
}

// NewConstantElement creates an element drawing power watts; negative
// values generate.
func NewConstantElement(name string, power float64) *ConstantElement {
	return &ConstantElement{cpsBase: cpsBase{name: name}, power: power}
}

func (e *ConstantElement) Power() float64 { return e.power }

func (e *ConstantElement) Calculate(t, dt float64) {
	e.internalDeltaEnergy = e.power * dt
}

// SetAttribute adjusts "power" between steps.
func (e *ConstantElement) SetAttribute(name string, value float64) error {
	if name != "power" {
		return topologyErrorf("element %q has no settable attribute %q", e.name, name)
	}
	e.power = value
	return nil
}

// CyclicElement draws a sinusoidal power around a mean, for modelling
// periodic loads such as daily demand profiles.
type CyclicElement struct {
	cpsBase
	mean      float64
	amplitude float64
	period    float64
	phase     float64
}

func NewCyclicElement(name string, mean, amplitude, period, phase float64) *CyclicElement {
	return &CyclicElement{
		cpsBase:   cpsBase{name: name},
		mean:      mean,
		amplitude: amplitude,
		period:    period,
		phase:     phase,
	}
}

func (e *CyclicElement) Calculate(t, dt float64) {
	p := e.mean + e.amplitude*math.Sin(2*math.Pi*t/e.period+e.phase)
	e.internalDeltaEnergy = p * dt
}

// GaussianRandomElement draws a normally distributed power around a mean,
// resampled every step. Its randomness comes from a dedicated subsystem
// stream so runs with the same simulation key reproduce exactly.
type GaussianRandomElement struct {
	cpsBase
	mean   float64
	stddev float64
	rng    *rand.Rand
}

func NewGaussianRandomElement(name string, mean, stddev float64, streams *sim.PartitionedRNG) *GaussianRandomElement {
	return &GaussianRandomElement{
		cpsBase: cpsBase{name: name},
		mean:    mean,
		stddev:  stddev,
		rng:     streams.ForSubsystem("element/" + name),
	}
}

func (e *GaussianRandomElement) Calculate(t, dt float64) {
	p := e.mean + e.stddev*e.rng.NormFloat64()
	e.internalDeltaEnergy = p * dt
}

// TimeSeriesElement replays a recorded power profile. The value of the
// named series column nearest at or before the current time is held for
// the whole step.
type TimeSeriesElement struct {
	cpsBase
	series *timeseries.Series
	column string
}

func NewTimeSeriesElement(name string, series *timeseries.Series, column string) (*TimeSeriesElement, error) {
	if _, err := series.Value(column, 0); err != nil {
		return nil, err
	}
	return &TimeSeriesElement{
		cpsBase: cpsBase{name: name},
		series:  series,
		column:  column,
	}, nil
}

func (e *TimeSeriesElement) Calculate(t, dt float64) {
	// Column existence was checked at construction.
	p, _ := e.series.Value(e.column, t)
	e.internalDeltaEnergy = p * dt
}
