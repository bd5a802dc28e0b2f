package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubElement is a minimal two-phase element counting one value.
type stubElement struct {
	name      string
	value     float64 // published
	pending   float64
	increment float64
}

func (e *stubElement) Name() string { return e.name }
func (e *stubElement) Reset() {
	e.value = 0
	e.pending = 0
}
func (e *stubElement) Calculate(t, dt float64) { e.pending = e.value + e.increment*dt }
func (e *stubElement) Update(t, dt float64)    { e.value = e.pending }
func (e *stubElement) Attributes() map[string]float64 {
	return map[string]float64{"value": e.value}
}
func (e *stubElement) SetAttribute(name string, v float64) error {
	if name != "increment" {
		return fmt.Errorf("no attribute %q", name)
	}
	e.increment = v
	return nil
}

// stubModule records the order of lifecycle calls into a shared trace.
type stubModule struct {
	name  string
	elems []*stubElement
	trace *[]string

	calcErr   error
	updateErr error
	resetErr  error
	resets    int
}

func newStubModule(name string, trace *[]string, elems ...*stubElement) *stubModule {
	return &stubModule{name: name, trace: trace, elems: elems}
}

func (m *stubModule) log(event string) {
	if m.trace != nil {
		*m.trace = append(*m.trace, m.name+"."+event)
	}
}

func (m *stubModule) Name() string { return m.name }

func (m *stubModule) Reset() error {
	m.log("reset")
	m.resets++
	if m.resetErr != nil {
		return m.resetErr
	}
	for _, e := range m.elems {
		e.Reset()
	}
	return nil
}

func (m *stubModule) Calculate(t, dt float64) error {
	m.log("calculate")
	if m.calcErr != nil {
		return m.calcErr
	}
	for _, e := range m.elems {
		e.Calculate(t, dt)
	}
	return nil
}

func (m *stubModule) Update(t, dt float64) error {
	m.log("update")
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, e := range m.elems {
		e.Update(t, dt)
	}
	return nil
}

func (m *stubModule) Elements() []Element {
	out := make([]Element, len(m.elems))
	for i, e := range m.elems {
		out[i] = e
	}
	return out
}

func TestSimulator_StepAdvancesClock(t *testing.T) {
	s := NewSimulator()
	require.NoError(t, s.Register(newStubModule("a", nil)))

	require.NoError(t, s.Step(0.5))
	assert.Equal(t, 0.5, s.Time())

	require.NoError(t, s.Step(0.25))
	assert.Equal(t, 0.75, s.Time())
}

func TestSimulator_StepRejectsBadStepSizes(t *testing.T) {
	s := NewSimulator()

	for _, dt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		err := s.Step(dt)
		require.Error(t, err, "dt=%v", dt)
		assert.ErrorIs(t, err, ErrConfig)
	}
	assert.Equal(t, 0.0, s.Time())
}

// TestSimulator_PhaseOrdering verifies all calculates run before any
// update, in registration order within each phase.
func TestSimulator_PhaseOrdering(t *testing.T) {
	var trace []string
	s := NewSimulator()
	require.NoError(t, s.Register(newStubModule("a", &trace)))
	require.NoError(t, s.Register(newStubModule("b", &trace)))
	require.NoError(t, s.Register(newStubModule("c", &trace)))

	require.NoError(t, s.Reset())
	trace = trace[:0]
	require.NoError(t, s.Step(1))

	assert.Equal(t, []string{
		"a.calculate", "b.calculate", "c.calculate",
		"a.update", "b.update", "c.update",
	}, trace)
}

func TestSimulator_FirstStepResetsImplicitly(t *testing.T) {
	m := newStubModule("a", nil)
	s := NewSimulator()
	require.NoError(t, s.Register(m))

	require.NoError(t, s.Step(1))
	assert.Equal(t, 1, m.resets)

	// Only the first step resets.
	require.NoError(t, s.Step(1))
	assert.Equal(t, 1, m.resets)
}

func TestSimulator_ResetIsIdempotent(t *testing.T) {
	e := &stubElement{name: "e", increment: 2}
	s := NewSimulator()
	require.NoError(t, s.Register(newStubModule("a", nil, e)))

	require.NoError(t, s.Step(1))
	require.NoError(t, s.Step(1))
	assert.Equal(t, 4.0, e.value)

	require.NoError(t, s.Reset())
	assert.Equal(t, 0.0, s.Time())
	assert.Equal(t, 0.0, e.value)

	require.NoError(t, s.Reset())
	assert.Equal(t, 0.0, e.value)
}

// TestSimulator_RunMatchesManualSteps verifies Run(d, h) is equivalent to
// the same sequence of Step calls, including the shortened final step.
func TestSimulator_RunMatchesManualSteps(t *testing.T) {
	build := func() (*Simulator, *stubElement) {
		e := &stubElement{name: "e", increment: 1}
		s := NewSimulator()
		require.NoError(t, s.Register(newStubModule("a", nil, e)))
		return s, e
	}

	ran, re := build()
	require.NoError(t, ran.Run(context.Background(), 1.0, 0.3))

	stepped, se := build()
	for _, dt := range []float64{0.3, 0.3, 0.3, 0.1} {
		require.NoError(t, stepped.Step(dt))
	}

	assert.InDelta(t, stepped.Time(), ran.Time(), 1e-12)
	assert.InDelta(t, se.value, re.value, 1e-12)
	assert.InDelta(t, 1.0, ran.Time(), 1e-12)
}

func TestSimulator_RunZeroDurationDoesNothing(t *testing.T) {
	m := newStubModule("a", nil)
	s := NewSimulator()
	require.NoError(t, s.Register(m))

	require.NoError(t, s.Run(context.Background(), 0, 1))
	assert.Equal(t, 0.0, s.Time())
	assert.Equal(t, 0, m.resets)
}

func TestSimulator_RunHonorsCancellation(t *testing.T) {
	s := NewSimulator()
	require.NoError(t, s.Register(newStubModule("a", nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx, 10, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0.0, s.Time())
}

func TestSimulator_CalculateErrorAbortsStep(t *testing.T) {
	boom := errors.New("boom")
	bad := newStubModule("bad", nil)
	bad.calcErr = boom
	e := &stubElement{name: "e", increment: 1}

	s := NewSimulator()
	require.NoError(t, s.Register(newStubModule("good", nil, e)))
	require.NoError(t, s.Register(bad))

	require.NoError(t, s.Reset())
	err := s.Step(1)
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "bad", stepErr.Module)
	assert.Equal(t, "calculate", stepErr.Phase)
	assert.ErrorIs(t, err, boom)

	// Clock untouched, nothing published.
	assert.Equal(t, 0.0, s.Time())
	assert.Equal(t, 0.0, e.value)
}

func TestSimulator_UpdateErrorRollsClockBack(t *testing.T) {
	bad := newStubModule("bad", nil)
	bad.updateErr = errors.New("boom")

	s := NewSimulator()
	require.NoError(t, s.Register(bad))
	require.NoError(t, s.Reset())

	err := s.Step(1)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "update", stepErr.Phase)
	assert.Equal(t, 0.0, s.Time())
}

func TestSimulator_RegisterValidation(t *testing.T) {
	s := NewSimulator()
	m := newStubModule("a", nil)

	assert.ErrorIs(t, s.Register(nil), ErrConfig)
	require.NoError(t, s.Register(m))
	assert.ErrorIs(t, s.Register(m), ErrConfig)
	assert.ErrorIs(t, s.Register(newStubModule("a", nil)), ErrConfig)
}

func TestSimulator_ElementLookup(t *testing.T) {
	e := &stubElement{name: "needle"}
	s := NewSimulator()
	require.NoError(t, s.Register(newStubModule("a", nil)))
	require.NoError(t, s.Register(newStubModule("b", nil, e)))

	assert.Nil(t, s.Element("missing"))
	found := s.Element("needle")
	require.NotNil(t, found)
	assert.Same(t, Element(e), found)

	assert.Nil(t, s.Module("missing"))
	assert.NotNil(t, s.Module("b"))
}

// captureRecorder keeps everything it is told.
type captureRecorder struct {
	resets  [][]string
	samples []string
	steps   []float64
}

func (r *captureRecorder) OnSimulationReset(subjects []string) {
	r.resets = append(r.resets, subjects)
}
func (r *captureRecorder) OnObservedValue(subject string, t, value float64) {
	r.samples = append(r.samples, fmt.Sprintf("%s@%g=%g", subject, t, value))
}
func (r *captureRecorder) OnSimulationStep(t float64) {
	r.steps = append(r.steps, t)
}

func TestSimulator_RecorderSeesPublishedValues(t *testing.T) {
	e1 := &stubElement{name: "e1", increment: 1}
	e2 := &stubElement{name: "e2", increment: 2}
	s := NewSimulator()
	require.NoError(t, s.Register(newStubModule("a", nil, e1, e2)))

	rec := &captureRecorder{}
	require.NoError(t, s.Record(rec, "value", e1, e2))

	require.NoError(t, s.Step(1))
	require.NoError(t, s.Step(1))

	require.Len(t, rec.resets, 1)
	assert.Equal(t, []string{"e1", "e2"}, rec.resets[0])
	assert.Equal(t, []string{
		"e1@1=1", "e2@1=2",
		"e1@2=2", "e2@2=4",
	}, rec.samples)
	// One step callback per step regardless of subject count.
	assert.Equal(t, []float64{1, 2}, rec.steps)
}

func TestSimulator_RecordValidation(t *testing.T) {
	s := NewSimulator()
	e := &stubElement{name: "e"}

	assert.ErrorIs(t, s.Record(nil, "value", e), ErrConfig)
	assert.ErrorIs(t, s.Record(&captureRecorder{}, "value"), ErrConfig)
	assert.ErrorIs(t, s.Record(&captureRecorder{}, "value", nil), ErrConfig)
}

func TestSimulator_CommandsApplyAfterUpdate(t *testing.T) {
	e := &stubElement{name: "e", increment: 1}
	s := NewSimulator()
	require.NoError(t, s.Register(newStubModule("a", nil, e)))
	require.NoError(t, s.Reset())

	s.Send(SetAttr{Element: "e", Attribute: "increment", Value: 10})

	// The step during which the command is queued still runs with the
	// old value.
	require.NoError(t, s.Step(1))
	assert.Equal(t, 1.0, e.value)

	require.NoError(t, s.Step(1))
	assert.Equal(t, 11.0, e.value)
}

// TestSimulator_ResetDropsQueuedCommands verifies a command queued before
// a reset never fires on the fresh run.
func TestSimulator_ResetDropsQueuedCommands(t *testing.T) {
	e := &stubElement{name: "e", increment: 1}
	s := NewSimulator()
	require.NoError(t, s.Register(newStubModule("a", nil, e)))

	s.Send(SetAttr{Element: "e", Attribute: "increment", Value: 10})
	require.NoError(t, s.Reset())

	require.NoError(t, s.Step(1))
	require.NoError(t, s.Step(1))
	assert.Equal(t, 2.0, e.value)
}

func TestSimulator_CommandErrors(t *testing.T) {
	e := &stubElement{name: "e"}
	s := NewSimulator()
	require.NoError(t, s.Register(newStubModule("a", nil, e)))
	require.NoError(t, s.Reset())

	s.Send(SetAttr{Element: "missing", Attribute: "increment", Value: 1})
	assert.ErrorIs(t, s.Step(1), ErrConfig)

	s.Send(SetAttr{Element: "e", Attribute: "bogus", Value: 1})
	assert.ErrorIs(t, s.Step(1), ErrConfig)

	// The queue is drained even on failure.
	require.NoError(t, s.Step(1))
}

func TestSimulator_CommandFunc(t *testing.T) {
	s := NewSimulator()
	require.NoError(t, s.Register(newStubModule("a", nil)))
	require.NoError(t, s.Reset())

	called := false
	s.Send(CommandFunc(func(sm *Simulator) error {
		called = true
		return nil
	}))
	require.NoError(t, s.Step(1))
	assert.True(t, called)
}
