package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow-sim/gridflow-sim/sim/electrical"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const twoBusScenario = `
name: two-bus
duration: 5
step: 1
seed: 7
solver: newton
slack:
  voltage: 1.0
buses:
  - name: load
    kind: pq
    p: -0.1
    q: -0.05
branches:
  - name: line
    from: slack
    to: load
    line: {x: 0.1}
elements:
  - name: house
    bus: load
    kind: constant
    power: 0.02
`

func TestLoadScenario_Validation(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadScenario(filepath.Join(t.TempDir(), "none.yaml"))
		assert.Error(t, err)
	})
	t.Run("bad yaml", func(t *testing.T) {
		_, err := LoadScenario(writeScenario(t, "step: [broken"))
		assert.Error(t, err)
	})
	t.Run("non-positive step", func(t *testing.T) {
		_, err := LoadScenario(writeScenario(t, "step: 0\nduration: 1\n"))
		assert.Error(t, err)
	})
	t.Run("negative duration", func(t *testing.T) {
		_, err := LoadScenario(writeScenario(t, "step: 1\nduration: -1\n"))
		assert.Error(t, err)
	})
}

func TestScenario_BuildAndRun(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, twoBusScenario))
	require.NoError(t, err)
	assert.Equal(t, "two-bus", sc.Name)

	res, err := sc.Build()
	require.NoError(t, err)
	defer res.Close()

	require.NoError(t, res.simulator.Run(context.Background(), sc.Duration, sc.Step))
	assert.InDelta(t, 5.0, res.simulator.Time(), 1e-12)

	load, ok := res.grid.Bus("load")
	require.True(t, ok)
	// Scheduled load plus the published element demand.
	assert.InDelta(t, -0.12, load.P(), 1e-9)
	assert.Less(t, load.Th(), 0.0)
}

func TestScenario_SolverSelection(t *testing.T) {
	tests := []struct {
		name    string
		solver  string
		want    string
		wantErr bool
	}{
		{name: "default", solver: "", want: "newton-raphson"},
		{name: "newton", solver: "newton", want: "newton-raphson"},
		{name: "direct", solver: "direct", want: "direct"},
		{name: "unknown", solver: "magic", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &Scenario{Solver: tt.solver}
			s, err := sc.buildSolver()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Name())
		})
	}
}

func TestScenario_SolverTuning(t *testing.T) {
	sc := &Scenario{Solver: "newton", Tolerance: 1e-6, MaxIterations: 10}
	s, err := sc.buildSolver()
	require.NoError(t, err)
	ns, ok := s.(*electrical.NewtonSolver)
	require.True(t, ok)
	assert.Equal(t, 1e-6, ns.Tolerance)
	assert.Equal(t, 10, ns.MaxIterations)
}

func TestScenario_BuildErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown bus kind", body: `
step: 1
buses: [{name: a, kind: weird}]
`},
		{name: "branch without model", body: `
step: 1
buses: [{name: a, kind: pq}]
branches: [{name: l, from: slack, to: a}]
`},
		{name: "branch with both models", body: `
step: 1
buses: [{name: a, kind: pq}]
branches: [{name: l, from: slack, to: a, line: {x: 0.1}, transformer: {k: 1, x: 0.1}}]
`},
		{name: "unknown element kind", body: `
step: 1
buses: [{name: a, kind: pq}]
branches: [{name: l, from: slack, to: a, line: {x: 0.1}}]
elements: [{name: e, bus: a, kind: fusion}]
`},
		{name: "cyclic without period", body: `
step: 1
buses: [{name: a, kind: pq}]
branches: [{name: l, from: slack, to: a, line: {x: 0.1}}]
elements: [{name: e, bus: a, kind: cyclic}]
`},
		{name: "record unknown element", body: `
step: 1
buses: [{name: a, kind: pq}]
branches: [{name: l, from: slack, to: a, line: {x: 0.1}}]
record: [{attribute: V, subjects: [missing]}]
`},
		{name: "record unknown sink", body: `
step: 1
buses: [{name: a, kind: pq}]
branches: [{name: l, from: slack, to: a, line: {x: 0.1}}]
record: [{attribute: V, subjects: [a], sink: tape}]
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := LoadScenario(writeScenario(t, tt.body))
			require.NoError(t, err)
			_, err = sc.Build()
			assert.Error(t, err)
		})
	}
}

func TestScenario_CSVRecorderWritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	body := twoBusScenario + `
record:
  - attribute: V
    subjects: [load]
    sink: csv
    path: ` + out + "\n"

	sc, err := LoadScenario(writeScenario(t, body))
	require.NoError(t, err)
	res, err := sc.Build()
	require.NoError(t, err)

	require.NoError(t, res.simulator.Run(context.Background(), 3, 1))
	require.NoError(t, res.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "t,load")
}

func TestScenario_ThermalModule(t *testing.T) {
	body := twoBusScenario + `
thermal:
  processes:
    - {name: room, mass: 10, capacity: 1000, temperature: 293}
    - {name: wall, mass: 100, capacity: 800, temperature: 283}
  couplings:
    - {name: leak, a: room, b: wall, conductance: 20}
`
	sc, err := LoadScenario(writeScenario(t, body))
	require.NoError(t, err)
	res, err := sc.Build()
	require.NoError(t, err)
	defer res.Close()

	require.NoError(t, res.simulator.Run(context.Background(), 10, 1))
	room := res.simulator.Element("room")
	require.NotNil(t, room)
	assert.Less(t, room.Attributes()["T"], 293.0)
}
