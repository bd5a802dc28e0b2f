package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gridflow-sim/gridflow-sim/sim"
	"github.com/gridflow-sim/gridflow-sim/sim/electrical"
	"github.com/gridflow-sim/gridflow-sim/sim/record"
	"github.com/gridflow-sim/gridflow-sim/sim/thermal"
	"github.com/gridflow-sim/gridflow-sim/sim/timeseries"
)

// Scenario is the YAML description of one simulation run: the network
// topology, the attached elements and what to record.
type Scenario struct {
	Name     string  `yaml:"name"`
	Duration float64 `yaml:"duration"`
	Step     float64 `yaml:"step"`
	Seed     int64   `yaml:"seed"`

	Solver        string  `yaml:"solver"` // "newton" (default) or "direct"
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"max-iterations"`

	Bases struct {
		S float64 `yaml:"s"`
		V float64 `yaml:"v"`
	} `yaml:"bases"`
	Slack struct {
		Voltage float64 `yaml:"voltage"`
	} `yaml:"slack"`

	Buses    []BusConfig     `yaml:"buses"`
	Branches []BranchConfig  `yaml:"branches"`
	Elements []ElementConfig `yaml:"elements"`
	Thermal  *ThermalConfig  `yaml:"thermal"`
	Record   []RecordConfig  `yaml:"record"`
}

// BusConfig describes one non-slack bus. Kind is "pq" or "pv"; powers are
// per-unit injections, so loads are negative.
type BusConfig struct {
	Name string  `yaml:"name"`
	Kind string  `yaml:"kind"`
	P    float64 `yaml:"p"`
	Q    float64 `yaml:"q"`
	V    float64 `yaml:"v"`
}

// BranchConfig describes one branch; exactly one of Line or Transformer
// must be set.
type BranchConfig struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To   string `yaml:"to"`

	Line *struct {
		Length float64 `yaml:"length"`
		R      float64 `yaml:"r"`
		X      float64 `yaml:"x"`
		B      float64 `yaml:"b"`
	} `yaml:"line"`
	Transformer *struct {
		K float64 `yaml:"k"`
		R float64 `yaml:"r"`
		X float64 `yaml:"x"`
	} `yaml:"transformer"`
}

// ElementConfig describes one consumer or producer attached to a bus.
// Kind selects the element type and which of the remaining fields apply.
type ElementConfig struct {
	Name string `yaml:"name"`
	Bus  string `yaml:"bus"`
	Kind string `yaml:"kind"` // constant, cyclic, gaussian, timeseries

	Power     float64 `yaml:"power"`
	Amplitude float64 `yaml:"amplitude"`
	Period    float64 `yaml:"period"`
	Phase     float64 `yaml:"phase"`
	Stddev    float64 `yaml:"stddev"`
	File      string  `yaml:"file"`
	Column    string  `yaml:"column"`
}

// ThermalConfig describes an optional thermal module simulated alongside
// the network.
type ThermalConfig struct {
	Processes []struct {
		Name        string  `yaml:"name"`
		Mass        float64 `yaml:"mass"`
		Capacity    float64 `yaml:"capacity"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"processes"`
	Couplings []struct {
		Name        string  `yaml:"name"`
		A           string  `yaml:"a"`
		B           string  `yaml:"b"`
		Conductance float64 `yaml:"conductance"`
	} `yaml:"couplings"`
}

// RecordConfig wires one attribute of a set of elements to a sink:
// "console", "csv" (needs Path) or "plot".
type RecordConfig struct {
	Attribute string   `yaml:"attribute"`
	Subjects  []string `yaml:"subjects"`
	Sink      string   `yaml:"sink"`
	Path      string   `yaml:"path"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Step <= 0 {
		return nil, fmt.Errorf("scenario step must be positive, got %v", sc.Step)
	}
	if sc.Duration < 0 {
		return nil, fmt.Errorf("scenario duration must not be negative, got %v", sc.Duration)
	}
	return &sc, nil
}

// buildSolver instantiates the configured load-flow solver.
func (sc *Scenario) buildSolver() (electrical.Solver, error) {
	switch strings.ToLower(sc.Solver) {
	case "", "newton", "newton-raphson":
		ns := electrical.NewNewtonSolver()
		if sc.Tolerance > 0 {
			ns.Tolerance = sc.Tolerance
		}
		if sc.MaxIterations > 0 {
			ns.MaxIterations = sc.MaxIterations
		}
		return ns, nil
	case "direct":
		return electrical.NewDirectSolver(), nil
	default:
		return nil, fmt.Errorf("unknown solver %q", sc.Solver)
	}
}

// buildResult bundles everything Build produces that the run command
// needs afterwards.
type buildResult struct {
	simulator *sim.Simulator
	grid      *electrical.Module
	plots     []*record.Plot
	closers   []io.Closer
	flushers  []func() error
}

// Build assembles the simulator described by the scenario.
func (sc *Scenario) Build() (*buildResult, error) {
	solver, err := sc.buildSolver()
	if err != nil {
		return nil, err
	}

	grid := electrical.New("electrical", solver)
	if sc.Bases.S > 0 || sc.Bases.V > 0 {
		if err := grid.SetBase(sc.Bases.S, sc.Bases.V); err != nil {
			return nil, err
		}
	}
	if sc.Slack.Voltage > 0 {
		if err := grid.SetSlackVoltage(sc.Slack.Voltage); err != nil {
			return nil, err
		}
	}

	for _, bc := range sc.Buses {
		switch strings.ToLower(bc.Kind) {
		case "", "pq":
			_, err = grid.AddPQBus(bc.Name, bc.P, bc.Q)
		case "pv":
			_, err = grid.AddPVBus(bc.Name, bc.P, bc.V)
		default:
			err = fmt.Errorf("bus %q: unknown kind %q", bc.Name, bc.Kind)
		}
		if err != nil {
			return nil, err
		}
	}

	for _, brc := range sc.Branches {
		var tp electrical.TwoPort
		switch {
		case brc.Line != nil && brc.Transformer != nil:
			return nil, fmt.Errorf("branch %q: line and transformer are mutually exclusive", brc.Name)
		case brc.Line != nil:
			length := brc.Line.Length
			if length == 0 {
				length = 1.0
			}
			tp, err = electrical.NewTransmissionLine(length, brc.Line.R, brc.Line.X, brc.Line.B)
		case brc.Transformer != nil:
			tp, err = electrical.NewTransformer(complex(brc.Transformer.K, 0), brc.Transformer.R, brc.Transformer.X)
		default:
			return nil, fmt.Errorf("branch %q: needs a line or a transformer", brc.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("branch %q: %w", brc.Name, err)
		}
		if _, err := grid.Connect(brc.Name, brc.From, brc.To, tp); err != nil {
			return nil, err
		}
	}

	streams := sim.NewPartitionedRNG(sim.NewSimulationKey(sc.Seed))
	for _, ec := range sc.Elements {
		var elem electrical.CPSElement
		switch strings.ToLower(ec.Kind) {
		case "", "constant":
			elem = electrical.NewConstantElement(ec.Name, ec.Power)
		case "cyclic":
			if ec.Period <= 0 {
				return nil, fmt.Errorf("element %q: cyclic needs a positive period", ec.Name)
			}
			elem = electrical.NewCyclicElement(ec.Name, ec.Power, ec.Amplitude, ec.Period, ec.Phase)
		case "gaussian":
			elem = electrical.NewGaussianRandomElement(ec.Name, ec.Power, ec.Stddev, streams)
		case "timeseries":
			series, err := timeseries.Load(ec.File)
			if err != nil {
				return nil, fmt.Errorf("element %q: %w", ec.Name, err)
			}
			elem, err = electrical.NewTimeSeriesElement(ec.Name, series, ec.Column)
			if err != nil {
				return nil, fmt.Errorf("element %q: %w", ec.Name, err)
			}
		default:
			return nil, fmt.Errorf("element %q: unknown kind %q", ec.Name, ec.Kind)
		}
		if err := grid.Attach(ec.Bus, elem); err != nil {
			return nil, err
		}
	}

	s := sim.NewSimulator()
	if err := s.Register(grid); err != nil {
		return nil, err
	}

	if sc.Thermal != nil {
		th := thermal.New("thermal")
		for _, pc := range sc.Thermal.Processes {
			if _, err := th.AddProcess(pc.Name, pc.Mass, pc.Capacity, pc.Temperature); err != nil {
				return nil, err
			}
		}
		for _, cc := range sc.Thermal.Couplings {
			if _, err := th.Couple(cc.Name, cc.A, cc.B, cc.Conductance); err != nil {
				return nil, err
			}
		}
		if err := s.Register(th); err != nil {
			return nil, err
		}
	}

	res := &buildResult{simulator: s, grid: grid}
	for _, rc := range sc.Record {
		subjects := make([]sim.Element, 0, len(rc.Subjects))
		for _, name := range rc.Subjects {
			e := s.Element(name)
			if e == nil {
				return nil, fmt.Errorf("record: unknown element %q", name)
			}
			subjects = append(subjects, e)
		}
		var rec sim.Recorder
		switch strings.ToLower(rc.Sink) {
		case "", "console":
			rec = record.NewConsole(os.Stdout)
		case "csv":
			if rc.Path == "" {
				return nil, fmt.Errorf("csv recorder for %q needs a path", rc.Attribute)
			}
			f, err := os.Create(rc.Path)
			if err != nil {
				return nil, fmt.Errorf("create recorder output: %w", err)
			}
			c := record.NewCSV(f)
			res.closers = append(res.closers, f)
			res.flushers = append(res.flushers, c.Flush)
			rec = c
		case "plot":
			p := record.NewPlot()
			res.plots = append(res.plots, p)
			rec = p
		default:
			return nil, fmt.Errorf("unknown recorder sink %q", rc.Sink)
		}
		if err := s.Record(rec, rc.Attribute, subjects...); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Close flushes and closes any file-backed recorders.
func (r *buildResult) Close() error {
	var first error
	for _, fl := range r.flushers {
		if err := fl(); err != nil && first == nil {
			first = err
		}
	}
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
