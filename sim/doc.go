// Package sim provides the time-stepped simulation kernel for gridflow.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - module.go: the Module and Element interfaces and the two-phase
//     (calculate/update) state contract every domain implements
//   - simulator.go: the Simulator, its clock, and the step loop that
//     drives all registered modules through calculate -> advance -> update
//   - recorder.go: the Recorder interface and the bindings used to sample
//     published element state after each step
//
// # Architecture
//
// The sim package defines the scheduling core and its interfaces; domain
// implementations live in sub-packages:
//   - sim/electrical/: buses, branches, CPS elements, and the load-flow
//     solvers (direct linearized and Newton-Raphson)
//   - sim/thermal/: thermal processes and conductive couplings
//   - sim/timeseries/: CSV-backed time series used to feed elements
//   - sim/record/: recorder implementations (console, CSV, terminal plot)
//
// # Two-Phase Protocol
//
// Every element carries a private (work-in-progress) and a public
// (last-published) copy of its state. Within one step the simulator first
// calls Calculate on every module in registration order, then advances the
// clock, then calls Update on every module in the same order. Calculate may
// read any element's public state and may write only the element's own
// private state; Update copies private state to public state. No element
// ever observes another element's half-computed values, and outside an
// in-progress step private and public state are identical.
//
// Control-strategy writes do not happen during either phase: they are
// queued as Commands on the Simulator and applied after the update phase
// completes (see command.go).
package sim
