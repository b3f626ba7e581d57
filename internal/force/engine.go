// Package force implements the opt-in force-directed layout driver: a
// d3-style cooling simulation with Barnes-Hut charge, link springs,
// box-or-circle collision and a pull toward each node's intended position.
package force

import (
	"log/slog"
)

// Event is a topology change that restarts the simulation in ModeAuto.
type Event int

const (
	EventNodeCreated Event = iota
	EventNodeDeleted
	EventDragEnd
	EventReparent
	EventConnect
	EventRestore
)

func (e Event) String() string {
	switch e {
	case EventNodeCreated:
		return "node_created"
	case EventNodeDeleted:
		return "node_deleted"
	case EventDragEnd:
		return "drag_end"
	case EventReparent:
		return "reparent"
	case EventConnect:
		return "connect"
	case EventRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Source supplies the particles and links a new simulation starts from.
type Source interface {
	Particles() ([]Particle, []LinkSpec)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() ([]Particle, []LinkSpec)

// Particles implements Source.
func (f SourceFunc) Particles() ([]Particle, []LinkSpec) { return f() }

// StateFunc observes mode changes and simulation start/stop.
type StateFunc func(mode Mode, running bool)

// Engine owns the mode and the current simulation of one canvas.
type Engine struct {
	mode    Mode
	params  Params
	spacing Spacing
	source  Source
	sim     *Simulation
	onState StateFunc
	logger  *slog.Logger
}

// NewEngine returns an idle engine.
func NewEngine(mode Mode, params Params, spacing Spacing, source Source, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		mode:    mode,
		params:  params.Normalized(),
		spacing: spacing,
		source:  source,
		logger:  logger,
	}
}

// OnStateChange registers the state observer.
func (e *Engine) OnStateChange(fn StateFunc) { e.onState = fn }

// Mode returns the current mode.
func (e *Engine) Mode() Mode { return e.mode }

// Params returns the current coefficients.
func (e *Engine) Params() Params { return e.params }

// Running reports whether a simulation is in progress.
func (e *Engine) Running() bool { return e.sim != nil && e.sim.Running() }

// Simulation returns the current simulation, nil when none has started.
func (e *Engine) Simulation() *Simulation { return e.sim }

// SetMode switches mode. Switching to ModeOff stops a running simulation.
func (e *Engine) SetMode(m Mode) {
	if m == e.mode {
		return
	}
	e.mode = m
	if m == ModeOff && e.Running() {
		e.sim.Stop()
		e.sim = nil
	}
	e.logger.Debug("layout mode changed", "mode", m.String())
	e.notify()
}

// SetParams replaces the coefficients. A running simulation is discarded;
// the next trigger builds a fresh one with the new values.
func (e *Engine) SetParams(p Params) {
	e.params = p.Normalized()
	if e.Running() {
		e.sim.Stop()
		e.sim = nil
		e.notify()
	}
}

// Trigger starts a fresh run unless the engine is off.
func (e *Engine) Trigger() bool {
	if e.mode == ModeOff {
		return false
	}
	return e.start()
}

// Notify reports a topology change. In ModeAuto it restarts the simulation.
func (e *Engine) Notify(ev Event) bool {
	if e.mode != ModeAuto {
		return false
	}
	e.logger.Debug("restarting simulation", "event", ev.String())
	return e.start()
}

// Stop ends the current run early.
func (e *Engine) Stop() {
	if !e.Running() {
		return
	}
	e.sim.Stop()
	e.notify()
}

// Tick advances the running simulation by up to n ticks and returns the
// resulting particles and whether the run finished during this call.
func (e *Engine) Tick(n int) ([]Particle, bool) {
	if !e.Running() {
		return nil, false
	}
	for i := 0; i < n; i++ {
		if !e.sim.Tick() {
			break
		}
	}
	ps := e.sim.Particles()
	if !e.sim.Running() {
		e.logger.Debug("simulation cooled", "ticks", e.sim.Ticks(), "alpha", e.sim.Alpha())
		e.notify()
		return ps, true
	}
	return ps, false
}

// RunToCompletion ticks until the simulation cools and returns the final
// particles.
func (e *Engine) RunToCompletion() []Particle {
	if !e.Running() {
		return nil
	}
	for e.sim.Tick() {
	}
	e.notify()
	return e.sim.Particles()
}

func (e *Engine) start() bool {
	if e.source == nil {
		return false
	}
	particles, links := e.source.Particles()
	if len(particles) == 0 {
		return false
	}
	if !e.params.IncludeReferences {
		links = hierarchyLinks(links)
	}
	e.sim = NewSimulation(e.params, e.spacing, particles, links)
	e.notify()
	return true
}

func (e *Engine) notify() {
	if e.onState != nil {
		e.onState(e.mode, e.Running())
	}
}

func hierarchyLinks(links []LinkSpec) []LinkSpec {
	out := links[:0:0]
	for _, l := range links {
		if !l.Reference {
			out = append(out, l)
		}
	}
	return out
}
