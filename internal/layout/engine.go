// Package layout ties the hierarchy, the collision resolver, the force
// simulation and sibling placement together behind the inputs a canvas
// renderer produces and the notifications it consumes.
//
// An Engine is owned by one goroutine. Drags resolve synchronously; settle
// passes, force ticks and debounced size reports advance on Frame.
package layout

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/onnwee/nodelayout/internal/collision"
	"github.com/onnwee/nodelayout/internal/force"
	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
	"github.com/onnwee/nodelayout/internal/metrics"
	"github.com/onnwee/nodelayout/internal/placement"
)

// Option configures an Engine.
type Option func(*Engine)

// WithObserver sets the receiver of position and state notifications.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator replaces the id generator used by ReportCreate.
func WithIDGenerator(fn func() hierarchy.NodeID) Option {
	return func(e *Engine) { e.newID = fn }
}

// Engine is the layout core of one canvas. It is not safe for concurrent use.
type Engine struct {
	cfg      Config
	store    *hierarchy.Store
	resolver *collision.Resolver
	forces   *force.Engine
	planner  placement.Planner
	sizes    *sizeCoalescer
	observer Observer
	logger   *slog.Logger
	newID    func() hierarchy.NodeID

	settleLeft  int
	dispatching bool
}

// New returns an empty engine.
func New(cfg Config, opts ...Option) *Engine {
	cfg = cfg.normalized()
	e := &Engine{
		cfg:      cfg,
		planner:  cfg.planner(),
		sizes:    newSizeCoalescer(cfg.SizeDebounce),
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	var storeOpts []hierarchy.Option
	if e.newID != nil {
		storeOpts = append(storeOpts, hierarchy.WithIDGenerator(e.newID))
	}
	e.store = hierarchy.New(storeOpts...)
	e.resolver = collision.New(cfg.Collision)

	rc := e.resolver.Config()
	spacing := force.Spacing{
		Gap:   geometry.Gap{X: rc.GapX, Y: rc.GapY, Epsilon: rc.Epsilon},
		Shape: rc.Shape,
	}
	e.forces = force.NewEngine(cfg.Mode, cfg.Force, spacing, force.SourceFunc(e.particles), e.logger)
	e.forces.OnStateChange(func(mode force.Mode, running bool) {
		e.dispatch(func(o Observer) { o.OnSimulationStateChanged(mode, running) })
	})
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Mode returns the force layout mode.
func (e *Engine) Mode() force.Mode { return e.forces.Mode() }

// Running reports whether the force simulation is in progress.
func (e *Engine) Running() bool { return e.forces.Running() }

// Settling reports whether a settle pass is scheduled or in progress.
func (e *Engine) Settling() bool { return e.settleLeft > 0 }

// PendingSizes returns the number of size reports not yet applied.
func (e *Engine) PendingSizes() int { return e.sizes.len() }

// Len returns the number of nodes.
func (e *Engine) Len() int { return e.store.Len() }

// Bodies returns the number of measured nodes taking part in collision.
func (e *Engine) Bodies() int { return e.resolver.Len() }

// Version changes whenever the canvas content changes.
func (e *Engine) Version() uint64 { return e.store.Version() }

// Node returns a copy of a node.
func (e *Engine) Node(id hierarchy.NodeID) (hierarchy.Node, bool) { return e.store.Get(id) }

// Children returns the children of id in sibling order.
func (e *Engine) Children(id hierarchy.NodeID) []hierarchy.Node { return e.store.Children(id) }

// References returns the reference edges.
func (e *Engine) References() []hierarchy.Reference { return e.store.References() }

// Overlaps lists the measured pairs that currently collide.
func (e *Engine) Overlaps() []collision.Pair { return e.resolver.Overlaps() }

// Validate checks the hierarchy invariants.
func (e *Engine) Validate() error { return e.store.Validate() }

// Positions returns the top-left corner of every node.
func (e *Engine) Positions() map[hierarchy.NodeID]geometry.Point {
	nodes := e.store.Nodes()
	out := make(map[hierarchy.NodeID]geometry.Point, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n.Rect.TopLeft()
	}
	return out
}

// ReportObservedSize records the rendered size of a node. Reports are
// coalesced and applied by Frame.
func (e *Engine) ReportObservedSize(id hierarchy.NodeID, w, h float64, now time.Time) error {
	if e.dispatching {
		return ErrReentrant
	}
	if !e.store.Has(id) {
		return fmt.Errorf("report size: %w: %s", hierarchy.ErrNodeNotFound, id)
	}
	if e.sizes.add(id, w, h, now) {
		metrics.SizeReportsTotal.WithLabelValues("coalesced").Inc()
	}
	return nil
}

// ReportDragDelta moves a node to topLeft and pushes whatever it now
// overlaps out of the way.
func (e *Engine) ReportDragDelta(id hierarchy.NodeID, topLeft geometry.Point) error {
	if e.dispatching {
		return ErrReentrant
	}
	if e.forces.Running() {
		return ErrSimulationRunning
	}
	n, ok := e.store.Get(id)
	if !ok {
		return fmt.Errorf("drag: %w: %s", hierarchy.ErrNodeNotFound, id)
	}
	e.cancelSettle()

	topLeft = geometry.SnapPoint(topLeft)
	if err := e.store.SetPosition(id, topLeft); err != nil {
		return fmt.Errorf("drag: %w", err)
	}
	changed := map[hierarchy.NodeID]geometry.Point{id: topLeft}

	probe := e.probe(id, n.Rect.Moved(topLeft))
	e.resolver.MoveBody(id, topLeft)
	moved := e.resolver.PushAway(probe, id)
	e.writeBack(moved, changed)

	metrics.DragFramesTotal.Inc()
	metrics.PushCascadeSize.Observe(float64(len(moved)))
	e.emitPositions(changed)
	return nil
}

// ReportDragEnd rebuilds the sibling order of the dragged node from the
// angles on screen, then settles (or restarts the simulation in auto mode).
func (e *Engine) ReportDragEnd(id hierarchy.NodeID) error {
	if e.dispatching {
		return ErrReentrant
	}
	if e.forces.Running() {
		return ErrSimulationRunning
	}
	n, ok := e.store.Get(id)
	if !ok {
		return fmt.Errorf("drag end: %w: %s", hierarchy.ErrNodeNotFound, id)
	}
	if n.Parent != "" {
		if _, err := e.planner.ViewToOrder(e.store, n.Parent); err != nil {
			return fmt.Errorf("drag end: %w", err)
		}
	}
	if !e.notify(force.EventDragEnd) {
		e.scheduleSettle()
	}
	return nil
}

// ReportCreate adds a node with its corner at pos and returns its id. The
// node takes part in collision once its size has been reported.
func (e *Engine) ReportCreate(pos geometry.Point, parent hierarchy.NodeID) (hierarchy.NodeID, error) {
	if e.dispatching {
		return "", ErrReentrant
	}
	rect := geometry.Rect{X: pos.X, Y: pos.Y, Width: e.cfg.DefaultWidth, Height: e.cfg.DefaultHeight}
	id, err := e.store.Insert(hierarchy.Node{Rect: rect}, parent, hierarchy.AutoOrder)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	n, _ := e.store.Get(id)
	e.logger.Debug("node created", "node_id", id, "parent", parent)
	e.notify(force.EventNodeCreated)
	e.emitPositions(map[hierarchy.NodeID]geometry.Point{id: n.Rect.TopLeft()})
	return id, nil
}

// ReportDelete removes a node. Its children become roots and keep their
// positions.
func (e *Engine) ReportDelete(id hierarchy.NodeID) error {
	if e.dispatching {
		return ErrReentrant
	}
	orphans, err := e.store.Remove(id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	e.resolver.RemoveBody(id)
	e.sizes.drop(id)
	e.logger.Debug("node deleted", "node_id", id, "orphans", len(orphans))
	e.notify(force.EventNodeDeleted)
	return nil
}

// ReportConnect links two nodes. A hierarchy link makes parent the parent of
// child, which is refused when it would close a cycle; the outcome is also
// reported to the observer. A reference link carries no constraint.
func (e *Engine) ReportConnect(parent, child hierarchy.NodeID, isHierarchy bool) error {
	if e.dispatching {
		return ErrReentrant
	}
	if !isHierarchy {
		if err := e.store.AddReference(parent, child); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		e.notify(force.EventConnect)
		return nil
	}

	old, err := e.store.Reparent(child, parent)
	switch {
	case errors.Is(err, hierarchy.ErrCircularReference):
		metrics.ReparentTotal.WithLabelValues("cycle").Inc()
		e.logger.Info("reparent rejected", "child", child, "parent", parent, "error", err)
		e.dispatch(func(o Observer) { o.OnReparentRejected(child, parent, err) })
		return err
	case err != nil:
		metrics.ReparentTotal.WithLabelValues("not_found").Inc()
		return fmt.Errorf("connect: %w", err)
	}
	metrics.ReparentTotal.WithLabelValues("accepted").Inc()
	e.dispatch(func(o Observer) { o.OnReparentResult(child, old, parent) })
	if old != parent {
		e.notify(force.EventReparent)
	}
	return nil
}

// Disconnect removes a reference link. It reports whether one existed.
func (e *Engine) Disconnect(a, b hierarchy.NodeID) (bool, error) {
	if e.dispatching {
		return false, ErrReentrant
	}
	return e.store.RemoveReference(a, b), nil
}

// ReorderChild gives id a new sibling order and moves it, with its subtree,
// between its new neighbours. Bodies in the way are pushed aside and the
// result is settled.
func (e *Engine) ReorderChild(id hierarchy.NodeID, order int) error {
	if e.dispatching {
		return ErrReentrant
	}
	if e.forces.Running() {
		return ErrSimulationRunning
	}
	if err := e.store.MoveToOrder(id, order); err != nil {
		return fmt.Errorf("reorder: %w", err)
	}
	moves, err := e.planner.OrderToView(e.store, id)
	if err != nil {
		return fmt.Errorf("reorder: %w", err)
	}
	if len(moves) == 0 {
		return nil
	}
	e.cancelSettle()

	changed := make(map[hierarchy.NodeID]geometry.Point, len(moves))
	subtree := make([]hierarchy.NodeID, 0, len(moves))
	for _, m := range moves {
		e.resolver.MoveBody(m.ID, m.TopLeft)
		changed[m.ID] = m.TopLeft
		subtree = append(subtree, m.ID)
	}
	n, _ := e.store.Get(id)
	pushed := e.resolver.PushAway(e.probe(id, n.Rect), subtree...)
	e.writeBack(pushed, changed)
	metrics.PushCascadeSize.Observe(float64(len(pushed)))

	e.emitPositions(changed)
	e.scheduleSettle()
	return nil
}

// SetMode switches the force layout mode.
func (e *Engine) SetMode(m force.Mode) error {
	if e.dispatching {
		return ErrReentrant
	}
	e.forces.SetMode(m)
	return nil
}

// SetForceParams replaces the force coefficients. A running simulation is
// discarded.
func (e *Engine) SetForceParams(p force.Params) error {
	if e.dispatching {
		return ErrReentrant
	}
	e.forces.SetParams(p)
	e.cfg.Force = e.forces.Params()
	return nil
}

// ForceParams returns the current force coefficients.
func (e *Engine) ForceParams() force.Params { return e.forces.Params() }

// TriggerLayout starts a simulation run. It reports false in ModeOff or on
// an empty canvas.
func (e *Engine) TriggerLayout() (bool, error) {
	if e.dispatching {
		return false, ErrReentrant
	}
	if !e.forces.Trigger() {
		return false, nil
	}
	e.simulationStarted()
	return true, nil
}

// StopLayout ends a running simulation where it is.
func (e *Engine) StopLayout() error {
	if e.dispatching {
		return ErrReentrant
	}
	e.forces.Stop()
	return nil
}

// Snapshot returns the persisted form of the canvas.
func (e *Engine) Snapshot() hierarchy.Snapshot { return e.store.Snapshot() }

// Restore replaces the canvas with snap. Sizes are not persisted, so every
// node waits for a fresh size report before it collides again.
func (e *Engine) Restore(snap hierarchy.Snapshot) error {
	if e.dispatching {
		return ErrReentrant
	}
	if err := e.store.Restore(snap); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	e.forces.Stop()
	e.settleLeft = 0
	e.resolver.Reset()
	e.sizes.reset()
	e.notify(force.EventRestore)
	e.emitPositions(e.Positions())
	return nil
}

// AssumeMeasured treats the stored size of every node as its rendered size
// and builds the bodies. Used where no renderer reports sizes.
func (e *Engine) AssumeMeasured() error {
	if e.dispatching {
		return ErrReentrant
	}
	for _, n := range e.store.Nodes() {
		w, h := geometry.ClampSize(n.Rect.Width, n.Rect.Height, e.resolver.Config().MinExtent)
		if w != n.Rect.Width || h != n.Rect.Height {
			if err := e.store.SetSize(n.ID, w, h); err != nil {
				return err
			}
			n, _ = e.store.Get(n.ID)
		}
		e.resolver.SyncBody(n.ID, n.Rect)
	}
	return nil
}

// Settle runs a whole settle pass at once and returns the nodes it moved.
func (e *Engine) Settle() ([]hierarchy.NodeID, error) {
	if e.dispatching {
		return nil, ErrReentrant
	}
	if e.forces.Running() {
		return nil, ErrSimulationRunning
	}
	e.settleLeft = 0
	moved, _ := e.resolver.Settle(e.cfg.SettleSteps, e.cfg.SettleDT, nil)
	metrics.SettleStepsTotal.Add(float64(e.cfg.SettleSteps))
	metrics.SettlePassesTotal.WithLabelValues("completed").Inc()

	changed := make(map[hierarchy.NodeID]geometry.Point, len(moved))
	e.writeBack(moved, changed)
	e.snapBodies(moved)
	e.emitPositions(changed)
	return moved, nil
}

// RunLayout runs the force simulation to completion at once. It reports
// false when no run could start.
func (e *Engine) RunLayout() (bool, error) {
	if e.dispatching {
		return false, ErrReentrant
	}
	if !e.forces.Trigger() {
		return false, nil
	}
	e.simulationStarted()
	before := e.forces.Simulation().Ticks()
	ps := e.forces.RunToCompletion()
	metrics.SimulationTicksTotal.Add(float64(e.forces.Simulation().Ticks() - before))

	changed := make(map[hierarchy.NodeID]geometry.Point, len(ps))
	e.applyParticles(ps, changed)
	e.emitPositions(changed)
	return true, nil
}

// Frame advances time-driven work: debounced size reports, then either the
// running simulation or the pending settle pass.
func (e *Engine) Frame(now time.Time) error {
	if e.dispatching {
		return ErrReentrant
	}
	changed := make(map[hierarchy.NodeID]geometry.Point)
	e.applySizes(now)

	switch {
	case e.forces.Running():
		sim := e.forces.Simulation()
		before := sim.Ticks()
		ps, done := e.forces.Tick(max(e.forces.Params().TicksPerFrame, 1))
		metrics.SimulationTicksTotal.Add(float64(sim.Ticks() - before))
		e.applyParticles(ps, changed)
		if done {
			e.scheduleSettle()
		}
	case e.settleLeft > 0:
		e.stepSettle(changed)
	}

	e.emitPositions(changed)
	return nil
}

func (e *Engine) applySizes(now time.Time) {
	applied := 0
	for _, r := range e.sizes.due(now) {
		n, ok := e.store.Get(r.id)
		if !ok {
			continue
		}
		w, h := geometry.ClampSize(r.w, r.h, e.resolver.Config().MinExtent)
		_, measured := e.resolver.Body(r.id)
		if measured && math.Abs(w-n.Rect.Width) < e.cfg.SizeEpsilon && math.Abs(h-n.Rect.Height) < e.cfg.SizeEpsilon {
			metrics.SizeReportsTotal.WithLabelValues("ignored").Inc()
			continue
		}
		if err := e.store.SetSize(r.id, w, h); err != nil {
			continue
		}
		n, _ = e.store.Get(r.id)
		e.resolver.SyncBody(r.id, n.Rect)
		metrics.SizeReportsTotal.WithLabelValues("applied").Inc()
		applied++
	}
	if applied > 0 && !e.forces.Running() {
		e.scheduleSettle()
	}
}

func (e *Engine) stepSettle(changed map[hierarchy.NodeID]geometry.Point) {
	steps := min(e.cfg.SettleStepsPerFrame, e.settleLeft)
	for i := 0; i < steps; i++ {
		e.resolver.Step(e.cfg.SettleDT)
	}
	e.settleLeft -= steps
	metrics.SettleStepsTotal.Add(float64(steps))

	ids := e.resolver.IDs()
	e.writeBack(ids, changed)
	if e.settleLeft == 0 {
		e.resolver.Halt()
		e.snapBodies(ids)
		metrics.SettlePassesTotal.WithLabelValues("completed").Inc()
	}
}

func (e *Engine) scheduleSettle() {
	if e.resolver.Len() == 0 {
		return
	}
	e.settleLeft = e.cfg.SettleSteps
}

// cancelSettle abandons a pending settle pass and pins the bodies to the
// positions already written back.
func (e *Engine) cancelSettle() {
	if e.settleLeft == 0 {
		return
	}
	e.settleLeft = 0
	e.resolver.Halt()
	e.snapBodies(e.resolver.IDs())
	metrics.SettlePassesTotal.WithLabelValues("cancelled").Inc()
}

// writeBack copies the snapped body corners of ids into the store and
// records those that differ from the stored ones.
func (e *Engine) writeBack(ids []hierarchy.NodeID, changed map[hierarchy.NodeID]geometry.Point) {
	for _, id := range ids {
		tl, ok := e.resolver.TopLeft(id)
		if !ok {
			continue
		}
		tl = geometry.SnapPoint(tl)
		n, ok := e.store.Get(id)
		if !ok || n.Rect.TopLeft() == tl {
			continue
		}
		if err := e.store.SetPosition(id, tl); err == nil {
			changed[id] = tl
		}
	}
}

// snapBodies moves bodies onto the stored corners so that body and node
// agree exactly.
func (e *Engine) snapBodies(ids []hierarchy.NodeID) {
	for _, id := range ids {
		if n, ok := e.store.Get(id); ok {
			e.resolver.MoveBody(id, n.Rect.TopLeft())
		}
	}
}

func (e *Engine) applyParticles(ps []force.Particle, changed map[hierarchy.NodeID]geometry.Point) {
	for _, p := range ps {
		tl := geometry.SnapPoint(p.TopLeft())
		n, ok := e.store.Get(p.ID)
		if !ok || n.Rect.TopLeft() == tl {
			continue
		}
		if err := e.store.SetPosition(p.ID, tl); err != nil {
			continue
		}
		e.resolver.MoveBody(p.ID, tl)
		changed[p.ID] = tl
	}
}

// probe describes a node as a pusher. A measured node pushes with its body
// size, an unmeasured one with its stored rectangle.
func (e *Engine) probe(id hierarchy.NodeID, rect geometry.Rect) collision.Probe {
	if b, ok := e.resolver.Body(id); ok {
		tl := rect.TopLeft()
		return collision.Probe{
			Center: geometry.Point{X: tl.X + b.HalfW, Y: tl.Y + b.HalfH},
			HalfW:  b.HalfW,
			HalfH:  b.HalfH,
		}
	}
	return collision.Probe{Center: geometry.ToCenter(rect), HalfW: rect.Width / 2, HalfH: rect.Height / 2}
}

// particles seeds a simulation from the current canvas. Every node is
// pulled toward where it stands now.
func (e *Engine) particles() ([]force.Particle, []force.LinkSpec) {
	nodes := e.store.Nodes()
	ps := make([]force.Particle, 0, len(nodes))
	for _, n := range nodes {
		hw, hh := n.Rect.Width/2, n.Rect.Height/2
		c := geometry.ToCenter(n.Rect)
		if b, ok := e.resolver.Body(n.ID); ok {
			hw, hh = b.HalfW, b.HalfH
			c = b.Center
		}
		ps = append(ps, force.Particle{
			ID: n.ID, X: c.X, Y: c.Y,
			HalfW: hw, HalfH: hh,
			TargetX: c.X, TargetY: c.Y,
		})
	}

	edges := e.store.Edges()
	refs := e.store.References()
	links := make([]force.LinkSpec, 0, len(edges)+len(refs))
	for _, ed := range edges {
		links = append(links, force.LinkSpec{Source: ed.Parent, Target: ed.Child})
	}
	for _, r := range refs {
		links = append(links, force.LinkSpec{Source: r.A, Target: r.B, Reference: true})
	}
	return ps, links
}

// notify reports a topology change to the force engine and reports whether
// a simulation started.
func (e *Engine) notify(ev force.Event) bool {
	if !e.forces.Notify(ev) {
		return false
	}
	e.simulationStarted()
	return true
}

func (e *Engine) simulationStarted() {
	e.cancelSettle()
	metrics.SimulationRunsTotal.WithLabelValues(e.forces.Mode().String()).Inc()
}

func (e *Engine) emitPositions(changed map[hierarchy.NodeID]geometry.Point) {
	if len(changed) == 0 {
		return
	}
	e.dispatch(func(o Observer) { o.OnPositionsChanged(changed) })
}

func (e *Engine) dispatch(fn func(Observer)) {
	if e.dispatching {
		e.logger.Warn("dropping nested layout notification")
		return
	}
	e.dispatching = true
	defer func() { e.dispatching = false }()
	fn(e.observer)
}
