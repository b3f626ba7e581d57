// Package collision keeps the bodies of measured nodes from overlapping.
//
// Two mechanisms share the same bodies. PushAwayFrom runs on every drag frame
// and displaces overlapping bodies analytically, cascading breadth-first from
// the dragged node. Settle runs a bounded number of integrator steps after a
// drag ends or a node is resized, relaxing whatever overlap the cascade left.
package collision

import (
	"math"

	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
)

// Config controls spacing and the settle integrator.
type Config struct {
	GapX, GapY float64
	// Epsilon is the overlap tolerance. It is clamped below the smaller gap.
	Epsilon float64
	Shape   geometry.ShapeKind
	// Damping is the fraction of velocity removed after every settle step.
	Damping float64
	// SolverIterations is the number of projection sweeps per settle step.
	SolverIterations int
	MinExtent        float64
}

// DefaultConfig returns the spacing used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		GapX:             20,
		GapY:             20,
		Epsilon:          0.01,
		Shape:            geometry.ShapeAABB,
		Damping:          0.9,
		SolverIterations: 4,
		MinExtent:        geometry.DefaultMinExtent,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.GapX < 0 {
		c.GapX = 0
	}
	if c.GapY < 0 {
		c.GapY = 0
	}
	if c.Epsilon <= 0 {
		c.Epsilon = def.Epsilon
	}
	if g := math.Min(c.GapX, c.GapY); g > 0 && c.Epsilon >= g {
		c.Epsilon = g / 2
	}
	if c.Damping < 0 || c.Damping > 1 {
		c.Damping = def.Damping
	}
	if c.SolverIterations <= 0 {
		c.SolverIterations = def.SolverIterations
	}
	if c.MinExtent <= 0 {
		c.MinExtent = def.MinExtent
	}
	return c
}

// Body is the physics view of one node.
type Body struct {
	ID     hierarchy.NodeID
	Center geometry.Point
	// HalfW and HalfH are half of the measured size, used for coordinate
	// conversion whatever the collision shape.
	HalfW, HalfH float64
	Shape        geometry.Shape
	Velocity     geometry.Point
}

func (b *Body) extent() geometry.Extent {
	return geometry.Extent{Center: b.Center, Shape: b.Shape}
}

// TopLeft returns the corner of the body's measured rectangle.
func (b *Body) TopLeft() geometry.Point {
	return geometry.ToTopLeft(b.Center, 2*b.HalfW, 2*b.HalfH)
}

// Resolver owns the bodies of one canvas. It is not safe for concurrent use.
type Resolver struct {
	cfg    Config
	gap    geometry.Gap
	bodies map[hierarchy.NodeID]*Body
	ids    []hierarchy.NodeID // insertion order, fixes iteration order
}

// New returns an empty resolver.
func New(cfg Config) *Resolver {
	cfg = cfg.normalized()
	return &Resolver{
		cfg:    cfg,
		gap:    geometry.Gap{X: cfg.GapX, Y: cfg.GapY, Epsilon: cfg.Epsilon},
		bodies: make(map[hierarchy.NodeID]*Body),
	}
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config { return r.cfg }

// Len returns the number of bodies.
func (r *Resolver) Len() int { return len(r.bodies) }

// Body returns a copy of the body of id.
func (r *Resolver) Body(id hierarchy.NodeID) (Body, bool) {
	b, ok := r.bodies[id]
	if !ok {
		return Body{}, false
	}
	return *b, true
}

// TopLeft returns the corner of the body of id.
func (r *Resolver) TopLeft(id hierarchy.NodeID) (geometry.Point, bool) {
	b, ok := r.bodies[id]
	if !ok {
		return geometry.Point{}, false
	}
	return b.TopLeft(), true
}

// IDs returns body ids in insertion order.
func (r *Resolver) IDs() []hierarchy.NodeID {
	return append([]hierarchy.NodeID(nil), r.ids...)
}

// SyncBody creates the body of id from its rectangle, replacing any previous
// body. Bodies are never resized in place.
func (r *Resolver) SyncBody(id hierarchy.NodeID, rect geometry.Rect) {
	w, h := geometry.ClampSize(rect.Width, rect.Height, r.cfg.MinExtent)
	rect.Width, rect.Height = w, h
	b := &Body{
		ID:     id,
		Center: geometry.ToCenter(rect),
		HalfW:  w / 2,
		HalfH:  h / 2,
		Shape:  geometry.ShapeFor(r.cfg.Shape, w/2, h/2),
	}
	if _, ok := r.bodies[id]; !ok {
		r.ids = append(r.ids, id)
	}
	r.bodies[id] = b
}

// MoveBody teleports the body of id so that its rectangle's corner lands on
// topLeft, and stops it. It reports false for an unknown id.
func (r *Resolver) MoveBody(id hierarchy.NodeID, topLeft geometry.Point) bool {
	b, ok := r.bodies[id]
	if !ok {
		return false
	}
	b.Center = geometry.Point{X: topLeft.X + b.HalfW, Y: topLeft.Y + b.HalfH}
	b.Velocity = geometry.Point{}
	return true
}

// RemoveBody drops the body of id if present.
func (r *Resolver) RemoveBody(id hierarchy.NodeID) {
	if _, ok := r.bodies[id]; !ok {
		return
	}
	delete(r.bodies, id)
	for i, x := range r.ids {
		if x == id {
			r.ids = append(r.ids[:i], r.ids[i+1:]...)
			break
		}
	}
}

// Reset drops every body.
func (r *Resolver) Reset() {
	r.bodies = make(map[hierarchy.NodeID]*Body)
	r.ids = nil
}

// Pair is two colliding bodies.
type Pair struct {
	A, B hierarchy.NodeID
}

// Overlaps lists every colliding pair in body order.
func (r *Resolver) Overlaps() []Pair {
	var out []Pair
	for i, a := range r.ids {
		for _, b := range r.ids[i+1:] {
			if _, ok := geometry.Penetration(r.bodies[a].extent(), r.bodies[b].extent(), r.gap); ok {
				out = append(out, Pair{A: a, B: b})
			}
		}
	}
	return out
}
