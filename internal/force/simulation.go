package force

import (
	"math"

	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
)

// Particle is the simulation view of one node. Positions are centers.
type Particle struct {
	ID           hierarchy.NodeID
	X, Y         float64
	VX, VY       float64
	HalfW, HalfH float64
	// TargetX and TargetY are the node's intended position, which the
	// position force pulls toward.
	TargetX, TargetY float64
	// Fixed pins the particle where it is.
	Fixed bool
}

// TopLeft returns the corner of the particle's rectangle.
func (p Particle) TopLeft() geometry.Point {
	return geometry.ToTopLeft(geometry.Point{X: p.X, Y: p.Y}, 2*p.HalfW, 2*p.HalfH)
}

// LinkSpec asks for a spring between two nodes. A zero Distance uses
// Params.LinkDistance. Reference links are only kept when
// Params.IncludeReferences is set.
type LinkSpec struct {
	Source, Target hierarchy.NodeID
	Distance       float64
	Reference      bool
}

type link struct {
	source, target int
	distance       float64
	strength       float64
	bias           float64
}

// Spacing is the collision geometry the simulation shares with the resolver.
type Spacing struct {
	Gap   geometry.Gap
	Shape geometry.ShapeKind
}

// Simulation is one cooling run over a fixed set of particles and links.
// It is not safe for concurrent use.
type Simulation struct {
	params    Params
	spacing   Spacing
	particles []Particle
	links     []link
	alpha     float64
	ticks     int
	running   bool
}

// NewSimulation seeds a simulation at alpha 1. Links naming unknown ids or
// joining a particle to itself are ignored.
func NewSimulation(params Params, spacing Spacing, particles []Particle, links []LinkSpec) *Simulation {
	s := &Simulation{
		params:    params.Normalized(),
		spacing:   spacing,
		particles: append([]Particle(nil), particles...),
		alpha:     1,
		running:   true,
	}

	index := make(map[hierarchy.NodeID]int, len(particles))
	for i, p := range s.particles {
		index[p.ID] = i
	}
	degree := make([]int, len(s.particles))
	for _, l := range links {
		si, ok1 := index[l.Source]
		ti, ok2 := index[l.Target]
		if !ok1 || !ok2 || si == ti {
			continue
		}
		d := l.Distance
		if d <= 0 {
			d = s.params.LinkDistance
		}
		s.links = append(s.links, link{source: si, target: ti, distance: d})
		degree[si]++
		degree[ti]++
	}
	for i := range s.links {
		l := &s.links[i]
		l.bias = float64(degree[l.source]) / float64(degree[l.source]+degree[l.target])
		l.strength = s.params.LinkStrength
		if l.strength == 0 {
			l.strength = 1 / float64(min(degree[l.source], degree[l.target]))
		}
	}
	if len(s.particles) == 0 {
		s.running = false
	}
	return s
}

// Alpha returns the current temperature.
func (s *Simulation) Alpha() float64 { return s.alpha }

// Ticks returns the number of ticks run so far.
func (s *Simulation) Ticks() int { return s.ticks }

// Running reports whether the simulation still has heat left.
func (s *Simulation) Running() bool { return s.running }

// Stop ends the run early.
func (s *Simulation) Stop() { s.running = false }

// Particles returns a copy of the current particle state.
func (s *Simulation) Particles() []Particle {
	return append([]Particle(nil), s.particles...)
}

// Tick cools alpha one step, applies every force and integrates. It returns
// false once alpha drops below AlphaMin or MaxTicks is reached, after which
// further calls do nothing.
func (s *Simulation) Tick() bool {
	if !s.running {
		return false
	}
	s.alpha += (s.params.AlphaTarget - s.alpha) * s.params.AlphaDecay

	s.applyCharge()
	for i := 0; i < s.params.LinkIterations; i++ {
		s.applyLinks()
	}
	s.applyCollide()
	s.applyPosition()

	keep := 1 - s.params.VelocityDecay
	for i := range s.particles {
		p := &s.particles[i]
		if p.Fixed {
			p.VX, p.VY = 0, 0
			continue
		}
		p.VX *= keep
		p.VY *= keep
		p.X += p.VX
		p.Y += p.VY
	}

	s.ticks++
	if s.alpha < s.params.AlphaMin || (s.params.MaxTicks > 0 && s.ticks >= s.params.MaxTicks) {
		s.running = false
	}
	return s.running
}

func (s *Simulation) applyCharge() {
	if s.params.ChargeStrength == 0 || len(s.particles) < 2 {
		return
	}
	fx, fy := chargeForces(s.particles, s.params.Theta, s.params.ChargeStrength)
	for i := range s.particles {
		s.particles[i].VX += fx[i] * s.alpha
		s.particles[i].VY += fy[i] * s.alpha
	}
}

// applyLinks moves both ends of every link toward its rest length, the
// lower-degree end taking the larger share.
func (s *Simulation) applyLinks() {
	for _, l := range s.links {
		src, tgt := &s.particles[l.source], &s.particles[l.target]
		x := tgt.X + tgt.VX - src.X - src.VX
		y := tgt.Y + tgt.VY - src.Y - src.VY
		if x == 0 && y == 0 {
			x = 1e-6
		}
		d := math.Sqrt(x*x + y*y)
		k := (d - l.distance) / d * s.alpha * l.strength
		x *= k
		y *= k
		if !tgt.Fixed {
			tgt.VX -= x * l.bias
			tgt.VY -= y * l.bias
		}
		if !src.Fixed {
			src.VX += x * (1 - l.bias)
			src.VY += y * (1 - l.bias)
		}
	}
}

// applyCollide feeds a share of every pairwise penetration, measured on the
// positions the particles are about to reach, back into their velocities.
func (s *Simulation) applyCollide() {
	if s.params.CollideStrength == 0 {
		return
	}
	ext := make([]geometry.Extent, len(s.particles))
	for i, p := range s.particles {
		ext[i] = geometry.Extent{
			Center: geometry.Point{X: p.X + p.VX, Y: p.Y + p.VY},
			Shape:  geometry.ShapeFor(s.spacing.Shape, p.HalfW, p.HalfH),
		}
	}
	for i := range s.particles {
		for j := i + 1; j < len(s.particles); j++ {
			d, ok := geometry.Penetration(ext[i], ext[j], s.spacing.Gap)
			if !ok {
				continue
			}
			a, b := &s.particles[i], &s.particles[j]
			share := s.params.CollideStrength
			switch {
			case a.Fixed && b.Fixed:
				continue
			case a.Fixed:
				b.VX += d.X * share
				b.VY += d.Y * share
			case b.Fixed:
				a.VX -= d.X * share
				a.VY -= d.Y * share
			default:
				b.VX += d.X * share / 2
				b.VY += d.Y * share / 2
				a.VX -= d.X * share / 2
				a.VY -= d.Y * share / 2
			}
		}
	}
}

func (s *Simulation) applyPosition() {
	if s.params.PositionStrength == 0 {
		return
	}
	k := s.params.PositionStrength * s.alpha
	for i := range s.particles {
		p := &s.particles[i]
		p.VX += (p.TargetX - p.X) * k
		p.VY += (p.TargetY - p.Y) * k
	}
}
