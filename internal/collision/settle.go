package collision

import (
	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
)

const (
	// DefaultSettleSteps and DefaultSettleDT give one second of simulated
	// time at 60 steps per second.
	DefaultSettleSteps = 60
	DefaultSettleDT    = 1.0 / 60
)

// Step advances the settle integrator by dt. Bodies first coast on their
// velocity, then every colliding pair is projected apart, each side taking
// half the correction, for SolverIterations sweeps. The displacement of the
// step becomes the new velocity after damping. Reports whether any body moved.
func (r *Resolver) Step(dt float64) bool {
	if len(r.ids) == 0 || dt <= 0 {
		return false
	}

	prev := make([]geometry.Point, len(r.ids))
	for i, id := range r.ids {
		b := r.bodies[id]
		prev[i] = b.Center
		b.Center.X += b.Velocity.X * dt
		b.Center.Y += b.Velocity.Y * dt
	}

	for iter := 0; iter < r.cfg.SolverIterations; iter++ {
		if !r.projectPairs() {
			break
		}
	}

	moved := false
	keep := 1 - r.cfg.Damping
	for i, id := range r.ids {
		b := r.bodies[id]
		delta := b.Center.Sub(prev[i])
		if delta != (geometry.Point{}) {
			moved = true
		}
		b.Velocity = geometry.Point{X: delta.X / dt * keep, Y: delta.Y / dt * keep}
	}
	return moved
}

// projectPairs runs one Gauss-Seidel sweep and reports whether any pair
// collided.
func (r *Resolver) projectPairs() bool {
	hit := false
	for i, aid := range r.ids {
		a := r.bodies[aid]
		for _, bid := range r.ids[i+1:] {
			b := r.bodies[bid]
			d, ok := geometry.Penetration(a.extent(), b.extent(), r.gap)
			if !ok {
				continue
			}
			hit = true
			half := geometry.Point{X: d.X / 2, Y: d.Y / 2}
			a.Center = a.Center.Sub(half)
			b.Center = b.Center.Add(half)
		}
	}
	return hit
}

// Halt zeroes every velocity.
func (r *Resolver) Halt() {
	for _, b := range r.bodies {
		b.Velocity = geometry.Point{}
	}
}

// Settle runs up to steps integrator steps of length dt, checking cancel
// before each one, then halts every body. It returns the bodies whose center
// changed and whether all steps ran.
func (r *Resolver) Settle(steps int, dt float64, cancel func() bool) ([]hierarchy.NodeID, bool) {
	start := make(map[hierarchy.NodeID]geometry.Point, len(r.ids))
	for _, id := range r.ids {
		start[id] = r.bodies[id].Center
	}

	completed := true
	for i := 0; i < steps; i++ {
		if cancel != nil && cancel() {
			completed = false
			break
		}
		r.Step(dt)
	}
	r.Halt()

	var moved []hierarchy.NodeID
	for _, id := range r.ids {
		if r.bodies[id].Center != start[id] {
			moved = append(moved, id)
		}
	}
	return moved, completed
}
