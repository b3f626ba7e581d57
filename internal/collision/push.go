package collision

import (
	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
)

// Probe is a pusher that need not be a body: a dragged node's rectangle, or
// a subtree root that was just repositioned.
type Probe struct {
	Center       geometry.Point
	HalfW, HalfH float64
}

// PushAwayFrom displaces every body that overlaps a pusher centered at
// (cx, cy) with half extents hw×hh, then lets each displaced body push its
// own neighbours in turn. The body named by exclude, usually the pusher
// itself, is never moved. Returns the displaced ids in displacement order.
func (r *Resolver) PushAwayFrom(cx, cy, hw, hh float64, exclude hierarchy.NodeID) []hierarchy.NodeID {
	return r.PushAway(Probe{Center: geometry.Point{X: cx, Y: cy}, HalfW: hw, HalfH: hh}, exclude)
}

// PushAway is PushAwayFrom with any number of excluded bodies.
//
// The cascade is breadth-first. A body joins the visited set the moment it
// is displaced, so within one call it is pushed at most once and the pass
// terminates after at most Len() displacements. Each displacement is the
// minimal separation along one axis (both for circles), which leaves exactly
// the configured gap between pusher and pushee.
func (r *Resolver) PushAway(p Probe, exclude ...hierarchy.NodeID) []hierarchy.NodeID {
	visited := make(map[hierarchy.NodeID]struct{}, len(exclude))
	for _, id := range exclude {
		visited[id] = struct{}{}
	}

	hw, hh := geometry.ClampSize(2*p.HalfW, 2*p.HalfH, r.cfg.MinExtent)
	queue := []geometry.Extent{{
		Center: p.Center,
		Shape:  geometry.ShapeFor(r.cfg.Shape, hw/2, hh/2),
	}}

	var moved []hierarchy.NodeID
	for len(queue) > 0 {
		pusher := queue[0]
		queue = queue[1:]
		for _, id := range r.ids {
			if _, seen := visited[id]; seen {
				continue
			}
			b := r.bodies[id]
			d, ok := geometry.Penetration(pusher, b.extent(), r.gap)
			if !ok {
				continue
			}
			b.Center = b.Center.Add(d)
			b.Velocity = geometry.Point{}
			visited[id] = struct{}{}
			moved = append(moved, id)
			queue = append(queue, b.extent())
		}
	}
	return moved
}
