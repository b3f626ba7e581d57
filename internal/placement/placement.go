// Package placement keeps sibling order and on-canvas angle consistent.
//
// Angles are measured in degrees around the parent's center, with 0° directly
// above the parent and values growing in the configured rotational direction,
// in screen coordinates where y grows downward. After a manual drag the
// sibling order is rebuilt from the angles (ViewToOrder); after a reorder in a
// list view the moved node is placed between its new neighbours
// (OrderToView).
package placement

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
)

// Orientation is the rotational direction in which sibling order grows.
type Orientation int

const (
	Clockwise Orientation = iota
	CounterClockwise
)

func (o Orientation) String() string {
	if o == CounterClockwise {
		return "counterclockwise"
	}
	return "clockwise"
}

// ParseOrientation accepts "clockwise"/"cw" and "counterclockwise"/"ccw".
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cw", "clockwise":
		return Clockwise, nil
	case "ccw", "counterclockwise", "anticlockwise":
		return CounterClockwise, nil
	default:
		return Clockwise, fmt.Errorf("unknown orientation %q", s)
	}
}

const (
	DefaultAngularDelta = 30.0
	DefaultDistance     = 200.0
)

// Planner converts between sibling order and sibling geometry.
type Planner struct {
	Orientation Orientation
	// AngularDelta is the offset in degrees from a single neighbour.
	AngularDelta float64
	// Distance is used when no sibling or current position gives one.
	Distance float64
}

// NewPlanner returns a planner with default spacing.
func NewPlanner(o Orientation) Planner {
	return Planner{Orientation: o, AngularDelta: DefaultAngularDelta, Distance: DefaultDistance}
}

// Angle returns the direction of child as seen from parent, in [0, 360).
// Coincident points give 0.
func Angle(parent, child geometry.Point, o Orientation) float64 {
	dx := child.X - parent.X
	dy := child.Y - parent.Y
	if dx == 0 && dy == 0 {
		return 0
	}
	deg := math.Atan2(dx, -dy) * 180 / math.Pi
	if o == CounterClockwise {
		deg = -deg
	}
	return normalize(deg)
}

// Offset is the inverse of Angle: the vector of the given length pointing at
// angle deg.
func Offset(deg, dist float64, o Orientation) geometry.Point {
	if o == CounterClockwise {
		deg = -deg
	}
	rad := deg * math.Pi / 180
	return geometry.Point{X: dist * math.Sin(rad), Y: -dist * math.Cos(rad)}
}

func normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

type sibling struct {
	id    hierarchy.NodeID
	order int
	angle float64
	dist  float64
}

func (p Planner) siblings(s *hierarchy.Store, parent hierarchy.Node) []sibling {
	pc := geometry.ToCenter(parent.Rect)
	kids := s.Children(parent.ID)
	out := make([]sibling, len(kids))
	for i, k := range kids {
		c := geometry.ToCenter(k.Rect)
		out[i] = sibling{
			id:    k.ID,
			order: k.Order,
			angle: Angle(pc, c, p.Orientation),
			dist:  c.Sub(pc).Len(),
		}
	}
	return out
}

// ViewToOrder sorts the children of parent by angle and stores the result as
// their order. Equal angles keep their previous relative order. Roots have
// no center to measure from and are left alone.
func (p Planner) ViewToOrder(s *hierarchy.Store, parent hierarchy.NodeID) ([]hierarchy.NodeID, error) {
	if parent == "" {
		return s.ChildIDs(""), nil
	}
	pn, ok := s.Get(parent)
	if !ok {
		return nil, fmt.Errorf("view to order: %w: %s", hierarchy.ErrNodeNotFound, parent)
	}

	sibs := p.siblings(s, pn)
	slices.SortStableFunc(sibs, func(a, b sibling) int {
		if c := cmp.Compare(a.angle, b.angle); c != 0 {
			return c
		}
		if c := cmp.Compare(a.order, b.order); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	ids := make([]hierarchy.NodeID, len(sibs))
	for i, sib := range sibs {
		ids[i] = sib.id
	}
	if err := s.Reorder(parent, ids); err != nil {
		return nil, fmt.Errorf("view to order: %w", err)
	}
	return ids, nil
}

// Target is where OrderToView would put a node.
type Target struct {
	Angle    float64
	Distance float64
	Center   geometry.Point
}

// Target derives the position of id from its order:
//
//   - between two neighbours: the mean of their angles and distances;
//   - after the last neighbour: AngularDelta further on, or halfway to 360°
//     when that would wrap;
//   - before the first neighbour: AngularDelta earlier, or halfway to 0°;
//   - an only child continues the direction of its parent from the
//     grandparent, or keeps its current direction under a root.
//
// Roots report ok == false.
func (p Planner) Target(s *hierarchy.Store, id hierarchy.NodeID) (Target, bool, error) {
	n, ok := s.Get(id)
	if !ok {
		return Target{}, false, fmt.Errorf("order to view: %w: %s", hierarchy.ErrNodeNotFound, id)
	}
	if n.Parent == "" {
		return Target{}, false, nil
	}
	parent, _ := s.Get(n.Parent)
	pc := geometry.ToCenter(parent.Rect)
	nc := geometry.ToCenter(n.Rect)
	delta := p.AngularDelta
	if delta <= 0 {
		delta = DefaultAngularDelta
	}

	sibs := p.siblings(s, parent)
	idx := slices.IndexFunc(sibs, func(sib sibling) bool { return sib.id == id })
	var prev, next *sibling
	if idx > 0 {
		prev = &sibs[idx-1]
	}
	if idx < len(sibs)-1 {
		next = &sibs[idx+1]
	}

	var t Target
	switch {
	case prev != nil && next != nil:
		a1, a2 := prev.angle, next.angle
		if a2 < a1 {
			a2 += 360
		}
		t.Angle = normalize((a1 + a2) / 2)
		t.Distance = (prev.dist + next.dist) / 2
	case prev != nil:
		t.Angle = prev.angle + delta
		if t.Angle >= 360 {
			t.Angle = (prev.angle + 360) / 2
		}
		t.Distance = prev.dist
	case next != nil:
		t.Angle = next.angle - delta
		if t.Angle < 0 {
			t.Angle = next.angle / 2
		}
		t.Distance = next.dist
	default:
		if parent.Parent != "" {
			gp, _ := s.Get(parent.Parent)
			t.Angle = Angle(geometry.ToCenter(gp.Rect), pc, p.Orientation)
		} else {
			t.Angle = Angle(pc, nc, p.Orientation)
		}
		t.Distance = nc.Sub(pc).Len()
	}
	if t.Distance <= 0 {
		t.Distance = p.Distance
		if t.Distance <= 0 {
			t.Distance = DefaultDistance
		}
	}
	t.Center = pc.Add(Offset(t.Angle, t.Distance, p.Orientation))
	return t, true, nil
}

// OrderToView moves id to its Target and translates its whole subtree by
// the same offset. It returns the new top-left corner of every moved node,
// the node itself first.
func (p Planner) OrderToView(s *hierarchy.Store, id hierarchy.NodeID) ([]Move, error) {
	t, ok, err := p.Target(s, id)
	if err != nil || !ok {
		return nil, err
	}
	n, _ := s.Get(id)
	to := geometry.SnapPoint(geometry.ToTopLeft(t.Center, n.Rect.Width, n.Rect.Height))
	shift := to.Sub(n.Rect.TopLeft())
	if shift == (geometry.Point{}) {
		return nil, nil
	}

	ids := append([]hierarchy.NodeID{id}, s.Descendants(id)...)
	moves := make([]Move, 0, len(ids))
	for _, mid := range ids {
		m, _ := s.Get(mid)
		tl := geometry.SnapPoint(m.Rect.TopLeft().Add(shift))
		if err := s.SetPosition(mid, tl); err != nil {
			return moves, fmt.Errorf("order to view: %w", err)
		}
		moves = append(moves, Move{ID: mid, TopLeft: tl})
	}
	return moves, nil
}

// Move is the new corner of a repositioned node.
type Move struct {
	ID      hierarchy.NodeID
	TopLeft geometry.Point
}
