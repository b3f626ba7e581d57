package geometry

import (
	"fmt"
	"math"
	"strings"
)

// ShapeKind selects the collision primitive used for every body of a
// deployment.
type ShapeKind int

const (
	// ShapeAABB collides axis-aligned boxes.
	ShapeAABB ShapeKind = iota
	// ShapeCircle collides circles whose radius is the larger half extent.
	ShapeCircle
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeAABB:
		return "aabb"
	case ShapeCircle:
		return "circle"
	default:
		return fmt.Sprintf("shape(%d)", int(k))
	}
}

// ParseShapeKind accepts "aabb", "box", "rect" and "circle".
func ParseShapeKind(s string) (ShapeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "aabb", "box", "rect":
		return ShapeAABB, nil
	case "circle":
		return ShapeCircle, nil
	default:
		return ShapeAABB, fmt.Errorf("unknown shape %q", s)
	}
}

// Shape is the collision primitive of a body.
type Shape struct {
	Kind   ShapeKind
	HalfW  float64
	HalfH  float64
	Radius float64
}

// AABB returns a box shape with the given half extents.
func AABB(halfW, halfH float64) Shape {
	return Shape{Kind: ShapeAABB, HalfW: halfW, HalfH: halfH, Radius: math.Max(halfW, halfH)}
}

// Circle returns a circle shape.
func Circle(radius float64) Shape {
	return Shape{Kind: ShapeCircle, HalfW: radius, HalfH: radius, Radius: radius}
}

// ShapeFor builds the primitive of the given kind that covers a rectangle
// with the given half extents.
func ShapeFor(kind ShapeKind, halfW, halfH float64) Shape {
	if kind == ShapeCircle {
		return Circle(math.Max(halfW, halfH))
	}
	return AABB(halfW, halfH)
}

// Extent is a shape placed at a center.
type Extent struct {
	Center Point
	Shape  Shape
}

// Gap is the clearance kept between two shapes. Overlap at or below Epsilon
// does not count as a collision.
type Gap struct {
	X, Y    float64
	Epsilon float64
}

// Penetration returns the displacement that moves b out of a, leaving the
// configured gap between them, and whether they collide at all.
//
// Boxes separate along the axis with the smaller overlap. Equal overlaps
// choose the horizontal axis. Coincident centers push b toward positive X
// (or positive Y when the vertical axis was chosen). Circles separate along
// the line between the centers, toward positive X when the centers coincide.
// Mixed pairs are treated as boxes.
func Penetration(a, b Extent, gap Gap) (Point, bool) {
	d := b.Center.Sub(a.Center)
	if a.Shape.Kind == ShapeCircle && b.Shape.Kind == ShapeCircle {
		need := a.Shape.Radius + b.Shape.Radius + math.Max(gap.X, gap.Y)
		dist := d.Len()
		overlap := need - dist
		if overlap <= gap.Epsilon {
			return Point{}, false
		}
		if dist < 1e-9 {
			return Point{X: overlap}, true
		}
		return Point{X: d.X / dist * overlap, Y: d.Y / dist * overlap}, true
	}

	overlapX := a.Shape.HalfW + b.Shape.HalfW + gap.X - math.Abs(d.X)
	overlapY := a.Shape.HalfH + b.Shape.HalfH + gap.Y - math.Abs(d.Y)
	if overlapX <= gap.Epsilon || overlapY <= gap.Epsilon {
		return Point{}, false
	}
	if overlapX <= overlapY {
		return Point{X: sign(d.X) * overlapX}, true
	}
	return Point{Y: sign(d.Y) * overlapY}, true
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
