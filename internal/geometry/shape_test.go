package geometry

import (
	"math"
	"testing"
)

func box(x, y, hw, hh float64) Extent {
	return Extent{Center: Point{x, y}, Shape: AABB(hw, hh)}
}

func TestPenetrationAABB(t *testing.T) {
	gap := Gap{X: 10, Y: 10, Epsilon: 1e-6}
	tests := []struct {
		name    string
		a, b    Extent
		want    Point
		collide bool
	}{
		{"separated", box(0, 0, 50, 25), box(200, 0, 50, 25), Point{}, false},
		{"exactly at gap", box(0, 0, 50, 25), box(110, 0, 50, 25), Point{}, false},
		{"horizontal overlap", box(0, 0, 50, 25), box(100, 0, 50, 25), Point{X: 10}, true},
		{"left side", box(0, 0, 50, 25), box(-100, 0, 50, 25), Point{X: -10}, true},
		{"vertical is smaller", box(0, 0, 50, 25), box(10, 40, 50, 25), Point{Y: 20}, true},
		{"equal overlap prefers horizontal", box(0, 0, 50, 50), box(100, 100, 50, 50), Point{X: 10}, true},
		{"coincident centers", box(0, 0, 50, 50), box(0, 0, 50, 50), Point{X: 110}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Penetration(tt.a, tt.b, gap)
			if ok != tt.collide {
				t.Fatalf("collide = %v, want %v", ok, tt.collide)
			}
			if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 {
				t.Errorf("Penetration = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPenetrationResolvesOverlap(t *testing.T) {
	gap := Gap{X: 8, Y: 4, Epsilon: 1e-6}
	a := box(0, 0, 40, 20)
	b := box(13, -7, 30, 30)
	d, ok := Penetration(a, b, gap)
	if !ok {
		t.Fatal("expected collision")
	}
	b.Center = b.Center.Add(d)
	if _, ok := Penetration(a, b, gap); ok {
		t.Errorf("still colliding after applying %+v", d)
	}
}

func TestPenetrationCircle(t *testing.T) {
	gap := Gap{X: 10, Y: 10, Epsilon: 1e-6}
	a := Extent{Center: Point{0, 0}, Shape: Circle(50)}
	b := Extent{Center: Point{30, 40}, Shape: Circle(50)}
	d, ok := Penetration(a, b, gap)
	if !ok {
		t.Fatal("expected collision")
	}
	// need 110, distance 50, overlap 60 along (0.6, 0.8)
	if math.Abs(d.X-36) > 1e-9 || math.Abs(d.Y-48) > 1e-9 {
		t.Errorf("Penetration = %+v, want {36 48}", d)
	}

	b.Center = a.Center
	d, ok = Penetration(a, b, gap)
	if !ok || d.X != 110 || d.Y != 0 {
		t.Errorf("coincident circles: got %+v, %v", d, ok)
	}
}

func TestShapeFor(t *testing.T) {
	s := ShapeFor(ShapeCircle, 30, 10)
	if s.Kind != ShapeCircle || s.Radius != 30 {
		t.Errorf("ShapeFor circle = %+v", s)
	}
	s = ShapeFor(ShapeAABB, 30, 10)
	if s.Kind != ShapeAABB || s.HalfW != 30 || s.HalfH != 10 {
		t.Errorf("ShapeFor aabb = %+v", s)
	}
}
