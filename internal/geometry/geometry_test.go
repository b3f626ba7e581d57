package geometry

import (
	"math"
	"math/rand"
	"testing"
)

func TestToCenterToTopLeftRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		r := SnapRect(Rect{
			X:      (rng.Float64() - 0.5) * 1e6,
			Y:      (rng.Float64() - 0.5) * 1e6,
			Width:  rng.Float64() * 2000,
			Height: rng.Float64() * 2000,
		})
		got := ToTopLeft(ToCenter(r), r.Width, r.Height)
		if got.X != r.X || got.Y != r.Y {
			t.Fatalf("round trip drifted for %+v: got %+v", r, got)
		}
	}
}

func TestToCenter(t *testing.T) {
	tests := []struct {
		name string
		rect Rect
		want Point
	}{
		{"origin", Rect{0, 0, 100, 50}, Point{50, 25}},
		{"negative corner", Rect{-10, -20, 4, 8}, Point{-8, -16}},
		{"zero size", Rect{3, 4, 0, 0}, Point{3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToCenter(tt.rect); got != tt.want {
				t.Errorf("ToCenter(%+v) = %+v, want %+v", tt.rect, got, tt.want)
			}
		})
	}
}

func TestSnap(t *testing.T) {
	if got := Snap(1.0 / 512); got != 1.0/256 && got != 0 {
		t.Errorf("Snap(1/512) = %v, want a grid value", got)
	}
	if got := Snap(math.NaN()); got != 0 {
		t.Errorf("Snap(NaN) = %v, want 0", got)
	}
	if got := Snap(math.Inf(1)); got != 0 {
		t.Errorf("Snap(+Inf) = %v, want 0", got)
	}
	if got := Snap(12.5); got != 12.5 {
		t.Errorf("Snap(12.5) = %v, want 12.5", got)
	}
}

func TestClampSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h, floor  float64
		wantW, wantH float64
	}{
		{"valid", 100, 40, 1, 100, 40},
		{"zero", 0, 0, 1, 1, 1},
		{"negative", -5, 10, 2, 2, 10},
		{"nan", math.NaN(), 3, 1, 1, 3},
		{"default floor", 0, 0, 0, DefaultMinExtent, DefaultMinExtent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ClampSize(tt.w, tt.h, tt.floor)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("ClampSize(%v, %v, %v) = (%v, %v), want (%v, %v)", tt.w, tt.h, tt.floor, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestParseShapeKind(t *testing.T) {
	for in, want := range map[string]ShapeKind{"": ShapeAABB, "AABB": ShapeAABB, "circle": ShapeCircle, " box ": ShapeAABB} {
		got, err := ParseShapeKind(in)
		if err != nil || got != want {
			t.Errorf("ParseShapeKind(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseShapeKind("hexagon"); err == nil {
		t.Error("expected error for unknown shape")
	}
}
