// Package geometry converts between the top-left anchored rectangles used by
// the view model and the center anchored positions used by the physics model.
//
// Every value that enters the layout core is snapped to a 1/Resolution pixel
// grid. On that grid, and for magnitudes below 2^40, the conversions in this
// package are exact, so ToTopLeft(ToCenter(r), r.Width, r.Height) returns the
// original corner bit for bit.
package geometry

import "math"

// Resolution is the number of grid steps per pixel.
const Resolution = 256

// DefaultMinExtent is the smallest width or height a body may have.
const DefaultMinExtent = 1.0

// Point is a position in canvas coordinates. Y grows downward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Len returns the Euclidean length of p.
func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }

// Rect is a top-left anchored rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TopLeft returns the anchor corner of r.
func (r Rect) TopLeft() Point { return Point{X: r.X, Y: r.Y} }

// Moved returns r with its corner at p.
func (r Rect) Moved(p Point) Rect {
	r.X, r.Y = p.X, p.Y
	return r
}

// ToCenter returns the center of r.
func ToCenter(r Rect) Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// ToTopLeft returns the top-left corner of a w×h rectangle centered on c.
func ToTopLeft(c Point, w, h float64) Point {
	return Point{X: c.X - w/2, Y: c.Y - h/2}
}

// Snap rounds v to the nearest grid step. NaN and infinities collapse to 0.
func Snap(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*Resolution) / Resolution
}

// SnapPoint snaps both coordinates of p.
func SnapPoint(p Point) Point {
	return Point{X: Snap(p.X), Y: Snap(p.Y)}
}

// SnapRect snaps the corner and the size of r.
func SnapRect(r Rect) Rect {
	return Rect{X: Snap(r.X), Y: Snap(r.Y), Width: Snap(r.Width), Height: Snap(r.Height)}
}

// ClampSize replaces a non-positive or non-finite extent with floor.
// The result is snapped so that it stays on the grid.
func ClampSize(w, h, floor float64) (float64, float64) {
	if floor <= 0 {
		floor = DefaultMinExtent
	}
	return clampExtent(w, floor), clampExtent(h, floor)
}

func clampExtent(v, floor float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < floor {
		return Snap(floor)
	}
	return Snap(v)
}
