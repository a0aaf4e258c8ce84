// Package geometry holds the pure functions used to lay out and route a canvas:
// rectangle edge intersections, arrowheads, grid snapping and the
// screen/canvas transform.
package geometry

import "math"

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Union returns the smallest rectangle covering r and o.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.W, o.X+o.W)
	maxY := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Inset grows r by d on every side (shrinks for negative d).
func (r Rect) Inset(d float64) Rect {
	return Rect{X: r.X - d, Y: r.Y - d, W: r.W + 2*d, H: r.H + 2*d}
}

// Bounds returns the union of rects grown by padding. ok is false when rects
// is empty.
func Bounds(rects []Rect, padding float64) (Rect, bool) {
	if len(rects) == 0 {
		return Rect{}, false
	}
	b := rects[0]
	for _, r := range rects[1:] {
		b = b.Union(r)
	}
	return b.Inset(padding), true
}

// Snap rounds v to the nearest multiple of grid. A non-positive grid disables
// snapping.
func Snap(v, grid float64) float64 {
	if grid <= 0 {
		return v
	}
	return math.Round(v/grid) * grid
}

// ToCanvas converts a screen point to canvas-space given the surface origin,
// the viewport pan offset and zoom.
func ToCanvas(screen, origin, pan Point, zoom float64) Point {
	return Point{
		X: (screen.X - origin.X - pan.X) / zoom,
		Y: (screen.Y - origin.Y - pan.Y) / zoom,
	}
}

// ToScreen is the inverse of ToCanvas.
func ToScreen(canvas, origin, pan Point, zoom float64) Point {
	return Point{
		X: canvas.X*zoom + pan.X + origin.X,
		Y: canvas.Y*zoom + pan.Y + origin.Y,
	}
}
