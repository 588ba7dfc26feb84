// Package core provides the geometry and drawing primitives shared by the
// simulator, the relation engine and observers. It has no dependencies on the
// network or terminal layers so the synchronization logic stays pure and testable.
package core

import "math"

// Vec2 is a point or displacement in world space. +Y points up.
type Vec2 struct {
	X, Y float64
}

// V creates a new vector.
func V(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v * k.
func (v Vec2) Scale(k float64) Vec2 {
	return Vec2{X: v.X * k, Y: v.Y * k}
}

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Dist returns the distance between two points.
func (v Vec2) Dist(o Vec2) float64 {
	return v.Sub(o).Len()
}

// Lerp moves v toward o by fraction t (0 = v, 1 = o).
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return Vec2{X: v.X + (o.X-v.X)*t, Y: v.Y + (o.Y-v.Y)*t}
}

// Quantize rounds both components to the nearest float32 so the value
// survives a float32 wire encoding unchanged.
func (v Vec2) Quantize() Vec2 {
	return Vec2{X: float64(float32(v.X)), Y: float64(float32(v.Y))}
}

// Bounds is an axis-aligned bounding box. Min is the bottom-left corner,
// Max the top-right corner.
type Bounds struct {
	Min, Max Vec2
}

// BoundsFromCenter builds a box of the given size centered on c.
func BoundsFromCenter(c Vec2, w, h float64) Bounds {
	return Bounds{
		Min: Vec2{X: c.X - w/2, Y: c.Y - h/2},
		Max: Vec2{X: c.X + w/2, Y: c.Y + h/2},
	}
}

// NewBounds creates a box from two corners.
func NewBounds(minX, minY, maxX, maxY float64) Bounds {
	return Bounds{Min: Vec2{X: minX, Y: minY}, Max: Vec2{X: maxX, Y: maxY}}
}

// Bottom returns the lowest y-coordinate.
func (b Bounds) Bottom() float64 { return b.Min.Y }

// Top returns the highest y-coordinate.
func (b Bounds) Top() float64 { return b.Max.Y }

// Width returns the horizontal extent.
func (b Bounds) Width() float64 { return b.Max.X - b.Min.X }

// Height returns the vertical extent.
func (b Bounds) Height() float64 { return b.Max.Y - b.Min.Y }

// Center returns the center point of the box.
func (b Bounds) Center() Vec2 {
	return Vec2{X: (b.Min.X + b.Max.X) / 2, Y: (b.Min.Y + b.Max.Y) / 2}
}

// Expand grows the box by d on every side.
func (b Bounds) Expand(d float64) Bounds {
	return Bounds{
		Min: Vec2{X: b.Min.X - d, Y: b.Min.Y - d},
		Max: Vec2{X: b.Max.X + d, Y: b.Max.Y + d},
	}
}

// Intersects returns true if this box overlaps another.
// Touching edges do not count as overlap.
func (b Bounds) Intersects(o Bounds) bool {
	if b.Min.X >= o.Max.X || o.Min.X >= b.Max.X {
		return false
	}
	if b.Min.Y >= o.Max.Y || o.Min.Y >= b.Max.Y {
		return false
	}
	return true
}

// OverlapsX returns true if the horizontal extents share at least one x-coordinate.
// Unlike Intersects, touching edges count.
func (b Bounds) OverlapsX(o Bounds) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X
}

// Contains returns true if p lies inside the box (edges inclusive).
func (b Bounds) Contains(p Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// ClampF restricts a float64 value to be within [lo, hi].
func ClampF(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
