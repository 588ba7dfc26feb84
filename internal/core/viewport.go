package core

import "math"

// Viewport maps world coordinates onto a Screen. The world point Center lands
// in the middle of the screen; +Y up in the world is up on screen.
type Viewport struct {
	Center Vec2
	CellW  float64 // World units per column
	CellH  float64 // World units per row
	W, H   int     // Screen size in cells
}

// NewViewport creates a viewport. Terminal cells are about twice as tall as
// they are wide, so a row spans two columns' worth of world units.
func NewViewport(center Vec2, cellSize float64, w, h int) Viewport {
	if cellSize <= 0 {
		cellSize = 1
	}
	return Viewport{Center: center, CellW: cellSize, CellH: 2 * cellSize, W: w, H: h}
}

// ToScreen returns the cell containing world point p.
func (v Viewport) ToScreen(p Vec2) (x, y int) {
	x = v.W/2 + int(math.Floor((p.X-v.Center.X)/v.CellW))
	y = v.H/2 - int(math.Floor((p.Y-v.Center.Y)/v.CellH)) - 1
	return x, y
}

// Rect returns the cells covered by b as a top-left corner and a size.
// Anything non-empty covers at least one cell.
func (v Viewport) Rect(b Bounds) (x, y, w, h int) {
	x = v.W/2 + int(math.Floor((b.Min.X-v.Center.X)/v.CellW))
	x1 := v.W/2 + int(math.Ceil((b.Max.X-v.Center.X)/v.CellW))
	y = v.H/2 - int(math.Ceil((b.Max.Y-v.Center.Y)/v.CellH))
	y1 := v.H/2 - int(math.Floor((b.Min.Y-v.Center.Y)/v.CellH))
	return x, y, max(1, x1-x), max(1, y1-y)
}

// Visible reports whether any part of b lands on screen.
func (v Viewport) Visible(b Bounds) bool {
	x, y, w, h := v.Rect(b)
	return x+w > 0 && x < v.W && y+h > 0 && y < v.H
}
