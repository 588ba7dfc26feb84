// Package relation derives the bridge graph from the live platform set.
//
// Bridges carry no state of their own: the engine only decides which pairs
// are connected, and ComputeGeometry turns two endpoint bounds into a
// drawable span on demand.
package relation

import (
	"math"

	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/core"
)

// ShouldConnect reports whether two platforms qualify for a bridge: their
// centers are within max_distance horizontally, their horizontal extents
// share at least one x-coordinate, and the vertical gap between them lies
// in [min_vertical_gap, max_vertical_gap].
func ShouldConnect(a, b core.Bounds, cfg config.RelationConfig) bool {
	if math.Abs(a.Center().X-b.Center().X) > cfg.MaxDistance {
		return false
	}
	if !a.OverlapsX(b) {
		return false
	}
	lower, upper := order(a, b)
	gap := upper.Bottom() - lower.Top()
	return gap >= cfg.MinVerticalGap && gap <= cfg.MaxVerticalGap
}

func order(a, b core.Bounds) (lower, upper core.Bounds) {
	if b.Bottom() < a.Bottom() {
		return b, a
	}
	return a, b
}

// Geometry is the derived shape of a bridge.
type Geometry struct {
	Center  core.Vec2
	Width   float64
	Height  float64
	Visible bool // False while degenerate or an endpoint is missing
}

// Bounds returns the bridge's axis-aligned box.
func (g Geometry) Bounds() core.Bounds {
	return core.BoundsFromCenter(g.Center, g.Width, g.Height)
}

// ComputeGeometry spans a bridge from the top of lower to the bottom of upper.
// Horizontally it sits in the middle of the endpoints' shared extent, or
// halfway between their centers once they no longer overlap. The result is a
// pure function of the two bounds.
func ComputeGeometry(lower, upper core.Bounds, width float64) Geometry {
	var cx float64
	lo := math.Max(lower.Min.X, upper.Min.X)
	hi := math.Min(lower.Max.X, upper.Max.X)
	if lo <= hi {
		cx = (lo + hi) / 2
	} else {
		cx = (lower.Center().X + upper.Center().X) / 2
	}

	bottom, top := lower.Top(), upper.Bottom()
	h := top - bottom
	return Geometry{
		Center:  core.V(cx, (bottom+top)/2),
		Width:   width,
		Height:  h,
		Visible: h > 0,
	}
}
