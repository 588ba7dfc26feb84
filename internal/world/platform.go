// Package world implements the authoritative platform simulator: it keeps a
// bounded population of drifting cloud platforms around a moving anchor,
// recycling platform values through a pool instead of reallocating them.
package world

import (
	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/core"
)

// Variant is one entry of the fixed platform catalog.
type Variant struct {
	Name      string
	Size      core.Vec2 // Unscaled width and height
	NoBridges bool      // Platforms of this variant never carry bridges
}

// VariantsFromConfig converts the configured catalog.
func VariantsFromConfig(cfg []config.VariantConfig) []Variant {
	out := make([]Variant, len(cfg))
	for i, v := range cfg {
		out[i] = Variant{Name: v.Name, Size: core.V(v.Width, v.Height), NoBridges: v.NoBridges}
	}
	return out
}

// PlatformBounds computes the bounds of a platform of the given variant size
// and scale centered on pos. Observers use it to derive bounds from mirrored state.
func PlatformBounds(pos, size core.Vec2, scale float64) core.Bounds {
	return core.BoundsFromCenter(pos, size.X*scale, size.Y*scale)
}

// Zone is an axis-aligned area platforms may not spawn in.
// A blocking zone also stops platforms that drift into it.
type Zone struct {
	Name     string
	Bounds   core.Bounds
	Blocking bool
}

// ZonesFromConfig converts the configured exclusion zones.
func ZonesFromConfig(cfg []config.ZoneConfig) []Zone {
	out := make([]Zone, len(cfg))
	for i, z := range cfg {
		out[i] = Zone{
			Name:     z.Name,
			Bounds:   core.NewBounds(z.Min.X, z.Min.Y, z.Max.X, z.Max.Y),
			Blocking: z.Blocking,
		}
	}
	return out
}

// Platform is a live (or pooled) cloud platform.
type Platform struct {
	ID       core.PlatformID
	Variant  int
	Pos      core.Vec2
	Velocity float64 // Horizontal, units per second
	Scale    float64

	Alive     bool // False while the value sits in the pool
	Protected bool // Excluded from automatic despawn and shrink
	Occupied  bool // Set by an external occupancy provider
	NoBridges bool
	Halted    bool // Stopped by a blocking zone

	// Shrink is the destroy animation progress in [0, 1].
	Shrink    float64
	shrinking bool

	size    core.Vec2
	resting bool // Anchor currently rests on this platform
}

// Bounds returns the platform's axis-aligned box.
func (p *Platform) Bounds() core.Bounds {
	return PlatformBounds(p.Pos, p.size, p.Scale)
}

// IsOccupied reports whether something rests on the platform.
func (p *Platform) IsOccupied() bool {
	return p.Occupied || p.resting
}

// Shrinking reports whether the destroy animation is running forwards.
func (p *Platform) Shrinking() bool {
	return p.shrinking
}

// reset clears all state so the value can be reused from the pool.
func (p *Platform) reset() {
	*p = Platform{}
}
