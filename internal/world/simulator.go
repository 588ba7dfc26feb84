package world

import (
	"math"
	"math/rand/v2"

	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/core"
)

// innerRadiusFactor sets the inner edge of the spawn annulus as a fraction of spawn_radius.
const innerRadiusFactor = 0.3

// Simulator owns the authoritative platform population.
// It is not safe for concurrent use; the host drives it from one goroutine.
type Simulator struct {
	cfg      config.WorldConfig
	variants []Variant
	zones    []Zone
	rng      *rand.Rand

	live   []*Platform // Ascending by ID
	byID   map[core.PlatformID]*Platform
	pool   []*Platform
	nextID core.PlatformID

	lastEval  core.Vec2
	evaluated bool
}

// NewSimulator creates a simulator with a deterministic random source.
func NewSimulator(cfg config.WorldConfig, seed int64) *Simulator {
	s := uint64(seed) //nolint:gosec // seed bits are reinterpreted, not range-checked
	return &Simulator{
		cfg:      cfg,
		variants: VariantsFromConfig(cfg.Variants),
		zones:    ZonesFromConfig(cfg.ExclusionZones),
		rng:      rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)),
		byID:     make(map[core.PlatformID]*Platform),
		nextID:   1,
	}
}

// Variants returns the platform catalog.
func (s *Simulator) Variants() []Variant {
	return s.variants
}

// Zones returns the configured exclusion zones.
func (s *Simulator) Zones() []Zone {
	return s.zones
}

// Platforms returns the live platforms in ascending ID order.
// The slice must not be modified by the caller.
func (s *Simulator) Platforms() []*Platform {
	return s.live
}

// Get returns a live platform by ID.
func (s *Simulator) Get(id core.PlatformID) (*Platform, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Count returns the number of live platforms.
func (s *Simulator) Count() int {
	return len(s.live)
}

// PoolSize returns the number of recycled platform values waiting for reuse.
func (s *Simulator) PoolSize() int {
	return len(s.pool)
}

// Tick advances the simulation by dt seconds around the given anchor.
// Movement runs every call. Population is only re-evaluated once the anchor
// has moved at least update_threshold since the last evaluation, so idle
// ticks stay cheap no matter the frame rate.
func (s *Simulator) Tick(anchor core.Vec2, dt float64) []Event {
	var events []Event
	events = s.step(anchor, dt, events)

	if !s.evaluated || anchor.Dist(s.lastEval) >= s.cfg.UpdateThreshold {
		s.evaluated = true
		s.lastEval = anchor
		events = s.despawn(anchor, events)
		events = s.populate(anchor, events)
	}
	return events
}

// Place creates a platform at an exact spot, bypassing placement rules.
// Position and scale are quantized to float32 precision.
func (s *Simulator) Place(variant int, pos core.Vec2, scale, velocity float64) (*Platform, Event) {
	if variant < 0 || variant >= len(s.variants) {
		variant = 0
	}
	return s.create(variant, pos, scale, velocity)
}

// Remove destroys a live platform.
func (s *Simulator) Remove(id core.PlatformID) (Event, bool) {
	p, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return s.destroy(p, DestroyRemoved), true
}

// SetOccupied marks a platform as carrying something (or not).
func (s *Simulator) SetOccupied(id core.PlatformID, occupied bool) bool {
	p, ok := s.byID[id]
	if ok {
		p.Occupied = occupied
	}
	return ok
}

// Protect excludes a platform from automatic despawn and shrink (or re-includes it).
func (s *Simulator) Protect(id core.PlatformID, protected bool) bool {
	p, ok := s.byID[id]
	if ok {
		p.Protected = protected
	}
	return ok
}

// step moves platforms and runs the blocking-zone shrink animation.
func (s *Simulator) step(anchor core.Vec2, dt float64, events []Event) []Event {
	rate := dt / s.cfg.ShrinkDuration
	// Iterate over a copy: destroy mutates s.live
	for _, p := range append([]*Platform(nil), s.live...) {
		if !p.Halted {
			p.Pos.X += p.Velocity * dt
		}
		p.resting = s.resting(p, anchor)

		if !s.inBlockingZone(p.Bounds()) {
			continue
		}
		if !p.Halted {
			p.Halted = true
			p.Velocity = 0
		}
		if p.Protected {
			continue
		}

		occupied := p.IsOccupied()
		switch {
		case occupied && p.shrinking:
			p.shrinking = false
			events = append(events, PlatformDestroyCanceled{ID: p.ID})
		case !occupied && !p.shrinking:
			p.shrinking = true
		}

		if p.shrinking {
			p.Shrink += rate
			if p.Shrink >= 1 {
				events = append(events, s.destroy(p, DestroyShrunk))
			}
		} else if p.Shrink > 0 {
			p.Shrink = math.Max(0, p.Shrink-rate)
		}
	}
	return events
}

// despawn removes every unprotected platform beyond the despawn radius.
func (s *Simulator) despawn(anchor core.Vec2, events []Event) []Event {
	for _, p := range append([]*Platform(nil), s.live...) {
		if p.Protected {
			continue
		}
		if p.Pos.Dist(anchor) > s.cfg.DespawnRadius {
			events = append(events, s.destroy(p, DestroyOutOfRange))
		}
	}
	return events
}

// populate fills the annulus around the anchor up to max_platforms. A failed
// placement stops spawning for this evaluation; the next one retries.
func (s *Simulator) populate(anchor core.Vec2, events []Event) []Event {
	for len(s.live) < s.cfg.MaxPlatforms {
		evt, ok := s.trySpawn(anchor)
		if !ok {
			break
		}
		events = append(events, evt)
	}
	return events
}

func (s *Simulator) trySpawn(anchor core.Vec2) (Event, bool) {
	inner := innerRadiusFactor * s.cfg.SpawnRadius
	for range s.cfg.MaxSpawnRetries {
		r := inner + s.rng.Float64()*(s.cfg.SpawnRadius-inner)
		theta := s.rng.Float64() * 2 * math.Pi
		pos := anchor.Add(core.V(math.Cos(theta), math.Sin(theta)).Scale(r)).Quantize()
		variant := s.rng.IntN(len(s.variants))
		scale := float64(float32(s.uniform(s.cfg.Scale)))

		b := PlatformBounds(pos, s.variants[variant].Size, scale)
		if s.inAnyZone(b) || s.crowded(b) {
			continue
		}
		_, evt := s.create(variant, pos, scale, s.uniform(s.cfg.Speed))
		return evt, true
	}
	return nil, false
}

func (s *Simulator) create(variant int, pos core.Vec2, scale, velocity float64) (*Platform, Event) {
	var p *Platform
	if n := len(s.pool); n > 0 {
		p = s.pool[n-1]
		s.pool = s.pool[:n-1]
	} else {
		p = &Platform{}
	}

	v := s.variants[variant]
	*p = Platform{
		ID:        s.nextID,
		Variant:   variant,
		Pos:       pos.Quantize(),
		Velocity:  float64(float32(velocity)),
		Scale:     float64(float32(scale)),
		Alive:     true,
		NoBridges: v.NoBridges,
		size:      v.Size,
	}
	s.nextID++

	s.live = append(s.live, p)
	s.byID[p.ID] = p

	return p, PlatformCreated{
		ID:       p.ID,
		Variant:  p.Variant,
		Pos:      p.Pos,
		Scale:    p.Scale,
		Velocity: p.Velocity,
	}
}

func (s *Simulator) destroy(p *Platform, reason DestroyReason) Event {
	id := p.ID
	delete(s.byID, id)
	for i, q := range s.live {
		if q == p {
			s.live = append(s.live[:i], s.live[i+1:]...)
			break
		}
	}
	p.reset()
	s.pool = append(s.pool, p)
	return PlatformDestroyed{ID: id, Reason: reason}
}

func (s *Simulator) resting(p *Platform, anchor core.Vec2) bool {
	b := p.Bounds()
	if anchor.X < b.Min.X || anchor.X > b.Max.X {
		return false
	}
	return anchor.Y >= b.Top() && anchor.Y <= b.Top()+s.cfg.RestTolerance
}

func (s *Simulator) inBlockingZone(b core.Bounds) bool {
	for _, z := range s.zones {
		if z.Blocking && z.Bounds.Intersects(b) {
			return true
		}
	}
	return false
}

func (s *Simulator) inAnyZone(b core.Bounds) bool {
	for _, z := range s.zones {
		if z.Bounds.Intersects(b) {
			return true
		}
	}
	return false
}

// crowded reports whether b comes within min_separation of any live platform.
func (s *Simulator) crowded(b core.Bounds) bool {
	padded := b.Expand(s.cfg.MinSeparation)
	for _, p := range s.live {
		if padded.Intersects(p.Bounds()) {
			return true
		}
	}
	return false
}

func (s *Simulator) uniform(r config.Range) float64 {
	return r.Min + s.rng.Float64()*(r.Max-r.Min)
}
