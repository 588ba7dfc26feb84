package world

import (
	"math"
	"testing"

	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/core"
)

func testConfig() config.WorldConfig {
	return config.WorldConfig{
		SpawnRadius:     20,
		DespawnRadius:   30,
		MaxPlatforms:    0,
		UpdateThreshold: 1,
		MinSeparation:   0.5,
		Scale:           config.Range{Min: 1, Max: 1},
		Speed:           config.Range{Min: -1, Max: 1},
		MaxSpawnRetries: 20,
		ShrinkDuration:  1,
		RestTolerance:   0.25,
		Variants: []config.VariantConfig{
			{Name: "unit", Width: 1, Height: 1},
			{Name: "wide", Width: 4, Height: 1, NoBridges: true},
		},
	}
}

func blockingZone() config.ZoneConfig {
	return config.ZoneConfig{Name: "wall", Min: config.Point{X: 10, Y: -5}, Max: config.Point{X: 12, Y: 5}, Blocking: true}
}

func countEvents[T Event](events []Event) int {
	n := 0
	for _, e := range events {
		if _, ok := e.(T); ok {
			n++
		}
	}
	return n
}

func TestSpawnFillsAnnulus(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlatforms = 12
	sim := NewSimulator(cfg, 42)

	anchor := core.V(5, -3)
	events := sim.Tick(anchor, 0.02)

	if got := countEvents[PlatformCreated](events); got != sim.Count() {
		t.Errorf("created events = %d, live = %d", got, sim.Count())
	}
	if sim.Count() == 0 || sim.Count() > cfg.MaxPlatforms {
		t.Fatalf("Count() = %d, expected 1..%d", sim.Count(), cfg.MaxPlatforms)
	}

	const eps = 1e-3
	platforms := sim.Platforms()
	for i, p := range platforms {
		d := p.Pos.Dist(anchor)
		if d < innerRadiusFactor*cfg.SpawnRadius-eps || d > cfg.SpawnRadius+eps {
			t.Errorf("platform %d at distance %.3f, outside annulus", p.ID, d)
		}
		if p.Scale != 1 {
			t.Errorf("platform %d scale = %v, expected 1", p.ID, p.Scale)
		}
		if p.Velocity < cfg.Speed.Min || p.Velocity > cfg.Speed.Max {
			t.Errorf("platform %d velocity %v out of range", p.ID, p.Velocity)
		}
		if p.NoBridges != sim.Variants()[p.Variant].NoBridges {
			t.Errorf("platform %d NoBridges does not follow its variant", p.ID)
		}
		for _, q := range platforms[i+1:] {
			if p.Bounds().Expand(cfg.MinSeparation).Intersects(q.Bounds()) {
				t.Errorf("platforms %d and %d closer than min_separation", p.ID, q.ID)
			}
		}
	}
}

func TestSpawnRejectsExclusionZones(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlatforms = 8
	// Zone covering the whole spawn area: every placement must fail quietly.
	cfg.ExclusionZones = []config.ZoneConfig{{Min: config.Point{X: -50, Y: -50}, Max: config.Point{X: 50, Y: 50}}}
	sim := NewSimulator(cfg, 1)

	events := sim.Tick(core.V(0, 0), 0.02)
	if len(events) != 0 || sim.Count() != 0 {
		t.Errorf("expected no spawns inside an exclusion zone, got %d events", len(events))
	}

	// Moving the anchor out of the zone lets the next evaluation succeed.
	sim.Tick(core.V(200, 0), 0.02)
	if sim.Count() == 0 {
		t.Error("expected spawns once the anchor left the zone")
	}
}

func TestIDsUniqueAndMonotonic(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlatforms = 10
	sim := NewSimulator(cfg, 7)

	var last core.PlatformID
	for i := range 400 {
		anchor := core.V(float64(i)*0.75, math.Sin(float64(i)/10)*5)
		for _, e := range sim.Tick(anchor, 0.02) {
			if c, ok := e.(PlatformCreated); ok {
				if c.ID <= last {
					t.Fatalf("id %d not greater than previous %d", c.ID, last)
				}
				last = c.ID
			}
		}
		seen := make(map[core.PlatformID]bool)
		for _, p := range sim.Platforms() {
			if seen[p.ID] {
				t.Fatalf("duplicate live id %d", p.ID)
			}
			seen[p.ID] = true
		}
	}
}

func TestDespawnBeyondRadiusOnEligibleTick(t *testing.T) {
	cfg := testConfig()
	sim := NewSimulator(cfg, 3)
	sim.Tick(core.V(0, 0), 0.02) // first evaluation

	far, _ := sim.Place(0, core.V(cfg.DespawnRadius+1, 0), 1, 0)
	farID := far.ID

	// Anchor moved less than update_threshold: not an eligible tick.
	sim.Tick(core.V(0.5, 0), 0.02)
	if _, ok := sim.Get(farID); !ok {
		t.Fatal("platform removed before an eligible tick")
	}

	events := sim.Tick(core.V(-1, 0), 0.02)
	if _, ok := sim.Get(farID); ok {
		t.Fatal("platform beyond despawn radius survived an eligible tick")
	}
	found := false
	for _, e := range events {
		if d, ok := e.(PlatformDestroyed); ok && d.ID == farID && d.Reason == DestroyOutOfRange {
			found = true
		}
	}
	if !found {
		t.Error("missing PlatformDestroyed event")
	}

	next, _ := sim.Place(0, core.V(0, 0), 1, 0)
	if next.ID == farID {
		t.Errorf("id %d was reused", farID)
	}
	if sim.PoolSize() != 0 {
		t.Errorf("PoolSize() = %d, expected the pooled value to be reused", sim.PoolSize())
	}
}

func TestProtectedPlatformSurvivesDespawn(t *testing.T) {
	sim := NewSimulator(testConfig(), 3)
	p, _ := sim.Place(0, core.V(100, 0), 1, 0)
	sim.Protect(p.ID, true)

	sim.Tick(core.V(0, 0), 0.02)
	if _, ok := sim.Get(p.ID); !ok {
		t.Error("protected platform was despawned")
	}
}

func TestMovementAdvancesByVelocity(t *testing.T) {
	sim := NewSimulator(testConfig(), 3)
	p, _ := sim.Place(0, core.V(0, 2), 1, 1.5)

	for range 10 {
		sim.Tick(core.V(0, 0), 0.1)
	}
	if math.Abs(p.Pos.X-1.5) > 1e-9 || p.Pos.Y != 2 {
		t.Errorf("Pos = %v, expected (1.5, 2)", p.Pos)
	}
}

func TestBlockingZoneShrinksAndDestroys(t *testing.T) {
	cfg := testConfig()
	cfg.ExclusionZones = []config.ZoneConfig{blockingZone()}
	sim := NewSimulator(cfg, 3)
	p, _ := sim.Place(0, core.V(9, 0), 1, 2)
	id := p.ID

	var destroyed bool
	for range 40 {
		for _, e := range sim.Tick(core.V(0, 0), 0.1) {
			if d, ok := e.(PlatformDestroyed); ok && d.ID == id {
				if d.Reason != DestroyShrunk {
					t.Errorf("Reason = %v, expected shrunk", d.Reason)
				}
				destroyed = true
			}
		}
		if destroyed {
			break
		}
	}
	if !destroyed {
		t.Fatal("platform inside a blocking zone was never destroyed")
	}
	if _, ok := sim.Get(id); ok {
		t.Error("destroyed platform still live")
	}
}

func TestLandingCancelsShrink(t *testing.T) {
	cfg := testConfig()
	cfg.ExclusionZones = []config.ZoneConfig{blockingZone()}
	sim := NewSimulator(cfg, 3)
	p, _ := sim.Place(0, core.V(10, 0), 1, 0)
	id := p.ID

	// Start shrinking
	for range 5 {
		sim.Tick(core.V(0, 0), 0.1)
	}
	if !p.Halted || !p.Shrinking() || p.Shrink <= 0 {
		t.Fatalf("expected a halted, shrinking platform: %+v", p)
	}

	// Something lands on it
	sim.SetOccupied(id, true)
	events := sim.Tick(core.V(0, 0), 0.1)
	if countEvents[PlatformDestroyCanceled](events) != 1 {
		t.Fatalf("expected one PlatformDestroyCanceled, got %v", events)
	}

	for range 50 {
		for _, e := range sim.Tick(core.V(0, 0), 0.1) {
			if _, ok := e.(PlatformDestroyed); ok {
				t.Fatal("occupied platform was destroyed")
			}
		}
	}
	if _, ok := sim.Get(id); !ok {
		t.Fatal("occupied platform is no longer live")
	}
	if p.Shrink != 0 {
		t.Errorf("Shrink = %v, expected the animation to reverse to 0", p.Shrink)
	}
}

func TestAnchorRestingCountsAsOccupied(t *testing.T) {
	cfg := testConfig()
	cfg.ExclusionZones = []config.ZoneConfig{blockingZone()}
	sim := NewSimulator(cfg, 3)
	p, _ := sim.Place(0, core.V(10, 0), 1, 0)

	// Anchor stands on the platform's top surface.
	anchor := core.V(10, p.Bounds().Top()+0.1)
	for range 50 {
		sim.Tick(anchor, 0.1)
	}
	if _, ok := sim.Get(p.ID); !ok {
		t.Fatal("platform carrying the anchor was destroyed")
	}
	if !p.IsOccupied() {
		t.Error("IsOccupied() should report the resting anchor")
	}
}
