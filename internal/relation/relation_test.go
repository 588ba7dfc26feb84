package relation

import (
	"testing"

	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/core"
	"github.com/vovakirdan/cloudsync/internal/world"
)

const (
	unit   = 0 // 1x1 variant
	sealed = 1 // 1x1 variant that opts out of bridges
)

func relationConfig() config.RelationConfig {
	return config.RelationConfig{
		MaxDistance:    4,
		MinVerticalGap: 0.5,
		MaxVerticalGap: 8,
		MaxBridges:     16,
		BridgeWidth:    1,
	}
}

func newWorld() *world.Simulator {
	return world.NewSimulator(config.WorldConfig{
		SpawnRadius:   10,
		DespawnRadius: 100,
		Variants: []config.VariantConfig{
			{Name: "unit", Width: 1, Height: 1},
			{Name: "sealed", Width: 1, Height: 1, NoBridges: true},
		},
		ShrinkDuration: 1,
	}, 1)
}

// place puts a 1x1 platform with its bottom-left corner at (x, y).
func place(sim *world.Simulator, variant int, x, y float64) core.PlatformID {
	p, _ := sim.Place(variant, core.V(x+0.5, y+0.5), 1, 0)
	return p.ID
}

func created(events []Event) []BridgeCreated {
	var out []BridgeCreated
	for _, e := range events {
		if c, ok := e.(BridgeCreated); ok {
			out = append(out, c)
		}
	}
	return out
}

func destroyed(events []Event) []BridgeDestroyed {
	var out []BridgeDestroyed
	for _, e := range events {
		if d, ok := e.(BridgeDestroyed); ok {
			out = append(out, d)
		}
	}
	return out
}

func TestShouldConnect(t *testing.T) {
	tests := []struct {
		name string
		a, b core.Bounds
		cfg  func(*config.RelationConfig)
		want bool
	}{
		{"stacked", core.NewBounds(0, 0, 1, 1), core.NewBounds(0, 3, 1, 4), nil, true},
		{"argument order", core.NewBounds(0, 3, 1, 4), core.NewBounds(0, 0, 1, 1), nil, true},
		{"gap above max", core.NewBounds(0, 0, 1, 1), core.NewBounds(0, 3, 1, 4), func(c *config.RelationConfig) { c.MaxVerticalGap = 1.5 }, false},
		{"gap below min", core.NewBounds(0, 0, 1, 1), core.NewBounds(0, 1.2, 1, 2.2), nil, false},
		{"gap exactly min", core.NewBounds(0, 0, 1, 1), core.NewBounds(0, 1.5, 1, 2.5), nil, true},
		{"gap exactly max", core.NewBounds(0, 0, 1, 1), core.NewBounds(0, 9, 1, 10), nil, true},
		{"edges touch", core.NewBounds(0, 0, 1, 1), core.NewBounds(1, 3, 2, 4), nil, true},
		{"no overlap", core.NewBounds(0, 0, 1, 1), core.NewBounds(1.5, 3, 2.5, 4), nil, false},
		{"overlap but far centers", core.NewBounds(0, 0, 10, 1), core.NewBounds(9, 3, 19, 4), nil, false},
		{"same height", core.NewBounds(0, 0, 1, 1), core.NewBounds(0, 0, 1, 1), nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := relationConfig()
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}
			if got := ShouldConnect(tc.a, tc.b, cfg); got != tc.want {
				t.Errorf("ShouldConnect() = %v, expected %v", got, tc.want)
			}
		})
	}
}

func TestComputeGeometry(t *testing.T) {
	tests := []struct {
		name         string
		lower, upper core.Bounds
		want         Geometry
	}{
		{
			"stacked",
			core.NewBounds(0, 0, 1, 1), core.NewBounds(0, 3, 1, 4),
			Geometry{Center: core.V(0.5, 2), Width: 1, Height: 2, Visible: true},
		},
		{
			"partial overlap",
			core.NewBounds(0, 0, 2, 1), core.NewBounds(1, 2, 4, 3),
			Geometry{Center: core.V(1.5, 1.5), Width: 1, Height: 1, Visible: true},
		},
		{
			"drifted apart",
			core.NewBounds(0, 0, 1, 1), core.NewBounds(3, 2, 4, 3),
			Geometry{Center: core.V(2, 1.5), Width: 1, Height: 1, Visible: true},
		},
		{
			"inverted",
			core.NewBounds(0, 2, 1, 3), core.NewBounds(0, 1, 1, 2),
			Geometry{Center: core.V(0.5, 2), Width: 1, Height: -2, Visible: false},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeGeometry(tc.lower, tc.upper, 1)
			if got != tc.want {
				t.Errorf("ComputeGeometry() = %+v, expected %+v", got, tc.want)
			}
			if again := ComputeGeometry(tc.lower, tc.upper, 1); again != got {
				t.Errorf("second call = %+v, expected %+v", again, got)
			}
		})
	}
}

func TestUpdateCreatesBridge(t *testing.T) {
	sim := newWorld()
	lower := place(sim, unit, 0, 0)
	upper := place(sim, unit, 0, 3)
	eng := NewEngine(relationConfig())

	events := eng.Update(sim.Platforms())
	c := created(events)
	if len(c) != 1 {
		t.Fatalf("expected one BridgeCreated, got %v", events)
	}
	if c[0].LowerID != lower || c[0].UpperID != upper {
		t.Errorf("bridge = %+v, expected lower %d upper %d", c[0], lower, upper)
	}

	// Nothing changed: nothing to report.
	if again := eng.Update(sim.Platforms()); len(again) != 0 {
		t.Errorf("second Update() = %v, expected no events", again)
	}
}

func TestUpdateGapTooLarge(t *testing.T) {
	sim := newWorld()
	place(sim, unit, 0, 0)
	place(sim, unit, 0, 3)
	cfg := relationConfig()
	cfg.MaxVerticalGap = 1.5
	eng := NewEngine(cfg)

	if events := eng.Update(sim.Platforms()); len(events) != 0 {
		t.Errorf("Update() = %v, expected no bridge", events)
	}
}

func TestUpdateLowerByBottomNotID(t *testing.T) {
	sim := newWorld()
	upper := place(sim, unit, 0, 3)
	lower := place(sim, unit, 0, 0)
	eng := NewEngine(relationConfig())

	c := created(eng.Update(sim.Platforms()))
	if len(c) != 1 || c[0].LowerID != lower || c[0].UpperID != upper {
		t.Errorf("created = %+v, expected lower %d upper %d", c, lower, upper)
	}
}

func TestUpdateOnePerPlatformFirstFit(t *testing.T) {
	sim := newWorld()
	a := place(sim, unit, 0, 0)
	b := place(sim, unit, 0, 3)
	place(sim, unit, 0, 6) // qualifies with b, but b is taken
	eng := NewEngine(relationConfig())

	c := created(eng.Update(sim.Platforms()))
	if len(c) != 1 {
		t.Fatalf("expected one bridge, got %+v", c)
	}
	if c[0].LowerID != a || c[0].UpperID != b {
		t.Errorf("first fit picked %+v, expected %d-%d", c[0], a, b)
	}
}

func TestUpdateOptOut(t *testing.T) {
	sim := newWorld()
	place(sim, unit, 0, 0)
	place(sim, sealed, 0, 3)
	eng := NewEngine(relationConfig())

	if events := eng.Update(sim.Platforms()); len(events) != 0 {
		t.Errorf("Update() = %v, expected no bridge to an opted-out platform", events)
	}
}

func TestUpdateEndpointDeath(t *testing.T) {
	sim := newWorld()
	place(sim, unit, 0, 0)
	upper := place(sim, unit, 0, 3)
	eng := NewEngine(relationConfig())
	c := created(eng.Update(sim.Platforms()))

	sim.Remove(upper)
	d := destroyed(eng.Update(sim.Platforms()))
	if len(d) != 1 || d[0].ID != c[0].ID {
		t.Fatalf("destroyed = %+v, expected bridge %d", d, c[0].ID)
	}
	if eng.Count() != 0 {
		t.Errorf("Count() = %d, expected 0", eng.Count())
	}
}

func TestUpdateMaxBridges(t *testing.T) {
	sim := newWorld()
	var ids [][2]core.PlatformID
	for _, x := range []float64{0, 10, 20} {
		lo := place(sim, unit, x, 0)
		hi := place(sim, unit, x, 3)
		ids = append(ids, [2]core.PlatformID{lo, hi})
	}
	cfg := relationConfig()
	cfg.MaxBridges = 2
	eng := NewEngine(cfg)

	c := created(eng.Update(sim.Platforms()))
	if len(c) != 2 {
		t.Fatalf("created %d bridges, expected the cap of 2", len(c))
	}
	if _, ok := eng.Between(ids[2][0], ids[2][1]); ok {
		t.Fatal("third pair bridged beyond max_bridges")
	}
	if again := eng.Update(sim.Platforms()); len(again) != 0 {
		t.Errorf("Update() at cap = %v, expected no events", again)
	}

	// Freeing a slot lets the blocked pair through.
	sim.Remove(ids[0][1])
	events := eng.Update(sim.Platforms())
	if len(destroyed(events)) != 1 || len(created(events)) != 1 {
		t.Fatalf("Update() = %v, expected one destroy and one create", events)
	}
	if _, ok := eng.Between(ids[2][0], ids[2][1]); !ok {
		t.Error("blocked pair not bridged after capacity freed up")
	}
	if eng.Count() != 2 {
		t.Errorf("Count() = %d, expected 2", eng.Count())
	}
}

func TestForcedPairs(t *testing.T) {
	sim := newWorld()
	a := place(sim, unit, 0, 0)
	b := place(sim, unit, 0, 3)
	far := place(sim, unit, 50, 50)
	eng := NewEngine(relationConfig())

	eng.Force(a, far)
	events := eng.Update(sim.Platforms())
	c := created(events)
	if len(c) != 2 {
		t.Fatalf("created = %+v, expected forced and natural bridges", c)
	}
	// Forced pairs are created first.
	if c[0].LowerID != a || c[0].UpperID != far {
		t.Errorf("first bridge = %+v, expected forced %d-%d", c[0], a, far)
	}
	if _, ok := eng.Between(a, b); !ok {
		t.Error("forced pair should not consume a's natural bridge")
	}

	sim.Remove(far)
	d := destroyed(eng.Update(sim.Platforms()))
	if len(d) != 1 || d[0].ID != c[0].ID {
		t.Errorf("destroyed = %+v, expected forced bridge %d", d, c[0].ID)
	}
	if eng.Forced(a, far) {
		t.Error("forced pair kept after an endpoint died")
	}
}

func TestUnforceDropsNonQualifyingBridge(t *testing.T) {
	sim := newWorld()
	a := place(sim, unit, 0, 0)
	far := place(sim, unit, 50, 50)
	eng := NewEngine(relationConfig())

	eng.Force(far, a)
	eng.Update(sim.Platforms())
	if !eng.Unforce(a, far) {
		t.Fatal("Unforce() = false, expected true")
	}
	if d := destroyed(eng.Update(sim.Platforms())); len(d) != 1 {
		t.Errorf("destroyed = %+v, expected the unforced bridge", d)
	}
}

func TestExistingBridgeKeepsEndpoints(t *testing.T) {
	sim := newWorld()
	// Lowest ID, drifting in from the left.
	mover, _ := sim.Place(unit, core.V(-19.5, -2.5), 1, 10)
	mid := place(sim, unit, 0, 0)
	top := place(sim, unit, 0, 3)
	eng := NewEngine(relationConfig())

	first := created(eng.Update(sim.Platforms()))
	if len(first) != 1 || first[0].LowerID != mid || first[0].UpperID != top {
		t.Fatalf("created = %+v, expected %d-%d", first, mid, top)
	}

	sim.Tick(core.V(0, 0), 2)
	if !ShouldConnect(mover.Bounds(), sim.Platforms()[1].Bounds(), eng.Config()) {
		t.Fatal("mover should qualify with the middle platform after drifting in")
	}

	// A plain ascending scan would pair the mover with mid; the existing bridge wins.
	events := eng.Update(sim.Platforms())
	if len(events) != 0 {
		t.Errorf("Update() = %v, expected the existing bridge to hold", events)
	}
	if _, ok := eng.Between(mid, top); !ok {
		t.Error("existing bridge lost")
	}
}
