// Package observer maintains a non-authoritative mirror of the host's world.
// Every value in it is either copied from a message or derived from copied
// values; the mirror never simulates or decides anything on its own.
package observer

import (
	"cmp"
	"slices"

	"github.com/vovakirdan/cloudsync/internal/core"
	"github.com/vovakirdan/cloudsync/internal/protocol"
	"github.com/vovakirdan/cloudsync/internal/relation"
	"github.com/vovakirdan/cloudsync/internal/world"
)

// Platform is the local copy of one platform.
type Platform struct {
	ID       core.PlatformID
	Variant  int
	Pos      core.Vec2
	Scale    float64
	Velocity float64
}

// Bridge is the local copy of one bridge with its geometry derived from the
// current local endpoint positions.
type Bridge struct {
	ID       core.BridgeID
	LowerID  core.PlatformID
	UpperID  core.PlatformID
	Geometry relation.Geometry
}

// Options configures a Mirror before the welcome arrives. A welcome
// overrides all of them.
type Options struct {
	Variants            []world.Variant
	BridgeWidth         float64
	CorrectionThreshold float64
	Blend               float64 // 1 snaps to the authoritative value
}

// Stats counts what the mirror has applied.
type Stats struct {
	Applied     uint64
	Corrections uint64
	Ignored     uint64 // Duplicate spawns and messages about unknown ids
}

// Mirror is the observer's local world. Not safe for concurrent use:
// messages arrive through an Inbox and are applied on the local tick.
type Mirror struct {
	opts   Options
	connID string
	runID  string
	tick   uint64 // Tick of the last snapshot

	platforms map[core.PlatformID]*Platform
	bridges   map[core.BridgeID]*Bridge
	stats     Stats
}

// NewMirror creates an empty mirror.
func NewMirror(opts Options) *Mirror {
	if opts.Blend <= 0 || opts.Blend > 1 {
		opts.Blend = 1
	}
	return &Mirror{
		opts:      opts,
		platforms: make(map[core.PlatformID]*Platform),
		bridges:   make(map[core.BridgeID]*Bridge),
	}
}

// ConnID returns the connection id assigned by the host, if welcomed.
func (m *Mirror) ConnID() string { return m.connID }

// RunID returns the host's run id, if welcomed.
func (m *Mirror) RunID() string { return m.runID }

// SnapshotTick returns the host tick of the last applied snapshot.
func (m *Mirror) SnapshotTick() uint64 { return m.tick }

// Stats returns apply counters.
func (m *Mirror) Stats() Stats { return m.stats }

// Variants returns the platform catalog.
func (m *Mirror) Variants() []world.Variant { return m.opts.Variants }

// Apply folds one message into the mirror. Every message leaves the mirror
// consistent; messages about unknown ids are no-ops, never errors.
func (m *Mirror) Apply(msg protocol.Message) {
	m.stats.Applied++
	switch v := msg.(type) {
	case protocol.Welcome:
		m.welcome(v)
	case protocol.SpawnPlatform:
		if !m.spawnPlatform(v.PlatformState) {
			m.stats.Ignored++
		}
	case protocol.DespawnPlatform:
		if _, ok := m.platforms[core.PlatformID(v.ID)]; !ok {
			m.stats.Ignored++
		}
		delete(m.platforms, core.PlatformID(v.ID))
	case protocol.SyncPositions:
		m.syncPositions(v)
	case protocol.SpawnBridge:
		if !m.spawnBridge(v.BridgeState) {
			m.stats.Ignored++
		}
	case protocol.DespawnBridge:
		if _, ok := m.bridges[core.BridgeID(v.BridgeID)]; !ok {
			m.stats.Ignored++
		}
		delete(m.bridges, core.BridgeID(v.BridgeID))
	case protocol.Snapshot:
		m.snapshot(v)
	default:
		m.stats.Ignored++
	}
}

// Advance dead-reckons every platform by its last known velocity.
func (m *Mirror) Advance(dt float64) {
	for _, p := range m.platforms {
		p.Pos.X += p.Velocity * dt
	}
}

// welcome starts a fresh connection: the catalog is replaced and the
// previous connection's state is dropped until the snapshot arrives.
func (m *Mirror) welcome(w protocol.Welcome) {
	variants := make([]world.Variant, len(w.Variants))
	for i, v := range w.Variants {
		variants[i] = world.Variant{
			Name:      v.Name,
			Size:      core.V(float64(v.Width), float64(v.Height)),
			NoBridges: v.NoBridges,
		}
	}
	m.opts = Options{
		Variants:            variants,
		BridgeWidth:         float64(w.BridgeWidth),
		CorrectionThreshold: float64(w.CorrectionThreshold),
		Blend:               float64(w.Blend),
	}
	if m.opts.Blend <= 0 || m.opts.Blend > 1 {
		m.opts.Blend = 1
	}
	m.connID = w.ConnID
	m.runID = w.RunID
	clear(m.platforms)
	clear(m.bridges)
}

func (m *Mirror) spawnPlatform(s protocol.PlatformState) bool {
	id := core.PlatformID(s.ID)
	if _, ok := m.platforms[id]; ok {
		return false
	}
	m.platforms[id] = &Platform{
		ID:       id,
		Variant:  s.Variant,
		Pos:      s.Pos.Vec2(),
		Scale:    float64(s.Scale),
		Velocity: float64(s.Vel),
	}
	return true
}

func (m *Mirror) spawnBridge(s protocol.BridgeState) bool {
	id := core.BridgeID(s.BridgeID)
	if _, ok := m.bridges[id]; ok {
		return false
	}
	m.bridges[id] = &Bridge{
		ID:      id,
		LowerID: core.PlatformID(s.LowerID),
		UpperID: core.PlatformID(s.UpperID),
	}
	return true
}

func (m *Mirror) syncPositions(s protocol.SyncPositions) {
	for i, raw := range s.IDs {
		p, ok := m.platforms[core.PlatformID(raw)]
		if !ok || i >= len(s.Positions) {
			continue
		}
		if i < len(s.Vels) {
			p.Velocity = float64(s.Vels[i])
		}
		auth := s.Positions[i].Vec2()
		if p.Pos.Dist(auth) > m.opts.CorrectionThreshold {
			p.Pos = p.Pos.Lerp(auth, m.opts.Blend)
			m.stats.Corrections++
		}
	}
}

// snapshot installs a full state. Entities already known keep their
// identity; anything the snapshot lacks is gone on the host and is dropped.
func (m *Mirror) snapshot(s protocol.Snapshot) {
	m.tick = s.Tick

	seen := make(map[core.PlatformID]bool, len(s.Platforms))
	for _, ps := range s.Platforms {
		id := core.PlatformID(ps.ID)
		seen[id] = true
		if p, ok := m.platforms[id]; ok {
			p.Pos = ps.Pos.Vec2()
			p.Velocity = float64(ps.Vel)
			continue
		}
		m.spawnPlatform(ps)
	}
	for id := range m.platforms {
		if !seen[id] {
			delete(m.platforms, id)
		}
	}

	bseen := make(map[core.BridgeID]bool, len(s.Bridges))
	for _, bs := range s.Bridges {
		bseen[core.BridgeID(bs.BridgeID)] = true
		m.spawnBridge(bs)
	}
	for id := range m.bridges {
		if !bseen[id] {
			delete(m.bridges, id)
		}
	}
}

// Get returns a copy of a mirrored platform.
func (m *Mirror) Get(id core.PlatformID) (Platform, bool) {
	p, ok := m.platforms[id]
	if !ok {
		return Platform{}, false
	}
	return *p, true
}

// Count returns the number of mirrored platforms and bridges.
func (m *Mirror) Count() (platforms, bridges int) {
	return len(m.platforms), len(m.bridges)
}

// Platforms returns copies of all mirrored platforms in ascending ID order.
func (m *Mirror) Platforms() []Platform {
	out := make([]Platform, 0, len(m.platforms))
	for _, p := range m.platforms {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Platform) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Bounds returns a mirrored platform's box derived from the catalog.
func (m *Mirror) Bounds(p Platform) core.Bounds {
	var size core.Vec2
	if p.Variant >= 0 && p.Variant < len(m.opts.Variants) {
		size = m.opts.Variants[p.Variant].Size
	}
	return world.PlatformBounds(p.Pos, size, p.Scale)
}

// Bridges returns every mirrored bridge in ascending ID order with geometry
// recomputed from the current local positions. A bridge whose endpoints are
// not both mirrored yet is returned hidden.
func (m *Mirror) Bridges() []Bridge {
	out := make([]Bridge, 0, len(m.bridges))
	for _, b := range m.bridges {
		v := *b
		lower, lok := m.platforms[b.LowerID]
		upper, uok := m.platforms[b.UpperID]
		if lok && uok {
			v.Geometry = relation.ComputeGeometry(m.Bounds(*lower), m.Bounds(*upper), m.opts.BridgeWidth)
		} else {
			v.Geometry = relation.Geometry{}
		}
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b Bridge) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
