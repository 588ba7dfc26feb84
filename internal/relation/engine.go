package relation

import (
	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/core"
	"github.com/vovakirdan/cloudsync/internal/world"
)

// Bridge connects two platforms. The lower/upper assignment is fixed at
// creation and never re-evaluated.
type Bridge struct {
	ID      core.BridgeID
	LowerID core.PlatformID
	UpperID core.PlatformID
}

type pair struct {
	a, b core.PlatformID // a < b
}

func makePair(x, y core.PlatformID) pair {
	if y < x {
		x, y = y, x
	}
	return pair{a: x, b: y}
}

// Engine maintains the bridge set across ticks.
//
// Matching is first-fit: bridges that still qualify keep their endpoints,
// then the remaining eligible platforms are scanned in ascending ID order and
// each unmatched platform takes the first qualifying partner. The result is
// stable and cheap but not a maximum matching.
type Engine struct {
	cfg config.RelationConfig

	bridges []*Bridge // Ascending by ID
	byPair  map[pair]*Bridge
	forced  []pair // Insertion order
	nextID  core.BridgeID
}

// NewEngine creates an empty engine.
func NewEngine(cfg config.RelationConfig) *Engine {
	return &Engine{
		cfg:    cfg,
		byPair: make(map[pair]*Bridge),
		nextID: 1,
	}
}

// Config returns the predicate configuration.
func (e *Engine) Config() config.RelationConfig {
	return e.cfg
}

// Bridges returns live bridges in ascending ID order.
func (e *Engine) Bridges() []Bridge {
	out := make([]Bridge, len(e.bridges))
	for i, b := range e.bridges {
		out[i] = *b
	}
	return out
}

// Count returns the number of live bridges.
func (e *Engine) Count() int {
	return len(e.bridges)
}

// Between returns the bridge connecting two platforms, if any.
func (e *Engine) Between(x, y core.PlatformID) (Bridge, bool) {
	b, ok := e.byPair[makePair(x, y)]
	if !ok {
		return Bridge{}, false
	}
	return *b, true
}

// Force makes a pair always connected while both platforms are live,
// bypassing the predicate and the one-bridge-per-platform rule.
// The bridge appears on the next Update.
func (e *Engine) Force(x, y core.PlatformID) {
	if x == y {
		return
	}
	p := makePair(x, y)
	for _, f := range e.forced {
		if f == p {
			return
		}
	}
	e.forced = append(e.forced, p)
}

// Unforce drops a forced pair. Its bridge survives only if the pair
// qualifies on its own at the next Update.
func (e *Engine) Unforce(x, y core.PlatformID) bool {
	p := makePair(x, y)
	for i, f := range e.forced {
		if f == p {
			e.forced = append(e.forced[:i], e.forced[i+1:]...)
			return true
		}
	}
	return false
}

// Forced reports whether a pair is forced.
func (e *Engine) Forced(x, y core.PlatformID) bool {
	p := makePair(x, y)
	for _, f := range e.forced {
		if f == p {
			return true
		}
	}
	return false
}

// Update recomputes the bridge set from the live platforms, which must be in
// ascending ID order. Destroy events come before create events so that a
// freed slot under max_bridges can be reused in the same tick.
func (e *Engine) Update(platforms []*world.Platform) []Event {
	live := make(map[core.PlatformID]*world.Platform, len(platforms))
	for _, p := range platforms {
		live[p.ID] = p
	}

	// Forced pairs never outlive an endpoint; IDs are not reused, so prune them.
	forced := e.forced[:0]
	for _, f := range e.forced {
		if live[f.a] != nil && live[f.b] != nil {
			forced = append(forced, f)
		}
	}
	e.forced = forced

	valid := make(map[pair]bool)
	var pending []pair // Creation candidates in order
	for _, f := range e.forced {
		valid[f] = true
		pending = append(pending, f)
	}

	claimed := make(map[core.PlatformID]bool)
	eligible := func(p *world.Platform) bool {
		return p != nil && !p.NoBridges && !claimed[p.ID]
	}

	// Pass 1: bridges that still qualify keep their endpoints.
	for _, b := range e.bridges {
		k := makePair(b.LowerID, b.UpperID)
		if valid[k] {
			continue
		}
		lower, upper := live[b.LowerID], live[b.UpperID]
		if !eligible(lower) || !eligible(upper) {
			continue
		}
		if ShouldConnect(lower.Bounds(), upper.Bounds(), e.cfg) {
			valid[k] = true
			claimed[lower.ID] = true
			claimed[upper.ID] = true
		}
	}

	// Pass 2: first fit over what is left.
	for i, a := range platforms {
		if !eligible(a) {
			continue
		}
		for _, b := range platforms[i+1:] {
			if !eligible(b) {
				continue
			}
			if ShouldConnect(a.Bounds(), b.Bounds(), e.cfg) {
				k := makePair(a.ID, b.ID)
				valid[k] = true
				pending = append(pending, k)
				claimed[a.ID] = true
				claimed[b.ID] = true
				break
			}
		}
	}

	var events []Event
	kept := e.bridges[:0]
	for _, b := range e.bridges {
		k := makePair(b.LowerID, b.UpperID)
		if valid[k] {
			kept = append(kept, b)
			continue
		}
		delete(e.byPair, k)
		events = append(events, BridgeDestroyed{ID: b.ID})
	}
	e.bridges = kept

	for _, k := range pending {
		if len(e.bridges) >= e.cfg.MaxBridges {
			break
		}
		if _, ok := e.byPair[k]; ok {
			continue
		}
		b := e.create(live[k.a], live[k.b])
		events = append(events, BridgeCreated{ID: b.ID, LowerID: b.LowerID, UpperID: b.UpperID})
	}
	return events
}

func (e *Engine) create(x, y *world.Platform) *Bridge {
	lower, upper := x, y
	xb, yb := x.Bounds().Bottom(), y.Bounds().Bottom()
	if yb < xb || (yb == xb && y.ID < x.ID) {
		lower, upper = y, x
	}

	b := &Bridge{ID: e.nextID, LowerID: lower.ID, UpperID: upper.ID}
	e.nextID++
	e.bridges = append(e.bridges, b)
	e.byPair[makePair(b.LowerID, b.UpperID)] = b
	return b
}
