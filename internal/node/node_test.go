package node

import (
	"errors"
	"math"
	"testing"

	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/core"
	"github.com/vovakirdan/cloudsync/internal/observer"
	"github.com/vovakirdan/cloudsync/internal/protocol"
	"github.com/vovakirdan/cloudsync/internal/replication"
)

const dt = 0.02

func hostOptions() replication.Options {
	cfg := config.Default()
	cfg.World.MaxPlatforms = 16
	cfg.World.ExclusionZones = nil
	cfg.Replication.SessionBuffer = 1024
	return replication.Options{
		World:       cfg.World,
		Relation:    cfg.Relation,
		Replication: cfg.Replication,
		Seed:        11,
		Autopilot:   1.5,
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"authoritative", Authoritative, false},
		{"server", Authoritative, false},
		{"Observer", Observer, false},
		{"standalone", Standalone, false},
		{"spectator", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseRole(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrRole) {
					t.Errorf("ParseRole(%q) error = %v, expected ErrRole", tc.in, err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("ParseRole(%q) = %v, %v", tc.in, got, err)
			}
			if back, _ := ParseRole(got.String()); back != got {
				t.Errorf("String() %q does not parse back", got.String())
			}
		})
	}
}

func TestRoleAccessors(t *testing.T) {
	host := replication.NewHost(hostOptions())
	auth := NewAuthoritative(host)
	if _, err := auth.Mirror(); !errors.Is(err, ErrRole) {
		t.Errorf("Mirror() on authoritative = %v, expected ErrRole", err)
	}
	if h, err := auth.Host(); err != nil || h != host {
		t.Errorf("Host() = %v, %v", h, err)
	}

	obs := NewObserver(observer.NewInbox(8), nil)
	if _, err := obs.Host(); !errors.Is(err, ErrRole) {
		t.Errorf("Host() on observer = %v, expected ErrRole", err)
	}
	if err := obs.Run(t.Context()); !errors.Is(err, ErrRole) {
		t.Errorf("Run() on observer = %v, expected ErrRole", err)
	}
}

// assertInSync checks that a mirror holds exactly the host's live set, with
// positions inside the correction band.
func assertInSync(t *testing.T, host *replication.Host, m *observer.Mirror, tolerance float64) {
	t.Helper()
	snap := host.Snapshot()

	platforms := m.Platforms()
	if len(platforms) != len(snap.Platforms) {
		t.Fatalf("mirror has %d platforms, host has %d", len(platforms), len(snap.Platforms))
	}
	for i, want := range snap.Platforms {
		got := platforms[i]
		if uint32(got.ID) != want.ID || got.Variant != want.Variant || float32(got.Scale) != want.Scale {
			t.Fatalf("platform %d: mirror %+v, host %+v", i, got, want)
		}
		if d := got.Pos.Dist(want.Pos.Vec2()); d > tolerance {
			t.Errorf("platform %d drifted %.4f from the host", got.ID, d)
		}
	}

	bridges := m.Bridges()
	if len(bridges) != len(snap.Bridges) {
		t.Fatalf("mirror has %d bridges, host has %d", len(bridges), len(snap.Bridges))
	}
	for i, want := range snap.Bridges {
		got := bridges[i]
		if uint32(got.ID) != want.BridgeID || uint32(got.LowerID) != want.LowerID || uint32(got.UpperID) != want.UpperID {
			t.Errorf("bridge %d: mirror %+v, host %+v", i, got, want)
		}
	}
}

func TestStandaloneMirrorTracksHost(t *testing.T) {
	n, err := NewStandalone(hostOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer n.Close()

	host, _ := n.Host()
	m, _ := n.Mirror()
	for range 500 {
		n.Tick(dt)
	}
	if p, _ := m.Count(); p == 0 {
		t.Fatal("nothing spawned")
	}
	assertInSync(t, host, m, 1e-3)
}

func TestLateJoinerStaysInSync(t *testing.T) {
	host := replication.NewHost(hostOptions())
	for range 300 {
		host.Tick(dt)
	}

	session := host.NewSession()
	if err := host.Connect(session); err != nil {
		t.Fatal(err)
	}
	inbox := observer.NewInbox(4096)
	obs := NewObserver(inbox, nil)

	forward := func() {
		for {
			select {
			case msg := <-session.Messages():
				inbox.Push(msg)
			default:
				return
			}
		}
	}

	host.Tick(dt)
	forward()
	obs.Tick(dt)

	m, _ := obs.Mirror()
	if m.ConnID() != string(session.ID()) {
		t.Fatalf("ConnID() = %q, expected %q", m.ConnID(), session.ID())
	}

	for range 400 {
		host.Tick(dt)
		forward()
		obs.Tick(dt)
	}
	// One tick of dead-reckoning lag plus the correction band.
	assertInSync(t, host, m, 0.2+3*dt)
}

func TestStandaloneSetAnchorReachesHost(t *testing.T) {
	opts := hostOptions()
	opts.Autopilot = 0
	n, err := NewStandalone(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer n.Close()

	if err := n.SetAnchor(core.V(3, 4)); err != nil {
		t.Fatal(err)
	}
	n.Tick(dt)

	host, _ := n.Host()
	if got := host.Stats().Anchor; got != core.V(3, 4) {
		t.Errorf("host anchor = %v, expected (3, 4)", got)
	}
	if n.Anchor() != core.V(3, 4) {
		t.Errorf("Anchor() = %v", n.Anchor())
	}
}

type recordingSender struct{ got []core.Vec2 }

func (s *recordingSender) SendAnchor(pos core.Vec2) error {
	s.got = append(s.got, pos)
	return nil
}

func TestObserverForwardsAnchor(t *testing.T) {
	s := &recordingSender{}
	n := NewObserver(observer.NewInbox(1), s)
	if err := n.SetAnchor(core.V(1, 2)); err != nil {
		t.Fatal(err)
	}
	if len(s.got) != 1 || s.got[0] != core.V(1, 2) {
		t.Errorf("sender got %v", s.got)
	}
}

func TestObserverAppliesOnTickOnly(t *testing.T) {
	inbox := observer.NewInbox(4)
	n := NewObserver(inbox, nil)
	m, _ := n.Mirror()

	inbox.Push(protocol.SpawnPlatform{PlatformState: protocol.PlatformState{ID: 1, Scale: 1, Vel: 1}})
	if p, _ := m.Count(); p != 0 {
		t.Fatal("message applied before the tick")
	}
	n.Tick(0.5)
	p, ok := m.Get(1)
	if !ok {
		t.Fatal("message not applied on tick")
	}
	if math.Abs(p.Pos.X-0.5) > 1e-9 {
		t.Errorf("Pos.X = %v, expected 0.5 after advancing", p.Pos.X)
	}
}
