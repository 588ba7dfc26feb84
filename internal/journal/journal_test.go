package journal

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/observer"
	"github.com/vovakirdan/cloudsync/internal/protocol"
	"github.com/vovakirdan/cloudsync/internal/replication"
)

func TestWriteThenRead(t *testing.T) {
	path := PathFor(t.TempDir(), "run-1")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}

	want := []Entry{
		{Tick: 1, Msg: protocol.SpawnPlatform{PlatformState: protocol.PlatformState{ID: 1, Pos: protocol.Vec{1.5, -2}, Scale: 1}}},
		{Tick: 1, Msg: protocol.SpawnPlatform{PlatformState: protocol.PlatformState{ID: 2, Pos: protocol.Vec{1.5, 1}, Scale: 1}}},
		{Tick: 2, Msg: protocol.SpawnBridge{BridgeState: protocol.BridgeState{BridgeID: 1, LowerID: 1, UpperID: 2}}},
		{Tick: 9, Msg: protocol.DespawnPlatform{ID: 2}},
	}
	for _, e := range want {
		if err := w.Append(e.Tick, e.Msg); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := w.Append(10, protocol.DespawnPlatform{ID: 1}); err == nil {
		t.Error("Append() after Close accepted")
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var got []Entry
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, e)
	}
	if len(got) != len(want) {
		t.Fatalf("read %d entries, expected %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Tick != want[i].Tick || got[i].Msg.Kind() != want[i].Msg.Kind() {
			t.Errorf("entry %d = %+v, expected %+v", i, got[i], want[i])
		}
	}
}

func TestReplayStopsAtTick(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j"+Extension)
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for tick := uint64(1); tick <= 5; tick++ {
		if err := w.Append(tick, protocol.DespawnBridge{BridgeID: uint32(tick)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		toTick uint64
		want   int
	}{
		{"all", 0, 5},
		{"prefix", 3, 3},
		{"past the end", 99, 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen := 0
			n, err := Replay(path, tc.toTick, func(Entry) { seen++ })
			if err != nil {
				t.Fatal(err)
			}
			if n != tc.want || seen != tc.want {
				t.Errorf("Replay() = %d (callback %d), expected %d", n, seen, tc.want)
			}
		})
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+Extension)
	if err := os.WriteFile(path, []byte("not zstd at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Replay(path, 0, func(Entry) {}); err == nil {
		t.Error("Replay() of a corrupt file returned nil error")
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing"+Extension)); err == nil {
		t.Error("Open() of a missing file returned nil error")
	}
}

// A journal of a host started from an empty world replays into a mirror
// holding exactly the host's final state.
func TestHostJournalReplaysIntoMirror(t *testing.T) {
	cfg := config.Default()
	cfg.World.ExclusionZones = nil

	w, err := Create(PathFor(t.TempDir(), "host"))
	if err != nil {
		t.Fatal(err)
	}
	host := replication.NewHost(replication.Options{
		World:       cfg.World,
		Relation:    cfg.Relation,
		Replication: cfg.Replication,
		Seed:        5,
		Autopilot:   2,
		Journal:     w,
	})
	for range 400 {
		host.Tick(0.02)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	snap := host.Snapshot()

	m := observer.NewMirror(observer.Options{})
	if _, err := Replay(w.Path(), 0, func(e Entry) { m.Apply(e.Msg) }); err != nil {
		t.Fatal(err)
	}

	ids := func(ps []observer.Platform) []uint32 {
		out := make([]uint32, len(ps))
		for i, p := range ps {
			out[i] = uint32(p.ID)
		}
		return out
	}
	want := make([]uint32, 0, len(snap.Platforms))
	for _, p := range snap.Platforms {
		want = append(want, p.ID)
	}
	if got := ids(m.Platforms()); !reflect.DeepEqual(got, want) {
		t.Errorf("replayed platforms %v, host has %v", got, want)
	}
	if _, bridges := m.Count(); bridges != len(snap.Bridges) {
		t.Errorf("replayed %d bridges, host has %d", bridges, len(snap.Bridges))
	}
}
