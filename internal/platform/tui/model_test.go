package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/core"
	"github.com/vovakirdan/cloudsync/internal/node"
	"github.com/vovakirdan/cloudsync/internal/observer"
	"github.com/vovakirdan/cloudsync/internal/protocol"
	"github.com/vovakirdan/cloudsync/internal/replication"
	"github.com/vovakirdan/cloudsync/internal/world"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newStandaloneModel(t *testing.T) (Model, *replication.Host) {
	t.Helper()
	cfg := config.Default()
	n, err := node.NewStandalone(replication.Options{
		World:       cfg.World,
		Relation:    cfg.Relation,
		Replication: cfg.Replication,
		Seed:        5,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(n.Close)

	m, err := NewModel(n, Options{View: cfg.View, Width: 60, Height: 20, ScreenshotDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	host, _ := n.Host()
	return m, host
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return mm, cmd
}

func TestAnchorDelta(t *testing.T) {
	keys := DefaultViewKeyMap()
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want core.Vec2
		ok   bool
	}{
		{"left arrow", tea.KeyMsg{Type: tea.KeyLeft}, core.V(-1, 0), true},
		{"d", runes("d"), core.V(1, 0), true},
		{"w", runes("w"), core.V(0, 1), true},
		{"down arrow", tea.KeyMsg{Type: tea.KeyDown}, core.V(0, -1), true},
		{"unbound", runes("x"), core.Vec2{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := keys.AnchorDelta(tc.msg)
			if ok != tc.ok || got != tc.want {
				t.Errorf("AnchorDelta() = %v, %v, expected %v, %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestModelMovesAnchor(t *testing.T) {
	m, host := newStandaloneModel(t)

	m, _ = update(t, m, runes("d"))
	m, _ = update(t, m, runes("d"))
	m, _ = update(t, m, runes("w"))
	m, _ = update(t, m, TickMsg(time.Now()))

	want := core.V(1, 0.5)
	if got := host.Stats().Anchor; got != want {
		t.Errorf("host anchor = %v, expected %v", got, want)
	}

	m, _ = update(t, m, runes("c"))
	m, _ = update(t, m, TickMsg(time.Now()))
	if got := host.Stats().Anchor; got != (core.Vec2{}) {
		t.Errorf("host anchor after recenter = %v, expected origin", got)
	}
	_ = m
}

func TestModelTicksNode(t *testing.T) {
	m, host := newStandaloneModel(t)

	start := time.Now()
	for i := range 20 {
		var cmd tea.Cmd
		m, cmd = update(t, m, TickMsg(start.Add(time.Duration(i)*20*time.Millisecond)))
		if cmd == nil {
			t.Fatal("tick did not schedule the next one")
		}
	}
	if host.Stats().Tick != 20 {
		t.Errorf("host tick = %d, expected 20", host.Stats().Tick)
	}

	view := m.View()
	for _, want := range []string{"standalone", "platforms", "bridges"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestModelResize(t *testing.T) {
	m, _ := newStandaloneModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	if m.screen.Width() != 100 || m.screen.Height() != 38 {
		t.Errorf("screen = %dx%d, expected 100x38", m.screen.Width(), m.screen.Height())
	}
}

func TestModelScreenshot(t *testing.T) {
	m, _ := newStandaloneModel(t)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})

	files, err := os.ReadDir(m.opts.ScreenshotDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 screenshot, found %d", len(files))
	}
	data, err := os.ReadFile(filepath.Join(m.opts.ScreenshotDir, files[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.ContainsRune(string(data), anchorRune) {
		t.Error("screenshot does not show the anchor")
	}
	if !strings.HasPrefix(m.notice, "saved ") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestModelQuit(t *testing.T) {
	m, _ := newStandaloneModel(t)
	m, cmd := update(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("quit did not return a command")
	}
	if m.View() != "" {
		t.Error("View() should be empty after quitting")
	}
}

func TestModelShowsLostConnection(t *testing.T) {
	inbox := observer.NewInbox(4)
	lost := make(chan struct{})
	m, err := NewModel(node.NewObserver(inbox, nil), Options{Lost: lost})
	if err != nil {
		t.Fatal(err)
	}
	close(lost)
	m, _ = update(t, m, TickMsg(time.Now()))
	if !strings.Contains(m.View(), "connection lost") {
		t.Error("View() does not report the lost connection")
	}
}

func TestNewModelRejectsAuthoritative(t *testing.T) {
	cfg := config.Default()
	host := replication.NewHost(replication.Options{World: cfg.World, Relation: cfg.Relation, Replication: cfg.Replication})
	if _, err := NewModel(node.NewAuthoritative(host), Options{}); err == nil {
		t.Error("expected an error for a node without a mirror")
	}
}

func TestDrawWorld(t *testing.T) {
	m := observer.NewMirror(observer.Options{
		Variants: []world.Variant{{Name: "slab", Size: core.V(4, 1)}},
	})
	m.Apply(protocol.SpawnPlatform{PlatformState: protocol.PlatformState{ID: 1, Scale: 1}})

	s := core.NewScreen(20, 10)
	DrawWorld(s, m, core.V(0, 3), 1)

	// Cells are 1 wide and 2 tall, so the slab spans columns 8-11 two rows
	// below the anchor.
	if s.Get(10, 4) != anchorRune {
		t.Errorf("anchor cell = %q", s.Get(10, 4))
	}
	count := strings.Count(s.String(), string(platformRune))
	if count != 4 {
		t.Errorf("platform covers %d cells, expected 4\n%s", count, s.String())
	}
	if s.Get(8, 6) != platformRune || s.Get(11, 6) != platformRune {
		t.Errorf("platform not drawn at the expected row\n%s", s.String())
	}
}
