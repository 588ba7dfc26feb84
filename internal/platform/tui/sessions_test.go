package tui

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/cloudsync/internal/replication"
	"github.com/vovakirdan/cloudsync/internal/storage"
)

func TestSessionRow(t *testing.T) {
	joined := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		synced time.Time
		want   string
	}{
		{"synced", joined, "yes"},
		{"never synced", time.Time{}, "never"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			row := SessionRow(storage.Session{
				ConnID:       "conn-2",
				JoinedAt:     joined,
				LastFullSync: tc.synced,
				LeftAt:       joined.Add(90 * time.Second),
				Sent:         12,
				Dropped:      3,
			})
			if row[0] != "conn-2" || row[2] != "1m30s" || row[3] != "12" || row[4] != "3" || row[5] != tc.want {
				t.Errorf("SessionRow() = %v", row)
			}
		})
	}
}

func TestSessionsModelSwitchesRuns(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, run := range []string{"aaaa-1", "bbbb-2"} {
		if err := store.CreateRun(storage.Run{RunID: run, StartedAt: start.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatal(err)
		}
	}
	for i := range 3 {
		rec := replication.SessionRecord{
			RunID:    "aaaa-1",
			ConnID:   "conn-" + string(rune('1'+i)),
			JoinedAt: start,
			LeftAt:   start.Add(time.Minute),
		}
		if err := store.SaveSession(rec); err != nil {
			t.Fatal(err)
		}
	}

	m := NewSessionsModel(store, "aaaa-1", 120, 30)
	if m.runs[m.runCursor].RunID != "aaaa-1" {
		t.Fatalf("cursor on %q, expected aaaa-1", m.runs[m.runCursor].RunID)
	}
	if len(m.sessions) != 3 {
		t.Fatalf("loaded %d sessions, expected 3", len(m.sessions))
	}
	if !strings.Contains(m.View(), "run aaaa") {
		t.Error("View() does not name the selected run")
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(SessionsModel)
	if m.runs[m.runCursor].RunID != "bbbb-2" || len(m.sessions) != 0 {
		t.Errorf("after tab: run %q with %d sessions", m.runs[m.runCursor].RunID, len(m.sessions))
	}
	if !strings.Contains(m.View(), "No observer sessions") {
		t.Error("View() does not show the empty state")
	}
}
