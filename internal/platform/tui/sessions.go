package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/cloudsync/internal/storage"
)

// Session table layout constants
const (
	minWidthForSidebar = 90  // Minimum width to show the run list sidebar
	sidebarWidth       = 24  // Width of run list sidebar
	maxRuns            = 20  // Runs offered in the sidebar
	maxSessions        = 200 // Sessions loaded per run
)

// SessionsKeyMap defines the key bindings for the session history view.
type SessionsKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	NextRun key.Binding
	PrevRun key.Binding
	Quit    key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k SessionsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextRun, k.PrevRun, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k SessionsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.NextRun, k.PrevRun, k.Quit},
	}
}

// DefaultSessionsKeyMap returns default key bindings.
func DefaultSessionsKeyMap() SessionsKeyMap {
	return SessionsKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "scroll down"),
		),
		NextRun: key.NewBinding(
			key.WithKeys("tab", "right", "l"),
			key.WithHelp("tab", "next run"),
		),
		PrevRun: key.NewBinding(
			key.WithKeys("shift+tab", "left", "h"),
			key.WithHelp("S-tab", "prev run"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// SessionsModel browses the observer session history kept in the store.
type SessionsModel struct {
	store       *storage.Store
	runs        []storage.Run
	runCursor   int
	sessions    []storage.Session
	stats       *storage.RunStats
	loadErr     error
	table       table.Model
	help        help.Model
	keys        SessionsKeyMap
	width       int
	height      int
	quitting    bool
	showSidebar bool
}

// NewSessionsModel creates the history view. When runID is set the cursor
// starts on that run.
func NewSessionsModel(store *storage.Store, runID string, width, height int) SessionsModel {
	m := SessionsModel{
		store:       store,
		keys:        DefaultSessionsKeyMap(),
		help:        help.New(),
		width:       width,
		height:      height,
		showSidebar: width >= minWidthForSidebar,
	}
	m.table = m.createTable()

	runs, err := store.RecentRuns(maxRuns)
	if err != nil {
		m.loadErr = err
		return m
	}
	m.runs = runs
	for i, r := range runs {
		if r.RunID == runID {
			m.runCursor = i
		}
	}
	if len(m.runs) > 0 {
		m.loadSessions()
	}
	return m
}

// createTable creates a new table sized to the window.
func (m *SessionsModel) createTable() table.Model {
	columns := []table.Column{
		{Title: "Conn", Width: 10},
		{Title: "Joined", Width: 15},
		{Title: "Duration", Width: 10},
		{Title: "Sent", Width: 8},
		{Title: "Dropped", Width: 8},
		{Title: "Snapshot", Width: 9},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(3, m.height-9)), // Leave room for header, summary and help
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

func (m *SessionsModel) loadSessions() {
	runID := m.runs[m.runCursor].RunID
	m.sessions, m.loadErr = m.store.ListSessions(runID, maxSessions)
	if m.loadErr == nil {
		m.stats, m.loadErr = m.store.GetRunStats(runID)
	}
	m.updateTableRows()
}

// SessionRow formats one session for the table.
func SessionRow(s storage.Session) table.Row {
	synced := "yes"
	if s.LastFullSync.IsZero() {
		synced = "never"
	}
	return table.Row{
		s.ConnID,
		s.JoinedAt.Local().Format("Jan 02 15:04:05"),
		s.Duration().Round(time.Second).String(),
		fmt.Sprintf("%d", s.Sent),
		fmt.Sprintf("%d", s.Dropped),
		synced,
	}
}

func (m *SessionsModel) updateTableRows() {
	rows := make([]table.Row, len(m.sessions))
	for i, s := range m.sessions {
		rows[i] = SessionRow(s)
	}
	m.table.SetRows(rows)
	m.table.GotoTop()
}

// Init initializes the model.
func (m SessionsModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the history view.
func (m SessionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.NextRun):
			if len(m.runs) > 0 {
				m.runCursor = (m.runCursor + 1) % len(m.runs)
				m.loadSessions()
			}
			return m, nil

		case key.Matches(msg, m.keys.PrevRun):
			if len(m.runs) > 0 {
				m.runCursor = (m.runCursor - 1 + len(m.runs)) % len(m.runs)
				m.loadSessions()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.showSidebar = m.width >= minWidthForSidebar
		m.table = m.createTable()
		m.updateTableRows()
		m.help.Width = msg.Width
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the history view.
func (m SessionsModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229"))

	title := "OBSERVER SESSIONS"
	if len(m.runs) > 0 {
		title = fmt.Sprintf("OBSERVER SESSIONS - run %s", shortRunID(m.runs[m.runCursor].RunID))
	}
	b.WriteString(titleStyle.Render(centerText(title, m.width)))
	b.WriteString("\n\n")

	content := m.renderTableContent()
	if m.showSidebar && len(m.runs) > 0 {
		content = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), "  ", content)
	}
	b.WriteString(content)
	b.WriteString("\n")

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	if m.stats != nil {
		b.WriteString(dim.Render(fmt.Sprintf("%d sessions | %d sent | %d dropped",
			m.stats.Sessions, m.stats.Sent, m.stats.Dropped)))
		b.WriteString("\n")
	}
	b.WriteString(dim.Render(m.help.View(m.keys)))

	return b.String()
}

func (m SessionsModel) renderSidebar() string {
	sidebarStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(sidebarWidth).
		Padding(0, 1)

	var sb strings.Builder
	sb.WriteString("Runs\n")
	sb.WriteString(strings.Repeat("-", sidebarWidth-4))
	sb.WriteString("\n")
	for i, r := range m.runs {
		cursor := "  "
		style := lipgloss.NewStyle()
		if i == m.runCursor {
			cursor = "> "
			style = style.Bold(true).Foreground(lipgloss.Color("229"))
		}
		line := fmt.Sprintf("%s%s %s", cursor, shortRunID(r.RunID), r.StartedAt.Local().Format("01-02 15:04"))
		sb.WriteString(style.Render(line))
		sb.WriteString("\n")
	}
	return sidebarStyle.Render(sb.String())
}

func (m SessionsModel) renderTableContent() string {
	tableStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	emptyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Italic(true).
		Padding(2, 4)

	switch {
	case m.loadErr != nil:
		return tableStyle.Render(emptyStyle.Render("Cannot read history: " + m.loadErr.Error()))
	case len(m.sessions) == 0:
		return tableStyle.Render(emptyStyle.Render("No observer sessions recorded yet."))
	}
	return tableStyle.Render(m.table.View())
}

// shortRunID keeps the first block of a UUID.
func shortRunID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func centerText(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}

// RunSessions runs the session history browser.
func RunSessions(store *storage.Store, runID string, width, height int) error {
	p := tea.NewProgram(
		NewSessionsModel(store, runID, width, height),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
