package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/core"
	"github.com/vovakirdan/cloudsync/internal/node"
	"github.com/vovakirdan/cloudsync/internal/observer"
)

// maxFrameDT caps the step after a stall so dead reckoning does not jump.
const maxFrameDT = 0.25

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// Options configures the observer view.
type Options struct {
	View   config.ViewConfig
	Width  int
	Height int

	// Follow returns the anchor the host is using, when the view can see it.
	// Without it the view centers on the anchor this node last asked for.
	Follow func() core.Vec2

	// Lost is closed when the connection to the host goes away.
	Lost <-chan struct{}

	ScreenshotDir string // Defaults to ~/.cloudsync/screenshots
}

// Model is the Bubble Tea model of the observer view.
type Model struct {
	node   *node.Node
	mirror *observer.Mirror
	opts   Options
	screen *core.Screen
	keys   ViewKeyMap
	help   help.Model

	anchor   core.Vec2
	lastTick time.Time
	frames   uint64
	lost     bool
	notice   string
	quitting bool
}

// NewModel creates a view over n. n must keep a mirror.
func NewModel(n *node.Node, opts Options) (Model, error) {
	m, err := n.Mirror()
	if err != nil {
		return Model{}, err
	}
	if opts.View.FPS <= 0 {
		opts.View.FPS = 30
	}
	if opts.View.CellSize <= 0 {
		opts.View.CellSize = 0.5
	}
	if opts.View.AnchorStep <= 0 {
		opts.View.AnchorStep = 0.5
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 80, 24
	}

	return Model{
		node:   n,
		mirror: m,
		opts:   opts,
		screen: core.NewScreen(opts.Width, worldRows(opts.Height)),
		keys:   DefaultViewKeyMap(),
		help:   help.New(),
		anchor: n.Anchor(),
	}, nil
}

// worldRows leaves room for the status line and the help footer.
func worldRows(height int) int {
	return max(1, height-2)
}

// Init starts the tick loop.
func (m Model) Init() tea.Cmd {
	return tickCmd(m.opts.View.FPS)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.opts.Width, m.opts.Height = msg.Width, msg.Height
		m.screen.Resize(msg.Width, worldRows(msg.Height))
		m.help.Width = msg.Width
		return m, nil

	case TickMsg:
		return m.handleTick(time.Time(msg))
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Screenshot):
		m.notice = m.saveScreenshot()
		return m, nil
	case key.Matches(msg, m.keys.Recenter):
		m.moveAnchor(core.Vec2{})
		return m, nil
	}

	if d, ok := m.keys.AnchorDelta(msg); ok {
		m.moveAnchor(m.center().Add(d.Scale(m.opts.View.AnchorStep)))
	}
	return m, nil
}

func (m *Model) moveAnchor(pos core.Vec2) {
	m.anchor = pos
	if err := m.node.SetAnchor(pos); err != nil {
		m.notice = fmt.Sprintf("anchor not sent: %v", err)
	}
}

func (m Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	dt := 1 / float64(m.opts.View.FPS)
	if !m.lastTick.IsZero() {
		dt = min(maxFrameDT, now.Sub(m.lastTick).Seconds())
	}
	m.lastTick = now
	m.node.Tick(dt)
	m.frames++

	if m.opts.Lost != nil && !m.lost {
		select {
		case <-m.opts.Lost:
			m.lost = true
		default:
		}
	}
	return m, tickCmd(m.opts.View.FPS)
}

// center is where the view looks: the host's anchor when visible, otherwise
// the last one this node asked for.
func (m Model) center() core.Vec2 {
	if m.opts.Follow != nil {
		return m.opts.Follow()
	}
	return m.anchor
}

// saveScreenshot writes the current frame as plain text and reports where.
func (m *Model) saveScreenshot() string {
	DrawWorld(m.screen, m.mirror, m.center(), m.opts.View.CellSize)

	dir := m.opts.ScreenshotDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Sprintf("screenshot failed: %v", err)
		}
		dir = filepath.Join(home, ".cloudsync", "screenshots")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Sprintf("screenshot failed: %v", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("cloudsync_%s.txt", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(m.screen.String()), 0o600); err != nil {
		return fmt.Sprintf("screenshot failed: %v", err)
	}
	return "saved " + path
}

// Status is the one-line summary shown under the world.
func (m Model) Status() string {
	platforms, bridges := m.mirror.Count()
	c := m.center()
	conn := m.mirror.ConnID()
	if conn == "" {
		conn = "waiting for host"
	}
	return fmt.Sprintf("%s | %s | platforms %d | bridges %d | anchor (%.1f, %.1f) | corrections %d",
		m.node.Role(), conn, platforms, bridges, c.X, c.Y, m.mirror.Stats().Corrections)
}

// View renders the current state to a string for display.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	DrawWorld(m.screen, m.mirror, m.center(), m.opts.View.CellSize)
	if m.mirror.ConnID() == "" && m.node.Role() == node.Observer {
		msg := "waiting for host..."
		m.screen.DrawText((m.screen.Width()-len(msg))/2, m.screen.Height()/2+1, msg, core.ColorGray)
	}

	status := statusStyle.Render(m.Status())
	switch {
	case m.lost:
		status = alertStyle.Render("connection lost, press q to quit")
	case m.notice != "":
		status += "  " + statusStyle.Render(m.notice)
	}
	return RenderScreen(m.screen) + "\n" + status + "\n" + m.help.View(m.keys)
}

// Run starts the Bubble Tea program for n.
func Run(n *node.Node, opts Options) error {
	model, err := NewModel(n, opts)
	if err != nil {
		return err
	}
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
