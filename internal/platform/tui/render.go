package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/cloudsync/internal/core"
	"github.com/vovakirdan/cloudsync/internal/observer"
)

// colorStyles maps core.Color to lipgloss styles.
var colorStyles = map[core.Color]lipgloss.Style{
	core.ColorDefault:     lipgloss.NewStyle(),
	core.ColorRed:         lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	core.ColorGreen:       lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	core.ColorYellow:      lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	core.ColorBlue:        lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	core.ColorMagenta:     lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	core.ColorCyan:        lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	core.ColorWhite:       lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
	core.ColorBrightWhite: lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
	core.ColorOrange:      lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	core.ColorGray:        lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
}

// variantColors cycles through the catalog; non-bridgeable variants are gray.
var variantColors = []core.Color{core.ColorBrightWhite, core.ColorCyan, core.ColorBlue, core.ColorMagenta, core.ColorGreen}

const (
	platformRune = '█'
	bridgeRune   = '┃'
	anchorRune   = '@'
)

// DrawWorld draws every mirrored platform and visible bridge onto s, with the
// viewport centered on center. Bridges are drawn first so platforms cover
// their ends.
func DrawWorld(s *core.Screen, m *observer.Mirror, center core.Vec2, cellSize float64) {
	s.Clear()
	vp := core.NewViewport(center, cellSize, s.Width(), s.Height())

	for _, b := range m.Bridges() {
		if !b.Geometry.Visible {
			continue
		}
		bounds := b.Geometry.Bounds()
		if !vp.Visible(bounds) {
			continue
		}
		x, y, w, h := vp.Rect(bounds)
		if w == 1 {
			s.DrawVLine(x, y, h, bridgeRune, core.ColorYellow)
			continue
		}
		s.FillRect(x, y, w, h, bridgeRune, core.ColorYellow)
	}

	variants := m.Variants()
	for _, p := range m.Platforms() {
		bounds := m.Bounds(p)
		if !vp.Visible(bounds) {
			continue
		}
		c := variantColors[p.Variant%len(variantColors)]
		if p.Variant >= 0 && p.Variant < len(variants) && variants[p.Variant].NoBridges {
			c = core.ColorGray
		}
		x, y, w, h := vp.Rect(bounds)
		s.FillRect(x, y, w, h, platformRune, c)
	}

	ax, ay := vp.ToScreen(center)
	s.SetColored(ax, ay, anchorRune, core.ColorOrange)
}

// RenderScreen converts a Screen buffer to a styled string for display.
// Groups adjacent cells with the same color to minimize ANSI escape sequences.
func RenderScreen(s *core.Screen) string {
	var sb strings.Builder
	// Pre-allocate with extra space for ANSI codes
	sb.Grow(s.Width()*s.Height()*2 + s.Height())

	for y := range s.Height() {
		if y > 0 {
			sb.WriteRune('\n')
		}

		x := 0
		for x < s.Width() {
			startColor := s.GetCell(x, y).Color

			var run strings.Builder
			for x < s.Width() {
				cell := s.GetCell(x, y)
				if cell.Color != startColor {
					break
				}
				run.WriteRune(cell.Rune)
				x++
			}

			style, ok := colorStyles[startColor]
			if !ok {
				style = colorStyles[core.ColorDefault]
			}
			sb.WriteString(style.Render(run.String()))
		}
	}
	return sb.String()
}
