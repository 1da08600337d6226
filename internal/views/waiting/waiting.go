// Package waiting renders the pulsing indicator shown while the panel waits
// for device access or for a representative.
package waiting

import (
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/nbermudezs/otfcs/internal/theme"
)

const (
	fps  = 30
	dots = 7
)

// FrameMsg advances the animation.
type FrameMsg struct{ id int }

var lastID int

// Model is one indicator. Hidden indicators stop scheduling frames.
type Model struct {
	Label string

	id      int
	visible bool
	ticking bool
	spring  harmonica.Spring
	pos     float64
	vel     float64
	target  float64
}

func New() *Model {
	lastID++
	return &Model{
		id:     lastID,
		spring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 0.5),
		target: 1,
	}
}

func (m *Model) Show(label string) {
	m.Label = label
	m.visible = true
}

func (m *Model) Hide() { m.visible = false }

func (m *Model) Visible() bool { return m.visible }

// Tick starts the frame loop if the indicator is visible and idle.
func (m *Model) Tick() tea.Cmd {
	if !m.visible || m.ticking {
		return nil
	}
	m.ticking = true
	return m.frame()
}

func (m *Model) frame() tea.Cmd {
	id := m.id
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{id: id} })
}

// Update steps the spring for this indicator's frames.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	f, ok := msg.(FrameMsg)
	if !ok || f.id != m.id {
		return nil
	}
	if !m.visible {
		m.ticking = false
		return nil
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if math.Abs(m.pos-m.target) < 0.02 && math.Abs(m.vel) < 0.05 {
		m.target = 1 - m.target
	}
	return m.frame()
}

// Position is the current pulse position in [0, 1].
func (m *Model) Position() float64 {
	return math.Max(0, math.Min(1, m.pos))
}

func (m *Model) View() string {
	if !m.visible {
		return ""
	}
	lit := int(math.Round(m.Position() * (dots - 1)))
	var b strings.Builder
	for i := 0; i < dots; i++ {
		if i == lit {
			b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorBright).Render("●"))
		} else {
			b.WriteString(theme.StyleDimmed.Render("·"))
		}
	}
	return b.String() + "  " + m.Label
}
