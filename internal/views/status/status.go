package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/nbermudezs/otfcs/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Customer   string
	State      string // lifecycle state name, empty without a panel
	QueueID    string
	Connection string
	Width      int
}

// New creates a status bar model.
func New(customer string) Model {
	return Model{Customer: customer}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connection != "" {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDimmed).Render("○ Offline")
	}

	state := m.State
	if state == "" {
		state = "idle"
	}
	stateStr := lipgloss.NewStyle().Foreground(theme.StateColor(state)).
		Render(fmt.Sprintf("%s %s", theme.StateGlyph(state), state))

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := theme.StyleHeader.Render(m.Customer) + sep + stateStr + sep + connStr
	if m.QueueID != "" {
		content += sep + theme.StyleDimmed.Render("queue "+shortID(m.QueueID))
	}

	// Border and padding take four columns.
	content = ansi.Truncate(content, width-4, "…")

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
