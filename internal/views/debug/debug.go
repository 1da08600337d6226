// Package debug provides a scrollable event log overlay: lifecycle
// transitions, transport results and backend calls as they happen.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/nbermudezs/otfcs/internal/theme"
)

const capacity = 200

// Entry kinds.
const (
	KindState = "st"
	KindRT    = "rt"
	KindHTTP  = "http"
	KindErr   = "err"
	KindUser  = "key"
)

type Entry struct {
	At   time.Time
	Kind string
	Text string
}

// Model keeps the most recent entries. back counts how many entries the
// view is scrolled away from the newest one.
type Model struct {
	entries []Entry
	back    int
	errors  int
	now     func() time.Time
}

func New() *Model {
	return &Model{now: time.Now}
}

// Add records an event and snaps the view back to the newest entry.
func (m *Model) Add(kind, text string) {
	if kind == KindErr {
		m.errors++
	}
	m.entries = append(m.entries, Entry{At: m.now(), Kind: kind, Text: text})
	if over := len(m.entries) - capacity; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
	m.back = 0
}

func (m *Model) Addf(kind, format string, args ...any) {
	m.Add(kind, fmt.Sprintf(format, args...))
}

func (m *Model) Len() int { return len(m.entries) }

// Errors counts every KindErr entry ever added, including evicted ones.
func (m *Model) Errors() int { return m.errors }

// Entries returns a copy, oldest first.
func (m *Model) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

// Back is the current scroll distance from the newest entry.
func (m *Model) Back() int { return m.back }

func (m *Model) ScrollUp(n int)   { m.scrollTo(m.back + n) }
func (m *Model) ScrollDown(n int) { m.scrollTo(m.back - n) }

func (m *Model) scrollTo(back int) {
	m.back = min(max(back, 0), max(len(m.entries)-1, 0))
}

// window returns the slice of entries that fits in rows lines.
func (m *Model) window(rows int) []Entry {
	end := len(m.entries) - m.back
	start := max(end-rows, 0)
	return m.entries[start:end]
}

// View renders the log as an overlay of the given outer size.
func (m *Model) View(width, height int) string {
	inner := max(width-4, 20)
	rows := max(height-6, 3)

	header := theme.StyleHeader.Render(" EVENT LOG ")
	if m.errors > 0 {
		header += " " + lipgloss.NewStyle().Foreground(theme.ColorDanger).
			Render(fmt.Sprintf("errors: %d", m.errors))
	}
	footer := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  d:close  %d entries", len(m.entries)))

	var body string
	if len(m.entries) == 0 {
		body = theme.StyleDimmed.Render("  Nothing has happened yet.")
	} else {
		visible := m.window(rows)
		lines := make([]string, 0, len(visible)+1)
		for _, e := range visible {
			lines = append(lines, renderEntry(e, inner))
		}
		if m.back > 0 {
			lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d newer", m.back)))
		}
		body = strings.Join(lines, "\n")
	}

	return lipgloss.NewStyle().
		Width(inner).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", footer))
}

func renderEntry(e Entry, width int) string {
	stamp := theme.StyleDimmed.Render(e.At.Format("15:04:05.000"))
	kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(5).Render(e.Kind)
	return stamp + " " + kind + " " + ansi.Truncate(e.Text, width-20, "…")
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindState:
		return theme.ColorInitializing
	case KindRT:
		return theme.ColorQueued
	case KindHTTP:
		return theme.ColorConnecting
	case KindErr:
		return theme.ColorDanger
	case KindUser:
		return theme.ColorWarning
	}
	return theme.ColorDimmed
}
