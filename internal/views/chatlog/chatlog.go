// Package chatlog renders the conversation with a representative in a
// scrollable viewport. Message bodies are rendered as Markdown.
package chatlog

import (
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/nbermudezs/otfcs/internal/theme"
)

// Entry is one chat line.
type Entry struct {
	From string
	Text string
	Mine bool
}

// RenderFunc turns a message body into terminal output for the given width.
type RenderFunc func(body string, width int) string

// Model is the chat log.
type Model struct {
	entries  []Entry
	viewport viewport.Model
	render   RenderFunc

	// rendered holds one block per entry, laid out for renderedWidth.
	rendered      []string
	renderedWidth int
}

// New creates a log of the given size rendering bodies with Markdown.
func New(width, height int) *Model {
	m := &Model{
		viewport: viewport.New(width, height),
		render:   Markdown,
	}
	m.renderedWidth = m.width()
	return m
}

// SetRenderer replaces the body renderer.
func (m *Model) SetRenderer(r RenderFunc) {
	m.render = r
	m.rerender()
}

// SetSize resizes the viewport. Entries are re-rendered only when the width
// changes.
func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	if m.width() != m.renderedWidth {
		m.rerender()
	}
}

// Append renders only the new entry.
func (m *Model) Append(e Entry) {
	m.entries = append(m.entries, e)
	m.rendered = append(m.rendered, m.block(e, m.renderedWidth))
	m.viewport.SetContent(strings.Join(m.rendered, "\n"))
}

func (m *Model) Clear() {
	m.entries = nil
	m.rendered = nil
	m.viewport.SetContent("")
	m.viewport.GotoTop()
}

func (m *Model) Len() int { return len(m.entries) }

// Entries returns a copy of the log.
func (m *Model) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

func (m *Model) ScrollToBottom() { m.viewport.GotoBottom() }

func (m *Model) AtBottom() bool { return m.viewport.AtBottom() }

// Update forwards scroll keys and mouse wheel events to the viewport.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return cmd
}

func (m *Model) View() string {
	if len(m.entries) == 0 {
		return theme.StyleDimmed.Render("No messages yet. Say hello!")
	}
	return m.viewport.View()
}

func (m *Model) width() int {
	if m.viewport.Width < 10 {
		return 10
	}
	return m.viewport.Width
}

func (m *Model) rerender() {
	m.renderedWidth = m.width()
	m.rendered = m.rendered[:0]
	for _, e := range m.entries {
		m.rendered = append(m.rendered, m.block(e, m.renderedWidth))
	}
	m.viewport.SetContent(strings.Join(m.rendered, "\n"))
}

func (m *Model) block(e Entry, width int) string {
	color := theme.ColorTheirs
	if e.Mine {
		color = theme.ColorMine
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(e.From+":") + "\n" + m.render(e.Text, width)
}

// Plain renders the body as-is.
func Plain(body string, _ int) string { return body }

var (
	renderersMu sync.Mutex
	renderers   = map[int]*glamour.TermRenderer{}
)

// Markdown renders the body with glamour, falling back to plain text.
func Markdown(body string, width int) string {
	renderersMu.Lock()
	defer renderersMu.Unlock()
	r, ok := renderers[width]
	if !ok {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return body
		}
		renderers[width] = r
	}
	out, err := r.Render(body)
	if err != nil {
		return body
	}
	return strings.Trim(out, "\n")
}
