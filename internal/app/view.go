package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nbermudezs/otfcs/internal/panel"
	"github.com/nbermudezs/otfcs/internal/theme"
	"github.com/nbermudezs/otfcs/internal/views/chatlog"
	"github.com/nbermudezs/otfcs/internal/views/waiting"
)

const (
	labelHardware       = "Allow camera and microphone access? [y/n]"
	labelRepresentative = "Waiting for a representative…"
)

// PanelView is the terminal rendition of the floating service panel. It
// implements panel.View.
type PanelView struct {
	visible      bool
	queued       bool
	conversation bool
	closeLabel   string
	alert        *panel.Alert

	hardware       *waiting.Model
	representative *waiting.Model
	log            *chatlog.Model
	input          textinput.Model
}

var _ panel.View = (*PanelView)(nil)

func NewPanelView() *PanelView {
	input := textinput.New()
	input.Placeholder = "Type a message"
	input.CharLimit = 500
	input.Prompt = "> "
	return &PanelView{
		closeLabel:     panel.LabelCancel,
		hardware:       waiting.New(),
		representative: waiting.New(),
		log:            chatlog.New(60, 10),
		input:          input,
	}
}

func (v *PanelView) ShowPanel()        { v.visible = true }
func (v *PanelView) HidePanel()        { v.visible = false }
func (v *PanelView) SetQueued(on bool) { v.queued = on }

func (v *PanelView) ShowHardwareWait() { v.hardware.Show(labelHardware) }
func (v *PanelView) HideHardwareWait() { v.hardware.Hide() }

func (v *PanelView) ShowRepresentativeWait() { v.representative.Show(labelRepresentative) }
func (v *PanelView) HideRepresentativeWait() { v.representative.Hide() }

func (v *PanelView) ShowConversation() {
	v.conversation = true
	v.input.Focus()
}

func (v *PanelView) HideConversation() {
	v.conversation = false
	v.input.Blur()
}

func (v *PanelView) SetCloseLabel(label string) { v.closeLabel = label }

func (v *PanelView) ClearLog() { v.log.Clear() }

func (v *PanelView) AppendMessage(m panel.Message) {
	v.log.Append(chatlog.Entry{From: m.From, Text: m.Text, Mine: m.Mine})
}

func (v *PanelView) ScrollLogToBottom() { v.log.ScrollToBottom() }

func (v *PanelView) InputText() string { return v.input.Value() }
func (v *PanelView) ClearInput()       { v.input.Reset() }

func (v *PanelView) Alert(a panel.Alert) { v.alert = &a }

// Visible reports whether the panel is shown.
func (v *PanelView) Visible() bool { return v.visible }

// Chatting reports whether the conversation and its input are shown.
func (v *PanelView) Chatting() bool { return v.conversation }

func (v *PanelView) dismissAlert() { v.alert = nil }

// tick starts the frame loop of any indicator that just became visible.
func (v *PanelView) tick() tea.Cmd {
	return tea.Batch(v.hardware.Tick(), v.representative.Tick())
}

func (v *PanelView) updateIndicators(msg tea.Msg) tea.Cmd {
	return tea.Batch(v.hardware.Update(msg), v.representative.Update(msg))
}

func (v *PanelView) updateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return cmd
}

func (v *PanelView) resize(width, height int) {
	inner := width - 6
	if inner < 20 {
		inner = 20
	}
	logHeight := height - 14
	if logHeight < 3 {
		logHeight = 3
	}
	v.log.SetSize(inner, logHeight)
	v.input.Width = inner - 4
}

func (v *PanelView) render(width int) string {
	if !v.visible {
		return ""
	}
	inner := width - 4
	if inner < 24 {
		inner = 24
	}

	title := theme.StyleHeader.Render("Live assistance")
	if v.queued {
		title += " " + theme.StyleBadge.Render("ON QUEUE")
	}

	sections := []string{title, ""}
	if v.hardware.Visible() {
		sections = append(sections, v.hardware.View())
	}
	if v.representative.Visible() {
		sections = append(sections, v.representative.View())
	}
	if v.conversation {
		sections = append(sections, v.log.View(), "", v.input.View())
	}
	sections = append(sections, "", theme.StyleDimmed.Render("[esc] "+v.closeLabel))

	border := theme.ColorBorder
	if v.conversation {
		border = theme.ColorInSession
	}
	return theme.StyleBorder.
		Width(inner).
		Padding(0, 1).
		BorderForeground(border).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (v *PanelView) renderAlert() string {
	if v.alert == nil {
		return ""
	}
	prefix := "!"
	if v.alert.Level == panel.AlertDanger {
		prefix = "✗"
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.AlertColor(string(v.alert.Level))).
		Render(strings.TrimSpace(prefix + " " + v.alert.Text))
}
