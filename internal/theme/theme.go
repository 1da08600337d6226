// Package theme provides the Lip Gloss color palette and reusable styles
// for the otfcs TUI. It is a leaf package with no internal imports to avoid
// import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Lifecycle state colors.
var (
	ColorInitializing = lipgloss.Color("#7c3aed")
	ColorHardware     = lipgloss.Color("#d97706")
	ColorQueued       = lipgloss.Color("#2563eb")
	ColorConnecting   = lipgloss.Color("#06b6d4")
	ColorInSession    = lipgloss.Color("#16a34a")
	ColorClosed       = lipgloss.Color("#374151")
)

// Chat colors.
var (
	ColorMine   = lipgloss.Color("#3b82f6")
	ColorTheirs = lipgloss.Color("#a855f7")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// StateColor returns the Lip Gloss color for a lifecycle state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "initializing":
		return ColorInitializing
	case "hardware_wait":
		return ColorHardware
	case "queued":
		return ColorQueued
	case "representative_connecting":
		return ColorConnecting
	case "in_session":
		return ColorInSession
	case "closed":
		return ColorClosed
	default:
		return ColorDefault
	}
}

// StateGlyph returns a Unicode glyph representing a lifecycle state.
func StateGlyph(state string) string {
	switch state {
	case "initializing":
		return "◎"
	case "hardware_wait":
		return "◌"
	case "queued":
		return "…"
	case "representative_connecting":
		return "●>"
	case "in_session":
		return "●"
	case "closed":
		return "○"
	default:
		return "·"
	}
}

// AlertColor returns the color for an alert level.
func AlertColor(level string) lipgloss.Color {
	switch level {
	case "danger":
		return ColorDanger
	case "warning":
		return ColorWarning
	default:
		return ColorDefault
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleBadge = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(ColorBright).
			Background(ColorQueued)
)
