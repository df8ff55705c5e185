// Package styles contains the Lip Gloss style definitions shared by
// the wizard and chat views.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette. Adaptive pairs pick the variant for the detected background.
var (
	AccentColor     = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"}
	TextPrimary     = lipgloss.AdaptiveColor{Light: "#1A1A2E", Dark: "#ECECF1"}
	TextMuted       = lipgloss.AdaptiveColor{Light: "#6B6B80", Dark: "#8E8EA0"}
	ErrorColor      = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6B6B"}
	WarningColor    = lipgloss.AdaptiveColor{Light: "#B7791F", Dark: "#F6C177"}
	SuccessColor    = lipgloss.AdaptiveColor{Light: "#1E7F4F", Dark: "#6BCB77"}
	BorderColor     = lipgloss.AdaptiveColor{Light: "#D0D0DA", Dark: "#3A3A4A"}
	UserBubbleColor = lipgloss.AdaptiveColor{Light: "#E8E8F8", Dark: "#2B2B40"}
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(AccentColor)

	SectionTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextPrimary)

	Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	ErrorText = lipgloss.NewStyle().
			Foreground(ErrorColor)

	WarningText = lipgloss.NewStyle().
			Foreground(WarningColor)

	SuccessText = lipgloss.NewStyle().
			Foreground(SuccessColor)

	Selected = lipgloss.NewStyle().
			Bold(true).
			Foreground(AccentColor)

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	UserBubble = lipgloss.NewStyle().
			Background(UserBubbleColor).
			Padding(0, 1)

	Hint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
)

// forcedDark overrides terminal background detection when the user
// pinned a theme in the configuration.
var forcedDark *bool

// ForceTheme pins the theme to "light" or "dark"; any other value keeps
// terminal detection.
func ForceTheme(mode string) {
	switch mode {
	case "dark":
		v := true
		forcedDark = &v
	case "light":
		v := false
		forcedDark = &v
	default:
		forcedDark = nil
	}
}

// HasDarkBackground reports whether the terminal background is dark.
// Glamour needs the answer explicitly; lipgloss adapts on its own.
func HasDarkBackground() bool {
	if forcedDark != nil {
		return *forcedDark
	}
	return termenv.HasDarkBackground()
}
