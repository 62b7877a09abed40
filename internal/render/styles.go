package render

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/thinkwright/tastebuddy-chat/internal/chat"
)

// Nostromo palette, shared with the ui package
var (
	ColorCyan    = lipgloss.Color("#5a9ab5")
	ColorCyanDim = lipgloss.Color("#3a6678")
	ColorGreen   = lipgloss.Color("#5aaa7a")
	ColorRed     = lipgloss.Color("#b56a6a")
	ColorYellow  = lipgloss.Color("#b5a05a")
	ColorDim     = lipgloss.Color("#3a5565")
	ColorBg      = lipgloss.Color("#000000")
	ColorBarText = lipgloss.Color("#d0dde5")
	ColorWhite   = lipgloss.Color("#8899a5")

	AssistantNameStyle = lipgloss.NewStyle().
				Foreground(ColorGreen).
				Bold(true)

	AssistantTextStyle = lipgloss.NewStyle().
				Foreground(ColorWhite)

	SystemStyle = lipgloss.NewStyle().
			Foreground(ColorDim).
			Italic(true)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Italic(true)

	BubbleStyle = lipgloss.NewStyle().
			Foreground(ColorBarText).
			Padding(0, 1)

	BubbleNameStyle = lipgloss.NewStyle().
			Bold(true)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorCyanDim).
			Padding(0, 1)

	CardTitleStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	CardFieldStyle = lipgloss.NewStyle().
			Foreground(ColorWhite)

	badgeStyle = lipgloss.NewStyle().
			Foreground(ColorBg).
			Bold(true).
			Padding(0, 1)
)

// MoodColor is the badge background for a harmony mood.
func MoodColor(m chat.Mood) lipgloss.Color {
	switch m {
	case chat.MoodCalm:
		return ColorGreen
	case chat.MoodNeutral:
		return ColorYellow
	default:
		return ColorRed
	}
}
