package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/thinkwright/tastebuddy-chat/internal/render"
)

// Chrome colors. Message colors live in render.
var (
	ColorCyan    = render.ColorCyan
	ColorCyanDim = render.ColorCyanDim
	ColorAccent  = lipgloss.Color("#7fcfdf")
	ColorGreen   = render.ColorGreen
	ColorRed     = render.ColorRed
	ColorYellow  = render.ColorYellow
	ColorDim     = render.ColorDim
	ColorMuted   = lipgloss.Color("#1a2a35")
	ColorBarBg   = lipgloss.Color("#0f1e28") // status/header bar background
	ColorBarText = render.ColorBarText
	ColorWhite   = render.ColorWhite
	ColorSelect  = lipgloss.Color("#c8d84a")

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorSelect).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)
)

// ─── Custom Border Rendering ──────────────────────────────────────────
// Renders panels with inline title in the top border:
//   ┏━━╸ CHAT ╺━━━━━━━━━━━━━━━━━┓
//   ┃                             ┃
//   ┗━━━━━━━━━━━━━━━━━━━━━━━━━━━━┛

// RenderPanel draws a panel with an inline title in the top border.
// Focused panels get a double-line border.
func RenderPanel(title string, content string, w, h int, focused bool) string {
	borderColor := ColorCyanDim
	titleColor := ColorCyan
	if focused {
		borderColor = lipgloss.Color("#70cc90")
		titleColor = lipgloss.Color("#a0ffbb")
	}

	bc := lipgloss.NewStyle().Foreground(borderColor)
	tc := lipgloss.NewStyle().Foreground(titleColor).Bold(true)

	innerW := max(w-2, 0)
	titleText := " " + title + " "
	fillLen := max(w-5-runewidth.StringWidth(titleText), 0)

	h1, v, tl, tr, bl, br := "━", "┃", "┏", "┓", "┗", "┛"
	if focused {
		h1, v, tl, tr, bl, br = "═", "║", "╔", "╗", "╚", "╝"
	}
	top := bc.Render(tl+h1+"╸") + tc.Render(titleText) + bc.Render("╺"+strings.Repeat(h1, fillLen)+tr)
	bottom := bc.Render(bl + strings.Repeat(h1, innerW) + br)
	side := bc.Render(v)

	lines := strings.Split(content, "\n")
	for len(lines) < h {
		lines = append(lines, "")
	}
	if len(lines) > h {
		lines = lines[:h]
	}

	rows := make([]string, 0, h+2)
	rows = append(rows, top)
	for _, line := range lines {
		rows = append(rows, side+fitWidth(line, innerW)+side)
	}
	rows = append(rows, bottom)
	return strings.Join(rows, "\n")
}

// ─── Scrollbar ────────────────────────────────────────────────────────

// RenderScrollbar returns one scrollbar glyph per visible row for a view of
// height rows into totalLines, scrolled to offset.
func RenderScrollbar(height, totalLines, offset int) []string {
	track := make([]string, height)

	if totalLines <= height || height < 1 {
		for i := range track {
			track[i] = " "
		}
		return track
	}

	thumbSize := max((height*height)/totalLines, 1)
	maxOffset := max(totalLines-height, 1)
	thumbPos := (offset * (height - thumbSize)) / maxOffset

	thumbChar := lipgloss.NewStyle().Foreground(ColorAccent).Render("┃")
	trackChar := lipgloss.NewStyle().Foreground(ColorMuted).Render("╎")

	for i := range track {
		if i >= thumbPos && i < thumbPos+thumbSize {
			track[i] = thumbChar
		} else {
			track[i] = trackChar
		}
	}
	return track
}

// ─── Sparkline ────────────────────────────────────────────────────────

// Sparkline renders values in [0,1] as block bars, one per value, keeping
// only the last width values.
func Sparkline(values []float64, width int) string {
	bars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	if len(values) == 0 || width < 1 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	var b strings.Builder
	for _, v := range values {
		idx := int(v * float64(len(bars)-1))
		idx = min(max(idx, 0), len(bars)-1)
		b.WriteRune(bars[idx])
	}
	return b.String()
}

func visibleLen(s string) int {
	return runewidth.StringWidth(ansi.Strip(s))
}

func truncateToWidth(s string, w int) string {
	return ansi.Truncate(s, w, "…")
}

// fitWidth pads or truncates s to exactly w visible columns.
func fitWidth(s string, w int) string {
	n := visibleLen(s)
	if n > w {
		s = truncateToWidth(s, w)
		n = visibleLen(s)
	}
	if n < w {
		s += strings.Repeat(" ", w-n)
	}
	return s
}
