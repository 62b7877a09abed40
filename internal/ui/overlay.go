package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// renderConfirm draws a small yes/no dialog.
func renderConfirm(title, question string, color lipgloss.Color) string {
	bc := lipgloss.NewStyle().Foreground(color)
	tc := lipgloss.NewStyle().Foreground(color).Bold(true)

	innerW := max(visibleLen(question)+4, 30)
	side := bc.Render("┃")
	blank := side + strings.Repeat(" ", innerW) + side

	head := " " + title + " "
	fillLen := max(innerW-3-visibleLen(head), 0)

	q := lipgloss.NewStyle().Foreground(ColorWhite).Bold(true).Render("  " + question)
	opts := fmt.Sprintf("  %s yes  %s no", SelectedStyle.Render("[y]"), DimStyle.Render("[n]"))

	rows := []string{
		bc.Render("┏━╸") + tc.Render(head) + bc.Render("╺"+strings.Repeat("━", fillLen)+"┓"),
		blank,
		side + fitWidth(q, innerW) + side,
		blank,
		side + fitWidth(opts, innerW) + side,
		blank,
		bc.Render("┗" + strings.Repeat("━", innerW) + "┛"),
	}
	return strings.Join(rows, "\n")
}

// overlayCenter composites modal onto the middle of bg, keeping bg visible
// on every side.
func overlayCenter(bg, modal string, width, height int) string {
	bgLines := strings.Split(bg, "\n")
	modalLines := strings.Split(modal, "\n")
	for len(bgLines) < height {
		bgLines = append(bgLines, "")
	}

	modalW := 0
	for _, ml := range modalLines {
		modalW = max(modalW, visibleLen(ml))
	}
	topOff := max((height-len(modalLines))/2, 0)
	leftOff := max((width-modalW)/2, 0)

	for i, ml := range modalLines {
		row := topOff + i
		if row < len(bgLines) {
			bgLines[row] = spliceLine(bgLines[row], ml, leftOff)
		}
	}
	return strings.Join(bgLines, "\n")
}

// spliceLine writes top over bg starting at visible column col.
func spliceLine(bg, top string, col int) string {
	left := fitWidth(ansi.Truncate(bg, col, ""), col)
	right := ansi.TruncateLeft(bg, col+visibleLen(top), "")
	return left + "\x1b[0m" + top + "\x1b[0m" + right
}
