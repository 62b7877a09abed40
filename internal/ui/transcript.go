package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/thinkwright/tastebuddy-chat/internal/render"
)

// TranscriptPane shows the chat transcript in a scrollable viewport. It
// follows the bottom until the user scrolls up, and resumes once they
// scroll back down.
type TranscriptPane struct {
	vp         viewport.Model
	transcript *render.Transcript
	version    uint64
	width      int
	synced     bool
	tailing    bool
}

func NewTranscriptPane(t *render.Transcript) TranscriptPane {
	return TranscriptPane{
		vp:         viewport.New(0, 0),
		transcript: t,
		tailing:    true,
	}
}

// SetSize sets the inner size of the pane, excluding the scrollbar gutter.
func (p *TranscriptPane) SetSize(w, h int) {
	p.vp.Width = max(w-1, 1)
	p.vp.Height = max(h, 1)
	if w != p.width {
		p.width = w
		p.synced = false
	}
	p.Sync()
}

// Sync re-renders when the transcript changed since the last call. It
// reports whether anything was redrawn.
func (p *TranscriptPane) Sync() bool {
	v := p.transcript.Version()
	if p.synced && v == p.version {
		return false
	}
	p.version = v
	p.synced = true

	offset := p.vp.YOffset
	p.vp.SetContent(strings.Join(p.transcript.Lines(p.vp.Width), "\n"))
	if p.tailing {
		p.vp.GotoBottom()
	} else {
		p.vp.SetYOffset(offset)
	}
	return true
}

func (p *TranscriptPane) ScrollUp(n int) {
	p.vp.SetYOffset(p.vp.YOffset - n)
	// User scrolled up, pause auto-tail
	p.tailing = p.vp.AtBottom()
}

func (p *TranscriptPane) ScrollDown(n int) {
	p.vp.SetYOffset(p.vp.YOffset + n)
	if p.vp.AtBottom() {
		p.tailing = true
	}
}

func (p *TranscriptPane) IsTailing() bool {
	return p.tailing
}

func (p *TranscriptPane) Height() int {
	return p.vp.Height
}

func (p *TranscriptPane) View() string {
	if p.transcript.Len() == 0 {
		return "\n" + DimStyle.Render("  No messages yet. Say hi, or mention @tastebuddy for ideas.")
	}

	rows := strings.Split(p.vp.View(), "\n")
	scrollbar := RenderScrollbar(p.vp.Height, p.vp.TotalLineCount(), p.vp.YOffset)

	var b strings.Builder
	for i := 0; i < p.vp.Height; i++ {
		line := ""
		if i < len(rows) {
			line = rows[i]
		}
		b.WriteString(fitWidth(line, p.vp.Width))
		if i < len(scrollbar) {
			b.WriteString(scrollbar[i])
		}
		if i < p.vp.Height-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// HarmonyTrend is the harmony score of every assistant reply, oldest first.
func (p *TranscriptPane) HarmonyTrend() []float64 {
	var out []float64
	for _, el := range p.transcript.Elements() {
		if el.Kind == render.KindAssistant && el.Entry.Harmony != nil {
			out = append(out, *el.Entry.Harmony)
		}
	}
	return out
}
