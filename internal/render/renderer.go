package render

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/thinkwright/tastebuddy-chat/internal/chat"
)

// Placeholder stands in for absent venue fields.
const Placeholder = "n/a"

// fallbackColor is used when the color store can't be read.
var fallbackColor = lipgloss.Color("#2f5d73")

type ColorSource interface {
	ColorFor(name string) (lipgloss.Color, error)
}

// Renderer turns log entries into transcript elements, once per key.
type Renderer struct {
	transcript *Transcript
	colors     ColorSource
	logger     *slog.Logger

	mu       sync.Mutex
	lastRecs []chat.Venue
	notices  int
}

func NewRenderer(t *Transcript, colors ColorSource, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{transcript: t, colors: colors, logger: logger}
}

func (r *Renderer) Transcript() *Transcript {
	return r.transcript
}

// EntryKey tags an entry by server id when it has one, else by log position.
func EntryKey(e chat.LogEntry, pos int) string {
	if e.HasID {
		return "id:" + e.ID
	}
	return fmt.Sprintf("pos:%d", pos)
}

// Paint materializes entry and returns its element key. The bool is false
// when an element with that key was already present.
func (r *Renderer) Paint(entry chat.LogEntry, pos int) (string, bool) {
	key := EntryKey(entry, pos)
	if r.transcript.Has(key) {
		return key, false
	}

	el := Element{Key: key, Entry: entry}
	switch {
	case entry.IsAssistant():
		el.Kind = KindAssistant
	case entry.Sender.Kind == chat.System:
		el.Kind = KindSystem
	default:
		el.Kind = KindParticipant
		el.Color = r.colorFor(entry.Sender.Name)
	}

	if !r.transcript.Append(el) {
		return key, false
	}
	if el.Kind == KindAssistant && len(entry.Recommendations) > 0 {
		r.mu.Lock()
		r.lastRecs = append([]chat.Venue(nil), entry.Recommendations...)
		r.mu.Unlock()
	}
	return key, true
}

func (r *Renderer) colorFor(name string) lipgloss.Color {
	if r.colors == nil {
		return fallbackColor
	}
	c, err := r.colors.ColorFor(name)
	if err != nil {
		r.logger.Warn("color lookup failed", "name", name, "error", err)
		return fallbackColor
	}
	return c
}

// Notice appends a local system-style message that isn't part of the shared log.
func (r *Renderer) Notice(text string) string {
	r.mu.Lock()
	r.notices++
	key := fmt.Sprintf("local:%d", r.notices)
	r.mu.Unlock()

	r.transcript.Append(Element{Key: key, Kind: KindNotice, Text: text})
	return key
}

// Reset clears every element and the cached recommendation set.
func (r *Renderer) Reset() {
	r.transcript.Clear()
	r.mu.Lock()
	r.lastRecs = nil
	r.mu.Unlock()
}

// LastRecommendations is the most recent non-empty venue list painted.
func (r *Renderer) LastRecommendations() []chat.Venue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Venue(nil), r.lastRecs...)
}

// ─── Element rendering ────────────────────────────────────────────────

func (el Element) Render(width int) string {
	if width < 20 {
		width = 20
	}
	switch el.Kind {
	case KindAssistant:
		return renderAssistant(el.Entry, width)
	case KindSystem:
		return SystemStyle.Render(wordwrap.String("· "+el.Entry.Text, width))
	case KindNotice:
		return NoticeStyle.Render(wordwrap.String("! "+el.Text, width))
	default:
		return renderParticipant(el.Entry, el.Color, width)
	}
}

func renderParticipant(e chat.LogEntry, bg lipgloss.Color, width int) string {
	inner := width - 2 // bubble padding
	name := BubbleNameStyle.Render(e.Sender.Name + ":")
	body := wordwrap.String(e.Sender.Name+": "+e.Text, inner)
	// Re-style the name prefix on the first line only
	body = name + strings.TrimPrefix(body, e.Sender.Name+":")
	return BubbleStyle.Background(bg).Render(body)
}

func renderAssistant(e chat.LogEntry, width int) string {
	var b strings.Builder

	b.WriteString(AssistantNameStyle.Render(e.Sender.Name))
	if e.Harmony != nil {
		b.WriteString("  ")
		b.WriteString(HarmonyBadge(*e.Harmony))
	}
	b.WriteString("\n")
	b.WriteString(AssistantTextStyle.Render(wordwrap.String(e.Text, width)))

	for _, v := range e.Recommendations {
		b.WriteString("\n")
		b.WriteString(VenueCard(v, width))
	}
	return b.String()
}

// HarmonyBadge renders the score with its mood color and indicator.
func HarmonyBadge(score float64) string {
	mood := chat.MoodFor(score)
	label := fmt.Sprintf("%s harmony %.2f %s", mood.Indicator(), score, mood)
	return badgeStyle.Background(MoodColor(mood)).Render(label)
}

// VenueCard lays out every venue field, using Placeholder for the absent ones.
func VenueCard(v chat.Venue, width int) string {
	inner := width - 4 // border + padding
	if inner < 10 {
		inner = 10
	}

	title := v.Title
	if title == "" {
		title = Placeholder
	}
	rating := Placeholder
	if v.Rating != nil {
		rating = fmt.Sprintf("%.1f", *v.Rating)
	}

	lines := []string{
		CardTitleStyle.Render(runewidth.Truncate(title, inner, "…")),
		CardFieldStyle.Render(runewidth.Truncate(
			fmt.Sprintf("★ %s  ·  %s  ·  %s", rating, orPlaceholder(v.Price), orPlaceholder(v.Type)),
			inner, "…")),
		CardFieldStyle.Render(wordwrap.String(orPlaceholder(v.Address), inner)),
	}
	return CardStyle.Render(strings.Join(lines, "\n"))
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

// VenuesText is a plain-text listing of venues, one per line.
func VenuesText(venues []chat.Venue) string {
	var b strings.Builder
	for i, v := range venues {
		rating := Placeholder
		if v.Rating != nil {
			rating = fmt.Sprintf("%.1f", *v.Rating)
		}
		fmt.Fprintf(&b, "%d. %s (%s, %s, %s) %s\n",
			i+1, orPlaceholder(v.Title), rating, orPlaceholder(v.Price), orPlaceholder(v.Type), orPlaceholder(v.Address))
	}
	return b.String()
}
