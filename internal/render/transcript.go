package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/thinkwright/tastebuddy-chat/internal/chat"
)

type Kind int

const (
	KindParticipant Kind = iota
	KindAssistant
	KindSystem
	KindNotice // local, not part of the shared log
)

// Element is one visible chat bubble.
type Element struct {
	Key   string
	Kind  Kind
	Entry chat.LogEntry
	Color lipgloss.Color // participant bubble background
	Text  string         // notice body
}

// Transcript is the ordered set of rendered elements, indexed by key.
// The poller writes to it while the UI reads it.
type Transcript struct {
	mu       sync.RWMutex
	elements []Element
	index    map[string]int
	version  uint64
}

func NewTranscript() *Transcript {
	return &Transcript{index: make(map[string]int)}
}

func (t *Transcript) Has(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.index[key]
	return ok
}

// Append adds el unless an element with the same key exists.
func (t *Transcript) Append(el Element) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[el.Key]; ok {
		return false
	}
	t.index[el.Key] = len(t.elements)
	t.elements = append(t.elements, el)
	t.version++
	return true
}

func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.elements = nil
	t.index = make(map[string]int)
	t.version++
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.elements)
}

// Version changes whenever the element list changes.
func (t *Transcript) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

func (t *Transcript) Elements() []Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Element, len(t.elements))
	copy(out, t.elements)
	return out
}

func (t *Transcript) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, len(t.elements))
	for i, el := range t.elements {
		keys[i] = el.Key
	}
	return keys
}

// Count returns how many elements of kind k are present.
func (t *Transcript) Count(k Kind) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, el := range t.elements {
		if el.Kind == k {
			n++
		}
	}
	return n
}

// Lines renders the transcript for a viewport of the given width.
func (t *Transcript) Lines(width int) []string {
	var lines []string
	for _, el := range t.Elements() {
		lines = append(lines, strings.Split(el.Render(width), "\n")...)
		lines = append(lines, "")
	}
	return lines
}
