package poller

import (
	"testing"

	"github.com/thinkwright/tastebuddy-chat/internal/chat"
)

func entries(n int) []chat.LogEntry {
	out := make([]chat.LogEntry, n)
	for i := range out {
		out[i] = chat.LogEntry{Sender: chat.ParticipantSender("Kelly"), Text: "hi"}
	}
	return out
}

func TestCursor_DiffAndAdvance(t *testing.T) {
	var c Cursor
	fresh, reset := c.Diff(entries(3))
	if reset || len(fresh) != 3 {
		t.Fatalf("Diff = %d entries reset=%v, want 3 false", len(fresh), reset)
	}
	c.Advance(3)

	fresh, reset = c.Diff(entries(5))
	if reset || len(fresh) != 2 {
		t.Errorf("Diff after growth = %d reset=%v, want 2 false", len(fresh), reset)
	}
	fresh, _ = c.Diff(entries(3))
	if len(fresh) != 0 {
		t.Errorf("Diff of same length = %d, want 0", len(fresh))
	}
}

func TestCursor_AdvanceNeverDecreases(t *testing.T) {
	var c Cursor
	c.Advance(4)
	c.Advance(2)
	if c.Pos() != 4 {
		t.Errorf("Pos = %d, want 4", c.Pos())
	}
}

func TestCursor_ShrinkResets(t *testing.T) {
	var c Cursor
	c.Advance(5)
	fresh, reset := c.Diff(entries(2))
	if !reset {
		t.Fatal("expected reset on shrink")
	}
	if len(fresh) != 2 {
		t.Errorf("fresh = %d, want whole log", len(fresh))
	}
	if c.Pos() != 0 {
		t.Errorf("Pos = %d, want 0", c.Pos())
	}
}
