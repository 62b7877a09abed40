package poller

import "github.com/thinkwright/tastebuddy-chat/internal/chat"

// Cursor counts how many log entries have already been rendered.
type Cursor struct {
	n int
}

func (c *Cursor) Pos() int {
	return c.n
}

// Diff returns the entries past the cursor. When the log is shorter than
// the cursor it clamps the cursor to zero and returns the whole log with
// reset set, so the caller repaints from scratch.
func (c *Cursor) Diff(log []chat.LogEntry) (fresh []chat.LogEntry, reset bool) {
	if len(log) < c.n {
		c.n = 0
		return log, true
	}
	return log[c.n:], false
}

func (c *Cursor) Advance(n int) {
	if n > c.n {
		c.n = n
	}
}

func (c *Cursor) Reset() {
	c.n = 0
}
