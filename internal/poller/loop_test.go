package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/thinkwright/tastebuddy-chat/internal/chat"
	"github.com/thinkwright/tastebuddy-chat/internal/render"
)

// fakeSource serves whatever log is currently set. When gate is non-nil
// each fetch blocks until a value is received from it.
type fakeSource struct {
	mu    sync.Mutex
	log   []chat.LogEntry
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeSource) FetchHistory(ctx context.Context) ([]chat.LogEntry, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]chat.LogEntry(nil), f.log...), nil
}

func (f *fakeSource) set(log []chat.LogEntry, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = log
	f.err = err
}

func idLog(n int) []chat.LogEntry {
	out := make([]chat.LogEntry, n)
	for i := range out {
		out[i] = chat.LogEntry{
			ID:     fmt.Sprint(i),
			HasID:  true,
			Sender: chat.ParticipantSender("Kelly"),
			Text:   fmt.Sprintf("message %d", i),
		}
	}
	return out
}

type noColors struct{}

func (noColors) ColorFor(string) (lipgloss.Color, error) { return "#000000", nil }

func newTestLoop(t *testing.T, src *fakeSource, opts ...Option) (*Loop, *render.Renderer) {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := render.NewRenderer(render.NewTranscript(), noColors{}, quiet)
	opts = append([]Option{WithLogger(quiet)}, opts...)
	return New(src, r, opts...), r
}

func TestTick_PaintsNewEntriesOnce(t *testing.T) {
	src := &fakeSource{}
	src.set(idLog(3), nil)
	l, r := newTestLoop(t, src)
	ctx := context.Background()

	res, err := l.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Painted != 3 || l.Cursor() != 3 {
		t.Errorf("painted %d cursor %d, want 3 3", res.Painted, l.Cursor())
	}

	// Unchanged log: nothing new
	res, _ = l.Tick(ctx)
	if res.Painted != 0 {
		t.Errorf("second tick painted %d, want 0", res.Painted)
	}

	src.set(idLog(5), nil)
	res, _ = l.Tick(ctx)
	if res.Painted != 2 || l.Cursor() != 5 {
		t.Errorf("after growth painted %d cursor %d, want 2 5", res.Painted, l.Cursor())
	}
	if r.Transcript().Len() != 5 {
		t.Errorf("transcript len = %d, want 5", r.Transcript().Len())
	}
}

func TestTick_ShrinkingLogRepaints(t *testing.T) {
	src := &fakeSource{}
	src.set(idLog(4), nil)
	l, r := newTestLoop(t, src)
	ctx := context.Background()
	l.Tick(ctx)
	r.Notice("local only")

	// Another client reset the shared memory; ids restart at 0
	fresh := []chat.LogEntry{{ID: "0", HasID: true, Sender: chat.ParseSender("system"), Text: "Ann joined the chat"}}
	src.set(fresh, nil)

	res, err := l.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !res.Reset {
		t.Error("expected Reset on a shorter log")
	}
	if l.Cursor() != 1 {
		t.Errorf("cursor = %d, want 1", l.Cursor())
	}
	els := r.Transcript().Elements()
	if len(els) != 1 || els[0].Entry.Text != "Ann joined the chat" {
		t.Errorf("after shrink transcript = %+v", els)
	}
}

func TestTick_ErrorKeepsCursor(t *testing.T) {
	src := &fakeSource{}
	src.set(idLog(2), nil)

	var mu sync.Mutex
	var seen []int
	l, r := newTestLoop(t, src, WithErrorHandler(func(err error, n int) {
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
	}))
	ctx := context.Background()
	l.Tick(ctx)

	boom := errors.New("connection refused")
	src.set(nil, boom)
	for range 3 {
		if _, err := l.Tick(ctx); !errors.Is(err, boom) {
			t.Fatalf("Tick err = %v, want %v", err, boom)
		}
	}
	if l.Cursor() != 2 || r.Transcript().Len() != 2 {
		t.Errorf("failure changed state: cursor %d len %d", l.Cursor(), r.Transcript().Len())
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("consecutive counts = %v, want [1 2 3]", seen)
	}

	// Recovery resets the count
	src.set(idLog(3), nil)
	l.Tick(ctx)
	src.set(nil, boom)
	l.Tick(ctx)
	if seen[len(seen)-1] != 1 {
		t.Errorf("count after recovery = %d, want 1", seen[len(seen)-1])
	}
}

func TestTick_SkipsWhileInFlight(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	src.set(idLog(1), nil)
	l, _ := newTestLoop(t, src)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := l.Tick(ctx)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !l.InFlight() {
		if time.Now().After(deadline) {
			t.Fatal("first tick never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := l.Tick(ctx); !errors.Is(err, ErrSkipped) {
		t.Errorf("overlapping Tick err = %v, want ErrSkipped", err)
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}

	src.gate <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if l.InFlight() {
		t.Error("in-flight flag should clear after the fetch")
	}
}

func TestReset_DiscardsInFlightFetch(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	src.set(idLog(4), nil)
	l, r := newTestLoop(t, src)

	done := make(chan Result, 1)
	go func() {
		res, _ := l.Tick(context.Background())
		done <- res
	}()
	for !l.InFlight() {
		time.Sleep(time.Millisecond)
	}

	l.Reset()
	src.gate <- struct{}{}
	res := <-done

	if !res.Stale {
		t.Error("response that started before Reset should be stale")
	}
	if r.Transcript().Len() != 0 || l.Cursor() != 0 {
		t.Errorf("stale fetch painted: len %d cursor %d", r.Transcript().Len(), l.Cursor())
	}
}

func TestReset_ZeroesCursor(t *testing.T) {
	src := &fakeSource{}
	src.set(idLog(3), nil)
	l, r := newTestLoop(t, src)
	l.Tick(context.Background())

	l.Reset()
	if l.Cursor() != 0 || r.Transcript().Len() != 0 {
		t.Errorf("after Reset cursor %d len %d, want 0 0", l.Cursor(), r.Transcript().Len())
	}

	src.set(nil, nil)
	res, _ := l.Tick(context.Background())
	if res.Painted != 0 || res.Reset {
		t.Errorf("empty log after reset = %+v", res)
	}
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{}
	src.set(idLog(2), nil)

	ticks := make(chan Result, 16)
	l, r := newTestLoop(t, src,
		WithInterval(10*time.Millisecond),
		WithTickHandler(func(res Result) {
			select {
			case ticks <- res:
			default:
			}
		}),
	)

	l.Start(context.Background())
	l.Start(context.Background()) // second Start is a no-op
	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick within 2s")
	}
	src.set(idLog(3), nil)

	deadline := time.Now().Add(2 * time.Second)
	for r.Transcript().Len() != 3 {
		if time.Now().After(deadline) {
			t.Fatalf("transcript len = %d, want 3", r.Transcript().Len())
		}
		time.Sleep(5 * time.Millisecond)
	}

	l.Stop()
	l.Stop()
	calls := src.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if src.calls.Load() != calls {
		t.Error("fetches continued after Stop")
	}
}

func TestNew_Defaults(t *testing.T) {
	l := New(&fakeSource{}, nil, WithInterval(0), WithLogger(nil))
	if l.Interval() != DefaultInterval {
		t.Errorf("interval = %v, want %v", l.Interval(), DefaultInterval)
	}
	if l.logger == nil {
		t.Error("logger should default to slog.Default")
	}
}
