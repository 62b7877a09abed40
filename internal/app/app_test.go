package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/thinkwright/tastebuddy-chat/internal/config"
	"github.com/thinkwright/tastebuddy-chat/internal/identity"
	"github.com/thinkwright/tastebuddy-chat/internal/render"
	"github.com/thinkwright/tastebuddy-chat/internal/transport"
)

// fakeBackend mimics the reference service: ids are list positions and
// reset empties the log.
type fakeBackend struct {
	mu      sync.Mutex
	log     []map[string]any
	exports atomic.Int32
	calls   atomic.Int32
	failAll bool
}

func (f *fakeBackend) push(sender, text string, harmony any, venues []map[string]any) {
	if venues == nil {
		venues = []map[string]any{}
	}
	f.log = append(f.log, map[string]any{
		"id":          len(f.log),
		"sender":      sender,
		"text":        text,
		"harmony":     harmony,
		"restaurants": venues,
	})
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if f.failAll {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"detail": "backend down"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/history":
		json.NewEncoder(w).Encode(f.log)
	case "/join":
		var body struct{ Name string }
		json.NewDecoder(r.Body).Decode(&body)
		f.push("system", body.Name+" joined the chat", nil, nil)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	case "/chat":
		var body struct {
			UserName string `json:"user_name"`
			Message  string `json:"message"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.push(body.UserName, body.Message, nil, nil)
		venues := []map[string]any{{"title": "Sushi Nakazawa", "rating": 4.7, "price": "$$$", "link": "https://example.com"}}
		f.push("TasteBuddy", "Here are some picks", 0.8, venues)
		json.NewEncoder(w).Encode(map[string]any{"reply": "Here are some picks", "harmony_score": 0.8, "restaurants": venues})
	case "/reset_memory":
		f.log = nil
		json.NewEncoder(w).Encode(map[string]string{"status": "memory reset"})
	case "/export_pdf":
		f.exports.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	default:
		http.NotFound(w, r)
	}
}

func newTestApp(t *testing.T, backend *fakeBackend) (*App, config.Config) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	ids, err := identity.Open(filepath.Join(t.TempDir(), "identity.db"))
	if err != nil {
		t.Fatalf("open identity: %v", err)
	}
	t.Cleanup(func() { ids.Close() })

	cfg := config.DefaultConfig()
	cfg.ServerURL = srv.URL
	cfg.DisplayName = "Kelly"
	cfg.ExportDir = t.TempDir()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, ids, transport.New(srv.URL), quiet), cfg
}

func kinds(tr *render.Transcript) []render.Kind {
	var out []render.Kind
	for _, el := range tr.Elements() {
		out = append(out, el.Kind)
	}
	return out
}

func TestHappyPath(t *testing.T) {
	backend := &fakeBackend{}
	a, _ := newTestApp(t, backend)
	ctx := context.Background()

	a.Join(ctx)
	if err := a.Submit(ctx, "sushi in midtown?"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// Nothing is painted until the next sync
	if a.Transcript().Len() != 0 {
		t.Fatalf("submit painted %d elements before sync", a.Transcript().Len())
	}

	for range 3 {
		if _, err := a.Loop().Tick(ctx); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}

	got := kinds(a.Transcript())
	want := []render.Kind{render.KindSystem, render.KindParticipant, render.KindAssistant}
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %v, want %v", i, got[i], want[i])
		}
	}
	if a.Loop().Cursor() != 3 {
		t.Errorf("cursor = %d, want 3", a.Loop().Cursor())
	}
	recs := a.Renderer().LastRecommendations()
	if len(recs) != 1 || recs[0].Title != "Sushi Nakazawa" {
		t.Errorf("last recommendations = %+v", recs)
	}
	if _, ok := recs[0].Extra["link"]; !ok {
		t.Error("unknown venue fields should be kept for export")
	}

	els := a.Transcript().Elements()
	kelly := els[1]
	if kelly.Entry.Sender.Name != "Kelly" || kelly.Entry.Text != "sushi in midtown?" {
		t.Errorf("participant bubble = %+v", kelly.Entry)
	}
	stored, _ := a.ids.ColorFor("Kelly")
	if kelly.Color != stored {
		t.Errorf("bubble color = %q, want stored color %q", kelly.Color, stored)
	}
	out := ansi.Strip(els[2].Render(80))
	for _, s := range []string{"harmony 0.80 calm", "Here are some picks", "Sushi Nakazawa", "4.7", "$$$"} {
		if !strings.Contains(out, s) {
			t.Errorf("assistant bubble missing %q:\n%s", s, out)
		}
	}
	if n := strings.Count(out, "Sushi Nakazawa"); n != 1 {
		t.Errorf("venue cards = %d, want 1", n)
	}
}

func TestReset(t *testing.T) {
	backend := &fakeBackend{}
	a, _ := newTestApp(t, backend)
	ctx := context.Background()

	a.Submit(ctx, "hi")
	a.Loop().Tick(ctx)
	if a.Transcript().Len() == 0 {
		t.Fatal("setup: nothing painted")
	}

	if err := a.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	els := a.Transcript().Elements()
	if len(els) != 1 || els[0].Kind != render.KindNotice || els[0].Text != ResetNotice {
		t.Fatalf("after reset transcript = %+v", els)
	}
	if a.Loop().Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", a.Loop().Cursor())
	}
	if len(a.Renderer().LastRecommendations()) != 0 {
		t.Error("reset should drop cached recommendations")
	}

	// Reference ids restart at 0; the new messages must still render
	a.Submit(ctx, "starting over")
	a.Loop().Tick(ctx)
	if n := a.Transcript().Count(render.KindParticipant); n != 1 {
		t.Errorf("participant bubbles after reset = %d, want 1", n)
	}
	if n := a.Transcript().Count(render.KindNotice); n != 1 {
		t.Errorf("notices = %d, want exactly 1", n)
	}
}

func TestReset_Failure(t *testing.T) {
	backend := &fakeBackend{failAll: true}
	a, _ := newTestApp(t, backend)

	err := a.Reset(context.Background())
	var se *transport.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want ServiceError", err)
	}
	els := a.Transcript().Elements()
	if len(els) != 1 || !strings.Contains(els[0].Text, "backend down") {
		t.Errorf("failure notice = %+v", els)
	}
}

func TestExport_NoRecommendations(t *testing.T) {
	backend := &fakeBackend{}
	a, _ := newTestApp(t, backend)

	_, err := a.Export(context.Background())
	if !transport.IsPrecondition(err) {
		t.Fatalf("err = %v, want PreconditionError", err)
	}
	if n := backend.calls.Load(); n != 0 {
		t.Errorf("backend calls = %d, want 0", n)
	}
}

func TestExport_WritesPDF(t *testing.T) {
	backend := &fakeBackend{}
	a, cfg := newTestApp(t, backend)
	a.now = func() time.Time { return time.Date(2026, 3, 14, 19, 30, 5, 0, time.UTC) }
	ctx := context.Background()

	a.Submit(ctx, "dinner?")
	a.Loop().Tick(ctx)

	path, err := a.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := filepath.Join(cfg.ExportDir, "tastebuddy-20260314-193005.pdf")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.HasPrefix(string(data), "%PDF") {
		t.Errorf("export file = %q, %v", data, err)
	}
	if backend.exports.Load() != 1 {
		t.Errorf("export calls = %d, want 1", backend.exports.Load())
	}
}

func TestPollFailure_SingleNotice(t *testing.T) {
	backend := &fakeBackend{failAll: true}
	a, _ := newTestApp(t, backend)
	ctx := context.Background()

	for range 4 {
		a.Loop().Tick(ctx)
	}
	if n := a.Transcript().Count(render.KindNotice); n != 1 {
		t.Errorf("notices after repeated failures = %d, want 1", n)
	}
}

func TestDisplayName(t *testing.T) {
	backend := &fakeBackend{}
	a, _ := newTestApp(t, backend)

	if a.DisplayName() != "Kelly" {
		t.Errorf("DisplayName = %q", a.DisplayName())
	}
	if a.SetDisplayName("Kelly") {
		t.Error("same name should report no change")
	}
	if !a.SetDisplayName("") {
		t.Error("clearing the name should report a change")
	}
	if a.DisplayName() != "Guest" {
		t.Errorf("empty name = %q, want Guest", a.DisplayName())
	}
}

func TestJoin_FailureIgnored(t *testing.T) {
	backend := &fakeBackend{failAll: true}
	a, _ := newTestApp(t, backend)

	a.Join(context.Background())
	if a.Transcript().Len() != 0 {
		t.Error("join failure should not be shown")
	}
}

func TestApplyConfig(t *testing.T) {
	backend := &fakeBackend{}
	a, cfg := newTestApp(t, backend)

	reloaded := cfg
	reloaded.DisplayName = "Ann"
	if !a.ApplyConfig(reloaded) || a.DisplayName() != "Ann" {
		t.Errorf("unpinned reload: name = %q, want Ann", a.DisplayName())
	}

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	pinned := New(cfg, a.ids, transport.New(srv.URL), nil, WithPinnedName())
	reloaded.DisplayName = ""
	if pinned.ApplyConfig(reloaded) {
		t.Error("pinned name should survive a reload")
	}
	if pinned.DisplayName() != "Kelly" {
		t.Errorf("pinned name = %q, want Kelly", pinned.DisplayName())
	}
}
