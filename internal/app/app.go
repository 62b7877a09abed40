package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/thinkwright/tastebuddy-chat/internal/chat"
	"github.com/thinkwright/tastebuddy-chat/internal/compose"
	"github.com/thinkwright/tastebuddy-chat/internal/config"
	"github.com/thinkwright/tastebuddy-chat/internal/poller"
	"github.com/thinkwright/tastebuddy-chat/internal/render"
	"github.com/thinkwright/tastebuddy-chat/internal/transport"
)

const ResetNotice = "Memory reset — the conversation starts fresh."

// Backend is the remote chat service. *transport.Client implements it.
type Backend interface {
	poller.HistorySource
	compose.Sender
	Join(ctx context.Context, name string) error
	ResetMemory(ctx context.Context) error
	Export(ctx context.Context, venues []chat.Venue) ([]byte, error)
}

// Identity is the durable per-user store. *identity.Store implements it.
type Identity interface {
	ParticipantID() (string, error)
	ColorFor(name string) (lipgloss.Color, error)
}

// App is the state of one client session: the transcript and its
// renderer, the sync loop and the compose controller.
type App struct {
	backend  Backend
	ids      Identity
	logger   *slog.Logger
	now      func() time.Time
	exportTo string

	transcript *render.Transcript
	renderer   *render.Renderer
	loop       *poller.Loop
	composer   *compose.Controller

	onSync func(poller.Result)

	// pinned is set when the name came from a flag; config reloads keep it.
	pinned bool

	mu   sync.RWMutex
	name string
}

type Option func(*App)

// WithSyncHandler is called after every sync that applied a history
// response.
func WithSyncHandler(fn func(poller.Result)) Option {
	return func(a *App) { a.onSync = fn }
}

// WithPinnedName keeps the starting display name across config reloads.
func WithPinnedName() Option {
	return func(a *App) { a.pinned = true }
}

func New(cfg config.Config, ids Identity, backend Backend, logger *slog.Logger, opts ...Option) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		backend:  backend,
		ids:      ids,
		logger:   logger,
		now:      time.Now,
		exportTo: cfg.ExportPath(),
		name:     strings.TrimSpace(cfg.DisplayName),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.transcript = render.NewTranscript()
	a.renderer = render.NewRenderer(a.transcript, ids, logger)
	a.loop = poller.New(backend, a.renderer,
		poller.WithInterval(cfg.PollInterval()),
		poller.WithLogger(logger),
		poller.WithErrorHandler(a.pollFailed),
		poller.WithTickHandler(a.synced),
	)
	a.composer = compose.New(backend, a.renderer, a, logger)
	return a
}

func (a *App) Transcript() *render.Transcript { return a.transcript }
func (a *App) Renderer() *render.Renderer     { return a.renderer }
func (a *App) Loop() *poller.Loop             { return a.loop }

func (a *App) ParticipantID() (string, error) {
	return a.ids.ParticipantID()
}

// DisplayName is the configured name, or Guest when none is set.
func (a *App) DisplayName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.name == "" {
		return chat.GuestName
	}
	return a.name
}

// SetDisplayName changes the name used by later submits. It reports
// whether the name actually changed.
func (a *App) SetDisplayName(name string) bool {
	name = strings.TrimSpace(name)
	a.mu.Lock()
	defer a.mu.Unlock()
	if name == a.name {
		return false
	}
	a.logger.Info("display name changed", "from", a.name, "to", name)
	a.name = name
	return true
}

// ApplyConfig takes the display name from a reloaded config unless the
// name is pinned. It reports whether the name changed.
func (a *App) ApplyConfig(cfg config.Config) bool {
	if a.pinned {
		return false
	}
	return a.SetDisplayName(cfg.DisplayName)
}

// Submit sends text through the compose controller.
func (a *App) Submit(ctx context.Context, text string) error {
	return a.composer.Submit(ctx, text)
}

// Join announces this participant. Failures are logged and otherwise ignored.
func (a *App) Join(ctx context.Context) {
	name := a.DisplayName()
	if err := a.backend.Join(ctx, name); err != nil {
		a.logger.Warn("join announcement failed", "name", name, "error", err)
		return
	}
	a.logger.Info("joined chat", "name", name)
}

// Reset clears the shared memory on the server and then the local view.
// On success the transcript holds exactly one notice.
func (a *App) Reset(ctx context.Context) error {
	if err := a.backend.ResetMemory(ctx); err != nil {
		a.logger.Warn("reset memory failed", "error", err)
		a.renderer.Notice("Reset failed: " + transport.Describe(err))
		return err
	}
	a.loop.Reset()
	a.renderer.Notice(ResetNotice)
	a.logger.Info("memory reset")
	return nil
}

// Export renders the most recent recommendation set to a PDF file under
// the export directory and returns its path.
func (a *App) Export(ctx context.Context) (string, error) {
	venues := a.renderer.LastRecommendations()
	if len(venues) == 0 {
		return "", &transport.PreconditionError{Op: "export", Reason: "no recommendations to export yet"}
	}

	blob, err := a.backend.Export(ctx, venues)
	if err != nil {
		a.logger.Warn("export failed", "venues", len(venues), "error", err)
		return "", err
	}

	if err := os.MkdirAll(a.exportTo, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(a.exportTo, "tastebuddy-"+a.now().Format("20060102-150405")+".pdf")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	a.logger.Info("exported recommendations", "path", path, "venues", len(venues), "bytes", len(blob))
	return path, nil
}

func (a *App) synced(res poller.Result) {
	if res.Painted > 0 || res.Reset {
		a.logger.Debug("synced", "log_len", res.Fetched, "painted", res.Painted, "reset", res.Reset)
	}
	if a.onSync != nil {
		a.onSync(res)
	}
}

// pollFailed shows a notice when polling goes from healthy to failing.
// Later failures in the same run are only logged by the loop.
func (a *App) pollFailed(err error, consecutive int) {
	if consecutive == 1 {
		a.renderer.Notice("Can't reach the chat server: " + transport.Describe(err))
	}
}
