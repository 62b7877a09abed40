package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thinkwright/tastebuddy-chat/internal/chat"
)

const DefaultInterval = 2 * time.Second

// ErrSkipped is returned by Tick when the previous fetch is still running.
var ErrSkipped = errors.New("poller: fetch already in flight")

type HistorySource interface {
	FetchHistory(ctx context.Context) ([]chat.LogEntry, error)
}

// Painter materializes entries. Paint reports false for an entry whose
// element already exists.
type Painter interface {
	Paint(entry chat.LogEntry, pos int) (string, bool)
	Reset()
}

type Result struct {
	Fetched int  // log length seen by this tick
	Painted int  // elements added
	Reset   bool // log shrank and was repainted from zero
	Stale   bool // a reset happened mid-fetch; the response was dropped
}

// Loop keeps a painter in step with the shared log.
type Loop struct {
	source   HistorySource
	painter  Painter
	interval time.Duration
	logger   *slog.Logger
	onError  func(err error, consecutive int)
	onTick   func(Result)

	inFlight atomic.Bool

	mu       sync.Mutex
	cursor   Cursor
	gen      uint64
	failures int

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Loop)

func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithErrorHandler is called after every failed fetch with the number of
// failures in a row, so callers can notify only on the first.
func WithErrorHandler(fn func(err error, consecutive int)) Option {
	return func(l *Loop) { l.onError = fn }
}

// WithTickHandler is called after every tick that applied a response.
func WithTickHandler(fn func(Result)) Option {
	return func(l *Loop) { l.onTick = fn }
}

func New(source HistorySource, painter Painter, opts ...Option) *Loop {
	l := &Loop{
		source:   source,
		painter:  painter,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Cursor returns the number of log entries rendered so far.
func (l *Loop) Cursor() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor.Pos()
}

// InFlight reports whether a fetch is currently running.
func (l *Loop) InFlight() bool {
	return l.inFlight.Load()
}

// Tick runs one fetch/diff/paint cycle. It never overlaps itself: a call
// made while another is fetching returns ErrSkipped immediately.
func (l *Loop) Tick(ctx context.Context) (Result, error) {
	if !l.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrSkipped
	}
	defer l.inFlight.Store(false)

	l.mu.Lock()
	gen := l.gen
	l.mu.Unlock()

	entries, err := l.source.FetchHistory(ctx)
	if err != nil {
		l.mu.Lock()
		l.failures++
		n := l.failures
		l.mu.Unlock()

		l.logger.Warn("history fetch failed", "error", err, "consecutive", n)
		if l.onError != nil {
			l.onError(err, n)
		}
		return Result{}, err
	}

	res := l.apply(gen, entries)
	if l.onTick != nil && !res.Stale {
		l.onTick(res)
	}
	return res, nil
}

func (l *Loop) apply(gen uint64, entries []chat.LogEntry) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failures > 0 {
		l.logger.Info("history polling recovered", "after_failures", l.failures)
		l.failures = 0
	}

	res := Result{Fetched: len(entries)}
	if gen != l.gen {
		res.Stale = true
		return res
	}

	fresh, reset := l.cursor.Diff(entries)
	if reset {
		l.logger.Info("shared log shrank, repainting", "cursor", l.cursor.Pos(), "log_len", len(entries))
		l.painter.Reset()
		res.Reset = true
	}

	start := l.cursor.Pos()
	for i, e := range fresh {
		if _, ok := l.painter.Paint(e, start+i); ok {
			res.Painted++
		}
	}
	l.cursor.Advance(len(entries))
	return res
}

// Reset zeroes the cursor and clears the painter. A fetch already in
// flight is discarded when it returns.
func (l *Loop) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursor.Reset()
	l.gen++
	l.painter.Reset()
}

// Start polls on the loop's interval until ctx ends or Stop is called.
// A tick that fires while a fetch is running is skipped, not queued.
func (l *Loop) Start(ctx context.Context) {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		l.spawn(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if l.inFlight.Load() {
					continue
				}
				l.spawn(ctx)
			}
		}
	}()
}

func (l *Loop) spawn(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.Tick(ctx)
	}()
}

// Stop cancels the polling goroutine and waits for any running tick.
func (l *Loop) Stop() {
	l.runMu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	l.wg.Wait()
}
