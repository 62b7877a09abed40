package watcher

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/thinkwright/tastebuddy-chat/internal/config"
)

const debounceDelay = 500 * time.Millisecond

// ConfigChangedMsg carries the config file contents after an edit.
type ConfigChangedMsg struct {
	Config config.Config
}

// Watcher reports edits to the config file. The parent directory is
// watched because editors and Save replace the file rather than write it
// in place.
type Watcher struct {
	w    *fsnotify.Watcher
	path string
}

func New(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{w: w, path: filepath.Clean(path)}, nil
}

func (cw *Watcher) Close() error {
	return cw.w.Close()
}

// Next blocks until the config file changes and settles, then returns a
// ConfigChangedMsg. Call it again after each message to keep watching.
// It returns nil once the watcher is closed.
func (cw *Watcher) Next() tea.Cmd {
	return func() tea.Msg {
		// Debounce: wait for changes to settle
		debounce := time.NewTimer(time.Hour)
		debounce.Stop()

		for {
			select {
			case ev, ok := <-cw.w.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) != cw.path {
					continue
				}
				debounce.Reset(debounceDelay)
			case <-debounce.C:
				return ConfigChangedMsg{Config: config.Load()}
			case _, ok := <-cw.w.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}
