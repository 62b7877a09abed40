package identity

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	participantKey = "participant_id"
	colorKeyPrefix = "color:"
)

// Palette is the fixed set of participant bubble colors.
var Palette = []lipgloss.Color{
	lipgloss.Color("#2f5d73"),
	lipgloss.Color("#3a6648"),
	lipgloss.Color("#6a4a2a"),
	lipgloss.Color("#5a3a5a"),
	lipgloss.Color("#4a5a2a"),
	lipgloss.Color("#6a3a3a"),
	lipgloss.Color("#2a4a6a"),
	lipgloss.Color("#5a5030"),
}

// Store is the durable per-user key/value store shared by every tbchat process.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	colors map[string]lipgloss.Color
	pick   func(n int) int
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "tastebuddy")
	}
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "tastebuddy")
	}
	return filepath.Join(home, ".local", "share", "tastebuddy")
}

func DBPath() string {
	return filepath.Join(dataDir(), "identity.db")
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	// busy_timeout goes in the DSN so every pooled connection gets it
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(2000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// WAL lets several clients read while one assigns a color
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}

	s := &Store{
		db:     db,
		colors: make(map[string]lipgloss.Color),
		pick:   rand.IntN,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version == 0 {
		return s.createSchema()
	}
	return nil
}

func (s *Store) createSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT    PRIMARY KEY,
    value      TEXT    NOT NULL,
    created_at INTEGER NOT NULL
);

PRAGMA user_version = 1;
`
	_, err := s.db.Exec(schema)
	return err
}

// putIfAbsent writes value under key unless a binding already exists,
// and returns whichever value is stored afterwards.
func (s *Store) putIfAbsent(key, value string) (string, error) {
	_, err := s.db.Exec(
		"INSERT INTO kv (key, value, created_at) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING",
		key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	stored, ok, err := s.get(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("put %s: binding vanished", key)
	}
	return stored, nil
}

func (s *Store) get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// ParticipantID returns the identifier for this machine's user, creating it on first use.
func (s *Store) ParticipantID() (string, error) {
	if id, ok, err := s.get(participantKey); err != nil || ok {
		return id, err
	}
	return s.putIfAbsent(participantKey, uuid.NewString())
}

// ColorFor returns the bubble color bound to name. A new name gets a random
// palette color which is then fixed for the lifetime of the store.
func (s *Store) ColorFor(name string) (lipgloss.Color, error) {
	s.mu.RLock()
	c, ok := s.colors[name]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	key := colorKeyPrefix + name
	value, found, err := s.get(key)
	if err != nil {
		return "", err
	}
	if !found {
		candidate := Palette[s.pick(len(Palette))]
		value, err = s.putIfAbsent(key, string(candidate))
		if err != nil {
			return "", err
		}
	}

	c = lipgloss.Color(value)
	s.mu.Lock()
	s.colors[name] = c
	s.mu.Unlock()
	return c, nil
}

// Names lists every display name with a color binding.
func (s *Store) Names() ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM kv WHERE key LIKE ? ORDER BY created_at ASC", colorKeyPrefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			continue
		}
		names = append(names, strings.TrimPrefix(key, colorKeyPrefix))
	}
	return names, rows.Err()
}

// Forget drops the participant id and every color binding. Used by `tbchat forget`.
func (s *Store) Forget() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM kv"); err != nil {
		return err
	}
	s.colors = make(map[string]lipgloss.Color)
	return nil
}
