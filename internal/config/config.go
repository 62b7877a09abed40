package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultServerURL    = "http://127.0.0.1:8000"
	DefaultPollInterval = 2000
	MinPollInterval     = 250
)

type Config struct {
	ServerURL      string `json:"server_url"`
	DisplayName    string `json:"display_name,omitempty"`
	PollIntervalMS int    `json:"poll_interval_ms"`
	RequestTimeout int    `json:"request_timeout_seconds,omitempty"` // 0 = no timeout
	ExportDir      string `json:"export_dir,omitempty"`
	LogFile        string `json:"log_file,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		ServerURL:      DefaultServerURL,
		PollIntervalMS: DefaultPollInterval,
	}
}

// PollInterval is the sync cadence, never faster than MinPollInterval.
func (c Config) PollInterval() time.Duration {
	ms := c.PollIntervalMS
	if ms <= 0 {
		ms = DefaultPollInterval
	}
	if ms < MinPollInterval {
		ms = MinPollInterval
	}
	return time.Duration(ms) * time.Millisecond
}

func (c Config) Timeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(StateDir(), "tbchat.log")
}

func (c Config) ExportPath() string {
	if c.ExportDir != "" {
		return c.ExportDir
	}
	return "."
}

func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tastebuddy")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tastebuddy")
}

func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "tastebuddy")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "tastebuddy")
}

// Path is the config file location.
func Path() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// LoadFile reads the config file only, without env overrides.
func LoadFile() Config {
	cfg := DefaultConfig()
	data, err := os.ReadFile(Path())
	if err != nil {
		return cfg
	}
	_ = json.Unmarshal(data, &cfg) // ignore errors; fall back to defaults
	return cfg
}

// Load reads .env from the working directory if present, then the config
// file, then applies TASTEBUDDY_* environment overrides.
func Load() Config {
	_ = godotenv.Load() // a missing .env is fine
	cfg := LoadFile()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TASTEBUDDY_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("TASTEBUDDY_NAME"); v != "" {
		c.DisplayName = v
	}
	if v := os.Getenv("TASTEBUDDY_POLL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.PollIntervalMS = ms
		}
	}
}

func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(Path(), data, 0o644)
}

// Keys lists the names accepted by Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(*Config, string) error{
	"server_url": func(c *Config, v string) error {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			return fmt.Errorf("server_url must start with http:// or https://")
		}
		c.ServerURL = v
		return nil
	},
	"display_name": func(c *Config, v string) error {
		c.DisplayName = strings.TrimSpace(v)
		return nil
	},
	"poll_interval_ms": func(c *Config, v string) error {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("poll_interval_ms: %w", err)
		}
		c.PollIntervalMS = ms
		return nil
	},
	"request_timeout_seconds": func(c *Config, v string) error {
		s, err := strconv.Atoi(v)
		if err != nil || s < 0 {
			return fmt.Errorf("request_timeout_seconds must be a non-negative integer")
		}
		c.RequestTimeout = s
		return nil
	},
	"export_dir": func(c *Config, v string) error {
		c.ExportDir = filepath.Clean(v)
		return nil
	},
	"log_file": func(c *Config, v string) error {
		c.LogFile = filepath.Clean(v)
		return nil
	},
}

// Set assigns one field by its JSON key.
func (c *Config) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	return set(c, value)
}
