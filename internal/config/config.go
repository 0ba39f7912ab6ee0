// Package config loads dockyard's user configuration from TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the TOML config file inside the dockyard directory.
const FileName = "config.toml"

// Config represents user-facing configuration in TOML format
type Config struct {
	// Layout defines panel layout persistence settings
	Layout LayoutSettings `toml:"layout"`

	// Watch defines the live worktree change watcher
	Watch WatchSettings `toml:"watch"`

	// Storage defines where per-session state is persisted
	Storage StorageSettings `toml:"storage"`

	// Logs defines debug log settings
	Logs LogSettings `toml:"logs"`

	// Git defines base-branch resolution
	Git GitSettings `toml:"git"`

	// API defines the optional local shell API
	API APISettings `toml:"api"`

	// Sessions lists the worktrees the workspace can switch between
	Sessions []SessionDef `toml:"sessions"`
}

// LayoutSettings defines panel layout persistence
type LayoutSettings struct {
	// DebounceMS delays layout writes after the last mutation (default: 500)
	DebounceMS int `toml:"debounce_ms"`
}

// WatchSettings defines the live change watcher
type WatchSettings struct {
	// IntervalMS is the poll interval for worktree status (default: 2000)
	IntervalMS int `toml:"interval_ms"`

	// MaxRefreshPerSec caps filesystem-triggered refreshes (default: 4)
	MaxRefreshPerSec int `toml:"max_refresh_per_sec"`
}

// StorageSettings defines the state database
type StorageSettings struct {
	// DBPath is the SQLite file (default: ~/.dockyard/state.db)
	DBPath string `toml:"db_path"`
}

// LogSettings defines log file management
type LogSettings struct {
	Dir        string `toml:"dir"`
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// GitSettings defines base-branch resolution
type GitSettings struct {
	// DefaultBase is tried before origin/main, origin/master, main, master
	DefaultBase string `toml:"default_base"`
}

// APISettings defines the local shell API
type APISettings struct {
	// Listen is a host:port to serve on; empty disables the API
	Listen string `toml:"listen"`
}

// SessionDef describes one agent session's worktree
type SessionDef struct {
	ID         string `toml:"id"`
	Title      string `toml:"title"`
	Path       string `toml:"path"`
	Branch     string `toml:"branch"`
	BaseBranch string `toml:"base_branch"`
}

// LayoutDebounce returns the layout write debounce as a duration.
func (c *Config) LayoutDebounce() time.Duration {
	return time.Duration(c.Layout.DebounceMS) * time.Millisecond
}

// WatchInterval returns the watcher poll interval as a duration.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Watch.IntervalMS) * time.Millisecond
}

// applyDefaults fills zero values.
func (c *Config) applyDefaults(dir string) {
	if c.Layout.DebounceMS <= 0 {
		c.Layout.DebounceMS = 500
	}
	if c.Watch.IntervalMS <= 0 {
		c.Watch.IntervalMS = 2000
	}
	if c.Watch.MaxRefreshPerSec <= 0 {
		c.Watch.MaxRefreshPerSec = 4
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = filepath.Join(dir, "state.db")
	}
	c.Storage.DBPath = expandTilde(c.Storage.DBPath)
	c.Logs.Dir = expandTilde(c.Logs.Dir)
	for i := range c.Sessions {
		c.Sessions[i].Path = expandTilde(c.Sessions[i].Path)
		if c.Sessions[i].ID == "" {
			c.Sessions[i].ID = filepath.Base(c.Sessions[i].Path)
		}
		if c.Sessions[i].Title == "" {
			c.Sessions[i].Title = c.Sessions[i].ID
		}
	}
}

// Validate checks session definitions for duplicates and missing paths.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, s := range c.Sessions {
		if s.Path == "" {
			return fmt.Errorf("session %q has empty path", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate session id: %s", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Dir returns the dockyard directory (~/.dockyard, or DOCKYARD_HOME).
func Dir() (string, error) {
	if env := os.Getenv("DOCKYARD_HOME"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".dockyard"), nil
}

// Path returns the path to the user config file
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Cache for config (loaded once per process)
var (
	cache   *Config
	cacheMu sync.RWMutex
)

// Load loads the configuration from the default path.
// Returns cached config after first load; a missing file yields defaults.
func Load() (*Config, error) {
	cacheMu.RLock()
	if cache != nil {
		defer cacheMu.RUnlock()
		return cache, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()

	// Double-check after acquiring write lock
	if cache != nil {
		return cache, nil
	}

	path, err := Path()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cache = cfg
	return cache, nil
}

// LoadFile decodes a specific TOML file. A missing file yields defaults.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// expandTilde expands a leading ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
