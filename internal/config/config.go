// Package config builds the single configuration object the rest of the
// process receives by reference. Sources, in increasing priority: built-in
// defaults, an optional config.toml, environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/asheshgoplani/teledeck/internal/logging"
)

// Session modes. Resume keeps one Claude session per chat; stateless starts
// a fresh context on every message and needs no store.
const (
	ModeResume    = "resume"
	ModeStateless = "stateless"
)

// Store backends.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// DefaultInvokeTimeout is the wall-clock limit for one Claude invocation.
const DefaultInvokeTimeout = 300 * time.Second

// Config is the process configuration. Constructed once in main and passed
// down; no package holds ambient configuration state.
type Config struct {
	// TelegramToken is the bot API token. Env: TELEGRAM_BOT_TOKEN (required).
	TelegramToken string `toml:"-"`

	// AllowedUserIDs is the sender allow-list. Empty allows everyone.
	// Env: ALLOWED_USER_IDS (comma-separated).
	AllowedUserIDs []int64 `toml:"allowed_user_ids"`

	// ClaudeCommand is the claude CLI name or path. Env: CLAUDE_CMD.
	ClaudeCommand string `toml:"claude_cmd"`

	// WorkingDir is the directory Claude runs in. Env: CLAUDE_WORKING_DIR.
	// Defaults to the invoking user's home.
	WorkingDir string `toml:"working_dir"`

	// StateDir holds sessions.json / state.db and logs. Env: TELEDECK_STATE_DIR.
	// Defaults to ~/.teledeck.
	StateDir string `toml:"state_dir"`

	// SessionMode is "resume" (default) or "stateless".
	SessionMode string `toml:"session_mode"`

	// Store is "json" (default) or "sqlite".
	Store string `toml:"store"`

	// InvokeTimeoutSecs bounds one Claude invocation (default: 300).
	InvokeTimeoutSecs int `toml:"invoke_timeout_secs"`

	// Log configures the structured logger.
	Log logging.Config `toml:"log"`
}

// Load reads the optional TOML file at path (ignored when absent), applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.TelegramToken = v
	}
	if v, ok := os.LookupEnv("ALLOWED_USER_IDS"); ok {
		cfg.AllowedUserIDs = parseUserIDs(v)
	}
	if v := os.Getenv("CLAUDE_CMD"); v != "" {
		cfg.ClaudeCommand = v
	}
	if v := os.Getenv("CLAUDE_WORKING_DIR"); v != "" {
		cfg.WorkingDir = v
	}
	if v := os.Getenv("TELEDECK_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
}

func applyDefaults(cfg *Config) error {
	if cfg.ClaudeCommand == "" {
		cfg.ClaudeCommand = "claude"
	}
	if cfg.SessionMode == "" {
		cfg.SessionMode = ModeResume
	}
	if cfg.Store == "" {
		cfg.Store = StoreJSON
	}
	if cfg.InvokeTimeoutSecs <= 0 {
		cfg.InvokeTimeoutSecs = int(DefaultInvokeTimeout / time.Second)
	}
	if cfg.WorkingDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: resolve home directory: %w", err)
		}
		cfg.WorkingDir = home
	}
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: resolve home directory: %w", err)
		}
		cfg.StateDir = filepath.Join(home, ".teledeck")
	}
	if cfg.Log.LogDir == "" {
		cfg.Log.LogDir = cfg.StateDir
	}
	return nil
}

func (cfg *Config) validate() error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("config: TELEGRAM_BOT_TOKEN is required")
	}
	switch cfg.SessionMode {
	case ModeResume, ModeStateless:
	default:
		return fmt.Errorf("config: invalid session_mode %q (want %q or %q)",
			cfg.SessionMode, ModeResume, ModeStateless)
	}
	switch cfg.Store {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("config: invalid store %q (want %q or %q)",
			cfg.Store, StoreJSON, StoreSQLite)
	}
	return nil
}

// InvokeTimeout returns the invocation timeout as a duration.
func (cfg *Config) InvokeTimeout() time.Duration {
	return time.Duration(cfg.InvokeTimeoutSecs) * time.Second
}

// Allowed reports whether userID may talk to the bot. An empty allow-list
// permits everyone.
func (cfg *Config) Allowed(userID int64) bool {
	if len(cfg.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range cfg.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// parseUserIDs parses a comma-separated ID list, skipping blanks and junk.
func parseUserIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
