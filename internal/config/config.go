// Package config loads tle-fetcher settings from a TOML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Paths contains directory and database locations.
type Paths struct {
	StateDir string `toml:"state_dir"`
	TLEDir   string `toml:"tle_dir"`
	DBPath   string `toml:"db_path"`
}

// Fetch tunes lookup behavior.
type Fetch struct {
	CacheTTLSeconds int     `toml:"cache_ttl_seconds"`
	SourceOrder     string  `toml:"source_order"`
	VerifyPercent   float64 `toml:"verify_percent"`
	Offline         bool    `toml:"offline"`
}

// Server contains the HTTP serve-mode settings.
type Server struct {
	Bind      string `toml:"bind"`
	AuthToken string `toml:"auth_token"`
}

// Logging contains log output settings.
type Logging struct {
	Level string `toml:"level"`
}

// Config encapsulates all tle-fetcher settings.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Fetch   Fetch   `toml:"fetch"`
	Server  Server  `toml:"server"`
	Logging Logging `toml:"logging"`
}

const (
	defaultStateDir = "~/.local/share/tle-fetcher"
	defaultCacheTTL = 6 * 3600
	defaultBind     = "127.0.0.1:8090"
	defaultLogLevel = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Fetch: Fetch{
			CacheTTLSeconds: defaultCacheTTL,
		},
		Server: Server{
			Bind: defaultBind,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}

// Load reads the configuration at path (or the default location when
// path is empty), applies environment overrides, and normalizes paths.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		expanded, err := expandPath("~/.config/tle-fetcher/config.toml")
		if err != nil {
			return "", false, err
		}
		path = expanded
	} else {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		path = expanded
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return path, true, nil
}

// applyEnv overlays TLE_FETCHER_* environment variables on the loaded
// values.
func (c *Config) applyEnv() {
	if v := os.Getenv("TLE_FETCHER_STATE_DIR"); v != "" {
		c.Paths.StateDir = v
	}
	if v := os.Getenv("TLE_FETCHER_TLE_DIR"); v != "" {
		c.Paths.TLEDir = v
	}
	if v := os.Getenv("TLE_FETCHER_DB_PATH"); v != "" {
		c.Paths.DBPath = v
	}
	if v := os.Getenv("TLE_FETCHER_CACHE_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Fetch.CacheTTLSeconds = n
		}
	}
	if v := os.Getenv("TLE_FETCHER_SOURCE_ORDER"); v != "" {
		c.Fetch.SourceOrder = v
	}
	if v := os.Getenv("TLE_FETCHER_VERIFY_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Fetch.VerifyPercent = f
		}
	}
	if v := os.Getenv("TLE_FETCHER_OFFLINE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Fetch.Offline = b
		}
	}
	if v := os.Getenv("TLE_FETCHER_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := os.Getenv("TLE_FETCHER_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("TLE_FETCHER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// normalize expands home-relative paths and derives dependent defaults.
func (c *Config) normalize() error {
	stateDir, err := expandPath(c.Paths.StateDir)
	if err != nil {
		return err
	}
	c.Paths.StateDir = stateDir

	if c.Paths.TLEDir == "" {
		c.Paths.TLEDir = filepath.Join(stateDir, "tles")
	} else if c.Paths.TLEDir, err = expandPath(c.Paths.TLEDir); err != nil {
		return err
	}

	if c.Paths.DBPath == "" {
		c.Paths.DBPath = filepath.Join(stateDir, "tle-fetcher.db")
	} else if c.Paths.DBPath, err = expandPath(c.Paths.DBPath); err != nil {
		return err
	}

	if c.Fetch.CacheTTLSeconds < 0 {
		return fmt.Errorf("cache_ttl_seconds must not be negative, got %d", c.Fetch.CacheTTLSeconds)
	}
	if c.Fetch.VerifyPercent < 0 || c.Fetch.VerifyPercent > 100 {
		return fmt.Errorf("verify_percent must be within 0-100, got %g", c.Fetch.VerifyPercent)
	}
	return nil
}

// CacheTTL returns the lookup cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Fetch.CacheTTLSeconds) * time.Second
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
