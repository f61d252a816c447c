package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the top-level pipeline configuration. There are no
// package-level mutable globals; a loaded Config is passed into the
// pipeline constructor explicitly.
type Config struct {
	// Listen is the HTTP listen address for the read-only API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone all event date/time strings are
	// formatted in (e.g. "America/New_York").
	Timezone string `yaml:"timezone" json:"timezone"`

	// Refresh is a cron-style schedule for pipeline runs in daemon mode.
	Refresh string `yaml:"refresh" json:"refresh"`

	// WindowDays bounds recurrence expansion: occurrences are ingested
	// within [now, now+WindowDays]. The read API takes an explicit date
	// range, so display horizons are independent of this value.
	WindowDays int `yaml:"window_days" json:"window_days"`

	// MinFetchInterval is the minimum spacing between fetches of the
	// same feed. Within this window the cached document is reused
	// without an HTTP request.
	MinFetchInterval time.Duration `yaml:"min_fetch_interval" json:"min_fetch_interval"`

	// FetchTimeout bounds a single feed fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`

	// ScrapeTimeout bounds a single metadata-page fetch.
	ScrapeTimeout time.Duration `yaml:"scrape_timeout" json:"scrape_timeout"`

	// Parallelism bounds concurrent per-group work.
	Parallelism int `yaml:"parallelism" json:"parallelism"`

	// OnlyStates, when non-empty, restricts ingestion to events whose
	// resolved state is in the list. Events with an unresolved state
	// are always kept.
	OnlyStates []string `yaml:"only_states" json:"only_states"`

	// CacheDir is the base directory for per-group feed caches.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Database selects the event store: a "postgres://" DSN, or a
	// SQLite file path.
	Database string `yaml:"database" json:"database"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           "127.0.0.1:8080",
		Timezone:         "America/New_York",
		Refresh:          "0 */4 * * *",
		WindowDays:       60,
		MinFetchInterval: 4 * time.Hour,
		FetchTimeout:     20 * time.Second,
		ScrapeTimeout:    10 * time.Second,
		Parallelism:      8,
		OnlyStates:       []string{},
		CacheDir:         "./var/feed-cache",
		Database:         "./var/techcal.db",
		LogLevel:         "info",
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.Refresh == "" {
		c.Refresh = def.Refresh
	}
	if c.WindowDays <= 0 {
		c.WindowDays = def.WindowDays
	}
	if c.MinFetchInterval <= 0 {
		c.MinFetchInterval = def.MinFetchInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	if c.ScrapeTimeout <= 0 {
		c.ScrapeTimeout = def.ScrapeTimeout
	}
	if c.Parallelism <= 0 {
		c.Parallelism = def.Parallelism
	}
	if c.OnlyStates == nil {
		c.OnlyStates = []string{}
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.Database == "" {
		c.Database = def.Database
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Location resolves the configured timezone. A bad zone name is a fatal
// configuration error.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there
//     (0600) and returned.
//   - Otherwise the file is unmarshaled and normalized.
//   - Environment variables override file values afterwards.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.applyEnv()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename, 0600 perms).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".techcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// LoadEnv loads environment variables from local .env files, if any.
func LoadEnv(logger *logrus.Logger) {
	for _, file := range []string{".env", ".env.dev"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil && logger != nil {
			logger.WithError(err).Warnf("Failed to load %s", file)
		}
	}
}

// applyEnv overrides file-sourced values from the process environment.
func (c *Config) applyEnv() {
	c.Listen = getEnv("TECHCAL_LISTEN", c.Listen)
	c.Timezone = getEnv("TECHCAL_TIMEZONE", c.Timezone)
	c.Database = getEnv("TECHCAL_DATABASE", c.Database)
	c.CacheDir = getEnv("TECHCAL_CACHE_DIR", c.CacheDir)
	c.LogLevel = getEnv("TECHCAL_LOG_LEVEL", c.LogLevel)
	c.WindowDays = getEnvInt("TECHCAL_WINDOW_DAYS", c.WindowDays)
	c.Parallelism = getEnvInt("TECHCAL_PARALLELISM", c.Parallelism)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
