// Package config loads the bm configuration file. The file is JSON with
// comments and trailing commas allowed; durations use time.ParseDuration
// syntax ("720h", "5m").
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// GoogleFaviconService is the default fallback icon service.
const GoogleFaviconService = "https://www.google.com/s2/favicons?domain=%s&sz=64"

var (
	ErrInvalidConfig = errors.New("invalid config")
)

// Config holds application configuration.
type Config struct {
	DataDir        string `json:"dataDir"`
	Storage        string `json:"storage"` // "json", "sqlite" or "" to auto-detect
	QuickAddFolder string `json:"quickAddFolder"`
	UndoDepth      int    `json:"undoDepth"`
	Icons          Icons  `json:"icons"`
	Backup         Backup `json:"backup"`
	Log            Log    `json:"log"`
}

// Icons configures the icon cache, the fetch client and the refresh scheduler.
type Icons struct {
	MaxAge        time.Duration `json:"-"`
	ErrorCooldown time.Duration `json:"-"`
	FetchTimeout  time.Duration `json:"-"`

	CapacityBytes   int64   `json:"capacityBytes"`
	MaxIconBytes    int64   `json:"maxIconBytes"`
	Concurrency     int     `json:"concurrency"`
	FallbackService *string `json:"fallbackService,omitempty"` // "" disables
	UserAgent       string  `json:"userAgent,omitempty"`

	// Raw string values for JSON unmarshaling
	MaxAgeRaw        string `json:"maxAge"`
	ErrorCooldownRaw string `json:"errorCooldown"`
	FetchTimeoutRaw  string `json:"fetchTimeout"`
}

// Backup configures session snapshots.
type Backup struct {
	Retain      int           `json:"retain"`
	MinInterval time.Duration `json:"-"`

	MinIntervalRaw string `json:"minInterval"`
}

// Log configures the process logger.
type Log struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text or json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	fallback := GoogleFaviconService
	return Config{
		Storage:        "",
		QuickAddFolder: "Read Later",
		UndoDepth:      20,
		Icons: Icons{
			MaxAgeRaw:        "720h",
			ErrorCooldownRaw: "5m",
			FetchTimeoutRaw:  "10s",
			MaxAge:           720 * time.Hour,
			ErrorCooldown:    5 * time.Minute,
			FetchTimeout:     10 * time.Second,
			CapacityBytes:    32 << 20,
			MaxIconBytes:     512 << 10,
			Concurrency:      6,
			FallbackService:  &fallback,
		},
		Backup: Backup{
			Retain:         10,
			MinIntervalRaw: "0s",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultDir returns ~/.config/bm, or $XDG_CONFIG_HOME/bm when set.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bm"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "bm"), nil
}

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads config from path.
// Creates the file with defaults if it doesn't exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := DefaultConfig()
			cfg.DataDir = filepath.Dir(path)
			// Non-fatal: return defaults even if save fails
			_ = Save(path, &cfg)
			return &cfg, nil
		}
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(path)
	}
	return cfg, nil
}

// Parse decodes a JSONC document and applies defaults for missing fields.
func Parse(data []byte) (*Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSONC: %w", ErrInvalidConfig, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	applyDefaults(&cfg)
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills zero-valued fields from DefaultConfig.
func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.QuickAddFolder == "" {
		cfg.QuickAddFolder = defaults.QuickAddFolder
	}
	if cfg.UndoDepth == 0 {
		cfg.UndoDepth = defaults.UndoDepth
	}

	icons := &cfg.Icons
	if icons.MaxAgeRaw == "" {
		icons.MaxAgeRaw = defaults.Icons.MaxAgeRaw
	}
	if icons.ErrorCooldownRaw == "" {
		icons.ErrorCooldownRaw = defaults.Icons.ErrorCooldownRaw
	}
	if icons.FetchTimeoutRaw == "" {
		icons.FetchTimeoutRaw = defaults.Icons.FetchTimeoutRaw
	}
	if icons.CapacityBytes == 0 {
		icons.CapacityBytes = defaults.Icons.CapacityBytes
	}
	if icons.MaxIconBytes == 0 {
		icons.MaxIconBytes = defaults.Icons.MaxIconBytes
	}
	if icons.Concurrency == 0 {
		icons.Concurrency = defaults.Icons.Concurrency
	}
	if icons.FallbackService == nil {
		icons.FallbackService = defaults.Icons.FallbackService
	}

	if cfg.Backup.Retain == 0 {
		cfg.Backup.Retain = defaults.Backup.Retain
	}
	if cfg.Backup.MinIntervalRaw == "" {
		cfg.Backup.MinIntervalRaw = defaults.Backup.MinIntervalRaw
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"icons.maxAge", cfg.Icons.MaxAgeRaw, &cfg.Icons.MaxAge},
		{"icons.errorCooldown", cfg.Icons.ErrorCooldownRaw, &cfg.Icons.ErrorCooldown},
		{"icons.fetchTimeout", cfg.Icons.FetchTimeoutRaw, &cfg.Icons.FetchTimeout},
		{"backup.minInterval", cfg.Backup.MinIntervalRaw, &cfg.Backup.MinInterval},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Storage {
	case "", "json", "sqlite":
	default:
		return fmt.Errorf("%w: storage must be \"json\" or \"sqlite\", got %q", ErrInvalidConfig, c.Storage)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be \"text\" or \"json\", got %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.UndoDepth < 0 || c.Icons.Concurrency < 0 || c.Backup.Retain < 0 {
		return fmt.Errorf("%w: counts must not be negative", ErrInvalidConfig)
	}
	if c.Icons.ErrorCooldown > c.Icons.MaxAge {
		return fmt.Errorf("%w: icons.errorCooldown exceeds icons.maxAge", ErrInvalidConfig)
	}
	return nil
}

// Save writes config to path as indented JSON.
// Creates the directory if it doesn't exist.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	return atomic.WriteFile(path, bytes.NewReader(data))
}

// IconDir returns the icon cache directory.
func (c *Config) IconDir() string {
	return filepath.Join(c.DataDir, "icons")
}

// BackupDir returns the backup directory.
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
}

// Fallback returns the configured fallback icon service, "" when disabled.
func (i Icons) Fallback() string {
	if i.FallbackService == nil {
		return ""
	}
	return *i.FallbackService
}
