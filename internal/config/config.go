// Package config loads boltview settings.
//
// Values are layered, lowest priority first: built-in defaults, the YAML
// config file, BOLTVIEW_* environment variables, then command-line flags that
// were explicitly set.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Defaults.
const (
	DefaultOutput       = OutputText
	DefaultLogLevel     = "warn"
	DefaultMapSizeMB    = 64
	DefaultOpenTimeout  = 2 * time.Second
	DefaultCloseTimeout = 5 * time.Second
	DefaultWorkers      = 4
	DefaultPageSize     = 256
	DefaultJobTimeout   = 5 * time.Minute
	DefaultEntryLimit   = 100
	DefaultListen       = "127.0.0.1:7420"
	DefaultTheme        = "mocha"
)

// Config holds every setting.
type Config struct {
	// Path is the store file. Empty means none was given.
	Path     string `koanf:"path"`
	ReadOnly bool   `koanf:"read_only"`
	Create   bool   `koanf:"create"`

	Output   string `koanf:"output"`
	Verbose  bool   `koanf:"verbose"`
	LogLevel string `koanf:"log_level"`

	MapSizeMB    int           `koanf:"map_size_mb"`
	OpenTimeout  time.Duration `koanf:"open_timeout"`
	CloseTimeout time.Duration `koanf:"close_timeout"`

	Workers    int           `koanf:"workers"`
	PageSize   int           `koanf:"page_size"`
	JobTimeout time.Duration `koanf:"job_timeout"`
	EntryLimit int           `koanf:"entry_limit"`

	// Listen is the serve address. Remote is a served instance to use
	// instead of opening Path.
	Listen string `koanf:"listen"`
	Remote string `koanf:"remote"`

	// Keymap overrides key bindings of the interactive browser, by action name.
	Keymap map[string]string `koanf:"keymap"`
	Theme  string            `koanf:"theme"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// defaults returns the lowest configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"output":        DefaultOutput,
		"verbose":       false,
		"log_level":     DefaultLogLevel,
		"read_only":     false,
		"create":        false,
		"map_size_mb":   DefaultMapSizeMB,
		"open_timeout":  DefaultOpenTimeout.String(),
		"close_timeout": DefaultCloseTimeout.String(),
		"workers":       DefaultWorkers,
		"page_size":     DefaultPageSize,
		"job_timeout":   DefaultJobTimeout.String(),
		"entry_limit":   DefaultEntryLimit,
		"listen":        DefaultListen,
		"theme":         DefaultTheme,
	}
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	switch c.Output {
	case OutputText, OutputJSON:
	default:
		return fmt.Errorf("output must be %q or %q, got %q", OutputText, OutputJSON, c.Output)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ReadOnly && c.Create {
		return fmt.Errorf("read_only and create are mutually exclusive")
	}

	positive := []struct {
		name string
		v    int64
	}{
		{"map_size_mb", int64(c.MapSizeMB)},
		{"open_timeout", int64(c.OpenTimeout)},
		{"close_timeout", int64(c.CloseTimeout)},
		{"workers", int64(c.Workers)},
		{"page_size", int64(c.PageSize)},
		{"job_timeout", int64(c.JobTimeout)},
		{"entry_limit", int64(c.EntryLimit)},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%s must be positive", p.name)
		}
	}
	return nil
}

// MapSize returns the memory map size in bytes.
func (c *Config) MapSize() int {
	return c.MapSizeMB << 20
}

// Level returns the slog level. Verbose forces debug.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", s)
	}
}
