// Package config manages corepf daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete corepf configuration.
type Config struct {
	Session    SessionConfig    `koanf:"session"`
	Pathfinder PathfinderConfig `koanf:"pathfinder"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Log        LogConfig        `koanf:"log"`
}

// SessionConfig holds the session table's timing and sizing parameters,
// mapped onto session.Config at startup.
type SessionConfig struct {
	// SessionTimeout bounds how long a session may go without a
	// keep-alive before it is destroyed.
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// SessionSearchAfter bounds how long a maintained session goes
	// without a re-search.
	SessionSearchAfter time.Duration `koanf:"session_search_after"`

	// MaxBufferedMessages bounds the buffer table's size.
	MaxBufferedMessages int `koanf:"max_buffered_messages"`

	// CryptoTimeout bounds how long a crypto session may sit idle before
	// being reset to Uninitialized.
	CryptoTimeout time.Duration `koanf:"crypto_timeout"`
}

// PathfinderConfig holds the pathfinder's DHT-subsystem sizing and
// maintenance cadence, mapped onto pathfinder.Config at startup.
type PathfinderConfig struct {
	// RumorMillCapacity bounds the rumor mill.
	RumorMillCapacity int `koanf:"rumor_mill_capacity"`

	// JanitorLocalInterval and JanitorGlobalInterval set the janitor's
	// two maintenance cadences.
	JanitorLocalInterval  time.Duration `koanf:"local_maintenance_search"`
	JanitorGlobalInterval time.Duration `koanf:"global_maintenance_search"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with the defaults named in
// spec §6's Configurables list.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			SessionTimeout:      60 * time.Second,
			SessionSearchAfter:  20 * time.Second,
			MaxBufferedMessages: 256,
			CryptoTimeout:       2 * time.Minute,
		},
		Pathfinder: PathfinderConfig{
			RumorMillCapacity:     64,
			JanitorLocalInterval:  1 * time.Second,
			JanitorGlobalInterval: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for corepf configuration.
// Variables are named COREPF_<section>_<key>, e.g., COREPF_METRICS_ADDR.
const envPrefix = "COREPF_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (COREPF_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	COREPF_SESSION_SESSION_TIMEOUT        -> session.session_timeout
//	COREPF_PATHFINDER_RUMOR_MILL_CAPACITY -> pathfinder.rumor_mill_capacity
//	COREPF_METRICS_ADDR                   -> metrics.addr
//	COREPF_LOG_LEVEL                      -> log.level
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms COREPF_METRICS_ADDR -> metrics.addr.
// Strips the COREPF_ prefix, lowercases, and replaces the first _ (the
// section separator) with ., so COREPF_SESSION_SESSION_TIMEOUT ->
// session.session_timeout.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"session.session_timeout":                  defaults.Session.SessionTimeout.String(),
		"session.session_search_after":              defaults.Session.SessionSearchAfter.String(),
		"session.max_buffered_messages":             defaults.Session.MaxBufferedMessages,
		"session.crypto_timeout":                    defaults.Session.CryptoTimeout.String(),
		"pathfinder.rumor_mill_capacity":            defaults.Pathfinder.RumorMillCapacity,
		"pathfinder.local_maintenance_search":       defaults.Pathfinder.JanitorLocalInterval.String(),
		"pathfinder.global_maintenance_search":      defaults.Pathfinder.JanitorGlobalInterval.String(),
		"metrics.addr":                              defaults.Metrics.Addr,
		"metrics.path":                              defaults.Metrics.Path,
		"log.level":                                 defaults.Log.Level,
		"log.format":                                defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidSessionTimeout indicates the session timeout is not positive.
	ErrInvalidSessionTimeout = errors.New("session.session_timeout must be > 0")

	// ErrInvalidSessionSearchAfter indicates the search-after interval is
	// not positive.
	ErrInvalidSessionSearchAfter = errors.New("session.session_search_after must be > 0")

	// ErrInvalidMaxBufferedMessages indicates the buffer cap is not positive.
	ErrInvalidMaxBufferedMessages = errors.New("session.max_buffered_messages must be > 0")

	// ErrInvalidRumorMillCapacity indicates the rumor mill capacity is not positive.
	ErrInvalidRumorMillCapacity = errors.New("pathfinder.rumor_mill_capacity must be > 0")

	// ErrInvalidJanitorInterval indicates a janitor maintenance interval
	// is not positive.
	ErrInvalidJanitorInterval = errors.New("pathfinder maintenance intervals must be > 0")

	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Session.SessionTimeout <= 0 {
		return ErrInvalidSessionTimeout
	}
	if cfg.Session.SessionSearchAfter <= 0 {
		return ErrInvalidSessionSearchAfter
	}
	if cfg.Session.MaxBufferedMessages <= 0 {
		return ErrInvalidMaxBufferedMessages
	}
	if cfg.Pathfinder.RumorMillCapacity <= 0 {
		return ErrInvalidRumorMillCapacity
	}
	if cfg.Pathfinder.JanitorLocalInterval <= 0 || cfg.Pathfinder.JanitorGlobalInterval <= 0 {
		return ErrInvalidJanitorInterval
	}
	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
