package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dantte-lp/corepf/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Session.SessionTimeout != 60*time.Second {
		t.Errorf("Session.SessionTimeout = %v, want %v", cfg.Session.SessionTimeout, 60*time.Second)
	}

	if cfg.Session.SessionSearchAfter != 20*time.Second {
		t.Errorf("Session.SessionSearchAfter = %v, want %v", cfg.Session.SessionSearchAfter, 20*time.Second)
	}

	if cfg.Session.MaxBufferedMessages != 256 {
		t.Errorf("Session.MaxBufferedMessages = %d, want %d", cfg.Session.MaxBufferedMessages, 256)
	}

	if cfg.Session.CryptoTimeout != 2*time.Minute {
		t.Errorf("Session.CryptoTimeout = %v, want %v", cfg.Session.CryptoTimeout, 2*time.Minute)
	}

	if cfg.Pathfinder.RumorMillCapacity != 64 {
		t.Errorf("Pathfinder.RumorMillCapacity = %d, want %d", cfg.Pathfinder.RumorMillCapacity, 64)
	}

	if cfg.Pathfinder.JanitorLocalInterval != 1*time.Second {
		t.Errorf("Pathfinder.JanitorLocalInterval = %v, want %v", cfg.Pathfinder.JanitorLocalInterval, 1*time.Second)
	}

	if cfg.Pathfinder.JanitorGlobalInterval != 30*time.Second {
		t.Errorf("Pathfinder.JanitorGlobalInterval = %v, want %v", cfg.Pathfinder.JanitorGlobalInterval, 30*time.Second)
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
session:
  session_timeout: "90s"
  session_search_after: "30s"
  max_buffered_messages: 512
  crypto_timeout: "3m"
pathfinder:
  rumor_mill_capacity: 128
  local_maintenance_search: "2s"
  global_maintenance_search: "1m"
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Session.SessionTimeout != 90*time.Second {
		t.Errorf("Session.SessionTimeout = %v, want %v", cfg.Session.SessionTimeout, 90*time.Second)
	}

	if cfg.Session.MaxBufferedMessages != 512 {
		t.Errorf("Session.MaxBufferedMessages = %d, want %d", cfg.Session.MaxBufferedMessages, 512)
	}

	if cfg.Pathfinder.RumorMillCapacity != 128 {
		t.Errorf("Pathfinder.RumorMillCapacity = %d, want %d", cfg.Pathfinder.RumorMillCapacity, 128)
	}

	if cfg.Pathfinder.JanitorGlobalInterval != 1*time.Minute {
		t.Errorf("Pathfinder.JanitorGlobalInterval = %v, want %v", cfg.Pathfinder.JanitorGlobalInterval, 1*time.Minute)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override session.session_timeout and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
session:
  session_timeout: "45s"
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	// Overridden values.
	if cfg.Session.SessionTimeout != 45*time.Second {
		t.Errorf("Session.SessionTimeout = %v, want %v", cfg.Session.SessionTimeout, 45*time.Second)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Session.MaxBufferedMessages != 256 {
		t.Errorf("Session.MaxBufferedMessages = %d, want default %d", cfg.Session.MaxBufferedMessages, 256)
	}

	if cfg.Pathfinder.RumorMillCapacity != 64 {
		t.Errorf("Pathfinder.RumorMillCapacity = %d, want default %d", cfg.Pathfinder.RumorMillCapacity, 64)
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "zero session timeout",
			modify: func(cfg *config.Config) {
				cfg.Session.SessionTimeout = 0
			},
			wantErr: config.ErrInvalidSessionTimeout,
		},
		{
			name: "negative session timeout",
			modify: func(cfg *config.Config) {
				cfg.Session.SessionTimeout = -1 * time.Second
			},
			wantErr: config.ErrInvalidSessionTimeout,
		},
		{
			name: "zero session search after",
			modify: func(cfg *config.Config) {
				cfg.Session.SessionSearchAfter = 0
			},
			wantErr: config.ErrInvalidSessionSearchAfter,
		},
		{
			name: "zero max buffered messages",
			modify: func(cfg *config.Config) {
				cfg.Session.MaxBufferedMessages = 0
			},
			wantErr: config.ErrInvalidMaxBufferedMessages,
		},
		{
			name: "negative max buffered messages",
			modify: func(cfg *config.Config) {
				cfg.Session.MaxBufferedMessages = -1
			},
			wantErr: config.ErrInvalidMaxBufferedMessages,
		},
		{
			name: "zero rumor mill capacity",
			modify: func(cfg *config.Config) {
				cfg.Pathfinder.RumorMillCapacity = 0
			},
			wantErr: config.ErrInvalidRumorMillCapacity,
		},
		{
			name: "zero local janitor interval",
			modify: func(cfg *config.Config) {
				cfg.Pathfinder.JanitorLocalInterval = 0
			},
			wantErr: config.ErrInvalidJanitorInterval,
		},
		{
			name: "zero global janitor interval",
			modify: func(cfg *config.Config) {
				cfg.Pathfinder.JanitorGlobalInterval = 0
			},
			wantErr: config.ErrInvalidJanitorInterval,
		},
		{
			name: "empty metrics addr",
			modify: func(cfg *config.Config) {
				cfg.Metrics.Addr = ""
			},
			wantErr: config.ErrEmptyMetricsAddr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/corepf.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

// -------------------------------------------------------------------------
// Environment Variable Override Tests
// -------------------------------------------------------------------------

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
session:
  session_timeout: "60s"
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("COREPF_SESSION_SESSION_TIMEOUT", "15s")
	t.Setenv("COREPF_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Session.SessionTimeout != 15*time.Second {
		t.Errorf("Session.SessionTimeout = %v, want %v (from env)", cfg.Session.SessionTimeout, 15*time.Second)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestLoadEnvOverridesMetrics(t *testing.T) {
	yamlContent := `
metrics:
  addr: ":9100"
  path: "/metrics"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("COREPF_METRICS_ADDR", ":9200")
	t.Setenv("COREPF_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", cfg.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "corepf.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
