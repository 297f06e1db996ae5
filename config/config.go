package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Console   ConsoleConfig   `yaml:"console"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Output    OutputConfig    `yaml:"output"`
	History   HistoryConfig   `yaml:"history"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Log       LogConfig       `yaml:"log"`
}

// ServiceConfig describes the remote scraping service.
type ServiceConfig struct {
	// URL is the scrape endpoint that receives {"url": ...}.
	URL string `yaml:"url"` // default: "http://localhost:8000/scrape"

	// Timeout bounds the whole call. Zero waits indefinitely.
	Timeout time.Duration `yaml:"timeout"` // default: 5m

	// MaxArchiveBytes caps the response body read into memory.
	MaxArchiveBytes int64 `yaml:"max_archive_bytes"` // default: 512 MiB

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent"` // default: "sitegrab/<version>"
}

// ConsoleConfig controls the local HTTP console.
type ConsoleConfig struct {
	Host string `yaml:"host"` // default: "127.0.0.1"
	Port int    `yaml:"port"` // default: 3000
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"
}

// RateLimitConfig controls per-client rate limiting of submissions.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained submission rate per client.
	RequestsPerSecond float64 `yaml:"requests_per_second"` // default: 1

	// Burst is the maximum burst size per client.
	Burst int `yaml:"burst"` // default: 3
}

// OutputConfig controls where hand-offs write archives.
type OutputConfig struct {
	// Dir is the destination directory for saved archives.
	Dir string `yaml:"dir"` // default: "."

	// Preview toggles archive inspection after a successful submission.
	Preview bool `yaml:"preview"` // default: true
}

// HistoryConfig controls the recent-outcome store.
type HistoryConfig struct {
	MaxEntries int           `yaml:"max_entries"` // default: 100
	TTL        time.Duration `yaml:"ttl"`         // default: 24h
}

// WebhookConfig controls outcome notifications. Empty URL disables them.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "text"
}

// FileEnv names the optional YAML configuration file.
const FileEnv = "SITEGRAB_CONFIG_FILE"

// Load builds the configuration from defaults, then the YAML file named by
// SITEGRAB_CONFIG_FILE (if set), then SITEGRAB_* environment variables.
// version is embedded in the default user agent.
func Load(version string) (*Config, error) {
	cfg := Default(version)
	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// Default returns the built-in configuration.
func Default(version string) *Config {
	return &Config{
		Service: ServiceConfig{
			URL:             "http://localhost:8000/scrape",
			Timeout:         5 * time.Minute,
			MaxArchiveBytes: 512 << 20,
			UserAgent:       "sitegrab/" + version,
		},
		Console: ConsoleConfig{
			Host: "127.0.0.1",
			Port: 3000,
			Mode: "release",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 1.0,
			Burst:             3,
		},
		Output: OutputConfig{
			Dir:     ".",
			Preview: true,
		},
		History: HistoryConfig{
			MaxEntries: 100,
			TTL:        24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// loadFile overlays the YAML file at path. Keys absent from the file keep
// their current value.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Service.URL = envOr("SITEGRAB_SERVICE_URL", c.Service.URL)
	c.Service.Timeout = envDurationOr("SITEGRAB_SERVICE_TIMEOUT", c.Service.Timeout)
	c.Service.MaxArchiveBytes = envInt64Or("SITEGRAB_MAX_ARCHIVE_BYTES", c.Service.MaxArchiveBytes)
	c.Service.UserAgent = envOr("SITEGRAB_USER_AGENT", c.Service.UserAgent)

	c.Console.Host = envOr("SITEGRAB_HOST", c.Console.Host)
	c.Console.Port = envIntOr("SITEGRAB_PORT", c.Console.Port)
	c.Console.Mode = envOr("SITEGRAB_MODE", c.Console.Mode)

	c.RateLimit.RequestsPerSecond = envFloatOr("SITEGRAB_RATE_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = envIntOr("SITEGRAB_RATE_BURST", c.RateLimit.Burst)

	c.Output.Dir = envOr("SITEGRAB_OUTPUT_DIR", c.Output.Dir)
	c.Output.Preview = envBoolOr("SITEGRAB_PREVIEW", c.Output.Preview)

	c.History.MaxEntries = envIntOr("SITEGRAB_HISTORY_MAX", c.History.MaxEntries)
	c.History.TTL = envDurationOr("SITEGRAB_HISTORY_TTL", c.History.TTL)

	c.Webhook.URL = envOr("SITEGRAB_WEBHOOK_URL", c.Webhook.URL)
	c.Webhook.Secret = envOr("SITEGRAB_WEBHOOK_SECRET", c.Webhook.Secret)

	c.Log.Level = envOr("SITEGRAB_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("SITEGRAB_LOG_FORMAT", c.Log.Format)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
