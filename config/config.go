package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Pool      PoolConfig      `yaml:"pool"`
	Extract   ExtractConfig   `yaml:"extract"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Batch     BatchConfig     `yaml:"batch"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 8000
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the per-identity Chrome processes.
type BrowserConfig struct {
	// Headless is the default when a request does not say.
	Headless bool `yaml:"headless"` // default: true

	// DefaultProxy is passed to Chrome as --proxy-server.
	DefaultProxy string `yaml:"default_proxy"`

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"no_sandbox"` // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"browser_bin"`

	// BlockedResourceTypes lists resource types to block. Images and media
	// stay enabled: media elements must load to expose their sources.
	BlockedResourceTypes []string `yaml:"blocked_resource_types"` // default: ["Font"]

	// BlockAds drops requests to known ad and tracking hosts.
	BlockAds bool `yaml:"block_ads"` // default: true
}

// PoolConfig controls the identity pool.
type PoolConfig struct {
	// ProfilesDir holds one persisted browser profile per identity.
	ProfilesDir string `yaml:"profiles_dir"` // default: "profiles"

	// Identities is the number of identities (at most 8).
	Identities int `yaml:"identities"` // default: 8

	// MaxConcurrency bounds simultaneous browser sessions; kept below
	// Identities.
	MaxConcurrency int `yaml:"max_concurrency"` // default: 3
}

// ExtractConfig controls the extraction flow.
type ExtractConfig struct {
	ReadinessTimeout  time.Duration `yaml:"readiness_timeout"`  // default: 12s
	PollInterval      time.Duration `yaml:"poll_interval"`      // default: 500ms
	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 20s
	MediaTimeout      time.Duration `yaml:"media_timeout"`      // default: 10s
	FieldTimeout      time.Duration `yaml:"field_timeout"`      // default: 1s
	SlowRead          time.Duration `yaml:"slow_read"`          // default: 500ms

	// SaveDir receives downloaded media and screenshots.
	SaveDir string `yaml:"save_dir"` // default: "data"

	// Timezone is the zone publish times are read in.
	Timezone string `yaml:"timezone"` // default: "Asia/Shanghai"
}

// RequestTimeout is the overall budget of one extraction.
func (c ExtractConfig) RequestTimeout() time.Duration {
	return c.NavigationTimeout + c.ReadinessTimeout + c.MediaTimeout + 5*time.Second
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `yaml:"enabled"` // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 `yaml:"requests_per_second"` // default: 5

	// Burst is the maximum burst size per API key.
	Burst int `yaml:"burst"` // default: 10
}

// CacheConfig controls the envelope cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached envelopes.
	MaxEntries int `yaml:"max_entries"` // default: 1000

	// TTL bounds entry age regardless of the max_age a request asks for.
	TTL time.Duration `yaml:"ttl"` // default: 1h
}

// BatchConfig controls batch refresh jobs.
type BatchConfig struct {
	// Expiry is how long finished jobs stay queryable.
	Expiry time.Duration `yaml:"expiry"` // default: 1h
}

// WebhookConfig controls batch completion callbacks.
type WebhookConfig struct {
	// Secret signs webhook bodies. Empty disables signing.
	Secret string `yaml:"secret"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "json"
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8000, Mode: "release"},
		Browser: BrowserConfig{Headless: true, BlockedResourceTypes: []string{"Font"}, BlockAds: true},
		Pool:    PoolConfig{ProfilesDir: "profiles", Identities: 8, MaxConcurrency: 3},
		Extract: ExtractConfig{
			ReadinessTimeout:  12 * time.Second,
			PollInterval:      500 * time.Millisecond,
			NavigationTimeout: 20 * time.Second,
			MediaTimeout:      10 * time.Second,
			FieldTimeout:      time.Second,
			SlowRead:          500 * time.Millisecond,
			SaveDir:           "data",
			Timezone:          "Asia/Shanghai",
		},
		RateLimit: RateLimitConfig{RequestsPerSecond: 5.0, Burst: 10},
		Cache:     CacheConfig{MaxEntries: 1000, TTL: time.Hour},
		Batch:     BatchConfig{Expiry: time.Hour},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML configuration file over the defaults. Environment
// variables still win over the file. Unknown keys are an error.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := Defaults()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = envOr("POSTWATCH_HOST", c.Server.Host)
	c.Server.Port = envIntOr("POSTWATCH_PORT", c.Server.Port)
	c.Server.Mode = envOr("POSTWATCH_MODE", c.Server.Mode)

	c.Browser.Headless = envBoolOr("POSTWATCH_HEADLESS", c.Browser.Headless)
	c.Browser.DefaultProxy = envOr("POSTWATCH_PROXY", c.Browser.DefaultProxy)
	c.Browser.NoSandbox = envBoolOr("POSTWATCH_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.BrowserBin = envOr("POSTWATCH_BROWSER_BIN", c.Browser.BrowserBin)
	c.Browser.BlockedResourceTypes = envSliceOr("POSTWATCH_BLOCKED_RESOURCES", c.Browser.BlockedResourceTypes)
	c.Browser.BlockAds = envBoolOr("POSTWATCH_BLOCK_ADS", c.Browser.BlockAds)

	c.Pool.ProfilesDir = envOr("POSTWATCH_PROFILES_DIR", c.Pool.ProfilesDir)
	c.Pool.Identities = envIntOr("POSTWATCH_IDENTITIES", c.Pool.Identities)
	c.Pool.MaxConcurrency = envIntOr("POSTWATCH_MAX_CONCURRENCY", c.Pool.MaxConcurrency)

	c.Extract.ReadinessTimeout = envDurationOr("POSTWATCH_READY_TIMEOUT", c.Extract.ReadinessTimeout)
	c.Extract.PollInterval = envDurationOr("POSTWATCH_POLL_INTERVAL", c.Extract.PollInterval)
	c.Extract.NavigationTimeout = envDurationOr("POSTWATCH_NAV_TIMEOUT", c.Extract.NavigationTimeout)
	c.Extract.MediaTimeout = envDurationOr("POSTWATCH_MEDIA_TIMEOUT", c.Extract.MediaTimeout)
	c.Extract.FieldTimeout = envDurationOr("POSTWATCH_FIELD_TIMEOUT", c.Extract.FieldTimeout)
	c.Extract.SlowRead = envDurationOr("POSTWATCH_SLOW_READ", c.Extract.SlowRead)
	c.Extract.SaveDir = envOr("POSTWATCH_SAVE_DIR", c.Extract.SaveDir)
	c.Extract.Timezone = envOr("POSTWATCH_TIMEZONE", c.Extract.Timezone)

	c.Auth.Enabled = envBoolOr("POSTWATCH_AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.APIKeys = envSliceOr("POSTWATCH_API_KEYS", c.Auth.APIKeys)

	c.RateLimit.RequestsPerSecond = envFloatOr("POSTWATCH_RATE_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = envIntOr("POSTWATCH_RATE_BURST", c.RateLimit.Burst)

	c.Cache.MaxEntries = envIntOr("POSTWATCH_CACHE_MAX_ENTRIES", c.Cache.MaxEntries)
	c.Cache.TTL = envDurationOr("POSTWATCH_CACHE_TTL", c.Cache.TTL)

	c.Batch.Expiry = envDurationOr("POSTWATCH_BATCH_EXPIRY", c.Batch.Expiry)

	c.Webhook.Secret = envOr("POSTWATCH_WEBHOOK_SECRET", c.Webhook.Secret)

	c.Log.Level = envOr("POSTWATCH_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("POSTWATCH_LOG_FORMAT", c.Log.Format)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
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

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
