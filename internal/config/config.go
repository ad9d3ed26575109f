// Package config provides configuration management for the webhook gateway.
// Configuration is loaded from a YAML file with ${VAR} and ${VAR:-default}
// environment substitution, then overridden by environment variables in the
// entry point.
package config

import (
	"time"
)

// Config holds all configuration settings for the webhook gateway.
type Config struct {
	// Server settings
	Address string `json:"address" yaml:"address"`
	Port    int    `json:"port" yaml:"port"`

	// Server timeouts
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout   time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`

	// Forwarding settings
	// UpstreamTimeout bounds the whole downstream call. Zero disables the
	// deadline; the underlying transport defaults still apply.
	UpstreamTimeout time.Duration `json:"upstreamTimeout" yaml:"upstreamTimeout"`
	// MaxBodyBytes limits the inbound request body size. Zero disables
	// the limit.
	MaxBodyBytes int64 `json:"maxBodyBytes" yaml:"maxBodyBytes"`
	// AllowedHosts is the destination hostname allowlist. Empty means
	// every destination host is allowed.
	AllowedHosts []string `json:"allowedHosts" yaml:"allowedHosts"`
	// TrustedProxies are CIDRs whose X-Forwarded-For headers are trusted
	// for client IP extraction.
	TrustedProxies []string `json:"trustedProxies" yaml:"trustedProxies"`

	// Route table settings
	RoutesFile string `json:"routesFile" yaml:"routesFile"`
	// WatchRoutes enables reloading the route table when the routes file
	// is modified by another process.
	WatchRoutes bool `json:"watchRoutes" yaml:"watchRoutes"`

	// History settings
	HistoryFile string `json:"historyFile" yaml:"historyFile"`
	// HistoryCapacity is the per-key in-memory recent history capacity.
	HistoryCapacity int `json:"historyCapacity" yaml:"historyCapacity"`
	// HistoryBackend selects the recent history store: memory or redis.
	HistoryBackend string `json:"historyBackend" yaml:"historyBackend"`
	RedisAddress   string `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword  string `json:"redisPassword" yaml:"redisPassword"`
	RedisDB        int    `json:"redisDB" yaml:"redisDB"`

	// Admin settings
	// AdminToken is the bearer token protecting the admin surface.
	// Empty disables authentication.
	AdminToken string `json:"adminToken" yaml:"adminToken"`

	// Observability - Logging
	LogLevel  string `json:"logLevel" yaml:"logLevel"`
	LogFormat string `json:"logFormat" yaml:"logFormat"`
	LogOutput string `json:"logOutput" yaml:"logOutput"`

	// Observability - Metrics
	MetricsEnabled bool   `json:"metricsEnabled" yaml:"metricsEnabled"`
	MetricsPath    string `json:"metricsPath" yaml:"metricsPath"`
}

// Default configuration values.
const (
	DefaultPort              = 8080
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxBodyBytes      = 10 << 20
	DefaultHistoryCapacity   = 500
	DefaultRoutesFile        = "routes.json"
	DefaultHistoryFile       = "history.jsonl"
	DefaultHistoryBackend    = "memory"
	DefaultMetricsPath       = "/metrics"
)

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		Port:              DefaultPort,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		ShutdownTimeout:   DefaultShutdownTimeout,
		MaxBodyBytes:      DefaultMaxBodyBytes,
		RoutesFile:        DefaultRoutesFile,
		WatchRoutes:       true,
		HistoryFile:       DefaultHistoryFile,
		HistoryCapacity:   DefaultHistoryCapacity,
		HistoryBackend:    DefaultHistoryBackend,
		LogLevel:          "info",
		LogFormat:         "json",
		LogOutput:         "stdout",
		MetricsEnabled:    true,
		MetricsPath:       DefaultMetricsPath,
	}
}

// applyDefaults fills zero-valued fields with defaults.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.RoutesFile == "" {
		c.RoutesFile = DefaultRoutesFile
	}
	if c.HistoryFile == "" {
		c.HistoryFile = DefaultHistoryFile
	}
	if c.HistoryCapacity == 0 {
		c.HistoryCapacity = DefaultHistoryCapacity
	}
	if c.HistoryBackend == "" {
		c.HistoryBackend = DefaultHistoryBackend
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.LogOutput == "" {
		c.LogOutput = "stdout"
	}
	if c.MetricsPath == "" {
		c.MetricsPath = DefaultMetricsPath
	}
}
