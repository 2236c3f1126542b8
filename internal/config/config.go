package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"plugin-exec-engine/internal/policy"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig          `yaml:"server"`
	Engine   EngineConfig          `yaml:"engine"`
	Limits   policy.ResourceLimits `yaml:"default_limits"`
	Policy   policy.SecurityPolicy `yaml:"security_policy"`
	Database DatabaseConfig        `yaml:"database"`
	Metrics  MetricsConfig         `yaml:"metrics"`
	Tracing  TracingConfig         `yaml:"tracing"`
	Security SecurityConfig        `yaml:"security"`
	TLS      TLSConfig             `yaml:"tls"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBody  int64         `yaml:"max_request_body_bytes"`
}

// EngineConfig controls execution dispatch.
type EngineConfig struct {
	PluginDir              string        `yaml:"plugin_dir"`
	DefaultMode            string        `yaml:"default_mode"` // direct, thread, process, sandboxed
	DefaultTimeout         time.Duration `yaml:"default_timeout"`
	MaxTimeout             time.Duration `yaml:"max_timeout"`
	HistorySize            int           `yaml:"history_size"`
	ThreadPoolSize         int           `yaml:"thread_pool_size"`
	ThreadQueueDepth       int           `yaml:"thread_queue_depth"`
	MaxConcurrentProcesses int           `yaml:"max_concurrent_processes"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AuditBufferSize int           `yaml:"audit_buffer_size"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type TracingConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Endpoint string  `yaml:"endpoint"`
	Sample   float64 `yaml:"sample_rate"`
}

type SecurityConfig struct {
	APIKeyHeader   string   `yaml:"api_key_header"`
	AllowedKeys    []string `yaml:"allowed_keys"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
}

// TLSConfig controls HTTPS/TLS termination.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from CLI flag or hardcoded default
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults for all configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    6 * time.Minute, // > max execution timeout + overhead
			ShutdownTimeout: 30 * time.Second,
			MaxRequestBody:  1 << 20, // 1MB
		},
		Engine: EngineConfig{
			PluginDir:              "plugins",
			DefaultMode:            "sandboxed",
			DefaultTimeout:         30 * time.Second,
			MaxTimeout:             5 * time.Minute,
			HistorySize:            1000,
			ThreadPoolSize:         8,
			ThreadQueueDepth:       64,
			MaxConcurrentProcesses: 16,
		},
		Limits: policy.DefaultLimits(),
		Policy: policy.DefaultPolicy(),
		Database: DatabaseConfig{
			DSN:             "",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AuditBufferSize: 10000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled: false,
			Sample:  0.1,
		},
		Security: SecurityConfig{
			APIKeyHeader:   "X-API-Key",
			RateLimitRPS:   100,
			RateLimitBurst: 200,
		},
		TLS: TLSConfig{
			Enabled: false,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	switch c.Engine.DefaultMode {
	case "direct", "thread", "process", "sandboxed":
	default:
		return fmt.Errorf("engine.default_mode must be direct, thread, process or sandboxed, got %q", c.Engine.DefaultMode)
	}
	if c.Engine.DefaultTimeout > c.Engine.MaxTimeout {
		return fmt.Errorf("engine.default_timeout (%s) must be <= max_timeout (%s)",
			c.Engine.DefaultTimeout, c.Engine.MaxTimeout)
	}
	if c.Engine.ThreadPoolSize < 1 {
		return fmt.Errorf("engine.thread_pool_size must be >= 1")
	}
	if c.Engine.MaxConcurrentProcesses < 1 {
		return fmt.Errorf("engine.max_concurrent_processes must be >= 1")
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("default_limits: %w", err)
	}
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("tls.cert_file and tls.key_file are required when TLS is enabled")
		}
	}
	if c.Database.DSN != "" && strings.Contains(c.Database.DSN, "sslmode=disable") {
		log.Warn().Msg("database DSN has sslmode=disable, connections to Postgres are unencrypted")
	}
	return nil
}

// Address returns the listen address string.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
