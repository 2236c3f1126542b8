package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Engine.DefaultMode != "sandboxed" {
		t.Errorf("Engine.DefaultMode = %q, want sandboxed", cfg.Engine.DefaultMode)
	}
	if cfg.Engine.DefaultTimeout != 30*time.Second {
		t.Errorf("Engine.DefaultTimeout = %s, want 30s", cfg.Engine.DefaultTimeout)
	}
	if cfg.Engine.HistorySize != 1000 {
		t.Errorf("Engine.HistorySize = %d, want 1000", cfg.Engine.HistorySize)
	}
	if cfg.Limits.MaxMemoryMB != 256 {
		t.Errorf("Limits.MaxMemoryMB = %d, want 256", cfg.Limits.MaxMemoryMB)
	}
	if cfg.Policy.AllowNetwork {
		t.Error("Policy.AllowNetwork = true, want false by default")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return DefaultConfig()
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"server port 0", func(c *Config) { c.Server.Port = 0 }, true},
		{"server port 99999", func(c *Config) { c.Server.Port = 99999 }, true},
		{"unknown mode", func(c *Config) { c.Engine.DefaultMode = "container" }, true},
		{"default_timeout > max_timeout", func(c *Config) {
			c.Engine.DefaultTimeout = 10 * time.Minute
			c.Engine.MaxTimeout = 1 * time.Minute
		}, true},
		{"thread_pool_size 0", func(c *Config) { c.Engine.ThreadPoolSize = 0 }, true},
		{"max_concurrent_processes 0", func(c *Config) { c.Engine.MaxConcurrentProcesses = 0 }, true},
		{"memory_mb < 16", func(c *Config) { c.Limits.MaxMemoryMB = 8 }, true},
		{"TLS enabled without cert", func(c *Config) {
			c.TLS.Enabled = true
			c.TLS.CertFile = ""
			c.TLS.KeyFile = ""
		}, true},
		{"TLS enabled with cert+key", func(c *Config) {
			c.TLS.Enabled = true
			c.TLS.CertFile = "/etc/ssl/cert.pem"
			c.TLS.KeyFile = "/etc/ssl/key.pem"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
server:
  host: "127.0.0.1"
  port: 9090
engine:
  default_mode: thread
  default_timeout: 15s
  max_timeout: 120s
  thread_pool_size: 4
default_limits:
  max_memory_mb: 512
security_policy:
  allow_network: true
  blocked_imports: ["syscall", "unsafe"]
`
	tmpFile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(yamlContent); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Engine.DefaultMode != "thread" {
		t.Errorf("Engine.DefaultMode = %q, want thread", cfg.Engine.DefaultMode)
	}
	if cfg.Engine.DefaultTimeout != 15*time.Second {
		t.Errorf("Engine.DefaultTimeout = %s, want 15s", cfg.Engine.DefaultTimeout)
	}
	if cfg.Engine.ThreadPoolSize != 4 {
		t.Errorf("Engine.ThreadPoolSize = %d, want 4", cfg.Engine.ThreadPoolSize)
	}
	if cfg.Limits.MaxMemoryMB != 512 {
		t.Errorf("Limits.MaxMemoryMB = %d, want 512", cfg.Limits.MaxMemoryMB)
	}
	// Unset limit fields keep their defaults.
	if cfg.Limits.MaxCPUTimeSeconds != 10 {
		t.Errorf("Limits.MaxCPUTimeSeconds = %d, want default 10", cfg.Limits.MaxCPUTimeSeconds)
	}
	if !cfg.Policy.AllowNetwork {
		t.Error("Policy.AllowNetwork = false, want true from file")
	}
	if len(cfg.Policy.BlockedImports) != 2 {
		t.Errorf("Policy.BlockedImports = %v, want 2 entries", cfg.Policy.BlockedImports)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestAddress(t *testing.T) {
	cfg := DefaultConfig()
	want := "0.0.0.0:8080"
	if got := cfg.Address(); got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}

	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 3000
	want = "127.0.0.1:3000"
	if got := cfg.Address(); got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}
}
