package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8000 {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Database.Path != "data.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Limits.IPPerWindow != 120 || cfg.Limits.TokenPerWindow != 240 {
		t.Errorf("limit defaults = %+v", cfg.Limits)
	}
	if cfg.Limits.Window != time.Minute {
		t.Errorf("window = %v, want 1m", cfg.Limits.Window)
	}
	if cfg.Admin.APIKey != "" {
		t.Errorf("admin key should default empty, got %q", cfg.Admin.APIKey)
	}
}

func TestLoad_File(t *testing.T) {
	viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9999
limits:
  ip_per_window: 5
  window: 30s
admin:
  api_key: file-key
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Limits.IPPerWindow != 5 {
		t.Errorf("ip_per_window = %d, want 5", cfg.Limits.IPPerWindow)
	}
	if cfg.Limits.Window != 30*time.Second {
		t.Errorf("window = %v, want 30s", cfg.Limits.Window)
	}
	if cfg.Admin.APIKey != "file-key" {
		t.Errorf("admin key = %q", cfg.Admin.APIKey)
	}
	// Untouched values keep their defaults.
	if cfg.Limits.TokenPerWindow != 240 {
		t.Errorf("token_per_window = %d, want default 240", cfg.Limits.TokenPerWindow)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("ADMIN_API_KEY", "env-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Admin.APIKey != "env-key" {
		t.Errorf("admin key = %q, want env-key", cfg.Admin.APIKey)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Host: "0.0.0.0", Port: 8000},
			Database: DatabaseConfig{Path: "data.db"},
			Limits: LimitsConfig{
				IPPerWindow:    120,
				TokenPerWindow: 240,
				Window:         time.Minute,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero port", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, true},
		{"zero ip limit", func(c *Config) { c.Limits.IPPerWindow = 0 }, true},
		{"zero token limit", func(c *Config) { c.Limits.TokenPerWindow = 0 }, true},
		{"zero window", func(c *Config) { c.Limits.Window = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
