package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
campus:
  id: "scut"
  city: "广州"
database:
  path: "/tmp/citywalk-test.db"
api:
  port: 9000
services:
  routing:
    provider: "amap"
    key: "amap-test-key"
navigation:
  walking_speed_mps: 1.4
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Campus.ID != "scut" {
		t.Errorf("Campus.ID = %q, want %q", cfg.Campus.ID, "scut")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Services.Routing.Provider != ProviderAMap {
		t.Errorf("Routing.Provider = %q, want %q", cfg.Services.Routing.Provider, ProviderAMap)
	}
	if cfg.Navigation.WalkingSpeedMPS != 1.4 {
		t.Errorf("WalkingSpeedMPS = %v, want 1.4", cfg.Navigation.WalkingSpeedMPS)
	}
	// Defaults survive for keys not present in the file.
	if cfg.Navigation.ArrivalRadiusM != 20 {
		t.Errorf("ArrivalRadiusM = %v, want default 20", cfg.Navigation.ArrivalRadiusM)
	}
	if cfg.Services.Routing.BaseURL != "https://restapi.amap.com" {
		t.Errorf("Routing.BaseURL = %q, want default", cfg.Services.Routing.BaseURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
campus:
  id: "scut"
`)
	t.Setenv("CITYWALK_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("CITYWALK_API_PORT", "9100")
	t.Setenv("CITYWALK_AMAP_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.Services.Routing.Key != "env-key" {
		t.Errorf("Routing.Key = %q, want env-key", cfg.Services.Routing.Key)
	}
}

func TestConfig_Validate(t *testing.T) {
	validSecret := "test-secret-key-at-least-32-chars!"

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(_ *Config) {},
		},
		{
			name:    "missing campus id",
			mutate:  func(c *Config) { c.Campus.ID = "" },
			wantErr: "campus.id",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "auth enabled without secret",
			mutate:  func(c *Config) { c.Security.Auth.Enabled = true },
			wantErr: "security.jwt.secret is required",
		},
		{
			name: "auth enabled with short secret",
			mutate: func(c *Config) {
				c.Security.Auth.Enabled = true
				c.Security.JWT.Secret = "short"
			},
			wantErr: "at least 32",
		},
		{
			name: "auth enabled with valid secret",
			mutate: func(c *Config) {
				c.Security.Auth.Enabled = true
				c.Security.JWT.Secret = validSecret
			},
		},
		{
			name:    "amap without key",
			mutate:  func(c *Config) { c.Services.Routing.Provider = ProviderAMap },
			wantErr: "services.routing.key",
		},
		{
			name:    "unknown routing provider",
			mutate:  func(c *Config) { c.Services.Routing.Provider = "baidu" },
			wantErr: "not supported",
		},
		{
			name:    "http recognizer without url",
			mutate:  func(c *Config) { c.Services.Recognition.Provider = ProviderHTTP },
			wantErr: "services.recognition.url",
		},
		{
			name:    "zero walking speed",
			mutate:  func(c *Config) { c.Navigation.WalkingSpeedMPS = 0 },
			wantErr: "walking_speed_mps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestGetTimeouts(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %vs, want 30s", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %vs, want 60s", got)
	}
}
