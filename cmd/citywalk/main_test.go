package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/citywalk-core/internal/amap"
	"github.com/nerrad567/citywalk-core/internal/auth"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/config"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
	"github.com/nerrad567/citywalk-core/internal/vision"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("CITYWALK_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("CITYWALK_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.API.Port != 8000 {
		t.Errorf("API.Port = %d, want default 8000", cfg.API.Port)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
campus:
  id: north-campus
api:
  port: 9100
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Campus.ID != "north-campus" || cfg.API.Port != 9100 {
		t.Errorf("loaded config = %+v / %+v", cfg.Campus, cfg.API)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("CITYWALK_CONFIG", writeConfig(t, "api: [not a map"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with malformed config")
	}
}

func TestRun_MissingDatabasePath(t *testing.T) {
	t.Setenv("CITYWALK_CONFIG", writeConfig(t, `
database:
  path: ""
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
	if !strings.Contains(err.Error(), "database.path") {
		t.Errorf("error = %v, want mention of database.path", err)
	}
}

func TestRun_StartupAndShutdown(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CITYWALK_CONFIG", writeConfig(t, `
database:
  path: "`+filepath.Join(dir, "citywalk.db")+`"
api:
  host: "127.0.0.1"
  port: `+strconv.Itoa(freePort(t))+`
logging:
  level: error
`))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "citywalk.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestNewCollaborators_Disabled(t *testing.T) {
	c, err := newCollaborators(config.Default(), logging.Discard())
	if err != nil {
		t.Fatalf("newCollaborators() error = %v", err)
	}
	if c.planner != nil || c.places != nil || c.recognizer != nil {
		t.Errorf("disabled providers produced collaborators: %+v", c)
	}
	if len(c.breakers) != 0 {
		t.Errorf("breakers = %d, want 0", len(c.breakers))
	}
}

func TestNewCollaborators_Enabled(t *testing.T) {
	cfg := config.Default()
	cfg.Services.Routing.Provider = config.ProviderAMap
	cfg.Services.Routing.Key = "test-key"
	cfg.Services.Recognition.Provider = config.ProviderHTTP
	cfg.Services.Recognition.URL = "http://127.0.0.1:9/recognize"

	c, err := newCollaborators(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("newCollaborators() error = %v", err)
	}
	if c.planner == nil || c.places == nil || c.recognizer == nil {
		t.Fatalf("collaborators missing: %+v", c)
	}
	for _, name := range []string{amap.ProviderName, vision.ProviderName} {
		if _, ok := c.breakers[name]; !ok {
			t.Errorf("breaker %q not registered", name)
		}
	}
}

func TestNewCollaborators_MissingKey(t *testing.T) {
	cfg := config.Default()
	cfg.Services.Routing.Provider = config.ProviderAMap

	if _, err := newCollaborators(cfg, logging.Discard()); err == nil {
		t.Error("newCollaborators() should fail without an amap key")
	}
}

func TestRunCommand_HashKey(t *testing.T) {
	var out bytes.Buffer
	if err := runCommand([]string{"hash-key", "s3cret"}, &out); err != nil {
		t.Fatalf("hash-key error = %v", err)
	}
	encoded := strings.TrimSpace(out.String())
	ok, err := auth.VerifyKey("s3cret", encoded)
	if err != nil || !ok {
		t.Errorf("VerifyKey(%q) = %v, %v", encoded, ok, err)
	}
}

func TestRunCommand_Errors(t *testing.T) {
	tests := [][]string{
		{"hash-key"},
		{"hash-key", ""},
		{"bogus"},
	}
	for _, args := range tests {
		if err := runCommand(args, &bytes.Buffer{}); err == nil {
			t.Errorf("runCommand(%q) should fail", args)
		}
	}
}
