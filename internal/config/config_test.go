package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"groupgate/internal/config"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`addr: ":9090"
log_level: debug
login_ttl_minutes: 5
`)
	if err := os.WriteFile(cfgPath, content, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.LoginTTL() != 5*time.Minute {
		t.Errorf("LoginTTL() = %v, want 5m", cfg.LoginTTL())
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.LoginTTL() != 10*time.Minute {
		t.Errorf("LoginTTL() = %v, want 10m", cfg.LoginTTL())
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("log_level: warn\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want default", cfg.Addr)
	}
	if cfg.LoginTTLMinutes != 10 {
		t.Errorf("LoginTTLMinutes = %d, want default", cfg.LoginTTLMinutes)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "12345")
	t.Setenv("TELEGRAM_API_HASH", "abcdef0123456789")

	creds, err := config.LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials() error: %v", err)
	}
	if creds.APIID != 12345 {
		t.Errorf("APIID = %d, want 12345", creds.APIID)
	}
	if creds.APIHash != "abcdef0123456789" {
		t.Errorf("APIHash = %q", creds.APIHash)
	}
}

func TestLoadCredentials_Missing(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "")
	t.Setenv("TELEGRAM_API_HASH", "")

	if _, err := config.LoadCredentials(); err == nil {
		t.Error("expected an error for missing credentials")
	}
}

func TestLoadCredentials_BadID(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "not-a-number")
	t.Setenv("TELEGRAM_API_HASH", "abc")

	if _, err := config.LoadCredentials(); err == nil {
		t.Error("expected an error for a non-numeric api id")
	}
}

func TestClientConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "client.yaml")

	if err := config.SaveClient(path, &config.ClientConfig{BackendURL: "http://localhost:8080"}); err != nil {
		t.Fatalf("SaveClient() error: %v", err)
	}
	cfg, err := config.LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient() error: %v", err)
	}
	if cfg.BackendURL != "http://localhost:8080" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
}

func TestLoadClient_Missing(t *testing.T) {
	cfg, err := config.LoadClient(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadClient() error: %v", err)
	}
	if cfg.BackendURL != "" {
		t.Errorf("BackendURL = %q, want empty", cfg.BackendURL)
	}
}

func TestDir(t *testing.T) {
	if config.Dir() == "" {
		t.Error("Dir() returned empty string")
	}
}
