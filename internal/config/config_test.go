package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Create a temporary YAML config file.
	yamlContent := []byte(`
storage:
  cache_dir: "/tmp/stockdash/cache"
  backup_dir: "/tmp/stockdash/backups"
  registry_path: "/tmp/stockdash/custom_tickers.json"
  registry_backend: "json"
server:
  host: "0.0.0.0"
  port: 9000
quota:
  window_seconds: 120
  max_per_window: 5
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
logging:
  level: "debug"
  format: "text"
`)

	tmpFile, err := os.CreateTemp("", "stockdash-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}

	// Clear any environment overrides that might interfere.
	os.Unsetenv("ALPACA_API_KEY")
	os.Unsetenv("ALPACA_API_SECRET")
	os.Unsetenv("APCA_API_KEY_ID")
	os.Unsetenv("APCA_API_SECRET_KEY")
	os.Unsetenv("CACHE_DIR")
	os.Unsetenv("REGISTRY_PATH")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.CacheDir != "/tmp/stockdash/cache" {
		t.Errorf("Storage.CacheDir = %q, want %q", cfg.Storage.CacheDir, "/tmp/stockdash/cache")
	}
	if cfg.Storage.RegistryBackend != "json" {
		t.Errorf("Storage.RegistryBackend = %q, want %q", cfg.Storage.RegistryBackend, "json")
	}

	// -- Server --
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}

	// -- Quota: explicit values win, unset fields keep defaults --
	if cfg.Quota.WindowSeconds != 120 {
		t.Errorf("Quota.WindowSeconds = %d, want %d", cfg.Quota.WindowSeconds, 120)
	}
	if cfg.Quota.MaxPerWindow != 5 {
		t.Errorf("Quota.MaxPerWindow = %d, want %d", cfg.Quota.MaxPerWindow, 5)
	}
	if cfg.Quota.MaxTotal != 500 {
		t.Errorf("Quota.MaxTotal = %d, want default %d", cfg.Quota.MaxTotal, 500)
	}
	if cfg.Quota.MaxPerCaller != 50 {
		t.Errorf("Quota.MaxPerCaller = %d, want default %d", cfg.Quota.MaxPerCaller, 50)
	}

	// -- Cache defaults --
	if cfg.Cache.SymbolMetaTTLHours != 24 {
		t.Errorf("Cache.SymbolMetaTTLHours = %d, want default %d", cfg.Cache.SymbolMetaTTLHours, 24)
	}
	if cfg.Cache.PriceSeriesTTLHours != 6 {
		t.Errorf("Cache.PriceSeriesTTLHours = %d, want default %d", cfg.Cache.PriceSeriesTTLHours, 6)
	}
	if cfg.Cache.IndexSnapshotTTLHours != 1 {
		t.Errorf("Cache.IndexSnapshotTTLHours = %d, want default %d", cfg.Cache.IndexSnapshotTTLHours, 1)
	}

	// -- Backup defaults --
	if cfg.Backup.IntervalHours != 24 {
		t.Errorf("Backup.IntervalHours = %d, want default %d", cfg.Backup.IntervalHours, 24)
	}
	if cfg.Backup.RetainAuto != 7 {
		t.Errorf("Backup.RetainAuto = %d, want default %d", cfg.Backup.RetainAuto, 7)
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "text")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	yamlContent := []byte(`
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  cache_dir: "/original/cache"
`)

	tmpFile, err := os.CreateTemp("", "stockdash-config-env-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	tmpFile.Close()

	// Set environment overrides.
	os.Setenv("ALPACA_API_KEY", "env-key")
	os.Setenv("CACHE_DIR", "/env/cache")
	os.Unsetenv("APCA_API_KEY_ID")
	os.Unsetenv("APCA_API_SECRET_KEY")
	defer os.Unsetenv("ALPACA_API_KEY")
	defer os.Unsetenv("CACHE_DIR")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.CacheDir != "/env/cache" {
		t.Errorf("Storage.CacheDir = %q, want %q (env override)", cfg.Storage.CacheDir, "/env/cache")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}
