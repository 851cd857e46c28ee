// Package config loads the stockdash YAML configuration and applies
// environment variable overrides and policy defaults.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the stockdash services.
type Config struct {
	Storage Storage      `yaml:"storage"`
	Server  Server       `yaml:"server"`
	Cache   CacheConfig  `yaml:"cache"`
	Quota   QuotaConfig  `yaml:"quota"`
	Backup  BackupConfig `yaml:"backup"`
	Alpaca  Alpaca       `yaml:"alpaca"`
	Logging Logging      `yaml:"logging"`
}

// Storage holds paths and backend selection for data persistence.
type Storage struct {
	CacheDir        string `yaml:"cache_dir"`
	BackupDir       string `yaml:"backup_dir"`
	RegistryPath    string `yaml:"registry_path"`
	RateLimitPath   string `yaml:"rate_limit_path"`
	RegistryBackend string `yaml:"registry_backend"` // "json" or "sqlite"
	SQLitePath      string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CacheConfig holds per-kind freshness windows and the sweep threshold, in
// hours.
type CacheConfig struct {
	SymbolMetaTTLHours    int `yaml:"symbol_meta_ttl_hours"`
	PriceSeriesTTLHours   int `yaml:"price_series_ttl_hours"`
	IndexSnapshotTTLHours int `yaml:"index_snapshot_ttl_hours"`
	SweepAfterHours       int `yaml:"sweep_after_hours"`
}

// QuotaConfig holds the sliding-window rate limit and capacity ceilings.
type QuotaConfig struct {
	WindowSeconds int `yaml:"window_seconds"`
	MaxPerWindow  int `yaml:"max_per_window"`
	MaxTotal      int `yaml:"max_total"`
	MaxPerCaller  int `yaml:"max_per_caller"`
}

// BackupConfig holds the automatic backup cadence and retention.
type BackupConfig struct {
	IntervalHours int `yaml:"interval_hours"`
	RetainAuto    int `yaml:"retain_auto"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config populated with the policy defaults used when no
// value is supplied: 24h/6h/1h cache TTLs, 168h sweep threshold, 300s/20
// rate window, 500/50 capacity ceilings, 24h backups retaining 7.
func Default() *Config {
	return &Config{
		Storage: Storage{
			CacheDir:        "cache",
			BackupDir:       "backups",
			RegistryPath:    "custom_tickers.json",
			RateLimitPath:   "rate_limits.json",
			RegistryBackend: "json",
			SQLitePath:      "stockdash.db",
		},
		Server: Server{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Cache: CacheConfig{
			SymbolMetaTTLHours:    24,
			PriceSeriesTTLHours:   6,
			IndexSnapshotTTLHours: 1,
			SweepAfterHours:       168,
		},
		Quota: QuotaConfig{
			WindowSeconds: 300,
			MaxPerWindow:  20,
			MaxTotal:      500,
			MaxPerCaller:  50,
		},
		Backup: BackupConfig{
			IntervalHours: 24,
			RetainAuto:    7,
		},
		Alpaca: Alpaca{
			RateLimitPerMin: 200,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML configuration file at the given path, parses it over
// the defaults, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.Storage.CacheDir = v
	}
	if v := os.Getenv("BACKUP_DIR"); v != "" {
		cfg.Storage.BackupDir = v
	}
	if v := os.Getenv("REGISTRY_PATH"); v != "" {
		cfg.Storage.RegistryPath = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Canonical Alpaca SDK env vars take precedence over ours.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
