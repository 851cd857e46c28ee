package main

import (
	"log"
	"os"
	"time"

	"stockdash/internal/backup"
	"stockdash/internal/cache"
	"stockdash/internal/config"
	"stockdash/internal/httpapi"
	"stockdash/internal/marketdata"
	"stockdash/internal/quota"
	"stockdash/internal/registry"
	"stockdash/internal/util"
)

func main() {
	cfgPath := "config/stockdash.yaml"
	if p := os.Getenv("STOCKDASH_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	store, err := cache.New(cfg.Storage.CacheDir, logger)
	if err != nil {
		log.Fatalf("failed to open cache: %v", err)
	}

	guard := quota.New(cfg.Storage.RateLimitPath, quota.Limits{
		Window:       time.Duration(cfg.Quota.WindowSeconds) * time.Second,
		MaxPerWindow: cfg.Quota.MaxPerWindow,
		MaxTotal:     cfg.Quota.MaxTotal,
		MaxPerCaller: cfg.Quota.MaxPerCaller,
	}, logger)

	var regStore registry.Store
	switch cfg.Storage.RegistryBackend {
	case "sqlite":
		sqlStore, err := registry.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
		if err != nil {
			log.Fatalf("failed to open registry database: %v", err)
		}
		defer sqlStore.Close()
		regStore = sqlStore
	default:
		regStore = registry.NewFileStore(cfg.Storage.RegistryPath, logger)
	}
	reg := registry.New(regStore, logger)

	backups, err := backup.New(
		cfg.Storage.BackupDir,
		time.Duration(cfg.Backup.IntervalHours)*time.Hour,
		cfg.Backup.RetainAuto,
		guard.Identify,
		logger,
	)
	if err != nil {
		log.Fatalf("failed to open backup dir: %v", err)
	}

	var fetcher marketdata.Fetcher
	if cfg.Alpaca.APIKey != "" {
		inner := marketdata.NewAlpacaFetcher(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.RateLimitPerMin)
		fetcher = marketdata.NewCachedFetcher(
			inner,
			store,
			time.Duration(cfg.Cache.SymbolMetaTTLHours)*time.Hour,
			time.Duration(cfg.Cache.PriceSeriesTTLHours)*time.Hour,
			logger,
		)
	} else {
		logger.Warn("no alpaca credentials, market data endpoints disabled")
	}

	srv := httpapi.New(reg, guard, store, backups, fetcher, logger, cfg.Logging.Level == "debug")
	if err := srv.Run(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
