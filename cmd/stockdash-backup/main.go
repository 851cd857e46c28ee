// Operator tool for registry snapshots: create, list, restore, prune.
//
// Usage:
//
//	stockdash-backup create
//	stockdash-backup list
//	stockdash-backup restore backup_manual_20260831_120000.json
//	stockdash-backup prune auto 7
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"stockdash/internal/backup"
	"stockdash/internal/config"
	"stockdash/internal/domain"
	"stockdash/internal/quota"
	"stockdash/internal/registry"
	"stockdash/internal/util"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: stockdash-backup create|list|restore ID|prune KIND KEEP")
		os.Exit(1)
	}

	cfgPath := "config/stockdash.yaml"
	if p := os.Getenv("STOCKDASH_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger("warn", "text")

	guard := quota.New(cfg.Storage.RateLimitPath, quota.DefaultLimits(), logger)

	var regStore registry.Store
	if cfg.Storage.RegistryBackend == "sqlite" {
		sqlStore, err := registry.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
		if err != nil {
			log.Fatalf("failed to open registry database: %v", err)
		}
		defer sqlStore.Close()
		regStore = sqlStore
	} else {
		regStore = registry.NewFileStore(cfg.Storage.RegistryPath, logger)
	}
	reg := registry.New(regStore, logger)
	mgr, err := backup.New(
		cfg.Storage.BackupDir,
		time.Duration(cfg.Backup.IntervalHours)*time.Hour,
		cfg.Backup.RetainAuto,
		guard.Identify,
		logger,
	)
	if err != nil {
		log.Fatalf("failed to open backup dir: %v", err)
	}

	switch os.Args[1] {
	case "create":
		entries, err := reg.Load()
		if err != nil {
			log.Fatalf("failed to load registry: %v", err)
		}
		id, err := mgr.Create(entries, domain.SnapshotManual)
		if err != nil {
			log.Fatalf("failed to create snapshot: %v", err)
		}
		fmt.Printf("created %s (%d tickers)\n", id, len(entries))

	case "list":
		snapshots := mgr.List()
		if len(snapshots) == 0 {
			fmt.Println("no snapshots")
			return
		}
		fmt.Printf("%-45s %-8s %-20s %8s %8s\n", "ID", "KIND", "CREATED", "SIZE", "TICKERS")
		for _, desc := range snapshots {
			fmt.Printf("%-45s %-8s %-20s %8d %8d\n",
				desc.ID, desc.Kind, desc.Created.Format("2006-01-02 15:04:05"), desc.Size, desc.TickerCount)
		}

	case "restore":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: stockdash-backup restore ID")
			os.Exit(1)
		}
		raw, err := mgr.Restore(os.Args[2])
		if err != nil {
			log.Fatalf("failed to restore: %v", err)
		}
		var entries map[string]domain.TickerEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			log.Fatalf("snapshot payload is not a ticker registry: %v", err)
		}
		if err := reg.Save(entries); err != nil {
			log.Fatalf("failed to save registry: %v", err)
		}
		fmt.Printf("restored %d tickers from %s\n", len(entries), os.Args[2])

	case "prune":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "usage: stockdash-backup prune KIND KEEP")
			os.Exit(1)
		}
		kind := domain.SnapshotKind(os.Args[2])
		if kind != domain.SnapshotManual && kind != domain.SnapshotAuto {
			log.Fatalf("kind must be manual or auto, got %q", os.Args[2])
		}
		keep, err := strconv.Atoi(os.Args[3])
		if err != nil {
			log.Fatalf("KEEP must be a number: %v", err)
		}
		removed, err := mgr.Prune(kind, keep)
		if err != nil {
			log.Fatalf("failed to prune: %v", err)
		}
		fmt.Printf("removed %d %s snapshots\n", removed, kind)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(1)
	}
}
