package registry

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stockdash/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFileRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "custom_tickers.json")
	return New(NewFileStore(path, testLogger()), testLogger()), path
}

func entry(sector domain.Sector, name string) domain.TickerEntry {
	return domain.TickerEntry{
		Sector:  sector,
		Name:    name,
		AddedAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		AddedBy: "client-a",
	}
}

func TestValidateSymbol(t *testing.T) {
	for _, sym := range []string{"AAPL", "BRK.B", "BF-B", "A1", "X"} {
		if err := ValidateSymbol(sym); err != nil {
			t.Errorf("ValidateSymbol(%q) = %v, want nil", sym, err)
		}
	}
	for _, sym := range []string{"", "TOOLONGNAME1", "BAD SYM", "N@PE", "ab$"} {
		if err := ValidateSymbol(sym); err == nil {
			t.Errorf("ValidateSymbol(%q) = nil, want error", sym)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	r, _ := newFileRegistry(t)

	want := map[string]domain.TickerEntry{
		"AAPL": entry(domain.SectorTechnology, "Apple Inc."),
		"JPM":  entry(domain.SectorFinancials, "JPMorgan Chase"),
	}
	if err := r.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := r.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load returned %d entries, want 2", len(got))
	}
	if got["AAPL"].Name != "Apple Inc." || got["AAPL"].Sector != domain.SectorTechnology {
		t.Errorf("AAPL entry = %+v", got["AAPL"])
	}
	if !got["JPM"].AddedAt.Equal(want["JPM"].AddedAt) {
		t.Errorf("AddedAt = %v, want %v", got["JPM"].AddedAt, want["JPM"].AddedAt)
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	r, _ := newFileRegistry(t)
	got, err := r.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load of missing file returned %d entries, want 0", len(got))
	}
}

func TestLoadCorruptFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom_tickers.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	r := New(NewFileStore(path, testLogger()), testLogger())
	got, err := r.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load of corrupt file returned %d entries, want 0", len(got))
	}
}

func TestAddNormalizesAndPersists(t *testing.T) {
	r, _ := newFileRegistry(t)

	if err := r.Add("aapl", entry(domain.SectorTechnology, "Apple Inc.")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, _ := r.Load()
	if _, ok := got["AAPL"]; !ok {
		t.Errorf("symbol not upper-case normalized: keys = %v", got)
	}
}

func TestAddDuplicateFailsUnchanged(t *testing.T) {
	r, _ := newFileRegistry(t)

	if err := r.Add("AAPL", entry(domain.SectorTechnology, "Apple Inc.")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	err := r.Add("AAPL", entry(domain.SectorEnergy, "Not Apple"))
	if !domain.IsValidation(err) {
		t.Fatalf("duplicate Add error = %v, want ValidationError", err)
	}

	got, _ := r.Load()
	if got["AAPL"].Name != "Apple Inc." || got["AAPL"].Sector != domain.SectorTechnology {
		t.Errorf("existing entry changed by failed Add: %+v", got["AAPL"])
	}
}

func TestAddRejectsBadSector(t *testing.T) {
	r, _ := newFileRegistry(t)
	err := r.Add("AAPL", domain.TickerEntry{Sector: "nonsense", Name: "x"})
	if !domain.IsValidation(err) {
		t.Errorf("Add with bad sector = %v, want ValidationError", err)
	}
}

func TestRemove(t *testing.T) {
	r, _ := newFileRegistry(t)

	if err := r.Add("AAPL", entry(domain.SectorTechnology, "Apple Inc.")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Remove("aapl"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got, _ := r.Load(); len(got) != 0 {
		t.Errorf("registry has %d entries after Remove, want 0", len(got))
	}

	if err := r.Remove("AAPL"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Remove of missing symbol = %v, want ErrNotFound", err)
	}
}

func TestUpdate(t *testing.T) {
	r, _ := newFileRegistry(t)

	if err := r.Add("AAPL", entry(domain.SectorTechnology, "Apple Inc.")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	newName := "Apple"
	if err := r.Update("AAPL", Patch{Name: &newName}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := r.Load()
	if got["AAPL"].Name != "Apple" {
		t.Errorf("Name = %q, want %q", got["AAPL"].Name, "Apple")
	}
	// Unpatched fields survive.
	if got["AAPL"].Sector != domain.SectorTechnology {
		t.Errorf("Sector changed by partial update: %q", got["AAPL"].Sector)
	}

	if err := r.Update("MISSING", Patch{Name: &newName}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Update of missing symbol = %v, want ErrNotFound", err)
	}
}

func TestReconcilePersistedWins(t *testing.T) {
	r, _ := newFileRegistry(t)

	persisted := map[string]domain.TickerEntry{
		"AAPL": entry(domain.SectorTechnology, "Apple Inc."),
	}
	if err := r.Save(persisted); err != nil {
		t.Fatalf("Save: %v", err)
	}

	transient := map[string]domain.TickerEntry{
		"AAPL": entry(domain.SectorEnergy, "Stale Apple"), // conflicts, must lose
		"TSLA": entry(domain.SectorTechnology, "Tesla"),   // transient-only, must survive
	}

	merged, err := r.Reconcile(transient)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if merged["AAPL"].Name != "Apple Inc." {
		t.Errorf("persisted entry lost to transient: %+v", merged["AAPL"])
	}
	if merged["TSLA"].Name != "Tesla" {
		t.Errorf("transient-only entry dropped: %v", merged)
	}

	// The merged result that differed from disk was saved back.
	got, _ := r.Load()
	if len(got) != 2 {
		t.Errorf("reconciled registry not saved back: %d entries, want 2", len(got))
	}
}

func TestSaveKeepsSingleSlotBackup(t *testing.T) {
	r, path := newFileRegistry(t)

	if err := r.Save(map[string]domain.TickerEntry{"AAPL": entry(domain.SectorTechnology, "Apple Inc.")}); err != nil {
		t.Fatalf("Save (first): %v", err)
	}
	if err := r.Save(map[string]domain.TickerEntry{"TSLA": entry(domain.SectorTechnology, "Tesla")}); err != nil {
		t.Fatalf("Save (second): %v", err)
	}

	backup, err := os.ReadFile(path + ".backup")
	if err != nil {
		t.Fatalf("reading backup slot: %v", err)
	}
	if want := "AAPL"; !strings.Contains(string(backup), want) {
		t.Errorf("backup slot does not hold the previous save (missing %q)", want)
	}
	if strings.Contains(string(backup), "TSLA") {
		t.Error("backup slot holds the current save, want the previous one")
	}
}

func TestClearAll(t *testing.T) {
	r, path := newFileRegistry(t)

	if err := r.Add("AAPL", entry(domain.SectorTechnology, "Apple Inc.")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if got, _ := r.Load(); len(got) != 0 {
		t.Errorf("registry has %d entries after ClearAll, want 0", len(got))
	}
	// The file is recreated empty, not left missing.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("registry file missing after ClearAll: %v", err)
	}
}

func TestInfo(t *testing.T) {
	r, path := newFileRegistry(t)

	if err := r.Add("TSLA", entry(domain.SectorTechnology, "Tesla")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add("AAPL", entry(domain.SectorTechnology, "Apple Inc.")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	info, err := r.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Backend != "json" || info.Path != path {
		t.Errorf("store info = %+v", info.StoreInfo)
	}
	if info.TickerCount != 2 {
		t.Errorf("TickerCount = %d, want 2", info.TickerCount)
	}
	if len(info.Symbols) != 2 || info.Symbols[0] != "AAPL" || info.Symbols[1] != "TSLA" {
		t.Errorf("Symbols = %v, want sorted [AAPL TSLA]", info.Symbols)
	}
	if info.LastUpdated.IsZero() {
		t.Error("LastUpdated not stamped by save")
	}
}
