package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockdash/internal/domain"
	"stockdash/internal/registry"
)

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// ---------------------------------------------------------------------------
// Tickers
// ---------------------------------------------------------------------------

type tickerView struct {
	Symbol string             `json:"symbol"`
	Entry  domain.TickerEntry `json:"entry"`
}

func (s *Server) listTickers(c *gin.Context) {
	entries, err := s.registry.Load()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickers": entries, "count": len(entries)})
}

type addTickerRequest struct {
	Symbol string `json:"symbol"`
	Sector string `json:"sector"`
	Name   string `json:"name"`
}

func (s *Server) addTicker(c *gin.Context) {
	var req addTickerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	caller := s.clientID(c)
	if err := s.guard.CheckRate(caller); err != nil {
		s.failQuota(c, err)
		return
	}

	entries, err := s.registry.Load()
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.guard.CheckCapacity(len(entries), countBy(entries, caller), 1); err != nil {
		s.failQuota(c, err)
		return
	}

	entry := domain.TickerEntry{
		Sector:  domain.Sector(req.Sector),
		Name:    req.Name,
		AddedAt: time.Now(),
		AddedBy: caller,
	}
	if err := s.registry.Add(req.Symbol, entry); err != nil {
		s.fail(c, err)
		return
	}
	s.autoBackup()

	symbol := registry.NormalizeSymbol(req.Symbol)
	c.JSON(http.StatusCreated, tickerView{Symbol: symbol, Entry: entry})
}

type updateTickerRequest struct {
	Sector *string `json:"sector"`
	Name   *string `json:"name"`
}

func (s *Server) updateTicker(c *gin.Context) {
	var req updateTickerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := s.guard.CheckRate(s.clientID(c)); err != nil {
		s.failQuota(c, err)
		return
	}

	var patch registry.Patch
	if req.Sector != nil {
		sector := domain.Sector(*req.Sector)
		patch.Sector = &sector
	}
	patch.Name = req.Name

	symbol := c.Param("symbol")
	if err := s.registry.Update(symbol, patch); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": registry.NormalizeSymbol(symbol)})
}

func (s *Server) removeTicker(c *gin.Context) {
	if err := s.guard.CheckRate(s.clientID(c)); err != nil {
		s.failQuota(c, err)
		return
	}

	symbol := c.Param("symbol")
	if err := s.registry.Remove(symbol); err != nil {
		s.fail(c, err)
		return
	}
	s.autoBackup()
	c.JSON(http.StatusOK, gin.H{"symbol": registry.NormalizeSymbol(symbol)})
}

func (s *Server) getRegistryInfo(c *gin.Context) {
	info, err := s.registry.Info()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// autoBackup snapshots the registry when the cadence says one is due. Load
// failures are logged and skipped; a mutation never fails because its backup
// could not be taken.
func (s *Server) autoBackup() {
	entries, err := s.registry.Load()
	if err != nil {
		s.log.Warn("loading registry for auto backup", "error", err)
		return
	}
	s.backups.AutoBackupIfDue(entries)
}

// countBy counts entries attributed to one caller.
func countBy(entries map[string]domain.TickerEntry, caller string) int {
	n := 0
	for _, entry := range entries {
		if entry.AddedBy == caller {
			n++
		}
	}
	return n
}

// failQuota renders quota errors with machine-readable fields alongside the
// message; non-quota errors fall through to the generic mapping.
func (s *Server) failQuota(c *gin.Context, err error) {
	var qe *domain.QuotaError
	if errors.As(err, &qe) {
		body := gin.H{"error": err.Error(), "scope": string(qe.Scope)}
		if qe.RetryAfter > 0 {
			body["retry_after_seconds"] = int(qe.RetryAfter.Seconds())
		}
		if qe.Limit > 0 {
			body["limit"] = qe.Limit
		}
		c.JSON(http.StatusTooManyRequests, body)
		return
	}
	s.fail(c, err)
}

// ---------------------------------------------------------------------------
// Security
// ---------------------------------------------------------------------------

func (s *Server) getSecurityStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.guard.Status(s.clientID(c)))
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

func (s *Server) getCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.cache.Stats())
}

type sweepRequest struct {
	OlderThanHours int `json:"older_than_hours"`
}

func (s *Server) sweepCache(c *gin.Context) {
	var req sweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.OlderThanHours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "older_than_hours must be positive"})
		return
	}

	removed, err := s.cache.Sweep(time.Duration(req.OlderThanHours) * time.Hour)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// ---------------------------------------------------------------------------
// Backups
// ---------------------------------------------------------------------------

func (s *Server) listBackups(c *gin.Context) {
	snapshots := s.backups.List()
	c.JSON(http.StatusOK, gin.H{"backups": snapshots, "count": len(snapshots)})
}

func (s *Server) createBackup(c *gin.Context) {
	if err := s.guard.CheckRate(s.clientID(c)); err != nil {
		s.failQuota(c, err)
		return
	}

	entries, err := s.registry.Load()
	if err != nil {
		s.fail(c, err)
		return
	}
	id, err := s.backups.Create(entries, domain.SnapshotManual)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "ticker_count": len(entries)})
}

func (s *Server) restoreBackup(c *gin.Context) {
	if err := s.guard.CheckRate(s.clientID(c)); err != nil {
		s.failQuota(c, err)
		return
	}

	raw, err := s.backups.Restore(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	var entries map[string]domain.TickerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "snapshot payload is not a ticker registry"})
		return
	}
	if err := s.registry.Save(entries); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": len(entries)})
}

type pruneRequest struct {
	Kind string `json:"kind"`
	Keep int    `json:"keep"`
}

func (s *Server) pruneBackups(c *gin.Context) {
	var req pruneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	kind := domain.SnapshotKind(req.Kind)
	if kind != domain.SnapshotManual && kind != domain.SnapshotAuto {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be manual or auto"})
		return
	}

	removed, err := s.backups.Prune(kind, req.Keep)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

func (s *Server) getSymbolInfo(c *gin.Context) {
	info, err := s.fetcher.FetchInfo(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) getSymbolPrices(c *gin.Context) {
	period := c.DefaultQuery("period", "1y")
	series, err := s.fetcher.FetchSeries(c.Request.Context(), c.Param("symbol"), period)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}
