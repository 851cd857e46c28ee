// Package httpapi exposes the dashboard management API over HTTP: ticker
// registry mutations gated by the quota guard, cache maintenance, and backup
// operations. This is the collaborator surface the UI layer calls; all
// domain rules live in the services underneath.
package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockdash/internal/backup"
	"stockdash/internal/cache"
	"stockdash/internal/domain"
	"stockdash/internal/marketdata"
	"stockdash/internal/quota"
	"stockdash/internal/registry"
)

// Server wires the service objects into a gin engine. Construct once at
// process start and inject the dependencies; nothing here is global.
type Server struct {
	registry *registry.Registry
	guard    *quota.Guard
	cache    *cache.Store
	backups  *backup.Manager
	fetcher  marketdata.Fetcher // nil when no provider is configured
	log      *slog.Logger

	engine *gin.Engine
}

// New creates the API server and registers all routes.
func New(
	reg *registry.Registry,
	guard *quota.Guard,
	cacheStore *cache.Store,
	backups *backup.Manager,
	fetcher marketdata.Fetcher,
	log *slog.Logger,
	debug bool,
) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		registry: reg,
		guard:    guard,
		cache:    cacheStore,
		backups:  backups,
		fetcher:  fetcher,
		log:      log.With("component", "httpapi"),
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.getHealth)

	api.GET("/tickers", s.listTickers)
	api.POST("/tickers", s.addTicker)
	api.PUT("/tickers/:symbol", s.updateTicker)
	api.DELETE("/tickers/:symbol", s.removeTicker)
	api.GET("/registry/info", s.getRegistryInfo)

	api.GET("/security/status", s.getSecurityStatus)

	api.GET("/cache/stats", s.getCacheStats)
	api.POST("/cache/sweep", s.sweepCache)

	api.GET("/backups", s.listBackups)
	api.POST("/backups", s.createBackup)
	api.POST("/backups/:id/restore", s.restoreBackup)
	api.POST("/backups/prune", s.pruneBackups)

	if s.fetcher != nil {
		api.GET("/symbols/:symbol/info", s.getSymbolInfo)
		api.GET("/symbols/:symbol/prices", s.getSymbolPrices)
	}
}

// Run starts the HTTP listener and blocks.
func (s *Server) Run(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.log.Info("starting http api", "addr", addr)
	return s.engine.Run(addr)
}

// Handler exposes the engine as an http.Handler for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// clientID resolves the entity used for quota accounting: an explicit
// X-Client-ID header wins, then the network address, then the session
// identity. Best-effort attribution only.
func (s *Server) clientID(c *gin.Context) string {
	if id := c.GetHeader("X-Client-ID"); id != "" {
		return id
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return s.guard.Identify()
}

// fail maps the error taxonomy onto HTTP statuses: quota errors to 429,
// validation to 400, not-found to 404, everything else to 500.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case domain.IsQuota(err):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
