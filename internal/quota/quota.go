// Package quota bounds registry mutations with a sliding-window request
// limiter persisted to a JSON file, plus static capacity ceilings. Whether a
// caller is throttled is recomputed from the window on every check; there is
// no stored throttled state.
package quota

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockdash/internal/domain"
	"stockdash/internal/util"
)

// Limits holds the rate-window and capacity policy.
type Limits struct {
	Window       time.Duration // sliding window size
	MaxPerWindow int           // allowed requests per entity per window
	MaxTotal     int           // global ticker ceiling
	MaxPerCaller int           // per-entity ticker ceiling
}

// DefaultLimits mirrors the shipped policy: 20 requests per 300s window,
// 500 tickers total, 50 per caller.
func DefaultLimits() Limits {
	return Limits{
		Window:       300 * time.Second,
		MaxPerWindow: 20,
		MaxTotal:     500,
		MaxPerCaller: 50,
	}
}

// Guard is the quota checker. It is safe for concurrent use within a single
// process; the window state lives in a JSON file keyed by entity ID.
type Guard struct {
	path   string
	limits Limits
	log    *slog.Logger

	mu       sync.Mutex
	entityID string // session identity, assigned on first Identify

	now func() time.Time
}

// New creates a Guard persisting window state at path.
func New(path string, limits Limits, log *slog.Logger) *Guard {
	return &Guard{
		path:   path,
		limits: limits,
		log:    log.With("component", "quota"),
		now:    time.Now,
	}
}

// Identify returns a stable pseudo-identity for this session, generating and
// caching one on first use. It is best-effort attribution, not a security
// boundary: a new session gets a new identity.
func (g *Guard) Identify() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.entityID == "" {
		g.entityID = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	return g.entityID
}

// CheckRate records one request for entityID if the sliding window has room,
// returning nil. When the entity already has MaxPerWindow requests in the
// window it returns a *domain.QuotaError carrying the wait until the oldest
// request expires. Stale timestamps across all entities are pruned as a side
// effect.
func (g *Guard) CheckRate(entityID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	windows := g.load()
	g.cleanup(windows, now)

	recent := windows[entityID]
	if len(recent) >= g.limits.MaxPerWindow {
		oldest := recent[0]
		for _, ts := range recent[1:] {
			if ts < oldest {
				oldest = ts
			}
		}
		wait := g.limits.Window - time.Duration((epoch(now)-oldest)*float64(time.Second))
		if wait < time.Second {
			wait = time.Second
		}
		return &domain.QuotaError{Scope: domain.QuotaRate, RetryAfter: wait}
	}

	windows[entityID] = append(recent, epoch(now))
	if err := g.save(windows); err != nil {
		return fmt.Errorf("persisting rate window: %w", err)
	}
	return nil
}

// CheckCapacity verifies that adding additional entries keeps both ceilings
// intact. The global ceiling is checked first, then the per-caller ceiling.
func (g *Guard) CheckCapacity(currentTotal, currentCaller, additional int) error {
	if currentTotal+additional > g.limits.MaxTotal {
		return &domain.QuotaError{Scope: domain.QuotaGlobal, Limit: g.limits.MaxTotal}
	}
	if currentCaller+additional > g.limits.MaxPerCaller {
		return &domain.QuotaError{Scope: domain.QuotaCaller, Limit: g.limits.MaxPerCaller}
	}
	return nil
}

// Status reports the entity's current window usage and the configured
// ceilings.
type Status struct {
	EntityID          string `json:"entity_id"`
	CurrentRequests   int    `json:"current_requests"`
	RemainingRequests int    `json:"remaining_requests"`
	MaxPerWindow      int    `json:"max_per_window"`
	WindowSeconds     int    `json:"window_seconds"`
	MaxTotal          int    `json:"max_total"`
	MaxPerCaller      int    `json:"max_per_caller"`
}

// Status returns the current quota status for entityID without recording a
// request.
func (g *Guard) Status(entityID string) Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	windows := g.load()
	g.cleanup(windows, g.now())

	current := len(windows[entityID])
	remaining := g.limits.MaxPerWindow - current
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		EntityID:          entityID,
		CurrentRequests:   current,
		RemainingRequests: remaining,
		MaxPerWindow:      g.limits.MaxPerWindow,
		WindowSeconds:     int(g.limits.Window.Seconds()),
		MaxTotal:          g.limits.MaxTotal,
		MaxPerCaller:      g.limits.MaxPerCaller,
	}
}

// ---------------------------------------------------------------------------
// Window persistence
// ---------------------------------------------------------------------------

// load reads the window file. Missing and corrupt files both degrade to an
// empty map.
func (g *Guard) load() map[string][]float64 {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return make(map[string][]float64)
	}
	var windows map[string][]float64
	if err := json.Unmarshal(data, &windows); err != nil {
		g.log.Warn("rate-limit file corrupt, starting empty", "error", err)
		return make(map[string][]float64)
	}
	return windows
}

func (g *Guard) save(windows map[string][]float64) error {
	data, err := json.Marshal(windows)
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(g.path, data, 0o644)
}

// cleanup drops timestamps older than the window across all entities, and
// drops entities whose windows emptied.
func (g *Guard) cleanup(windows map[string][]float64, now time.Time) {
	cutoff := epoch(now) - g.limits.Window.Seconds()
	for id, timestamps := range windows {
		recent := timestamps[:0]
		for _, ts := range timestamps {
			if ts > cutoff {
				recent = append(recent, ts)
			}
		}
		if len(recent) == 0 {
			delete(windows, id)
		} else {
			windows[id] = recent
		}
	}
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
