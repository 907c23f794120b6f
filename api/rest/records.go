package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kasuganosora/mathmon/server/game/battle"
	"github.com/kasuganosora/mathmon/server/game/player"
	"github.com/kasuganosora/mathmon/server/game/record"
	"github.com/kasuganosora/mathmon/server/game/run"
	"github.com/kasuganosora/mathmon/server/journal"
	mw "github.com/kasuganosora/mathmon/server/middleware"
	"github.com/kasuganosora/mathmon/server/resource"
	"github.com/kasuganosora/mathmon/server/store"
)

// RecordsHandler serves the caller's persistent progress.
type RecordsHandler struct {
	store  *store.Store
	res    *resource.ResourceLoader
	logger *zap.Logger
}

// NewRecordsHandler creates a new RecordsHandler.
func NewRecordsHandler(s *store.Store, res *resource.ResourceLoader, logger *zap.Logger) *RecordsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordsHandler{store: s, res: res, logger: logger}
}

func (h *RecordsHandler) fail(c *gin.Context, what string, err error) {
	h.logger.Error("load "+what, zap.String("player", mw.GetPlayerID(c)), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// queryInt reads a positive integer query parameter clamped to max.
func queryInt(c *gin.Context, name string, def, max int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, max)
}

type achievementView struct {
	ID       string `json:"id"`
	Unlocked bool   `json:"unlocked"`
}

// Achievements handles GET /api/achievements.
func (h *RecordsHandler) Achievements(c *gin.Context) {
	set, err := h.store.LoadAchievements(mw.GetPlayerID(c))
	if err != nil {
		h.fail(c, "achievements", err)
		return
	}
	out := make([]achievementView, 0, len(record.AllAchievements))
	for _, id := range record.AllAchievements {
		out = append(out, achievementView{ID: id, Unlocked: set.Has(id)})
	}
	c.JSON(http.StatusOK, gin.H{"achievements": out, "unlocked": len(set.IDs())})
}

// Encyclopedia handles GET /api/encyclopedia.
func (h *RecordsHandler) Encyclopedia(c *gin.Context) {
	enc, err := h.store.LoadEncyclopedia(mw.GetPlayerID(c))
	if err != nil {
		h.fail(c, "encyclopedia", err)
		return
	}
	all := h.res.EnemyIDs()
	c.JSON(http.StatusOK, gin.H{
		"entries":  enc,
		"total":    len(all),
		"defeated": enc.DistinctDefeated(),
		"complete": enc.Complete(all),
		"perks":    record.PerksFor(enc),
	})
}

// Sessions handles GET /api/sessions?limit=N.
func (h *RecordsHandler) Sessions(c *gin.Context) {
	sessions, err := h.store.ListSessions(mw.GetPlayerID(c), queryInt(c, "limit", 20, 100))
	if err != nil {
		h.fail(c, "sessions", err)
		return
	}
	if sessions == nil {
		sessions = []record.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

type inventoryView struct {
	Item  *resource.Item `json:"item"`
	Count int            `json:"count"`
}

// Inventory handles GET /api/inventory. A player who never started a run
// sees the starting items.
func (h *RecordsHandler) Inventory(c *gin.Context) {
	inv, err := h.store.LoadInventory(mw.GetPlayerID(c))
	if err != nil {
		h.fail(c, "inventory", err)
		return
	}
	if inv == nil {
		inv = make(map[string]int, len(h.res.Starting))
		for _, si := range h.res.Starting {
			inv[si.ItemID] += si.Count
		}
	}
	out := make([]inventoryView, 0, len(inv))
	for _, it := range h.res.Items {
		if n := inv[it.ID]; n > 0 {
			out = append(out, inventoryView{Item: it, Count: n})
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

// Tower handles GET /api/leaderboard/tower?limit=N.
func (h *RecordsHandler) Tower(c *gin.Context) {
	top, err := h.store.TopScores(battle.BoardTower, queryInt(c, "limit", 10, 100))
	if err != nil {
		h.fail(c, "leaderboard", err)
		return
	}
	if top == nil {
		top = []battle.LeaderEntry{}
	}
	rank, err := h.store.Rank(battle.BoardTower, mw.GetPlayerID(c))
	if err != nil {
		h.logger.Warn("tower rank", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"top": top, "rank": rank})
}

// HealthHandler answers liveness checks.
type HealthHandler struct {
	db   *gorm.DB
	runs *run.Manager
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(db *gorm.DB, runs *run.Manager) *HealthHandler {
	return &HealthHandler{db: db, runs: runs}
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok", "runs": h.runs.Count()}
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err = sqlDB.PingContext(ctx)
			cancel()
		}
		if err != nil {
			resp["status"] = "degraded"
			resp["db"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// AdminHandler exposes operator endpoints under /api/admin.
type AdminHandler struct {
	runs     *run.Manager
	sessions *player.SessionManager
	journal  *journal.Service
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler. journal may be nil.
func NewAdminHandler(runs *run.Manager, sm *player.SessionManager, j *journal.Service, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{runs: runs, sessions: sm, journal: j, logger: logger}
}

// Runs handles GET /api/admin/runs.
func (h *AdminHandler) Runs(c *gin.Context) {
	online := 0
	if h.sessions != nil {
		online = h.sessions.Count()
	}
	c.JSON(http.StatusOK, gin.H{"runs": h.runs.Active(), "online": online})
}

// DropRun handles DELETE /api/admin/runs/:player.
func (h *AdminHandler) DropRun(c *gin.Context) {
	id := c.Param("player")
	if !h.runs.Remove(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": run.ErrNoRun.Error()})
		return
	}
	h.logger.Info("run dropped by operator", zap.String("player", id))
	c.JSON(http.StatusOK, gin.H{"message": "dropped"})
}

type pruneRequest struct {
	Days int `json:"days" binding:"required,min=1"`
}

// PruneJournal handles POST /api/admin/journal/prune.
func (h *AdminHandler) PruneJournal(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	var req pruneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cutoff := time.Now().AddDate(0, 0, -req.Days)
	n, err := h.journal.Prune(c.Request.Context(), cutoff)
	if err != nil {
		h.logger.Error("prune journal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
