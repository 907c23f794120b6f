package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/mathmon/server/game/battle"
	"github.com/kasuganosora/mathmon/server/game/run"
	mw "github.com/kasuganosora/mathmon/server/middleware"
	"github.com/kasuganosora/mathmon/server/resource"
)

// BattleHandler drives the caller's engine.
type BattleHandler struct {
	runs   *run.Manager
	res    *resource.ResourceLoader
	logger *zap.Logger
}

// NewBattleHandler creates a new BattleHandler.
func NewBattleHandler(runs *run.Manager, res *resource.ResourceLoader, logger *zap.Logger) *BattleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BattleHandler{runs: runs, res: res, logger: logger}
}

// Starters handles GET /api/starters.
func (h *BattleHandler) Starters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"starters": h.res.Starters})
}

type startRequest struct {
	Mode      battle.Mode `json:"mode"`
	StarterID string      `json:"starter_id" binding:"required"`
	PartnerID string      `json:"partner_id"`
	Tier      battle.Tier `json:"tier"`
	Timed     bool        `json:"timed"`
	Seed      uint32      `json:"seed"`
	DailyKey  string      `json:"daily_key"`
}

// Start handles POST /api/battles.
func (h *BattleHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := h.runs.Start(mw.GetPlayerID(c), battle.StartOptions{
		Mode:      req.Mode,
		StarterID: req.StarterID,
		PartnerID: req.PartnerID,
		Tier:      req.Tier,
		Timed:     req.Timed,
		Seed:      req.Seed,
		DailyKey:  req.DailyKey,
	})
	switch {
	case errors.Is(err, battle.ErrUnknownStarter), errors.Is(err, battle.ErrUnknownMode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("start run", zap.String("player", mw.GetPlayerID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"state": e.Snapshot().Redacted()})
}

// Resume handles POST /api/battles/resume.
func (h *BattleHandler) Resume(c *gin.Context) {
	e := h.runs.Engine(mw.GetPlayerID(c))
	if err := e.ResumeGame(); err != nil {
		if errors.Is(err, battle.ErrNoSave) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": e.Snapshot().Redacted()})
}

// Current handles GET /api/battles/current.
func (h *BattleHandler) Current(c *gin.Context) {
	e := h.runs.Engine(mw.GetPlayerID(c))
	s := e.Snapshot()
	resp := gin.H{"state": s.Redacted(), "has_save": e.HasSave()}
	if s.Screen == battle.ScreenBattle {
		pows := make([]int, len(s.MLvls))
		effs := make([]float64, len(s.MLvls))
		for i := range s.MLvls {
			pows[i] = e.GetPow(i)
			effs[i] = e.DualEff(i)
		}
		resp["pow"] = pows
		resp["eff"] = effs
	}
	c.JSON(http.StatusOK, resp)
}

// act runs fn against the caller's live engine. A rejected action answers
// 409 with the unchanged state.
func (h *BattleHandler) act(c *gin.Context, fn func(e *battle.Engine) bool) {
	e, err := h.runs.Lookup(mw.GetPlayerID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if !fn(e) {
		c.JSON(http.StatusConflict, gin.H{"error": "action not allowed", "state": e.Snapshot().Redacted()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": e.Snapshot().Redacted()})
}

type indexRequest struct {
	Index *int `json:"index" binding:"required"`
}

// Select handles POST /api/battles/current/select.
func (h *BattleHandler) Select(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.act(c, func(e *battle.Engine) bool { return e.SelectMove(*req.Index) })
}

type answerRequest struct {
	Choice *int `json:"choice" binding:"required"`
}

// Answer handles POST /api/battles/current/answer.
func (h *BattleHandler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.act(c, func(e *battle.Engine) bool { return e.OnAnswer(*req.Choice) })
}

// Advance handles POST /api/battles/current/advance.
func (h *BattleHandler) Advance(c *gin.Context) {
	h.act(c, (*battle.Engine).Advance)
}

// Quit handles POST /api/battles/current/quit.
func (h *BattleHandler) Quit(c *gin.Context) {
	h.act(c, (*battle.Engine).QuitGame)
}

// Pause handles POST /api/battles/current/pause.
func (h *BattleHandler) Pause(c *gin.Context) {
	h.act(c, (*battle.Engine).TogglePause)
}

type itemRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

// Item handles POST /api/battles/current/item.
func (h *BattleHandler) Item(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.act(c, func(e *battle.Engine) bool { return e.UseItem(req.ItemID) })
}
