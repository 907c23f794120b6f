package ws

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/kasuganosora/mathmon/server/game/battle"
	"github.com/kasuganosora/mathmon/server/game/player"
	"github.com/kasuganosora/mathmon/server/game/run"
)

// BattleHandlers maps battle packets onto the player's engine.
type BattleHandlers struct {
	runs   *run.Manager
	logger *zap.Logger
}

// NewBattleHandlers creates a new BattleHandlers.
func NewBattleHandlers(runs *run.Manager, logger *zap.Logger) *BattleHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BattleHandlers{runs: runs, logger: logger}
}

// RegisterHandlers registers all battle handlers on the router.
func (bh *BattleHandlers) RegisterHandlers(r *Router) {
	r.On("ping", bh.HandlePing)
	r.On("start", bh.HandleStart)
	r.On("resume", bh.HandleResume)
	r.On("snapshot", bh.HandleSnapshot)
	r.On("select_move", bh.HandleSelectMove)
	r.On("answer", bh.HandleAnswer)
	r.On("advance", bh.action("advance", (*battle.Engine).Advance))
	r.On("quit", bh.action("quit", (*battle.Engine).QuitGame))
	r.On("pause", bh.action("pause", (*battle.Engine).TogglePause))
	r.On("use_item", bh.HandleUseItem)
}

var errBadPayload = errors.New("bad payload")

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errBadPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadPayload
	}
	return nil
}

// Result answers every action packet. Rejected actions are not errors.
type Result struct {
	Action string `json:"action"`
	OK     bool   `json:"ok"`
}

func sendResult(s *player.PlayerSession, action string, ok bool) {
	s.SendJSON("result", Result{Action: action, OK: ok})
}

// withEngine runs fn against the live engine, reporting ErrNoRun.
func (bh *BattleHandlers) withEngine(s *player.PlayerSession, action string, fn func(e *battle.Engine) bool) error {
	e, err := bh.runs.Lookup(s.PlayerID)
	if err != nil {
		return err
	}
	sendResult(s, action, fn(e))
	return nil
}

func (bh *BattleHandlers) action(name string, fn func(e *battle.Engine) bool) HandlerFunc {
	return func(_ context.Context, s *player.PlayerSession, _ json.RawMessage) error {
		return bh.withEngine(s, name, fn)
	}
}

// HandlePing answers a heartbeat.
func (bh *BattleHandlers) HandlePing(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	var req struct {
		TS int64 `json:"ts"`
	}
	_ = json.Unmarshal(raw, &req)
	s.SendHeartbeatPong(req.TS)
	return nil
}

// HandleStart begins a run. The payload is battle.StartOptions.
func (bh *BattleHandlers) HandleStart(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	var opts battle.StartOptions
	if err := decode(raw, &opts); err != nil {
		return err
	}
	if _, err := bh.runs.Start(s.PlayerID, opts); err != nil {
		return err
	}
	sendResult(s, "start", true)
	return nil
}

// HandleResume restores the mid-run save.
func (bh *BattleHandlers) HandleResume(_ context.Context, s *player.PlayerSession, _ json.RawMessage) error {
	if err := bh.runs.Engine(s.PlayerID).ResumeGame(); err != nil {
		return err
	}
	sendResult(s, "resume", true)
	return nil
}

// Snapshot is the reply to a snapshot request.
type Snapshot struct {
	State   battle.State `json:"state"`
	HasSave bool         `json:"has_save"`
}

// HandleSnapshot sends the current state.
func (bh *BattleHandlers) HandleSnapshot(_ context.Context, s *player.PlayerSession, _ json.RawMessage) error {
	e := bh.runs.Engine(s.PlayerID)
	s.SendJSON("snapshot", Snapshot{State: e.Snapshot().Redacted(), HasSave: e.HasSave()})
	return nil
}

// HandleSelectMove picks a move by index.
func (bh *BattleHandlers) HandleSelectMove(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	var req struct {
		Index *int `json:"index"`
	}
	if err := decode(raw, &req); err != nil || req.Index == nil {
		return errBadPayload
	}
	return bh.withEngine(s, "select_move", func(e *battle.Engine) bool { return e.SelectMove(*req.Index) })
}

// HandleAnswer submits a choice by index.
func (bh *BattleHandlers) HandleAnswer(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	var req struct {
		Choice *int `json:"choice"`
	}
	if err := decode(raw, &req); err != nil || req.Choice == nil {
		return errBadPayload
	}
	return bh.withEngine(s, "answer", func(e *battle.Engine) bool { return e.OnAnswer(*req.Choice) })
}

// HandleUseItem consumes an inventory item.
func (bh *BattleHandlers) HandleUseItem(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	var req struct {
		ItemID string `json:"item_id"`
	}
	if err := decode(raw, &req); err != nil || req.ItemID == "" {
		return errBadPayload
	}
	return bh.withEngine(s, "use_item", func(e *battle.Engine) bool { return e.UseItem(req.ItemID) })
}
