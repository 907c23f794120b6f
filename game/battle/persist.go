package battle

import (
	"go.uber.org/zap"

	"github.com/kasuganosora/mathmon/server/game/record"
)

// Persistence helpers. Read failures fall back to empty values, write
// failures are logged; neither interrupts a battle.

func (e *Engine) loadAchievements() record.Set {
	s, err := e.repos.Achievements.LoadAchievements(e.playerID)
	if err != nil {
		e.logger.Warn("load achievements failed", zap.Error(err))
	}
	if s == nil {
		s = record.Set{}
	}
	return s
}

func (e *Engine) loadEncyclopedia() record.Encyclopedia {
	enc, err := e.repos.Encyclopedia.LoadEncyclopedia(e.playerID)
	if err != nil {
		e.logger.Warn("load encyclopedia failed", zap.Error(err))
	}
	if enc == nil {
		enc = record.Encyclopedia{}
	}
	return enc
}

func (e *Engine) saveEncyclopedia() {
	if err := e.repos.Encyclopedia.SaveEncyclopedia(e.playerID, e.run.enc); err != nil {
		e.logger.Warn("save encyclopedia failed", zap.Error(err))
	}
}

// loadInventory returns the stored inventory, or the starting items for a
// player who never had one.
func (e *Engine) loadInventory() map[string]int {
	inv, err := e.repos.Inventory.LoadInventory(e.playerID)
	if err != nil {
		e.logger.Warn("load inventory failed", zap.Error(err))
	}
	if inv != nil {
		return inv
	}
	inv = make(map[string]int, len(e.res.Starting))
	for _, si := range e.res.Starting {
		inv[si.ItemID] += si.Count
	}
	e.saveInventory(inv)
	return inv
}

func (e *Engine) saveInventory(inv map[string]int) {
	if err := e.repos.Inventory.SaveInventory(e.playerID, inv); err != nil {
		e.logger.Warn("save inventory failed", zap.Error(err))
	}
}

func (e *Engine) saveSnapshot() {
	run := e.run
	if run == nil {
		return
	}
	snap := &SaveSnapshot{
		Version:    SaveVersion,
		RunID:      run.id,
		Options:    run.opts,
		State:      e.latest,
		RNGState:   e.rng.State(),
		Encounters: append([]Encounter(nil), run.roster...),
		Log:        run.log.State(),
		StartedAt:  run.startedAt,
		SavedAt:    e.clock.Now(),
	}
	if err := e.repos.Saves.StoreSave(e.playerID, snap); err != nil {
		e.logger.Warn("store save failed", zap.Error(err))
	}
}

func (e *Engine) deleteSave() {
	if err := e.repos.Saves.DeleteSave(e.playerID); err != nil {
		e.logger.Warn("delete save failed", zap.Error(err))
	}
}

// HasSave reports whether a resumable run exists.
func (e *Engine) HasSave() bool {
	snap, err := e.repos.Saves.LoadSave(e.playerID)
	return err == nil && snap != nil && snap.Version == SaveVersion
}
