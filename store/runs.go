package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasuganosora/mathmon/server/cache"
	"github.com/kasuganosora/mathmon/server/game/battle"
	"github.com/kasuganosora/mathmon/server/game/record"
	"github.com/kasuganosora/mathmon/server/model"
)

// ---- mid-run saves ----

func decodeSave(raw []byte) (*battle.SaveSnapshot, error) {
	var snap battle.SaveSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) LoadSave(id string) (*battle.SaveSnapshot, error) {
	c, cancel := ctx()
	defer cancel()
	raw, err := s.cache.Get(c, saveKey(id))
	switch {
	case err == nil:
		snap, err := decodeSave([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("store: decode save of %s: %w", id, err)
		}
		return snap, nil
	case !errors.Is(err, cache.ErrNotFound):
		return nil, fmt.Errorf("store: save of %s: %w", id, err)
	}
	if s.db == nil {
		return nil, nil
	}
	var slot model.SaveSlot
	err = s.db.WithContext(c).Where("player_id = ?", id).First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: save slot of %s: %w", id, err)
	}
	snap, err := decodeSave(slot.Payload)
	if err != nil {
		return nil, fmt.Errorf("store: decode save slot of %s: %w", id, err)
	}
	_ = s.cache.Set(c, saveKey(id), string(slot.Payload), 0)
	return snap, nil
}

func (s *Store) StoreSave(id string, snap *battle.SaveSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: encode save: %w", err)
	}
	c, cancel := ctx()
	defer cancel()
	if err := s.cache.Set(c, saveKey(id), string(data), 0); err != nil {
		return fmt.Errorf("store: save of %s: %w", id, err)
	}
	if s.db == nil {
		return nil
	}
	err = s.db.WithContext(c).Clauses(clause.OnConflict{
		UpdateAll: true,
	}).Create(&model.SaveSlot{
		PlayerID: id,
		RunID:    snap.RunID,
		Version:  snap.Version,
		Mode:     string(snap.Options.Mode),
		Round:    snap.State.Round,
		Payload:  datatypes.JSON(data),
		SavedAt:  snap.SavedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("store: save slot of %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteSave(id string) error {
	c, cancel := ctx()
	defer cancel()
	if err := s.cache.Del(c, saveKey(id)); err != nil {
		return fmt.Errorf("store: delete save of %s: %w", id, err)
	}
	if s.db == nil {
		return nil
	}
	return s.db.WithContext(c).Where("player_id = ?", id).Delete(&model.SaveSlot{}).Error
}

// ---- sessions: cache list of summaries, full logs in the journal ----

func (s *Store) AppendSession(id string, sum record.Summary) error {
	if s.journal != nil {
		s.journal.Record(sum)
	}
	brief := sum
	brief.Events = nil
	data, err := json.Marshal(brief)
	if err != nil {
		return fmt.Errorf("store: encode session: %w", err)
	}
	c, cancel := ctx()
	defer cancel()
	if err := s.cache.LPush(c, sessionKey(id), string(data)); err != nil {
		return fmt.Errorf("store: push session of %s: %w", id, err)
	}
	return s.cache.LTrim(c, sessionKey(id), 0, int64(s.keep-1))
}

// ListSessions returns summaries newest first. Cached entries carry no
// events; journal entries do.
func (s *Store) ListSessions(id string, limit int) ([]record.Summary, error) {
	if limit <= 0 || limit > s.keep {
		limit = s.keep
	}
	c, cancel := ctx()
	defer cancel()
	raws, err := s.cache.LRange(c, sessionKey(id), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("store: sessions of %s: %w", id, err)
	}
	if len(raws) == 0 && s.journal != nil {
		return s.journal.List(c, id, limit)
	}
	out := make([]record.Summary, 0, len(raws))
	for _, raw := range raws {
		var sum record.Summary
		if err := json.Unmarshal([]byte(raw), &sum); err != nil {
			s.logger.Warn("corrupt session entry", zap.String("player", id), zap.Error(err))
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}

// ---- leaderboards: cache sorted set, table copy ----

func (s *Store) RecordScore(board, id string, score int) error {
	c, cancel := ctx()
	defer cancel()
	changed, err := s.cache.ZAddMax(c, boardKey(board), float64(score), id)
	if err != nil {
		return fmt.Errorf("store: record %s score: %w", board, err)
	}
	if !changed || s.db == nil {
		return nil
	}
	return s.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		var row model.BoardScore
		err := tx.Where("board = ? AND player_id = ?", board, id).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&model.BoardScore{Board: board, PlayerID: id, Score: score}).Error
		case err != nil:
			return err
		case row.Score >= score:
			return nil
		}
		return tx.Model(&row).Update("score", score).Error
	})
}

func (s *Store) TopScores(board string, n int) ([]battle.LeaderEntry, error) {
	if n <= 0 {
		n = 10
	}
	c, cancel := ctx()
	defer cancel()
	top, err := s.cache.ZRevRangeWithScores(c, boardKey(board), 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("store: top %s: %w", board, err)
	}
	if len(top) == 0 && s.db != nil {
		return s.refillBoard(board, n)
	}
	out := make([]battle.LeaderEntry, 0, len(top))
	for _, z := range top {
		out = append(out, battle.LeaderEntry{PlayerID: z.Member, Score: int(z.Score)})
	}
	return out, nil
}

// refillBoard loads a board from the table into a cold cache.
func (s *Store) refillBoard(board string, n int) ([]battle.LeaderEntry, error) {
	c, cancel := ctx()
	defer cancel()
	var rows []model.BoardScore
	err := s.db.WithContext(c).
		Where("board = ?", board).
		Order("score DESC").Order("player_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: load board %s: %w", board, err)
	}
	out := make([]battle.LeaderEntry, 0, min(n, len(rows)))
	for i, r := range rows {
		if _, err := s.cache.ZAddMax(c, boardKey(board), float64(r.Score), r.PlayerID); err != nil {
			s.logger.Warn("warm board failed", zap.String("board", board), zap.Error(err))
		}
		if i < n {
			out = append(out, battle.LeaderEntry{PlayerID: r.PlayerID, Score: r.Score})
		}
	}
	return out, nil
}

// Rank returns the 1-based position of id on a board, or 0 when absent.
func (s *Store) Rank(board, id string) (int, error) {
	c, cancel := ctx()
	defer cancel()
	all, err := s.cache.ZRevRangeWithScores(c, boardKey(board), 0, -1)
	if err != nil {
		return 0, err
	}
	for i, z := range all {
		if z.Member == id {
			return i + 1, nil
		}
	}
	return 0, nil
}

// playerKeys lists every cache key holding id's data.
func playerKeys(id string) []string {
	return []string{achKey(id), encKey(id), invKey(id), abilityKey(id), saveKey(id), sessionKey(id)}
}

// Evict drops a player's cached documents. The database copy is kept and
// refills the cache on next load.
func (s *Store) Evict(id string) error {
	c, cancel := ctx()
	defer cancel()
	return s.cache.Del(c, playerKeys(id)...)
}
