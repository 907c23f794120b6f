package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kasuganosora/mathmon/server/cache"
	"github.com/kasuganosora/mathmon/server/game/ability"
	"github.com/kasuganosora/mathmon/server/game/question"
	"github.com/kasuganosora/mathmon/server/game/record"
	"github.com/kasuganosora/mathmon/server/model"
)

// ---- achievements: cache set ----

func (s *Store) LoadAchievements(id string) (record.Set, error) {
	c, cancel := ctx()
	defer cancel()
	ids, err := s.cache.SMembers(c, achKey(id))
	if err != nil {
		return nil, fmt.Errorf("store: achievements of %s: %w", id, err)
	}
	set := record.Set{}
	if len(ids) > 0 {
		set.Unlock(ids...)
		return set, nil
	}
	var stored []string
	ok, err := s.loadRecord(c, id, model.RecordAchievements, &stored)
	if err != nil || !ok || len(stored) == 0 {
		return set, err
	}
	set.Unlock(stored...)
	if err := s.cache.SAdd(c, achKey(id), stored...); err != nil {
		s.logger.Warn("warm achievements failed", zap.String("player", id), zap.Error(err))
	}
	return set, nil
}

func (s *Store) SaveAchievements(id string, set record.Set) error {
	ids := set.IDs()
	if len(ids) == 0 {
		return nil
	}
	c, cancel := ctx()
	defer cancel()
	if err := s.cache.SAdd(c, achKey(id), ids...); err != nil {
		return fmt.Errorf("store: save achievements of %s: %w", id, err)
	}
	return s.saveRecord(c, id, model.RecordAchievements, ids)
}

// ---- encyclopedia: cache hash, enemy id → entry ----

func (s *Store) LoadEncyclopedia(id string) (record.Encyclopedia, error) {
	c, cancel := ctx()
	defer cancel()
	fields, err := s.cache.HGetAll(c, encKey(id))
	if err != nil {
		return nil, fmt.Errorf("store: encyclopedia of %s: %w", id, err)
	}
	enc := record.Encyclopedia{}
	if len(fields) > 0 {
		for enemy, raw := range fields {
			var e record.Entry
			if err := json.Unmarshal([]byte(raw), &e); err != nil {
				s.logger.Warn("corrupt encyclopedia entry", zap.String("player", id), zap.String("enemy", enemy))
				continue
			}
			enc[enemy] = e
		}
		return enc, nil
	}
	ok, err := s.loadRecord(c, id, model.RecordEncyclopedia, &enc)
	if err != nil || !ok {
		return record.Encyclopedia{}, err
	}
	s.cacheEncyclopedia(id, enc)
	return enc, nil
}

func (s *Store) cacheEncyclopedia(id string, enc record.Encyclopedia) error {
	c, cancel := ctx()
	defer cancel()
	for enemy, e := range enc {
		raw, _ := json.Marshal(e)
		if err := s.cache.HSet(c, encKey(id), enemy, string(raw)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveEncyclopedia(id string, enc record.Encyclopedia) error {
	if err := s.cacheEncyclopedia(id, enc); err != nil {
		return fmt.Errorf("store: save encyclopedia of %s: %w", id, err)
	}
	c, cancel := ctx()
	defer cancel()
	return s.saveRecord(c, id, model.RecordEncyclopedia, enc)
}

// ---- inventory: cache JSON value, absent means never initialised ----

func (s *Store) LoadInventory(id string) (map[string]int, error) {
	c, cancel := ctx()
	defer cancel()
	raw, err := s.cache.Get(c, invKey(id))
	switch {
	case err == nil:
		inv := map[string]int{}
		if err := json.Unmarshal([]byte(raw), &inv); err != nil {
			return nil, fmt.Errorf("store: decode inventory of %s: %w", id, err)
		}
		return inv, nil
	case !errors.Is(err, cache.ErrNotFound):
		return nil, fmt.Errorf("store: inventory of %s: %w", id, err)
	}
	inv := map[string]int{}
	ok, err := s.loadRecord(c, id, model.RecordInventory, &inv)
	if err != nil || !ok {
		return nil, err
	}
	data, _ := json.Marshal(inv)
	_ = s.cache.Set(c, invKey(id), string(data), 0)
	return inv, nil
}

func (s *Store) SaveInventory(id string, inv map[string]int) error {
	if inv == nil {
		inv = map[string]int{}
	}
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("store: encode inventory: %w", err)
	}
	c, cancel := ctx()
	defer cancel()
	if err := s.cache.Set(c, invKey(id), string(data), 0); err != nil {
		return fmt.Errorf("store: save inventory of %s: %w", id, err)
	}
	return s.saveRecord(c, id, model.RecordInventory, inv)
}

// ---- ability: cache hash, operator → state ----

func (s *Store) LoadAbility(id string) (map[question.Op]ability.OpState, error) {
	c, cancel := ctx()
	defer cancel()
	fields, err := s.cache.HGetAll(c, abilityKey(id))
	if err != nil {
		return nil, fmt.Errorf("store: ability of %s: %w", id, err)
	}
	snap := make(map[question.Op]ability.OpState, len(fields))
	if len(fields) > 0 {
		for op, raw := range fields {
			var st ability.OpState
			if err := json.Unmarshal([]byte(raw), &st); err != nil {
				s.logger.Warn("corrupt ability entry", zap.String("player", id), zap.String("op", op))
				continue
			}
			snap[question.Op(op)] = st
		}
		return snap, nil
	}
	ok, err := s.loadRecord(c, id, model.RecordAbility, &snap)
	if err != nil || !ok {
		return nil, err
	}
	return snap, s.cacheAbility(id, snap)
}

func (s *Store) cacheAbility(id string, snap map[question.Op]ability.OpState) error {
	c, cancel := ctx()
	defer cancel()
	for op, st := range snap {
		raw, _ := json.Marshal(st)
		if err := s.cache.HSet(c, abilityKey(id), string(op), string(raw)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveAbility(id string, snap map[question.Op]ability.OpState) error {
	if err := s.cacheAbility(id, snap); err != nil {
		return fmt.Errorf("store: save ability of %s: %w", id, err)
	}
	c, cancel := ctx()
	defer cancel()
	return s.saveRecord(c, id, model.RecordAbility, snap)
}
