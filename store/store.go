// Package store implements the battle persistence ports. Hot data lives in
// the cache (Redis or in-process); every write is mirrored to the database
// so a cold cache can be refilled.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasuganosora/mathmon/server/cache"
	"github.com/kasuganosora/mathmon/server/game/battle"
	"github.com/kasuganosora/mathmon/server/journal"
	"github.com/kasuganosora/mathmon/server/model"
)

const opTimeout = 2 * time.Second

// Store satisfies every battle repository interface.
type Store struct {
	cache   cache.Cache
	db      *gorm.DB
	journal *journal.Service
	keep    int
	logger  *zap.Logger
}

// Options configure a Store. DB and Journal may be nil, in which case the
// cache is the only copy.
type Options struct {
	DB      *gorm.DB
	Journal *journal.Service
	// SessionKeep bounds the cached session list per player.
	SessionKeep int
	Logger      *zap.Logger
}

// New returns a Store over c.
func New(c cache.Cache, opts Options) *Store {
	if opts.SessionKeep <= 0 {
		opts.SessionKeep = 50
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{
		cache:   c,
		db:      opts.DB,
		journal: opts.Journal,
		keep:    opts.SessionKeep,
		logger:  opts.Logger.Named("store"),
	}
}

// Repositories wires s into every port.
func (s *Store) Repositories() battle.Repositories {
	return battle.Repositories{
		Achievements: s,
		Encyclopedia: s,
		Sessions:     s,
		Inventory:    s,
		Saves:        s,
		Ability:      s,
		Leaderboard:  s,
	}
}

func ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

func achKey(id string) string     { return "ach:" + id }
func encKey(id string) string     { return "enc:" + id }
func invKey(id string) string     { return "inv:" + id }
func abilityKey(id string) string { return "ability:" + id }
func saveKey(id string) string    { return "save:" + id }
func sessionKey(id string) string { return "sessions:" + id }
func boardKey(b string) string    { return "board:" + b }

// loadRecord reads the durable copy of a document. ok is false when there
// is no database or no row.
func (s *Store) loadRecord(c context.Context, playerID, kind string, out any) (bool, error) {
	if s.db == nil {
		return false, nil
	}
	var row model.PlayerRecord
	err := s.db.WithContext(c).
		Where("player_id = ? AND kind = ?", playerID, kind).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: load %s of %s: %w", kind, playerID, err)
	}
	if err := json.Unmarshal(row.Data, out); err != nil {
		return false, fmt.Errorf("store: decode %s of %s: %w", kind, playerID, err)
	}
	return true, nil
}

func (s *Store) saveRecord(c context.Context, playerID, kind string, v any) error {
	if s.db == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", kind, err)
	}
	err = s.db.WithContext(c).Clauses(clause.OnConflict{
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&model.PlayerRecord{
		PlayerID: playerID,
		Kind:     kind,
		Data:     datatypes.JSON(data),
	}).Error
	if err != nil {
		return fmt.Errorf("store: save %s of %s: %w", kind, playerID, err)
	}
	return nil
}
