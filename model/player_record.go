package model

import (
	"time"

	"gorm.io/datatypes"
)

// Record kinds stored in player_records.
const (
	RecordAchievements = "achievements"
	RecordEncyclopedia = "encyclopedia"
	RecordInventory    = "inventory"
	RecordAbility      = "ability"
)

// PlayerRecord is the durable copy of one per-player document.
type PlayerRecord struct {
	PlayerID  string         `gorm:"primaryKey;size:64" json:"player_id"`
	Kind      string         `gorm:"primaryKey;size:16" json:"kind"`
	Data      datatypes.JSON `json:"data"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// BoardScore is the durable copy of a leaderboard. Only the best score per
// player and board is kept.
type BoardScore struct {
	Board     string    `gorm:"primaryKey;size:16" json:"board"`
	PlayerID  string    `gorm:"primaryKey;size:64" json:"player_id"`
	Score     int       `gorm:"index;not null" json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}
