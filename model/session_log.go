package model

import (
	"time"

	"gorm.io/datatypes"
)

// SessionLog is one finalized run. Events holds the full answer/battle
// log as JSON.
type SessionLog struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID         string         `gorm:"uniqueIndex;size:36;not null" json:"run_id"`
	PlayerID      string         `gorm:"index:idx_session_player;size:64;not null" json:"player_id"`
	Mode          string         `gorm:"size:16;not null" json:"mode"`
	StarterID     string         `gorm:"size:32" json:"starter_id"`
	Completed     bool           `json:"completed"`
	RoundsCleared int            `json:"rounds_cleared"`
	Correct       int            `json:"correct"`
	Wrong         int            `json:"wrong"`
	Accuracy      float64        `json:"accuracy"`
	MaxStreak     int            `json:"max_streak"`
	DamageTaken   int            `json:"damage_taken"`
	DurationMs    int64          `json:"duration_ms"`
	Events        datatypes.JSON `json:"events"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       time.Time      `gorm:"index:idx_session_player" json:"ended_at"`
	CreatedAt     time.Time      `gorm:"autoCreateTime:milli" json:"created_at"`
}
