package model

import (
	"time"

	"gorm.io/datatypes"
)

// SaveSlot holds the one resumable run of a player.
type SaveSlot struct {
	PlayerID string         `gorm:"primaryKey;size:64" json:"player_id"`
	RunID    string         `gorm:"size:36;not null" json:"run_id"`
	Version  int            `json:"version"`
	Mode     string         `gorm:"size:16" json:"mode"`
	Round    int            `json:"round"`
	Payload  datatypes.JSON `json:"payload"`
	SavedAt  time.Time      `gorm:"index" json:"saved_at"`
}
