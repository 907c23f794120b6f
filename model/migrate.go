package model

import (
	"fmt"

	"gorm.io/gorm"
)

// Tables returns every persisted model in migration order.
func Tables() []any {
	return []any{
		&Account{},
		&PlayerRecord{},
		&SaveSlot{},
		&SessionLog{},
		&BoardScore{},
	}
}

// AutoMigrate creates or alters the tables in Tables.
func AutoMigrate(db *gorm.DB) error {
	for _, m := range Tables() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("model: migrate %T: %w", m, err)
		}
	}
	return nil
}
