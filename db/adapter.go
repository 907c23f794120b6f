package db

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasuganosora/mathmon/server/config"
	dbmysql "github.com/kasuganosora/mathmon/server/db/mysql"
	dbsqlite "github.com/kasuganosora/mathmon/server/db/sqlite"
)

const (
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
	ModeMemory = "memory"
)

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMemory:
		// Each memory database is private to the process and this Open call.
		return dbsqlite.OpenMemory(uuid.NewString())
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
