package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/kasuganosora/mathmon/server/model"
	"github.com/kasuganosora/mathmon/server/testutil"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	acc := &model.Account{PlayerID: "6f1c", Username: "test_user", PasswordHash: "hash", Status: model.AccountNormal}
	require.NoError(t, db.Create(acc).Error)
	assert.Greater(t, acc.ID, int64(0))

	var found model.Account
	require.NoError(t, db.First(&found, acc.ID).Error)
	assert.Equal(t, "test_user", found.Username)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sl := &model.SessionLog{
		RunID: "run-1", PlayerID: "6f1c", Mode: "single", StarterID: "slime",
		Correct: 3, Wrong: 1, Accuracy: 0.75,
		Events:    datatypes.JSON(`[{"kind":"answer"}]`),
		StartedAt: now, EndedAt: now.Add(time.Minute),
	}
	require.NoError(t, db.Create(sl).Error)

	require.NoError(t, db.Create(&model.SaveSlot{
		PlayerID: "6f1c", RunID: "run-2", Version: 1, Payload: datatypes.JSON(`{}`), SavedAt: now,
	}).Error)
	require.NoError(t, db.Create(&model.BoardScore{Board: "tower", PlayerID: "6f1c", Score: 7}).Error)
}

func TestAutoMigrate_EveryTableExists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	require.NoError(t, model.AutoMigrate(db), "migrating twice is a no-op")
	for _, m := range model.Tables() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
}

func TestAccount_Banned(t *testing.T) {
	assert.True(t, (&model.Account{Status: model.AccountBanned}).Banned())
	assert.False(t, (&model.Account{Status: model.AccountNormal}).Banned())
}

func TestPlayerRecord_Upsert(t *testing.T) {
	db := testutil.SetupTestDB(t)
	upsert := func(data string) {
		require.NoError(t, db.Clauses(clause.OnConflict{
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&model.PlayerRecord{
			PlayerID: "p1", Kind: model.RecordInventory, Data: datatypes.JSON(data),
		}).Error)
	}
	upsert(`{"potion":2}`)
	upsert(`{"potion":1}`)

	var rows []model.PlayerRecord
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"potion":1}`, string(rows[0].Data))
}
