package db

import (
	"github.com/gundersenerik/swush-manager/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Game{},
		&models.Element{},
		&models.UserGameStat{},
		&models.SyncLog{},
		&models.GameTrigger{},
		&models.TriggerLog{},
	)
}
