package models

import (
	"time"

	"gorm.io/datatypes"
)

type SyncTrigger string

const (
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerScheduled SyncTrigger = "scheduled"
)

type SyncStatus string

const (
	SyncStatusStarted   SyncStatus = "started"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncLog is the append-only audit record of one orchestration run. A row is
// created "started" when the run begins and finalized exactly once; it is
// never mutated afterward.
type SyncLog struct {
	ID     uint64      `gorm:"primaryKey;autoIncrement"`
	RunID  string      `gorm:"type:uuid;not null;uniqueIndex"`
	GameID uint64      `gorm:"not null;index"`
	Kind   SyncTrigger `gorm:"type:varchar(20);not null"`
	Status SyncStatus  `gorm:"type:varchar(20);not null;index"`

	ElementsSynced int `gorm:"not null;default:0"`
	UsersSynced    int `gorm:"not null;default:0"`

	Error *string `gorm:"type:text"`

	// Stats carries per-run detail: skipped element batches, failed user
	// pages, page counts.
	Stats datatypes.JSON `gorm:"type:jsonb"`

	StartedAt  time.Time  `gorm:"type:timestamptz;not null;index"`
	FinishedAt *time.Time `gorm:"type:timestamptz"`
}

func (SyncLog) TableName() string {
	return "sync_logs"
}
