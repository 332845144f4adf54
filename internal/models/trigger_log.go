package models

import (
	"time"

	"gorm.io/datatypes"
)

type TriggerOutcome string

const (
	TriggerOutcomeTriggered TriggerOutcome = "triggered"
	TriggerOutcomeFailed    TriggerOutcome = "failed"
	TriggerOutcomeSkipped   TriggerOutcome = "skipped"
)

// TriggerLog is the append-only audit record of one trigger evaluation.
type TriggerLog struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	TriggerID uint64 `gorm:"not null;index"`
	GameID    uint64 `gorm:"not null;index"`

	Outcome TriggerOutcome `gorm:"type:varchar(20);not null;index"`
	Round   int            `gorm:"not null"`

	// Reason is the human-readable skip/failure reason; nil for triggered.
	Reason *string `gorm:"type:text"`

	// Response is the raw campaign API response for triggered/failed outcomes.
	Response datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (TriggerLog) TableName() string {
	return "trigger_logs"
}
