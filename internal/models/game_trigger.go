package models

import (
	"time"
)

type TriggerType string

const (
	TriggerDeadlineReminder24h TriggerType = "deadline_reminder_24h"
	TriggerRoundStarted        TriggerType = "round_started"
	TriggerRoundEnded          TriggerType = "round_ended"
)

// GameTrigger configures one campaign trigger for one game. LastTriggeredRound
// is the idempotency watermark: the only persistent state of the evaluation
// state machine. It advances only after a successful dispatch.
type GameTrigger struct {
	ID     uint64      `gorm:"primaryKey;autoIncrement"`
	GameID uint64      `gorm:"not null;uniqueIndex:idx_game_triggers_game_type"`
	Type   TriggerType `gorm:"type:varchar(50);not null;uniqueIndex:idx_game_triggers_game_type"`

	CampaignID string `gorm:"type:varchar(100);not null"`
	IsActive   bool   `gorm:"not null;default:true;index"`

	LastTriggeredRound *int `gorm:"default:null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (GameTrigger) TableName() string {
	return "game_triggers"
}
