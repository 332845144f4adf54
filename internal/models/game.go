package models

import (
	"time"
)

// RoundState mirrors the lifecycle states reported by the partner API.
type RoundState string

const (
	RoundStatePending     RoundState = "pending"
	RoundStateCurrentOpen RoundState = "current_open"
	RoundStateEnded       RoundState = "ended"
	RoundStateEndedLatest RoundState = "ended_latest"
)

// Game is one fantasy game tracked by the manager. Games are soft-deleted via
// IsActive and never removed; GameKey is unique among active games.
type Game struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	GameKey    string `gorm:"type:varchar(100);not null;index"`
	ExternalID int64  `gorm:"not null;index"`
	Subsite    string `gorm:"type:varchar(100);not null"`
	Name       string `gorm:"type:text;not null"`
	Sport      string `gorm:"type:varchar(50);index"`

	SyncIntervalMinutes int `gorm:"not null;default:60"`

	CurrentRound int        `gorm:"not null;default:0"`
	TotalRounds  int        `gorm:"not null;default:0"`
	RoundState   RoundState `gorm:"type:varchar(20)"`

	CurrentRoundStart *time.Time `gorm:"type:timestamptz"`
	CurrentRoundEnd   *time.Time `gorm:"type:timestamptz"`
	NextTradeDeadline *time.Time `gorm:"type:timestamptz"`

	LastSyncedAt *time.Time `gorm:"type:timestamptz;index"`
	UsersTotal   int        `gorm:"not null;default:0"`
	IsActive     bool       `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Game) TableName() string {
	return "games"
}
