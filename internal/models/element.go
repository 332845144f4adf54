package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Element is one catalog item (typically a player) belonging to exactly one
// game. Rows are fully replaced on each sync, keyed by (game, external id).
type Element struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	GameID     uint64 `gorm:"not null;uniqueIndex:idx_elements_game_external"`
	ExternalID int64  `gorm:"not null;uniqueIndex:idx_elements_game_external"`

	Name     string `gorm:"type:text;not null"`
	Team     string `gorm:"type:text"`
	Position string `gorm:"type:varchar(50)"`

	Trend       decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	Growth      decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	TotalGrowth decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	Value       decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	Popularity  decimal.Decimal `gorm:"type:numeric(10,4);not null;default:0"`

	IsInjured   bool `gorm:"not null;default:false"`
	IsSuspended bool `gorm:"not null;default:false"`

	SyncedAt  time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Element) TableName() string {
	return "elements"
}
