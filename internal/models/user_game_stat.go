package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// UserGameStat is one row per (external user, game). Upserted per page during
// ingestion so partial progress survives a failed run.
type UserGameStat struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	GameID         uint64 `gorm:"not null;uniqueIndex:idx_user_game_stats_game_user"`
	ExternalUserID string `gorm:"type:varchar(100);not null;uniqueIndex:idx_user_game_stats_game_user"`

	TeamName string `gorm:"type:text"`

	TotalScore decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	RoundScore decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	TotalRank  int             `gorm:"not null;default:0"`
	RoundRank  int             `gorm:"not null;default:0"`

	// Lineup holds the ordered element external ids of the user's team.
	Lineup datatypes.JSON `gorm:"type:jsonb"`

	InjuredCount   int `gorm:"not null;default:0"`
	SuspendedCount int `gorm:"not null;default:0"`

	SyncedAt  time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (UserGameStat) TableName() string {
	return "user_game_stats"
}
