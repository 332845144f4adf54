package repository

import (
	"context"

	"github.com/gundersenerik/swush-manager/internal/models"
)

// Store is the persistence contract consumed by the sync and trigger engines
// and by the read accessors the public API is built on. All writes are keyed
// upserts or appends; row-level atomicity is the store's concern.
type Store interface {
	// Games. Sync-state fields are mutated only through UpdateGameSyncState;
	// config fields belong to the admin surface and are not touched here.
	ListActiveGames(ctx context.Context) ([]models.Game, error)
	GetGameByKey(ctx context.Context, gameKey string) (*models.Game, error)
	ListGames(ctx context.Context, params ListGamesParams) ([]models.Game, error)
	UpdateGameSyncState(ctx context.Context, game *models.Game) error

	// Elements: fully replaced by keyed upsert, never patched.
	UpsertElements(ctx context.Context, items []models.Element) error
	ListElementsByGameID(ctx context.Context, gameID uint64) ([]models.Element, error)

	// User stats: upserted per page so partial progress is durable.
	UpsertUserStats(ctx context.Context, items []models.UserGameStat) error
	GetUserStat(ctx context.Context, gameID uint64, externalUserID string) (*models.UserGameStat, error)
	ListUserStats(ctx context.Context, params ListUserStatsParams) ([]models.UserGameStat, error)
	CountUserStats(ctx context.Context, gameID uint64) (int64, error)

	// Sync logs: append-only; a row is created started and finalized once.
	CreateSyncLog(ctx context.Context, item *models.SyncLog) error
	FinalizeSyncLog(ctx context.Context, item *models.SyncLog) error
	ListSyncLogs(ctx context.Context, gameID uint64, limit int) ([]models.SyncLog, error)

	// Triggers: the watermark is the only field the evaluator mutates.
	ListActiveTriggers(ctx context.Context, gameID uint64) ([]models.GameTrigger, error)
	AdvanceTriggerWatermark(ctx context.Context, triggerID uint64, round int) error

	// Trigger logs: append-only.
	CreateTriggerLog(ctx context.Context, item *models.TriggerLog) error
	ListTriggerLogs(ctx context.Context, gameID uint64, limit int) ([]models.TriggerLog, error)
}

type ListGamesParams struct {
	Sport      *string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type ListUserStatsParams struct {
	GameID uint64
	Limit  int
	Offset int
}
