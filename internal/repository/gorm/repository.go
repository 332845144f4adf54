package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gundersenerik/swush-manager/internal/models"
	"github.com/gundersenerik/swush-manager/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- games -------------------------------------------------------------------

func (s *Store) ListActiveGames(ctx context.Context) ([]models.Game, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Game
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("game_key asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetGameByKey(ctx context.Context, gameKey string) (*models.Game, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Game
	err := s.db.WithContext(ctx).
		Where("game_key = ? AND is_active = ?", gameKey, true).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListGames(ctx context.Context, params repository.ListGamesParams) ([]models.Game, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Game{})
	if params.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if params.Sport != nil && *params.Sport != "" {
		query = query.Where("sport = ?", *params.Sport)
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Game
	if err := query.Order("game_key asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateGameSyncState persists only the fields the orchestrator owns; config
// fields (cadence, active flag, campaign setup) are left alone.
func (s *Store) UpdateGameSyncState(ctx context.Context, game *models.Game) error {
	if s == nil || s.db == nil || game == nil || game.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("id = ?", game.ID).
		Updates(map[string]any{
			"name":                game.Name,
			"external_id":         game.ExternalID,
			"current_round":       game.CurrentRound,
			"total_rounds":        game.TotalRounds,
			"round_state":         game.RoundState,
			"current_round_start": game.CurrentRoundStart,
			"current_round_end":   game.CurrentRoundEnd,
			"next_trade_deadline": game.NextTradeDeadline,
			"last_synced_at":      game.LastSyncedAt,
			"users_total":         game.UsersTotal,
		}).Error
}

// --- elements ----------------------------------------------------------------

func (s *Store) UpsertElements(ctx context.Context, items []models.Element) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "game_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"team",
			"position",
			"trend",
			"growth",
			"total_growth",
			"value",
			"popularity",
			"is_injured",
			"is_suspended",
			"synced_at",
			"updated_at",
		}),
	}).Create(&items).Error
}

func (s *Store) ListElementsByGameID(ctx context.Context, gameID uint64) ([]models.Element, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Element
	if err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("external_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- user stats --------------------------------------------------------------

func (s *Store) UpsertUserStats(ctx context.Context, items []models.UserGameStat) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "game_id"}, {Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"team_name",
			"total_score",
			"round_score",
			"total_rank",
			"round_rank",
			"lineup",
			"injured_count",
			"suspended_count",
			"synced_at",
			"updated_at",
		}),
	}).Create(&items).Error
}

func (s *Store) GetUserStat(ctx context.Context, gameID uint64, externalUserID string) (*models.UserGameStat, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.UserGameStat
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND external_user_id = ?", gameID, externalUserID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListUserStats(ctx context.Context, params repository.ListUserStatsParams) ([]models.UserGameStat, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.UserGameStat
	if err := s.db.WithContext(ctx).
		Where("game_id = ?", params.GameID).
		Order("total_rank asc").
		Limit(limit).Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountUserStats(ctx context.Context, gameID uint64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.UserGameStat{}).
		Where("game_id = ?", gameID).
		Count(&count).Error
	return count, err
}

// --- sync logs ---------------------------------------------------------------

func (s *Store) CreateSyncLog(ctx context.Context, item *models.SyncLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

// FinalizeSyncLog writes the terminal status and counts of a run. It only
// transitions rows still in started state, so a finalized row stays immutable.
func (s *Store) FinalizeSyncLog(ctx context.Context, item *models.SyncLog) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	now := time.Now().UTC()
	if item.FinishedAt == nil {
		item.FinishedAt = &now
	}
	return s.db.WithContext(ctx).
		Model(&models.SyncLog{}).
		Where("id = ? AND status = ?", item.ID, models.SyncStatusStarted).
		Updates(map[string]any{
			"status":          item.Status,
			"elements_synced": item.ElementsSynced,
			"users_synced":    item.UsersSynced,
			"error":           item.Error,
			"stats":           item.Stats,
			"finished_at":     item.FinishedAt,
		}).Error
}

func (s *Store) ListSyncLogs(ctx context.Context, gameID uint64, limit int) ([]models.SyncLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SyncLog{})
	if gameID != 0 {
		query = query.Where("game_id = ?", gameID)
	}
	var items []models.SyncLog
	if err := query.Order("started_at desc").
		Limit(normalizeLimit(limit, 50)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- triggers ----------------------------------------------------------------

func (s *Store) ListActiveTriggers(ctx context.Context, gameID uint64) ([]models.GameTrigger, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.GameTrigger
	if err := s.db.WithContext(ctx).
		Where("game_id = ? AND is_active = ?", gameID, true).
		Order("type asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) AdvanceTriggerWatermark(ctx context.Context, triggerID uint64, round int) error {
	if s == nil || s.db == nil || triggerID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.GameTrigger{}).
		Where("id = ?", triggerID).
		Update("last_triggered_round", round).Error
}

// --- trigger logs ------------------------------------------------------------

func (s *Store) CreateTriggerLog(ctx context.Context, item *models.TriggerLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListTriggerLogs(ctx context.Context, gameID uint64, limit int) ([]models.TriggerLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.TriggerLog{})
	if gameID != 0 {
		query = query.Where("game_id = ?", gameID)
	}
	var items []models.TriggerLog
	if err := query.Order("created_at desc").
		Limit(normalizeLimit(limit, 50)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers -----------------------------------------------------------------

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
