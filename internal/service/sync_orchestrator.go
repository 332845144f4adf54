package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/gundersenerik/swush-manager/internal/alert"
	"github.com/gundersenerik/swush-manager/internal/client/partner"
	"github.com/gundersenerik/swush-manager/internal/config"
	"github.com/gundersenerik/swush-manager/internal/models"
	"github.com/gundersenerik/swush-manager/internal/repository"
)

// PartnerAPI is the slice of the partner client the orchestrator consumes;
// narrowed so tests can swap in a fake.
type PartnerAPI interface {
	GetGame(ctx context.Context, subsite, gameKey string) (*partner.GameInfo, error)
	GetElements(ctx context.Context, subsite, gameKey string) ([]partner.Element, error)
	GetUsersPageWithRetry(ctx context.Context, subsite, gameKey string, page, pageSize int) (*partner.UsersPage, error)
}

// FailureNotifier is the ops alert channel; best effort, never fails the run.
type FailureNotifier interface {
	NotifySyncFailure(ctx context.Context, failure alert.SyncFailure)
}

// ErrSyncInProgress is returned when a sync is requested for a game that is
// already being synced; at most one run per game may be in flight.
var ErrSyncInProgress = errors.New("sync already in progress for game")

// ThresholdExceededError marks a user phase where too many pages failed to be
// trusted, even though the successful pages were persisted.
type ThresholdExceededError struct {
	FailedPages int
	TotalPages  int
}

func (e *ThresholdExceededError) Error() string {
	return fmt.Sprintf("user sync too degraded: %d of %d pages failed", e.FailedPages, e.TotalPages)
}

// SyncResult summarizes one reconciliation run, including the identities of
// skipped element batches and failed user pages so callers can see what the
// degradation policy saw.
type SyncResult struct {
	RunID          string `json:"run_id"`
	ElementsSynced int    `json:"elements_synced"`
	UsersSynced    int    `json:"users_synced"`
	TotalPages     int    `json:"total_pages"`
	SkippedBatches []int  `json:"skipped_batches,omitempty"`
	FailedPages    []int  `json:"failed_pages,omitempty"`
}

// SyncOrchestrator drives one full reconciliation of one game: metadata,
// element catalog, then paginated per-user stats.
type SyncOrchestrator struct {
	Store    repository.Store
	Partner  PartnerAPI
	Alerts   FailureNotifier
	Logger   *zap.Logger
	Config   config.SyncConfig
	PageSize int

	mu       sync.Mutex
	inFlight map[uint64]struct{}
}

func (o *SyncOrchestrator) acquire(gameID uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight == nil {
		o.inFlight = make(map[uint64]struct{})
	}
	if _, busy := o.inFlight[gameID]; busy {
		return false
	}
	o.inFlight[gameID] = struct{}{}
	return true
}

func (o *SyncOrchestrator) release(gameID uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, gameID)
}

// SyncGame runs the three phases in order; each phase is fatal to the run on
// failure. One SyncLog row is created started and finalized exactly once.
func (o *SyncOrchestrator) SyncGame(ctx context.Context, game *models.Game, kind models.SyncTrigger) (*SyncResult, error) {
	if game == nil {
		return nil, errors.New("game is nil")
	}
	if !o.acquire(game.ID) {
		return nil, ErrSyncInProgress
	}
	defer o.release(game.ID)

	if o.Config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Config.RunTimeout)
		defer cancel()
	}

	now := time.Now().UTC()
	lastGoodSync := game.LastSyncedAt
	syncLog := &models.SyncLog{
		RunID:     uuid.NewString(),
		GameID:    game.ID,
		Kind:      kind,
		Status:    models.SyncStatusStarted,
		StartedAt: now,
	}
	if err := o.Store.CreateSyncLog(ctx, syncLog); err != nil {
		return nil, fmt.Errorf("failed to create sync log: %w", err)
	}
	result := &SyncResult{RunID: syncLog.RunID}

	if err := o.syncMetadata(ctx, game, now); err != nil {
		return result, o.fail(ctx, game, syncLog, result, lastGoodSync, fmt.Errorf("metadata phase: %w", err))
	}
	if err := o.syncElements(ctx, game, now, result); err != nil {
		return result, o.fail(ctx, game, syncLog, result, lastGoodSync, fmt.Errorf("catalog phase: %w", err))
	}
	if err := o.syncUsers(ctx, game, now, result); err != nil {
		return result, o.fail(ctx, game, syncLog, result, lastGoodSync, fmt.Errorf("user phase: %w", err))
	}

	syncLog.Status = models.SyncStatusCompleted
	syncLog.ElementsSynced = result.ElementsSynced
	syncLog.UsersSynced = result.UsersSynced
	syncLog.Stats = resultStats(result)
	if err := o.Store.FinalizeSyncLog(ctx, syncLog); err != nil && o.Logger != nil {
		o.Logger.Warn("failed to finalize sync log",
			zap.String("run_id", syncLog.RunID), zap.Error(err))
	}
	if o.Logger != nil {
		o.Logger.Info("game sync completed",
			zap.String("game_key", game.GameKey),
			zap.String("run_id", syncLog.RunID),
			zap.Int("elements", result.ElementsSynced),
			zap.Int("users", result.UsersSynced),
			zap.Int("failed_pages", len(result.FailedPages)),
		)
	}
	return result, nil
}

// fail finalizes the log, alerts ops, and propagates the phase error.
func (o *SyncOrchestrator) fail(ctx context.Context, game *models.Game, syncLog *models.SyncLog, result *SyncResult, lastGoodSync *time.Time, err error) error {
	msg := err.Error()
	syncLog.Status = models.SyncStatusFailed
	syncLog.Error = &msg
	syncLog.ElementsSynced = result.ElementsSynced
	syncLog.UsersSynced = result.UsersSynced
	syncLog.Stats = resultStats(result)
	// The phase error may be this run's own expired deadline; the audit row
	// and the alert still have to go out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if ferr := o.Store.FinalizeSyncLog(ctx, syncLog); ferr != nil && o.Logger != nil {
		o.Logger.Warn("failed to finalize sync log",
			zap.String("run_id", syncLog.RunID), zap.Error(ferr))
	}
	if o.Logger != nil {
		o.Logger.Warn("game sync failed",
			zap.String("game_key", game.GameKey),
			zap.String("run_id", syncLog.RunID),
			zap.Error(err),
		)
	}
	if o.Alerts != nil {
		o.Alerts.NotifySyncFailure(ctx, alert.SyncFailure{
			GameKey:      game.GameKey,
			GameName:     game.Name,
			Reason:       msg,
			LastSyncedAt: lastGoodSync,
			OccurredAt:   time.Now().UTC(),
		})
	}
	return err
}

// syncMetadata fetches game meta and persists the derived round fields plus
// last_synced_at.
func (o *SyncOrchestrator) syncMetadata(ctx context.Context, game *models.Game, now time.Time) error {
	info, err := o.Partner.GetGame(ctx, game.Subsite, game.GameKey)
	if err != nil {
		return err
	}
	applyGameInfo(game, info, now)
	return o.Store.UpdateGameSyncState(ctx, game)
}

// applyGameInfo derives round state from the partner payload. The open round
// wins; otherwise the nearest pending round supplies start/deadline timing and
// the latest ended round supplies end timing and the displayed state.
func applyGameInfo(game *models.Game, info *partner.GameInfo, now time.Time) {
	game.Name = info.Name
	if info.ID != 0 {
		game.ExternalID = info.ID
	}
	game.UsersTotal = info.UsersTotal
	game.LastSyncedAt = &now

	totalRounds := 0
	var open, pending, ended *partner.Round
	for i := range info.Rounds {
		r := &info.Rounds[i]
		if r.Number > totalRounds {
			totalRounds = r.Number
		}
		switch r.State {
		case partner.RoundCurrentOpen:
			open = r
		case partner.RoundPending:
			if pending == nil || r.Number < pending.Number {
				pending = r
			}
		case partner.RoundEnded, partner.RoundEndedLatest:
			if ended == nil || r.Number > ended.Number {
				ended = r
			}
		}
	}
	game.TotalRounds = totalRounds

	switch {
	case open != nil:
		game.CurrentRound = open.Number
		game.RoundState = models.RoundStateCurrentOpen
		game.CurrentRoundStart = open.StartsAt
		game.CurrentRoundEnd = open.EndsAt
		game.NextTradeDeadline = open.TradeDeadline
	default:
		if ended != nil {
			game.CurrentRound = ended.Number
			game.RoundState = roundStateOf(ended.State)
			game.CurrentRoundEnd = ended.EndsAt
		}
		if pending != nil {
			if ended == nil {
				game.CurrentRound = pending.Number
				game.RoundState = models.RoundStatePending
			}
			game.CurrentRoundStart = pending.StartsAt
			game.NextTradeDeadline = pending.TradeDeadline
		}
	}
}

func roundStateOf(state string) models.RoundState {
	switch state {
	case partner.RoundCurrentOpen:
		return models.RoundStateCurrentOpen
	case partner.RoundEnded:
		return models.RoundStateEnded
	case partner.RoundEndedLatest:
		return models.RoundStateEndedLatest
	default:
		return models.RoundStatePending
	}
}

// syncElements replaces the full catalog in fixed-size batches. A failed batch
// is logged and skipped; the phase only fails if the fetch itself fails.
func (o *SyncOrchestrator) syncElements(ctx context.Context, game *models.Game, now time.Time, result *SyncResult) error {
	elements, err := o.Partner.GetElements(ctx, game.Subsite, game.GameKey)
	if err != nil {
		return err
	}
	batchSize := o.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	for i := 0; i < len(elements); i += batchSize {
		end := i + batchSize
		if end > len(elements) {
			end = len(elements)
		}
		batch := make([]models.Element, 0, end-i)
		for _, el := range elements[i:end] {
			batch = append(batch, models.Element{
				GameID:      game.ID,
				ExternalID:  el.ID,
				Name:        el.Name,
				Team:        el.Team,
				Position:    el.Position,
				Trend:       el.Trend.Decimal,
				Growth:      el.Growth.Decimal,
				TotalGrowth: el.TotalGrowth.Decimal,
				Value:       el.Value.Decimal,
				Popularity:  el.Popularity.Decimal,
				IsInjured:   el.Injured,
				IsSuspended: el.Suspended,
				SyncedAt:    now,
			})
		}
		if err := o.Store.UpsertElements(ctx, batch); err != nil {
			result.SkippedBatches = append(result.SkippedBatches, i/batchSize+1)
			if o.Logger != nil {
				o.Logger.Warn("element batch upsert failed, skipping",
					zap.String("game_key", game.GameKey),
					zap.Int("batch", i/batchSize+1),
					zap.Error(err),
				)
			}
			continue
		}
		result.ElementsSynced += len(batch)
	}
	return nil
}

// syncUsers pulls every user page sequentially, persisting each page as it
// arrives so a mid-run crash keeps all completed pages. Pages that fail after
// retry are tolerated up to the failed-pages ratio.
func (o *SyncOrchestrator) syncUsers(ctx context.Context, game *models.Game, now time.Time, result *SyncResult) error {
	pageSize := o.PageSize
	if pageSize <= 0 || pageSize > partner.MaxPageSize {
		pageSize = partner.MaxPageSize
	}

	first, err := o.Partner.GetUsersPageWithRetry(ctx, game.Subsite, game.GameKey, 1, pageSize)
	if err != nil {
		return err
	}
	result.TotalPages = first.Pages
	// Only the first fetch is structurally fatal (it carries the page count);
	// a persist failure here is just another failed page.
	if err := o.persistUsersPage(ctx, game, first, now, result); err != nil {
		result.FailedPages = append(result.FailedPages, 1)
		if o.Logger != nil {
			o.Logger.Warn("user page persist failed",
				zap.String("game_key", game.GameKey),
				zap.Int("page", 1),
				zap.Error(err),
			)
		}
	}

	delay := o.Config.PageDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for page := 2; page <= first.Pages; page++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		usersPage, err := o.Partner.GetUsersPageWithRetry(ctx, game.Subsite, game.GameKey, page, pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result.FailedPages = append(result.FailedPages, page)
			if o.Logger != nil {
				o.Logger.Warn("user page fetch failed after retry",
					zap.String("game_key", game.GameKey),
					zap.Int("page", page),
					zap.Error(err),
				)
			}
			continue
		}
		if err := o.persistUsersPage(ctx, game, usersPage, now, result); err != nil {
			result.FailedPages = append(result.FailedPages, page)
			if o.Logger != nil {
				o.Logger.Warn("user page persist failed",
					zap.String("game_key", game.GameKey),
					zap.Int("page", page),
					zap.Error(err),
				)
			}
		}
	}

	threshold := o.Config.FailedPagesRatio
	if threshold <= 0 {
		threshold = 0.1
	}
	if first.Pages > 0 && float64(len(result.FailedPages))/float64(first.Pages) > threshold {
		return &ThresholdExceededError{FailedPages: len(result.FailedPages), TotalPages: first.Pages}
	}
	return nil
}

// persistUsersPage upserts one page. Users without an external identity cannot
// be joined to a local account; they are dropped, not counted as errors.
func (o *SyncOrchestrator) persistUsersPage(ctx context.Context, game *models.Game, usersPage *partner.UsersPage, now time.Time, result *SyncResult) error {
	stats := make([]models.UserGameStat, 0, len(usersPage.Users))
	for _, u := range usersPage.Users {
		if u.UserID == "" {
			continue
		}
		lineup, err := json.Marshal(u.Lineup)
		if err != nil {
			lineup = []byte("[]")
		}
		stats = append(stats, models.UserGameStat{
			GameID:         game.ID,
			ExternalUserID: u.UserID,
			TeamName:       u.TeamName,
			TotalScore:     u.TotalScore.Decimal,
			RoundScore:     u.RoundScore.Decimal,
			TotalRank:      u.TotalRank,
			RoundRank:      u.RoundRank,
			Lineup:         datatypes.JSON(lineup),
			InjuredCount:   u.InjuredCount,
			SuspendedCount: u.SuspendedCount,
			SyncedAt:       now,
		})
	}
	if err := o.Store.UpsertUserStats(ctx, stats); err != nil {
		return err
	}
	result.UsersSynced += len(stats)
	return nil
}

func resultStats(result *SyncResult) datatypes.JSON {
	payload, err := json.Marshal(result)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(payload)
}
