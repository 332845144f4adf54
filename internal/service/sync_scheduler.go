package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gundersenerik/swush-manager/internal/config"
	"github.com/gundersenerik/swush-manager/internal/models"
	"github.com/gundersenerik/swush-manager/internal/repository"
)

// SyncScheduler decides which active games are due for reconciliation.
// Games in a critical period (round start or trade deadline approaching, round
// recently ended) sync on a tighter cadence than their configured interval.
type SyncScheduler struct {
	Store        repository.Store
	Orchestrator *SyncOrchestrator
	Logger       *zap.Logger
	Config       config.SyncConfig
}

// PassSummary aggregates one scheduled pass; individual game failures are in
// SyncLog rows, never propagated past the pass.
type PassSummary struct {
	Due    int `json:"due"`
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// GamesDueForSync returns the active games due at now. A never-synced game is
// always due.
func (s *SyncScheduler) GamesDueForSync(ctx context.Context, now time.Time) ([]models.Game, error) {
	games, err := s.Store.ListActiveGames(ctx)
	if err != nil {
		return nil, err
	}
	due := make([]models.Game, 0, len(games))
	for _, game := range games {
		if s.isDue(game, now) {
			due = append(due, game)
		}
	}
	return due, nil
}

func (s *SyncScheduler) isDue(game models.Game, now time.Time) bool {
	if game.LastSyncedAt == nil {
		return true
	}
	elapsed := now.Sub(*game.LastSyncedAt)
	if s.inCriticalPeriod(game, now) {
		criticalInterval := s.Config.CriticalInterval
		if criticalInterval <= 0 {
			criticalInterval = 30 * time.Minute
		}
		return elapsed >= criticalInterval
	}
	interval := time.Duration(game.SyncIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	return elapsed >= interval
}

// inCriticalPeriod checks the three windows around round transitions: round
// start ahead, trade deadline ahead, round end behind. The windows are not
// mutually exclusive; any one suffices.
func (s *SyncScheduler) inCriticalPeriod(game models.Game, now time.Time) bool {
	startWindow := s.Config.RoundStartWindow
	if startWindow <= 0 {
		startWindow = 2 * time.Hour
	}
	deadlineWindow := s.Config.DeadlineWindow
	if deadlineWindow <= 0 {
		deadlineWindow = 2 * time.Hour
	}
	endedWindow := s.Config.RoundEndedWindow
	if endedWindow <= 0 {
		endedWindow = time.Hour
	}

	if game.CurrentRoundStart != nil {
		until := game.CurrentRoundStart.Sub(now)
		if until >= 0 && until <= startWindow {
			return true
		}
	}
	if game.NextTradeDeadline != nil {
		until := game.NextTradeDeadline.Sub(now)
		if until >= 0 && until <= deadlineWindow {
			return true
		}
	}
	if game.CurrentRoundEnd != nil {
		since := now.Sub(*game.CurrentRoundEnd)
		if since >= 0 && since <= endedWindow {
			return true
		}
	}
	return false
}

// RunDuePass syncs every due game sequentially. Failures are isolated per
// game: they are audited and alerted inside the orchestrator and only counted
// here.
func (s *SyncScheduler) RunDuePass(ctx context.Context) (PassSummary, error) {
	summary := PassSummary{}
	due, err := s.GamesDueForSync(ctx, time.Now().UTC())
	if err != nil {
		return summary, err
	}
	summary.Due = len(due)
	for i := range due {
		game := due[i]
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if _, err := s.Orchestrator.SyncGame(ctx, &game, models.SyncTriggerScheduled); err != nil {
			if errors.Is(err, ErrSyncInProgress) {
				continue
			}
			summary.Failed++
			continue
		}
		summary.Synced++
	}
	if s.Logger != nil {
		s.Logger.Info("scheduled sync pass done",
			zap.Int("due", summary.Due),
			zap.Int("synced", summary.Synced),
			zap.Int("failed", summary.Failed),
		)
	}
	return summary, nil
}
