package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/gundersenerik/swush-manager/internal/client/campaign"
	"github.com/gundersenerik/swush-manager/internal/config"
	"github.com/gundersenerik/swush-manager/internal/models"
	"github.com/gundersenerik/swush-manager/internal/repository"
)

// Dispatcher is the slice of the campaign client the evaluator consumes.
type Dispatcher interface {
	Dispatch(ctx context.Context, campaignID string, properties map[string]any) (*campaign.DispatchResult, error)
}

// EvalSummary aggregates one evaluation pass.
type EvalSummary struct {
	Evaluated int `json:"evaluated"`
	Triggered int `json:"triggered"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// TriggerEvaluator fires campaign notifications at most once per game round.
// The watermark on each trigger row advances only after a successful dispatch,
// so a failed send is retried on the next cycle.
type TriggerEvaluator struct {
	Store     repository.Store
	Campaigns Dispatcher
	Logger    *zap.Logger
	Config    config.SyncConfig
}

// EvaluateAll evaluates every active trigger of every active game. Failures
// are isolated per trigger and never block siblings.
func (e *TriggerEvaluator) EvaluateAll(ctx context.Context, now time.Time) (EvalSummary, error) {
	summary := EvalSummary{}
	games, err := e.Store.ListActiveGames(ctx)
	if err != nil {
		return summary, err
	}
	for i := range games {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		gameSummary, err := e.EvaluateGame(ctx, &games[i], now)
		if err != nil {
			if e.Logger != nil {
				e.Logger.Warn("trigger evaluation failed for game",
					zap.String("game_key", games[i].GameKey), zap.Error(err))
			}
			continue
		}
		summary.Evaluated += gameSummary.Evaluated
		summary.Triggered += gameSummary.Triggered
		summary.Skipped += gameSummary.Skipped
		summary.Failed += gameSummary.Failed
	}
	if e.Logger != nil {
		e.Logger.Info("trigger pass done",
			zap.Int("evaluated", summary.Evaluated),
			zap.Int("triggered", summary.Triggered),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
		)
	}
	return summary, nil
}

// EvaluateGame evaluates all active triggers of one game against now.
func (e *TriggerEvaluator) EvaluateGame(ctx context.Context, game *models.Game, now time.Time) (EvalSummary, error) {
	summary := EvalSummary{}
	triggers, err := e.Store.ListActiveTriggers(ctx, game.ID)
	if err != nil {
		return summary, err
	}
	for i := range triggers {
		summary.Evaluated++
		outcome := e.evaluateTrigger(ctx, game, &triggers[i], now)
		switch outcome {
		case models.TriggerOutcomeTriggered:
			summary.Triggered++
		case models.TriggerOutcomeFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}
	return summary, nil
}

func (e *TriggerEvaluator) evaluateTrigger(ctx context.Context, game *models.Game, trig *models.GameTrigger, now time.Time) models.TriggerOutcome {
	if fire, reason := e.shouldFire(game, trig, now); !fire {
		e.writeLog(ctx, game, trig, models.TriggerOutcomeSkipped, &reason, nil)
		return models.TriggerOutcomeSkipped
	}

	result, err := e.Campaigns.Dispatch(ctx, trig.CampaignID, triggerProperties(game))
	if err != nil {
		reason := err.Error()
		e.writeLog(ctx, game, trig, models.TriggerOutcomeFailed, &reason, nil)
		if e.Logger != nil {
			e.Logger.Warn("campaign dispatch failed",
				zap.String("game_key", game.GameKey),
				zap.String("trigger", string(trig.Type)),
				zap.Error(err),
			)
		}
		return models.TriggerOutcomeFailed
	}
	if result.Skipped {
		// No campaign integration configured: not a real send, so the
		// watermark stays put.
		reason := result.Message
		e.writeLog(ctx, game, trig, models.TriggerOutcomeSkipped, &reason, nil)
		return models.TriggerOutcomeSkipped
	}

	e.writeLog(ctx, game, trig, models.TriggerOutcomeTriggered, nil, result.Raw)
	if err := e.Store.AdvanceTriggerWatermark(ctx, trig.ID, game.CurrentRound); err != nil && e.Logger != nil {
		e.Logger.Error("failed to advance trigger watermark; duplicate send possible next cycle",
			zap.String("game_key", game.GameKey),
			zap.String("trigger", string(trig.Type)),
			zap.Error(err),
		)
	}
	if e.Logger != nil {
		e.Logger.Info("campaign triggered",
			zap.String("game_key", game.GameKey),
			zap.String("trigger", string(trig.Type)),
			zap.Int("round", game.CurrentRound),
			zap.String("dispatch_id", result.DispatchID),
		)
	}
	return models.TriggerOutcomeTriggered
}

// shouldFire implements the per-type fire conditions. The deadline reminder
// window is deliberately wide (20-28h) to absorb scheduler jitter while the
// watermark keeps it at most once per round.
func (e *TriggerEvaluator) shouldFire(game *models.Game, trig *models.GameTrigger, now time.Time) (bool, string) {
	if trig.LastTriggeredRound != nil && *trig.LastTriggeredRound == game.CurrentRound {
		return false, fmt.Sprintf("already triggered for round %d", game.CurrentRound)
	}

	switch trig.Type {
	case models.TriggerDeadlineReminder24h:
		if game.NextTradeDeadline == nil {
			return false, "no trade deadline set"
		}
		lo := e.Config.DeadlineReminderLo
		if lo <= 0 {
			lo = 20 * time.Hour
		}
		hi := e.Config.DeadlineReminderHi
		if hi <= 0 {
			hi = 28 * time.Hour
		}
		until := game.NextTradeDeadline.Sub(now)
		if until < lo || until > hi {
			return false, fmt.Sprintf("deadline %.1fh away, outside %v-%v window", until.Hours(), lo, hi)
		}
		return true, ""
	case models.TriggerRoundStarted:
		if game.RoundState != models.RoundStateCurrentOpen {
			return false, fmt.Sprintf("round state is %s, not open", game.RoundState)
		}
		return true, ""
	case models.TriggerRoundEnded:
		if game.RoundState != models.RoundStateEnded && game.RoundState != models.RoundStateEndedLatest {
			return false, fmt.Sprintf("round state is %s, not ended", game.RoundState)
		}
		return true, ""
	default:
		return false, fmt.Sprintf("unknown trigger type %s", trig.Type)
	}
}

func triggerProperties(game *models.Game) map[string]any {
	properties := map[string]any{
		"game_key":      game.GameKey,
		"game_name":     game.Name,
		"current_round": game.CurrentRound,
		"total_rounds":  game.TotalRounds,
	}
	if game.NextTradeDeadline != nil {
		properties["trade_deadline"] = game.NextTradeDeadline.UTC().Format(time.RFC3339)
	}
	return properties
}

func (e *TriggerEvaluator) writeLog(ctx context.Context, game *models.Game, trig *models.GameTrigger, outcome models.TriggerOutcome, reason *string, raw []byte) {
	entry := &models.TriggerLog{
		TriggerID: trig.ID,
		GameID:    game.ID,
		Outcome:   outcome,
		Round:     game.CurrentRound,
		Reason:    reason,
	}
	if len(raw) > 0 && json.Valid(raw) {
		entry.Response = datatypes.JSON(raw)
	}
	if err := e.Store.CreateTriggerLog(ctx, entry); err != nil && e.Logger != nil {
		e.Logger.Warn("failed to write trigger log",
			zap.String("game_key", game.GameKey),
			zap.String("trigger", string(trig.Type)),
			zap.Error(err),
		)
	}
}
