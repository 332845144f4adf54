package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gundersenerik/swush-manager/internal/models"
	"github.com/gundersenerik/swush-manager/internal/service"
)

// SyncHandler exposes manual sync and trigger evaluation to the external
// scheduler and to operators.
type SyncHandler struct {
	Orchestrator *service.SyncOrchestrator
	Scheduler    *service.SyncScheduler
	Evaluator    *service.TriggerEvaluator
	Logger       *zap.Logger
}

func (h *SyncHandler) Register(r *gin.Engine) {
	r.POST("/sync/games/:gameKey", h.syncGame)
	r.POST("/sync/pass", h.syncPass)
	r.POST("/triggers/evaluate", h.evaluateTriggers)
}

// @Summary Sync one game now
// @Tags sync
// @Param gameKey path string true "game key"
// @Success 200 {object} map[string]any
// @Router /sync/games/{gameKey} [post]
func (h *SyncHandler) syncGame(c *gin.Context) {
	gameKey := c.Param("gameKey")
	game, err := h.Scheduler.Store.GetGameByKey(c.Request.Context(), gameKey)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if game == nil {
		Error(c, http.StatusNotFound, "game not found", nil)
		return
	}
	result, err := h.Orchestrator.SyncGame(c.Request.Context(), game, models.SyncTriggerManual)
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			Error(c, http.StatusConflict, err.Error(), nil)
			return
		}
		// A manual sync reports the first fatal phase error verbatim.
		Error(c, http.StatusBadGateway, err.Error(), map[string]any{"result": result})
		return
	}
	Ok(c, result, nil)
}

// @Summary Run a scheduled-style sync pass over all due games
// @Tags sync
// @Success 200 {object} map[string]any
// @Router /sync/pass [post]
func (h *SyncHandler) syncPass(c *gin.Context) {
	summary, err := h.Scheduler.RunDuePass(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, summary, nil)
}

// @Summary Evaluate all campaign triggers now
// @Tags triggers
// @Success 200 {object} map[string]any
// @Router /triggers/evaluate [post]
func (h *SyncHandler) evaluateTriggers(c *gin.Context) {
	summary, err := h.Evaluator.EvaluateAll(c.Request.Context(), time.Now().UTC())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, summary, nil)
}
