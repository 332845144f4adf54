package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gundersenerik/swush-manager/internal/repository"
)

// KeyVerifier is the slice of the partner client the ops keycheck uses.
type KeyVerifier interface {
	VerifyKey(ctx context.Context) (bool, error)
}

// GamesHandler serves the read accessors over games, elements and user stats.
// The public read API builds on these; presentation concerns (percentiles and
// the like) belong to that layer, not here.
type GamesHandler struct {
	Store   repository.Store
	Partner KeyVerifier
}

func (h *GamesHandler) Register(r *gin.Engine) {
	r.GET("/api/games", h.listGames)
	r.GET("/api/games/:gameKey", h.getGame)
	r.GET("/api/games/:gameKey/elements", h.listElements)
	r.GET("/api/games/:gameKey/users", h.listUserStats)
	r.GET("/api/games/:gameKey/users/:userID", h.getUserStat)
	r.GET("/api/games/:gameKey/synclogs", h.listSyncLogs)
	r.GET("/api/games/:gameKey/triggerlogs", h.listTriggerLogs)
	r.GET("/api/partner/keycheck", h.keyCheck)
}

// @Summary List games
// @Tags games
// @Success 200 {object} map[string]any
// @Router /api/games [get]
func (h *GamesHandler) listGames(c *gin.Context) {
	params := repository.ListGamesParams{
		ActiveOnly: c.Query("all") == "",
		Limit:      queryInt(c, "limit", 100),
		Offset:     queryInt(c, "offset", 0),
	}
	if sport := c.Query("sport"); sport != "" {
		params.Sport = &sport
	}
	games, err := h.Store.ListGames(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, games, map[string]any{"count": len(games)})
}

func (h *GamesHandler) getGame(c *gin.Context) {
	game, err := h.Store.GetGameByKey(c.Request.Context(), c.Param("gameKey"))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if game == nil {
		Error(c, http.StatusNotFound, "game not found", nil)
		return
	}
	Ok(c, game, nil)
}

func (h *GamesHandler) listElements(c *gin.Context) {
	game, err := h.Store.GetGameByKey(c.Request.Context(), c.Param("gameKey"))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if game == nil {
		Error(c, http.StatusNotFound, "game not found", nil)
		return
	}
	elements, err := h.Store.ListElementsByGameID(c.Request.Context(), game.ID)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, elements, map[string]any{"count": len(elements)})
}

func (h *GamesHandler) listUserStats(c *gin.Context) {
	game, err := h.Store.GetGameByKey(c.Request.Context(), c.Param("gameKey"))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if game == nil {
		Error(c, http.StatusNotFound, "game not found", nil)
		return
	}
	stats, err := h.Store.ListUserStats(c.Request.Context(), repository.ListUserStatsParams{
		GameID: game.ID,
		Limit:  queryInt(c, "limit", 100),
		Offset: queryInt(c, "offset", 0),
	})
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	total, err := h.Store.CountUserStats(c.Request.Context(), game.ID)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, stats, map[string]any{"count": len(stats), "total": total})
}

func (h *GamesHandler) getUserStat(c *gin.Context) {
	game, err := h.Store.GetGameByKey(c.Request.Context(), c.Param("gameKey"))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if game == nil {
		Error(c, http.StatusNotFound, "game not found", nil)
		return
	}
	stat, err := h.Store.GetUserStat(c.Request.Context(), game.ID, c.Param("userID"))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if stat == nil {
		Error(c, http.StatusNotFound, "user not found in game", nil)
		return
	}
	Ok(c, stat, nil)
}

func (h *GamesHandler) listSyncLogs(c *gin.Context) {
	game, err := h.Store.GetGameByKey(c.Request.Context(), c.Param("gameKey"))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if game == nil {
		Error(c, http.StatusNotFound, "game not found", nil)
		return
	}
	logs, err := h.Store.ListSyncLogs(c.Request.Context(), game.ID, queryInt(c, "limit", 50))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, logs, map[string]any{"count": len(logs)})
}

func (h *GamesHandler) listTriggerLogs(c *gin.Context) {
	game, err := h.Store.GetGameByKey(c.Request.Context(), c.Param("gameKey"))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if game == nil {
		Error(c, http.StatusNotFound, "game not found", nil)
		return
	}
	logs, err := h.Store.ListTriggerLogs(c.Request.Context(), game.ID, queryInt(c, "limit", 50))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, logs, map[string]any{"count": len(logs)})
}

// @Summary Verify the partner API key
// @Tags ops
// @Success 200 {object} map[string]any
// @Router /api/partner/keycheck [get]
func (h *GamesHandler) keyCheck(c *gin.Context) {
	if h.Partner == nil {
		Error(c, http.StatusServiceUnavailable, "partner client not configured", nil)
		return
	}
	ok, err := h.Partner.VerifyKey(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{"valid": ok}, nil)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}
