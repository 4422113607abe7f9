package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/middleware"
	"github.com/iliyamo/button-game/internal/service"
)

type LeaderboardHandler struct {
	Leaderboard *service.LeaderboardService
	Log         *zap.Logger
}

func NewLeaderboardHandler(lb *service.LeaderboardService, log *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{Leaderboard: lb, Log: log}
}

// Page renders the public leaderboard, personalised for logged-in users.
func (h *LeaderboardHandler) Page(c echo.Context) error {
	id, _ := middleware.IdentityFrom(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	board, err := h.Leaderboard.Board(ctx, id.UserID)
	if err != nil {
		h.Log.Error("leaderboard failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Something went wrong, please try again.")
	}
	return render(c, http.StatusOK, "leaderboard", "Leaderboard", board)
}

// API returns the top players and totals as JSON.  The response does not
// depend on the caller, which lets it be cached.
func (h *LeaderboardHandler) API(c echo.Context) error {
	limit := service.MaxLeaderboardSize
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	top, err := h.Leaderboard.TopPlayers(ctx, limit)
	if err != nil {
		h.Log.Error("leaderboard api failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	totals, err := h.Leaderboard.Totals(ctx)
	if err != nil {
		h.Log.Error("leaderboard api failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"players": top, "totals": totals})
}
