package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/middleware"
	"github.com/iliyamo/button-game/internal/model"
	"github.com/iliyamo/button-game/internal/service"
)

var (
	freeColors    = []string{"#3b82f6", "#ef4444", "#22c55e"}
	premiumColors = []string{"#3b82f6", "#ef4444", "#22c55e", "#f59e0b", "#a855f7", "#ec4899", "#14b8a6", "#f97316", "#eab308", "#111827"}
)

// GameHandler serves the home, game and profile pages and the click API.
type GameHandler struct {
	Clicks      *service.ClickService
	Leaderboard *service.LeaderboardService
	Payments    *service.PaymentService
	Log         *zap.Logger
}

func NewGameHandler(clicks *service.ClickService, lb *service.LeaderboardService, payments *service.PaymentService, log *zap.Logger) *GameHandler {
	return &GameHandler{Clicks: clicks, Leaderboard: lb, Payments: payments, Log: log}
}

type gamePage struct {
	Counter model.ClickCounter
	Profile model.Profile
	Colors  []string
}

type profilePage struct {
	Counter model.ClickCounter
	Profile model.Profile
	Rank    int64
}

func (h *GameHandler) Home(c echo.Context) error {
	return render(c, http.StatusOK, "home", "Home", nil)
}

// Game renders the button page, creating missing records on the way.
func (h *GameHandler) Game(c echo.Context) error {
	id, _ := middleware.IdentityFrom(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	counter, err := h.Clicks.Counter(ctx, id.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	profile, err := h.Payments.Profile(ctx, id.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	colors := freeColors
	if profile.IsPremium {
		colors = premiumColors
	}
	return render(c, http.StatusOK, "game", "Play", gamePage{Counter: counter, Profile: profile, Colors: colors})
}

// Profile shows the user's counter, rank and premium status.
func (h *GameHandler) Profile(c echo.Context) error {
	id, _ := middleware.IdentityFrom(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	standing, err := h.Leaderboard.Rank(ctx, id.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	profile, err := h.Payments.Profile(ctx, id.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return render(c, http.StatusOK, "profile", "Profile", profilePage{Counter: standing.Counter, Profile: profile, Rank: standing.Rank})
}

// ButtonClick increments the caller's counter.  The request body is ignored.
func (h *GameHandler) ButtonClick(c echo.Context) error {
	id, _ := middleware.IdentityFrom(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	n, err := h.Clicks.Increment(ctx, id.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "Could not record click, please try again."})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"click_count": n,
		"message":     fmt.Sprintf("Click #%d!", n),
	})
}

func (h *GameHandler) fail(c echo.Context, err error) error {
	h.Log.Error("page load failed", zap.String("path", c.Path()), zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "Something went wrong, please try again.")
}
