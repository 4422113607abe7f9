package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/button-game/internal/handler"
	"github.com/iliyamo/button-game/internal/middleware"
)

// RegisterGame registers the pages, the click API and the leaderboard.
// limiter guards the click API; cache fronts the public leaderboard API.
func RegisterGame(e *echo.Echo, g *handler.GameHandler, lb *handler.LeaderboardHandler, limiter, cache echo.MiddlewareFunc) {
	e.GET("/", g.Home)
	e.GET("/leaderboard/", lb.Page)
	e.GET("/api/leaderboard/", lb.API, cache)

	login := middleware.RequireLogin()
	e.GET("/game/", g.Game, login)
	e.GET("/profile/", g.Profile, login)
	e.POST("/api/button-click/", g.ButtonClick, login, limiter)
}
