package router // package router wires middleware and HTTP routes onto Echo

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/handler"
	"github.com/iliyamo/button-game/internal/middleware"
	"github.com/iliyamo/button-game/internal/service"
)

// WebhookPath is exempt from CSRF checks and session handling.
const WebhookPath = "/payment/webhook/"

// Common holds what the global middleware chain needs.
type Common struct {
	Sessions      *service.SessionService
	Cookies       middleware.CookieOptions
	SessionSecret string
	Log           *zap.Logger
}

// UseCommon installs the middleware every request passes through:
// panic recovery, request ids, access logging, flash sessions, CSRF and
// session resolution.
func UseCommon(e *echo.Echo, c Common) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(c.Log))

	store := sessions.NewCookieStore([]byte(c.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		Secure:   c.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(session.Middleware(store))

	e.Use(echomw.CSRFWithConfig(echomw.CSRFConfig{
		Skipper:        func(ctx echo.Context) bool { return ctx.Request().URL.Path == WebhookPath },
		TokenLookup:    "header:X-CSRF-Token,form:csrf_token",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   c.Cookies.Secure,
		CookieSameSite: http.SameSiteLaxMode,
	}))

	e.Use(middleware.SessionAuth(c.Sessions, c.Cookies, c.Log))
}

// RegisterRoutes registers routes that need neither a session nor a
// database transaction.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterAuth registers signup, login and logout.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	e.GET("/signup/", a.SignupForm)
	e.POST("/signup/", a.Signup)
	e.GET("/login/", a.LoginForm)
	e.POST("/login/", a.Login)
	e.GET("/logout/", a.Logout)
}
