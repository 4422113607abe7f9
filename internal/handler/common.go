package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/button-game/internal/middleware"
	"github.com/iliyamo/button-game/internal/view"
)

// dbTimeout bounds the storage work of a single request.
const dbTimeout = 5 * time.Second

// render writes a full HTML page, filling in the per-request fields every
// template expects.
func render(c echo.Context, status int, name, title string, data any) error {
	p := view.Page{
		Title:   title,
		Flashes: popFlashes(c),
		Data:    data,
	}
	if id, ok := middleware.IdentityFrom(c); ok {
		p.Username = id.Username
	}
	if tok, ok := c.Get(echomw.DefaultCSRFConfig.ContextKey).(string); ok {
		p.CSRFToken = tok
	}
	return c.Render(status, name, p)
}

// redirectWith flashes msg and redirects with 302.
func redirectWith(c echo.Context, to, level, msg string) error {
	addFlash(c, level, msg)
	return c.Redirect(http.StatusFound, to)
}

// safeNext only accepts same-site relative paths as redirect targets.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return fallback
	}
	return next
}

// baseURL is the public origin used in payment callbacks.
func baseURL(c echo.Context, configured string) string {
	if configured != "" {
		return configured
	}
	return c.Scheme() + "://" + c.Request().Host
}
