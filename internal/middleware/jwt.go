package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/service"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// CookieOptions controls how session cookies are written.
type CookieOptions struct {
	Secure bool
}

// SessionAuth resolves the logged-in user from the access token cookie and,
// when that is missing or expired, silently renews the session from the
// refresh token cookie.  Anonymous requests pass through untouched; use
// RequireLogin to protect routes.
func SessionAuth(sessions *service.SessionService, opts CookieOptions, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ck, err := c.Cookie(AccessCookie); err == nil {
				if id, err := sessions.Verify(ck.Value); err == nil {
					SetIdentity(c, id)
					return next(c)
				}
			}

			ck, err := c.Cookie(RefreshCookie)
			if err != nil || ck.Value == "" {
				return next(c)
			}
			sess, err := sessions.Resume(c.Request().Context(), ck.Value)
			if err != nil {
				if !errors.Is(err, service.ErrAuthenticationRequired) {
					log.Warn("session refresh failed", zap.Error(err))
				}
				ClearSessionCookies(c, opts)
				return next(c)
			}
			WriteSessionCookies(c, sess, opts)
			SetIdentity(c, sess.Identity)
			return next(c)
		}
	}
}

// WriteSessionCookies sets the access and refresh cookies for sess.
func WriteSessionCookies(c echo.Context, sess service.Session, opts CookieOptions) {
	c.SetCookie(&http.Cookie{
		Name:     AccessCookie,
		Value:    sess.Access.Token,
		Path:     "/",
		Expires:  sess.Access.Exp,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookie,
		Value:    sess.Refresh.Raw,
		Path:     "/",
		Expires:  sess.Refresh.Exp,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(c echo.Context, opts CookieOptions) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   opts.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
