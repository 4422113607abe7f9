package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireLogin aborts requests without an authenticated user.  API calls
// get a JSON 401; browsers are redirected to the login page with a next
// parameter pointing back at the original URL.
func RequireLogin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := IdentityFrom(c); ok {
				return next(c)
			}
			req := c.Request()
			if strings.HasPrefix(req.URL.Path, "/api/") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "authentication required"})
			}
			return c.Redirect(http.StatusFound, "/login/?next="+url.QueryEscape(req.URL.RequestURI()))
		}
	}
}
