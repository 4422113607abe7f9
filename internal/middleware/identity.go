package middleware

// identity.go holds the helpers shared across middleware and handlers for
// reading the authenticated user from the Echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/button-game/internal/service"
)

const identityKey = "identity"

// SetIdentity stores the authenticated user on the request context.
func SetIdentity(c echo.Context, id service.Identity) { c.Set(identityKey, id) }

// IdentityFrom returns the authenticated user, if any.
func IdentityFrom(c echo.Context) (service.Identity, bool) {
	id, ok := c.Get(identityKey).(service.Identity)
	return id, ok && id.UserID != 0
}

// userID returns the user id as a string for keys, or "guest".
func userID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "guest"
}
