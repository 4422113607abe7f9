package handler

import (
	"strings"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/button-game/internal/view"
)

// FlashSession is the name of the cookie-backed session holding flashes.
const FlashSession = "flash"

// addFlash queues a message for the next rendered page.  Without a session
// store the message is dropped.
func addFlash(c echo.Context, level, msg string) {
	sess, err := session.Get(FlashSession, c)
	if err != nil {
		c.Logger().Warnf("flash: %v", err)
		return
	}
	sess.AddFlash(level + "|" + msg)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		c.Logger().Warnf("flash save: %v", err)
	}
}

func popFlashes(c echo.Context) []view.Flash {
	sess, err := session.Get(FlashSession, c)
	if err != nil {
		return nil
	}
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = sess.Save(c.Request(), c.Response())
	out := make([]view.Flash, 0, len(raw))
	for _, r := range raw {
		s, ok := r.(string)
		if !ok {
			continue
		}
		level, msg, found := strings.Cut(s, "|")
		if !found {
			level, msg = "info", s
		}
		out = append(out, view.Flash{Level: level, Message: msg})
	}
	return out
}
