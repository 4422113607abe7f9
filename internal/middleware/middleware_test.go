package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/config"
	"github.com/iliyamo/button-game/internal/service"
	"github.com/iliyamo/button-game/internal/service/memstore"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: 2 * time.Hour, KeyStrategy: "user_route", Prefix: "rl",
	}
	e := echo.New()
	h := NewTokenBucket(cfg, rdb, zap.NewNop())(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	do := func(uid uint64) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/button-click/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/api/button-click/")
		SetIdentity(c, service.Identity{UserID: uid})
		require.NoError(t, h(c))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do(1).Code)
	assert.Equal(t, http.StatusNoContent, do(1).Code)
	blocked := do(1)
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusNoContent, do(2).Code, "buckets are per user")
}

func TestTokenBucketPassThroughWithoutRedis(t *testing.T) {
	e := echo.New()
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, zap.NewNop())
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		require.NoError(t, h(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRedisCacheServesHit(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 10,
	}
	e := echo.New()
	calls := 0
	e.GET("/api/leaderboard/", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	}, NewRedisCache(cfg, rdb, zap.NewNop()))

	first := httptest.NewRecorder()
	e.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/leaderboard/", nil))
	second := httptest.NewRecorder()
	e.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/leaderboard/", nil))

	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.True(t, strings.HasPrefix(second.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON))
	assert.Equal(t, 1, calls)
}

func newSessions(t *testing.T) (*service.SessionService, *memstore.DB) {
	t.Helper()
	db := memstore.New()
	return service.NewSessionService(db.Tokens, db.Users, "secret", 15, 7, zap.NewNop()), db
}

func TestSessionAuthAndRequireLogin(t *testing.T) {
	sessions, db := newSessions(t)
	u, err := db.Users.Create(context.Background(), "alice", "a@b.co", "x")
	require.NoError(t, err)
	sess, err := sessions.Issue(context.Background(), u)
	require.NoError(t, err)

	e := echo.New()
	e.Use(SessionAuth(sessions, CookieOptions{}, zap.NewNop()))
	e.GET("/game/", func(c echo.Context) error {
		id, _ := IdentityFrom(c)
		return c.String(http.StatusOK, id.Username)
	}, RequireLogin())
	e.POST("/api/button-click/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RequireLogin())

	t.Run("anonymous browser is redirected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/game/", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login/?next=%2Fgame%2F", rec.Header().Get("Location"))
	})

	t.Run("anonymous api call gets 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/button-click/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("access cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/game/", nil)
		req.AddCookie(&http.Cookie{Name: AccessCookie, Value: sess.Access.Token})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", rec.Body.String())
	})

	t.Run("refresh cookie renews session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/game/", nil)
		req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: sess.Refresh.Raw})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, rec.Result().Cookies(), 2)
	})
}
