package handler_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/button-game/internal/config"
	"github.com/iliyamo/button-game/internal/handler"
	"github.com/iliyamo/button-game/internal/middleware"
	"github.com/iliyamo/button-game/internal/payment"
	"github.com/iliyamo/button-game/internal/router"
	"github.com/iliyamo/button-game/internal/service"
	"github.com/iliyamo/button-game/internal/service/memstore"
	"github.com/iliyamo/button-game/internal/view"
)

const whsec = "whsec_e2e"

type app struct {
	srv         *httptest.Server
	db          *memstore.DB
	stripeCalls atomic.Int32
	// paidUser is reported as the metadata user of retrieved sessions.
	paidUser atomic.Uint64
}

func newApp(t *testing.T) *app {
	t.Helper()
	a := &app{db: memstore.New()}
	nop := zap.NewNop()

	stripeAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.stripeCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/checkout/sessions":
			_ = r.ParseForm()
			fmt.Fprintf(w, `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.test/cs_test_1","payment_status":"unpaid","metadata":{"user_id":%q}}`,
				r.PostForm.Get("metadata[user_id]"))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/checkout/sessions/cs_test_1":
			fmt.Fprintf(w, `{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","customer":"cus_42","metadata":{"user_id":"%d"}}`,
				a.paidUser.Load())
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"not found"}}`))
		}
	}))
	t.Cleanup(stripeAPI.Close)

	gateway := payment.NewStripeGateway(config.StripeConfig{
		SecretKey:     "sk_test_e2e",
		WebhookSecret: whsec,
		PremiumPrice:  499,
		Currency:      "usd",
		Timeout:       2 * time.Second,
		APIBase:       stripeAPI.URL,
	}, nop)

	accounts := service.NewAccountService(a.db.Users, bcrypt.MinCost, nop)
	sessions := service.NewSessionService(a.db.Tokens, a.db.Users, "jwt-secret", 15, 7, nop)
	clicks := service.NewClickService(a.db.Clicks, nop)
	board := service.NewLeaderboardService(a.db.Clicks)
	payments := service.NewPaymentService(a.db.Profiles, a.db.Users, a.db.Webhooks, gateway, nil, nop)
	cookies := middleware.CookieOptions{}

	e := echo.New()
	e.Renderer = view.MustNew()
	router.UseCommon(e, router.Common{Sessions: sessions, Cookies: cookies, SessionSecret: "flash-secret", Log: nop})
	router.RegisterRoutes(e, handler.Health(okPinger{}))
	router.RegisterAuth(e, handler.NewAuthHandler(accounts, sessions, cookies, nop))
	router.RegisterGame(e,
		handler.NewGameHandler(clicks, board, payments, nop),
		handler.NewLeaderboardHandler(board, nop),
		middleware.NewTokenBucket(config.RateLimitConfig{}, nil, nop),
		middleware.NewRedisCache(config.CacheConfig{}, nil, nop),
	)
	router.RegisterPayment(e, handler.NewPaymentHandler(payments, accounts, "", nop))

	a.srv = httptest.NewServer(e)
	t.Cleanup(a.srv.Close)
	return a
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type downPinger struct{}

func (downPinger) PingContext(context.Context) error { return errors.New("down") }

// browser keeps cookies and does not follow redirects.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (a *app) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: a.srv.URL, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (b *browser) csrf() string {
	u, _ := url.Parse(b.base)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == "_csrf" {
			return c.Value
		}
	}
	return ""
}

func (b *browser) do(req *http.Request) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp, string(body)
}

func (b *browser) get(path string) (*http.Response, string) {
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) postForm(path string, form url.Values) (*http.Response, string) {
	form.Set("csrf_token", b.csrf())
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) click() (*http.Response, map[string]any) {
	req, err := http.NewRequest(http.MethodPost, b.base+"/api/button-click/", nil)
	require.NoError(b.t, err)
	req.Header.Set("X-CSRF-Token", b.csrf())
	resp, body := b.do(req)
	var out map[string]any
	require.NoError(b.t, json.Unmarshal([]byte(body), &out), body)
	return resp, out
}

func (b *browser) signup(username string) {
	b.t.Helper()
	b.get("/signup/")
	resp, body := b.postForm("/signup/", url.Values{
		"username":  {username},
		"email":     {username + "@example.com"},
		"password1": {"correct-horse"},
		"password2": {"correct-horse"},
	})
	require.Equal(b.t, http.StatusFound, resp.StatusCode, body)
	require.Equal(b.t, "/game/", resp.Header.Get("Location"))
}

func signedWebhook(t *testing.T, base, payload, secret string) *http.Response {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, []byte(payload), secret)
	req, err := http.NewRequest(http.MethodPost, base+router.WebhookPath, strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig)))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func completedPayload(eventID string, userID uint64) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","customer":"cus_42","metadata":{"user_id":"%d"}}}}`,
		eventID, userID)
}

func TestSignupClickWebhookLeaderboard(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	bob, err := a.db.Users.Create(ctx, "bob", "bob@example.com", "x")
	require.NoError(t, err)
	a.db.Clicks.Set(bob.ID, 5)
	carol, err := a.db.Users.Create(ctx, "carol", "carol@example.com", "x")
	require.NoError(t, err)
	a.db.Clicks.Set(carol.ID, 1)

	alice := a.browser(t)
	alice.signup("alice")

	u, err := a.db.Users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	p, _ := a.db.Profiles.Ensure(ctx, u.ID)
	assert.False(t, p.IsPremium)
	c, _ := a.db.Clicks.Ensure(ctx, u.ID)
	assert.Zero(t, c.ClickCount)

	for i := 1; i <= 3; i++ {
		resp, body := alice.click()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(i), body["click_count"])
		assert.Equal(t, fmt.Sprintf("Click #%d!", i), body["message"])
	}

	resp := signedWebhook(t, a.srv.URL, completedPayload("evt_e2e_1", u.ID), whsec)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p, _ = a.db.Profiles.Ensure(ctx, u.ID)
	assert.True(t, p.IsPremium)
	assert.Equal(t, "cus_42", p.CustomerID())

	resp = signedWebhook(t, a.srv.URL, completedPayload("evt_e2e_1", u.ID), whsec)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "replays are acknowledged")

	_, body := alice.get("/api/leaderboard/")
	var lb struct {
		Players []struct {
			Position   int    `json:"position"`
			Username   string `json:"username"`
			ClickCount int64  `json:"click_count"`
			IsPremium  bool   `json:"is_premium"`
		} `json:"players"`
		Totals struct {
			Players     int64 `json:"total_players"`
			TotalClicks int64 `json:"total_clicks"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &lb), body)
	require.Len(t, lb.Players, 3)
	assert.Equal(t, "bob", lb.Players[0].Username)
	assert.Equal(t, "alice", lb.Players[1].Username)
	assert.Equal(t, 2, lb.Players[1].Position)
	assert.Equal(t, int64(3), lb.Players[1].ClickCount)
	assert.True(t, lb.Players[1].IsPremium)
	assert.Equal(t, int64(9), lb.Totals.TotalClicks)

	resp, page := alice.get("/leaderboard/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "You are ranked #2 with 3 clicks.")

	_, page = alice.get("/profile/")
	assert.Contains(t, page, "Rank: #2")
	assert.Contains(t, page, "Premium member")
}

func TestWebhookInvalidSignatureRejected(t *testing.T) {
	a := newApp(t)
	u, err := a.db.Users.Create(context.Background(), "alice", "a@example.com", "x")
	require.NoError(t, err)

	resp := signedWebhook(t, a.srv.URL, completedPayload("evt_bad", u.ID), "whsec_wrong")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, a.srv.URL+router.WebhookPath, strings.NewReader(completedPayload("evt_bad", u.ID)))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	p, _ := a.db.Profiles.Ensure(context.Background(), u.ID)
	assert.False(t, p.IsPremium)
	assert.Zero(t, a.db.Profiles.Writes)
}

func TestWebhookUnknownUserAcknowledged(t *testing.T) {
	a := newApp(t)
	resp := signedWebhook(t, a.srv.URL, completedPayload("evt_ghost", 424242), whsec)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, a.db.Profiles.Writes)
}

func TestCheckoutFlow(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.signup("alice")
	u, err := a.db.Users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)

	resp, _ := b.get("/payment/checkout/")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", resp.Header.Get("Location"))
	assert.Equal(t, int32(1), a.stripeCalls.Load())

	a.paidUser.Store(u.ID)
	resp, page := b.get("/payment/success/?session_id=cs_test_1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Payment received")
	p, _ := a.db.Profiles.Ensure(context.Background(), u.ID)
	assert.True(t, p.IsPremium)

	calls := a.stripeCalls.Load()
	resp, _ = b.get("/payment/checkout/")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/profile/", resp.Header.Get("Location"))
	assert.Equal(t, calls, a.stripeCalls.Load(), "premium users never reach the processor")

	_, page = b.get("/profile/")
	assert.Contains(t, page, "You already have premium access!")
}

func TestSuccessRedirectForOtherUsersSessionDoesNotUpgrade(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.signup("mallory")
	u, err := a.db.Users.GetByUsername(context.Background(), "mallory")
	require.NoError(t, err)

	a.paidUser.Store(u.ID + 100)
	resp, _ := b.get("/payment/success/?session_id=cs_test_1")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/profile/", resp.Header.Get("Location"))
	p, _ := a.db.Profiles.Ensure(context.Background(), u.ID)
	assert.False(t, p.IsPremium)
}

func TestAuthRequired(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	resp, _ := b.get("/game/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login/?next=%2Fgame%2F", resp.Header.Get("Location"))

	b.get("/")
	resp, body := b.click()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestLoginLogout(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.signup("alice")

	resp, _ := b.get("/logout/")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	resp, _ = b.get("/game/")
	require.Equal(t, http.StatusFound, resp.StatusCode, "logged out")

	b.get("/login/")
	resp, page := b.postForm("/login/", url.Values{"username": {"alice"}, "password": {"nope"}, "next": {"/profile/"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Please enter a correct username and password.")

	resp, _ = b.postForm("/login/", url.Values{"username": {"alice"}, "password": {"correct-horse"}, "next": {"//evil.example"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/game/", resp.Header.Get("Location"))

	resp, _ = b.get("/game/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSignupShowsValidationErrors(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.get("/signup/")
	resp, page := b.postForm("/signup/", url.Values{
		"username": {"alice"}, "email": {"alice@example.com"},
		"password1": {"correct-horse"}, "password2": {"different"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "The two password fields didn&#39;t match.")
}

func TestHealth(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	require.NoError(t, handler.Health(okPinger{})(e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	require.NoError(t, handler.Health(downPinger{})(e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
