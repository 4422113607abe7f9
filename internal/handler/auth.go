package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/middleware"
	"github.com/iliyamo/button-game/internal/service"
)

// AuthHandler bundles dependencies for signup, login and logout.
type AuthHandler struct {
	Accounts *service.AccountService
	Sessions *service.SessionService
	Cookies  middleware.CookieOptions
	Log      *zap.Logger
}

func NewAuthHandler(a *service.AccountService, s *service.SessionService, cookies middleware.CookieOptions, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Accounts: a, Sessions: s, Cookies: cookies, Log: log}
}

type signupForm struct {
	Username string
	Email    string
	Errors   map[string][]string
}

type loginForm struct {
	Username string
	Next     string
	Error    string
}

// SignupForm renders the empty signup form.
func (h *AuthHandler) SignupForm(c echo.Context) error {
	if _, ok := middleware.IdentityFrom(c); ok {
		return c.Redirect(http.StatusFound, "/game/")
	}
	return render(c, http.StatusOK, "signup", "Sign up", signupForm{})
}

// Signup creates the account, logs the user in and sends them to the game.
func (h *AuthHandler) Signup(c echo.Context) error {
	var in service.SignupInput
	if err := c.Bind(&in); err != nil {
		return render(c, http.StatusBadRequest, "signup", "Sign up",
			signupForm{Errors: map[string][]string{"__all__": {"Invalid form submission."}}})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Accounts.Signup(ctx, in)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return render(c, http.StatusOK, "signup", "Sign up",
				signupForm{Username: in.Username, Email: in.Email, Errors: verr.Fields})
		}
		h.Log.Error("signup failed", zap.Error(err))
		return render(c, http.StatusInternalServerError, "signup", "Sign up",
			signupForm{Username: in.Username, Email: in.Email, Errors: map[string][]string{"__all__": {"Something went wrong, please try again."}}})
	}

	sess, err := h.Sessions.Issue(ctx, u)
	if err != nil {
		h.Log.Error("session issue failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		return redirectWith(c, "/login/", "success", "Your account has been created. Please log in.")
	}
	middleware.WriteSessionCookies(c, sess, h.Cookies)
	return redirectWith(c, "/game/", "success", "Welcome "+u.Username+"! Your account has been created.")
}

// LoginForm renders the login page.
func (h *AuthHandler) LoginForm(c echo.Context) error {
	next := safeNext(c.QueryParam("next"), "/game/")
	if _, ok := middleware.IdentityFrom(c); ok {
		return c.Redirect(http.StatusFound, next)
	}
	return render(c, http.StatusOK, "login", "Log in", loginForm{Next: next})
}

// Login verifies credentials and starts a session.
func (h *AuthHandler) Login(c echo.Context) error {
	username := c.FormValue("username")
	next := safeNext(c.FormValue("next"), "/game/")

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Accounts.Authenticate(ctx, username, c.FormValue("password"))
	if err != nil {
		status, msg := http.StatusOK, "Please enter a correct username and password."
		if !errors.Is(err, service.ErrInvalidCredentials) {
			h.Log.Error("login failed", zap.Error(err))
			status, msg = http.StatusInternalServerError, "Something went wrong, please try again."
		}
		return render(c, status, "login", "Log in", loginForm{Username: username, Next: next, Error: msg})
	}

	sess, err := h.Sessions.Issue(ctx, u)
	if err != nil {
		h.Log.Error("session issue failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		return render(c, http.StatusInternalServerError, "login", "Log in",
			loginForm{Username: username, Next: next, Error: "Something went wrong, please try again."})
	}
	middleware.WriteSessionCookies(c, sess, h.Cookies)
	return c.Redirect(http.StatusFound, next)
}

// Logout revokes the refresh token and clears the cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	if ck, err := c.Cookie(middleware.RefreshCookie); err == nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
		defer cancel()
		if err := h.Sessions.Revoke(ctx, ck.Value); err != nil {
			h.Log.Warn("logout revoke failed", zap.Error(err))
		}
	}
	middleware.ClearSessionCookies(c, h.Cookies)
	return redirectWith(c, "/", "info", "You have been logged out.")
}
