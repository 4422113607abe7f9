package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/middleware"
	"github.com/iliyamo/button-game/internal/payment"
	"github.com/iliyamo/button-game/internal/service"
)

// MaxWebhookBody caps the webhook payload size.
const MaxWebhookBody = 64 << 10

// PaymentHandler serves the premium checkout flow and the processor webhook.
type PaymentHandler struct {
	Payments *service.PaymentService
	Accounts *service.AccountService
	BaseURL  string // public origin; derived from the request when empty
	Log      *zap.Logger
}

func NewPaymentHandler(p *service.PaymentService, a *service.AccountService, baseURL string, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{Payments: p, Accounts: a, BaseURL: baseURL, Log: log}
}

// Checkout redirects to the hosted checkout page, or back to the profile
// with a message when that is not possible or not needed.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	id, _ := middleware.IdentityFrom(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout+service.RemoteTimeout)
	defer cancel()

	u, err := h.Accounts.Get(ctx, id.UserID)
	if err != nil {
		h.Log.Error("checkout user lookup failed", zap.Uint64("user_id", id.UserID), zap.Error(err))
		return redirectWith(c, "/profile/", "error", "Something went wrong, please try again.")
	}
	res, err := h.Payments.StartCheckout(ctx, u, baseURL(c, h.BaseURL))
	switch {
	case err != nil:
		var re *service.RemoteProcessorError
		if errors.As(err, &re) {
			return redirectWith(c, "/profile/", "error", "Error creating checkout session. Please try again later.")
		}
		h.Log.Error("checkout failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		return redirectWith(c, "/profile/", "error", "Something went wrong, please try again.")
	case res.AlreadyPremium:
		return redirectWith(c, "/profile/", "info", "You already have premium access!")
	}
	return c.Redirect(http.StatusFound, res.URL)
}

// Success is the processor's return URL.  It confirms the payment when it
// belongs to the logged-in user; the webhook remains authoritative.
func (h *PaymentHandler) Success(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return c.Redirect(http.StatusFound, "/profile/")
	}
	id, _ := middleware.IdentityFrom(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout+service.RemoteTimeout)
	defer cancel()

	u, err := h.Accounts.Get(ctx, id.UserID)
	if err != nil {
		h.Log.Error("payment success user lookup failed", zap.Uint64("user_id", id.UserID), zap.Error(err))
		return c.Redirect(http.StatusFound, "/profile/")
	}
	res, err := h.Payments.ConfirmFromRedirect(ctx, u, sessionID)
	if err != nil {
		h.Log.Warn("payment confirmation failed", zap.Uint64("user_id", u.ID), zap.String("session_id", sessionID), zap.Error(err))
		return redirectWith(c, "/profile/", "error", "Error verifying payment. If you were charged, premium will be activated shortly.")
	}
	switch res.Status {
	case service.RedirectPaid:
		addFlash(c, "success", "🎉 Welcome to Premium! You now have access to all button colors!")
		return render(c, http.StatusOK, "payment_success", "Payment received", nil)
	case service.RedirectMismatch:
		return redirectWith(c, "/profile/", "error", "This payment does not belong to your account.")
	default:
		return redirectWith(c, "/profile/", "warning", "Your payment has not been completed yet.")
	}
}

// Cancel is the processor's cancel URL.
func (h *PaymentHandler) Cancel(c echo.Context) error {
	addFlash(c, "info", "Payment cancelled. You can upgrade to premium anytime!")
	return render(c, http.StatusOK, "payment_cancel", "Payment cancelled", nil)
}

// Webhook receives signed processor events.  It answers 400 for bad
// signatures or payloads, 500 for storage failures (so the processor
// retries) and 200 for everything else, including ignored events.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxWebhookBody+1))
	if err != nil || len(body) > MaxWebhookBody {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	res, err := h.Payments.ConfirmFromWebhook(ctx, body, c.Request().Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrSignatureVerification):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "signature verification failed"})
	case errors.Is(err, payment.ErrMalformedEvent):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	case err != nil:
		h.Log.Error("webhook processing failed", zap.String("event_id", res.EventID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
	}
	h.Log.Info("webhook processed",
		zap.String("event_id", res.EventID),
		zap.String("type", res.EventType),
		zap.Int("outcome", int(res.Outcome)),
		zap.Uint64("user_id", res.UserID),
		zap.Bool("activated", res.Activated))
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
