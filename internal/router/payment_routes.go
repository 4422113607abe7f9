package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/button-game/internal/handler"
	"github.com/iliyamo/button-game/internal/middleware"
)

// RegisterPayment registers the checkout flow (login required) and the
// unauthenticated, size-limited processor webhook.
func RegisterPayment(e *echo.Echo, p *handler.PaymentHandler) {
	login := middleware.RequireLogin()
	e.GET("/payment/checkout/", p.Checkout, login)
	e.GET("/payment/success/", p.Success, login)
	e.GET("/payment/cancel/", p.Cancel, login)

	e.POST(WebhookPath, p.Webhook, echomw.BodyLimit("64K"))
}
