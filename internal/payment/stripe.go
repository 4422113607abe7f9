package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/config"
)

const (
	premiumProductName        = "Button Game Premium"
	premiumProductDescription = "Unlock exclusive button colors and premium features!"
)

// StripeGateway implements Gateway with an explicitly configured Stripe
// client.  The process-wide stripe.Key is never touched.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	price         int64
	currency      string
	log           *zap.Logger
}

// NewStripeGateway builds a client whose HTTP calls are bounded by
// cfg.Timeout and never retried by the library.
func NewStripeGateway(cfg config.StripeConfig, log *zap.Logger) *StripeGateway {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		EnableTelemetry:   stripe.Bool(false),
		LeveledLogger:     log.Named("stripe").Sugar(),
	}
	if cfg.APIBase != "" {
		backendCfg.URL = stripe.String(cfg.APIBase)
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}
	currency := cfg.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeGateway{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		price:         cfg.PremiumPrice,
		currency:      currency,
		log:           log,
	}
}

// CreateCheckoutSession opens a hosted checkout in payment mode for the
// premium upgrade.  The user id travels as metadata and client reference so
// the webhook can attribute the payment without local state.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	uid := strconv.FormatUint(req.UserID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(g.currency),
					UnitAmount: stripe.Int64(g.price),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(premiumProductName),
						Description: stripe.String(premiumProductDescription),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(uid),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.AddMetadata(MetadataUserID, uid)
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	g.log.Info("checkout session created",
		zap.String("session_id", sess.ID),
		zap.Uint64("user_id", req.UserID))
	return toSession(sess), nil
}

// GetCheckoutSession retrieves a session by id.
func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("get checkout session %s: %w", id, err)
	}
	return toSession(sess), nil
}

// ConstructEvent verifies the Stripe-Signature header against the signing
// secret and decodes the event.  Any verification problem maps to
// ErrSignatureVerification.
func (g *StripeGateway) ConstructEvent(payload []byte, signatureHeader string) (Event, error) {
	if signatureHeader == "" {
		return Event{}, ErrSignatureVerification
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		g.log.Warn("webhook rejected", zap.Error(err))
		return Event{}, ErrSignatureVerification
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type == EventCheckoutSessionCompleted {
		if ev.Data == nil {
			return Event{}, ErrMalformedEvent
		}
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		s := toSession(&sess)
		out.Session = &s
	}
	return out, nil
}

func toSession(s *stripe.CheckoutSession) CheckoutSession {
	out := CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		UserID:        parseUserID(s.Metadata[MetadataUserID], s.ClientReferenceID),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	return out
}
