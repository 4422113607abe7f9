package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/model"
	"github.com/iliyamo/button-game/internal/payment"
	"github.com/iliyamo/button-game/internal/queue"
	"github.com/iliyamo/button-game/internal/repository"
)

// RemoteTimeout is the time budget callers should allow for one processor
// call on top of their storage work.
const RemoteTimeout = 10 * time.Second

// CheckoutResult is returned by StartCheckout.  When AlreadyPremium is set
// nothing was sent to the processor and URL is empty.
type CheckoutResult struct {
	AlreadyPremium bool
	SessionID      string
	URL            string
}

// RedirectStatus is the outcome of ConfirmFromRedirect.
type RedirectStatus int

const (
	RedirectPaid     RedirectStatus = iota // session paid and applied to the caller
	RedirectUnpaid                         // session exists but is not paid
	RedirectMismatch                       // session belongs to another user; nothing applied
)

type RedirectResult struct {
	Status    RedirectStatus
	Activated bool
	Profile   model.Profile
}

// WebhookOutcome describes what ConfirmFromWebhook did with an event.
type WebhookOutcome int

const (
	WebhookApplied   WebhookOutcome = iota // premium upgrade applied (possibly a no-op replay)
	WebhookIgnored                         // unknown type, unknown or missing user
	WebhookDuplicate                       // event id already processed
)

type WebhookResult struct {
	EventID   string
	EventType string
	Outcome   WebhookOutcome
	UserID    uint64
	Activated bool
}

// PaymentService orchestrates the premium purchase.  The webhook is the
// authoritative path; the browser redirect only applies a payment that
// verifiably belongs to the logged-in user.
type PaymentService struct {
	profiles  ProfileStore
	users     UserStore
	ledger    WebhookLedger
	gateway   payment.Gateway
	publisher EventPublisher // nil when the queue is disabled
	log       *zap.Logger

	wg sync.WaitGroup
}

func NewPaymentService(profiles ProfileStore, users UserStore, ledger WebhookLedger, gateway payment.Gateway, publisher EventPublisher, log *zap.Logger) *PaymentService {
	return &PaymentService{
		profiles:  profiles,
		users:     users,
		ledger:    ledger,
		gateway:   gateway,
		publisher: publisher,
		log:       log,
	}
}

// Profile returns the user's profile, creating it if missing.
func (s *PaymentService) Profile(ctx context.Context, userID uint64) (model.Profile, error) {
	if userID == 0 {
		return model.Profile{}, ErrAuthenticationRequired
	}
	p, err := s.profiles.Ensure(ctx, userID)
	if err != nil {
		return model.Profile{}, storageErr("load profile", err)
	}
	return p, nil
}

// StartCheckout opens a hosted checkout for u.  baseURL is the public
// origin the processor redirects back to.
func (s *PaymentService) StartCheckout(ctx context.Context, u model.User, baseURL string) (CheckoutResult, error) {
	p, err := s.Profile(ctx, u.ID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if p.IsPremium {
		return CheckoutResult{AlreadyPremium: true}, nil
	}

	base := strings.TrimRight(baseURL, "/")
	sess, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		UserID:     u.ID,
		Email:      u.Email,
		SuccessURL: base + "/payment/success/?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  base + "/payment/cancel/",
	})
	if err != nil {
		s.log.Warn("checkout session creation failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		return CheckoutResult{}, &RemoteProcessorError{Op: "start checkout", Err: err}
	}
	return CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// ConfirmFromRedirect applies a paid session when the browser returns from
// the processor.  A session whose metadata names a different user is never
// applied.
func (s *PaymentService) ConfirmFromRedirect(ctx context.Context, u model.User, sessionID string) (RedirectResult, error) {
	if u.ID == 0 {
		return RedirectResult{}, ErrAuthenticationRequired
	}
	sess, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return RedirectResult{}, &RemoteProcessorError{Op: "confirm checkout", Err: err}
	}
	if !sess.Paid() {
		return RedirectResult{Status: RedirectUnpaid}, nil
	}
	if sess.UserID != u.ID {
		s.log.Warn("checkout session user mismatch",
			zap.String("session_id", sess.ID),
			zap.Uint64("session_user_id", sess.UserID),
			zap.Uint64("user_id", u.ID))
		return RedirectResult{Status: RedirectMismatch}, nil
	}

	res, err := s.profiles.Upgrade(ctx, u.ID, sess.CustomerID)
	if err != nil {
		return RedirectResult{}, storageErr("confirm checkout", err)
	}
	if res.Activated {
		s.announce(ctx, u, sess, "redirect")
	}
	return RedirectResult{Status: RedirectPaid, Activated: res.Activated, Profile: res.Profile}, nil
}

// ConfirmFromWebhook verifies and applies a processor notification.
// Signature problems return payment.ErrSignatureVerification or
// payment.ErrMalformedEvent; storage problems return *StorageError so the
// processor redelivers.  Everything else is acknowledged.
func (s *PaymentService) ConfirmFromWebhook(ctx context.Context, payload []byte, signatureHeader string) (WebhookResult, error) {
	ev, err := s.gateway.ConstructEvent(payload, signatureHeader)
	if err != nil {
		return WebhookResult{}, err
	}
	res := WebhookResult{EventID: ev.ID, EventType: ev.Type, Outcome: WebhookIgnored}

	if ev.ID != "" {
		seen, err := s.ledger.Seen(ctx, ev.ID)
		if err != nil {
			return res, storageErr("webhook ledger", err)
		}
		if seen {
			res.Outcome = WebhookDuplicate
			return res, nil
		}
	}

	switch ev.Type {
	case payment.EventCheckoutSessionCompleted:
		if ev.Session == nil {
			return res, payment.ErrMalformedEvent
		}
		applied, err := s.applyWebhookSession(ctx, *ev.Session, &res)
		if err != nil {
			return res, err
		}
		if applied {
			res.Outcome = WebhookApplied
		}
	default:
		s.log.Debug("webhook event ignored", zap.String("type", ev.Type), zap.String("event_id", ev.ID))
	}

	if ev.ID != "" {
		if err := s.ledger.Record(ctx, ev.ID, ev.Type); err != nil {
			return res, storageErr("webhook ledger", err)
		}
	}
	return res, nil
}

func (s *PaymentService) applyWebhookSession(ctx context.Context, sess payment.CheckoutSession, res *WebhookResult) (bool, error) {
	if sess.UserID == 0 {
		s.log.Info("webhook session without user id", zap.String("session_id", sess.ID))
		return false, nil
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Info("webhook for unknown user", zap.Uint64("user_id", sess.UserID), zap.String("session_id", sess.ID))
		return false, nil
	}
	if err != nil {
		return false, storageErr("webhook user lookup", err)
	}

	up, err := s.profiles.Upgrade(ctx, u.ID, sess.CustomerID)
	if err != nil {
		return false, storageErr("webhook upgrade", err)
	}
	res.UserID = u.ID
	res.Activated = up.Activated
	if up.Activated {
		s.log.Info("premium activated", zap.Uint64("user_id", u.ID), zap.String("session_id", sess.ID))
		s.announce(ctx, u, sess, "webhook")
	}
	return true, nil
}

// announce publishes the activation in the background.  Failures are
// logged only.
func (s *PaymentService) announce(ctx context.Context, u model.User, sess payment.CheckoutSession, source string) {
	if s.publisher == nil {
		return
	}
	ev := queue.PremiumActivatedEvent{
		UserID:      u.ID,
		Username:    u.Username,
		CustomerID:  sess.CustomerID,
		Source:      source,
		SessionID:   sess.ID,
		ActivatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.publisher.PublishPremiumActivated(ctx, ev); err != nil {
			s.log.Warn("premium event not published", zap.Uint64("user_id", u.ID), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight event publications finish.
func (s *PaymentService) Wait() { s.wg.Wait() }
