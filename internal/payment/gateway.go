// Package payment talks to the external payment processor.  The rest of the
// application only sees the Gateway interface and the plain types below, so
// services can be tested without network access.
package payment

import (
	"context"
	"errors"
	"strconv"
)

// Event types the application reacts to.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
)

// MetadataUserID is the checkout session metadata key carrying our user id.
const MetadataUserID = "user_id"

var (
	// ErrSignatureVerification is returned when a webhook payload does not
	// carry a valid signature for the configured signing secret.
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	// ErrMalformedEvent is returned when a signed payload cannot be decoded.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// CheckoutRequest describes a one-off premium purchase.
type CheckoutRequest struct {
	UserID     uint64
	Email      string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the subset of the processor's session object we use.
type CheckoutSession struct {
	ID            string
	URL           string
	PaymentStatus string
	CustomerID    string
	// UserID is recovered from the session metadata (or the client
	// reference id).  Zero means absent or unparsable.
	UserID uint64
}

// Paid reports whether the processor considers the session paid.
func (s CheckoutSession) Paid() bool { return s.PaymentStatus == "paid" }

// Event is a verified webhook notification.  Session is set for checkout
// session events only.
type Event struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

// Gateway is implemented by StripeGateway and by test doubles.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error)
	ConstructEvent(payload []byte, signatureHeader string) (Event, error)
}

// parseUserID returns the first candidate that parses as a positive id.
func parseUserID(candidates ...string) uint64 {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if id, err := strconv.ParseUint(c, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 0
}
