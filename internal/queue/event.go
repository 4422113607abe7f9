// Package queue defines message payloads exchanged over the message broker
// together with the publisher and background consumer for them.
package queue

// PremiumQueueName is the durable queue premium activations are routed to.
const PremiumQueueName = "premium.activated"

// PremiumActivatedEvent is published the first time a user becomes premium.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type PremiumActivatedEvent struct {
	UserID      uint64 `json:"user_id"`
	Username    string `json:"username"`
	CustomerID  string `json:"customer_id,omitempty"`
	Source      string `json:"source"` // "webhook" or "redirect"
	SessionID   string `json:"session_id,omitempty"`
	ActivatedAt string `json:"activated_at"`
}
