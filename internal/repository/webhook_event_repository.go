package repository

import (
	"context"
	"database/sql"
	"time"
)

// WebhookEventRepo remembers which payment processor events have been
// applied so replays can be acknowledged without reprocessing.
type WebhookEventRepo struct{ DB *sql.DB }

func NewWebhookEventRepo(db *sql.DB) *WebhookEventRepo { return &WebhookEventRepo{DB: db} }

// Seen reports whether eventID was recorded before.
func (r *WebhookEventRepo) Seen(ctx context.Context, eventID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM webhook_events WHERE provider_event_id=?", eventID).Scan(&n)
	return n > 0, err
}

// Record stores eventID; recording the same id twice is a no-op.
func (r *WebhookEventRepo) Record(ctx context.Context, eventID, eventType string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO webhook_events (provider_event_id, event_type, processed_at) VALUES (?,?,?) ON DUPLICATE KEY UPDATE provider_event_id = provider_event_id",
		eventID, eventType, time.Now().UTC())
	return err
}
