package service

import (
	"context"
	"time"

	"github.com/iliyamo/button-game/internal/model"
	"github.com/iliyamo/button-game/internal/queue"
	"github.com/iliyamo/button-game/internal/repository"
)

// The interfaces below are satisfied by the MySQL repositories in
// internal/repository and by the in-memory store in internal/service/memstore.

type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
}

type ClickStore interface {
	Ensure(ctx context.Context, userID uint64) (model.ClickCounter, error)
	Increment(ctx context.Context, userID uint64) (int64, error)
	Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	CountAbove(ctx context.Context, count int64) (int64, error)
	Totals(ctx context.Context) (model.LeaderboardTotals, error)
}

type ProfileStore interface {
	Ensure(ctx context.Context, userID uint64) (model.Profile, error)
	Upgrade(ctx context.Context, userID uint64, customerID string) (repository.UpgradeResult, error)
}

type WebhookLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID, eventType string) error
}

// EventPublisher receives premium activations.  *queue.Publisher implements it.
type EventPublisher interface {
	PublishPremiumActivated(ctx context.Context, ev queue.PremiumActivatedEvent) error
}

var (
	_ UserStore      = (*repository.UserRepo)(nil)
	_ TokenStore     = (*repository.TokenRepo)(nil)
	_ ClickStore     = (*repository.ClickRepo)(nil)
	_ ProfileStore   = (*repository.ProfileRepo)(nil)
	_ WebhookLedger  = (*repository.WebhookEventRepo)(nil)
	_ EventPublisher = (*queue.Publisher)(nil)
)
