package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/model"
)

// ClickService owns the per-user click counter.
type ClickService struct {
	clicks ClickStore
	log    *zap.Logger
}

func NewClickService(clicks ClickStore, log *zap.Logger) *ClickService {
	return &ClickService{clicks: clicks, log: log}
}

// Increment adds exactly one click for userID and returns the new count.
// The store performs the create-or-increment atomically, so concurrent
// calls for the same user are all counted.
func (s *ClickService) Increment(ctx context.Context, userID uint64) (int64, error) {
	if userID == 0 {
		return 0, ErrAuthenticationRequired
	}
	n, err := s.clicks.Increment(ctx, userID)
	if err != nil {
		s.log.Error("click increment failed", zap.Uint64("user_id", userID), zap.Error(err))
		return 0, storageErr("increment click", err)
	}
	return n, nil
}

// Counter returns the user's counter, creating it at zero if missing.
func (s *ClickService) Counter(ctx context.Context, userID uint64) (model.ClickCounter, error) {
	if userID == 0 {
		return model.ClickCounter{}, ErrAuthenticationRequired
	}
	c, err := s.clicks.Ensure(ctx, userID)
	if err != nil {
		return model.ClickCounter{}, storageErr("load click counter", err)
	}
	return c, nil
}
