package service

import (
	"context"

	"github.com/iliyamo/button-game/internal/model"
)

// MaxLeaderboardSize bounds TopPlayers.
const MaxLeaderboardSize = 100

// Standing is a player's own position on the board.
type Standing struct {
	Counter model.ClickCounter
	Rank    int64
}

// Board is everything the leaderboard page shows.
type Board struct {
	Top    []model.LeaderboardEntry
	Totals model.LeaderboardTotals
	Viewer *Standing // nil for anonymous visitors
}

// LeaderboardService is a read-only view over click counters.
type LeaderboardService struct {
	clicks ClickStore
}

func NewLeaderboardService(clicks ClickStore) *LeaderboardService {
	return &LeaderboardService{clicks: clicks}
}

// TopPlayers returns up to limit players by descending click count, ties
// by ascending user id.  Non-positive or oversized limits mean the maximum.
func (s *LeaderboardService) TopPlayers(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 || limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}
	top, err := s.clicks.Top(ctx, limit)
	if err != nil {
		return nil, storageErr("leaderboard top", err)
	}
	return top, nil
}

// Rank is 1 + the number of players with strictly more clicks, so tied
// players share a rank.
func (s *LeaderboardService) Rank(ctx context.Context, userID uint64) (Standing, error) {
	if userID == 0 {
		return Standing{}, ErrAuthenticationRequired
	}
	c, err := s.clicks.Ensure(ctx, userID)
	if err != nil {
		return Standing{}, storageErr("leaderboard rank", err)
	}
	above, err := s.clicks.CountAbove(ctx, c.ClickCount)
	if err != nil {
		return Standing{}, storageErr("leaderboard rank", err)
	}
	return Standing{Counter: c, Rank: above + 1}, nil
}

func (s *LeaderboardService) Totals(ctx context.Context) (model.LeaderboardTotals, error) {
	t, err := s.clicks.Totals(ctx)
	if err != nil {
		return model.LeaderboardTotals{}, storageErr("leaderboard totals", err)
	}
	return t, nil
}

// Board assembles the page; viewerID 0 means anonymous.
func (s *LeaderboardService) Board(ctx context.Context, viewerID uint64) (Board, error) {
	top, err := s.TopPlayers(ctx, MaxLeaderboardSize)
	if err != nil {
		return Board{}, err
	}
	totals, err := s.Totals(ctx)
	if err != nil {
		return Board{}, err
	}
	b := Board{Top: top, Totals: totals}
	if viewerID != 0 {
		st, err := s.Rank(ctx, viewerID)
		if err != nil {
			return Board{}, err
		}
		b.Viewer = &st
	}
	return b, nil
}
