package model

import "time"

// ClickCounter is the per-user row of the `clicks` table.  ClickCount
// never decreases.
type ClickCounter struct {
	UserID      uint64    // clicks.user_id
	ClickCount  int64     // clicks.click_count
	LastClicked time.Time // clicks.last_clicked
}

// LeaderboardEntry is one ranked row of the public leaderboard.
type LeaderboardEntry struct {
	Position   int    `json:"position"`
	UserID     uint64 `json:"user_id"`
	Username   string `json:"username"`
	ClickCount int64  `json:"click_count"`
	IsPremium  bool   `json:"is_premium"`
}

// LeaderboardTotals aggregates all counters.
type LeaderboardTotals struct {
	Players     int64 `json:"total_players"`
	TotalClicks int64 `json:"total_clicks"`
}
