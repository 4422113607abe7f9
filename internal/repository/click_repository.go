package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/button-game/internal/model"
)

// ClickRepo owns the `clicks` table: per-user counters and the ranking
// queries built on them.
type ClickRepo struct{ DB *sql.DB }

func NewClickRepo(db *sql.DB) *ClickRepo { return &ClickRepo{DB: db} }

func ensureClicksTx(ctx context.Context, ex execer, userID uint64, now time.Time) error {
	_, err := ex.ExecContext(ctx,
		"INSERT INTO clicks (user_id, click_count, last_clicked) VALUES (?, 0, ?) ON DUPLICATE KEY UPDATE user_id = user_id",
		userID, now)
	return err
}

// Ensure returns the user's counter, creating it at zero if absent.
func (r *ClickRepo) Ensure(ctx context.Context, userID uint64) (model.ClickCounter, error) {
	if err := ensureClicksTx(ctx, r.DB, userID, time.Now().UTC()); err != nil {
		return model.ClickCounter{}, err
	}
	return r.Get(ctx, userID)
}

// Get fetches the counter or ErrNotFound.
func (r *ClickRepo) Get(ctx context.Context, userID uint64) (model.ClickCounter, error) {
	var c model.ClickCounter
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, click_count, last_clicked FROM clicks WHERE user_id=? LIMIT 1",
		userID).Scan(&c.UserID, &c.ClickCount, &c.LastClicked)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ClickCounter{}, ErrNotFound
	}
	return c, err
}

// Increment adds one click and returns the new count.  The upsert is a
// single statement, so concurrent increments for the same user serialise on
// the row lock and none are lost; the follow-up read runs inside the same
// transaction and therefore sees this call's own write.
func (r *ClickRepo) Increment(ctx context.Context, userID uint64) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO clicks (user_id, click_count, last_clicked) VALUES (?, 1, ?) ON DUPLICATE KEY UPDATE click_count = click_count + 1, last_clicked = VALUES(last_clicked)",
		userID, time.Now().UTC()); err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRowContext(ctx,
		"SELECT click_count FROM clicks WHERE user_id=?", userID).Scan(&count); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// Top lists the highest counters, ties broken by user id ascending.
func (r *ClickRepo) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT u.id, u.username, c.click_count, COALESCE(p.is_premium, 0)
		FROM clicks c
		JOIN users u ON u.id = c.user_id
		LEFT JOIN profiles p ON p.user_id = c.user_id
		ORDER BY c.click_count DESC, u.id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.ClickCount, &e.IsPremium); err != nil {
			return nil, err
		}
		e.Position = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountAbove returns how many counters are strictly greater than count.
func (r *ClickRepo) CountAbove(ctx context.Context, count int64) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM clicks WHERE click_count > ?", count).Scan(&n)
	return n, err
}

// Totals returns the number of players with at least one click and the sum
// of all clicks.
func (r *ClickRepo) Totals(ctx context.Context) (model.LeaderboardTotals, error) {
	var t model.LeaderboardTotals
	err := r.DB.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(click_count > 0), 0), COALESCE(SUM(click_count), 0) FROM clicks").
		Scan(&t.Players, &t.TotalClicks)
	return t, err
}
