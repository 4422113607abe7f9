package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/button-game/internal/model"
)

// ProfileRepo reads and upgrades the premium profile of a user.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

// UpgradeResult reports what Upgrade changed.  Activated is true only for
// the call that flipped is_premium from false to true.
type UpgradeResult struct {
	Profile   model.Profile
	Activated bool
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureProfileTx(ctx context.Context, ex execer, userID uint64) error {
	_, err := ex.ExecContext(ctx,
		"INSERT INTO profiles (user_id, is_premium) VALUES (?, 0) ON DUPLICATE KEY UPDATE user_id = user_id",
		userID)
	return err
}

// Ensure returns the user's profile, creating a non-premium one if absent.
func (r *ProfileRepo) Ensure(ctx context.Context, userID uint64) (model.Profile, error) {
	if err := ensureProfileTx(ctx, r.DB, userID); err != nil {
		return model.Profile{}, err
	}
	return r.Get(ctx, userID)
}

// Get fetches the profile or ErrNotFound.
func (r *ProfileRepo) Get(ctx context.Context, userID uint64) (model.Profile, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT user_id, is_premium, billing_customer_id, premium_since, updated_at FROM profiles WHERE user_id=? LIMIT 1",
		userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	return p, err
}

// Upgrade marks the user premium and records customerID when non-empty.
// The row is locked for the duration of the transaction so concurrent
// redirect and webhook confirmations serialise; applying the same values a
// second time writes nothing.
func (r *ProfileRepo) Upgrade(ctx context.Context, userID uint64, customerID string) (UpgradeResult, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return UpgradeResult{}, err
	}
	defer tx.Rollback()

	if err := ensureProfileTx(ctx, tx, userID); err != nil {
		return UpgradeResult{}, err
	}
	row := tx.QueryRowContext(ctx,
		"SELECT user_id, is_premium, billing_customer_id, premium_since, updated_at FROM profiles WHERE user_id=? FOR UPDATE",
		userID)
	cur, err := scanProfile(row)
	if err != nil {
		return UpgradeResult{}, err
	}

	customerChanged := customerID != "" && cur.CustomerID() != customerID
	if cur.IsPremium && !customerChanged {
		return UpgradeResult{Profile: cur}, tx.Commit()
	}

	now := time.Now().UTC()
	next := cur
	next.IsPremium = true
	next.UpdatedAt = now
	if next.PremiumSince == nil {
		next.PremiumSince = &now
	}
	if customerChanged {
		next.BillingCustomerID = &customerID
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE profiles SET is_premium=1, billing_customer_id=?, premium_since=?, updated_at=? WHERE user_id=?",
		nullString(next.BillingCustomerID), *next.PremiumSince, now, userID); err != nil {
		return UpgradeResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return UpgradeResult{}, err
	}
	return UpgradeResult{Profile: next, Activated: !cur.IsPremium}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (model.Profile, error) {
	var (
		p        model.Profile
		customer sql.NullString
		since    sql.NullTime
	)
	if err := row.Scan(&p.UserID, &p.IsPremium, &customer, &since, &p.UpdatedAt); err != nil {
		return model.Profile{}, err
	}
	if customer.Valid {
		s := customer.String
		p.BillingCustomerID = &s
	}
	if since.Valid {
		t := since.Time
		p.PremiumSince = &t
	}
	return p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
