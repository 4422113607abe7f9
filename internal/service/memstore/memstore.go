// Package memstore is an in-memory implementation of the service stores
// with the same semantics as the MySQL repositories.  It backs service and
// handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/button-game/internal/model"
	"github.com/iliyamo/button-game/internal/repository"
)

type DB struct {
	mu       sync.Mutex
	nextID   uint64
	users    map[uint64]model.User
	profiles map[uint64]model.Profile
	clicks   map[uint64]model.ClickCounter
	tokens   map[string]model.RefreshToken
	events   map[string]string

	Users    *Users
	Tokens   *Tokens
	Clicks   *Clicks
	Profiles *Profiles
	Webhooks *Webhooks
}

func New() *DB {
	db := &DB{
		users:    map[uint64]model.User{},
		profiles: map[uint64]model.Profile{},
		clicks:   map[uint64]model.ClickCounter{},
		tokens:   map[string]model.RefreshToken{},
		events:   map[string]string{},
	}
	db.Users = &Users{db}
	db.Tokens = &Tokens{db}
	db.Clicks = &Clicks{db}
	db.Profiles = &Profiles{db: db}
	db.Webhooks = &Webhooks{db}
	return db
}

type Users struct{ db *DB }

func (u *Users) Create(_ context.Context, username, email, passwordHash string) (model.User, error) {
	db := u.db
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, x := range db.users {
		if x.Username == username {
			return model.User{}, repository.ErrUsernameExists
		}
	}
	db.nextID++
	now := time.Now().UTC()
	usr := model.User{ID: db.nextID, Username: username, Email: email, PasswordHash: passwordHash, IsActive: true, CreatedAt: now, UpdatedAt: now}
	db.users[usr.ID] = usr
	db.profiles[usr.ID] = model.Profile{UserID: usr.ID, UpdatedAt: now}
	db.clicks[usr.ID] = model.ClickCounter{UserID: usr.ID, LastClicked: now}
	return usr, nil
}

func (u *Users) GetByUsername(_ context.Context, username string) (model.User, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	for _, x := range u.db.users {
		if x.Username == username {
			return x, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (u *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	x, ok := u.db.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return x, nil
}

type Tokens struct{ db *DB }

func (t *Tokens) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.tokens[tokenHash] = model.RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: time.Now().UTC()}
	return nil
}

func (t *Tokens) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	rt, ok := t.db.tokens[tokenHash]
	if !ok || rt.RevokedAt != nil || !rt.ExpiresAt.After(time.Now()) {
		return 0, repository.ErrNotFound
	}
	return rt.UserID, nil
}

func (t *Tokens) RevokeByHash(_ context.Context, tokenHash string) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if rt, ok := t.db.tokens[tokenHash]; ok && rt.RevokedAt == nil {
		now := time.Now().UTC()
		rt.RevokedAt = &now
		t.db.tokens[tokenHash] = rt
	}
	return nil
}

type Clicks struct{ db *DB }

func (c *Clicks) Ensure(_ context.Context, userID uint64) (model.ClickCounter, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	cc, ok := c.db.clicks[userID]
	if !ok {
		cc = model.ClickCounter{UserID: userID, LastClicked: time.Now().UTC()}
		c.db.clicks[userID] = cc
	}
	return cc, nil
}

func (c *Clicks) Increment(_ context.Context, userID uint64) (int64, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	cc := c.db.clicks[userID]
	cc.UserID = userID
	cc.ClickCount++
	cc.LastClicked = time.Now().UTC()
	c.db.clicks[userID] = cc
	return cc.ClickCount, nil
}

// Set overwrites a counter; tests use it to arrange leaderboards.
func (c *Clicks) Set(userID uint64, count int64) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.clicks[userID] = model.ClickCounter{UserID: userID, ClickCount: count, LastClicked: time.Now().UTC()}
}

func (c *Clicks) Top(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	out := make([]model.LeaderboardEntry, 0, len(c.db.clicks))
	for uid, cc := range c.db.clicks {
		u, ok := c.db.users[uid]
		if !ok {
			continue
		}
		out = append(out, model.LeaderboardEntry{
			UserID:     uid,
			Username:   u.Username,
			ClickCount: cc.ClickCount,
			IsPremium:  c.db.profiles[uid].IsPremium,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClickCount != out[j].ClickCount {
			return out[i].ClickCount > out[j].ClickCount
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Position = i + 1
	}
	return out, nil
}

func (c *Clicks) CountAbove(_ context.Context, count int64) (int64, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	var n int64
	for _, cc := range c.db.clicks {
		if cc.ClickCount > count {
			n++
		}
	}
	return n, nil
}

func (c *Clicks) Totals(_ context.Context) (model.LeaderboardTotals, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	var t model.LeaderboardTotals
	for _, cc := range c.db.clicks {
		if cc.ClickCount > 0 {
			t.Players++
		}
		t.TotalClicks += cc.ClickCount
	}
	return t, nil
}

type Profiles struct {
	db *DB
	// Writes counts profile mutations.
	Writes int
}

func (p *Profiles) Ensure(_ context.Context, userID uint64) (model.Profile, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	pr, ok := p.db.profiles[userID]
	if !ok {
		pr = model.Profile{UserID: userID, UpdatedAt: time.Now().UTC()}
		p.db.profiles[userID] = pr
	}
	return pr, nil
}

func (p *Profiles) Upgrade(_ context.Context, userID uint64, customerID string) (repository.UpgradeResult, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	pr, ok := p.db.profiles[userID]
	if !ok {
		pr = model.Profile{UserID: userID}
	}
	changeCustomer := customerID != "" && pr.CustomerID() != customerID
	if pr.IsPremium && !changeCustomer {
		return repository.UpgradeResult{Profile: pr}, nil
	}
	now := time.Now().UTC()
	activated := !pr.IsPremium
	if activated {
		pr.IsPremium = true
		pr.PremiumSince = &now
	}
	if changeCustomer {
		cid := customerID
		pr.BillingCustomerID = &cid
	}
	pr.UpdatedAt = now
	p.db.profiles[userID] = pr
	p.Writes++
	return repository.UpgradeResult{Profile: pr, Activated: activated}, nil
}

type Webhooks struct{ db *DB }

func (w *Webhooks) Seen(_ context.Context, eventID string) (bool, error) {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	_, ok := w.db.events[eventID]
	return ok, nil
}

func (w *Webhooks) Record(_ context.Context, eventID, eventType string) error {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	w.db.events[eventID] = eventType
	return nil
}
