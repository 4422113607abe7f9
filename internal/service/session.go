package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/button-game/internal/model"
	"github.com/iliyamo/button-game/internal/repository"
	"github.com/iliyamo/button-game/internal/utils"
)

// Identity is the authenticated user attached to a request.
type Identity struct {
	UserID   uint64
	Username string
}

// Session is an issued access/refresh pair.
type Session struct {
	Identity Identity
	Access   utils.AccessToken
	Refresh  utils.RefreshToken
}

// SessionService issues and validates login sessions.  Access tokens are
// stateless JWTs; refresh tokens are stored hashed and rotated on use.
type SessionService struct {
	tokens     TokenStore
	users      UserStore
	secret     string
	accessTTL  int // minutes
	refreshTTL int // days
	log        *zap.Logger
}

func NewSessionService(tokens TokenStore, users UserStore, secret string, accessTTLMin, refreshTTLDays int, log *zap.Logger) *SessionService {
	return &SessionService{
		tokens:     tokens,
		users:      users,
		secret:     secret,
		accessTTL:  accessTTLMin,
		refreshTTL: refreshTTLDays,
		log:        log,
	}
}

// Issue creates a fresh session for u.
func (s *SessionService) Issue(ctx context.Context, u model.User) (Session, error) {
	at, err := utils.NewAccessToken(s.secret, u.ID, u.Username, s.accessTTL)
	if err != nil {
		return Session{}, err
	}
	rt, err := utils.NewRefreshToken(s.refreshTTL)
	if err != nil {
		return Session{}, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(rt.Raw), rt.Exp); err != nil {
		return Session{}, storageErr("issue session", err)
	}
	return Session{Identity: Identity{UserID: u.ID, Username: u.Username}, Access: at, Refresh: rt}, nil
}

// Verify resolves an access token without touching storage.
func (s *SessionService) Verify(accessRaw string) (Identity, error) {
	if accessRaw == "" {
		return Identity{}, ErrAuthenticationRequired
	}
	claims, err := utils.ParseAccessToken(s.secret, accessRaw)
	if err != nil {
		return Identity{}, ErrAuthenticationRequired
	}
	uid, err := claims.UserID()
	if err != nil || uid == 0 {
		return Identity{}, ErrAuthenticationRequired
	}
	return Identity{UserID: uid, Username: claims.Username}, nil
}

// Resume exchanges a valid refresh token for a new session and revokes
// the old token.
func (s *SessionService) Resume(ctx context.Context, refreshRaw string) (Session, error) {
	if refreshRaw == "" {
		return Session{}, ErrAuthenticationRequired
	}
	hash := utils.HashRefreshRaw(refreshRaw)
	uid, err := s.tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, ErrAuthenticationRequired
	}
	if err != nil {
		return Session{}, storageErr("resume session", err)
	}
	u, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !u.IsActive) {
		_ = s.tokens.RevokeByHash(ctx, hash)
		return Session{}, ErrAuthenticationRequired
	}
	if err != nil {
		return Session{}, storageErr("resume session", err)
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return Session{}, storageErr("rotate refresh token", err)
	}
	s.log.Debug("session refreshed", zap.Uint64("user_id", uid))
	return s.Issue(ctx, u)
}

// Revoke ends the session identified by refreshRaw.  Unknown tokens are
// not an error.
func (s *SessionService) Revoke(ctx context.Context, refreshRaw string) error {
	if refreshRaw == "" {
		return nil
	}
	if err := s.tokens.RevokeByHash(ctx, utils.HashRefreshRaw(refreshRaw)); err != nil {
		return storageErr("revoke session", err)
	}
	return nil
}
