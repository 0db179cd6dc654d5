package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/lifeapp/backend/internal/logging"
	"github.com/lifeapp/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the provided refresh token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the refresh token has expired and cannot be used.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// refreshTokenBytes is the entropy of an opaque refresh token before encoding.
const refreshTokenBytes = 32

// SessionStore persists issued refresh tokens so they can survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, refreshToken string) (Session, error)
	Delete(ctx context.Context, refreshToken string) error
}

// Session represents a refresh token issued to a user.
type Session struct {
	RefreshToken string
	UserID       string
	ExpiresAt    time.Time
}

// Expired reports whether the session can no longer be refreshed at now.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Manager pairs signed access tokens with single-use refresh tokens kept in a SessionStore.
type Manager struct {
	access     *AccessTokens
	store      SessionStore
	refreshTTL time.Duration
	now        func() time.Time
}

// NewManager constructs a Manager that signs access tokens with access and keeps
// refresh tokens alive for refreshTTL.
func NewManager(access *AccessTokens, refreshTTL time.Duration, store SessionStore) *Manager {
	if access == nil || store == nil {
		panic("auth: access token signer and session store must not be nil")
	}
	return &Manager{
		access:     access,
		store:      store,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Issue signs an access token for userID and stores a fresh refresh token.
func (m *Manager) Issue(ctx context.Context, userID string) (models.SessionTokens, error) {
	ctx, span := logging.StartSpan(ctx, "auth.Issue")
	defer span.End()

	if userID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	issuedAt := m.now()
	access, accessExpires, err := m.access.Sign(userID, issuedAt)
	if err != nil {
		return models.SessionTokens{}, err
	}

	session := Session{UserID: userID, ExpiresAt: issuedAt.Add(m.refreshTTL)}
	if session.RefreshToken, err = newRefreshToken(); err != nil {
		return models.SessionTokens{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := m.store.Save(ctx, session); err != nil {
		return models.SessionTokens{}, fmt.Errorf("save session: %w", err)
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     session.RefreshToken,
		RefreshExpiresAt: session.ExpiresAt,
	}, nil
}

// Refresh consumes refreshToken and issues a new token pair for its owner. A
// consumed or expired token can never be used again.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	ctx, span := logging.StartSpan(ctx, "auth.Refresh")
	defer span.End()

	if refreshToken == "" {
		return models.SessionTokens{}, ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, refreshToken)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.Delete(ctx, refreshToken); err != nil {
		return models.SessionTokens{}, err
	}
	if session.Expired(m.now()) {
		logging.FromContext(ctx).Info("expired refresh token presented", "userId", session.UserID)
		return models.SessionTokens{}, ErrRefreshTokenExpired
	}

	return m.Issue(ctx, session.UserID)
}

// Revoke forgets refreshToken. Unknown tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	if err := m.store.Delete(ctx, refreshToken); err != nil && !errors.Is(err, ErrSessionNotFound) {
		logging.FromContext(ctx).Warn("revoke session failed", "error", err)
	}
}

// Verify resolves an access token to the caller it was issued for.
func (m *Manager) Verify(token string) (Principal, error) {
	return m.access.Verify(token)
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
