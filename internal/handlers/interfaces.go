package handlers

import (
	"context"
	"time"

	"github.com/lifeapp/backend/internal/auth"
	"github.com/lifeapp/backend/internal/exports"
	"github.com/lifeapp/backend/internal/models"
)

// UserStore captures the persistence operations required by the auth and user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Search(ctx context.Context, excludeID, query string, limit int) ([]models.User, error)
}

// SessionManager issues, refreshes and verifies authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
	Verify(token string) (auth.Principal, error)
}

// FriendshipService is the friend request lifecycle exposed over HTTP.
type FriendshipService interface {
	CreateRequest(ctx context.Context, caller auth.Principal, toUserID string) (models.Friendship, error)
	ListFor(ctx context.Context, caller auth.Principal) ([]models.Friendship, error)
	Accept(ctx context.Context, caller auth.Principal, id string) (models.Friendship, error)
	Decline(ctx context.Context, caller auth.Principal, id string) (models.Friendship, error)
	Remove(ctx context.Context, caller auth.Principal, id string) error
}

// TaskStore persists tasks scoped to their owner.
type TaskStore interface {
	ListByOwner(ctx context.Context, userID string) ([]models.Task, error)
	Get(ctx context.Context, userID, id string) (models.Task, error)
	Create(ctx context.Context, task models.Task) error
	Update(ctx context.Context, task models.Task) error
	Delete(ctx context.Context, userID, id string) error
}

// PreferenceStore persists per-user activity preferences.
type PreferenceStore interface {
	GetOrCreate(ctx context.Context, userID string, now time.Time) (models.Preference, error)
	Replace(ctx context.Context, userID string, categoryIDs []string, now time.Time) (models.Preference, error)
}

// ExportQueue schedules account exports and reports their progress.
type ExportQueue interface {
	Enabled() bool
	Enqueue(ctx context.Context, userID string) (exports.Export, error)
	Get(userID, id string) (exports.Export, error)
}

// DownloadLinker produces temporary download links for stored exports.
type DownloadLinker interface {
	PresignGet(ctx context.Context, location string, ttl time.Duration) (string, error)
}

// HealthChecker verifies that a backing service is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
