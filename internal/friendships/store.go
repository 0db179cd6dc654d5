package friendships

import (
	"context"
	"time"

	"github.com/lifeapp/backend/internal/models"
)

// Store persists friendship records. Implementations return ErrNotFound when a
// targeted record does not exist (or does not match the supplied conditions) and
// ErrDuplicate when an insert collides with an existing record for the pair.
type Store interface {
	Get(ctx context.Context, id string) (models.Friendship, error)
	ListForUser(ctx context.Context, userID string) ([]models.Friendship, error)
	// TransitionStatus moves a record addressed to recipientID from one status to
	// another and returns the updated record.
	TransitionStatus(ctx context.Context, id, recipientID, from, to string, at time.Time) (models.Friendship, error)
	// Delete removes the record if it still has the expected status.
	Delete(ctx context.Context, id, expectedStatus string) error
	// WithPairLock runs fn in a transaction that is serialized against every other
	// WithPairLock call for the same pair key.
	WithPairLock(ctx context.Context, pairKey string, fn func(tx PairTx) error) error
}

// PairTx exposes the operations available while holding a pair lock.
type PairTx interface {
	ExistsBetween(ctx context.Context, a, b string) (bool, error)
	Insert(ctx context.Context, friendship models.Friendship) error
}

// UserDirectory answers whether a user account exists.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}
