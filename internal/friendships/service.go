package friendships

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifeapp/backend/internal/auth"
	"github.com/lifeapp/backend/internal/logging"
	"github.com/lifeapp/backend/internal/models"
)

// Service enforces the friendship request lifecycle on top of a Store.
type Service struct {
	store   Store
	users   UserDirectory
	NowFunc func() time.Time
	NewID   func() string
}

// NewService constructs a Service backed by the provided store and user directory.
func NewService(store Store, users UserDirectory) *Service {
	if store == nil || users == nil {
		panic("friendships: store and user directory must not be nil")
	}
	return &Service{store: store, users: users}
}

// CreateRequest records a pending friend request from the caller to toUserID.
func (s *Service) CreateRequest(ctx context.Context, caller auth.Principal, toUserID string) (models.Friendship, error) {
	ctx, span := logging.StartSpan(ctx, "friendships.CreateRequest")
	defer span.End()
	logger := logging.FromContext(ctx)

	toUserID = strings.TrimSpace(toUserID)
	if toUserID == "" {
		return models.Friendship{}, invalid("toUserId", "this field is required")
	}
	parsed, err := uuid.Parse(toUserID)
	if err != nil {
		return models.Friendship{}, invalid("toUserId", "must be a valid user id")
	}
	// Pair keys and the self check compare strings, so only the canonical form may pass.
	toUserID = parsed.String()

	exists, err := s.users.Exists(ctx, toUserID)
	if err != nil {
		return models.Friendship{}, fmt.Errorf("check target user: %w", err)
	}
	if !exists {
		return models.Friendship{}, invalid("toUserId", "user does not exist")
	}
	fromUserID := canonicalID(caller.UserID)
	if toUserID == fromUserID {
		return models.Friendship{}, invalid("toUserId", "you cannot send a friend request to yourself")
	}

	now := s.now()
	friendship := models.Friendship{
		ID:        s.newID(),
		FromUser:  fromUserID,
		ToUser:    toUserID,
		Status:    models.FriendshipPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.WithPairLock(ctx, PairKey(fromUserID, toUserID), func(tx PairTx) error {
		existing, err := tx.ExistsBetween(ctx, fromUserID, toUserID)
		if err != nil {
			return fmt.Errorf("check existing friendship: %w", err)
		}
		if existing {
			return ErrDuplicate
		}
		return tx.Insert(ctx, friendship)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			logger.Info("duplicate friend request rejected", "from", caller.UserID, "to", toUserID)
			return models.Friendship{}, invalid("toUserId", "a friend request already exists or you are already friends")
		}
		return models.Friendship{}, fmt.Errorf("create friend request: %w", err)
	}

	logger.Info("friend request created", "friendshipId", friendship.ID, "from", caller.UserID, "to", toUserID)
	return friendship, nil
}

// ListFor returns every non-declined friendship involving the caller, most recent first.
func (s *Service) ListFor(ctx context.Context, caller auth.Principal) ([]models.Friendship, error) {
	ctx, span := logging.StartSpan(ctx, "friendships.ListFor")
	defer span.End()

	all, err := s.store.ListForUser(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}

	visible := make([]models.Friendship, 0, len(all))
	for _, f := range all {
		if f.Status == models.FriendshipDeclined || !f.Involves(caller.UserID) {
			continue
		}
		visible = append(visible, f)
	}

	sort.SliceStable(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].CreatedAt.After(visible[j].CreatedAt)
		}
		return visible[i].ID < visible[j].ID
	})

	return visible, nil
}

// Accept marks a pending request addressed to the caller as accepted.
func (s *Service) Accept(ctx context.Context, caller auth.Principal, id string) (models.Friendship, error) {
	return s.respond(ctx, caller, id, models.FriendshipAccepted)
}

// Decline marks a pending request addressed to the caller as declined. The record is kept.
func (s *Service) Decline(ctx context.Context, caller auth.Principal, id string) (models.Friendship, error) {
	return s.respond(ctx, caller, id, models.FriendshipDeclined)
}

func (s *Service) respond(ctx context.Context, caller auth.Principal, id, status string) (models.Friendship, error) {
	ctx, span := logging.StartSpan(ctx, "friendships.respond")
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" || caller.UserID == "" {
		return models.Friendship{}, ErrNotFound
	}

	updated, err := s.store.TransitionStatus(ctx, id, caller.UserID, models.FriendshipPending, status, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.Friendship{}, ErrNotFound
		}
		return models.Friendship{}, fmt.Errorf("update friendship status: %w", err)
	}

	logging.FromContext(ctx).Info("friend request answered", "friendshipId", id, "status", status)
	return updated, nil
}

// Remove deletes a friendship when the caller's role and the record's state allow it.
func (s *Service) Remove(ctx context.Context, caller auth.Principal, id string) error {
	ctx, span := logging.StartSpan(ctx, "friendships.Remove")
	defer span.End()
	logger := logging.FromContext(ctx)

	// A concurrent accept or decline makes the status-guarded delete miss.
	// The rules then run once more against the fresh record.
	var rule string
	for attempt := 0; ; attempt++ {
		friendship, err := s.Get(ctx, id)
		if err != nil {
			return err
		}

		var action removalAction
		action, rule = evaluateRemoval(friendship, caller.UserID)
		if action != removeDelete {
			logger.Warn("friendship removal denied", "friendshipId", id, "status", friendship.Status, "caller", caller.UserID)
			return ErrPermissionDenied
		}

		err = s.store.Delete(ctx, friendship.ID, friendship.Status)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete friendship: %w", err)
		}
		if attempt > 0 {
			return ErrNotFound
		}
		logger.Debug("friendship changed during removal, retrying", "friendshipId", id)
	}

	logger.Info("friendship removed", "friendshipId", id, "rule", rule)
	return nil
}

// Get loads a friendship by id regardless of status or caller.
func (s *Service) Get(ctx context.Context, id string) (models.Friendship, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Friendship{}, ErrNotFound
	}

	friendship, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.Friendship{}, ErrNotFound
		}
		return models.Friendship{}, fmt.Errorf("load friendship: %w", err)
	}
	return friendship, nil
}

// FriendsOf returns the ids of users with an accepted friendship with the caller,
// whichever side sent the original request.
func (s *Service) FriendsOf(ctx context.Context, caller auth.Principal) ([]string, error) {
	all, err := s.store.ListForUser(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}

	var friends []string
	for _, f := range all {
		if f.Status != models.FriendshipAccepted {
			continue
		}
		switch caller.UserID {
		case f.FromUser:
			friends = append(friends, f.ToUser)
		case f.ToUser:
			friends = append(friends, f.FromUser)
		}
	}
	sort.Strings(friends)
	return friends, nil
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// canonicalID returns the lowercase hyphenated form of a UUID, or id unchanged when it is not one.
func canonicalID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()
}
