package friendships

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeapp/backend/internal/auth"
	"github.com/lifeapp/backend/internal/models"
)

type stubDirectory struct {
	users map[string]bool
	err   error
}

func (d stubDirectory) Exists(_ context.Context, userID string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.users[userID], nil
}

const (
	aliceID   = "00000000-0000-4000-8000-0000000000a1"
	bobID     = "00000000-0000-4000-8000-0000000000b2"
	charlieID = "00000000-0000-4000-8000-0000000000c3"
	daveID    = "00000000-0000-4000-8000-0000000000d4"
	nobodyID  = "00000000-0000-4000-8000-0000000000ff"
)

var (
	alice   = auth.Principal{UserID: aliceID}
	bob     = auth.Principal{UserID: bobID}
	charlie = auth.Principal{UserID: charlieID}
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc := NewService(store, stubDirectory{users: map[string]bool{aliceID: true, bobID: true, charlieID: true}})

	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	var (
		mu    sync.Mutex
		ticks int
	)
	svc.NowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ticks++
		return base.Add(time.Duration(ticks) * time.Minute)
	}
	return svc, store
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, field, vErr.Field)
}

func TestCreateRequest(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	f, err := svc.CreateRequest(ctx, alice, bobID)
	require.NoError(t, err)

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, aliceID, f.FromUser)
	assert.Equal(t, bobID, f.ToUser)
	assert.Equal(t, models.FriendshipPending, f.Status)
	assert.Equal(t, f.CreatedAt, f.UpdatedAt)
	assert.Equal(t, 1, store.Len())
}

func TestCreateRequestStoresCanonicalID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	f, err := svc.CreateRequest(ctx, alice, " "+strings.ToUpper(strings.ReplaceAll(bobID, "-", ""))+" ")
	require.NoError(t, err)
	assert.Equal(t, bobID, f.ToUser)
}

func TestCreateRequestValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("self", func(t *testing.T) {
		svc, store := newTestService(t)
		_, err := svc.CreateRequest(ctx, alice, aliceID)
		requireValidation(t, err, "toUserId")
		assert.Equal(t, 0, store.Len())
	})

	t.Run("unknown target", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.CreateRequest(ctx, alice, nobodyID)
		requireValidation(t, err, "toUserId")
	})

	t.Run("empty target", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.CreateRequest(ctx, alice, "  ")
		requireValidation(t, err, "toUserId")
	})

	t.Run("duplicate same direction", func(t *testing.T) {
		svc, store := newTestService(t)
		_, err := svc.CreateRequest(ctx, alice, bobID)
		require.NoError(t, err)
		_, err = svc.CreateRequest(ctx, alice, bobID)
		requireValidation(t, err, "toUserId")
		assert.Equal(t, 1, store.Len())
	})

	t.Run("duplicate reverse direction", func(t *testing.T) {
		svc, store := newTestService(t)
		_, err := svc.CreateRequest(ctx, alice, bobID)
		require.NoError(t, err)
		_, err = svc.CreateRequest(ctx, bob, aliceID)
		requireValidation(t, err, "toUserId")
		assert.Equal(t, 1, store.Len())
	})

	t.Run("malformed target", func(t *testing.T) {
		svc, store := newTestService(t)
		_, err := svc.CreateRequest(ctx, alice, "bob")
		requireValidation(t, err, "toUserId")
		assert.Equal(t, 0, store.Len())
	})

	t.Run("self in uppercase", func(t *testing.T) {
		svc, store := newTestService(t)
		_, err := svc.CreateRequest(ctx, alice, strings.ToUpper(aliceID))
		requireValidation(t, err, "toUserId")
		assert.Equal(t, 0, store.Len())
	})

	t.Run("reverse duplicate in braces", func(t *testing.T) {
		svc, store := newTestService(t)
		_, err := svc.CreateRequest(ctx, alice, bobID)
		require.NoError(t, err)
		_, err = svc.CreateRequest(ctx, bob, "{"+aliceID+"}")
		requireValidation(t, err, "toUserId")
		assert.Equal(t, 1, store.Len())
	})

	t.Run("directory failure", func(t *testing.T) {
		svc := NewService(NewMemoryStore(), stubDirectory{err: errors.New("db down")})
		_, err := svc.CreateRequest(ctx, alice, bobID)
		require.Error(t, err)
		assert.False(t, IsValidation(err))
	})
}

func TestCreateRequestAfterDeclineIsRejectedBothWays(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	f, err := svc.CreateRequest(ctx, alice, bobID)
	require.NoError(t, err)
	_, err = svc.Decline(ctx, bob, f.ID)
	require.NoError(t, err)

	_, err = svc.CreateRequest(ctx, alice, bobID)
	requireValidation(t, err, "toUserId")

	_, err = svc.CreateRequest(ctx, bob, aliceID)
	requireValidation(t, err, "toUserId")
}

func TestCreateRequestConcurrentPairIsSerialized(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller, target := alice, bobID
			if i%2 == 1 {
				caller, target = bob, aliceID
			}
			_, err := svc.CreateRequest(ctx, caller, target)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !IsValidation(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, store.Len())
}

func TestAcceptThenDeclineIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	f, err := svc.CreateRequest(ctx, alice, bobID)
	require.NoError(t, err)

	accepted, err := svc.Accept(ctx, bob, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipAccepted, accepted.Status)
	assert.True(t, accepted.UpdatedAt.After(f.UpdatedAt))

	_, err = svc.Decline(ctx, bob, f.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Accept(ctx, bob, f.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcceptMasksUnauthorizedAsNotFound(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	f, err := svc.CreateRequest(ctx, alice, bobID)
	require.NoError(t, err)

	_, err = svc.Accept(ctx, alice, f.ID)
	assert.ErrorIs(t, err, ErrNotFound, "sender cannot accept own request")

	_, err = svc.Accept(ctx, charlie, f.ID)
	assert.ErrorIs(t, err, ErrNotFound, "stranger cannot accept")

	_, err = svc.Decline(ctx, charlie, f.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Accept(ctx, bob, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := store.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipPending, stored.Status)
}

func TestRemovePending(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	f, err := svc.CreateRequest(ctx, alice, bobID)
	require.NoError(t, err)

	err = svc.Remove(ctx, bob, f.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied, "recipient must decline instead")

	err = svc.Remove(ctx, charlie, f.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, svc.Remove(ctx, alice, f.ID))

	for _, p := range []auth.Principal{alice, bob} {
		list, err := svc.ListFor(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, list)
	}

	err = svc.Remove(ctx, alice, f.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveDeclinedIsDenied(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	f, err := svc.CreateRequest(ctx, alice, bobID)
	require.NoError(t, err)
	_, err = svc.Decline(ctx, bob, f.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Remove(ctx, alice, f.ID), ErrPermissionDenied)
	assert.ErrorIs(t, svc.Remove(ctx, bob, f.ID), ErrPermissionDenied)
}

// racingStore answers the pending request from the recipient side right before
// the first Delete reaches the underlying store.
type racingStore struct {
	*MemoryStore
	answer string
	raced  bool
}

func (r *racingStore) Delete(ctx context.Context, id, expectedStatus string) error {
	if !r.raced {
		r.raced = true
		if _, err := r.TransitionStatus(ctx, id, bobID, models.FriendshipPending, r.answer, time.Now()); err != nil {
			return err
		}
	}
	return r.MemoryStore.Delete(ctx, id, expectedStatus)
}

func TestRemoveReevaluatesAfterConcurrentAnswer(t *testing.T) {
	tests := []struct {
		answer  string
		wantErr error
	}{
		{answer: models.FriendshipAccepted, wantErr: nil},
		{answer: models.FriendshipDeclined, wantErr: ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			store := &racingStore{MemoryStore: NewMemoryStore(), answer: tt.answer}
			svc := NewService(store, stubDirectory{users: map[string]bool{aliceID: true, bobID: true}})
			ctx := context.Background()

			f, err := svc.CreateRequest(ctx, alice, bobID)
			require.NoError(t, err)

			err = svc.Remove(ctx, alice, f.ID)
			assert.True(t, store.raced)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, 0, store.Len())
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, store.Len())
		})
	}
}

func TestAcceptedFriendshipScenario(t *testing.T) {
	for _, remover := range []auth.Principal{alice, bob} {
		t.Run(remover.UserID, func(t *testing.T) {
			svc, store := newTestService(t)
			ctx := context.Background()

			f, err := svc.CreateRequest(ctx, alice, bobID)
			require.NoError(t, err)
			_, err = svc.Accept(ctx, bob, f.ID)
			require.NoError(t, err)

			for _, p := range []auth.Principal{alice, bob} {
				list, err := svc.ListFor(ctx, p)
				require.NoError(t, err)
				require.Len(t, list, 1)
				assert.Equal(t, models.FriendshipAccepted, list[0].Status)
			}

			friends, err := svc.FriendsOf(ctx, bob)
			require.NoError(t, err)
			assert.Equal(t, []string{aliceID}, friends)

			assert.ErrorIs(t, svc.Remove(ctx, charlie, f.ID), ErrPermissionDenied)
			require.NoError(t, svc.Remove(ctx, remover, f.ID))
			assert.Equal(t, 0, store.Len())

			for _, p := range []auth.Principal{alice, bob} {
				list, err := svc.ListFor(ctx, p)
				require.NoError(t, err)
				assert.Empty(t, list)
			}
		})
	}
}

func TestDeclinedScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	f, err := svc.CreateRequest(ctx, alice, bobID)
	require.NoError(t, err)

	declined, err := svc.Decline(ctx, bob, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipDeclined, declined.Status)

	for _, p := range []auth.Principal{alice, bob} {
		list, err := svc.ListFor(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, list)
	}

	stored, err := svc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipDeclined, stored.Status)
}

func TestListForOrderingAndVisibility(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateRequest(ctx, alice, bobID)
	require.NoError(t, err)
	second, err := svc.CreateRequest(ctx, charlie, aliceID)
	require.NoError(t, err)
	other, err := svc.CreateRequest(ctx, bob, charlieID)
	require.NoError(t, err)
	_, err = svc.Decline(ctx, charlie, other.ID)
	require.NoError(t, err)

	list, err := svc.ListFor(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	list, err = svc.ListFor(ctx, charlie)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	again, err := svc.ListFor(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, list[0].ID, again[0].ID)
}

func TestListForStableOnEqualTimestamps(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, stubDirectory{users: map[string]bool{bobID: true, charlieID: true, daveID: true}})
	fixed := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc.NowFunc = func() time.Time { return fixed }
	ctx := context.Background()

	for _, target := range []string{bobID, charlieID, daveID} {
		_, err := svc.CreateRequest(ctx, alice, target)
		require.NoError(t, err)
	}

	var previous []string
	for i := 0; i < 5; i++ {
		list, err := svc.ListFor(ctx, alice)
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, f := range list {
			ids = append(ids, f.ID)
		}
		if previous != nil {
			assert.Equal(t, previous, ids, fmt.Sprintf("iteration %d", i))
		}
		previous = ids
	}
}

func TestEvaluateRemoval(t *testing.T) {
	cases := []struct {
		name   string
		status string
		caller string
		want   removalAction
	}{
		{"pending sender", models.FriendshipPending, aliceID, removeDelete},
		{"pending recipient", models.FriendshipPending, bobID, removeDeny},
		{"pending stranger", models.FriendshipPending, charlieID, removeDeny},
		{"accepted sender", models.FriendshipAccepted, aliceID, removeDelete},
		{"accepted recipient", models.FriendshipAccepted, bobID, removeDelete},
		{"accepted stranger", models.FriendshipAccepted, charlieID, removeDeny},
		{"declined sender", models.FriendshipDeclined, aliceID, removeDeny},
		{"declined recipient", models.FriendshipDeclined, bobID, removeDeny},
		{"blocked sender", models.FriendshipBlocked, aliceID, removeDeny},
		{"blocked recipient", models.FriendshipBlocked, bobID, removeDeny},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := models.Friendship{ID: "f-1", FromUser: aliceID, ToUser: bobID, Status: tc.status}
			got, rule := evaluateRemoval(f, tc.caller)
			assert.Equal(t, tc.want, got, rule)
		})
	}
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))
	assert.Equal(t, "a:b", PairKey("b", "a"))
	assert.NotEqual(t, PairKey("a", "b"), PairKey("a", "c"))
}
