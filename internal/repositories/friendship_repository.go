package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"

	"github.com/lifeapp/backend/internal/db"
	"github.com/lifeapp/backend/internal/friendships"
	"github.com/lifeapp/backend/internal/models"
)

const friendshipColumns = `id, from_user_id, to_user_id, status, created_at, updated_at`

// PostgresFriendshipStore provides PostgreSQL-backed persistence for friendships.
type PostgresFriendshipStore struct {
	pool db.Pool
}

// NewPostgresFriendshipStore constructs a friendship store backed by PostgreSQL.
func NewPostgresFriendshipStore(pool db.Pool) *PostgresFriendshipStore {
	return &PostgresFriendshipStore{pool: pool}
}

// Get loads a friendship by id.
func (s *PostgresFriendshipStore) Get(ctx context.Context, id string) (models.Friendship, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.Friendship{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	f, err := scanFriendship(conn.QueryRow(ctx, `SELECT `+friendshipColumns+` FROM friendships WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return models.Friendship{}, friendships.ErrNotFound
		}
		return models.Friendship{}, fmt.Errorf("select friendship: %w", err)
	}
	return f, nil
}

// ListForUser returns friendships where the user is the sender or the recipient.
func (s *PostgresFriendshipStore) ListForUser(ctx context.Context, userID string) ([]models.Friendship, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+friendshipColumns+`
        FROM friendships
        WHERE from_user_id = $1 OR to_user_id = $1
        ORDER BY created_at DESC, id
    `, userID)
	if err != nil {
		if isMalformedID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query friendships: %w", err)
	}
	defer rows.Close()

	var out []models.Friendship
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		out = append(out, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friendships: %w", err)
	}

	return out, nil
}

// TransitionStatus atomically moves a friendship addressed to recipientID from one status to another.
func (s *PostgresFriendshipStore) TransitionStatus(ctx context.Context, id, recipientID, from, to string, at time.Time) (models.Friendship, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.Friendship{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	f, err := scanFriendship(conn.QueryRow(ctx, `
        UPDATE friendships
        SET status = $4, updated_at = $5
        WHERE id = $1 AND to_user_id = $2 AND status = $3
        RETURNING `+friendshipColumns, id, recipientID, from, to, at.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return models.Friendship{}, friendships.ErrNotFound
		}
		return models.Friendship{}, fmt.Errorf("update friendship status: %w", err)
	}
	return f, nil
}

// Delete removes the friendship if it still has the expected status.
func (s *PostgresFriendshipStore) Delete(ctx context.Context, id, expectedStatus string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM friendships WHERE id = $1 AND status = $2`, id, expectedStatus)
	if err != nil {
		if isMalformedID(err) {
			return friendships.ErrNotFound
		}
		return fmt.Errorf("delete friendship: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return friendships.ErrNotFound
	}

	return nil
}

// WithPairLock runs fn inside a serializable transaction. Concurrent transactions for
// the same pair either observe each other's row or collide on the pair_key unique
// constraint; serialization failures are restarted by crdbpgxv5.
func (s *PostgresFriendshipStore) WithPairLock(ctx context.Context, pairKey string, fn func(tx friendships.PairTx) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(pgPairTx{tx: tx, pairKey: pairKey})
	})
}

type pgPairTx struct {
	tx      pgx.Tx
	pairKey string
}

func (p pgPairTx) ExistsBetween(ctx context.Context, a, b string) (bool, error) {
	var exists bool
	err := p.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM friendships WHERE pair_key = $1)`, friendships.PairKey(a, b)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check friendship pair: %w", err)
	}
	return exists, nil
}

func (p pgPairTx) Insert(ctx context.Context, f models.Friendship) error {
	key := friendships.PairKey(f.FromUser, f.ToUser)
	if key != p.pairKey {
		return fmt.Errorf("insert friendship: pair %s outside locked pair %s", key, p.pairKey)
	}

	_, err := p.tx.Exec(ctx, `
        INSERT INTO friendships (id, from_user_id, to_user_id, pair_key, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, f.ID, f.FromUser, f.ToUser, key, f.Status, f.CreatedAt.UTC(), f.UpdatedAt.UTC())
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return friendships.ErrDuplicate
		case pgForeignKeyViolation:
			return fmt.Errorf("insert friendship: %w", ErrNotFound)
		}
		return fmt.Errorf("insert friendship: %w", err)
	}
	return nil
}

func scanFriendship(row pgx.Row) (models.Friendship, error) {
	var f models.Friendship
	if err := row.Scan(&f.ID, &f.FromUser, &f.ToUser, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return models.Friendship{}, err
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return f, nil
}

var _ friendships.Store = (*PostgresFriendshipStore)(nil)
