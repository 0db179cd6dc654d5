package repositories

import (
	"context"
	"fmt"
	"sort"
	"time"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"

	"github.com/lifeapp/backend/internal/db"
	"github.com/lifeapp/backend/internal/models"
)

// PreferenceRepository defines the data access contract for user preferences.
type PreferenceRepository interface {
	// GetOrCreate returns the user's preference, creating an empty one on first access.
	GetOrCreate(ctx context.Context, userID string, now time.Time) (models.Preference, error)
	// Replace swaps the preferred category set. Unknown category ids yield ErrNotFound.
	Replace(ctx context.Context, userID string, categoryIDs []string, now time.Time) (models.Preference, error)
}

// PostgresPreferenceRepository provides PostgreSQL-backed persistence for preferences.
type PostgresPreferenceRepository struct {
	pool db.Pool
}

// NewPostgresPreferenceRepository constructs a preference repository backed by PostgreSQL.
func NewPostgresPreferenceRepository(pool db.Pool) *PostgresPreferenceRepository {
	return &PostgresPreferenceRepository{pool: pool}
}

// GetOrCreate returns the preference row for userID, inserting it when missing.
func (r *PostgresPreferenceRepository) GetOrCreate(ctx context.Context, userID string, now time.Time) (models.Preference, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Preference{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var pref models.Preference
	err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		pref, err = ensurePreference(ctx, tx, userID, now)
		return err
	})
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation || isMalformedID(err) {
			return models.Preference{}, ErrNotFound
		}
		return models.Preference{}, fmt.Errorf("get or create preference: %w", err)
	}
	return pref, nil
}

// Replace stores categoryIDs as the user's complete preferred category set.
func (r *PostgresPreferenceRepository) Replace(ctx context.Context, userID string, categoryIDs []string, now time.Time) (models.Preference, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Preference{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var pref models.Preference
	err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		current, err := ensurePreference(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM user_preference_categories WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear preferred categories: %w", err)
		}
		for _, categoryID := range categoryIDs {
			_, err := tx.Exec(ctx, `
                INSERT INTO user_preference_categories (user_id, category_id)
                VALUES ($1, $2)
                ON CONFLICT DO NOTHING
            `, userID, categoryID)
			if err != nil {
				return fmt.Errorf("insert preferred category: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE user_preferences SET updated_at = $2 WHERE user_id = $1`, userID, now); err != nil {
			return fmt.Errorf("touch preference: %w", err)
		}

		pref = current
		pref.UpdatedAt = now
		pref.PreferredCategories = dedupeSorted(categoryIDs)
		return nil
	})
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation || isMalformedID(err) {
			return models.Preference{}, ErrNotFound
		}
		return models.Preference{}, fmt.Errorf("replace preference: %w", err)
	}
	return pref, nil
}

func ensurePreference(ctx context.Context, tx pgx.Tx, userID string, now time.Time) (models.Preference, error) {
	_, err := tx.Exec(ctx, `
        INSERT INTO user_preferences (user_id, created_at, updated_at)
        VALUES ($1, $2, $2)
        ON CONFLICT (user_id) DO NOTHING
    `, userID, now)
	if err != nil {
		return models.Preference{}, fmt.Errorf("insert preference: %w", err)
	}

	pref := models.Preference{UserID: userID}
	err = tx.QueryRow(ctx, `SELECT created_at, updated_at FROM user_preferences WHERE user_id = $1`, userID).
		Scan(&pref.CreatedAt, &pref.UpdatedAt)
	if err != nil {
		return models.Preference{}, fmt.Errorf("select preference: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT category_id FROM user_preference_categories WHERE user_id = $1 ORDER BY category_id`, userID)
	if err != nil {
		return models.Preference{}, fmt.Errorf("query preferred categories: %w", err)
	}
	defer rows.Close()

	pref.PreferredCategories = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return models.Preference{}, fmt.Errorf("scan preferred category: %w", err)
		}
		pref.PreferredCategories = append(pref.PreferredCategories, id)
	}
	if err := rows.Err(); err != nil {
		return models.Preference{}, fmt.Errorf("iterate preferred categories: %w", err)
	}

	return pref, nil
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var _ PreferenceRepository = (*PostgresPreferenceRepository)(nil)
