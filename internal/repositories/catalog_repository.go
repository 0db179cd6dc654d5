package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lifeapp/backend/internal/db"
	"github.com/lifeapp/backend/internal/models"
)

// CatalogRepository defines read access to activity categories and activities.
type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]models.ActivityCategory, error)
	GetCategory(ctx context.Context, id string) (models.ActivityCategory, error)
	// ListActivities returns every activity, or only those of categoryID when it is non-empty.
	ListActivities(ctx context.Context, categoryID string) ([]models.Activity, error)
	GetActivity(ctx context.Context, id string) (models.Activity, error)
}

const activitySelect = `
        SELECT a.id, a.category_id, COALESCE(c.name, ''), a.name, a.description, a.is_outdoor,
               a.min_duration_minutes, a.max_duration_minutes, a.notes, a.created_at, a.updated_at
        FROM activities a
        LEFT JOIN activity_categories c ON c.id = a.category_id`

// PostgresCatalogRepository provides PostgreSQL-backed access to the activity catalog.
type PostgresCatalogRepository struct {
	pool db.Pool
}

// NewPostgresCatalogRepository constructs a catalog repository backed by PostgreSQL.
func NewPostgresCatalogRepository(pool db.Pool) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{pool: pool}
}

// ListCategories returns all categories ordered by name.
func (r *PostgresCatalogRepository) ListCategories(ctx context.Context) ([]models.ActivityCategory, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT id, name, description FROM activity_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []models.ActivityCategory
	for rows.Next() {
		var c models.ActivityCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

// GetCategory loads a category by id.
func (r *PostgresCatalogRepository) GetCategory(ctx context.Context, id string) (models.ActivityCategory, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ActivityCategory{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var c models.ActivityCategory
	err = conn.QueryRow(ctx, `SELECT id, name, description FROM activity_categories WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return models.ActivityCategory{}, ErrNotFound
		}
		return models.ActivityCategory{}, fmt.Errorf("select category: %w", err)
	}
	return c, nil
}

// ListActivities returns activities ordered by name, optionally filtered by category.
func (r *PostgresCatalogRepository) ListActivities(ctx context.Context, categoryID string) ([]models.Activity, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var rows pgx.Rows
	if categoryID == "" {
		rows, err = conn.Query(ctx, activitySelect+` ORDER BY a.name, a.id`)
	} else {
		rows, err = conn.Query(ctx, activitySelect+` WHERE a.category_id = $1 ORDER BY a.name, a.id`, categoryID)
	}
	if err != nil {
		if isMalformedID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return activities, nil
}

// GetActivity loads an activity by id.
func (r *PostgresCatalogRepository) GetActivity(ctx context.Context, id string) (models.Activity, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Activity{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	a, err := scanActivity(conn.QueryRow(ctx, activitySelect+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return models.Activity{}, ErrNotFound
		}
		return models.Activity{}, fmt.Errorf("select activity: %w", err)
	}
	return a, nil
}

func scanActivity(row pgx.Row) (models.Activity, error) {
	var a models.Activity
	err := row.Scan(&a.ID, &a.CategoryID, &a.CategoryName, &a.Name, &a.Description, &a.IsOutdoor,
		&a.MinDurationMinutes, &a.MaxDurationMinutes, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

var _ CatalogRepository = (*PostgresCatalogRepository)(nil)
