package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lifeapp/backend/internal/db"
	"github.com/lifeapp/backend/internal/models"
)

// TaskRepository defines the data access contract for tasks. Every lookup is
// scoped to the owning user so other users' tasks behave as if absent.
type TaskRepository interface {
	ListByOwner(ctx context.Context, userID string) ([]models.Task, error)
	Get(ctx context.Context, userID, id string) (models.Task, error)
	Create(ctx context.Context, task models.Task) error
	Update(ctx context.Context, task models.Task) error
	Delete(ctx context.Context, userID, id string) error
}

const taskColumns = `id, user_id, title, description, priority, due_date, status, created_at, updated_at`

// PostgresTaskRepository provides PostgreSQL-backed persistence for tasks.
type PostgresTaskRepository struct {
	pool db.Pool
}

// NewPostgresTaskRepository constructs a task repository backed by PostgreSQL.
func NewPostgresTaskRepository(pool db.Pool) *PostgresTaskRepository {
	return &PostgresTaskRepository{pool: pool}
}

// ListByOwner returns the user's tasks ordered by priority, due date (unset last) and creation time.
func (r *PostgresTaskRepository) ListByOwner(ctx context.Context, userID string) ([]models.Task, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+taskColumns+`
        FROM tasks
        WHERE user_id = $1
        ORDER BY priority, due_date ASC NULLS LAST, created_at, id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

// Get loads a single task owned by userID.
func (r *PostgresTaskRepository) Get(ctx context.Context, userID, id string) (models.Task, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Task{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	task, err := scanTask(conn.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, fmt.Errorf("select task: %w", err)
	}
	return task, nil
}

// Create persists a new task.
func (r *PostgresTaskRepository) Create(ctx context.Context, task models.Task) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO tasks (id, user_id, title, description, priority, due_date, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, task.ID, task.UserID, task.Title, task.Description, task.Priority, task.DueDate, task.Status, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation:
			return ErrNotFound
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a task owned by task.UserID.
func (r *PostgresTaskRepository) Update(ctx context.Context, task models.Task) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE tasks
        SET title = $3, description = $4, priority = $5, due_date = $6, status = $7, updated_at = $8
        WHERE id = $1 AND user_id = $2
    `, task.ID, task.UserID, task.Title, task.Description, task.Priority, task.DueDate, task.Status, task.UpdatedAt)
	if err != nil {
		if isMalformedID(err) {
			return ErrNotFound
		}
		return fmt.Errorf("update task: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a task owned by userID.
func (r *PostgresTaskRepository) Delete(ctx context.Context, userID, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		if isMalformedID(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (models.Task, error) {
	var task models.Task
	err := row.Scan(&task.ID, &task.UserID, &task.Title, &task.Description, &task.Priority, &task.DueDate, &task.Status, &task.CreatedAt, &task.UpdatedAt)
	return task, err
}

var _ TaskRepository = (*PostgresTaskRepository)(nil)
