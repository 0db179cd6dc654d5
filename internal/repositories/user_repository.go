package repositories

import (
	"context"

	"github.com/lifeapp/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, excludeID, query string, limit int) ([]models.User, error)
	Update(ctx context.Context, user models.User) error
}
