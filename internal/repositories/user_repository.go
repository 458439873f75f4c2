package repositories

import (
	"context"

	"github.com/circlenet/backend/internal/models"
)

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByUserID(ctx context.Context, id string) (models.User, error)
	// FindByUsername matches the username case-insensitively.
	FindByUsername(ctx context.Context, username string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	AdjustPoints(ctx context.Context, id string, delta int) (models.User, error)
	SetTimeLimit(ctx context.Context, id string, hours int) (models.User, error)
	Delete(ctx context.Context, id string) error
}
