package repositories

import (
	"context"

	"github.com/circlenet/backend/internal/models"
)

// MessageRepository defines data access for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, message models.Message) error
	// ListConversation returns the messages exchanged between the two
	// usernames in either direction, oldest first.
	ListConversation(ctx context.Context, a, b string) ([]models.Message, error)
}

// InterestsRepository defines data access for per-user interest surveys.
type InterestsRepository interface {
	Create(ctx context.Context, interests models.Interests) error
	FindByUserID(ctx context.Context, userID string) (models.Interests, error)
	Update(ctx context.Context, interests models.Interests) error
	Delete(ctx context.Context, userID string) (bool, error)
}
