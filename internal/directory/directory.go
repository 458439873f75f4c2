// Package directory resolves user identity for the relationship engine and
// the request-handling layer: lookup by id, and by username with
// case-insensitive exact matching.
package directory

import (
	"context"

	"github.com/circlenet/backend/internal/models"
)

// Directory is the read-only user lookup capability the relationship
// engine consumes. The returned user carries the pending-request list;
// the relationship store is its sole writer.
type Directory interface {
	FindByUserID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
}
