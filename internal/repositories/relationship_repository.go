package repositories

import (
	"context"

	"github.com/circlenet/backend/internal/models"
)

// RelationshipRepository defines data access for friend requests and the
// friendships they turn into. Mutating operations that touch both a
// relationship record and a user's pending-request list apply the two
// writes as a unit: either both commit or neither does.
type RelationshipRepository interface {
	// CreateRequest inserts a sent record and appends the requester to the
	// target's pending-request list.
	CreateRequest(ctx context.Context, rel models.Relationship) error

	// AcceptRequest flips the unique (requester, target, sent) record to
	// accepted in place, preserving its id, and removes the requester from
	// the target's pending list. Returns ErrNotFound when no sent record
	// exists for the pair.
	AcceptRequest(ctx context.Context, requester, target string) (models.Relationship, error)

	// DeleteSentRequest removes the (requester, target, sent) record and
	// the matching pending-list entry, reporting whether a record existed.
	DeleteSentRequest(ctx context.Context, requester, target string) (bool, error)

	// DeleteAcceptedPair deletes the accepted record for the unordered
	// pair, whichever orientation it was stored in, returning the deleted
	// record and whether one existed.
	DeleteAcceptedPair(ctx context.Context, a, b string) (models.Relationship, bool, error)

	FindSent(ctx context.Context, requester, target string) (models.Relationship, error)
	// HasAccepted reports whether an accepted record exists in either
	// orientation of the pair.
	HasAccepted(ctx context.Context, a, b string) (bool, error)
	ListForUser(ctx context.Context, username string) ([]models.Relationship, error)
	// ListAcceptedFor returns the usernames the given user is friends with.
	ListAcceptedFor(ctx context.Context, username string) ([]string, error)
}
