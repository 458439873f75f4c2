package handlers

import (
	"context"

	"github.com/circlenet/backend/internal/friends"
	"github.com/circlenet/backend/internal/models"
)

// UserStore captures the persistence operations required by the user-facing handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByUserID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	AdjustPoints(ctx context.Context, id string, delta int) (models.User, error)
	SetTimeLimit(ctx context.Context, id string, hours int) (models.User, error)
	Delete(ctx context.Context, id string) error
}

// SessionManager issues, validates, and refreshes authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Authenticate(ctx context.Context, accessToken string) (string, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, token string)
}

// RelationshipEngine captures the friend-request state machine operations.
type RelationshipEngine interface {
	SendRequest(ctx context.Context, requesterID, targetUsername string) (models.Relationship, error)
	AcceptRequest(ctx context.Context, requesterUsername, targetID string) (models.Relationship, error)
	DeclineRequest(ctx context.Context, requesterUsername, targetID string) (bool, error)
	DeleteFriend(ctx context.Context, actingUserID, otherUsername string) (bool, error)
}

// FriendGate exposes the relationship predicates the handlers validate with.
type FriendGate interface {
	IsFriend(ctx context.Context, a, b string) (bool, error)
	RequestPending(ctx context.Context, requesterUsername, targetUsername string) (bool, error)
	RequestOutstanding(ctx context.Context, a, b string) (friends.RequestDirection, error)
}

// FriendLister reads friendship lists for display.
type FriendLister interface {
	ListAcceptedFor(ctx context.Context, username string) ([]string, error)
}

// DirectoryInvalidator evicts cached directory entries after a user record
// changes, so display lookups never outlive the mutation.
type DirectoryInvalidator interface {
	Invalidate(user models.User)
}

// MessageSender persists gated direct messages and reads conversations.
type MessageSender interface {
	Send(ctx context.Context, senderID, recipientUsername, body string) (models.Message, error)
	Conversation(ctx context.Context, userID, otherUsername string) ([]models.Message, error)
}

// ArchiveScheduler enqueues background conversation exports.
type ArchiveScheduler interface {
	Enqueue(ctx context.Context, userA, userB string) error
}

// InterestsStore persists per-user interest surveys.
type InterestsStore interface {
	Create(ctx context.Context, interests models.Interests) error
	FindByUserID(ctx context.Context, userID string) (models.Interests, error)
	Update(ctx context.Context, interests models.Interests) error
	Delete(ctx context.Context, userID string) (bool, error)
}
