// Package friends implements the relationship state machine: directed
// friend requests, their transition to confirmed friendships, and the
// authorization gate restricting direct messages to confirmed friends.
//
// The state machine is: sent -> accepted (acceptance), sent -> gone
// (decline), accepted -> gone (unfriend). There is no way back from
// accepted to sent and no transition out of gone.
package friends

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/circlenet/backend/internal/directory"
	"github.com/circlenet/backend/internal/models"
)

var (
	// ErrSelfTarget indicates a user tried to befriend or message themselves.
	ErrSelfTarget = errors.New("cannot target yourself")
	// ErrRequestExists indicates an outstanding request already exists between the pair, in either direction.
	ErrRequestExists = errors.New("friend request already exists")
	// ErrAlreadyFriends indicates an accepted relationship already exists between the pair.
	ErrAlreadyFriends = errors.New("already friends")
)

// Store captures the relationship persistence the engine drives. Mutations
// pairing a record write with a pending-list write commit atomically.
type Store interface {
	CreateRequest(ctx context.Context, rel models.Relationship) error
	AcceptRequest(ctx context.Context, requester, target string) (models.Relationship, error)
	DeleteSentRequest(ctx context.Context, requester, target string) (bool, error)
	DeleteAcceptedPair(ctx context.Context, a, b string) (models.Relationship, bool, error)
	HasAccepted(ctx context.Context, a, b string) (bool, error)
}

// Engine governs request creation, acceptance, decline, and friendship
// termination. Every mutation holds the unordered pair's lock while it
// checks eligibility and applies the change, so concurrent requests
// between the same two users serialize and cross-entity invariants hold.
type Engine struct {
	store Store
	dir   directory.Directory
	locks *pairLocker

	// NowFunc overrides the clock in tests.
	NowFunc func() time.Time
}

// NewEngine constructs an Engine over the provided store and directory.
// The directory must not serve stale pending lists; hand it the uncached
// implementation.
func NewEngine(store Store, dir directory.Directory) *Engine {
	if store == nil || dir == nil {
		panic("friends: engine requires a store and a directory")
	}
	return &Engine{
		store: store,
		dir:   dir,
		locks: newPairLocker(),
	}
}

// SendRequest creates a sent relationship from the acting user to the named
// target and appends the requester to the target's pending-request list.
// It re-checks eligibility under the pair lock rather than trusting the
// caller: self-target, an outstanding request in either direction, and an
// existing friendship all fail with a conflict error.
func (e *Engine) SendRequest(ctx context.Context, requesterID, targetUsername string) (models.Relationship, error) {
	requester, err := e.dir.FindByUserID(ctx, requesterID)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("resolve requester: %w", err)
	}

	target, err := e.dir.FindByUsername(ctx, targetUsername)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("resolve target: %w", err)
	}

	if strings.EqualFold(requester.Username, target.Username) {
		return models.Relationship{}, ErrSelfTarget
	}

	unlock := e.locks.Lock(requester.Username, target.Username)
	defer unlock()

	// Re-read both pending lists inside the critical section; the
	// pre-lock lookups may race another mutation on this pair.
	requester, err = e.dir.FindByUserID(ctx, requesterID)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("resolve requester: %w", err)
	}
	target, err = e.dir.FindByUsername(ctx, targetUsername)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("resolve target: %w", err)
	}

	if containsFold(target.PendingRequests, requester.Username) || containsFold(requester.PendingRequests, target.Username) {
		return models.Relationship{}, ErrRequestExists
	}

	accepted, err := e.store.HasAccepted(ctx, requester.Username, target.Username)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("check friendship: %w", err)
	}
	if accepted {
		return models.Relationship{}, ErrAlreadyFriends
	}

	rel := models.Relationship{
		ID:        uuid.NewString(),
		Requester: requester.Username,
		Target:    target.Username,
		State:     models.RelationshipSent,
		CreatedAt: e.now(),
	}

	if err := e.store.CreateRequest(ctx, rel); err != nil {
		return models.Relationship{}, fmt.Errorf("create request: %w", err)
	}

	return rel, nil
}

// AcceptRequest transitions the sent record from the named requester to the
// acting user into accepted, preserving the record id, and removes the
// requester from the acting user's pending list. Fails with the store's
// not-found error when no such sent record exists.
func (e *Engine) AcceptRequest(ctx context.Context, requesterUsername, targetID string) (models.Relationship, error) {
	target, err := e.dir.FindByUserID(ctx, targetID)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("resolve target: %w", err)
	}

	requester, err := e.dir.FindByUsername(ctx, requesterUsername)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("resolve requester: %w", err)
	}

	unlock := e.locks.Lock(requester.Username, target.Username)
	defer unlock()

	rel, err := e.store.AcceptRequest(ctx, requester.Username, target.Username)
	if err != nil {
		return models.Relationship{}, fmt.Errorf("accept request: %w", err)
	}

	return rel, nil
}

// DeclineRequest deletes the sent record from the named requester to the
// acting user and removes the requester from the pending list, reporting
// whether a record was deleted.
func (e *Engine) DeclineRequest(ctx context.Context, requesterUsername, targetID string) (bool, error) {
	target, err := e.dir.FindByUserID(ctx, targetID)
	if err != nil {
		return false, fmt.Errorf("resolve target: %w", err)
	}

	requester, err := e.dir.FindByUsername(ctx, requesterUsername)
	if err != nil {
		return false, fmt.Errorf("resolve requester: %w", err)
	}

	unlock := e.locks.Lock(requester.Username, target.Username)
	defer unlock()

	deleted, err := e.store.DeleteSentRequest(ctx, requester.Username, target.Username)
	if err != nil {
		return false, fmt.Errorf("decline request: %w", err)
	}

	return deleted, nil
}

// DeleteFriend removes the accepted relationship between the acting user
// and the named friend, whichever orientation it was stored in. Either
// party may call it; it succeeds exactly once per friendship.
func (e *Engine) DeleteFriend(ctx context.Context, actingUserID, otherUsername string) (bool, error) {
	acting, err := e.dir.FindByUserID(ctx, actingUserID)
	if err != nil {
		return false, fmt.Errorf("resolve acting user: %w", err)
	}

	other, err := e.dir.FindByUsername(ctx, otherUsername)
	if err != nil {
		return false, fmt.Errorf("resolve friend: %w", err)
	}

	unlock := e.locks.Lock(acting.Username, other.Username)
	defer unlock()

	_, deleted, err := e.store.DeleteAcceptedPair(ctx, acting.Username, other.Username)
	if err != nil {
		return false, fmt.Errorf("delete friend: %w", err)
	}

	return deleted, nil
}

func (e *Engine) now() time.Time {
	if e.NowFunc != nil {
		return e.NowFunc()
	}
	return time.Now().UTC()
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
