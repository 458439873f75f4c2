package friends

import (
	"context"
	"fmt"

	"github.com/circlenet/backend/internal/directory"
)

// RequestDirection describes which way an outstanding request between two
// users points, relative to the first user passed to RequestOutstanding.
type RequestDirection int

const (
	// RequestNone means no outstanding request exists between the pair.
	RequestNone RequestDirection = iota
	// RequestOutbound means the first user already asked the second.
	RequestOutbound
	// RequestInbound means the second user already asked the first; the
	// caller should route to the acceptance flow rather than reject flat.
	RequestInbound
)

// Gate exposes the read-only relationship predicates: the messaging
// authorization check and the eligibility checks the validation layer
// runs before invoking engine mutations.
type Gate struct {
	store Store
	dir   directory.Directory
}

// NewGate constructs a Gate over the provided store and directory.
func NewGate(store Store, dir directory.Directory) *Gate {
	if store == nil || dir == nil {
		panic("friends: gate requires a store and a directory")
	}
	return &Gate{store: store, dir: dir}
}

// IsFriend reports whether an accepted relationship exists between the two
// usernames in either orientation. It is consulted before any direct
// message is persisted and as the unfriend precondition.
func (g *Gate) IsFriend(ctx context.Context, a, b string) (bool, error) {
	accepted, err := g.store.HasAccepted(ctx, a, b)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return accepted, nil
}

// RequestPending reports whether the target's pending list contains the
// named requester.
func (g *Gate) RequestPending(ctx context.Context, requesterUsername, targetUsername string) (bool, error) {
	target, err := g.dir.FindByUsername(ctx, targetUsername)
	if err != nil {
		return false, fmt.Errorf("resolve target: %w", err)
	}
	return containsFold(target.PendingRequests, requesterUsername), nil
}

// RequestOutstanding reports whether a request is pending between the two
// users in either direction, and which direction it points. Both
// directions block a new request; an inbound one additionally signals
// that accepting, not re-requesting, is the way forward.
func (g *Gate) RequestOutstanding(ctx context.Context, a, b string) (RequestDirection, error) {
	userA, err := g.dir.FindByUsername(ctx, a)
	if err != nil {
		return RequestNone, fmt.Errorf("resolve user: %w", err)
	}
	userB, err := g.dir.FindByUsername(ctx, b)
	if err != nil {
		return RequestNone, fmt.Errorf("resolve user: %w", err)
	}

	if containsFold(userB.PendingRequests, userA.Username) {
		return RequestOutbound, nil
	}
	if containsFold(userA.PendingRequests, userB.Username) {
		return RequestInbound, nil
	}
	return RequestNone, nil
}

// AlreadyFriends is IsFriend under the name the validation layer uses.
func (g *Gate) AlreadyFriends(ctx context.Context, a, b string) (bool, error) {
	return g.IsFriend(ctx, a, b)
}
