// Package messaging persists direct messages between confirmed friends.
// The friendship gate is consulted before any message is stored.
package messaging

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
	// ErrNotFriends indicates the sender and recipient have no accepted relationship.
	ErrNotFriends = errors.New("users are not friends")
	// ErrSelfMessage indicates a user tried to message themselves.
	ErrSelfMessage = errors.New("cannot message yourself")
	// ErrEmptyBody indicates the message carried no content.
	ErrEmptyBody = errors.New("message body is empty")
)

// FriendGate authorizes messaging between two usernames.
type FriendGate interface {
	IsFriend(ctx context.Context, a, b string) (bool, error)
}

// MessageStore persists sent messages.
type MessageStore interface {
	Create(ctx context.Context, message models.Message) error
	ListConversation(ctx context.Context, a, b string) ([]models.Message, error)
}

// Service implements gated message sending and conversation reads.
type Service struct {
	store MessageStore
	gate  FriendGate
	dir   directory.Directory

	// NowFunc overrides the clock in tests.
	NowFunc func() time.Time
}

// NewService constructs a messaging service.
func NewService(store MessageStore, gate FriendGate, dir directory.Directory) *Service {
	if store == nil || gate == nil || dir == nil {
		panic("messaging: service requires a store, a gate, and a directory")
	}
	return &Service{store: store, gate: gate, dir: dir}
}

// Send resolves the sender, verifies the pair are confirmed friends, and
// persists the message. Nothing is stored when the gate denies.
func (s *Service) Send(ctx context.Context, senderID, recipientUsername, body string) (models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return models.Message{}, ErrEmptyBody
	}

	sender, err := s.dir.FindByUserID(ctx, senderID)
	if err != nil {
		return models.Message{}, fmt.Errorf("resolve sender: %w", err)
	}

	recipient, err := s.dir.FindByUsername(ctx, recipientUsername)
	if err != nil {
		return models.Message{}, fmt.Errorf("resolve recipient: %w", err)
	}

	if strings.EqualFold(sender.Username, recipient.Username) {
		return models.Message{}, ErrSelfMessage
	}

	allowed, err := s.gate.IsFriend(ctx, sender.Username, recipient.Username)
	if err != nil {
		return models.Message{}, fmt.Errorf("authorize message: %w", err)
	}
	if !allowed {
		return models.Message{}, ErrNotFriends
	}

	message := models.Message{
		ID:        uuid.NewString(),
		Sender:    sender.Username,
		Recipient: recipient.Username,
		Body:      body,
		SentAt:    s.now(),
	}

	if err := s.store.Create(ctx, message); err != nil {
		return models.Message{}, fmt.Errorf("store message: %w", err)
	}

	return message, nil
}

// Conversation returns the messages between the acting user and the named
// friend, oldest first. Reading is gated the same way sending is.
func (s *Service) Conversation(ctx context.Context, userID, otherUsername string) ([]models.Message, error) {
	user, err := s.dir.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	other, err := s.dir.FindByUsername(ctx, otherUsername)
	if err != nil {
		return nil, fmt.Errorf("resolve other user: %w", err)
	}

	allowed, err := s.gate.IsFriend(ctx, user.Username, other.Username)
	if err != nil {
		return nil, fmt.Errorf("authorize conversation: %w", err)
	}
	if !allowed {
		return nil, ErrNotFriends
	}

	messages, err := s.store.ListConversation(ctx, user.Username, other.Username)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}

	return messages, nil
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
