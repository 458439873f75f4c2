package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/circlenet/backend/internal/models"
	"github.com/circlenet/backend/internal/repositories"
)

type memoryMessageStore struct {
	mu       sync.Mutex
	messages []models.Message
}

func (s *memoryMessageStore) Create(_ context.Context, message models.Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()
	return nil
}

func (s *memoryMessageStore) ListConversation(_ context.Context, a, b string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, msg := range s.messages {
		if (msg.Sender == a && msg.Recipient == b) || (msg.Sender == b && msg.Recipient == a) {
			out = append(out, msg)
		}
	}
	return out, nil
}

type stubGate struct {
	friends map[string]bool
	err     error
}

func (g *stubGate) IsFriend(_ context.Context, a, b string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	return g.friends[gateKey(a, b)], nil
}

func gateKey(a, b string) string {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

type stubDirectory struct {
	byID   map[string]models.User
	byName map[string]models.User
}

func newStubDirectory(usernames ...string) *stubDirectory {
	d := &stubDirectory{byID: make(map[string]models.User), byName: make(map[string]models.User)}
	for i, username := range usernames {
		user := models.User{ID: string(rune('a' + i)), Username: username}
		d.byID[user.ID] = user
		d.byName[strings.ToLower(username)] = user
	}
	return d
}

func (d *stubDirectory) FindByUserID(_ context.Context, id string) (models.User, error) {
	user, ok := d.byID[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (d *stubDirectory) FindByUsername(_ context.Context, username string) (models.User, error) {
	user, ok := d.byName[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func TestSendRequiresFriendship(t *testing.T) {
	ctx := context.Background()
	store := &memoryMessageStore{}
	gate := &stubGate{friends: map[string]bool{}}
	dir := newStubDirectory("alice", "carol")

	svc := NewService(store, gate, dir)

	if _, err := svc.Send(ctx, "a", "carol", "hey"); !errors.Is(err, ErrNotFriends) {
		t.Fatalf("expected ErrNotFriends, got %v", err)
	}
	if len(store.messages) != 0 {
		t.Fatalf("expected nothing persisted when the gate denies")
	}

	// Flip the gate and the same send goes through.
	gate.friends[gateKey("alice", "carol")] = true

	now := time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)
	svc.NowFunc = func() time.Time { return now }

	msg, err := svc.Send(ctx, "a", "carol", "hey")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if msg.Sender != "alice" || msg.Recipient != "carol" || msg.Body != "hey" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if !msg.SentAt.Equal(now) {
		t.Fatalf("expected SentAt to use NowFunc")
	}
	if len(store.messages) != 1 {
		t.Fatalf("expected one persisted message, got %d", len(store.messages))
	}
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	gate := &stubGate{friends: map[string]bool{gateKey("alice", "carol"): true}}
	dir := newStubDirectory("alice", "carol")

	svc := NewService(&memoryMessageStore{}, gate, dir)

	if _, err := svc.Send(ctx, "a", "carol", "   "); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}

	if _, err := svc.Send(ctx, "a", "Alice", "hi me"); !errors.Is(err, ErrSelfMessage) {
		t.Fatalf("expected ErrSelfMessage, got %v", err)
	}

	if _, err := svc.Send(ctx, "a", "ghost", "anyone there"); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown recipient, got %v", err)
	}
}

func TestConversationGated(t *testing.T) {
	ctx := context.Background()
	store := &memoryMessageStore{}
	gate := &stubGate{friends: map[string]bool{gateKey("alice", "carol"): true}}
	dir := newStubDirectory("alice", "carol", "mallory")

	svc := NewService(store, gate, dir)

	if _, err := svc.Send(ctx, "a", "carol", "one"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Send(ctx, "b", "alice", "two"); err != nil {
		t.Fatalf("send: %v", err)
	}

	messages, err := svc.Conversation(ctx, "a", "carol")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected both directions in the conversation, got %d", len(messages))
	}

	if _, err := svc.Conversation(ctx, "c", "alice"); !errors.Is(err, ErrNotFriends) {
		t.Fatalf("expected ErrNotFriends for a stranger's read, got %v", err)
	}
}
