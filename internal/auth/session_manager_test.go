package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManagerIssueAndAuthenticate(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(time.Minute, time.Hour, store)

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected non-empty tokens: %+v", tokens)
	}

	userID, err := manager.Authenticate(context.Background(), tokens.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected user-1 got %q", userID)
	}
}

func TestManagerAuthenticateRejectsRefreshToken(t *testing.T) {
	manager := NewManager(time.Minute, time.Hour, NewInMemorySessionStore())

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := manager.Authenticate(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found got %v", err)
	}
}

func TestManagerAuthenticateExpiredToken(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(-time.Minute, time.Hour, store)

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := manager.Authenticate(context.Background(), tokens.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected token expired got %v", err)
	}
	if store.Has(tokens.AccessToken) {
		t.Fatal("expired token should have been removed")
	}
}

func TestManagerIssueValidation(t *testing.T) {
	manager := NewManager(time.Minute, time.Hour, NewInMemorySessionStore())
	if _, err := manager.Issue(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestManagerRefreshRotatesTokens(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(time.Minute, time.Hour, store)

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	refreshed, err := manager.Refresh(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected new refresh token")
	}
	if store.Has(tokens.RefreshToken) {
		t.Fatal("old refresh token should have been removed")
	}

	if _, err := manager.Authenticate(context.Background(), refreshed.AccessToken); err != nil {
		t.Fatalf("authenticate with new access token: %v", err)
	}
}

func TestManagerRefreshFailures(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(time.Minute, -time.Minute, store)

	if _, err := manager.Refresh(context.Background(), ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found got %v", err)
	}

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected token expired got %v", err)
	}

	manager = NewManager(time.Minute, time.Hour, store)
	tokens, err = manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	manager.Revoke(context.Background(), tokens.RefreshToken)
	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found after revoke got %v", err)
	}
}
