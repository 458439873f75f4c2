package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/circlenet/backend/internal/auth"
	"github.com/circlenet/backend/internal/models"
	"github.com/circlenet/backend/internal/repositories"
)

type inMemoryUserStore struct {
	users map[string]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *inMemoryUserStore) FindByUserID(_ context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *inMemoryUserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	for _, user := range s.users {
		if strings.EqualFold(user.Username, username) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) Update(_ context.Context, user models.User) error {
	if _, ok := s.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *inMemoryUserStore) AdjustPoints(_ context.Context, id string, delta int) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	user.Points += delta
	s.users[id] = user
	return user, nil
}

func (s *inMemoryUserStore) SetTimeLimit(_ context.Context, id string, hours int) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	user.TimeLimit = hours
	s.users[id] = user
	return user, nil
}

func (s *inMemoryUserStore) Delete(_ context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func newTestSessionManager() *auth.Manager {
	return auth.NewManager(time.Minute, time.Hour, auth.NewInMemorySessionStore())
}

func jsonBody(t *testing.T, payload any) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(body)
}

func TestAuthHandlerSignUp(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Sessions: newTestSessionManager()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", jsonBody(t, credentialsRequest{Username: "alice", Password: "supersafe"}))
	rec := httptest.NewRecorder()

	handler.SignUp(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Tokens)
	}

	stored, err := store.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("supersafe")) != nil {
		t.Fatal("stored password is not hashed")
	}
	if stored.TimeLimit != defaultTimeLimit {
		t.Fatalf("expected default time limit %d got %d", defaultTimeLimit, stored.TimeLimit)
	}
	if stored.PendingRequests == nil || len(stored.PendingRequests) != 0 {
		t.Fatalf("expected empty pending requests, got %v", stored.PendingRequests)
	}
}

func TestAuthHandlerSignUpRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		username string
		password string
	}{
		{name: "empty username", username: "", password: "supersafe"},
		{name: "invalid characters", username: "al ice!", password: "supersafe"},
		{name: "short password", username: "alice", password: "short"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := AuthHandler{Users: newInMemoryUserStore(), Sessions: newTestSessionManager()}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", jsonBody(t, credentialsRequest{Username: tc.username, Password: tc.password}))
			rec := httptest.NewRecorder()

			handler.SignUp(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}
}

func TestAuthHandlerSignUpDuplicateUsername(t *testing.T) {
	store := newInMemoryUserStore()
	store.users["user-1"] = models.User{ID: "user-1", Username: "alice"}
	handler := AuthHandler{Users: store, Sessions: newTestSessionManager()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", jsonBody(t, credentialsRequest{Username: "Alice", Password: "supersafe"}))
	rec := httptest.NewRecorder()

	handler.SignUp(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Sessions: newTestSessionManager()}

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	store.users["user-1"] = models.User{ID: "user-1", Username: "alice", Password: string(hashed)}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", jsonBody(t, credentialsRequest{Username: "ALICE", Password: "password123"}))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Tokens)
	}

	if store.users["user-1"].LastLogin.IsZero() {
		t.Fatal("expected last login to be recorded")
	}
}

func TestAuthHandlerLoginRejectsWrongPassword(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Sessions: newTestSessionManager()}

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	store.users["user-1"] = models.User{ID: "user-1", Username: "alice", Password: string(hashed)}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", jsonBody(t, credentialsRequest{Username: "alice", Password: "wrong-password"}))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAuthHandlerRefresh(t *testing.T) {
	manager := newTestSessionManager()
	tokens, err := manager.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := AuthHandler{Users: newInMemoryUserStore(), Sessions: manager}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", jsonBody(t, refreshRequest{RefreshToken: tokens.RefreshToken}))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp tokensResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tokens.AccessToken == "" || resp.Tokens.AccessToken == tokens.AccessToken {
		t.Fatalf("expected a fresh access token, got %q", resp.Tokens.AccessToken)
	}
}

func TestAuthHandlerRefreshRejectsUnknownToken(t *testing.T) {
	handler := AuthHandler{Users: newInMemoryUserStore(), Sessions: newTestSessionManager()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", jsonBody(t, refreshRequest{RefreshToken: "no-such-token"}))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAuthHandlerLogoutRevokesSession(t *testing.T) {
	manager := newTestSessionManager()
	tokens, err := manager.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := AuthHandler{Users: newInMemoryUserStore(), Sessions: manager}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	if _, err := manager.Authenticate(context.Background(), tokens.AccessToken); err == nil {
		t.Fatal("expected access token to be revoked")
	}
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

func TestAuthHandlerRateLimited(t *testing.T) {
	handler := AuthHandler{Users: newInMemoryUserStore(), Sessions: newTestSessionManager(), Limiter: denyAllLimiter{}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", jsonBody(t, credentialsRequest{Username: "alice", Password: "password123"}))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d got %d", http.StatusTooManyRequests, rec.Code)
	}
}
