package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/circlenet/backend/internal/auth"
	"github.com/circlenet/backend/internal/directory"
	"github.com/circlenet/backend/internal/models"
	"github.com/circlenet/backend/internal/repositories"
)

func newUserFixture(t *testing.T) (*inMemoryUserStore, *auth.Manager, UserHandler) {
	t.Helper()

	store := newInMemoryUserStore()
	store.users["user-1"] = models.User{
		ID:              "user-1",
		Username:        "alice",
		Password:        "hashed",
		PendingRequests: []string{"bob"},
		Points:          10,
		TimeLimit:       24,
		DateJoined:      time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC),
		LastLogin:       time.Date(2024, time.March, 2, 9, 30, 0, 0, time.UTC),
	}
	manager := newTestSessionManager()
	return store, manager, UserHandler{Users: store, Sessions: manager}
}

func authHeader(t *testing.T, manager *auth.Manager, userID string) string {
	t.Helper()
	tokens, err := manager.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return "Bearer " + tokens.AccessToken
}

func TestUserHandlerProfile(t *testing.T) {
	_, manager, handler := newUserFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", authHeader(t, manager, "user-1"))
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp userResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Username != "alice" || resp.Points != 10 || resp.TimeLimit != 24 {
		t.Fatalf("unexpected profile %+v", resp)
	}
	if resp.DateJoined != "March 1 2024, 9:30:00 am" {
		t.Fatalf("unexpected joined timestamp %q", resp.DateJoined)
	}
	if len(resp.PendingRequests) != 1 || resp.PendingRequests[0] != "bob" {
		t.Fatalf("unexpected pending list %v", resp.PendingRequests)
	}
}

func TestUserHandlerProfileNeverExposesPassword(t *testing.T) {
	_, manager, handler := newUserFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", authHeader(t, manager, "user-1"))
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	var raw map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for key := range raw {
		if key == "password" || key == "Password" {
			t.Fatalf("profile response leaked %q", key)
		}
	}
}

func TestUserHandlerUpdatePassword(t *testing.T) {
	store, manager, handler := newUserFixture(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/me", jsonBody(t, passwordUpdateRequest{Password: "newpassword"}))
	req.Header.Set("Authorization", authHeader(t, manager, "user-1"))
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	stored := store.users["user-1"]
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("newpassword")) != nil {
		t.Fatal("expected stored password to be the new hash")
	}
}

func TestUserHandlerUpdatePasswordTooShort(t *testing.T) {
	_, manager, handler := newUserFixture(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/me", jsonBody(t, passwordUpdateRequest{Password: "short"}))
	req.Header.Set("Authorization", authHeader(t, manager, "user-1"))
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestUserHandlerDeleteAccount(t *testing.T) {
	store, manager, handler := newUserFixture(t)

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if _, ok := store.users["user-1"]; ok {
		t.Fatal("expected account to be removed")
	}
	if _, err := manager.Authenticate(context.Background(), tokens.AccessToken); err == nil {
		t.Fatal("expected session to be revoked")
	}
}

func TestUserHandlerPoints(t *testing.T) {
	store, manager, handler := newUserFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/points", jsonBody(t, pointsRequest{Delta: -4}))
	req.Header.Set("Authorization", authHeader(t, manager, "user-1"))
	rec := httptest.NewRecorder()

	handler.Points(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp userResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Points != 6 {
		t.Fatalf("expected 6 points got %d", resp.Points)
	}
	if store.users["user-1"].Points != 6 {
		t.Fatalf("expected stored points 6 got %d", store.users["user-1"].Points)
	}
}

func TestUserHandlerPointsRejectsZeroDelta(t *testing.T) {
	_, manager, handler := newUserFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/points", jsonBody(t, pointsRequest{Delta: 0}))
	req.Header.Set("Authorization", authHeader(t, manager, "user-1"))
	rec := httptest.NewRecorder()

	handler.Points(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestUserHandlerTimeLimit(t *testing.T) {
	store, manager, handler := newUserFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/limit", jsonBody(t, timeLimitRequest{Hours: 6}))
	req.Header.Set("Authorization", authHeader(t, manager, "user-1"))
	rec := httptest.NewRecorder()

	handler.TimeLimit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if store.users["user-1"].TimeLimit != 6 {
		t.Fatalf("expected time limit 6 got %d", store.users["user-1"].TimeLimit)
	}
}

func TestUserHandlerTimeLimitBounds(t *testing.T) {
	_, manager, handler := newUserFixture(t)

	for _, hours := range []int{-1, 25} {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/users/limit", jsonBody(t, timeLimitRequest{Hours: hours}))
		req.Header.Set("Authorization", authHeader(t, manager, "user-1"))
		rec := httptest.NewRecorder()

		handler.TimeLimit(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("hours %d: expected status %d got %d", hours, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestUserHandlerDeleteAccountEvictsDirectoryCache(t *testing.T) {
	store, manager, handler := newUserFixture(t)
	cache := directory.NewCachingDirectory(store, time.Hour)
	handler.Directory = cache

	if _, err := cache.FindByUsername(context.Background(), "alice"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", authHeader(t, manager, "user-1"))
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if _, err := cache.FindByUsername(context.Background(), "alice"); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected deleted account to fall out of the directory cache, got %v", err)
	}
	if _, err := cache.FindByUserID(context.Background(), "user-1"); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected deleted account to fall out of the directory cache, got %v", err)
	}
}

func TestUserHandlerUpdatePasswordEvictsDirectoryCache(t *testing.T) {
	store, manager, handler := newUserFixture(t)
	cache := directory.NewCachingDirectory(store, time.Hour)
	handler.Directory = cache

	if _, err := cache.FindByUsername(context.Background(), "alice"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/me", jsonBody(t, passwordUpdateRequest{Password: "brand-new-secret"}))
	req.Header.Set("Authorization", authHeader(t, manager, "user-1"))
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	cached, err := cache.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("lookup after update: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cached.Password), []byte("brand-new-secret")); err != nil {
		t.Fatalf("directory cache served stale credentials: %v", err)
	}
}
