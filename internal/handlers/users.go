package handlers

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/circlenet/backend/internal/logging"
	"github.com/circlenet/backend/internal/models"
	"github.com/circlenet/backend/internal/repositories"
)

// maxTimeLimit caps the daily usage allowance, in hours.
const maxTimeLimit = 24

// UserHandler implements profile, points, and time-limit endpoints.
type UserHandler struct {
	Users     UserStore
	Sessions  SessionManager
	Directory DirectoryInvalidator
}

// evict drops the user's cached directory entries after a mutation.
func (h UserHandler) evict(user models.User) {
	if h.Directory != nil {
		h.Directory.Invalidate(user)
	}
}

// Me handles /api/v1/users/me: GET returns the profile, PATCH updates the
// password, DELETE removes the account.
func (h UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.profile(w, r)
	case http.MethodPatch:
		h.updatePassword(w, r)
	case http.MethodDelete:
		h.deleteAccount(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h UserHandler) profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user services unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	user, err := h.Users.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "account no longer exists"})
			return
		}
		logger.Error("profile lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load profile"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserResponse(user))
}

func (h UserHandler) updatePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user services unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	var req passwordUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid password update payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Password) < 8 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	user, err := h.Users.FindByUserID(ctx, userID)
	if err != nil {
		logger.Error("password update lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load account"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("password update hash failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to secure password"})
		return
	}

	user.Password = string(hashed)
	if err := h.Users.Update(ctx, user); err != nil {
		logger.Error("password update failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update account"})
		return
	}
	h.evict(user)

	logger.Info("password updated", "userId", userID)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "password updated"})
}

func (h UserHandler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user services unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	user, err := h.Users.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "account no longer exists"})
			return
		}
		logger.Error("account deletion lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete account"})
		return
	}

	if err := h.Users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "account no longer exists"})
			return
		}
		logger.Error("account deletion failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete account"})
		return
	}
	h.evict(user)

	h.Sessions.Revoke(ctx, bearerToken(r))

	logger.Info("account deleted", "userId", userID)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "account deleted"})
}

// Points handles POST /api/v1/users/points: adjust the authenticated user's
// point balance by a signed delta.
func (h UserHandler) Points(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user services unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	var req pointsRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid points payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Delta == 0 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "delta must be nonzero"})
		return
	}

	user, err := h.Users.AdjustPoints(ctx, userID, req.Delta)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "account no longer exists"})
			return
		}
		logger.Error("points adjustment failed", "error", err, "userId", userID, "delta", req.Delta)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to adjust points"})
		return
	}

	h.evict(user)

	logger.Info("points adjusted", "userId", userID, "delta", req.Delta, "points", user.Points)
	respondJSON(ctx, w, http.StatusOK, newUserResponse(user))
}

// TimeLimit handles PUT /api/v1/users/limit: set the daily usage allowance.
func (h UserHandler) TimeLimit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user services unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	var req timeLimitRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid time limit payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Hours < 0 || req.Hours > maxTimeLimit {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "hours must be between 0 and 24"})
		return
	}

	user, err := h.Users.SetTimeLimit(ctx, userID, req.Hours)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "account no longer exists"})
			return
		}
		logger.Error("time limit update failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update time limit"})
		return
	}

	h.evict(user)

	logger.Info("time limit updated", "userId", userID, "hours", req.Hours)
	respondJSON(ctx, w, http.StatusOK, newUserResponse(user))
}

type passwordUpdateRequest struct {
	Password string `json:"password"`
}

type pointsRequest struct {
	Delta int `json:"delta"`
}

type timeLimitRequest struct {
	Hours int `json:"hours"`
}
