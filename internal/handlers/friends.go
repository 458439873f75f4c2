package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/circlenet/backend/internal/friends"
	"github.com/circlenet/backend/internal/logging"
	"github.com/circlenet/backend/internal/repositories"
)

// FriendHandler implements the friend request lifecycle endpoints.
type FriendHandler struct {
	Users    UserStore
	Sessions SessionManager
	Engine   RelationshipEngine
	Gate     FriendGate
	Lister   FriendLister
}

// Request handles POST /api/v1/friends/request: the authenticated user asks
// another user to become friends.
func (h FriendHandler) Request(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Engine == nil || h.Gate == nil {
		logger.Error("friend dependencies unavailable", "hasUsers", h.Users != nil, "hasEngine", h.Engine != nil, "hasGate", h.Gate != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend services unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	var req friendTargetRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid friend request payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "username is required"})
		return
	}

	actor, err := h.Users.FindByUserID(ctx, userID)
	if err != nil {
		logger.Error("friend request actor lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load account"})
		return
	}

	target, err := h.Users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "no such user"})
			return
		}
		logger.Error("friend request target lookup failed", "error", err, "username", req.Username)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to look up user"})
		return
	}

	if strings.EqualFold(actor.Username, target.Username) {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "cannot send a friend request to yourself"})
		return
	}

	direction, err := h.Gate.RequestOutstanding(ctx, actor.Username, target.Username)
	if err != nil {
		logger.Error("friend request pending check failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify pending requests"})
		return
	}
	switch direction {
	case friends.RequestOutbound:
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "request already sent"})
		return
	case friends.RequestInbound:
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "this user already sent you a request, respond to it instead"})
		return
	}

	if isFriend, err := h.Gate.IsFriend(ctx, actor.Username, target.Username); err != nil {
		logger.Error("friend request friendship check failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify friendship"})
		return
	} else if isFriend {
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "already friends"})
		return
	}

	rel, err := h.Engine.SendRequest(ctx, userID, req.Username)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}

	logger.Info("friend request sent", "requester", rel.Requester, "target", rel.Target)
	respondJSON(ctx, w, http.StatusCreated, newRelationshipResponse(rel))
}

// Respond handles POST /api/v1/friends/respond: the authenticated user accepts
// or declines a request that was sent to them.
func (h FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Engine == nil || h.Gate == nil {
		logger.Error("friend dependencies unavailable", "hasUsers", h.Users != nil, "hasEngine", h.Engine != nil, "hasGate", h.Gate != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend services unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	var req friendRespondRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid friend response payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "username is required"})
		return
	}

	actor, err := h.Users.FindByUserID(ctx, userID)
	if err != nil {
		logger.Error("friend response actor lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load account"})
		return
	}

	pending, err := h.Gate.RequestPending(ctx, req.Username, actor.Username)
	if err != nil {
		logger.Error("friend response pending check failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify pending requests"})
		return
	}
	if !pending {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "no pending request from that user"})
		return
	}

	if req.Accept {
		rel, err := h.Engine.AcceptRequest(ctx, req.Username, userID)
		if err != nil {
			h.respondEngineError(w, r, err)
			return
		}
		logger.Info("friend request accepted", "requester", rel.Requester, "target", rel.Target)
		respondJSON(ctx, w, http.StatusOK, newRelationshipResponse(rel))
		return
	}

	removed, err := h.Engine.DeclineRequest(ctx, req.Username, userID)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	if !removed {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "no pending request from that user"})
		return
	}

	logger.Info("friend request declined", "requester", req.Username)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "request declined"})
}

// Remove handles POST /api/v1/friends/remove: either side of an accepted
// friendship dissolves it.
func (h FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Engine == nil {
		logger.Error("relationship engine unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend services unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	var req friendTargetRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid friend removal payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "username is required"})
		return
	}

	removed, err := h.Engine.DeleteFriend(ctx, userID, req.Username)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	if !removed {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "no friendship with that user"})
		return
	}

	logger.Info("friendship removed", "other", req.Username)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "friend removed"})
}

// List handles GET /api/v1/friends: usernames of everyone the authenticated
// user has an accepted friendship with.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Lister == nil {
		logger.Error("friend dependencies unavailable", "hasUsers", h.Users != nil, "hasLister", h.Lister != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend services unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	actor, err := h.Users.FindByUserID(ctx, userID)
	if err != nil {
		logger.Error("friend list actor lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load account"})
		return
	}

	names, err := h.Lister.ListAcceptedFor(ctx, actor.Username)
	if err != nil {
		logger.Error("friend list query failed", "error", err, "username", actor.Username)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to list friends"})
		return
	}
	if names == nil {
		names = []string{}
	}

	respondJSON(ctx, w, http.StatusOK, friendListResponse{Friends: names})
}

// Pending handles GET /api/v1/friends/pending: usernames waiting on a
// response from the authenticated user.
func (h FriendHandler) Pending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend services unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	actor, err := h.Users.FindByUserID(ctx, userID)
	if err != nil {
		logger.Error("pending list actor lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load account"})
		return
	}

	pending := actor.PendingRequests
	if pending == nil {
		pending = []string{}
	}

	respondJSON(ctx, w, http.StatusOK, pendingListResponse{Pending: pending})
}

// respondEngineError translates relationship engine failures into HTTP
// statuses. The engine re-validates under its pair lock, so these can fire
// even after the handler's own checks passed.
func (h FriendHandler) respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, friends.ErrSelfTarget):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "cannot send a friend request to yourself"})
	case errors.Is(err, friends.ErrRequestExists):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "request already pending"})
	case errors.Is(err, friends.ErrAlreadyFriends):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "already friends"})
	case errors.Is(err, repositories.ErrNotFound):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "no such user or request"})
	default:
		logging.FromContext(ctx).Error("relationship operation failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend operation failed"})
	}
}

type friendTargetRequest struct {
	Username string `json:"username"`
}

type friendRespondRequest struct {
	Username string `json:"username"`
	Accept   bool   `json:"accept"`
}

type friendListResponse struct {
	Friends []string `json:"friends"`
}

type pendingListResponse struct {
	Pending []string `json:"pending"`
}
