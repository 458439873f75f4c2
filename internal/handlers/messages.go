package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/circlenet/backend/internal/logging"
	"github.com/circlenet/backend/internal/messaging"
	"github.com/circlenet/backend/internal/repositories"
)

// MessageHandler implements the friend-gated direct messaging endpoints.
type MessageHandler struct {
	Users    UserStore
	Sessions SessionManager
	Messages MessageSender
	Archiver ArchiveScheduler
}

// Send handles POST /api/v1/messages: deliver a message to a friend.
func (h MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Messages == nil {
		logger.Error("message service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "messaging unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid message payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Recipient = strings.TrimSpace(req.Recipient)
	if req.Recipient == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "recipient is required"})
		return
	}

	msg, err := h.Messages.Send(ctx, userID, req.Recipient, req.Body)
	if err != nil {
		h.respondMessagingError(w, r, err)
		return
	}

	logger.Info("message delivered", "sender", msg.Sender, "recipient", msg.Recipient)
	respondJSON(ctx, w, http.StatusCreated, newMessageResponse(msg))
}

// Conversation handles GET /api/v1/messages/conversation?with=<username>: the
// full exchange between the authenticated user and one friend.
func (h MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Messages == nil {
		logger.Error("message service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "messaging unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	other := strings.TrimSpace(r.URL.Query().Get("with"))
	if other == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "with query parameter is required"})
		return
	}

	msgs, err := h.Messages.Conversation(ctx, userID, other)
	if err != nil {
		h.respondMessagingError(w, r, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, newMessageResponse(msg))
	}

	respondJSON(ctx, w, http.StatusOK, conversationResponse{Messages: out})
}

// Archive handles POST /api/v1/messages/archive: schedule a background export
// of a conversation to object storage.
func (h MessageHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Archiver == nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "archiving is not configured"})
		return
	}
	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "messaging unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	var req archiveRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid archive payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.With = strings.TrimSpace(req.With)
	if req.With == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "with is required"})
		return
	}

	actor, err := h.Users.FindByUserID(ctx, userID)
	if err != nil {
		logger.Error("archive actor lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load account"})
		return
	}

	if err := h.Archiver.Enqueue(ctx, actor.Username, req.With); err != nil {
		logger.Error("archive enqueue failed", "error", err)
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "unable to schedule archive"})
		return
	}

	logger.Info("conversation archive scheduled", "with", req.With)
	respondJSON(ctx, w, http.StatusAccepted, map[string]string{"status": "archive scheduled"})
}

func (h MessageHandler) respondMessagingError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, messaging.ErrNotFriends):
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "you can only message friends"})
	case errors.Is(err, messaging.ErrSelfMessage):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "cannot message yourself"})
	case errors.Is(err, messaging.ErrEmptyBody):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "message body is required"})
	case errors.Is(err, repositories.ErrNotFound):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "no such user"})
	default:
		logging.FromContext(ctx).Error("messaging operation failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "message operation failed"})
	}
}

type sendMessageRequest struct {
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
}

type archiveRequest struct {
	With string `json:"with"`
}

type conversationResponse struct {
	Messages []messageResponse `json:"messages"`
}
