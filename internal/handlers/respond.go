package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/circlenet/backend/internal/logging"
	"github.com/circlenet/backend/internal/models"
)

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// requireUser authenticates the request's bearer token, writing a 401 and
// returning false when it cannot.
func requireUser(w http.ResponseWriter, r *http.Request, sessions SessionManager) (string, bool) {
	ctx := r.Context()

	if sessions == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "session service unavailable"})
		return "", false
	}

	token := bearerToken(r)
	if token == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return "", false
	}

	userID, err := sessions.Authenticate(ctx, token)
	if err != nil {
		logging.FromContext(ctx).Warn("authentication failed", "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired session"})
		return "", false
	}

	return userID, true
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// bearerToken extracts the access token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// formatDisplayTime encodes a timestamp the way responses display it,
// e.g. "March 1 2024, 9:30:00 am".
func formatDisplayTime(t time.Time) string {
	return t.Format("January 2 2006, 3:04:05 pm")
}

// relationshipResponse is the wire shape of a relationship record.
type relationshipResponse struct {
	ID        string `json:"id"`
	Requester string `json:"requester"`
	Target    string `json:"target"`
	State     string `json:"state"`
	CreatedAt string `json:"createdAt"`
}

func newRelationshipResponse(rel models.Relationship) relationshipResponse {
	return relationshipResponse{
		ID:        rel.ID,
		Requester: rel.Requester,
		Target:    rel.Target,
		State:     rel.State,
		CreatedAt: formatDisplayTime(rel.CreatedAt),
	}
}

// messageResponse is the wire shape of a direct message.
type messageResponse struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
	SentAt    string `json:"sentAt"`
}

func newMessageResponse(msg models.Message) messageResponse {
	return messageResponse{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Body:      msg.Body,
		SentAt:    formatDisplayTime(msg.SentAt),
	}
}

// userResponse is the wire shape of a user profile. Password hashes never
// leave the persistence layer through this type.
type userResponse struct {
	ID              string   `json:"id"`
	Username        string   `json:"username"`
	PendingRequests []string `json:"pendingRequests"`
	Points          int      `json:"points"`
	TimeLimit       int      `json:"timeLimit"`
	DateJoined      string   `json:"dateJoined"`
	LastLogin       string   `json:"lastLogin"`
}

func newUserResponse(user models.User) userResponse {
	pending := user.PendingRequests
	if pending == nil {
		pending = []string{}
	}
	return userResponse{
		ID:              user.ID,
		Username:        user.Username,
		PendingRequests: pending,
		Points:          user.Points,
		TimeLimit:       user.TimeLimit,
		DateJoined:      formatDisplayTime(user.DateJoined),
		LastLogin:       formatDisplayTime(user.LastLogin),
	}
}

// interestsResponse is the wire shape of an interest survey.
type interestsResponse struct {
	ID        string   `json:"id"`
	UserID    string   `json:"userId"`
	Topics    []string `json:"topics"`
	Different bool     `json:"different"`
	UpdatedAt string   `json:"updatedAt"`
}

func newInterestsResponse(interests models.Interests) interestsResponse {
	topics := interests.Topics
	if topics == nil {
		topics = []string{}
	}
	return interestsResponse{
		ID:        interests.ID,
		UserID:    interests.UserID,
		Topics:    topics,
		Different: interests.Different,
		UpdatedAt: formatDisplayTime(interests.UpdatedAt),
	}
}
