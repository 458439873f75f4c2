package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/circlenet/backend/internal/logging"
	"github.com/circlenet/backend/internal/models"
	"github.com/circlenet/backend/internal/repositories"
)

// InterestsHandler implements the interest survey endpoints at
// /api/v1/interests. Each user has at most one survey.
type InterestsHandler struct {
	Sessions  SessionManager
	Interests InterestsStore
	NowFunc   func() time.Time
}

func (h InterestsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h InterestsHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Interests == nil {
		logger.Error("interests store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "interests unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	req, ok := h.decodeSurvey(w, r)
	if !ok {
		return
	}

	interests := models.Interests{
		ID:        uuid.NewString(),
		UserID:    userID,
		Topics:    req.Topics,
		Different: req.Different,
		UpdatedAt: h.now(),
	}

	if err := h.Interests.Create(ctx, interests); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "survey already exists, update it instead"})
			return
		}
		logger.Error("interests create failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to save survey"})
		return
	}

	logger.Info("interest survey created", "userId", userID, "topics", len(interests.Topics))
	respondJSON(ctx, w, http.StatusCreated, newInterestsResponse(interests))
}

func (h InterestsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Interests == nil {
		logger.Error("interests store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "interests unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	interests, err := h.Interests.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "no survey on file"})
			return
		}
		logger.Error("interests lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load survey"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, newInterestsResponse(interests))
}

func (h InterestsHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Interests == nil {
		logger.Error("interests store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "interests unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	req, ok := h.decodeSurvey(w, r)
	if !ok {
		return
	}

	existing, err := h.Interests.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "no survey on file, create one first"})
			return
		}
		logger.Error("interests lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load survey"})
		return
	}

	existing.Topics = req.Topics
	existing.Different = req.Different
	existing.UpdatedAt = h.now()

	if err := h.Interests.Update(ctx, existing); err != nil {
		logger.Error("interests update failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update survey"})
		return
	}

	logger.Info("interest survey updated", "userId", userID, "topics", len(existing.Topics))
	respondJSON(ctx, w, http.StatusOK, newInterestsResponse(existing))
}

func (h InterestsHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Interests == nil {
		logger.Error("interests store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "interests unavailable"})
		return
	}

	userID, ok := requireUser(w, r, h.Sessions)
	if !ok {
		return
	}

	removed, err := h.Interests.Delete(ctx, userID)
	if err != nil {
		logger.Error("interests delete failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete survey"})
		return
	}
	if !removed {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "no survey on file"})
		return
	}

	logger.Info("interest survey deleted", "userId", userID)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "survey deleted"})
}

func (h InterestsHandler) decodeSurvey(w http.ResponseWriter, r *http.Request) (surveyRequest, bool) {
	ctx := r.Context()

	var req surveyRequest
	if err := decodeJSON(r, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid survey payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return surveyRequest{}, false
	}

	cleaned := make([]string, 0, len(req.Topics))
	for _, topic := range req.Topics {
		topic = strings.TrimSpace(topic)
		if topic != "" {
			cleaned = append(cleaned, topic)
		}
	}
	if len(cleaned) == 0 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "at least one topic is required"})
		return surveyRequest{}, false
	}
	req.Topics = cleaned

	return req, true
}

func (h InterestsHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type surveyRequest struct {
	Topics    []string `json:"topics"`
	Different bool     `json:"different"`
}
