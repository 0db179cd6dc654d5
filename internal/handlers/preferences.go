package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lifeapp/backend/internal/logging"
	"github.com/lifeapp/backend/internal/models"
	"github.com/lifeapp/backend/internal/repositories"
)

// PreferenceHandler reads and replaces the caller's activity preferences.
type PreferenceHandler struct {
	Preferences PreferenceStore
	NowFunc     func() time.Time
}

// Get handles GET /api/v1/preferences, creating an empty preference on first access.
func (h PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.available(w, r) {
		return
	}

	pref, err := h.Preferences.GetOrCreate(ctx, caller.UserID, h.now())
	if err != nil {
		logging.FromContext(ctx).Error("load preferences failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondJSON(ctx, w, http.StatusOK, toPreferenceResponse(pref))
}

// Update handles PUT and PATCH /api/v1/preferences.
func (h PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.available(w, r) {
		return
	}

	var req preferenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid preference payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PreferredCategories == nil {
		if r.Method == http.MethodPut {
			respondFieldError(ctx, w, "preferredCategories", "this field is required")
			return
		}
		h.Get(w, r)
		return
	}

	ids := make([]string, 0, len(*req.PreferredCategories))
	for _, id := range *req.PreferredCategories {
		id = strings.TrimSpace(id)
		if id == "" {
			respondFieldError(ctx, w, "preferredCategories", "category ids may not be blank")
			return
		}
		ids = append(ids, id)
	}

	pref, err := h.Preferences.Replace(ctx, caller.UserID, ids, h.now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondFieldError(ctx, w, "preferredCategories", "invalid category id, object does not exist")
			return
		}
		logging.FromContext(ctx).Error("update preferences failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, toPreferenceResponse(pref))
}

func (h PreferenceHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.Preferences != nil {
		return true
	}
	respondError(r.Context(), w, http.StatusInternalServerError, "preference service unavailable")
	return false
}

func (h PreferenceHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type preferenceRequest struct {
	PreferredCategories *[]string `json:"preferredCategories"`
}

type preferenceResponse struct {
	PreferredCategories []string  `json:"preferredCategories"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func toPreferenceResponse(p models.Preference) preferenceResponse {
	categories := p.PreferredCategories
	if categories == nil {
		categories = []string{}
	}
	return preferenceResponse{PreferredCategories: categories, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
}
