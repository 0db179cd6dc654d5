package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lifeapp/backend/internal/activities"
	"github.com/lifeapp/backend/internal/logging"
	"github.com/lifeapp/backend/internal/models"
	"github.com/lifeapp/backend/internal/repositories"
)

// CatalogHandler serves the read-only activity catalog.
type CatalogHandler struct {
	Catalog activities.Catalog
}

// ListCategories handles GET /api/v1/activity-categories.
func (h CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	categories, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse(c))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

// GetCategory handles GET /api/v1/activity-categories/{id}.
func (h CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	category, err := h.Catalog.GetCategory(ctx, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, categoryResponse(category))
}

// ListActivities handles GET /api/v1/activities, optionally filtered by ?category_id=.
func (h CatalogHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	list, err := h.Catalog.ListActivities(ctx, strings.TrimSpace(r.URL.Query().Get("category_id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]activityResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toActivityResponse(a))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

// GetActivity handles GET /api/v1/activities/{id}.
func (h CatalogHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	activity, err := h.Catalog.GetActivity(ctx, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toActivityResponse(activity))
}

func (h CatalogHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.Catalog != nil {
		return true
	}
	respondError(r.Context(), w, http.StatusInternalServerError, "activity catalog unavailable")
	return false
}

func (h CatalogHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.Is(err, repositories.ErrNotFound) {
		respondError(ctx, w, http.StatusNotFound, "not found")
		return
	}
	logging.FromContext(ctx).Error("catalog lookup failed", "error", err)
	respondError(ctx, w, http.StatusInternalServerError, "internal server error")
}

type categoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type activityResponse struct {
	ID                 string    `json:"id"`
	CategoryID         *string   `json:"categoryId"`
	Category           *string   `json:"category"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	IsOutdoor          bool      `json:"isOutdoor"`
	MinDurationMinutes int       `json:"minDurationMinutes"`
	MaxDurationMinutes int       `json:"maxDurationMinutes"`
	Notes              string    `json:"notes"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toActivityResponse(a models.Activity) activityResponse {
	resp := activityResponse{
		ID:                 a.ID,
		CategoryID:         a.CategoryID,
		Name:               a.Name,
		Description:        a.Description,
		IsOutdoor:          a.IsOutdoor,
		MinDurationMinutes: a.MinDurationMinutes,
		MaxDurationMinutes: a.MaxDurationMinutes,
		Notes:              a.Notes,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if a.CategoryID != nil {
		name := a.CategoryName
		resp.Category = &name
	}
	return resp
}
