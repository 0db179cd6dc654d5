package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/lifeapp/backend/internal/exports"
	"github.com/lifeapp/backend/internal/logging"
)

const exportLinkTTL = 15 * time.Minute

// ExportHandler schedules account exports and reports their progress.
type ExportHandler struct {
	Exports ExportQueue
	Links   DownloadLinker
}

// Create handles POST /api/v1/exports.
func (h ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.enabled(w, r) {
		return
	}

	record, err := h.Exports.Enqueue(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, exports.ErrExporterClosed) || errors.Is(err, exports.ErrStorageUnavailable) {
			respondError(ctx, w, http.StatusServiceUnavailable, "exports are currently unavailable")
			return
		}
		logging.FromContext(ctx).Error("enqueue export failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Location", "/api/v1/exports/"+record.ID)
	respondJSON(ctx, w, http.StatusAccepted, exportResponse{Export: record})
}

// Get handles GET /api/v1/exports/{id}.
func (h ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.enabled(w, r) {
		return
	}

	record, err := h.Exports.Get(caller.UserID, r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, http.StatusNotFound, "not found")
		return
	}

	resp := exportResponse{Export: record}
	if record.Status == exports.StatusCompleted && h.Links != nil {
		url, err := h.Links.PresignGet(ctx, record.Location, exportLinkTTL)
		if err != nil {
			logging.FromContext(ctx).Warn("presign export failed", "exportId", record.ID, "error", err)
		} else {
			resp.DownloadURL = url
		}
	}
	respondJSON(ctx, w, http.StatusOK, resp)
}

func (h ExportHandler) enabled(w http.ResponseWriter, r *http.Request) bool {
	if h.Exports != nil && h.Exports.Enabled() {
		return true
	}
	respondError(r.Context(), w, http.StatusServiceUnavailable, "exports are not configured")
	return false
}

type exportResponse struct {
	exports.Export
	DownloadURL string `json:"downloadUrl,omitempty"`
}
