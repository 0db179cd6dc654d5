package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/lifeapp/backend/internal/friendships"
	"github.com/lifeapp/backend/internal/logging"
	"github.com/lifeapp/backend/internal/models"
)

// FriendshipHandler exposes the friend request lifecycle.
type FriendshipHandler struct {
	Friendships FriendshipService
}

// Create handles POST /api/v1/friendships.
func (h FriendshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.available(w, r) {
		return
	}

	var req createFriendshipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid friendship payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	friendship, err := h.Friendships.CreateRequest(ctx, caller, req.ToUserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, toFriendshipResponse(friendship))
}

// List handles GET /api/v1/friendships.
func (h FriendshipHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.available(w, r) {
		return
	}

	list, err := h.Friendships.ListFor(ctx, caller)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]friendshipResponse, 0, len(list))
	for _, f := range list {
		out = append(out, toFriendshipResponse(f))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

// Accept handles POST /api/v1/friendships/{id}/accept.
func (h FriendshipHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.available(w, r) {
		return
	}

	friendship, err := h.Friendships.Accept(ctx, caller, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toFriendshipResponse(friendship))
}

// Decline handles POST /api/v1/friendships/{id}/decline.
func (h FriendshipHandler) Decline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.available(w, r) {
		return
	}

	friendship, err := h.Friendships.Decline(ctx, caller, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toFriendshipResponse(friendship))
}

// Remove handles DELETE /api/v1/friendships/{id}.
func (h FriendshipHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.available(w, r) {
		return
	}

	if err := h.Friendships.Remove(ctx, caller, r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h FriendshipHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.Friendships != nil {
		return true
	}
	logging.FromContext(r.Context()).Error("friendship service unavailable")
	respondError(r.Context(), w, http.StatusInternalServerError, "friendship service unavailable")
	return false
}

// fail maps the friendship error taxonomy onto HTTP statuses.
func (h FriendshipHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var verr *friendships.ValidationError
	switch {
	case errors.As(err, &verr):
		respondFieldError(ctx, w, verr.Field, verr.Message)
	case errors.Is(err, friendships.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "not found")
	case errors.Is(err, friendships.ErrPermissionDenied):
		respondError(ctx, w, http.StatusForbidden, "you do not have permission to perform this action")
	default:
		logging.FromContext(ctx).Error("friendship operation failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "internal server error")
	}
}

type createFriendshipRequest struct {
	ToUserID string `json:"toUserId"`
}

type friendshipResponse struct {
	ID        string    `json:"id"`
	FromUser  string    `json:"fromUser"`
	ToUser    string    `json:"toUser"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toFriendshipResponse(f models.Friendship) friendshipResponse {
	return friendshipResponse{
		ID:        f.ID,
		FromUser:  f.FromUser,
		ToUser:    f.ToUser,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}
