package handlers

import (
	"net/http"
	"strings"

	"github.com/lifeapp/backend/internal/logging"
	"github.com/lifeapp/backend/internal/models"
)

const userSearchLimit = 50

// UserHandler lists other accounts so callers can find people to befriend.
type UserHandler struct {
	Users UserStore
}

// Search handles GET /api/v1/users?search=.
func (h UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	if h.Users == nil {
		logging.FromContext(ctx).Error("user store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "user directory unavailable")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("search"))
	users, err := h.Users.Search(ctx, caller.UserID, query, userSearchLimit)
	if err != nil {
		logging.FromContext(ctx).Error("user search failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to search users")
		return
	}

	out := make([]*userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func toUserResponse(u models.User) *userResponse {
	return &userResponse{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
}
