package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lifeapp/backend/internal/logging"
	"github.com/lifeapp/backend/internal/models"
	"github.com/lifeapp/backend/internal/repositories"
)

const maxTaskTitleLength = 255

// TaskHandler implements the owner-scoped task endpoints. Tasks of other users
// answer 404.
type TaskHandler struct {
	Tasks   TaskStore
	NowFunc func() time.Time
	NewID   func() string
}

// List handles GET /api/v1/tasks.
func (h TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.available(w, r) {
		return
	}

	tasks, err := h.Tasks.ListByOwner(ctx, caller.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

// Create handles POST /api/v1/tasks.
func (h TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.available(w, r) {
		return
	}

	var in taskInput
	if err := decodeJSON(w, r, &in); err != nil {
		logging.FromContext(ctx).Warn("invalid task payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := h.now()
	task := models.Task{
		ID:        h.newID(),
		UserID:    caller.UserID,
		Priority:  models.TaskPriorityDefault,
		Status:    models.TaskTodo,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if field, msg, ok := in.apply(&task, true); !ok {
		respondFieldError(ctx, w, field, msg)
		return
	}

	if err := h.Tasks.Create(ctx, task); err != nil {
		h.fail(w, r, err)
		return
	}

	logging.FromContext(ctx).Info("task created", "taskId", task.ID)
	respondJSON(ctx, w, http.StatusCreated, toTaskResponse(task))
}

// Get handles GET /api/v1/tasks/{id}.
func (h TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.available(w, r) {
		return
	}

	task, err := h.Tasks.Get(ctx, caller.UserID, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toTaskResponse(task))
}

// Replace handles PUT /api/v1/tasks/{id}; the title is required.
func (h TaskHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

// Patch handles PATCH /api/v1/tasks/{id}; only supplied fields change.
func (h TaskHandler) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h TaskHandler) update(w http.ResponseWriter, r *http.Request, full bool) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.available(w, r) {
		return
	}

	task, err := h.Tasks.Get(ctx, caller.UserID, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var in taskInput
	if err := decodeJSON(w, r, &in); err != nil {
		logging.FromContext(ctx).Warn("invalid task payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if field, msg, ok := in.apply(&task, full); !ok {
		respondFieldError(ctx, w, field, msg)
		return
	}
	task.UpdatedAt = h.now()

	if err := h.Tasks.Update(ctx, task); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toTaskResponse(task))
}

// Delete handles DELETE /api/v1/tasks/{id}.
func (h TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(w, r)
	if !ok || !h.available(w, r) {
		return
	}

	if err := h.Tasks.Delete(ctx, caller.UserID, r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h TaskHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.Tasks != nil {
		return true
	}
	logging.FromContext(r.Context()).Error("task store unavailable")
	respondError(r.Context(), w, http.StatusInternalServerError, "task service unavailable")
	return false
}

func (h TaskHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.Is(err, repositories.ErrNotFound) {
		respondError(ctx, w, http.StatusNotFound, "not found")
		return
	}
	logging.FromContext(ctx).Error("task operation failed", "error", err)
	respondError(ctx, w, http.StatusInternalServerError, "internal server error")
}

func (h TaskHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func (h TaskHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

// taskInput is the writable subset of a task. Absent fields are left untouched.
type taskInput struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Priority    *int         `json:"priority"`
	DueDate     optionalTime `json:"dueDate"`
	Status      *string      `json:"status"`
}

func (in taskInput) apply(task *models.Task, requireTitle bool) (field, message string, ok bool) {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return "title", "this field may not be blank", false
		}
		if utf8.RuneCountInString(title) > maxTaskTitleLength {
			return "title", "ensure this field has no more than 255 characters", false
		}
		task.Title = title
	} else if requireTitle {
		return "title", "this field is required", false
	}

	if in.Description != nil {
		task.Description = *in.Description
	}

	if in.Priority != nil {
		if *in.Priority < models.TaskPriorityHighest || *in.Priority > models.TaskPriorityLowest {
			return "priority", fmt.Sprintf("%d is not a valid choice", *in.Priority), false
		}
		task.Priority = *in.Priority
	}

	if in.DueDate.Set {
		task.DueDate = in.DueDate.Value
	}

	if in.Status != nil {
		switch *in.Status {
		case models.TaskTodo, models.TaskInProgress, models.TaskDone:
			task.Status = *in.Status
		default:
			return "status", fmt.Sprintf("%q is not a valid choice", *in.Status), false
		}
	}

	return "", "", true
}

// optionalTime distinguishes an absent JSON field from an explicit null.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("dueDate: %w", err)
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			o.Value = &t
			return nil
		}
	}
	return fmt.Errorf("dueDate: invalid datetime %q", raw)
}

type taskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func toTaskResponse(t models.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
