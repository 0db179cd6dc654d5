package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/lifeapp/backend/internal/models"
	"github.com/lifeapp/backend/internal/repositories"
)

type inMemoryPreferenceStore struct {
	known map[string]bool
	prefs map[string]models.Preference
}

func newInMemoryPreferenceStore(categoryIDs ...string) *inMemoryPreferenceStore {
	known := make(map[string]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		known[id] = true
	}
	return &inMemoryPreferenceStore{known: known, prefs: make(map[string]models.Preference)}
}

func (s *inMemoryPreferenceStore) GetOrCreate(_ context.Context, userID string, now time.Time) (models.Preference, error) {
	pref, ok := s.prefs[userID]
	if !ok {
		pref = models.Preference{UserID: userID, CreatedAt: now, UpdatedAt: now}
		s.prefs[userID] = pref
	}
	return pref, nil
}

func (s *inMemoryPreferenceStore) Replace(ctx context.Context, userID string, categoryIDs []string, now time.Time) (models.Preference, error) {
	for _, id := range categoryIDs {
		if !s.known[id] {
			return models.Preference{}, repositories.ErrNotFound
		}
	}
	pref, _ := s.GetOrCreate(ctx, userID, now)
	ids := append([]string(nil), categoryIDs...)
	sort.Strings(ids)
	pref.PreferredCategories = ids
	pref.UpdatedAt = now
	s.prefs[userID] = pref
	return pref, nil
}

func newPreferenceRequest(method, caller, body string) *http.Request {
	return asUser(httptest.NewRequest(method, "/api/v1/preferences", bytes.NewBufferString(body)), caller)
}

func decodePreference(t *testing.T, rec *httptest.ResponseRecorder) preferenceResponse {
	t.Helper()
	var resp preferenceResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestPreferenceHandlerGetCreatesEmpty(t *testing.T) {
	h := PreferenceHandler{Preferences: newInMemoryPreferenceStore("cat-1")}

	rec := httptest.NewRecorder()
	h.Get(rec, newPreferenceRequest(http.MethodGet, "alice", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if pref := decodePreference(t, rec); pref.PreferredCategories == nil || len(pref.PreferredCategories) != 0 {
		t.Fatalf("expected empty category list, got %#v", pref.PreferredCategories)
	}
}

func TestPreferenceHandlerUpdate(t *testing.T) {
	h := PreferenceHandler{Preferences: newInMemoryPreferenceStore("cat-1", "cat-2")}

	rec := httptest.NewRecorder()
	h.Update(rec, newPreferenceRequest(http.MethodPut, "alice", `{"preferredCategories":["cat-2","cat-1"]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if pref := decodePreference(t, rec); len(pref.PreferredCategories) != 2 || pref.PreferredCategories[0] != "cat-1" {
		t.Fatalf("unexpected categories %v", pref.PreferredCategories)
	}

	rec = httptest.NewRecorder()
	h.Update(rec, newPreferenceRequest(http.MethodPut, "alice", `{"preferredCategories":["cat-404"]}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown category to answer %d got %d", http.StatusBadRequest, rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Update(rec, newPreferenceRequest(http.MethodPut, "alice", `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected PUT without categories to answer %d got %d", http.StatusBadRequest, rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Update(rec, newPreferenceRequest(http.MethodPatch, "alice", `{}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected empty PATCH to answer %d got %d", http.StatusOK, rec.Code)
	}
	if pref := decodePreference(t, rec); len(pref.PreferredCategories) != 2 {
		t.Fatalf("expected empty PATCH to keep categories, got %v", pref.PreferredCategories)
	}

	rec = httptest.NewRecorder()
	h.Update(rec, newPreferenceRequest(http.MethodPatch, "alice", `{"preferredCategories":[]}`))
	if pref := decodePreference(t, rec); len(pref.PreferredCategories) != 0 {
		t.Fatalf("expected categories to be cleared, got %v", pref.PreferredCategories)
	}
}
