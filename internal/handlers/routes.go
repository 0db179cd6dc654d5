package handlers

import (
	"net/http"

	"github.com/lifeapp/backend/internal/activities"
	"github.com/lifeapp/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users       UserStore
	Sessions    SessionManager
	Friendships FriendshipService
	Tasks       TaskStore
	Catalog     activities.Catalog
	Preferences PreferenceStore
	Exports     ExportQueue
	ExportLinks DownloadLinker
	AuthLimiter middleware.RateLimiter
	Database    HealthChecker
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Everything under
// /api/v1 except the auth endpoints requires a bearer access token.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	authn := AuthHandler{Users: deps.Users, Sessions: deps.Sessions}
	users := UserHandler{Users: deps.Users}
	friends := FriendshipHandler{Friendships: deps.Friendships}
	tasks := TaskHandler{Tasks: deps.Tasks}
	catalog := CatalogHandler{Catalog: deps.Catalog}
	prefs := PreferenceHandler{Preferences: deps.Preferences}
	exportsH := ExportHandler{Exports: deps.Exports, Links: deps.ExportLinks}

	var verifier middleware.TokenVerifier
	if deps.Sessions != nil {
		verifier = deps.Sessions
	}
	protect := middleware.Authenticate(verifier)
	limit := middleware.RateLimit(deps.AuthLimiter, "auth")

	public := func(pattern string, h http.HandlerFunc) { mux.Handle(pattern, limit(h)) }
	private := func(pattern string, h http.HandlerFunc) { mux.Handle(pattern, protect(h)) }

	mux.HandleFunc("GET /healthz", health.Handle)

	public("POST /api/v1/auth/register", authn.Register)
	public("POST /api/v1/auth/token", authn.Token)
	public("POST /api/v1/auth/token/refresh", authn.Refresh)
	public("POST /api/v1/auth/logout", authn.Logout)

	private("GET /api/v1/users", users.Search)

	private("GET /api/v1/friendships", friends.List)
	private("POST /api/v1/friendships", friends.Create)
	private("POST /api/v1/friendships/{id}/accept", friends.Accept)
	private("POST /api/v1/friendships/{id}/decline", friends.Decline)
	private("DELETE /api/v1/friendships/{id}", friends.Remove)

	private("GET /api/v1/tasks", tasks.List)
	private("POST /api/v1/tasks", tasks.Create)
	private("GET /api/v1/tasks/{id}", tasks.Get)
	private("PUT /api/v1/tasks/{id}", tasks.Replace)
	private("PATCH /api/v1/tasks/{id}", tasks.Patch)
	private("DELETE /api/v1/tasks/{id}", tasks.Delete)

	private("GET /api/v1/activity-categories", catalog.ListCategories)
	private("GET /api/v1/activity-categories/{id}", catalog.GetCategory)
	private("GET /api/v1/activities", catalog.ListActivities)
	private("GET /api/v1/activities/{id}", catalog.GetActivity)

	private("GET /api/v1/preferences", prefs.Get)
	private("PUT /api/v1/preferences", prefs.Update)
	private("PATCH /api/v1/preferences", prefs.Update)

	private("POST /api/v1/exports", exportsH.Create)
	private("GET /api/v1/exports/{id}", exportsH.Get)
}
