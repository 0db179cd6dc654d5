package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lifeapp/backend/internal/auth"
	"github.com/lifeapp/backend/internal/logging"
)

// TokenVerifier resolves a bearer token to the caller it identifies.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// Authenticate requires a valid "Authorization: Bearer <token>" header and stores
// the resolved principal on the request context. Failures answer 401.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.FromContext(r.Context())

			if verifier == nil {
				logger.Error("token verifier unavailable")
				writeError(w, http.StatusInternalServerError, "authentication services unavailable")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="lifeapp"`)
				writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
				return
			}

			principal, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("access token rejected", "error", err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="lifeapp", error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := auth.WithPrincipal(r.Context(), principal)
			ctx = logging.WithUser(ctx, principal.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
