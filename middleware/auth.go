package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

type contextKey string

// APIKeyContextKey stores the extracted credential key in request
// context; the Pipeline resolves it against the Catalogue Store.
const APIKeyContextKey contextKey = "api_key"

// AuthMiddleware extracts and shape-validates the credential key from
// the Authorization header. It does not itself resolve the credential
// record — that is the Pipeline's job (§4.8 step 1) — it only rejects
// requests that are malformed before they reach it.
type AuthMiddleware struct {
	logger    zerolog.Logger
	headerKey string
	keyPrefix string
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(logger zerolog.Logger, headerKey, keyPrefix string) *AuthMiddleware {
	if headerKey == "" {
		headerKey = "Authorization"
	}
	return &AuthMiddleware{logger: logger, headerKey: headerKey, keyPrefix: keyPrefix}
}

// Handler returns the middleware handler function.
func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(am.headerKey)
		if header == "" {
			writeAuthError(w, "missing Authorization header")
			return
		}

		apiKey := header
		if strings.HasPrefix(strings.ToLower(header), "bearer ") {
			apiKey = header[len("Bearer "):]
		}
		apiKey = strings.TrimSpace(apiKey)

		if apiKey == "" || (am.keyPrefix != "" && !strings.HasPrefix(apiKey, am.keyPrefix)) {
			writeAuthError(w, "malformed credential")
			return
		}

		ctx := context.WithValue(r.Context(), APIKeyContextKey, apiKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"message": message, "type": "api_error", "code": http.StatusUnauthorized},
	})
}

// GetAPIKey extracts the credential key from the request context.
func GetAPIKey(ctx context.Context) string {
	if v, ok := ctx.Value(APIKeyContextKey).(string); ok {
		return v
	}
	return ""
}

// RequireAdmin rejects any request whose credential key doesn't equal
// the configured admin key, for the admin-only model-catalogue routes.
func RequireAdmin(adminKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if adminKey == "" || GetAPIKey(r.Context()) != adminKey {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{"message": "admin credential required", "type": "api_error", "code": http.StatusForbidden},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
