package middleware

import (
	"log/slog"
	"net/http"

	"contactlink/pkg/secrets"
)

// RequireAPIKey verifies the X-API-Key header against a bcrypt hash of the
// service key. When no hash is configured the middleware is a no-op, keeping
// local development and the test suites friction-free.
func RequireAPIKey(keyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if keyHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" || secrets.Verify(key, keyHash) != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid api key",
					"request_id", GetRequestID(r.Context()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
