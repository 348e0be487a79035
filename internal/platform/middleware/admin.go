package middleware

import (
	"log/slog"
	"net/http"

	"canon/pkg/platform/secrets"
	"canon/pkg/requestcontext"
)

// RequireAdminToken gates destructive admin routes behind a static shared
// token in addition to the regular Bearer auth. Only the bcrypt hash of the
// token is held in memory; the comparison is constant-time.
func RequireAdminToken(expectedHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if err := secrets.Verify(token, expectedHash); err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "admin token required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
