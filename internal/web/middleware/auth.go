package middleware

import (
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/paystub/internal/payroll"
)

// RequireAuth lets a request through only when user returns a non-empty
// name for it. The name is recorded as the actor on the request context.
// Other requests are handed to unauthorized.
func RequireAuth(user func(*http.Request) string, unauthorized http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := user(r)
			if name == "" {
				slog.Warn("auth: no admin session",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				unauthorized(w, r)
				return
			}
			ctx := payroll.ContextWithActor(r.Context(), name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
