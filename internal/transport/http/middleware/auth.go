package middleware

import (
	"context"
	"net/http"
	"strings"

	"rollermate/internal/httputil"
	"rollermate/internal/session"
)

// Resolver turns an access token into its live session.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// AuthMiddleware requires a live session. The token is read from the
// Authorization header (mobile), then the access_token cookie (web), then the
// access_token query parameter (websocket handshakes cannot set headers).
func AuthMiddleware(sessions Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				httputil.WriteUnauthorized(w, "Missing authentication token")
				return
			}

			sess, err := sessions.Resolve(r.Context(), token)
			if err != nil {
				httputil.WriteDomainError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}

// OptionalAuthMiddleware attaches the session when a valid token is present
// and lets the request through anonymously otherwise.
func OptionalAuthMiddleware(sessions Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := tokenFromRequest(r); token != "" {
				if sess, err := sessions.Resolve(r.Context(), token); err == nil {
					r = r.WithContext(session.WithSession(r.Context(), sess))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserIDFromContext returns the authenticated user's id.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id := session.UserID(ctx)
	return id, id != ""
}

func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("access_token")
}
