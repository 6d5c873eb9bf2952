package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rollermate/internal/httputil"
	"rollermate/internal/transport/http/middleware"
)

// requireUser returns the authenticated user id or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return "", false
	}
	return userID, true
}

// viewerID is the authenticated user id, or "" for anonymous requests.
func viewerID(r *http.Request) string {
	id, _ := middleware.GetUserIDFromContext(r.Context())
	return id
}

// pathID reads a UUID path parameter or writes a 400.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid "+name)
		return "", false
	}
	return id.String(), true
}

// clientIP prefers proxy headers, then the connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
