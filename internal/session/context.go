package session

import "context"

type contextKey struct{}

// WithSession attaches sess to ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session attached by the auth middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}

// UserID returns the signed-in user's id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if sess, ok := FromContext(ctx); ok {
		return sess.UserID
	}
	return ""
}
