package common

import "context"

type contextKey string

const contextKeySessionID contextKey = "session_id"

// WithSessionID tags the context with the page validation session ID so
// lower layers can correlate their log lines.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, contextKeySessionID, sessionID)
}

// SessionIDFromContext extracts the session ID, or "" when untagged.
func SessionIDFromContext(ctx context.Context) string {
	if sessionID, ok := ctx.Value(contextKeySessionID).(string); ok {
		return sessionID
	}
	return ""
}
