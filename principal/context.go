package principal

import "context"

type contextKey int

const ctxKeyCaller contextKey = iota

// WithCaller returns a context carrying the authenticated caller's user id.
// The session collaborator supplies this id at the edge of the process; the
// core treats it as opaque.
func WithCaller(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyCaller, userID)
}

// CallerFromContext extracts the caller's user id, if any.
func CallerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyCaller).(string)
	return v, ok && v != ""
}
