package shared

import "context"

// ctxKey is unexported so no other package can collide with the values
// this one stores in a request context.
type ctxKey int

const sessionKey ctxKey = iota

// ContextWithSession returns a child context carrying the storefront
// session for the rest of the request.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns the session placed by the middleware, or
// nil when the request never went through it.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey).(*Session)
	return sess
}
