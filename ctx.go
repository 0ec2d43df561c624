package multitoken

import "context"

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSessionContext sets the Session in the given context
func WithSessionContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromCtx finds the session in the context.
func SessionFromCtx(ctx context.Context) (*Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	return raw, ok && raw != nil
}

// IdentityFromCtx returns the identity of the authenticated session
func IdentityFromCtx(ctx context.Context) (Identity, bool) {
	session, ok := SessionFromCtx(ctx)
	if !ok || session.Identity == nil {
		return nil, false
	}
	return session.Identity, true
}
