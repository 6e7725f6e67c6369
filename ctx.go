package auth

import "context"

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSessionContext stores the resolved provider session in ctx.
func WithSessionContext(ctx context.Context, session *ProviderSession) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext returns the session stored by WithSessionContext.
func SessionFromContext(ctx context.Context) (*ProviderSession, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(sessionCtxKey).(*ProviderSession)
	return raw, ok && raw != nil
}

// UserFromContext returns the store user for the session stored in ctx.
func UserFromContext(ctx context.Context) (*User, bool) {
	session, ok := SessionFromContext(ctx)
	if !ok || session.User == nil {
		return nil, false
	}
	return UserFromProvider(session.User), true
}
