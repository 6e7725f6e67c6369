package gotrue

import (
	"context"

	"github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
)

// SessionResolver resolves the caller's session from request cookies. It
// is the server side counterpart of Client and is safe for concurrent use.
type SessionResolver struct {
	client *Client
	codec  CookieCodec
}

// NewSessionResolver builds a resolver sharing client's configuration.
func NewSessionResolver(client *Client) *SessionResolver {
	return &SessionResolver{
		client: client,
		codec:  client.Codec(),
	}
}

// ResolveSession returns the session carried by jar, refreshing and
// rewriting cookies when the access token expired. Missing, undecodable,
// forged or revoked sessions yield nil, nil and their cookies are cleared.
// Without a local verifier the access token is checked against the auth
// service. Only an unreachable auth service is reported as an error.
func (r *SessionResolver) ResolveSession(ctx context.Context, jar auth.CookieJar) (*auth.ProviderSession, error) {
	logger := r.client.cfg.Logger

	session, err := r.codec.Read(jar)
	if err != nil {
		logger.Debug("dropping undecodable session cookie", "error", err)
		r.codec.Clear(jar)
		return nil, nil
	}
	if session == nil {
		return nil, nil
	}
	if session.ExpiresAt == 0 {
		session.ExpiresAt = unverifiedExpiry(session.AccessToken)
	}

	verifier := r.client.Verifier()
	needsRefresh := session.Expired(r.client.cfg.Clock.Now(), r.client.cfg.RefreshMargin)
	if !needsRefresh && verifier != nil {
		if _, err := verifier.Verify(session.AccessToken); err != nil {
			if !auth.IsTokenExpiredError(err) {
				logger.Warn("rejecting session with invalid access token", "error", err)
				r.codec.Clear(jar)
				return nil, nil
			}
			needsRefresh = true
		}
	}
	if !needsRefresh && verifier == nil {
		return r.confirmWithService(ctx, jar, session)
	}
	if !needsRefresh {
		return session, nil
	}

	refreshed, err := r.client.exchangeRefreshToken(ctx, session.RefreshToken)
	if err != nil {
		if goerrors.IsAuth(err) {
			logger.Debug("session refresh rejected", "error", err)
			r.codec.Clear(jar)
			return nil, nil
		}
		return nil, goerrors.AddContext(err, "refresh session")
	}

	if err := r.codec.Write(jar, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// confirmWithService asks the auth service whether the access token is
// still good. Tokens it rejects are treated as signed out.
func (r *SessionResolver) confirmWithService(ctx context.Context, jar auth.CookieJar, session *auth.ProviderSession) (*auth.ProviderSession, error) {
	user, err := r.client.GetUser(ctx, session.AccessToken)
	if err != nil {
		if goerrors.IsAuth(err) {
			r.client.cfg.Logger.Warn("auth service rejected session access token", "error", err)
			r.codec.Clear(jar)
			return nil, nil
		}
		return nil, goerrors.AddContext(err, "verify session")
	}
	session.User = user
	return session, nil
}

// WriteSession stores session in jar, e.g. after a server side sign in.
func (r *SessionResolver) WriteSession(jar auth.CookieJar, session *auth.ProviderSession) error {
	if session == nil {
		r.codec.Clear(jar)
		return nil
	}
	return r.codec.Write(jar, session)
}

// ClearSession expires every session cookie in jar.
func (r *SessionResolver) ClearSession(jar auth.CookieJar) {
	r.codec.Clear(jar)
}
