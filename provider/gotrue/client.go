package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

const (
	TextCodeProviderRejected = "PROVIDER_REJECTED"
	TextCodeProviderFailure  = "PROVIDER_FAILURE"
)

// Client is the auth service client. It keeps the current session, persists
// it to Storage and notifies listeners on every change. It implements
// auth.Provider.
type Client struct {
	cfg      Config
	codec    CookieCodec
	verifier *Verifier

	mu      sync.Mutex
	session *auth.ProviderSession
	loaded  bool

	listenersMu sync.Mutex
	listeners   map[int]auth.AuthStateListener
	nextID      int

	// serializes delivery so listeners observe events in emission order
	emitMu sync.Mutex
}

var _ auth.Provider = (*Client)(nil)

// NewClient validates cfg and builds a client. A configured JWT secret or
// JWKS URL enables local access token verification.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	verifier, err := NewVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:       cfg,
		codec:     cfg.codec(),
		verifier:  verifier,
		listeners: map[int]auth.AuthStateListener{},
	}, nil
}

// Codec returns the cookie codec matching the client configuration.
func (c *Client) Codec() CookieCodec {
	return c.codec
}

// Verifier returns the local token verifier, nil when none is configured.
func (c *Client) Verifier() *Verifier {
	return c.verifier
}

// Close releases background resources.
func (c *Client) Close() {
	c.verifier.Close()
}

// OnAuthStateChange registers listener. The returned subscription is safe
// to call more than once.
func (c *Client) OnAuthStateChange(listener auth.AuthStateListener) auth.Subscription {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	c.listenersMu.Unlock()

	return auth.SubscriptionFunc(func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	})
}

// GetSession returns the current session, refreshing it when it is about
// to expire. A rejected refresh clears the session and emits SIGNED_OUT.
func (c *Client) GetSession(ctx context.Context) (*auth.ProviderSession, error) {
	session, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	if !session.Expired(c.cfg.Clock.Now(), c.cfg.RefreshMargin) {
		return session, nil
	}

	refreshed, err := c.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		if goerrors.IsAuth(err) {
			c.cfg.Logger.Info("refresh token rejected, signing out", "error", err)
			if err := c.setSession(ctx, nil); err != nil {
				return nil, err
			}
			c.emit(auth.EventSignedOut, nil)
			return nil, nil
		}
		return nil, err
	}
	return refreshed, nil
}

// SignInWithPassword exchanges credentials for a session and emits SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.ProviderSession, error) {
	body := map[string]string{"email": email, "password": password}

	var session auth.ProviderSession
	if err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"password"}}, "", body, &session); err != nil {
		return nil, err
	}
	c.fillExpiry(&session)

	if err := c.setSession(ctx, &session); err != nil {
		return nil, err
	}
	c.emit(auth.EventSignedIn, &session)
	return &session, nil
}

// SignUpResult is either a live session (auto confirmed projects) or a user
// awaiting email confirmation.
type SignUpResult struct {
	Session *auth.ProviderSession
	User    *auth.ProviderUser
}

// NeedsConfirmation reports whether the user must confirm their email first.
func (r SignUpResult) NeedsConfirmation() bool {
	return r.Session == nil
}

// SignUp registers a user. When the project auto confirms, the returned
// session is stored and SIGNED_IN is emitted.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (SignUpResult, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/signup", nil, "", body, &raw); err != nil {
		return SignUpResult{}, err
	}

	var session auth.ProviderSession
	if err := json.Unmarshal(raw, &session); err == nil && session.AccessToken != "" {
		c.fillExpiry(&session)
		if err := c.setSession(ctx, &session); err != nil {
			return SignUpResult{}, err
		}
		c.emit(auth.EventSignedIn, &session)
		return SignUpResult{Session: &session, User: session.User}, nil
	}

	var user auth.ProviderUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return SignUpResult{}, goerrors.Wrap(err, goerrors.CategoryExternal, "decode signup response").
			WithTextCode(TextCodeProviderFailure)
	}
	return SignUpResult{User: &user}, nil
}

// GetUser loads the user behind accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*auth.ProviderUser, error) {
	if accessToken == "" {
		return nil, auth.ErrUnableToFindSession.Clone()
	}
	var user auth.ProviderUser
	if err := c.do(ctx, http.MethodGet, "/user", nil, accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RefreshSession trades refreshToken for a new session, stores it and
// emits TOKEN_REFRESHED.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*auth.ProviderSession, error) {
	session, err := c.exchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if err := c.setSession(ctx, session); err != nil {
		return nil, err
	}
	c.emit(auth.EventTokenRefreshed, session)
	return session, nil
}

// SignOut revokes the session remotely when possible. The local session is
// always cleared and SIGNED_OUT is always emitted.
func (c *Client) SignOut(ctx context.Context) error {
	session, err := c.current(ctx)
	if err != nil {
		c.cfg.Logger.Warn("failed to read session before sign out", "error", err)
	}

	var remoteErr error
	if session != nil && session.AccessToken != "" {
		remoteErr = c.do(ctx, http.MethodPost, "/logout", nil, session.AccessToken, nil, nil)
		if remoteErr != nil {
			c.cfg.Logger.Warn("remote sign out failed", "error", remoteErr)
		}
	}

	clearErr := c.setSession(ctx, nil)
	c.emit(auth.EventSignedOut, nil)

	if clearErr != nil {
		return clearErr
	}
	// an already revoked token is as good as a successful sign out
	if remoteErr != nil && !goerrors.IsAuth(remoteErr) {
		return remoteErr
	}
	return nil
}

func (c *Client) exchangeRefreshToken(ctx context.Context, refreshToken string) (*auth.ProviderSession, error) {
	if refreshToken == "" {
		return nil, auth.ErrUnableToFindSession.Clone().WithMetadata(map[string]any{
			"reason": "missing refresh token",
		})
	}

	body := map[string]string{"refresh_token": refreshToken}
	var session auth.ProviderSession
	if err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}}, "", body, &session); err != nil {
		return nil, err
	}
	c.fillExpiry(&session)
	return &session, nil
}

func (c *Client) current(ctx context.Context) (*auth.ProviderSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.session, nil
	}

	raw, err := c.cfg.Storage.Load(ctx, c.cfg.StorageKey)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "load provider session").
			WithTextCode(auth.TextCodeStorageFailure)
	}
	c.loaded = true
	if len(raw) == 0 {
		return nil, nil
	}

	var session auth.ProviderSession
	if err := json.Unmarshal(raw, &session); err != nil || session.AccessToken == "" {
		c.cfg.Logger.Warn("discarding unreadable provider session", "error", err)
		return nil, nil
	}
	c.session = &session
	return c.session, nil
}

func (c *Client) setSession(ctx context.Context, session *auth.ProviderSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
	c.loaded = true

	if session == nil {
		if err := c.cfg.Storage.Delete(ctx, c.cfg.StorageKey); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "delete provider session").
				WithTextCode(auth.TextCodeStorageFailure)
		}
		return nil
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "encode provider session")
	}
	if err := c.cfg.Storage.Save(ctx, c.cfg.StorageKey, raw); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "save provider session").
			WithTextCode(auth.TextCodeStorageFailure)
	}
	return nil
}

func (c *Client) emit(event auth.AuthEvent, session *auth.ProviderSession) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.listenersMu.Lock()
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	c.listenersMu.Unlock()

	change := auth.AuthStateChange{Event: event, Session: session}
	slices.Sort(ids)
	for _, id := range ids {
		c.listenersMu.Lock()
		listener, ok := c.listeners[id]
		c.listenersMu.Unlock()
		if !ok || listener == nil {
			continue
		}
		listener(change)
	}
}

func (c *Client) fillExpiry(session *auth.ProviderSession) {
	if session.ExpiresAt != 0 {
		return
	}
	if session.ExpiresIn > 0 {
		session.ExpiresAt = c.cfg.Clock.Now().Unix() + session.ExpiresIn
		return
	}
	session.ExpiresAt = unverifiedExpiry(session.AccessToken)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body, out any) error {
	endpoint := c.cfg.endpoint(path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "build auth request")
	}
	bearer := token
	if bearer == "" {
		bearer = c.cfg.APIKey
	}
	req.Header.Set("apikey", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.cfg.Logger.Debug("auth request", "method", method, "path", path)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "auth service unreachable").
			WithTextCode(auth.TextCodeSessionUnavailable).
			WithMetadata(map[string]any{"path": path})
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return c.responseError(resp, path)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "decode auth response").
			WithTextCode(TextCodeProviderFailure).
			WithMetadata(map[string]any{"path": path})
	}
	return nil
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorCode        string `json:"error_code"`
}

func (b errorBody) message() string {
	for _, m := range []string{b.ErrorDescription, b.Msg, b.Message, b.Error} {
		if strings.TrimSpace(m) != "" {
			return m
		}
	}
	return ""
}

func (c *Client) responseError(resp *http.Response, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorBody
	_ = json.Unmarshal(raw, &body)

	msg := body.message()
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	category := goerrors.CategoryExternal
	textCode := TextCodeProviderFailure
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		category = goerrors.CategoryAuth
		textCode = TextCodeProviderRejected
	case http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
	}

	c.cfg.Logger.Debug("auth service error", "path", path, "status", resp.StatusCode, "body", print.MaybePrettyJSON(body))

	return goerrors.New(msg, category).
		WithCode(resp.StatusCode).
		WithTextCode(textCode).
		WithMetadata(map[string]any{
			"path":       path,
			"error_code": body.ErrorCode,
		})
}
