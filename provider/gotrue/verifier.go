package gotrue

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-auth-gate"
	"github.com/jonboulle/clockwork"
)

// Claims are the access token claims issued by the auth service.
type Claims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email,omitempty"`
	Role         string         `json:"role,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	AAL          string         `json:"aal,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
}

// Verifier checks access token signatures locally, either with the shared
// HS256 secret or with keys from a JWKS endpoint.
type Verifier struct {
	jwks   *keyfunc.JWKS
	secret []byte
	clock  clockwork.Clock
	parser *jwt.Parser
}

// NewVerifier returns nil, nil when cfg carries neither a secret nor a JWKS URL.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	cfg = cfg.withDefaults()
	if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
		return nil, nil
	}

	v := &Verifier{clock: cfg.Clock}

	given := map[string]keyfunc.GivenKey{}
	if cfg.JWTSecret != "" {
		v.secret = []byte(cfg.JWTSecret)
		if cfg.JWTSecretKID != "" {
			given[cfg.JWTSecretKID] = keyfunc.NewGivenHMAC(v.secret, keyfunc.GivenKeyOptions{
				Algorithm: jwt.SigningMethodHS256.Alg(),
			})
		}
	}

	switch {
	case cfg.JWKSURL != "":
		logger := cfg.Logger
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			Ctx:               ctx,
			Client:            cfg.HTTPClient,
			GivenKeys:         given,
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				logger.Warn("jwks refresh failed", "url", cfg.JWKSURL, "error", err)
			},
		})
		if err != nil {
			return nil, auth.ErrSessionUnavailable.Clone().WithMetadata(map[string]any{
				"jwks_url": cfg.JWKSURL,
				"cause":    err.Error(),
			})
		}
		v.jwks = jwks
	case len(given) > 0:
		v.jwks = keyfunc.NewGiven(given)
	}

	v.parser = jwt.NewParser(
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	)
	return v, nil
}

// Verify parses and validates token, returning auth.ErrTokenExpired or
// auth.ErrTokenMalformed clones on failure.
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, v.keyFunc)
	if err != nil {
		return nil, normalizeValidationError(err)
	}
	if !parsed.Valid {
		return nil, auth.ErrTokenMalformed.Clone()
	}
	return claims, nil
}

// Close stops the JWKS background refresh, if any.
func (v *Verifier) Close() {
	if v != nil && v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// tokens minted by the auth service with the shared secret carry no kid
func (v *Verifier) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Header["kid"]; ok && v.jwks != nil {
		return v.jwks.Keyfunc(token)
	}
	if v.secret != nil {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
			return v.secret, nil
		}
	}
	if v.jwks != nil {
		return v.jwks.Keyfunc(token)
	}
	return nil, keyfunc.ErrKID
}

func normalizeValidationError(err error) error {
	if err == nil {
		return nil
	}

	clone := auth.ErrTokenMalformed.Clone()
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		clone = auth.ErrTokenExpired.Clone()
	}

	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"provider": "gotrue",
		"cause":    err.Error(),
	})
}

// unverifiedExpiry reads exp without checking the signature. It fills in
// sessions whose cookie predates expires_at.
func unverifiedExpiry(token string) int64 {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0
	}
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Unix()
}
