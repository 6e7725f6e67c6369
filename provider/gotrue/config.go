package gotrue

import (
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-auth-gate"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultCookieName is the session cookie written by the browser client.
	DefaultCookieName = "sb-auth-token"

	// DefaultRefreshMargin refreshes sessions this close to expiry.
	DefaultRefreshMargin = 60 * time.Second

	// DefaultCookieMaxAge matches the browser client's 400 day cookie.
	DefaultCookieMaxAge = 400 * 24 * time.Hour
)

// Config holds the auth service connection settings.
type Config struct {
	// BaseURL is the project URL (e.g. "https://xyz.supabase.co").
	// The client appends /auth/v1.
	BaseURL string

	// APIKey is the public anon key sent as the apikey header.
	APIKey string

	// JWTSecret verifies HS256 access tokens locally (optional).
	JWTSecret string

	// JWTSecretKID registers JWTSecret under a key id as well (optional).
	JWTSecretKID string

	// JWKSURL verifies asymmetric access tokens (optional).
	JWKSURL string

	// CookieName is the base session cookie name.
	// Default: "sb-auth-token".
	CookieName string

	// CookiePath defaults to "/".
	CookiePath string

	// CookieMaxAge defaults to DefaultCookieMaxAge.
	CookieMaxAge time.Duration

	// SecureCookies sets the Secure attribute on written cookies.
	SecureCookies bool

	// RefreshMargin defaults to DefaultRefreshMargin.
	RefreshMargin time.Duration

	// StorageKey is where the client persists its session.
	// Default: CookieName.
	StorageKey string

	// Storage persists the client session between runs.
	// Default: in memory.
	Storage auth.Storage

	HTTPClient *http.Client
	Logger     auth.Logger
	Clock      clockwork.Clock
}

// ConfigFromEnv maps the process configuration onto a provider Config.
func ConfigFromEnv(cfg auth.Config) Config {
	return Config{
		BaseURL:    cfg.AuthURL,
		APIKey:     cfg.AuthAnonKey,
		JWTSecret:  cfg.AuthJWTSecret,
		JWKSURL:    cfg.AuthJWKSURL,
		CookieName: cfg.AuthCookieName,
	}
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.BaseURL), "/")
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.CookiePath == "" {
		c.CookiePath = "/"
	}
	if c.CookieMaxAge == 0 {
		c.CookieMaxAge = DefaultCookieMaxAge
	}
	if c.RefreshMargin == 0 {
		c.RefreshMargin = DefaultRefreshMargin
	}
	if c.StorageKey == "" {
		c.StorageKey = c.CookieName
	}
	if c.Storage == nil {
		c.Storage = auth.NewMemoryStorage()
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = auth.DefaultLogger()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return c
}

func (c Config) validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "AUTH_URL")
	}
	if c.APIKey == "" {
		missing = append(missing, "AUTH_ANON_KEY")
	}
	if len(missing) > 0 {
		return auth.MissingConfig(missing...)
	}
	return nil
}

func (c Config) endpoint(path string) string {
	return c.BaseURL + "/auth/v1" + path
}

func (c Config) codec() CookieCodec {
	return CookieCodec{
		Name:     c.CookieName,
		Path:     c.CookiePath,
		MaxAge:   c.CookieMaxAge,
		Secure:   c.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
