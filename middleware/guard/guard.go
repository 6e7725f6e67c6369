package guard

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-auth-gate"
)

// DefaultExclude matches framework static internals, the favicon and images.
var DefaultExclude = regexp.MustCompile(`^/(_next/static|_next/image)(/|$)|^/favicon\.ico$|\.(svg|png|jpg|jpeg|gif|webp)$`)

// DefaultPublicPaths are reachable without a session and redirect home
// when a session exists.
var DefaultPublicPaths = []string{
	"/login",
	"/signup",
	"/forgot-password",
	"/reset-password",
	"/verify-email",
}

// SessionResolver resolves the caller's session from request cookies.
// A nil session with a nil error means signed out.
type SessionResolver interface {
	ResolveSession(ctx context.Context, jar auth.CookieJar) (*auth.ProviderSession, error)
}

// SessionResolverFunc adapts a function to SessionResolver.
type SessionResolverFunc func(ctx context.Context, jar auth.CookieJar) (*auth.ProviderSession, error)

// ResolveSession implements SessionResolver.
func (f SessionResolverFunc) ResolveSession(ctx context.Context, jar auth.CookieJar) (*auth.ProviderSession, error) {
	return f(ctx, jar)
}

// Config defines the config for the guard middleware.
type Config struct {
	// Filter skips the guard when it returns true.
	Filter func(*fiber.Ctx) bool

	// Resolver is required.
	Resolver SessionResolver

	PublicPaths []string
	LoginPath   string
	HomePath    string
	APIPrefix   string
	Exclude     *regexp.Regexp

	// ContextKey is the fiber Locals key holding the resolved session.
	ContextKey string

	// RejectedRouteCookie, when set, remembers the URL that triggered a
	// login redirect for RejectedRouteTTL.
	RejectedRouteCookie string
	RejectedRouteTTL    time.Duration

	Logger auth.Logger
}

// GetDefaultConfig fills unset fields. It panics without a Resolver.
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Resolver == nil {
		panic("GATE: guard middleware configuration: Resolver is required.")
	}

	if cfg.PublicPaths == nil {
		cfg.PublicPaths = append([]string(nil), DefaultPublicPaths...)
	}

	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}

	if cfg.HomePath == "" {
		cfg.HomePath = auth.DefaultHomePath
	}

	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/"
	}

	if cfg.Exclude == nil {
		cfg.Exclude = DefaultExclude
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "session"
	}

	if cfg.RejectedRouteTTL == 0 {
		cfg.RejectedRouteTTL = 5 * time.Minute
	}

	if cfg.Logger == nil {
		cfg.Logger = auth.DefaultLogger()
	}

	return cfg
}

// New returns the route guard middleware.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		path := c.Path()
		if cfg.IsExcluded(path) || cfg.IsAPI(path) {
			return c.Next()
		}

		session, err := cfg.Resolver.ResolveSession(c.UserContext(), NewJar(c))
		if err != nil {
			cfg.Logger.Warn("session resolution failed, treating as signed out", "path", path, "error", err)
			session = nil
		}

		decision := Decide(path, session != nil, cfg)
		cfg.Logger.Debug("guard decision", "path", path, "action", decision.Action, "reason", decision.Reason)

		if decision.Action == ActionRedirect {
			if decision.Reason == ReasonLoginRequired && cfg.RejectedRouteCookie != "" {
				setRejectedRoute(c, cfg)
			}
			return c.Redirect(decision.Location, fiber.StatusFound)
		}

		if session != nil {
			c.Locals(cfg.ContextKey, session)
			c.SetUserContext(auth.WithSessionContext(c.UserContext(), session))
		}
		return c.Next()
	}
}

// GetSession returns the session the guard stored under key.
func GetSession(c *fiber.Ctx, key string) (*auth.ProviderSession, error) {
	raw := c.Locals(key)
	if raw == nil {
		return nil, auth.ErrUnableToFindSession
	}
	session, ok := raw.(*auth.ProviderSession)
	if !ok || session == nil {
		return nil, auth.ErrUnableToDecodeSession
	}
	return session, nil
}

// PopRejectedRoute returns the remembered route, or def, and deletes the
// cookie.
func PopRejectedRoute(c *fiber.Ctx, cookieName, def string) string {
	r := strings.Clone(c.Cookies(cookieName))
	if r == "" {
		return def
	}
	c.Cookie(&fiber.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
	})
	// only same origin paths
	if !strings.HasPrefix(r, "/") || strings.HasPrefix(r, "//") {
		return def
	}
	return r
}

func setRejectedRoute(c *fiber.Ctx, cfg Config) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.RejectedRouteCookie,
		Value:    c.OriginalURL(),
		Path:     "/",
		Expires:  time.Now().Add(cfg.RejectedRouteTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
