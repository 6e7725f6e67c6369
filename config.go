package auth

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// DefaultAPIBaseURL is used when API_BASE_URL is not set.
const DefaultAPIBaseURL = "http://localhost:8000"

// Config holds the process configuration read from the environment.
type Config struct {
	AuthURL        string `env:"AUTH_URL"`
	AuthAnonKey    string `env:"AUTH_ANON_KEY"`
	AuthJWTSecret  string `env:"AUTH_JWT_SECRET"`
	AuthJWKSURL    string `env:"AUTH_JWKS_URL"`
	AuthCookieName string `env:"AUTH_COOKIE_NAME" envDefault:"sb-auth-token"`

	APIBaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8000"`

	Listen     string `env:"GATE_LISTEN" envDefault:":3000"`
	Upstream   string `env:"GATE_UPSTREAM" envDefault:"http://localhost:3001"`
	StorageDSN string `env:"GATE_STORAGE_DSN" envDefault:"file:gate.db?cache=shared"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV"`
}

// LoadConfig reads optional dotenv files and then parses the environment.
// Missing dotenv files are ignored.
func LoadConfig(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to read env file").
				WithMetadata(map[string]any{"file": file})
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "parse env")
	}
	return cfg, nil
}

// Validate reports missing provider settings as ErrMissingConfig and
// malformed values as validation errors.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.AuthURL) == "" {
		missing = append(missing, "AUTH_URL")
	}
	if strings.TrimSpace(c.AuthAnonKey) == "" {
		missing = append(missing, "AUTH_ANON_KEY")
	}
	if len(missing) > 0 {
		return MissingConfig(missing...)
	}

	err := validation.ValidateStruct(&c,
		validation.Field(&c.AuthURL, validation.Required, is.URL),
		validation.Field(&c.AuthJWKSURL, is.URL),
		validation.Field(&c.APIBaseURL, validation.Required, is.URL),
		validation.Field(&c.Upstream, is.URL),
		validation.Field(&c.AuthCookieName, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration")
	}
	return nil
}
