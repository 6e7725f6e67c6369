package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeConfigMissing      = "CONFIG_MISSING"
	TextCodeSessionUnavailable = "SESSION_UNAVAILABLE"
	TextCodeInvalidLogin       = "INVALID_LOGIN_STATE"
	TextCodeStorageFailure     = "STORAGE_FAILURE"
)

// ErrMissingConfig is returned when a required environment value is absent.
var ErrMissingConfig = goerrors.New("required configuration value is missing", goerrors.CategoryValidation).
	WithTextCode(TextCodeConfigMissing)

// ErrSessionUnavailable is returned when the provider cannot resolve a session.
var ErrSessionUnavailable = goerrors.New("unable to resolve session", goerrors.CategoryExternal).
	WithTextCode(TextCodeSessionUnavailable)

// ErrUnableToFindSession is returned when the request carries no session cookie.
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeSessionNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession is returned when a session cookie cannot be decoded.
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeSessionDecodeError).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for access tokens past their expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for access tokens that fail parsing or signature checks.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidLogin is returned when Login is called without a user or token.
var ErrInvalidLogin = goerrors.New("login requires a user and an access token", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidLogin)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == goerrors.TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == goerrors.TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed")
}

// MissingConfig returns a config error naming the absent keys.
func MissingConfig(keys ...string) error {
	return ErrMissingConfig.Clone().WithMetadata(map[string]any{
		"keys": keys,
	})
}
