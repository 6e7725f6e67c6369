package auth_test

import (
	"errors"
	"testing"

	"github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingConfig(t *testing.T) {
	err := auth.MissingConfig("AUTH_URL", "AUTH_ANON_KEY")

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)
	assert.Equal(t, auth.TextCodeConfigMissing, richErr.TextCode)
	assert.Equal(t, []string{"AUTH_URL", "AUTH_ANON_KEY"}, richErr.Metadata["keys"])

	assert.Empty(t, auth.ErrMissingConfig.Metadata, "the sentinel is never mutated")
}

func TestIsTokenExpiredError(t *testing.T) {
	assert.False(t, auth.IsTokenExpiredError(nil))
	assert.True(t, auth.IsTokenExpiredError(auth.ErrTokenExpired))
	assert.True(t, auth.IsTokenExpiredError(auth.ErrTokenExpired.Clone().WithMetadata(map[string]any{"provider": "gotrue"})))
	assert.True(t, auth.IsTokenExpiredError(errors.New("token has invalid claims: token is expired")))
	assert.False(t, auth.IsTokenExpiredError(auth.ErrTokenMalformed))
}

func TestIsMalformedError(t *testing.T) {
	assert.False(t, auth.IsMalformedError(nil))
	assert.True(t, auth.IsMalformedError(auth.ErrTokenMalformed))
	assert.True(t, auth.IsMalformedError(errors.New("token is malformed: bad segment")))
	assert.False(t, auth.IsMalformedError(auth.ErrTokenExpired))
}

func TestSessionErrorsAreAuthCategory(t *testing.T) {
	for _, err := range []error{
		auth.ErrUnableToFindSession,
		auth.ErrUnableToDecodeSession,
		auth.ErrTokenExpired,
		auth.ErrTokenMalformed,
	} {
		assert.True(t, goerrors.IsAuth(err), err.Error())
	}
	assert.True(t, goerrors.IsCategory(auth.ErrSessionUnavailable, goerrors.CategoryExternal))
	assert.True(t, goerrors.IsValidation(auth.ErrInvalidLogin))
}
