package auth_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/goliatone/go-auth-gate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderUser_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		user *auth.ProviderUser
		want string
	}{
		{name: "nil user", user: nil, want: auth.DefaultDisplayName},
		{
			name: "display name metadata wins",
			user: &auth.ProviderUser{Email: "ada@example.com", UserMetadata: map[string]any{"display_name": " Ada ", "full_name": "Ada Lovelace"}},
			want: "Ada",
		},
		{
			name: "full name metadata",
			user: &auth.ProviderUser{Email: "ada@example.com", UserMetadata: map[string]any{"full_name": "Ada Lovelace"}},
			want: "Ada Lovelace",
		},
		{name: "email local part", user: &auth.ProviderUser{Email: "ada@example.com"}, want: "ada"},
		{name: "nothing usable", user: &auth.ProviderUser{UserMetadata: map[string]any{"display_name": 7}}, want: auth.DefaultDisplayName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.DisplayName())
		})
	}
}

func TestProviderUser_UUIDAndConfirmation(t *testing.T) {
	id := uuid.New()
	user := &auth.ProviderUser{ID: id.String()}

	got, err := user.UUID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.False(t, user.EmailConfirmed())

	confirmed := time.Now()
	user.EmailConfirmedAt = &confirmed
	assert.True(t, user.EmailConfirmed())

	var missing *auth.ProviderUser
	_, err = missing.UUID()
	assert.Error(t, err)
	assert.False(t, missing.EmailConfirmed())
}

func TestProviderSession_Expired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	var none *auth.ProviderSession
	assert.True(t, none.Expired(now, 0))

	assert.False(t, (&auth.ProviderSession{}).Expired(now, time.Hour), "no expiry never expires")

	session := &auth.ProviderSession{ExpiresAt: now.Add(2 * time.Minute).Unix()}
	assert.False(t, session.Expired(now, time.Minute))
	assert.True(t, session.Expired(now, 2*time.Minute))
	assert.True(t, session.Expired(now.Add(3*time.Minute), 0))
}

func TestProviderSession_JSON(t *testing.T) {
	raw := `{"access_token":"a","refresh_token":"r","token_type":"bearer","expires_in":3600,"expires_at":1700003600,
		"user":{"id":"user-1","email":"ada@example.com","email_confirmed_at":"2024-01-02T03:04:05Z","user_metadata":{"full_name":"Ada"}}}`

	var session auth.ProviderSession
	require.NoError(t, json.Unmarshal([]byte(raw), &session))

	assert.Equal(t, "a", session.AccessToken)
	assert.Equal(t, int64(1700003600), session.ExpiresAt)
	require.NotNil(t, session.User)
	assert.True(t, session.User.EmailConfirmed())
	assert.Equal(t, "Ada", session.User.DisplayName())
	assert.Contains(t, session.String(), "user=user-1")
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, auth.SignedOut{}, auth.StateOf(nil))
	assert.Equal(t, auth.SignedOut{}, auth.StateOf(&auth.ProviderSession{}))

	session := &auth.ProviderSession{AccessToken: "tok"}
	assert.Equal(t, auth.Authenticated{Session: session}, auth.StateOf(session))
	assert.Equal(t, auth.SignedOut{}, auth.AuthStateChange{Event: auth.EventSignedOut}.State())
}

func TestUserFromProvider(t *testing.T) {
	assert.Nil(t, auth.UserFromProvider(nil))
	assert.Equal(t,
		&auth.User{ID: "user-1", Email: "ada@example.com", DisplayName: "ada"},
		auth.UserFromProvider(&auth.ProviderUser{ID: "user-1", Email: "ada@example.com"}),
	)
}
