package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultDisplayName is used when neither metadata nor email yield a name.
const DefaultDisplayName = "User"

// ProviderUser is the user record attached to a provider session.
type ProviderUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	Role             string         `json:"role,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
}

// UUID parses the provider user id.
func (u *ProviderUser) UUID() (uuid.UUID, error) {
	if u == nil {
		return uuid.Nil, ErrUnableToFindSession
	}
	return uuid.Parse(u.ID)
}

// EmailConfirmed reports whether the provider recorded an email confirmation.
func (u *ProviderUser) EmailConfirmed() bool {
	return u != nil && u.EmailConfirmedAt != nil && !u.EmailConfirmedAt.IsZero()
}

// DisplayName derives a human name from metadata, then the email local part,
// then DefaultDisplayName.
func (u *ProviderUser) DisplayName() string {
	if u == nil {
		return DefaultDisplayName
	}
	for _, key := range []string{"display_name", "full_name"} {
		if v, ok := u.UserMetadata[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if local, _, _ := strings.Cut(u.Email, "@"); local != "" {
		return local
	}
	return DefaultDisplayName
}

// ProviderSession is the token material issued by the auth provider.
type ProviderSession struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	TokenType    string        `json:"token_type,omitempty"`
	ExpiresIn    int64         `json:"expires_in,omitempty"`
	ExpiresAt    int64         `json:"expires_at,omitempty"`
	User         *ProviderUser `json:"user,omitempty"`
}

// Expired reports whether the session expires before now plus margin.
func (s *ProviderSession) Expired(now time.Time, margin time.Duration) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt == 0 {
		return false
	}
	return !now.Add(margin).Before(time.Unix(s.ExpiresAt, 0))
}

func (s ProviderSession) String() string {
	uid := "<nil>"
	if s.User != nil {
		uid = s.User.ID
	}
	return fmt.Sprintf("user=%s type=%s expires_at=%d", uid, s.TokenType, s.ExpiresAt)
}

// User is the identity kept by the SessionStore.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// UserFromProvider maps a provider user to a store user.
func UserFromProvider(u *ProviderUser) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName(),
	}
}

// SessionState is either Authenticated or SignedOut.
type SessionState interface {
	sessionState()
}

// Authenticated carries a present provider session.
type Authenticated struct {
	Session *ProviderSession
}

// SignedOut marks the absence of a session.
type SignedOut struct{}

func (Authenticated) sessionState() {}
func (SignedOut) sessionState()     {}

// StateOf wraps a possibly nil session in a SessionState. Sessions without
// an access token count as signed out.
func StateOf(s *ProviderSession) SessionState {
	if s == nil || s.AccessToken == "" {
		return SignedOut{}
	}
	return Authenticated{Session: s}
}

// Profile is the user profile kept alongside the session.
type Profile struct {
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	School    string   `json:"school,omitempty"`
	Grade     string   `json:"grade,omitempty"`
	AvatarURL string   `json:"avatarUrl,omitempty"`
	Bio       string   `json:"bio,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// ProfileUpdate is a partial Profile; nil fields are left untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	School    *string
	Grade     *string
	AvatarURL *string
	Bio       *string
	Interests []string
}

func (p Profile) merge(u ProfileUpdate) Profile {
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		p.LastName = *u.LastName
	}
	if u.School != nil {
		p.School = *u.School
	}
	if u.Grade != nil {
		p.Grade = *u.Grade
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	if u.Interests != nil {
		p.Interests = append([]string(nil), u.Interests...)
	}
	return p
}
