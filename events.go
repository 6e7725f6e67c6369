package auth

// AuthEvent names a provider auth state transition.
type AuthEvent string

const (
	EventInitialSession   AuthEvent = "INITIAL_SESSION"
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated      AuthEvent = "USER_UPDATED"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// AuthStateChange is delivered to listeners registered on a Provider.
type AuthStateChange struct {
	Event   AuthEvent
	Session *ProviderSession
}

// State returns the change's session as a SessionState.
func (c AuthStateChange) State() SessionState {
	return StateOf(c.Session)
}

// AuthStateListener receives provider auth state changes in emission order.
type AuthStateListener func(change AuthStateChange)
