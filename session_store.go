package auth

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// SessionSnapshot is a point in time copy of the SessionStore state.
type SessionSnapshot struct {
	IsAuthenticated          bool
	User                     *User
	AccessToken              string
	RawSession               *ProviderSession
	IsInitialized            bool
	Profile                  Profile
	OnboardingStep           int
	OnboardingCompleted      bool
	PendingVerificationEmail string
}

func (s SessionSnapshot) clone() SessionSnapshot {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	if s.Profile.Interests != nil {
		s.Profile.Interests = append([]string(nil), s.Profile.Interests...)
	}
	return s
}

type persistedSession struct {
	IsAuthenticated bool             `json:"isAuthenticated"`
	User            *User            `json:"user"`
	AccessToken     string           `json:"accessToken,omitempty"`
	Session         *ProviderSession `json:"session"`
}

type persistedProfile struct {
	Profile                  Profile `json:"profile"`
	OnboardingStep           int     `json:"onboardingStep"`
	OnboardingCompleted      bool    `json:"onboardingCompleted"`
	PendingVerificationEmail string  `json:"pendingVerificationEmail,omitempty"`
}

// SignOuter revokes the remote session.
type SignOuter interface {
	SignOut(ctx context.Context) error
}

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

// WithSignOuter sets the remote sign out used by Logout.
func WithSignOuter(s SignOuter) StoreOption {
	return func(st *SessionStore) {
		st.signer = s
	}
}

// WithStoreLogger sets the store logger.
func WithStoreLogger(l Logger) StoreOption {
	return func(st *SessionStore) {
		st.logger = l
	}
}

// SessionStore holds the session, profile and pending verification state.
// It is safe for concurrent use; mutations are last-write-wins and every
// mutation is written through to Storage. Subscribers receive snapshots in
// mutation order.
type SessionStore struct {
	mu        sync.RWMutex
	notifyMu  sync.Mutex
	state     SessionSnapshot
	storage   Storage
	signer    SignOuter
	logger    Logger
	listeners map[int]func(SessionSnapshot)
	nextID    int
}

// NewSessionStore creates an empty store backed by storage. Call Hydrate to
// load persisted state.
func NewSessionStore(storage Storage, opts ...StoreOption) *SessionStore {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	s := &SessionStore{
		storage:   storage,
		listeners: map[int]func(SessionSnapshot){},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = normalizeLogger(s.logger)
	return s
}

// Hydrate restores the persisted subset of fields. IsInitialized is left
// untouched.
func (s *SessionStore) Hydrate(ctx context.Context) error {
	var ps persistedSession
	found, err := s.load(ctx, StorageKeySession, &ps)
	if err != nil {
		return err
	}

	var pp persistedProfile
	foundProfile, err := s.load(ctx, StorageKeyProfile, &pp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if found {
		if ps.IsAuthenticated && (ps.User == nil || ps.AccessToken == "") {
			s.logger.Warn("discarding inconsistent persisted session", "key", StorageKeySession)
			ps = persistedSession{}
		}
		s.state.IsAuthenticated = ps.IsAuthenticated
		s.state.User = ps.User
		s.state.AccessToken = ps.AccessToken
		s.state.RawSession = ps.Session
	}
	if foundProfile {
		s.state.Profile = pp.Profile
		s.state.OnboardingStep = pp.OnboardingStep
		s.state.OnboardingCompleted = pp.OnboardingCompleted
		s.state.PendingVerificationEmail = pp.PendingVerificationEmail
	}
	snap := s.state.clone()
	s.unlockAndNotify(snap)
	return nil
}

func (s *SessionStore) load(ctx context.Context, key string, target any) (bool, error) {
	raw, err := s.storage.Load(ctx, key)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load persisted state").
			WithTextCode(TextCodeStorageFailure).
			WithMetadata(map[string]any{"key": key})
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		s.logger.Warn("ignoring unreadable persisted state", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// Snapshot returns a copy of the current state.
func (s *SessionStore) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// AccessToken returns the current bearer token or "".
func (s *SessionStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken
}

// IsAuthenticated reports the auth flag.
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// IsInitialized reports whether the first provider sync happened.
func (s *SessionStore) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsInitialized
}

// PendingVerificationEmail returns the email awaiting confirmation or "".
func (s *SessionStore) PendingVerificationEmail() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.PendingVerificationEmail
}

// Login overwrites the authenticated fields. Profile and onboarding fields
// are not touched.
func (s *SessionStore) Login(ctx context.Context, user *User, token string, session *ProviderSession) error {
	if user == nil || token == "" {
		return ErrInvalidLogin.Clone()
	}
	u := *user
	return s.update(ctx, func(st *SessionSnapshot) {
		st.IsAuthenticated = true
		st.User = &u
		st.AccessToken = token
		st.RawSession = session
	})
}

// Logout revokes the remote session when a SignOuter is configured and then
// resets local state. Remote failures are logged, local reset always happens.
func (s *SessionStore) Logout(ctx context.Context) {
	if s.signer != nil {
		if err := s.signer.SignOut(ctx); err != nil {
			s.logger.Error("remote sign out failed", "error", err)
		}
	}
	if err := s.Reset(ctx); err != nil {
		s.logger.Error("failed to persist logout", "error", err)
	}
}

// Reset clears auth, profile, onboarding and pending verification fields in
// one update. IsInitialized is kept.
func (s *SessionStore) Reset(ctx context.Context) error {
	return s.update(ctx, func(st *SessionSnapshot) {
		*st = SessionSnapshot{IsInitialized: st.IsInitialized}
	})
}

// UpdateProfile shallow merges update into the profile.
func (s *SessionStore) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	return s.update(ctx, func(st *SessionSnapshot) {
		st.Profile = st.Profile.merge(update)
	})
}

// SetOnboarding records onboarding progress.
func (s *SessionStore) SetOnboarding(ctx context.Context, step int, completed bool) error {
	return s.update(ctx, func(st *SessionSnapshot) {
		st.OnboardingStep = step
		st.OnboardingCompleted = completed
	})
}

// SetPendingVerification records an email awaiting confirmation.
func (s *SessionStore) SetPendingVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	return s.update(ctx, func(st *SessionSnapshot) {
		st.PendingVerificationEmail = email
	})
}

// ClearPendingVerification drops the pending verification email.
func (s *SessionStore) ClearPendingVerification(ctx context.Context) error {
	return s.update(ctx, func(st *SessionSnapshot) {
		st.PendingVerificationEmail = ""
	})
}

// Subscribe registers fn to receive a snapshot after every mutation. The
// returned function removes it. fn runs synchronously and must not mutate
// the store.
func (s *SessionStore) Subscribe(fn func(SessionSnapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// setSession marks the store authenticated. When confirmedEmail matches the
// pending verification email it is cleared in the same update and verified
// is true.
func (s *SessionStore) setSession(ctx context.Context, user *User, token string, raw *ProviderSession, confirmedEmail string) (verified bool, err error) {
	confirmedEmail = strings.TrimSpace(confirmedEmail)
	err = s.update(ctx, func(st *SessionSnapshot) {
		st.IsAuthenticated = true
		st.User = user
		st.AccessToken = token
		st.RawSession = raw
		st.IsInitialized = true

		pending := strings.TrimSpace(st.PendingVerificationEmail)
		if confirmedEmail != "" && pending != "" && strings.EqualFold(pending, confirmedEmail) {
			st.PendingVerificationEmail = ""
			verified = true
		}
	})
	return verified, err
}

func (s *SessionStore) clearSession(ctx context.Context) error {
	return s.update(ctx, func(st *SessionSnapshot) {
		st.IsAuthenticated = false
		st.User = nil
		st.AccessToken = ""
		st.RawSession = nil
		st.IsInitialized = true
	})
}

// signOut clears everything but keeps the store initialized.
func (s *SessionStore) signOut(ctx context.Context) error {
	return s.update(ctx, func(st *SessionSnapshot) {
		*st = SessionSnapshot{IsInitialized: true}
	})
}

// update applies fn and persists under the write lock so the stored order
// matches the in-memory order.
func (s *SessionStore) update(ctx context.Context, fn func(*SessionSnapshot)) error {
	s.mu.Lock()
	fn(&s.state)
	snap := s.state.clone()
	err := s.persist(ctx, snap)
	s.unlockAndNotify(snap)
	return err
}

func (s *SessionStore) persist(ctx context.Context, snap SessionSnapshot) error {
	sess, err := json.Marshal(persistedSession{
		IsAuthenticated: snap.IsAuthenticated,
		User:            snap.User,
		AccessToken:     snap.AccessToken,
		Session:         snap.RawSession,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session state")
	}

	prof, err := json.Marshal(persistedProfile{
		Profile:                  snap.Profile,
		OnboardingStep:           snap.OnboardingStep,
		OnboardingCompleted:      snap.OnboardingCompleted,
		PendingVerificationEmail: snap.PendingVerificationEmail,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode profile state")
	}

	if err := s.storage.Save(ctx, StorageKeySession, sess); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session state").
			WithTextCode(TextCodeStorageFailure)
	}
	if err := s.storage.Save(ctx, StorageKeyProfile, prof); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist profile state").
			WithTextCode(TextCodeStorageFailure)
	}
	return nil
}

// unlockAndNotify must be called with s.mu held. notifyMu is taken before
// s.mu is released so deliveries keep the mutation order.
func (s *SessionStore) unlockAndNotify(snap SessionSnapshot) {
	fns := make([]func(SessionSnapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap.clone())
	}
}
