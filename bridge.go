package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultRedirectDelay is the wait before navigating home after a
	// confirmed email sign in.
	DefaultRedirectDelay = 1500 * time.Millisecond
	// DefaultHomePath is the navigation target after verification.
	DefaultHomePath = "/"
)

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithNavigator sets the full page navigator used after verification.
func WithNavigator(n Navigator) BridgeOption {
	return func(b *Bridge) {
		b.navigator = n
	}
}

// WithBridgeClock overrides the clock used for the verification redirect.
func WithBridgeClock(c clockwork.Clock) BridgeOption {
	return func(b *Bridge) {
		b.clock = c
	}
}

// WithRedirectDelay overrides DefaultRedirectDelay.
func WithRedirectDelay(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		b.redirectDelay = d
	}
}

// WithHomePath overrides DefaultHomePath.
func WithHomePath(path string) BridgeOption {
	return func(b *Bridge) {
		b.homePath = path
	}
}

// WithBridgeLogger sets the bridge logger.
func WithBridgeLogger(l Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithActivitySink sets the sink receiving session activity events.
func WithActivitySink(s ActivitySink) BridgeOption {
	return func(b *Bridge) {
		b.activity = s
	}
}

// Bridge mirrors provider auth state into a SessionStore. It owns at most
// one provider subscription at a time.
type Bridge struct {
	provider      Provider
	store         *SessionStore
	navigator     Navigator
	clock         clockwork.Clock
	logger        Logger
	activity      ActivitySink
	redirectDelay time.Duration
	homePath      string

	initMu   sync.Mutex
	mu       sync.Mutex
	ctx      context.Context
	sub      Subscription
	redirect clockwork.Timer
	// bumped by Initialize and Close; a subscription made under an older
	// generation is dropped
	gen uint64
}

// NewBridge wires provider events into store.
func NewBridge(provider Provider, store *SessionStore, opts ...BridgeOption) (*Bridge, error) {
	if provider == nil {
		return nil, goerrors.New("bridge requires an auth provider", goerrors.CategoryBadInput)
	}
	if store == nil {
		return nil, goerrors.New("bridge requires a session store", goerrors.CategoryBadInput)
	}

	b := &Bridge{
		provider:      provider,
		store:         store,
		redirectDelay: DefaultRedirectDelay,
		homePath:      DefaultHomePath,
		ctx:           context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.clock == nil {
		b.clock = clockwork.NewRealClock()
	}
	b.logger = normalizeLogger(b.logger)
	b.activity = normalizeActivitySink(b.activity)
	if b.navigator == nil {
		b.navigator = NavigatorFunc(func(path string) {
			b.logger.Warn("no navigator configured, dropping navigation", "path", path)
		})
	}
	return b, nil
}

// Initialize tears down any previous subscription, synchronizes the store
// with the current provider session and subscribes to future changes.
// Provider failures are treated as signed out; the store always ends up
// initialized.
func (b *Bridge) Initialize(ctx context.Context) {
	b.initMu.Lock()
	defer b.initMu.Unlock()

	b.mu.Lock()
	if b.sub != nil {
		b.sub.Unsubscribe()
		b.sub = nil
	}
	b.ctx = context.WithoutCancel(ctx)
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	session, err := b.provider.GetSession(ctx)
	if err != nil {
		b.logger.Warn("initial session lookup failed, treating as signed out", "error", err)
		b.record(ctx, ActivityEventSessionUnavailable, nil, map[string]any{"error": err.Error()})
		session = nil
	}

	if _, err := b.sync(ctx, StateOf(session), ""); err != nil {
		b.logger.Error("failed to persist initial session", "error", err)
	}

	sub := b.provider.OnAuthStateChange(b.handle)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen {
		b.logger.Debug("bridge closed during initialize, dropping subscription")
		sub.Unsubscribe()
		return
	}
	b.sub = sub
}

// Close removes the provider subscription and cancels a pending
// verification redirect.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
	if b.sub != nil {
		b.sub.Unsubscribe()
		b.sub = nil
	}
	if b.redirect != nil {
		b.redirect.Stop()
		b.redirect = nil
	}
}

func (b *Bridge) handle(change AuthStateChange) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("auth state listener panic", "event", change.Event, "panic", r)
		}
	}()

	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()

	b.logger.Debug("auth state change", "event", change.Event, "user", userDump(change.Session))

	// every event mutates the store exactly once
	switch change.Event {
	case EventSignedOut:
		if err := b.store.signOut(ctx); err != nil {
			b.logger.Error("failed to persist logout reset", "error", err)
		}
		b.record(ctx, ActivityEventSignedOut, nil, nil)
	case EventSignedIn:
		verified, err := b.sync(ctx, change.State(), confirmedEmail(change.Session))
		if err != nil {
			b.logger.Error("failed to persist session change", "event", change.Event, "error", err)
		}
		b.record(ctx, ActivityEventSignedIn, change.Session, nil)
		if verified {
			b.completeVerification(ctx, change.Session)
		}
	default:
		if _, err := b.sync(ctx, change.State(), ""); err != nil {
			b.logger.Error("failed to persist session change", "event", change.Event, "error", err)
		}
		if change.Event == EventTokenRefreshed {
			b.record(ctx, ActivityEventTokenRefreshed, change.Session, nil)
		}
	}
}

// sync mirrors state into the store. A non empty confirmed email clears a
// matching pending verification in the same update.
func (b *Bridge) sync(ctx context.Context, state SessionState, confirmed string) (bool, error) {
	switch st := state.(type) {
	case Authenticated:
		user := UserFromProvider(st.Session.User)
		if user == nil {
			user = &User{DisplayName: DefaultDisplayName}
		}
		return b.store.setSession(ctx, user, st.Session.AccessToken, st.Session, confirmed)
	default:
		return false, b.store.clearSession(ctx)
	}
}

func confirmedEmail(session *ProviderSession) string {
	if session == nil || !session.User.EmailConfirmed() {
		return ""
	}
	return strings.TrimSpace(session.User.Email)
}

func (b *Bridge) completeVerification(ctx context.Context, session *ProviderSession) {
	b.record(ctx, ActivityEventVerificationCompleted, session, nil)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.redirect != nil {
		b.redirect.Stop()
	}
	home := b.homePath
	b.redirect = b.clock.AfterFunc(b.redirectDelay, func() {
		b.navigator.Navigate(home)
	})
}

func (b *Bridge) record(ctx context.Context, kind ActivityEventType, session *ProviderSession, meta map[string]any) {
	evt := ActivityEvent{
		EventType:  kind,
		Metadata:   meta,
		OccurredAt: b.clock.Now(),
	}
	if session != nil && session.User != nil {
		evt.UserID = session.User.ID
		evt.Email = session.User.Email
	}
	if err := b.activity.Record(ctx, evt); err != nil {
		b.logger.Error("activity sink failed", "event", kind, "error", err)
	}
}

func userDump(session *ProviderSession) string {
	if session == nil || session.User == nil {
		return "<nil>"
	}
	return print.MaybePrettyJSON(UserFromProvider(session.User))
}
