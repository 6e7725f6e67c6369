package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/goliatone/go-auth-gate"
	"github.com/stretchr/testify/mock"
)

// fakeProvider is an in-memory auth.Provider that delivers events
// synchronously in registration order.
type fakeProvider struct {
	mu        sync.Mutex
	session   *auth.ProviderSession
	err       error
	listeners map[int]auth.AuthStateListener
	nextID    int
	signOuts  int

	// beforeGetSession runs at the start of GetSession, outside the lock.
	beforeGetSession func()
}

func newFakeProvider(session *auth.ProviderSession) *fakeProvider {
	return &fakeProvider{
		session:   session,
		listeners: map[int]auth.AuthStateListener{},
	}
}

func (p *fakeProvider) GetSession(context.Context) (*auth.ProviderSession, error) {
	if p.beforeGetSession != nil {
		p.beforeGetSession()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, p.err
}

func (p *fakeProvider) OnAuthStateChange(listener auth.AuthStateListener) auth.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	return auth.SubscriptionFunc(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	})
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.signOuts++
	p.session = nil
	p.mu.Unlock()
	p.emit(auth.EventSignedOut, nil)
	return nil
}

func (p *fakeProvider) emit(event auth.AuthEvent, session *auth.ProviderSession) {
	p.mu.Lock()
	ids := make([]int, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]auth.AuthStateListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, p.listeners[id])
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(auth.AuthStateChange{Event: event, Session: session})
	}
}

func (p *fakeProvider) active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

type mockSignOuter struct {
	mock.Mock
}

func (m *mockSignOuter) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// failingStorage fails every write.
type failingStorage struct {
	*auth.MemoryStorage
}

func (failingStorage) Save(context.Context, string, []byte) error {
	return errors.New("disk full")
}

// profileLog records the onboarding step of every profile write in order.
type profileLog struct {
	*auth.MemoryStorage

	mu    sync.Mutex
	steps []int
}

func (l *profileLog) Save(ctx context.Context, key string, value []byte) error {
	if key == auth.StorageKeyProfile {
		var doc struct {
			OnboardingStep int `json:"onboardingStep"`
		}
		if err := json.Unmarshal(value, &doc); err != nil {
			return err
		}
		l.mu.Lock()
		l.steps = append(l.steps, doc.OnboardingStep)
		l.mu.Unlock()
	}
	return l.MemoryStorage.Save(ctx, key, value)
}

func (l *profileLog) written() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.steps...)
}

// recordingNavigator collects navigations.
type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}
