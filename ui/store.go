// Package ui holds ephemeral UI state: auto expiring notifications, loading
// flags and modals. Nothing here is persisted.
package ui

import (
	"maps"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/jonboulle/clockwork"
)

// DefaultNotificationTTL is how long a notification stays before it is
// removed automatically.
const DefaultNotificationTTL = 5000 * time.Millisecond

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock driving notification expiry.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithNode sets the snowflake node id. Stores sharing ids across processes
// need distinct nodes.
func WithNode(node int64) Option {
	return func(s *Store) {
		s.nodeID = node
	}
}

// WithTTL overrides DefaultNotificationTTL.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		s.ttl = d
	}
}

// WithLogger sets the store logger.
func WithLogger(l auth.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Store is the UI state holder. It is safe for concurrent use.
type Store struct {
	clock  clockwork.Clock
	nodeID int64
	node   *snowflake.Node
	ttl    time.Duration
	logger auth.Logger

	mu            sync.Mutex
	notifications []Notification
	timers        map[string]clockwork.Timer
	loading       map[string]bool
	modals        map[string]ModalState
}

// NewStore creates an empty store.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{
		ttl:     DefaultNotificationTTL,
		timers:  map[string]clockwork.Timer{},
		loading: map[string]bool{},
		modals:  map[string]ModalState{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = auth.NopLogger()
	}

	node, err := snowflake.NewNode(s.nodeID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid notification node").
			WithMetadata(map[string]any{"node": s.nodeID})
	}
	s.node = node
	return s, nil
}

// AddNotification assigns n a fresh id and timestamp, appends it and
// schedules its removal after the store TTL.
func (s *Store) AddNotification(n Notification) Notification {
	n.ID = s.node.Generate().String()
	n.Timestamp = s.clock.Now()
	if n.Type == "" {
		n.Type = NotificationInfo
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = append(s.notifications, n)
	id := n.ID
	s.timers[id] = s.clock.AfterFunc(s.ttl, func() {
		s.expire(id)
	})

	s.logger.Debug("notification added", "id", id, "type", n.Type)
	return n
}

// RemoveNotification removes id and cancels its expiry. Unknown ids are
// ignored.
func (s *Store) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.remove(id)
}

// Notifications returns the current notifications, oldest first.
func (s *Store) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.notifications...)
}

// SetLoading sets one loading flag.
func (s *Store) SetLoading(key string, busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading[key] = busy
}

// IsLoading reports the flag for key; unset keys are false.
func (s *Store) IsLoading(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading[key]
}

// Loading returns a copy of all loading flags.
func (s *Store) Loading() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.loading)
}

// Close cancels pending expiries and drops all notifications.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.notifications = nil
}

func (s *Store) expire(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// removed early; the timer lost the race with Stop
	if _, ok := s.timers[id]; !ok {
		return
	}
	delete(s.timers, id)
	s.remove(id)
	s.logger.Debug("notification expired", "id", id)
}

func (s *Store) remove(id string) {
	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}
