// Package activitymap turns session activity events into a flat record
// suitable for audit logs and event sinks.
package activitymap

import (
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-auth-gate"
)

// MetadataKeyEmail stores the email of the user behind the event.
const MetadataKeyEmail = "email"

const (
	defaultChannel    = "session"
	defaultObjectType = "user"
	defaultActorID    = "anonymous"
)

// Record is the normalized activity shape.
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization.
type Option func(*options)

type options struct {
	channel       string
	objectType    string
	actorFallback string
	now           func() time.Time
}

// WithChannel overrides the default "session" channel.
func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType overrides the default "user" object type.
func WithObjectType(objectType string) Option {
	return func(o *options) {
		o.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor used for events without a user.
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		o.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithNow sets the time source for events without a timestamp.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Normalize converts event into a Record. Event metadata is copied, never
// shared.
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	o := options{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	userID := strings.TrimSpace(event.UserID)
	actorID := userID
	if actorID == "" {
		actorID = o.actorFallback
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now()
	}

	return Record{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: o.objectType,
		ObjectID:   userID,
		Channel:    o.channel,
		Metadata:   metadata(event),
		OccurredAt: occurredAt.UTC(),
	}
}

func metadata(event auth.ActivityEvent) map[string]any {
	var out map[string]any
	if len(event.Metadata) > 0 {
		out = maps.Clone(event.Metadata)
	}
	if email := strings.TrimSpace(event.Email); email != "" {
		if out == nil {
			out = map[string]any{}
		}
		if _, exists := out[MetadataKeyEmail]; !exists {
			out[MetadataKeyEmail] = email
		}
	}
	return out
}
