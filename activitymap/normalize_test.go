package activitymap_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-auth-gate"
	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-auth-gate/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventVerificationCompleted,
		UserID:     "user-100",
		Email:      "ada@example.com",
		Metadata:   map[string]any{"source": "email-link"},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "user-100", out.ActorID)
	assert.Equal(t, "session.verification_completed", out.Verb)
	assert.Equal(t, "user", out.ObjectType)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "session", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))
	assert.Equal(t, time.UTC, out.OccurredAt.Location())
	assert.Equal(t, map[string]any{"source": "email-link", "email": "ada@example.com"}, out.Metadata)

	out.Metadata["source"] = "changed"
	assert.Equal(t, "email-link", event.Metadata["source"])
}

func TestNormalizeAnonymousEvent(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	out := activitymap.Normalize(
		auth.ActivityEvent{EventType: auth.ActivityEventSessionUnavailable},
		activitymap.WithNow(func() time.Time { return now }),
		activitymap.WithChannel("gate"),
	)

	assert.Equal(t, "anonymous", out.ActorID)
	assert.Empty(t, out.ObjectID)
	assert.Equal(t, "gate", out.Channel)
	assert.Equal(t, now, out.OccurredAt)
	assert.Nil(t, out.Metadata)
}

func TestNormalizeOptions(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(
		auth.ActivityEvent{EventType: auth.ActivityEventSignedOut, Metadata: map[string]any{"email": "kept@example.com"}, Email: "other@example.com"},
		activitymap.WithActorFallback("system"),
		activitymap.WithObjectType("account"),
		nil,
	)

	assert.Equal(t, "system", out.ActorID)
	assert.Equal(t, "account", out.ObjectType)
	assert.Equal(t, "kept@example.com", out.Metadata[activitymap.MetadataKeyEmail])
}
