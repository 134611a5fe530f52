package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	e := New(TypeLoggedIn, 42)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, TypeLoggedIn, e.Type)
	assert.Equal(t, int64(42), e.UserID)
	assert.WithinDuration(t, time.Now(), e.OccurredAt, time.Second)

	other := New(TypeLoggedIn, 42)
	assert.NotEqual(t, e.ID, other.ID)
}

func TestEventValues(t *testing.T) {
	at := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	e := Event{ID: "evt", Type: TypeLoggedOut, UserID: 7, OccurredAt: at}

	values := e.Values()
	assert.Equal(t, "evt", values["id"])
	assert.Equal(t, "auth.logout", values["type"])
	assert.Equal(t, "7", values["user_id"])

	parsed, err := time.Parse(time.RFC3339Nano, values["occurred_at"].(string))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(at))
}

func TestNilPublishersAreNoops(t *testing.T) {
	var p *RedisPublisher
	assert.NoError(t, p.Publish(context.Background(), New(TypeRegistered, 1)))
	assert.NoError(t, Discard{}.Publish(context.Background(), New(TypeRegistered, 1)))
}

func TestParseRoundTrip(t *testing.T) {
	e := New(TypeRegistered, 99)

	parsed, err := Parse(e.Values())
	require.NoError(t, err)
	assert.Equal(t, e.ID, parsed.ID)
	assert.Equal(t, e.Type, parsed.Type)
	assert.Equal(t, e.UserID, parsed.UserID)
	assert.True(t, e.OccurredAt.Equal(parsed.OccurredAt))
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []map[string]any{
		{},
		{"type": "auth.login", "user_id": "abc"},
		{"type": "auth.login", "occurred_at": "yesterday"},
	}
	for _, values := range tests {
		_, err := Parse(values)
		assert.ErrorIs(t, err, ErrMalformedEvent)
	}

	e, err := Parse(map[string]any{"type": string(TypeAccountSweep)})
	require.NoError(t, err)
	assert.Zero(t, e.UserID)
}
