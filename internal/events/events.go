// Package events publishes auth lifecycle events onto a Redis stream that the
// worker consumes.
package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"socialhub/internal/ids"
)

type Type string

const (
	TypeRegistered   Type = "auth.register"
	TypeLoggedIn     Type = "auth.login"
	TypeLoggedOut    Type = "auth.logout"
	TypeAccountSweep Type = "accounts.sweep"
)

type Event struct {
	ID         string
	Type       Type
	UserID     int64
	OccurredAt time.Time
}

func New(t Type, userID int64) Event {
	return Event{
		ID:         ids.New(),
		Type:       t,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

// Values is the stream entry layout. The worker decodes the same keys.
func (e Event) Values() map[string]any {
	return map[string]any{
		"id":          e.ID,
		"type":        string(e.Type),
		"user_id":     strconv.FormatInt(e.UserID, 10),
		"occurred_at": e.OccurredAt.Format(time.RFC3339Nano),
	}
}

var ErrMalformedEvent = errors.New("malformed event")

// Parse decodes a stream entry written by Values. user_id may be absent for
// events that are not about a single user.
func Parse(values map[string]any) (Event, error) {
	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}

	e := Event{ID: str("id"), Type: Type(str("type"))}
	if e.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}

	if raw := str("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Event{}, fmt.Errorf("%w: user_id %q", ErrMalformedEvent, raw)
		}
		e.UserID = id
	}

	if raw := str("occurred_at"); raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Event{}, fmt.Errorf("%w: occurred_at %q", ErrMalformedEvent, raw)
		}
		e.OccurredAt = at
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: 100000}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.client == nil {
		return nil
	}
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: event.Values(),
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// Discard drops every event. Used when no Redis is configured.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
