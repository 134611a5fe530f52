package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"socialhub/internal/events"
	"socialhub/internal/repository"
)

type ActivityStore interface {
	TouchActivity(ctx context.Context, id int64, at time.Time) error
	DeactivateDormant(ctx context.Context, before time.Time) (int64, error)
}

// Processor applies auth events to the user store: lifecycle events bump
// last_activity, sweep events deactivate dormant accounts.
type Processor struct {
	store        ActivityStore
	dormantAfter time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

func NewProcessor(store ActivityStore, dormantAfter time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		store:        store,
		dormantAfter: dormantAfter,
		now:          time.Now,
		logger:       logger,
	}
}

// Handle returns an error only for failures worth retrying. Malformed entries
// and events for users that no longer exist are dropped.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	event, err := events.Parse(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed event")
		return nil
	}

	switch event.Type {
	case events.TypeRegistered, events.TypeLoggedIn, events.TypeLoggedOut:
		return p.handleActivity(ctx, event)
	case events.TypeAccountSweep:
		return p.handleSweep(ctx)
	default:
		p.logger.Warn().Str("type", string(event.Type)).Msg("unknown event type")
		return nil
	}
}

func (p *Processor) handleActivity(ctx context.Context, event events.Event) error {
	if event.UserID == 0 {
		p.logger.Warn().Str("event_id", event.ID).Msg("activity event without user")
		return nil
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = p.now().UTC()
	}

	err := p.store.TouchActivity(ctx, event.UserID, at)
	if errors.Is(err, repository.ErrUserNotFound) {
		p.logger.Debug().Int64("user_id", event.UserID).Msg("activity for missing user ignored")
		return nil
	}
	return err
}

func (p *Processor) handleSweep(ctx context.Context) error {
	if p.dormantAfter <= 0 {
		return nil
	}

	before := p.now().Add(-p.dormantAfter)
	n, err := p.store.DeactivateDormant(ctx, before)
	if err != nil {
		return err
	}
	p.logger.Info().Int64("deactivated", n).Time("before", before).Msg("dormant account sweep finished")
	return nil
}
