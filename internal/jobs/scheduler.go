package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"socialhub/internal/events"
)

// Scheduler enqueues periodic account maintenance onto the event stream; the
// worker does the actual work.
type Scheduler struct {
	cron      *cron.Cron
	publisher events.Publisher
	log       zerolog.Logger
}

func NewScheduler(publisher events.Publisher, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:      c,
		publisher: publisher,
		log:       log,
	}
}

// Start registers the dormant-account sweep on schedule, a six-field cron
// expression with seconds.
func (s *Scheduler) Start(sweepSchedule string) error {
	if s.publisher == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(sweepSchedule, s.enqueueSweep); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", sweepSchedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running job to finish or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) enqueueSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.publisher.Publish(ctx, events.New(events.TypeAccountSweep, 0)); err != nil {
		s.log.Error().Err(err).Msg("enqueue account sweep failed")
		return
	}
	s.log.Debug().Msg("account sweep enqueued")
}
