package release

import (
	"context"
	"fmt"
	"time"

	"proslots/pkg/logger"
)

// Scheduler enqueues and cancels release jobs. The job id is the booking
// id, so scheduling twice keeps a single job at the latest due time.
type Scheduler struct {
	queue Queue
	log   *logger.Logger
	now   func() time.Time
}

func NewScheduler(queue Queue, log *logger.Logger) *Scheduler {
	return &Scheduler{
		queue: queue,
		log:   log,
		now:   time.Now,
	}
}

// Schedule enqueues the release of bookingID at runAt. A runAt in the past
// makes the job due immediately.
func (s *Scheduler) Schedule(ctx context.Context, bookingID string, runAt time.Time) error {
	if bookingID == "" {
		return fmt.Errorf("%w: empty booking id", ErrInvalidJob)
	}

	now := s.now()
	delay := max(0, runAt.Sub(now))
	if err := s.queue.Enqueue(ctx, bookingID, now.Add(delay)); err != nil {
		return err
	}

	s.log.Info("Slot release scheduled", "job_id", bookingID, "run_at", runAt, "delay", delay)
	return nil
}

func (s *Scheduler) Cancel(ctx context.Context, bookingID string) error {
	if err := s.queue.Remove(ctx, bookingID); err != nil {
		return err
	}
	s.log.Info("Slot release cancelled", "job_id", bookingID)
	return nil
}
