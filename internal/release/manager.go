package release

import (
	"context"
	"errors"
	"sync"
	"time"

	"proslots/internal/events"
	"proslots/pkg/config"
	"proslots/pkg/logger"
)

// Manager is the release subsystem as seen by the rest of the service. A
// disabled manager accepts every call and does nothing, so bookings keep
// working without a queue store; slots are then only freed by cancel or
// reject.
type Manager struct {
	enabled    bool
	queue      Queue
	scheduler  *Scheduler
	releaser   *Releaser
	reconciler *Reconciler
	worker     *Worker
	log        *logger.Logger

	sweepOnce sync.Once
	sweep     SweepResult
	sweepErr  error
}

func NewManager(
	queue Queue,
	bookings BookingStore,
	slots SlotReleaser,
	publisher events.Publisher,
	cfg config.ReleaseConfig,
	loc *time.Location,
	log *logger.Logger,
) *Manager {
	log = log.Component("slot_release")
	scheduler := NewScheduler(queue, log)
	releaser := NewReleaser(bookings, slots, publisher, loc, log)

	m := &Manager{
		enabled:    true,
		queue:      queue,
		scheduler:  scheduler,
		releaser:   releaser,
		reconciler: NewReconciler(bookings, queue, scheduler, releaser, log),
		worker:     NewWorker(queue, releaser.FreeSlotsForBooking, cfg, log),
		log:        log,
	}
	m.worker.onRecover = m.resweep
	return m
}

// NewManagerFromConfig builds a Redis backed manager when the release queue
// is configured and a disabled one otherwise. An unreachable Redis still
// gets a Redis backed manager: its calls fail, bookings keep their job ids,
// and the worker sweeps again once Redis answers.
func NewManagerFromConfig(cfg *config.Config, bookings BookingStore, slots SlotReleaser, publisher events.Publisher) *Manager {
	if cfg.Client.Redis == nil {
		return NewDisabledManager(cfg.Log)
	}
	queue := NewRedisQueue(cfg.Client.Redis, cfg.Release.QueuePrefix)
	return NewManager(queue, bookings, slots, publisher, cfg.Release, cfg.Location, cfg.Log)
}

func NewDisabledManager(log *logger.Logger) *Manager {
	log = log.Component("slot_release")
	log.Warn("Slot release queue not configured, automatic slot release is disabled")
	return &Manager{log: log}
}

func (m *Manager) Enabled() bool {
	return m.enabled
}

func (m *Manager) ScheduleSlotRelease(ctx context.Context, bookingID string, runAt time.Time) error {
	if !m.enabled {
		return nil
	}
	if err := m.scheduler.Schedule(ctx, bookingID, runAt); err != nil {
		if !errors.Is(err, ErrInvalidJob) {
			m.worker.markDegraded()
		}
		return err
	}
	return nil
}

func (m *Manager) CancelSlotRelease(ctx context.Context, bookingID string) error {
	if !m.enabled {
		return nil
	}
	return m.scheduler.Cancel(ctx, bookingID)
}

// FreeSlotsForBooking runs a release right away, outside the queue.
func (m *Manager) FreeSlotsForBooking(ctx context.Context, bookingID string) error {
	if !m.enabled {
		return nil
	}
	return m.releaser.FreeSlotsForBooking(ctx, bookingID)
}

// ResyncSlotReleaseJobs runs the reconciliation sweep. Only the first call
// does the work; later calls return its result.
func (m *Manager) ResyncSlotReleaseJobs(ctx context.Context) (SweepResult, error) {
	if !m.enabled {
		return SweepResult{}, nil
	}
	m.sweepOnce.Do(func() {
		m.sweep, m.sweepErr = m.reconciler.Resync(ctx)
	})
	return m.sweep, m.sweepErr
}

// Start runs the sweep if it has not run yet, then starts the worker. A
// sweep that failed is logged, and the worker runs it again once the queue
// answers a claim.
func (m *Manager) Start(ctx context.Context) error {
	if !m.enabled {
		return nil
	}
	result, err := m.ResyncSlotReleaseJobs(ctx)
	if err != nil {
		m.log.Error("Slot release sweep failed", "error", err)
	}
	if err != nil || result.Failed > 0 {
		m.worker.markDegraded()
	}
	return m.worker.Start(ctx)
}

// resweep repairs jobs that could not be written while the queue was down.
func (m *Manager) resweep(ctx context.Context) {
	m.log.Info("Release queue reachable again, resyncing slot release jobs")
	if _, err := m.reconciler.Resync(ctx); err != nil {
		m.log.Error("Slot release resync failed", "error", err)
	}
}

func (m *Manager) Stop() {
	if !m.enabled {
		return
	}
	m.worker.Stop()
}

func (m *Manager) DeadJobs(ctx context.Context, limit int) ([]Job, error) {
	if !m.enabled {
		return []Job{}, nil
	}
	return m.queue.Dead(ctx, limit)
}

func (m *Manager) Close() error {
	if !m.enabled {
		return nil
	}
	return m.queue.Close()
}
