package release

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"proslots/pkg/config"
	"proslots/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// JobHandler runs one release job.
type JobHandler func(ctx context.Context, bookingID string) error

// Worker polls the queue for due jobs and runs them with bounded
// parallelism. Failed jobs are retried with exponential backoff until
// MaxAttempts, then buried.
type Worker struct {
	queue  Queue
	handle JobHandler
	cfg    config.ReleaseConfig
	log    *logger.Logger
	now    func() time.Time

	// onRecover runs on the first successful claim after the queue failed.
	onRecover func(ctx context.Context)
	degraded  atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(queue Queue, handle JobHandler, cfg config.ReleaseConfig, log *logger.Logger) *Worker {
	return &Worker{
		queue:  queue,
		handle: handle,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Start launches the poll loop. It returns at once; Stop ends the loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return errors.New("release worker already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(ctx, w.done)

	w.log.Info("Release worker started",
		"concurrency", w.cfg.Concurrency,
		"poll_interval", w.cfg.PollInterval,
		"max_attempts", w.cfg.MaxAttempts,
	)
	return nil
}

// Stop cancels the loop and waits for in-flight jobs. Jobs interrupted by
// the cancellation are picked up again once their lease expires.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.log.Info("Release worker stopped")
}

func (w *Worker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Drain without waiting while full batches keep coming.
		for {
			n, err := w.RunOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					w.log.Error("Failed to claim release jobs", "error", err)
				}
				break
			}
			if n < w.batchSize() {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) batchSize() int {
	if w.cfg.BatchSize > 0 {
		return w.cfg.BatchSize
	}
	return max(1, w.cfg.Concurrency)
}

// markDegraded records that the queue missed a write or a claim.
func (w *Worker) markDegraded() {
	w.degraded.Store(true)
}

// RunOnce claims one batch of due jobs, runs it and returns the number of
// jobs claimed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.queue.Claim(ctx, w.now(), w.cfg.LeaseTimeout, w.batchSize())
	if err != nil {
		w.markDegraded()
		return 0, err
	}
	if w.degraded.CompareAndSwap(true, false) && w.onRecover != nil {
		w.onRecover(ctx)
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	var g errgroup.Group
	g.SetLimit(max(1, w.cfg.Concurrency))
	for _, job := range jobs {
		g.Go(func() error {
			w.process(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return len(jobs), nil
}

func (w *Worker) process(ctx context.Context, job Job) {
	log := w.log.With("job_id", job.BookingID, "attempt", job.Attempts)

	err := w.run(ctx, job)
	if err == nil {
		if err := w.queue.Complete(ctx, job.BookingID); err != nil {
			log.Error("Failed to complete release job", "error", err)
		}
		return
	}

	if ctx.Err() != nil {
		log.Warn("Release job interrupted by shutdown", "error", err)
		return
	}

	if errors.Is(err, ErrInvalidJob) || job.Attempts >= w.cfg.MaxAttempts {
		if buryErr := w.queue.Bury(ctx, job.BookingID, err.Error()); buryErr != nil {
			log.Error("Failed to bury release job", "error", buryErr, "cause", err)
			return
		}
		log.Error("Release job moved to dead set", "error", err)
		return
	}

	delay := Backoff(job.Attempts, w.cfg.BackoffBase, w.cfg.BackoffMax)
	if retryErr := w.queue.Retry(ctx, job.BookingID, w.now().Add(delay), err.Error()); retryErr != nil {
		log.Error("Failed to reschedule release job", "error", retryErr, "cause", err)
		return
	}
	log.Warn("Release job failed, retrying", "error", err, "retry_in", delay)
}

func (w *Worker) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("release job panicked: %v", rec)
		}
	}()
	return w.handle(ctx, job.BookingID)
}
