package release

import (
	"context"
	"fmt"
	"time"

	"proslots/internal/events"
	"proslots/pkg/logger"
	"proslots/pkg/model"
)

// SweepResult counts what one reconciliation pass did.
type SweepResult struct {
	Scanned   int `json:"scanned"`
	Released  int `json:"released"`
	Requeued  int `json:"requeued"`
	Untouched int `json:"untouched"`
	Failed    int `json:"failed"`
}

// Reconciler brings the queue back in line with the booking store. Every
// booking with a release job id is either released now, re-enqueued or left
// alone, so running it twice changes nothing.
type Reconciler struct {
	bookings  BookingStore
	queue     Queue
	scheduler *Scheduler
	releaser  *Releaser
	log       *logger.Logger
	now       func() time.Time
}

func NewReconciler(bookings BookingStore, queue Queue, scheduler *Scheduler, releaser *Releaser, log *logger.Logger) *Reconciler {
	return &Reconciler{
		bookings:  bookings,
		queue:     queue,
		scheduler: scheduler,
		releaser:  releaser,
		log:       log,
		now:       time.Now,
	}
}

// Resync walks every outstanding release. A failure on one booking is
// logged and counted and does not stop the sweep.
func (r *Reconciler) Resync(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	start := time.Now()

	err := r.bookings.ForEachOutstandingRelease(ctx, func(booking *model.Booking) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Scanned++

		action, err := r.reconcile(ctx, booking)
		if err != nil {
			result.Failed++
			r.log.Error("Failed to reconcile slot release", "booking_id", booking.ID, "error", err)
			return nil
		}

		switch action {
		case actionReleased:
			result.Released++
		case actionRequeued:
			result.Requeued++
		default:
			result.Untouched++
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("slot release sweep aborted: %w", err)
	}

	r.log.Info("Slot release sweep finished",
		"scanned", result.Scanned,
		"released", result.Released,
		"requeued", result.Requeued,
		"untouched", result.Untouched,
		"failed", result.Failed,
		"duration", time.Since(start),
	)
	return result, nil
}

type sweepAction int

const (
	actionUntouched sweepAction = iota
	actionReleased
	actionRequeued
)

func (r *Reconciler) reconcile(ctx context.Context, booking *model.Booking) (sweepAction, error) {
	// A cancel or reject that stopped before clearing the job id.
	if booking.Status.EndsReservation() {
		reason := events.ReasonCancelled
		if booking.Status == model.BookingRejected {
			reason = events.ReasonRejected
		}
		return actionReleased, r.releaseNow(ctx, booking.ID, reason)
	}

	if booking.SlotReleaseAt == nil || !booking.SlotReleaseAt.After(r.now()) {
		return actionReleased, r.releaseNow(ctx, booking.ID, events.ReasonElapsed)
	}

	scheduled, err := r.queue.IsScheduled(ctx, booking.ID)
	if err != nil {
		return actionUntouched, err
	}
	if scheduled {
		return actionUntouched, nil
	}

	if err := r.scheduler.Schedule(ctx, booking.ID, *booking.SlotReleaseAt); err != nil {
		return actionUntouched, err
	}
	return actionRequeued, nil
}

// releaseNow frees the slots, then drops any job still queued for them.
func (r *Reconciler) releaseNow(ctx context.Context, bookingID, reason string) error {
	if err := r.releaser.free(ctx, bookingID, reason); err != nil {
		return err
	}
	return r.queue.Remove(ctx, bookingID)
}
