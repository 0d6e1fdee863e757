// Package release frees reserved slots once an appointment has ended. Jobs
// live in a durable delayed queue keyed by booking id; a worker pool claims
// due jobs and a startup sweep repairs whatever the queue lost.
package release

import (
	"context"
	"errors"
	"time"
)

var (
	ErrQueueClosed = errors.New("release queue is closed")

	// ErrInvalidJob marks a job that can never succeed. The worker buries it
	// without retrying.
	ErrInvalidJob = errors.New("invalid release job")
)

// Job is a slot release owed to one booking. The booking id is both the job
// id and the only payload; everything else is re-read when the job runs.
type Job struct {
	BookingID string    `json:"booking_id"`
	RunAt     time.Time `json:"run_at"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

// Queue is a durable priority queue ordered by due time. A job is in at most
// one of three states: scheduled, active (claimed under a lease) or dead.
type Queue interface {
	// Enqueue schedules the job at runAt, replacing any existing entry for
	// the booking in any state and resetting its attempts.
	Enqueue(ctx context.Context, bookingID string, runAt time.Time) error
	// Remove drops the job from every state. Removing a missing job is a no-op.
	Remove(ctx context.Context, bookingID string) error
	// Claim moves up to limit due jobs to active with a lease until
	// now+lease and increments their attempts. Active jobs whose lease has
	// expired are rescheduled first.
	Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Job, error)
	// Complete deletes an active job. A job that was re-enqueued or removed
	// since it was claimed is left alone.
	Complete(ctx context.Context, bookingID string) error
	// Retry moves an active job back to scheduled at runAt.
	Retry(ctx context.Context, bookingID string, runAt time.Time, cause string) error
	// Bury moves an active job to the dead set.
	Bury(ctx context.Context, bookingID string, cause string) error
	// IsScheduled reports whether the job is scheduled or active. Dead jobs
	// do not count.
	IsScheduled(ctx context.Context, bookingID string) (bool, error)
	// Dead lists buried jobs, oldest first.
	Dead(ctx context.Context, limit int) ([]Job, error)
	Close() error
}
