package release

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	job      Job
	state    jobState
	deadline time.Time // due time when scheduled, lease end when active, burial time when dead
}

type jobState int

const (
	stateScheduled jobState = iota
	stateActive
	stateDead
)

// MemoryQueue is an in-process Queue with the same state machine as the
// Redis queue. Jobs do not survive a restart.
type MemoryQueue struct {
	mu     sync.Mutex
	jobs   map[string]*memoryEntry
	closed bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(map[string]*memoryEntry)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, bookingID string, runAt time.Time) error {
	if bookingID == "" {
		return ErrInvalidJob
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	q.jobs[bookingID] = &memoryEntry{
		job:      Job{BookingID: bookingID, RunAt: runAt},
		state:    stateScheduled,
		deadline: runAt,
	}
	return nil
}

func (q *MemoryQueue) Remove(ctx context.Context, bookingID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	delete(q.jobs, bookingID)
	return nil
}

func (q *MemoryQueue) Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	var due []*memoryEntry
	for _, e := range q.jobs {
		if e.state == stateActive && !e.deadline.After(now) {
			e.state = stateScheduled
			e.deadline = now
		}
		if e.state == stateScheduled && !e.deadline.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].job.BookingID < due[j].job.BookingID
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	jobs := make([]Job, 0, len(due))
	for _, e := range due {
		e.state = stateActive
		e.deadline = now.Add(lease)
		e.job.Attempts++
		jobs = append(jobs, e.job)
	}
	return jobs, nil
}

func (q *MemoryQueue) Complete(ctx context.Context, bookingID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if e, ok := q.jobs[bookingID]; ok && e.state == stateActive {
		delete(q.jobs, bookingID)
	}
	return nil
}

func (q *MemoryQueue) Retry(ctx context.Context, bookingID string, runAt time.Time, cause string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if e, ok := q.jobs[bookingID]; ok && e.state == stateActive {
		e.state = stateScheduled
		e.deadline = runAt
		e.job.LastError = cause
	}
	return nil
}

func (q *MemoryQueue) Bury(ctx context.Context, bookingID string, cause string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if e, ok := q.jobs[bookingID]; ok && e.state == stateActive {
		e.state = stateDead
		e.deadline = time.Now()
		e.job.LastError = cause
	}
	return nil
}

func (q *MemoryQueue) IsScheduled(ctx context.Context, bookingID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false, ErrQueueClosed
	}
	e, ok := q.jobs[bookingID]
	return ok && e.state != stateDead, nil
}

func (q *MemoryQueue) Dead(ctx context.Context, limit int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	var dead []*memoryEntry
	for _, e := range q.jobs {
		if e.state == stateDead {
			dead = append(dead, e)
		}
	}
	sort.Slice(dead, func(i, j int) bool { return dead[i].deadline.Before(dead[j].deadline) })
	if limit > 0 && len(dead) > limit {
		dead = dead[:limit]
	}

	jobs := make([]Job, 0, len(dead))
	for _, e := range dead {
		jobs = append(jobs, e.job)
	}
	return jobs, nil
}

// Len counts jobs in every state.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// DueAt returns the scheduled due time of a job.
func (q *MemoryQueue) DueAt(bookingID string) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.jobs[bookingID]
	if !ok || e.state != stateScheduled {
		return time.Time{}, false
	}
	return e.deadline, true
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
