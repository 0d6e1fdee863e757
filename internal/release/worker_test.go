package release

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"proslots/pkg/config"
	"proslots/pkg/logger"
)

func testReleaseConfig() config.ReleaseConfig {
	return config.ReleaseConfig{
		Concurrency:  2,
		PollInterval: 10 * time.Millisecond,
		LeaseTimeout: time.Minute,
		MaxAttempts:  3,
		BackoffBase:  time.Second,
		BackoffMax:   time.Minute,
		BatchSize:    10,
	}
}

func newTestWorker(q Queue, handle JobHandler, clk *clock) *Worker {
	w := NewWorker(q, handle, testReleaseConfig(), logger.Discard())
	w.now = clk.Now
	return w
}

func TestWorker_RunOnceCompletesJobs(t *testing.T) {
	ctx := context.Background()
	clk := &clock{}
	clk.Set(time.Date(2025, 6, 2, 4, 30, 0, 0, time.UTC))
	q := NewMemoryQueue()

	var mu sync.Mutex
	var ran []string
	w := newTestWorker(q, func(ctx context.Context, id string) error {
		mu.Lock()
		defer mu.Unlock()
		ran = append(ran, id)
		return nil
	}, clk)

	_ = q.Enqueue(ctx, "due-1", clk.Now().Add(-time.Minute))
	_ = q.Enqueue(ctx, "due-2", clk.Now())
	_ = q.Enqueue(ctx, "later", clk.Now().Add(time.Second))

	n, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if n != 2 || len(ran) != 2 {
		t.Fatalf("RunOnce() = %d, ran %v, want the two due jobs", n, ran)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want only the later job left", q.Len())
	}
}

func TestWorker_RetriesWithBackoffThenBuries(t *testing.T) {
	ctx := context.Background()
	clk := &clock{}
	start := time.Date(2025, 6, 2, 4, 30, 0, 0, time.UTC)
	clk.Set(start)
	q := NewMemoryQueue()

	var calls atomic.Int32
	w := newTestWorker(q, func(ctx context.Context, id string) error {
		calls.Add(1)
		return errors.New("mongo unavailable")
	}, clk)

	_ = q.Enqueue(ctx, "b1", start)

	// Attempt 1 fails: retry after the base delay.
	if n, _ := w.RunOnce(ctx); n != 1 {
		t.Fatalf("attempt 1 claimed %d jobs", n)
	}
	due, ok := q.DueAt("b1")
	if !ok || !due.Equal(start.Add(time.Second)) {
		t.Fatalf("retry due = %v, %v, want %v", due, ok, start.Add(time.Second))
	}

	// Not claimable before the backoff elapses.
	if n, _ := w.RunOnce(ctx); n != 0 {
		t.Fatal("job claimed during backoff")
	}

	// Attempt 2 fails: delay doubles.
	clk.Set(due)
	if n, _ := w.RunOnce(ctx); n != 1 {
		t.Fatal("attempt 2 not claimed")
	}
	due, _ = q.DueAt("b1")
	if want := clk.Now().Add(2 * time.Second); !due.Equal(want) {
		t.Fatalf("retry due = %v, want %v", due, want)
	}

	// Attempt 3 reaches MaxAttempts: buried.
	clk.Set(due)
	if n, _ := w.RunOnce(ctx); n != 1 {
		t.Fatal("attempt 3 not claimed")
	}
	if ok, _ := q.IsScheduled(ctx, "b1"); ok {
		t.Error("exhausted job still scheduled")
	}
	dead, _ := q.Dead(ctx, 10)
	if len(dead) != 1 || dead[0].Attempts != 3 || dead[0].LastError != "mongo unavailable" {
		t.Errorf("dead = %+v", dead)
	}
	if calls.Load() != 3 {
		t.Errorf("handler called %d times, want 3", calls.Load())
	}
}

func TestWorker_BuriesInvalidJobAtOnce(t *testing.T) {
	ctx := context.Background()
	clk := &clock{}
	clk.Set(time.Date(2025, 6, 2, 4, 30, 0, 0, time.UTC))
	q := NewMemoryQueue()

	w := newTestWorker(q, func(ctx context.Context, id string) error {
		return fmt.Errorf("%w: bad preferred date", ErrInvalidJob)
	}, clk)

	_ = q.Enqueue(ctx, "b1", clk.Now())
	_, _ = w.RunOnce(ctx)

	dead, _ := q.Dead(ctx, 10)
	if len(dead) != 1 || dead[0].Attempts != 1 {
		t.Errorf("dead = %+v, want b1 after one attempt", dead)
	}
}

func TestWorker_RecoversPanics(t *testing.T) {
	ctx := context.Background()
	clk := &clock{}
	clk.Set(time.Date(2025, 6, 2, 4, 30, 0, 0, time.UTC))
	q := NewMemoryQueue()

	w := newTestWorker(q, func(ctx context.Context, id string) error {
		panic("nil template")
	}, clk)

	_ = q.Enqueue(ctx, "b1", clk.Now())
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	clk.Set(clk.Now().Add(time.Second))
	jobs, _ := q.Claim(ctx, clk.Now(), time.Minute, 1)
	if len(jobs) != 1 || !strings.Contains(jobs[0].LastError, "panicked") {
		t.Errorf("jobs = %+v, want a retried job recording the panic", jobs)
	}
}

func TestWorker_LeavesInterruptedJobLeased(t *testing.T) {
	clk := &clock{}
	clk.Set(time.Date(2025, 6, 2, 4, 30, 0, 0, time.UTC))
	q := NewMemoryQueue()

	ctx, cancel := context.WithCancel(context.Background())
	w := newTestWorker(q, func(ctx context.Context, id string) error {
		cancel()
		return ctx.Err()
	}, clk)

	_ = q.Enqueue(context.Background(), "b1", clk.Now())
	_, _ = w.RunOnce(ctx)

	bg := context.Background()
	if dead, _ := q.Dead(bg, 10); len(dead) != 0 {
		t.Fatalf("interrupted job buried: %+v", dead)
	}
	if jobs, _ := q.Claim(bg, clk.Now(), time.Minute, 1); len(jobs) != 0 {
		t.Fatal("interrupted job claimable before its lease expires")
	}
	jobs, _ := q.Claim(bg, clk.Now().Add(time.Minute), time.Minute, 1)
	if len(jobs) != 1 || jobs[0].Attempts != 2 {
		t.Errorf("jobs = %+v, want b1 back on attempt 2", jobs)
	}
}

func TestWorker_StartStop(t *testing.T) {
	q := NewMemoryQueue()
	ran := make(chan string, 1)
	w := NewWorker(q, func(ctx context.Context, id string) error {
		ran <- id
		return nil
	}, testReleaseConfig(), logger.Discard())

	_ = q.Enqueue(context.Background(), "b1", time.Now())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("second Start() error = nil")
	}

	select {
	case id := <-ran:
		if id != "b1" {
			t.Errorf("ran %q, want b1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not run the due job")
	}

	w.Stop()
	w.Stop()

	if err := w.Start(context.Background()); err != nil {
		t.Errorf("Start() after Stop() error = %v", err)
	}
	w.Stop()
}

func TestWorker_BatchSize(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ReleaseConfig
		want int
	}{
		{"explicit batch", config.ReleaseConfig{BatchSize: 25, Concurrency: 4}, 25},
		{"falls back to concurrency", config.ReleaseConfig{Concurrency: 4}, 4},
		{"at least one", config.ReleaseConfig{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorker(NewMemoryQueue(), nil, tt.cfg, logger.Discard())
			if got := w.batchSize(); got != tt.want {
				t.Errorf("batchSize() = %d, want %d", got, tt.want)
			}
		})
	}
}
