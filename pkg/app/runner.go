package app

import (
	"context"
	"errors"
	"sync"

	"proslots/pkg/logger"
)

// LoopRunner adapts a blocking loop such as a Kafka consumer to
// contracts.Runner. run must return once ctx is cancelled.
type LoopRunner struct {
	name string
	run  func(ctx context.Context) error
	log  *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLoopRunner(name string, run func(ctx context.Context) error, log *logger.Logger) *LoopRunner {
	return &LoopRunner{
		name: name,
		run:  run,
		log:  log,
	}
}

func (r *LoopRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return errors.New(r.name + " already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := r.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("Background runner exited", "runner", r.name, "error", err)
		}
	}(r.done)
	return nil
}

func (r *LoopRunner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
