package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Job is one query running on its own goroutine. Done delivers exactly one
// Outcome unless the job is cancelled first, in which case it delivers none.
type Job struct {
	cancel   context.CancelFunc
	done     chan Outcome
	finished chan struct{}
	state    atomic.Int32

	mu        sync.Mutex
	cancelled bool
	err       error
}

// Start launches a query against engine. The job stops when ctx is done or
// Cancel is called, whichever happens first.
func Start(ctx context.Context, engine *Engine, input string) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		cancel:   cancel,
		done:     make(chan Outcome, 1),
		finished: make(chan struct{}),
	}
	go j.run(ctx, engine, input)
	return j
}

func (j *Job) run(ctx context.Context, engine *Engine, input string) {
	defer close(j.finished)
	defer close(j.done)
	defer j.cancel()

	out, err := engine.run(ctx, input, func(s State) { j.state.Store(int32(s)) })

	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.cancelled:
		j.state.Store(int32(StateCancelled))
	case err != nil:
		j.err = err
		if errors.Is(err, ErrCancelled) {
			j.state.Store(int32(StateCancelled))
		}
	default:
		j.done <- out
	}
}

// Done yields the outcome and is closed when the job ends. A cancelled job
// closes it without sending.
func (j *Job) Done() <-chan Outcome {
	return j.done
}

// Cancel abandons the query. Any outcome not yet received is discarded.
// Calling it more than once, or after the job ended, is harmless.
func (j *Job) Cancel() {
	j.mu.Lock()
	if !j.cancelled {
		j.cancelled = true
		select {
		case <-j.done:
		default:
		}
	}
	j.mu.Unlock()
	j.cancel()
}

// Wait blocks until the job's goroutine has exited.
func (j *Job) Wait() {
	<-j.finished
}

// State is the stage the job is in right now.
func (j *Job) State() State {
	return State(j.state.Load())
}

// Err is the reason a job ended without an outcome. It is nil while running
// and after a successful run, and nil after Cancel.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}
