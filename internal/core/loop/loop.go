// Package loop provides the hub's single cooperative executor.
//
// All discovery bookkeeping (listener fan-out, the already-discovered set,
// platform records) is mutated only from jobs running on the loop, so none of
// it needs its own locking. Blocking work such as component setup runs as a
// task off the loop and hands its result back with Submit.
//
//	l := loop.New()
//	go l.Run(ctx)
//	l.Submit(func(ctx context.Context) { ... })
//
// Tests drive the loop deterministically with Drain instead of Run.
package loop

import (
	"context"
	"fmt"
	"sync"
)

// Job is a unit of work executed on the loop goroutine.
// Jobs must not block; use Go for anything that waits on I/O.
type Job func(ctx context.Context)

// Logger is the logging interface used by the loop.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Loop is a FIFO job executor with a single consumer.
//
// Thread Safety:
//   - Submit, Go, Call and Pending are safe for concurrent use.
//   - Run and Drain must not be active at the same time.
type Loop struct {
	mu      sync.Mutex
	queue   []Job
	tasks   int
	running bool
	stopped bool

	// wake is signalled whenever a job is queued or a task finishes.
	wake chan struct{}

	// stop is closed when Run returns; queued Calls then give up.
	stop     chan struct{}
	stopOnce sync.Once

	logger Logger
}

// New creates an idle loop. Call Run (or Drain in tests) to process jobs.
func New() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used to report recovered panics.
func (l *Loop) SetLogger(logger Logger) {
	l.logger = logger
}

// Submit queues a job for execution on the loop.
//
// The job never runs inline: even when called from the loop goroutine, it
// runs on a later iteration. Jobs submitted after Run has returned are dropped.
func (l *Loop) Submit(job Job) {
	if job == nil {
		return
	}
	l.enqueue(job)
}

func (l *Loop) enqueue(job Job) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, job)
	l.mu.Unlock()

	l.signal()
	return true
}

// Go runs task on its own goroutine, off the loop.
//
// Tasks are tracked so Drain waits for them. A panicking task is recovered
// and logged. Tasks hand results back to the loop with Submit.
func (l *Loop) Go(ctx context.Context, task func(ctx context.Context)) {
	if task == nil {
		return
	}

	l.mu.Lock()
	l.tasks++
	l.mu.Unlock()

	go func() {
		defer func() {
			l.mu.Lock()
			l.tasks--
			l.mu.Unlock()
			l.signal()
		}()
		defer l.recoverPanic("task")

		task(ctx)
	}()
}

// Call runs fn on the loop and waits for it to finish.
//
// It is the thread-safe way for other goroutines to read or mutate
// loop-confined state. Calling it from the loop goroutine deadlocks.
//
// Returns:
//   - error: ctx.Err() if the context ends first, ErrLoopStopped if the loop
//     shut down before fn ran
func (l *Loop) Call(ctx context.Context, fn func(ctx context.Context)) error {
	done := make(chan struct{})
	queued := l.enqueue(func(ctx context.Context) {
		defer close(done)
		fn(ctx)
	})
	if !queued {
		return ErrLoopStopped
	}

	select {
	case <-done:
		return nil
	case <-l.stop:
		// fn may have been the last job Run executed.
		select {
		case <-done:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return fmt.Errorf("loop call: %w", ctx.Err())
	}
}

// Run processes jobs until ctx is cancelled.
//
// Jobs still queued at cancellation are discarded and later submissions are
// dropped. Calls waiting on a discarded job return ErrLoopStopped.
//
// Returns:
//   - error: ErrLoopRunning if Run or Drain is already active, otherwise nil
func (l *Loop) Run(ctx context.Context) error {
	if err := l.acquire(); err != nil {
		return err
	}
	defer func() {
		l.mu.Lock()
		l.running = false
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		l.stopOnce.Do(func() { close(l.stop) })
	}()

	for {
		l.runQueued(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		}
	}
}

// Drain processes jobs until the queue is empty and no task is in flight.
//
// Jobs queued by jobs or by finishing tasks are processed too, so after Drain
// returns every consequence of earlier submissions has run.
//
// Returns:
//   - error: ErrLoopRunning if Run is active, ctx.Err() if the context ends first
func (l *Loop) Drain(ctx context.Context) error {
	if err := l.acquire(); err != nil {
		return err
	}
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		l.runQueued(ctx)

		l.mu.Lock()
		idle := len(l.queue) == 0 && l.tasks == 0
		l.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("draining loop: %w", ctx.Err())
		case <-l.wake:
		}
	}
}

// Pending returns the number of queued jobs.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return ErrLoopRunning
	}
	l.running = true
	return nil
}

// runQueued executes the jobs queued at entry. Jobs they submit run on the
// next pass, which keeps Submit from ever being re-entrant.
func (l *Loop) runQueued(ctx context.Context) {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, job := range batch {
		if ctx.Err() != nil {
			return
		}
		l.runJob(ctx, job)
	}
}

func (l *Loop) runJob(ctx context.Context, job Job) {
	defer l.recoverPanic("job")
	job(ctx)
}

func (l *Loop) recoverPanic(kind string) {
	if r := recover(); r != nil {
		l.logger.Error("loop "+kind+" panic recovered", "panic", r)
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
