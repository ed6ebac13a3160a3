// Package workers provides the serial background execution context the sync
// core uses for all local-store mutations. Tasks run one at a time, in
// submission order, on a single goroutine, so the local store is never
// written concurrently from two sync operations.
package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/hlgc/IceCream/logger"
)

var ErrQueueStopped = errors.New("serial queue is stopped")

// Task is one unit of work. The context is cancelled when the queue stops.
type Task func(ctx context.Context)

// SerialQueue drains submitted tasks on one background goroutine. Stopping
// the queue discards tasks that have not started; the task currently
// executing runs to completion.
type SerialQueue struct {
	tasks  chan Task
	done   chan struct{}
	logger *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
	submits sync.WaitGroup
}

// NewSerialQueue creates and starts a queue with the given backlog depth.
func NewSerialQueue(depth int, log *logger.Logger) *SerialQueue {
	if depth <= 0 {
		depth = 128
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &SerialQueue{
		tasks:  make(chan Task, depth),
		done:   make(chan struct{}),
		logger: log.WithComponent("serial-queue"),
		cancel: cancel,
	}

	q.wg.Add(1)
	go q.run(ctx)

	return q
}

func (q *SerialQueue) run(ctx context.Context) {
	defer q.wg.Done()
	for {
		// Shutdown wins over a ready task; queued tasks are discarded.
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			task(ctx)
		}
	}
}

// Submit enqueues a task. It returns ErrQueueStopped after Stop, and blocks
// when the backlog is full. A Submit racing with Stop either lands before
// the backlog drain or returns ErrQueueStopped; it never enqueues a task
// that nothing will discard.
func (q *SerialQueue) Submit(task Task) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrQueueStopped
	}
	q.submits.Add(1)
	q.mu.Unlock()
	defer q.submits.Done()

	select {
	case q.tasks <- task:
		return nil
	case <-q.done:
		return ErrQueueStopped
	}
}

// Stop cancels queued-but-not-started tasks, waits for the in-flight task to
// finish and clears the backlog. Safe to call more than once.
func (q *SerialQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	cancel := q.cancel
	q.mu.Unlock()

	close(q.done)
	cancel()
	q.wg.Wait()
	// In-flight Submits finish before the drain so none can land after it.
	q.submits.Wait()

	for {
		select {
		case <-q.tasks:
		default:
			q.logger.Debug().Msg("serial queue stopped")
			return
		}
	}
}
