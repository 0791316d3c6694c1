package engine

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// taskQueue is the concrete "channel's execution context" spec calls
// for: a single worker goroutine draining a growable FIFO, giving every
// Connection its own total order over inbound frame processing,
// outbound API calls, and idle-detector callbacks. It generalizes the
// teacher library's core/concurrency.Executor from a shared pool of
// worker goroutines down to exactly one worker per connection, and
// backs the FIFO with the teacher's own eapache/queue dependency
// (present in its go.mod but never imported by any of its files).
type taskQueue struct {
	mu     sync.Mutex
	q      *queue.Queue
	notify chan struct{}
	closed bool
	done   chan struct{}

	// onWorker is true only while run() is executing a submitted fn.
	// Since a queue has exactly one worker goroutine, a call that
	// observes it true is necessarily running on that same goroutine
	// (a Service callback invoked from fn calling back into the
	// Connection), never a distinct concurrent one. RunSync uses this
	// to run reentrant calls inline instead of submitting-and-blocking,
	// which would otherwise deadlock the worker against itself.
	onWorker atomic.Bool
}

func newTaskQueue() *taskQueue {
	tq := &taskQueue{
		q:      queue.New(),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go tq.run()
	return tq
}

// Submit enqueues fn for execution on the worker goroutine, preserving
// arrival order. A no-op once the queue has been closed.
func (tq *taskQueue) Submit(fn func()) {
	tq.TrySubmit(fn)
}

// TrySubmit behaves like Submit but reports whether fn was actually
// enqueued, so callers waiting on a result from fn can avoid blocking
// forever once the queue has been closed (e.g. after Detach).
func (tq *taskQueue) TrySubmit(fn func()) bool {
	tq.mu.Lock()
	if tq.closed {
		tq.mu.Unlock()
		return false
	}
	tq.q.Add(fn)
	tq.mu.Unlock()

	select {
	case tq.notify <- struct{}{}:
	default:
	}
	return true
}

func (tq *taskQueue) run() {
	defer close(tq.done)
	for {
		tq.mu.Lock()
		if tq.q.Length() == 0 {
			if tq.closed {
				tq.mu.Unlock()
				return
			}
			tq.mu.Unlock()
			<-tq.notify
			continue
		}
		fn := tq.q.Remove().(func())
		tq.mu.Unlock()
		tq.onWorker.Store(true)
		fn()
		tq.onWorker.Store(false)
	}
}

// RunSync runs fn and returns its result. If the calling goroutine is
// already the queue's worker — fn was reached via a Service callback
// that calls back into the Connection — it runs fn inline, preserving
// the total order without submitting a task the blocked worker could
// never drain itself. Otherwise it submits fn and blocks for the
// result, as any other external caller must.
func (tq *taskQueue) RunSync(fn func() error) error {
	if tq.onWorker.Load() {
		return fn()
	}
	done := make(chan error, 1)
	if !tq.TrySubmit(func() { done <- fn() }) {
		return ErrNotAttached
	}
	return <-done
}

// Close stops accepting new tasks, runs every task already enqueued,
// then returns once the worker goroutine has exited.
func (tq *taskQueue) Close() {
	tq.mu.Lock()
	tq.closed = true
	tq.mu.Unlock()

	select {
	case tq.notify <- struct{}{}:
	default:
	}
	<-tq.done
}
