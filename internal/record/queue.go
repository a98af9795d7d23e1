// ABOUTME: Serial background queue for hardware teardown
// ABOUTME: Decouples session invalidation latency from the stop caller
package record

import "sync"

// TeardownQueue runs functions one at a time on a dedicated background
// goroutine. Stop paths hand session invalidation to it so the caller
// (typically a UI-facing thread) never blocks on hardware teardown.
type TeardownQueue struct {
	work chan func()
	done chan struct{}
	once sync.Once
}

// NewTeardownQueue starts the worker.
func NewTeardownQueue() *TeardownQueue {
	q := &TeardownQueue{
		work: make(chan func(), 16),
		done: make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *TeardownQueue) loop() {
	defer close(q.done)
	for fn := range q.work {
		fn()
	}
}

// Do enqueues fn. Submissions execute in order.
func (q *TeardownQueue) Do(fn func()) {
	q.work <- fn
}

// Close drains outstanding work and stops the worker. No Do may follow.
func (q *TeardownQueue) Close() {
	q.once.Do(func() {
		close(q.work)
	})
	<-q.done
}
