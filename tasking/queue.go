package tasking

import "sync"

// eventKind distinguishes the events consumed by a tree's run loop.
type eventKind int

const (
	// eventReport carries an adapter's terminal report for a leaf.
	eventReport eventKind = iota + 1
	// eventStop requests a graceful force-stop: error paths fire, the run
	// finishes with failure.
	eventStop
	// eventDestroy requests teardown with every user callback suppressed.
	eventDestroy
)

// treeEvent is one unit of work for the run loop.
type treeEvent struct {
	kind eventKind
	node *runNode
	err  error
}

// eventQueue is a thread-safe FIFO feeding the single-writer run loop.
//
// Adapters may report from arbitrary goroutines while the loop dequeues; the
// queue is unbounded so a report can never block an adapter's goroutine. A
// buffered signal channel (size 1, coalescing) lets the loop wait without
// spinning and wakes it when the queue closes.
type eventQueue struct {
	mu     sync.Mutex
	events []treeEvent
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]treeEvent, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends an event. Safe from any goroutine. Returns false once the
// queue is closed, which is how late adapter reports are dropped after a
// run finished or was destroyed.
func (q *eventQueue) Enqueue(e treeEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front event without blocking.
func (q *eventQueue) TryDequeue() (treeEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return treeEvent{}, false
	}
	e := q.events[0]

	// Nil out the slot so the popped event's node pointer doesn't pin the
	// run arena through the backing array.
	q.events[0] = treeEvent{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns the signal channel. Select on it together with whatever else
// can end the loop; after a wakeup, drain via TryDequeue. The channel is
// closed by Close, so a closed queue wakes all waiters permanently.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close rejects further enqueues and wakes all waiters.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
