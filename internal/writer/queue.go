package writer

import "sync"

// Queue is an unbounded FIFO safe for concurrent use. Push never blocks, so a
// producer on the event path is never held up by a slow consumer. The ring
// doubles when full.
type Queue[T any] struct {
	mu     sync.Mutex
	ring   []T
	head   int
	count  int
	closed bool

	// notify holds one token while the queue is non-empty or closed.
	notify chan struct{}

	pushed int64
	popped int64
	grows  int
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Len      int
	Capacity int
	Pushed   int64
	Popped   int64
	Grows    int
}

// NewQueue creates a queue with the given initial capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		ring:   make([]T, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Push appends item. It returns false once the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.count == len(q.ring) {
		q.grow()
	}

	q.ring[(q.head+q.count)%len(q.ring)] = item
	q.count++
	q.pushed++
	q.signal()
	return true
}

// PopBatch removes up to max items (all items when max <= 0) without blocking.
func (q *Queue[T]) PopBatch(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	for i := range out {
		out[i] = q.take()
	}
	if q.count > 0 || q.closed {
		q.signal()
	}
	return out
}

// Ready returns a channel that receives when items may be available or the
// queue has been closed. Consumers select on it and then call PopBatch.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.notify
}

// Close stops accepting items. Items already queued can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.signal()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Len:      q.count,
		Capacity: len(q.ring),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Grows:    q.grows,
	}
}

// take removes the head item. Must be called with lock held and count > 0.
func (q *Queue[T]) take() T {
	var zero T
	item := q.ring[q.head]
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	q.popped++
	return item
}

// grow doubles the ring. Must be called with lock held.
func (q *Queue[T]) grow() {
	next := make([]T, len(q.ring)*2)
	n := copy(next, q.ring[q.head:])
	copy(next[n:], q.ring[:q.head])
	q.ring = next
	q.head = 0
	q.grows++
}

// signal leaves a token in notify. Must be called with lock held.
func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
