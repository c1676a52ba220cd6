package guard

import (
	"sync"
	"sync/atomic"
	"time"
)

// Item is one queued payload with its enqueue timestamp, so workers can
// measure and log pipeline latency.
type Item[T any] struct {
	Payload    T
	EnqueuedAt time.Time
}

// Queue is a bounded FIFO connecting a capture loop to its worker. Push
// never blocks: when the queue is full the oldest item is dropped to make
// room, keeping the pipeline fresh under a slow consumer. Stale audio or
// frames are worthless to a live guard.
type Queue[T any] struct {
	ch      chan Item[T]
	dropped atomic.Uint64

	mu sync.Mutex // serialises the drop-then-push sequence in Push
}

// NewQueue creates a queue holding at most capacity items. Capacity must
// be at least 1.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan Item[T], capacity)}
}

// Push enqueues payload, evicting the oldest item first if the queue is
// full. It never blocks.
func (q *Queue[T]) Push(payload T) {
	item := Item[T]{Payload: payload, EnqueuedAt: time.Now()}

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case q.ch <- item:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// Pop dequeues the oldest item, waiting up to timeout. The second return
// is false when the wait expired with the queue still empty.
func (q *Queue[T]) Pop(timeout time.Duration) (Item[T], bool) {
	select {
	case item := <-q.ch:
		return item, true
	default:
	}
	if timeout <= 0 {
		return Item[T]{}, false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case item := <-q.ch:
		return item, true
	case <-timer.C:
		return Item[T]{}, false
	}
}

// Len returns the number of items currently queued.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Dropped returns how many items were evicted to make room since start.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}
