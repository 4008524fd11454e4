// Package queue provides the blocking multi-producer single-consumer FIFO
// that feeds the matching engine.
package queue

import (
	"context"
	"sync"

	ring "github.com/eapache/queue"
)

// Queue is an unbounded FIFO safe for concurrent producers. Pop blocks while
// the queue is empty.
type Queue[T any] struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	items    *ring.Queue
}

// New creates an empty Queue
func New[T any]() *Queue[T] {
	q := &Queue[T]{items: ring.New()}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends item and wakes one waiting consumer
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items.Add(item)
	q.mu.Unlock()
	q.nonEmpty.Signal()
}

// Pop removes the oldest item, blocking until one is available
func (q *Queue[T]) Pop() T {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() == 0 {
		q.nonEmpty.Wait()
	}
	return q.items.Remove().(T)
}

// PopContext is Pop that gives up when ctx is done
func (q *Queue[T]) PopContext(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, func() {
		// take the lock so the broadcast cannot slip in between the
		// waiter's ctx check and its Wait
		q.mu.Lock()
		defer q.mu.Unlock()
		q.nonEmpty.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() == 0 {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		q.nonEmpty.Wait()
	}
	return q.items.Remove().(T), nil
}

// TryPop removes the oldest item without blocking
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Length() == 0 {
		var zero T
		return zero, false
	}
	return q.items.Remove().(T), true
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}
