package taskqueue

import (
	"context"
	"time"
)

// InMemoryQueue is a simple Queue implementation backed by a buffered channel.
// It is safe for concurrent use.
type InMemoryQueue struct {
	ch chan Task
}

// NewInMemoryQueue creates a new queue with the given capacity.
// For tests and small deployments, a modest capacity (e.g. 1024) is fine.
func NewInMemoryQueue(capacity int) *InMemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &InMemoryQueue{
		ch: make(chan Task, capacity),
	}
}

// Ensure InMemoryQueue implements Queue.
var _ Queue = (*InMemoryQueue)(nil)

func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}

	// Deferred tasks are held on a timer until they come due. The send
	// blocks the timer goroutine if the queue is full at fire time.
	if wait := time.Until(t.NotBefore); wait > 0 {
		time.AfterFunc(wait, func() {
			q.ch <- t
		})
		return nil
	}

	select {
	case q.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	select {
	case t := <-q.ch:
		return &t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of immediately available tasks. Deferred tasks
// waiting on their timer are not counted.
func (q *InMemoryQueue) Len() int {
	return len(q.ch)
}
