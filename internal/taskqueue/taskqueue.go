package taskqueue

import (
	"context"
	"time"
)

// TaskType identifies what the worker should do.
type TaskType string

const (
	// TaskTypeStart kicks off onboarding for a freshly enrolled subject:
	// the welcome notification plus the first pipeline pass.
	TaskTypeStart TaskType = "start-onboarding"

	// TaskTypeAdvance runs one pipeline pass for a subject.
	TaskTypeAdvance TaskType = "advance"

	// TaskTypeRemind sends a reminder for a gate the subject is parked at.
	// Remind tasks usually carry a NotBefore in the future.
	TaskTypeRemind TaskType = "remind"
)

// Task represents a unit of work for the worker.
type Task struct {
	ID   string
	Type TaskType

	// SubjectID identifies the subject every task type operates on.
	SubjectID string

	// Step is set for remind tasks: the gate the reminder chases.
	Step string

	EnqueuedAt time.Time

	// NotBefore is the earliest time this task should be eligible
	// for processing. Zero value means "immediately" (i.e., at enqueue time).
	NotBefore time.Time

	// Attempts counts deliveries of this task so far. Workers bump it
	// when re-enqueueing after a transient failure.
	Attempts int
}

// Queue is a simple async task queue interface.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue removes and returns the next task, blocking until one is available
	// or the context is cancelled.
	Dequeue(ctx context.Context) (*Task, error)

	// Len returns the approximate number of tasks queued.
	Len() int
}
