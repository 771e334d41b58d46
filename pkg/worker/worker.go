package worker

import (
	"context"
	"errors"
	"time"

	"github.com/petrijr/aboard/internal/taskqueue"
	"github.com/petrijr/aboard/pkg/api"
)

// Engine is the part of the onboarding engine a worker drives. The engine
// constructors in this module return implementations that satisfy it.
type Engine interface {
	Advance(ctx context.Context, subjectID string) (api.AdvanceResult, error)
	SendWelcome(ctx context.Context, subjectID string) error
	SendReminder(ctx context.Context, subjectID string, step api.StepName) error
}

// Config controls task-level redelivery. This sits above the engine's own
// step retry policy: it re-enqueues whole tasks whose handler returned an
// I/O error, and never inspects step outcomes.
type Config struct {
	// MaxAttempts caps deliveries of one task, the first included.
	// Zero or one means deliver once and never re-enqueue.
	MaxAttempts int

	// Backoff delays each re-enqueued delivery.
	Backoff time.Duration
}

// Worker pulls tasks from a Queue and executes them against an Engine.
type Worker struct {
	engine Engine
	queue  taskqueue.Queue
	cfg    Config
}

// New creates a Worker that delivers each task once.
func New(engine Engine, queue taskqueue.Queue) *Worker {
	return NewWithConfig(engine, queue, Config{})
}

// NewWithConfig creates a Worker with the given redelivery policy.
func NewWithConfig(engine Engine, queue taskqueue.Queue, cfg Config) *Worker {
	return &Worker{
		engine: engine,
		queue:  queue,
		cfg:    cfg,
	}
}

// EnqueueStart enqueues the kick-off task for a freshly enrolled subject:
// the welcome notification plus the first pipeline pass. It does not run
// anything itself; that is done by ProcessOne.
func (w *Worker) EnqueueStart(ctx context.Context, subjectID string) error {
	return w.queue.Enqueue(ctx, taskqueue.Task{
		Type:       taskqueue.TaskTypeStart,
		SubjectID:  subjectID,
		EnqueuedAt: time.Now(),
	})
}

// EnqueueAdvance enqueues one pipeline pass for the subject.
func (w *Worker) EnqueueAdvance(ctx context.Context, subjectID string) error {
	return w.queue.Enqueue(ctx, taskqueue.Task{
		Type:       taskqueue.TaskTypeAdvance,
		SubjectID:  subjectID,
		EnqueuedAt: time.Now(),
	})
}

// EnqueueRemindAt schedules a reminder for a gate the subject is parked
// at, delivered no earlier than 'at'.
func (w *Worker) EnqueueRemindAt(ctx context.Context, subjectID string, step api.StepName, at time.Time) error {
	return w.queue.Enqueue(ctx, taskqueue.Task{
		Type:       taskqueue.TaskTypeRemind,
		SubjectID:  subjectID,
		Step:       string(step),
		EnqueuedAt: time.Now(),
		NotBefore:  at,
	})
}

// ProcessOne pulls a single task from the queue and processes it.
// Returns (processed, error):
//   - processed == false, err != nil: nothing was obtained (typically
//     context cancellation while blocked on the queue)
//   - processed == true: a task was handled; err reports the handler
//     outcome. A failed task is re-enqueued with backoff while the
//     redelivery budget allows.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	err = w.handle(ctx, task)
	if err != nil && task.Attempts+1 < w.cfg.MaxAttempts {
		redo := *task
		redo.Attempts++
		redo.NotBefore = time.Now().Add(w.cfg.Backoff)
		if enqErr := w.queue.Enqueue(ctx, redo); enqErr != nil {
			return true, errors.Join(err, enqErr)
		}
	}
	return true, err
}

// Run processes tasks until the context is cancelled. Handler errors do
// not stop the loop; they are left to the redelivery policy and the
// engine's own bookkeeping.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if _, err := w.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, task *taskqueue.Task) error {
	switch task.Type {
	case taskqueue.TaskTypeStart:
		if err := w.engine.SendWelcome(ctx, task.SubjectID); err != nil {
			return err
		}
		_, err := w.engine.Advance(ctx, task.SubjectID)
		return err

	case taskqueue.TaskTypeAdvance:
		_, err := w.engine.Advance(ctx, task.SubjectID)
		return err

	case taskqueue.TaskTypeRemind:
		return w.engine.SendReminder(ctx, task.SubjectID, api.StepName(task.Step))

	default:
		// Unknown task type; count it processed but surface the problem.
		return errors.New("unknown task type: " + string(task.Type))
	}
}
