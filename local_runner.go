package aboard

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/petrijr/aboard/internal/engine"
	"github.com/petrijr/aboard/internal/persistence"
	"github.com/petrijr/aboard/internal/taskqueue"
	"github.com/petrijr/aboard/pkg/worker"
)

// LocalRunner bundles an in-memory Engine, an in-memory task queue, and a
// Worker to provide a simple "local runner" for development and debugging.
//
// The engine is constructed with the queue attached, so Start and the
// webhook handlers enqueue their pipeline passes instead of running them
// inline; the worker goroutines started by StartWorkers pick them up.
//
// Typical usage:
//
//	runner := aboard.NewLocalRunner()
//	_ = runner.StartWorkers(ctx, 2)
//
//	token, _ := runner.Onboard(ctx, aboard.NewSubject(
//	    "emp-1", "priya@example.com", "Priya Sharma",
//	    "Backend Engineer", "Engineering", "2026-09-01",
//	))
//	...
//	runner.Stop()
type LocalRunner struct {
	// Engine is the in-memory onboarding engine used by this runner.
	Engine Engine

	// Queue is the in-memory task queue used by the Worker.
	Queue taskqueue.Queue

	// Worker processes tasks from Queue using Engine.
	Worker *worker.Worker

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLocalRunner constructs a LocalRunner backed by an in-memory engine,
// in-memory queue, and a Worker with default config.
//
// This is intended for local development, tests, and simple single-process
// deployments.
func NewLocalRunner() *LocalRunner {
	return NewLocalRunnerWithOptions(Options{})
}

// NewLocalRunnerWithOptions is NewLocalRunner with engine options applied.
func NewLocalRunnerWithOptions(opts Options) *LocalRunner {
	q := taskqueue.NewInMemoryQueue(1024)
	eng := engine.NewEngineWithConfig(opts.config(persistence.Persistence{
		Subjects: persistence.NewInMemoryStore(),
		Events:   persistence.NewInMemoryEventStore(),
	}, q))
	w := worker.New(eng, q)

	return &LocalRunner{
		Engine: eng,
		Queue:  q,
		Worker: w,
	}
}

// StartWorkers starts 'concurrency' worker goroutines that continuously call
// Worker.ProcessOne(ctx) until the context is cancelled via Stop.
//
// If StartWorkers is called more than once without Stop, it returns an error.
func (r *LocalRunner) StartWorkers(ctx context.Context, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("aboard: LocalRunner already started")
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer r.wg.Done()

			for {
				processed, err := r.Worker.ProcessOne(ctx)
				if err != nil {
					// For local runner we treat cancellation as a clean shutdown signal.
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return
					}
					// For other errors, log and keep going so a single bad task
					// doesn't kill the worker loop.
					log.Printf("aboard: local runner worker error: %v", err)
					continue
				}
				if !processed {
					// This only happens if ctx was cancelled before a task was obtained.
					// Loop will exit on next Dequeue when err == context.Canceled.
					continue
				}
			}
		}()
	}

	return nil
}

// Stop cancels all worker goroutines started by StartWorkers and waits
// for them to exit.
func (r *LocalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Onboard enrolls the subject and starts its onboarding workflow. The
// returned token identifies the workflow instance; the pipeline itself
// runs on the worker goroutines.
func (r *LocalRunner) Onboard(ctx context.Context, subj *Subject) (string, error) {
	if err := r.Engine.Enroll(ctx, subj); err != nil {
		return "", err
	}
	return r.Engine.Start(ctx, subj.ID)
}
