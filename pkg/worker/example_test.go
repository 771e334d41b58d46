package worker_test

import (
	"context"
	"log"
	"time"

	"github.com/petrijr/aboard"
	"github.com/petrijr/aboard/pkg/worker"
)

// ExampleWorker demonstrates constructing a Worker explicitly and using it
// to process tasks from a queue.
func ExampleWorker() {
	ctx := context.Background()

	// A LocalRunner wires an in-memory engine to an in-memory queue. Here we
	// drive its queue by hand instead of starting background workers.
	runner := aboard.NewLocalRunner()

	// Configure the worker (with a simple redelivery policy).
	w := worker.NewWithConfig(runner.Engine, runner.Queue, worker.Config{
		MaxAttempts: 3,
		Backoff:     10 * time.Millisecond,
	})

	// Enroll the new hire and start onboarding. The queue-attached engine
	// defers the actual work to a start task.
	subj := aboard.NewSubject("emp-1", "priya@example.com", "Priya Sharma", "Backend Engineer", "Engineering", "2026-09-01")
	if err := runner.Engine.Enroll(ctx, subj); err != nil {
		log.Fatal(err)
	}
	if _, err := runner.Engine.Start(ctx, subj.ID); err != nil {
		log.Fatal(err)
	}

	// Process a single task: the worker sends the welcome email and runs the
	// pipeline until it parks at the first signature gate. In a real
	// application you would run ProcessOne in a loop or via Run.
	processed, err := w.ProcessOne(ctx)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("processed=%v", processed)
}
