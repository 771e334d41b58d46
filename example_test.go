package aboard_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/petrijr/aboard"
)

// Example_inlineEngine demonstrates driving the onboarding pipeline
// synchronously with an in-memory engine: no queue, no workers, every
// pass runs inline.
func Example_inlineEngine() {
	ctx := context.Background()

	eng := aboard.NewInMemoryEngine()

	subj := aboard.NewSubject(
		"emp-1", "priya@example.com", "Priya Sharma",
		"Backend Engineer", "Engineering", "2026-09-01",
	)
	if err := eng.Enroll(ctx, subj); err != nil {
		log.Fatal(err)
	}

	// Start runs the first pass inline: the policy document goes out and
	// the pipeline parks at the signature gate.
	token, err := eng.Start(ctx, "emp-1")
	if err != nil {
		log.Fatal(err)
	}

	// The signing provider confirms the signature via webhook; the engine
	// records it and advances to the quiz gate.
	if _, err := eng.OnDocumentEvent(ctx, aboard.DocumentEvent{
		SubjectID: "emp-1",
		Kind:      aboard.DocumentPolicy,
		Status:    aboard.DocumentSigned,
	}); err != nil {
		log.Fatal(err)
	}

	got, err := eng.GetSubjectByToken(ctx, token)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("policy_signed=%s progress=%.2f%%\n",
		got.Record.Step(aboard.StepPolicySigned).Status, got.Record.Progress())

	// Output:
	// policy_signed=completed progress=16.67%
}

// Example_localRunner demonstrates the asynchronous setup: an in-process
// engine, queue, and worker pool.
func Example_localRunner() {
	ctx := context.Background()

	runner := aboard.NewLocalRunner()

	// Start one worker goroutine.
	if err := runner.StartWorkers(ctx, 1); err != nil {
		log.Fatal(err)
	}
	defer runner.Stop()

	subj := aboard.NewSubject(
		"emp-2", "jo@example.com", "Jo Reyes",
		"Product Designer", "Product", "2026-09-15",
	)
	if _, err := runner.Onboard(ctx, subj); err != nil {
		log.Fatal(err)
	}

	// In a real application you'd wait on webhook callbacks or poll the
	// status endpoint; for example purposes, just give the worker a
	// moment to dispatch the first document.
	time.Sleep(500 * time.Millisecond)
}
