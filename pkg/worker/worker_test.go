package worker

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/petrijr/aboard/internal/engine"
	"github.com/petrijr/aboard/internal/persistence"
	"github.com/petrijr/aboard/internal/taskqueue"
	"github.com/petrijr/aboard/pkg/api"
)

type engineFactory func(t *testing.T, q taskqueue.Queue) api.Engine

func inMemoryEngine(t *testing.T, q taskqueue.Queue) api.Engine {
	t.Helper()
	return engine.NewEngineWithConfig(engine.Config{
		Persistence: persistence.Persistence{
			Subjects: persistence.NewInMemoryStore(),
			Events:   persistence.NewInMemoryEventStore(),
		},
		Queue: q,
	})
}

func sqliteEngine(t *testing.T, q taskqueue.Queue) api.Engine {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	// One connection, or each pool conn sees its own :memory: db.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	subjects, err := persistence.NewSQLiteSubjectStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteSubjectStore failed: %v", err)
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteEventStore failed: %v", err)
	}
	return engine.NewEngineWithConfig(engine.Config{
		Persistence: persistence.Persistence{Subjects: subjects, Events: events},
		Queue:       q,
	})
}

func stepStatus(t *testing.T, eng api.Engine, subjectID string, step api.StepName) api.StepStatus {
	t.Helper()
	subj, err := eng.GetSubject(context.Background(), subjectID)
	if err != nil {
		t.Fatalf("GetSubject failed: %v", err)
	}
	return subj.Record.Step(step).Status
}

func TestWorkerProcessesStartTasks(t *testing.T) {
	factories := map[string]engineFactory{
		"in-memory": inMemoryEngine,
		"sqlite":    sqliteEngine,
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			queue := taskqueue.NewInMemoryQueue(10)
			eng := factory(t, queue)
			w := New(eng, queue)

			subj := api.NewSubject("emp-1", "priya@example.com", "Priya Sharma", "Backend Engineer", "Engineering", "2026-09-01")
			if err := eng.Enroll(ctx, subj); err != nil {
				t.Fatalf("Enroll failed: %v", err)
			}

			// Start defers to the queue; nothing should run yet.
			token, err := eng.Start(ctx, "emp-1")
			if err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			if token == "" {
				t.Fatalf("expected a non-empty instance token")
			}
			if got := stepStatus(t, eng, "emp-1", api.StepPolicySent); got != api.StatusNotStarted {
				t.Fatalf("expected policy_sent untouched before processing, got %q", got)
			}

			processed, err := w.ProcessOne(ctx)
			if err != nil {
				t.Fatalf("ProcessOne failed: %v", err)
			}
			if !processed {
				t.Fatalf("expected a task to be processed")
			}

			if got := stepStatus(t, eng, "emp-1", api.StepPolicySent); got != api.StatusCompleted {
				t.Fatalf("expected policy_sent completed after processing, got %q", got)
			}
			if got := stepStatus(t, eng, "emp-1", api.StepPolicySigned); got != api.StatusWaiting {
				t.Fatalf("expected pipeline parked at policy_signed, got %q", got)
			}

			subjNow, err := eng.GetSubject(ctx, "emp-1")
			if err != nil {
				t.Fatalf("GetSubject failed: %v", err)
			}
			if len(subjNow.EmailLog) == 0 || subjNow.EmailLog[0].Template != "welcome" {
				t.Fatalf("expected the welcome notification first in the email log, got %+v", subjNow.EmailLog)
			}
		})
	}
}

func TestWorkerProcessesAdvanceTasksAfterWebhook(t *testing.T) {
	ctx := context.Background()
	queue := taskqueue.NewInMemoryQueue(10)
	eng := inMemoryEngine(t, queue)
	w := New(eng, queue)

	subj := api.NewSubject("emp-2", "jo@example.com", "Jo Reyes", "Designer", "Product", "2026-09-01")
	if err := eng.Enroll(ctx, subj); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if _, err := eng.Start(ctx, "emp-2"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatalf("ProcessOne(start) failed: %v", err)
	}

	// The webhook records the signature synchronously but leaves the
	// pipeline pass to the worker.
	processedEvent, err := eng.OnDocumentEvent(ctx, api.DocumentEvent{
		SubjectID: "emp-2",
		Kind:      api.DocumentPolicy,
		Status:    api.DocumentSigned,
	})
	if err != nil {
		t.Fatalf("OnDocumentEvent failed: %v", err)
	}
	if !processedEvent {
		t.Fatalf("expected the webhook to match the subject")
	}
	if got := stepStatus(t, eng, "emp-2", api.StepPolicySigned); got != api.StatusCompleted {
		t.Fatalf("expected policy_signed completed by the webhook, got %q", got)
	}
	if got := stepStatus(t, eng, "emp-2", api.StepPolicyQuizPassed); got != api.StatusNotStarted {
		t.Fatalf("expected the quiz gate untouched before the advance task ran, got %q", got)
	}

	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatalf("ProcessOne(advance) failed: %v", err)
	}
	if got := stepStatus(t, eng, "emp-2", api.StepPolicyQuizPassed); got != api.StatusWaiting {
		t.Fatalf("expected the quiz gate waiting after the advance task, got %q", got)
	}
}

// fakeEngine records calls so dispatch can be asserted per task type.
type fakeEngine struct {
	mu         sync.Mutex
	welcomes   []string
	advances   []string
	reminders  []string
	advanceErr func(call int) error
}

func (f *fakeEngine) Advance(ctx context.Context, subjectID string) (api.AdvanceResult, error) {
	f.mu.Lock()
	f.advances = append(f.advances, subjectID)
	call := len(f.advances)
	f.mu.Unlock()
	if f.advanceErr != nil {
		if err := f.advanceErr(call); err != nil {
			return api.AdvanceResult{}, err
		}
	}
	return api.AdvanceResult{Outcome: api.OutcomeSuspended}, nil
}

func (f *fakeEngine) SendWelcome(ctx context.Context, subjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcomes = append(f.welcomes, subjectID)
	return nil
}

func (f *fakeEngine) SendReminder(ctx context.Context, subjectID string, step api.StepName) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, subjectID+"/"+string(step))
	return nil
}

func (f *fakeEngine) advanceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.advances)
}

func TestWorkerDispatchesRemindTasks(t *testing.T) {
	ctx := context.Background()
	queue := taskqueue.NewInMemoryQueue(10)
	fake := &fakeEngine{}
	w := New(fake, queue)

	if err := w.EnqueueRemindAt(ctx, "emp-3", api.StepPolicyQuizPassed, time.Now()); err != nil {
		t.Fatalf("EnqueueRemindAt failed: %v", err)
	}
	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatalf("ProcessOne failed: %v", err)
	}

	if len(fake.reminders) != 1 || fake.reminders[0] != "emp-3/policy_quiz_passed" {
		t.Fatalf("expected one reminder for emp-3 at the policy quiz, got %v", fake.reminders)
	}
	if len(fake.advances) != 0 || len(fake.welcomes) != 0 {
		t.Fatalf("remind task must not touch other engine operations")
	}
}

func TestWorkerReportsUnknownTaskType(t *testing.T) {
	ctx := context.Background()
	queue := taskqueue.NewInMemoryQueue(10)
	w := New(&fakeEngine{}, queue)

	if err := queue.Enqueue(ctx, taskqueue.Task{Type: "mystery", SubjectID: "emp-4"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	processed, err := w.ProcessOne(ctx)
	if !processed {
		t.Fatalf("an unknown task still counts as processed")
	}
	if err == nil || !strings.Contains(err.Error(), "unknown task type") {
		t.Fatalf("expected an unknown task type error, got %v", err)
	}
}

func TestWorkerRedeliversFailedTasks(t *testing.T) {
	ctx := context.Background()
	queue := taskqueue.NewInMemoryQueue(10)
	fake := &fakeEngine{
		advanceErr: func(call int) error {
			if call <= 2 {
				return context.DeadlineExceeded
			}
			return nil
		},
	}
	w := NewWithConfig(fake, queue, Config{
		MaxAttempts: 3,
		Backoff:     5 * time.Millisecond,
	})

	if err := w.EnqueueAdvance(ctx, "emp-5"); err != nil {
		t.Fatalf("EnqueueAdvance failed: %v", err)
	}

	// Two failing deliveries, each re-enqueued with backoff, then one
	// clean delivery.
	for i := 0; i < 2; i++ {
		if _, err := w.ProcessOne(ctx); err == nil {
			t.Fatalf("delivery %d should have failed", i+1)
		}
	}
	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatalf("final delivery failed: %v", err)
	}

	if got := fake.advanceCount(); got != 3 {
		t.Fatalf("expected 3 advance calls, got %d", got)
	}
	if queue.Len() != 0 {
		t.Fatalf("expected an empty queue after the clean delivery, got %d", queue.Len())
	}
}

func TestWorkerStopsRedeliveryAtBudget(t *testing.T) {
	ctx := context.Background()
	queue := taskqueue.NewInMemoryQueue(10)
	fake := &fakeEngine{
		advanceErr: func(call int) error { return context.DeadlineExceeded },
	}
	w := NewWithConfig(fake, queue, Config{MaxAttempts: 2, Backoff: time.Millisecond})

	if err := w.EnqueueAdvance(ctx, "emp-6"); err != nil {
		t.Fatalf("EnqueueAdvance failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := w.ProcessOne(ctx); err == nil {
			t.Fatalf("delivery %d should have failed", i+1)
		}
	}

	// Budget spent; the task must not come back.
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := w.ProcessOne(waitCtx); err == nil {
		t.Fatalf("expected the queue to stay empty after the budget was spent")
	}
	if got := fake.advanceCount(); got != 2 {
		t.Fatalf("expected exactly 2 advance calls, got %d", got)
	}
}

func TestWorkerReturnsOnCancelledContext(t *testing.T) {
	queue := taskqueue.NewInMemoryQueue(10)
	w := New(&fakeEngine{}, queue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processed, err := w.ProcessOne(ctx)
	if processed {
		t.Fatalf("no task should be processed on a cancelled context")
	}
	if err == nil {
		t.Fatalf("expected the dequeue cancellation to surface")
	}
}
