package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petrijr/aboard/pkg/api"
)

func TestAdvanceStopsOnCancelledContext(t *testing.T) {
	env := newTestEnv(t, "in-memory")
	seedSubject(t, env, "emp-1")

	_, err := env.store.UpdateSubject(context.Background(), "emp-1", func(s *api.Subject) error {
		s.InstanceToken = "thread_ctx"
		return nil
	})
	if err != nil {
		t.Fatalf("failed to enroll subject: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := env.engine.Advance(ctx, "emp-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if got := stepStatus(t, env, "emp-1", api.StepPolicySent); got != api.StatusNotStarted {
		t.Errorf("expected no attempt under a cancelled context, got %s", got)
	}
	if env.signer.total() != 0 {
		t.Errorf("expected no dispatches under a cancelled context, got %d", env.signer.total())
	}
}

func TestAdvanceDeadlineExceededSurfaces(t *testing.T) {
	env := newTestEnv(t, "in-memory")
	seedSubject(t, env, "emp-1")

	_, err := env.store.UpdateSubject(context.Background(), "emp-1", func(s *api.Subject) error {
		s.InstanceToken = "thread_deadline"
		return nil
	})
	if err != nil {
		t.Fatalf("failed to enroll subject: %v", err)
	}

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	if _, err := env.engine.Advance(ctx, "emp-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if env.signer.total() != 0 {
		t.Errorf("expected no dispatches past the deadline, got %d", env.signer.total())
	}
}
