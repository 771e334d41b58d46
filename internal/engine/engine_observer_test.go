package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/petrijr/aboard/pkg/api"
)

func TestObserverSeesFullLifecycle(t *testing.T) {
	metrics := &api.BasicMetrics{}
	env := newTestEnvWith(t, "in-memory", func(cfg *Config) {
		cfg.Observer = metrics
	})
	seedSubject(t, env, "emp-1")

	if _, err := env.engine.Start(context.Background(), "emp-1"); err != nil {
		t.Fatalf("failed to start onboarding: %v", err)
	}
	driveToCompletion(t, env, "emp-1")

	snap := metrics.Snapshot()
	if snap.WorkflowsStarted != 1 {
		t.Errorf("expected 1 started, got %d", snap.WorkflowsStarted)
	}
	if snap.WorkflowsCompleted != 1 {
		t.Errorf("expected 1 completed, got %d", snap.WorkflowsCompleted)
	}
	if snap.WorkflowsFailed != 0 {
		t.Errorf("expected 0 failed, got %d", snap.WorkflowsFailed)
	}
	if snap.PendingWorkflows != 0 {
		t.Errorf("expected 0 pending, got %d", snap.PendingWorkflows)
	}
	// Three document dispatches plus three provisioning tasks.
	if snap.StepsCompleted != 6 {
		t.Errorf("expected 6 steps completed, got %d", snap.StepsCompleted)
	}
	// One suspension per gate on the way through.
	if snap.WorkflowsSuspended != 6 {
		t.Errorf("expected 6 suspensions, got %d", snap.WorkflowsSuspended)
	}
}

func TestObserverSeesFailure(t *testing.T) {
	metrics := &api.BasicMetrics{}
	env := newTestEnvWith(t, "in-memory", func(cfg *Config) {
		cfg.Observer = metrics
	})
	env.signer.fail = func(kind api.DocumentKind, call int) error {
		return errors.New("document service down")
	}
	seedSubject(t, env, "emp-1")

	if _, err := env.engine.Start(context.Background(), "emp-1"); err != nil {
		t.Fatalf("failed to start onboarding: %v", err)
	}

	snap := metrics.Snapshot()
	if snap.WorkflowsStarted != 1 {
		t.Errorf("expected 1 started, got %d", snap.WorkflowsStarted)
	}
	if snap.WorkflowsFailed != 1 {
		t.Errorf("expected 1 failed, got %d", snap.WorkflowsFailed)
	}
	if snap.WorkflowsCompleted != 0 {
		t.Errorf("expected 0 completed, got %d", snap.WorkflowsCompleted)
	}
	if snap.StepsCompleted != 0 {
		t.Errorf("expected 0 steps completed, got %d", snap.StepsCompleted)
	}
}
