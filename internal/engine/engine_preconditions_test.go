package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/petrijr/aboard/pkg/api"
)

// Asking a step to fire while its predecessors are open is an invariant
// breach: the step is halted and marked, never executed.
func TestRunStepRefusesUnmetPreconditions(t *testing.T) {
	env := newTestEnv(t, "in-memory")
	seedSubject(t, env, "emp-1")

	_, err := env.store.UpdateSubject(context.Background(), "emp-1", func(s *api.Subject) error {
		s.InstanceToken = "thread_violation"
		return nil
	})
	if err != nil {
		t.Fatalf("failed to enroll subject: %v", err)
	}

	eng := env.engine.(*engineImpl)
	subj := getSubject(t, env, "emp-1")

	// nda_sent with the whole policy chain still open.
	res, err := eng.runStep(context.Background(), subj, api.StepNDASent)
	if err != nil {
		t.Fatalf("runStep errored: %v", err)
	}
	if res.Outcome != api.OutcomeFailed || res.Step != api.StepNDASent {
		t.Fatalf("expected failed outcome at nda_sent, got %+v", res)
	}
	if !errors.Is(res.Err, api.ErrPreconditionViolated) {
		t.Errorf("expected ErrPreconditionViolated, got %v", res.Err)
	}

	nda := getSubject(t, env, "emp-1").Record.Step(api.StepNDASent)
	if nda.Status != api.StatusFailed {
		t.Errorf("expected nda_sent marked failed, got %s", nda.Status)
	}
	if nda.Err == "" {
		t.Error("expected the violation recorded on the step")
	}
	if env.signer.total() != 0 {
		t.Errorf("expected the side effect never fired, got %d dispatches", env.signer.total())
	}
}

func TestGateSatisfiedIsAPureRead(t *testing.T) {
	env := newTestEnv(t, "in-memory")
	seedSubject(t, env, "emp-1")

	subj := getSubject(t, env, "emp-1")
	if GateSatisfied(&subj.Record, api.StepPolicySigned) {
		t.Error("expected an open gate to read unsatisfied")
	}

	markCompleted(subj.Record.Step(api.StepPolicySigned))
	if !GateSatisfied(&subj.Record, api.StepPolicySigned) {
		t.Error("expected a completed gate to read satisfied")
	}

	// Reading gates fires nothing.
	if env.signer.total() != 0 || len(env.mail.templates()) != 0 {
		t.Error("expected no side effects from gate reads")
	}
}
