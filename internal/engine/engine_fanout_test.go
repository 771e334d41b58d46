package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/petrijr/aboard/internal/mailer"
	"github.com/petrijr/aboard/pkg/api"
)

func TestFinalTaskFailureDoesNotBlockCompletion(t *testing.T) {
	for name := range engineBackends {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, name)
			env.mail.failTemplates = map[string]bool{mailer.TemplateJiraAccess: true}
			seedSubject(t, env, "emp-1")

			if _, err := env.engine.Start(context.Background(), "emp-1"); err != nil {
				t.Fatalf("failed to start onboarding: %v", err)
			}
			driveToCompletion(t, env, "emp-1")

			subj := getSubject(t, env, "emp-1")
			if !subj.Record.Terminal() {
				t.Fatal("expected terminal record despite the jira failure")
			}
			if got := subj.Record.Step(api.StepSlackInvite).Status; got != api.StatusCompleted {
				t.Errorf("expected slack_invite completed, got %s", got)
			}
			if got := subj.Record.Step(api.StepCallSchedule).Status; got != api.StatusCompleted {
				t.Errorf("expected call_schedule completed, got %s", got)
			}
			jira := subj.Record.Step(api.StepJiraAccess)
			if jira.Status != api.StatusFailed {
				t.Errorf("expected jira_access failed, got %s", jira.Status)
			}
			if jira.Err == "" {
				t.Error("expected the jira failure recorded on the step")
			}

			// The failed grant shows up in the email log with its error.
			var logged bool
			for _, entry := range subj.EmailLog {
				if entry.Template == mailer.TemplateJiraAccess && entry.Err != "" {
					logged = true
				}
			}
			if !logged {
				t.Error("expected a failed jira entry in the email log")
			}

			// Completion email still goes out.
			if env.mail.count(mailer.TemplateComplete) != 1 {
				t.Errorf("expected one completion email, got %d", env.mail.count(mailer.TemplateComplete))
			}

			var summary string
			for _, ev := range listEvents(t, env, "emp-1") {
				if ev.Type == api.EventWorkflowCompleted {
					summary = ev.Detail
				}
			}
			for _, want := range []string{"slack_invite=true", "jira_access=false", "call_schedule=true"} {
				if !strings.Contains(summary, want) {
					t.Errorf("expected %q in the completion summary %q", want, summary)
				}
			}
		})
	}
}

// rendezvousMailer blocks each provisioning send until all three have
// arrived, so the test deadlocks into a timeout error unless the fan-out
// really overlaps them.
type rendezvousMailer struct {
	inner fakeMailer

	mu      sync.Mutex
	arrived int
	release chan struct{}
}

func (r *rendezvousMailer) Send(ctx context.Context, msg mailer.Message) error {
	switch msg.Template {
	case mailer.TemplateSlackInvite, mailer.TemplateJiraAccess, mailer.TemplateMeeting:
		r.mu.Lock()
		r.arrived++
		if r.arrived == 3 {
			close(r.release)
		}
		r.mu.Unlock()

		select {
		case <-r.release:
		case <-time.After(2 * time.Second):
			return fmt.Errorf("provisioning send %s never overlapped its peers", msg.Template)
		}
	}
	return r.inner.Send(ctx, msg)
}

func TestFinalTasksRunConcurrently(t *testing.T) {
	rv := &rendezvousMailer{release: make(chan struct{})}
	env := newTestEnvWith(t, "in-memory", func(cfg *Config) {
		cfg.Mailer = rv
	})
	seedSubject(t, env, "emp-1")

	if _, err := env.engine.Start(context.Background(), "emp-1"); err != nil {
		t.Fatalf("failed to start onboarding: %v", err)
	}
	driveToCompletion(t, env, "emp-1")

	subj := getSubject(t, env, "emp-1")
	for _, step := range api.FinalSteps {
		if got := subj.Record.Step(step).Status; got != api.StatusCompleted {
			t.Errorf("expected %s completed, got %s", step, got)
		}
	}
}

func TestFinalFanOutReVerifiesGates(t *testing.T) {
	env := newTestEnv(t, "in-memory")
	seedSubject(t, env, "emp-1")

	// Only the policy confirmations are in place.
	markGatesThroughQuiz(t, env, "emp-1", api.DocumentPolicy)
	_, err := env.store.UpdateSubject(context.Background(), "emp-1", func(s *api.Subject) error {
		s.InstanceToken = "thread_gates"
		return nil
	})
	if err != nil {
		t.Fatalf("failed to enroll subject: %v", err)
	}

	res, err := env.engine.(*engineImpl).runFinalTasks(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("final fan-out errored: %v", err)
	}
	if res.Outcome != api.OutcomeFailed {
		t.Fatalf("expected failed outcome with unsatisfied gates, got %+v", res)
	}
	if !errors.Is(res.Err, api.ErrPreconditionViolated) {
		t.Errorf("expected ErrPreconditionViolated, got %v", res.Err)
	}

	subj := getSubject(t, env, "emp-1")
	if subj.Record.Terminal() {
		t.Error("expected no terminal marker")
	}
	for _, step := range api.FinalSteps {
		if got := subj.Record.Step(step).Status; got != api.StatusNotStarted {
			t.Errorf("expected %s untouched, got %s", step, got)
		}
	}
	if got := len(env.mail.templates()); got != 0 {
		t.Errorf("expected no provisioning emails, got %v", env.mail.templates())
	}
}

func TestCompletionEmailSentOnlyOnce(t *testing.T) {
	env := newTestEnv(t, "in-memory")
	seedSubject(t, env, "emp-1")

	if _, err := env.engine.Start(context.Background(), "emp-1"); err != nil {
		t.Fatalf("failed to start onboarding: %v", err)
	}
	driveToCompletion(t, env, "emp-1")

	for i := 0; i < 3; i++ {
		if _, err := env.engine.Advance(context.Background(), "emp-1"); err != nil {
			t.Fatalf("advance %d failed: %v", i, err)
		}
	}

	if got := env.mail.count(mailer.TemplateComplete); got != 1 {
		t.Errorf("expected exactly one completion email, got %d", got)
	}
}
