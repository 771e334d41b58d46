package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/petrijr/aboard/internal/persistence"
	"github.com/petrijr/aboard/pkg/api"
)

func TestDocumentWebhookValidation(t *testing.T) {
	env := newTestEnv(t, "in-memory")
	seedSubject(t, env, "emp-1")

	if _, err := env.engine.Start(context.Background(), "emp-1"); err != nil {
		t.Fatalf("failed to start onboarding: %v", err)
	}
	snap := snapshotRecord(t, env, "emp-1")

	cases := []struct {
		name string
		ev   api.DocumentEvent
	}{
		{"missing subject", api.DocumentEvent{Kind: api.DocumentPolicy, Status: api.DocumentSigned}},
		{"unknown kind", api.DocumentEvent{SubjectID: "emp-1", Kind: "passport", Status: api.DocumentSigned}},
		{"unknown status", api.DocumentEvent{SubjectID: "emp-1", Kind: api.DocumentPolicy, Status: "shredded"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			processed, err := env.engine.OnDocumentEvent(context.Background(), tc.ev)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !errors.Is(err, api.ErrInvalidEvent) {
				t.Errorf("expected ErrInvalidEvent, got %v", err)
			}
			if processed {
				t.Error("expected processed=false for a rejected event")
			}
		})
	}

	// Rejected events must leave the record untouched.
	snap.assertUnchanged(t, env, "emp-1")
}

func TestQuizWebhookValidation(t *testing.T) {
	env := newTestEnv(t, "in-memory")
	seedSubject(t, env, "emp-1")

	if _, err := env.engine.Start(context.Background(), "emp-1"); err != nil {
		t.Fatalf("failed to start onboarding: %v", err)
	}

	cases := []struct {
		name string
		ev   api.QuizEvent
	}{
		{"missing subject", api.QuizEvent{Kind: api.DocumentPolicy, Score: 90, Passed: true}},
		{"unknown kind", api.QuizEvent{SubjectID: "emp-1", Kind: "trivia", Score: 90, Passed: true}},
		{"score too high", api.QuizEvent{SubjectID: "emp-1", Kind: api.DocumentPolicy, Score: 101, Passed: true}},
		{"negative score", api.QuizEvent{SubjectID: "emp-1", Kind: api.DocumentPolicy, Score: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			processed, err := env.engine.OnQuizEvent(context.Background(), tc.ev)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !errors.Is(err, api.ErrInvalidEvent) {
				t.Errorf("expected ErrInvalidEvent, got %v", err)
			}
			if processed {
				t.Error("expected processed=false for a rejected event")
			}
		})
	}

	if got := len(getSubject(t, env, "emp-1").QuizAttempts[api.DocumentPolicy]); got != 0 {
		t.Errorf("expected no attempts recorded from rejected events, got %d", got)
	}
}

// A webhook for a subject nobody enrolled is acknowledged but not
// processed; nothing is created and no error surfaces.
func TestWebhookForUnknownSubjectIsSwallowed(t *testing.T) {
	for name := range engineBackends {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, name)

			processed, err := env.engine.OnDocumentEvent(context.Background(), api.DocumentEvent{
				SubjectID: "ghost",
				Kind:      api.DocumentPolicy,
				Status:    api.DocumentSigned,
			})
			if err != nil {
				t.Fatalf("expected unknown subject to be swallowed, got %v", err)
			}
			if processed {
				t.Error("expected processed=false for an unknown subject")
			}

			processed, err = env.engine.OnQuizEvent(context.Background(), api.QuizEvent{
				SubjectID: "ghost",
				Kind:      api.DocumentPolicy,
				Score:     90,
				Passed:    true,
			})
			if err != nil {
				t.Fatalf("expected unknown subject to be swallowed, got %v", err)
			}
			if processed {
				t.Error("expected processed=false for an unknown subject")
			}

			if _, err := env.store.GetSubject(context.Background(), "ghost"); !errors.Is(err, persistence.ErrSubjectNotFound) {
				t.Errorf("expected no subject to be created, got %v", err)
			}
			if got := len(listEvents(t, env, "ghost")); got != 0 {
				t.Errorf("expected no events for an unknown subject, got %d", got)
			}
		})
	}
}
