package engine

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/petrijr/aboard/internal/persistence"
	"github.com/petrijr/aboard/pkg/api"
)

// Exercises the stock sqlite constructor with its default wiring: the
// signing simulator and the logging mailer.
func TestSQLiteEngineEndToEnd(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	// One connection, or each pool conn sees its own :memory: db.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	eng, err := NewSQLiteEngine(db)
	if err != nil {
		t.Fatalf("failed to create sqlite engine: %v", err)
	}

	// The engine's store and this one share the same tables.
	store, err := persistence.NewSQLiteSubjectStore(db)
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	subj := api.NewSubject("emp-1", "priya@example.com", "Priya Sharma", "Backend Engineer", "Engineering", "2026-09-01")
	if err := store.SaveSubject(context.Background(), subj); err != nil {
		t.Fatalf("failed to save subject: %v", err)
	}

	token, err := eng.Start(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("failed to start onboarding: %v", err)
	}
	if !strings.HasPrefix(token, "thread_") {
		t.Errorf("expected token with thread_ prefix, got %q", token)
	}

	loaded, err := store.GetSubject(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("failed to reload subject: %v", err)
	}
	policy := loaded.Record.Step(api.StepPolicySent)
	if policy.Status != api.StatusCompleted {
		t.Fatalf("expected policy_sent completed, got %s", policy.Status)
	}
	if !strings.HasPrefix(policy.TrackingID, "sim_company_policy_") {
		t.Errorf("expected a simulated tracking id, got %q", policy.TrackingID)
	}

	for _, kind := range api.DocumentKinds {
		if _, err := eng.OnDocumentEvent(context.Background(), api.DocumentEvent{
			SubjectID: "emp-1", Kind: kind, Status: api.DocumentSigned,
		}); err != nil {
			t.Fatalf("document webhook for %s failed: %v", kind, err)
		}
		if _, err := eng.OnQuizEvent(context.Background(), api.QuizEvent{
			SubjectID: "emp-1", Kind: kind, Score: 85, Passed: true,
		}); err != nil {
			t.Fatalf("quiz webhook for %s failed: %v", kind, err)
		}
	}

	loaded, err = store.GetSubject(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("failed to reload subject: %v", err)
	}
	if !loaded.Record.Terminal() {
		t.Fatal("expected terminal record")
	}
	if got := loaded.Record.Progress(); got != 100 {
		t.Errorf("expected progress 100, got %v", got)
	}

	// The instance token remains resolvable for status lookups.
	byToken, err := store.GetSubjectByToken(context.Background(), token)
	if err != nil {
		t.Fatalf("failed to resolve token: %v", err)
	}
	if byToken.ID != "emp-1" {
		t.Errorf("expected token to resolve to emp-1, got %s", byToken.ID)
	}
}
