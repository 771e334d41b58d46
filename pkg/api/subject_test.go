package api

import (
	"errors"
	"testing"
)

func newTestSubject() *Subject {
	return NewSubject("emp-1", "dev@example.com", "Dana Developer", "Backend Engineer", "Engineering", "2026-09-01")
}

// --- StepRecord tests ---

func TestNewStepRecord_AllNotStarted(t *testing.T) {
	r := NewStepRecord()
	if len(r.Steps) != TotalSteps {
		t.Fatalf("record has %d steps, want %d", len(r.Steps), TotalSteps)
	}
	for _, s := range StepOrder {
		st, ok := r.Steps[s]
		if !ok {
			t.Fatalf("missing step %q", s)
		}
		if st.Status != StatusNotStarted {
			t.Fatalf("step %q status=%q, want not_started", s, st.Status)
		}
	}
	if r.Progress() != 0 {
		t.Fatalf("fresh record progress=%v, want 0", r.Progress())
	}
}

func TestStepRecord_Step_CreatesMissingEntry(t *testing.T) {
	var r StepRecord
	st := r.Step(StepPolicySent)
	if st == nil || st.Status != StatusNotStarted {
		t.Fatalf("expected lazily created not_started state, got %+v", st)
	}
	st.Status = StatusCompleted
	if r.Step(StepPolicySent).Status != StatusCompleted {
		t.Fatalf("Step must return the stored state, not a copy")
	}
}

func TestStepRecord_Progress_RoundsTwoDecimals(t *testing.T) {
	r := NewStepRecord()
	r.Step(StepPolicySent).Status = StatusCompleted
	// 1/12 = 8.333... -> 8.33
	if got := r.Progress(); got != 8.33 {
		t.Fatalf("progress=%v, want 8.33", got)
	}
	r.Step(StepPolicySigned).Status = StatusCompleted
	// 2/12 = 16.666... -> 16.67
	if got := r.Progress(); got != 16.67 {
		t.Fatalf("progress=%v, want 16.67", got)
	}
	for _, s := range StepOrder {
		r.Step(s).Status = StatusCompleted
	}
	if got := r.Progress(); got != 100 {
		t.Fatalf("progress=%v, want 100", got)
	}
}

func TestStepRecord_Progress_IgnoresNonCompleted(t *testing.T) {
	r := NewStepRecord()
	r.Step(StepPolicySent).Status = StatusInProgress
	r.Step(StepPolicySigned).Status = StatusWaiting
	r.Step(StepNDASent).Status = StatusFailed
	r.Step(StepNDASigned).Status = StatusRetry
	if got := r.Progress(); got != 0 {
		t.Fatalf("progress=%v, want 0 when nothing completed", got)
	}
}

func TestStepRecord_Clone_Independent(t *testing.T) {
	r := NewStepRecord()
	r.Step(StepPolicySent).Status = StatusCompleted
	r.Step(StepPolicySent).TrackingID = "track-1"

	c := r.Clone()
	c.Step(StepPolicySent).Status = StatusFailed
	c.Step(StepPolicySent).TrackingID = "other"

	if r.Step(StepPolicySent).Status != StatusCompleted {
		t.Fatalf("mutating clone changed original status")
	}
	if r.Step(StepPolicySent).TrackingID != "track-1" {
		t.Fatalf("mutating clone changed original tracking id")
	}
}

// --- Subject tests ---

func TestSubject_Validate(t *testing.T) {
	s := newTestSubject()
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noEmail := newTestSubject()
	noEmail.Email = ""
	if err := noEmail.Validate(); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for empty email, got %v", err)
	}

	badEmail := newTestSubject()
	badEmail.Email = "not-an-address"
	if err := badEmail.Validate(); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for malformed email, got %v", err)
	}

	noName := newTestSubject()
	noName.Name = ""
	if err := noName.Validate(); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for empty name, got %v", err)
	}

	badDate := newTestSubject()
	badDate.StartDate = "01/09/2026"
	if err := badDate.Validate(); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for malformed start date, got %v", err)
	}

	noDate := newTestSubject()
	noDate.StartDate = ""
	if err := noDate.Validate(); err != nil {
		t.Fatalf("start date is optional, got %v", err)
	}
}

func TestSubject_Clone_Independent(t *testing.T) {
	s := newTestSubject()
	s.RecordAttempt(DocumentPolicy, 90, true)
	s.LogEmail("welcome", "Welcome aboard", nil)
	s.Record.Step(StepPolicySent).Status = StatusCompleted

	c := s.Clone()
	c.RecordAttempt(DocumentPolicy, 10, false)
	c.EmailLog[0].Template = "changed"
	c.Record.Step(StepPolicySent).Status = StatusFailed

	if len(s.QuizAttempts[DocumentPolicy]) != 1 {
		t.Fatalf("clone attempt leaked into original: %d attempts", len(s.QuizAttempts[DocumentPolicy]))
	}
	if s.EmailLog[0].Template != "welcome" {
		t.Fatalf("clone email log mutation leaked into original")
	}
	if s.Record.Step(StepPolicySent).Status != StatusCompleted {
		t.Fatalf("clone record mutation leaked into original")
	}
}

func TestSubject_QuizAttempts(t *testing.T) {
	s := newTestSubject()
	if s.PassedQuiz(DocumentNDA) {
		t.Fatalf("no attempts yet, PassedQuiz must be false")
	}

	s.RecordAttempt(DocumentNDA, 40, false)
	if s.PassedQuiz(DocumentNDA) {
		t.Fatalf("failing attempt must not count as a pass")
	}

	s.RecordAttempt(DocumentNDA, 85, true)
	s.RecordAttempt(DocumentNDA, 20, false)
	if !s.PassedQuiz(DocumentNDA) {
		t.Fatalf("a later failing attempt must not revoke an earlier pass")
	}
	if got := len(s.QuizAttempts[DocumentNDA]); got != 3 {
		t.Fatalf("attempts recorded=%d, want 3 (every attempt kept)", got)
	}
	if s.PassedQuiz(DocumentPolicy) {
		t.Fatalf("pass for one kind must not leak to another")
	}
}

func TestSubject_LogEmail(t *testing.T) {
	s := newTestSubject()
	s.LogEmail("welcome", "Welcome aboard", nil)
	s.LogEmail("document_ready", "Please sign", errors.New("smtp: connection refused"))

	if len(s.EmailLog) != 2 {
		t.Fatalf("email log length=%d, want 2", len(s.EmailLog))
	}
	if s.EmailLog[0].Err != "" {
		t.Fatalf("successful send recorded error %q", s.EmailLog[0].Err)
	}
	if s.EmailLog[1].Err == "" {
		t.Fatalf("failed send must record the error")
	}
}
