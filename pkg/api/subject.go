package api

import (
	"fmt"
	"math"
	"net/mail"
	"time"
)

// Subject is the employee progressing through the onboarding pipeline.
//
// The instance token is a durable field on the record itself: resuming a
// workflow after a restart only needs the persisted subject, never any
// process-local registry.
type Subject struct {
	ID         string
	Email      string
	Name       string
	Role       string
	Department string

	// StartDate is the employee's first day, in YYYY-MM-DD form.
	StartDate string

	// InstanceToken identifies the workflow instance for this subject.
	// Empty until the workflow is started.
	InstanceToken string

	Record StepRecord

	// QuizAttempts holds every quiz delivery, pass or fail, per quiz kind.
	QuizAttempts map[DocumentKind][]QuizAttempt

	// EmailLog records best-effort notification attempts.
	EmailLog []EmailLogEntry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubjectFilter narrows subject listings. The zero value selects everyone.
type SubjectFilter struct {
	Department string
}

// QuizAttempt is one recorded quiz delivery.
type QuizAttempt struct {
	Score  int
	Passed bool
	At     time.Time
}

// EmailLogEntry records one outbound notification attempt.
// Err is empty when the send succeeded.
type EmailLogEntry struct {
	Template string
	Subject  string
	At       time.Time
	Err      string
}

// StepState tracks the lifecycle of a single step.
type StepState struct {
	Status      StepStatus
	Attempts    int
	StartedAt   time.Time
	CompletedAt time.Time

	// TrackingID and SigningURL are set by document-delivery steps and act
	// as the idempotency artifact: a step holding a tracking id is never
	// re-sent, even after a crash mid-transition.
	TrackingID string
	SigningURL string

	// Err is the last recorded error for this step, if any.
	Err string
}

// StepRecord is the per-subject step-status record: the single source of
// truth for pipeline position. The engine derives "what to do next" from it
// and nothing else.
type StepRecord struct {
	Steps map[StepName]*StepState

	StartedAt   time.Time
	CompletedAt time.Time
	LastUpdated time.Time
}

// NewStepRecord returns a record with every pipeline step at not_started.
func NewStepRecord() StepRecord {
	steps := make(map[StepName]*StepState, len(StepOrder))
	for _, s := range StepOrder {
		steps[s] = &StepState{Status: StatusNotStarted}
	}
	return StepRecord{
		Steps:       steps,
		LastUpdated: time.Now(),
	}
}

// Step returns the state for the given step, creating a not_started entry
// if the record predates the step (e.g. after a schema extension).
func (r *StepRecord) Step(name StepName) *StepState {
	if r.Steps == nil {
		r.Steps = make(map[StepName]*StepState, len(StepOrder))
	}
	st, ok := r.Steps[name]
	if !ok {
		st = &StepState{Status: StatusNotStarted}
		r.Steps[name] = st
	}
	return st
}

// Progress returns the completed percentage over all pipeline steps,
// rounded to two decimals.
func (r *StepRecord) Progress() float64 {
	completed := 0
	for _, s := range StepOrder {
		if st, ok := r.Steps[s]; ok && st.Status == StatusCompleted {
			completed++
		}
	}
	return math.Round(float64(completed)/float64(TotalSteps)*100*100) / 100
}

// Terminal reports whether the pipeline reached its terminal marker.
// Failed final tasks do not clear it; provisioning is best-effort once all
// compliance gates are met.
func (r *StepRecord) Terminal() bool {
	return !r.CompletedAt.IsZero()
}

// Clone returns a deep copy of the record.
func (r *StepRecord) Clone() StepRecord {
	out := StepRecord{
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		LastUpdated: r.LastUpdated,
	}
	if r.Steps != nil {
		out.Steps = make(map[StepName]*StepState, len(r.Steps))
		for name, st := range r.Steps {
			copied := *st
			out.Steps[name] = &copied
		}
	}
	return out
}

// NewSubject creates a subject with an initialized step record.
func NewSubject(id, email, name, role, department, startDate string) *Subject {
	now := time.Now()
	return &Subject{
		ID:           id,
		Email:        email,
		Name:         name,
		Role:         role,
		Department:   department,
		StartDate:    startDate,
		Record:       NewStepRecord(),
		QuizAttempts: make(map[DocumentKind][]QuizAttempt),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks the profile fields required at enrollment time.
func (s *Subject) Validate() error {
	if s.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidEvent)
	}
	if _, err := mail.ParseAddress(s.Email); err != nil {
		return fmt.Errorf("%w: malformed email %q", ErrInvalidEvent, s.Email)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if s.StartDate != "" {
		if _, err := time.Parse("2006-01-02", s.StartDate); err != nil {
			return fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidEvent)
		}
	}
	return nil
}

// Clone returns a deep copy of the subject. Stores hand out clones so that
// callers can never mutate persisted state without going through an update.
func (s *Subject) Clone() *Subject {
	out := *s
	out.Record = s.Record.Clone()
	if s.QuizAttempts != nil {
		out.QuizAttempts = make(map[DocumentKind][]QuizAttempt, len(s.QuizAttempts))
		for k, attempts := range s.QuizAttempts {
			out.QuizAttempts[k] = append([]QuizAttempt(nil), attempts...)
		}
	}
	if s.EmailLog != nil {
		out.EmailLog = append([]EmailLogEntry(nil), s.EmailLog...)
	}
	return &out
}

// RecordAttempt appends a quiz attempt for the given kind.
func (s *Subject) RecordAttempt(kind DocumentKind, score int, passed bool) {
	if s.QuizAttempts == nil {
		s.QuizAttempts = make(map[DocumentKind][]QuizAttempt)
	}
	s.QuizAttempts[kind] = append(s.QuizAttempts[kind], QuizAttempt{
		Score:  score,
		Passed: passed,
		At:     time.Now(),
	})
}

// PassedQuiz reports whether any recorded attempt for kind passed.
func (s *Subject) PassedQuiz(kind DocumentKind) bool {
	for _, a := range s.QuizAttempts[kind] {
		if a.Passed {
			return true
		}
	}
	return false
}

// LogEmail appends a notification attempt to the subject's email log.
func (s *Subject) LogEmail(template, subjectLine string, sendErr error) {
	entry := EmailLogEntry{
		Template: template,
		Subject:  subjectLine,
		At:       time.Now(),
	}
	if sendErr != nil {
		entry.Err = sendErr.Error()
	}
	s.EmailLog = append(s.EmailLog, entry)
}
