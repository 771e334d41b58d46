package api

import (
	"context"
	"errors"
)

// ErrPreconditionViolated is returned when a step is asked to fire while a
// predecessor step is not completed. With correct ordering inside Advance
// this cannot happen; it is asserted at every step boundary anyway.
var ErrPreconditionViolated = errors.New("step precondition violated")

// Outcome classifies the result of one Advance pass.
type Outcome string

const (
	// OutcomeAdvanced means at least one step completed and the pipeline
	// can keep moving; callers should call Advance again.
	OutcomeAdvanced Outcome = "advanced"

	// OutcomeSuspended means the pipeline parked at a gate that needs an
	// external event; no polling, control returns to the caller.
	OutcomeSuspended Outcome = "suspended"

	// OutcomeCompleted means the terminal marker is set.
	OutcomeCompleted Outcome = "completed"

	// OutcomeFailed means a step exhausted its retry budget; Err carries
	// the final error.
	OutcomeFailed Outcome = "failed"
)

// AdvanceResult is the tagged result of an Advance pass. Suspension and
// failure are ordinary values here, not sentinel errors threaded through
// the call stack.
type AdvanceResult struct {
	Outcome Outcome

	// Step is the step the pass stopped at: the gate for a suspension,
	// the failed step for a failure, the last completed step otherwise.
	Step StepName

	// Err is set only when Outcome is OutcomeFailed.
	Err error
}

// Engine drives subjects through the onboarding pipeline.
type Engine interface {
	// Enroll validates and stores a new subject. It does not start the
	// workflow; pair it with Start.
	Enroll(ctx context.Context, subj *Subject) error

	// Start enrolls the subject into the workflow, assigns a fresh
	// instance token and returns it. With a queue configured the first
	// pass is handed to the worker and Start returns immediately;
	// without one the pass runs inline before Start returns.
	Start(ctx context.Context, subjectID string) (string, error)

	// Advance runs the pipeline from the position derived from the
	// persisted step record until it suspends, completes or fails.
	// Calling it on a parked or finished subject is safe and changes
	// nothing.
	Advance(ctx context.Context, subjectID string) (AdvanceResult, error)

	// OnDocumentEvent applies a provider callback about a document
	// envelope. It reports whether the event matched a known subject.
	OnDocumentEvent(ctx context.Context, ev DocumentEvent) (bool, error)

	// OnQuizEvent records a quiz attempt and, on a pass, unblocks the
	// corresponding gate. It reports whether the event matched a known
	// subject.
	OnQuizEvent(ctx context.Context, ev QuizEvent) (bool, error)

	// GetSubject fetches a subject by ID.
	GetSubject(ctx context.Context, subjectID string) (*Subject, error)

	// GetSubjectByToken resolves the subject holding the given workflow
	// instance token.
	GetSubjectByToken(ctx context.Context, token string) (*Subject, error)

	// ListSubjects returns subjects matching the filter.
	ListSubjects(ctx context.Context, filter SubjectFilter) ([]*Subject, error)

	// SendWelcome delivers the enrollment welcome notification.
	SendWelcome(ctx context.Context, subjectID string) error

	// SendReminder nudges a subject parked at the given quiz gate. If the
	// gate has completed in the meantime the reminder is dropped.
	SendReminder(ctx context.Context, subjectID string, step StepName) error

	// RecoverStale scans for subjects stranded in_progress by a crash,
	// flips those steps to retry and re-enqueues them. It returns the
	// number of subjects recovered.
	RecoverStale(ctx context.Context) (int, error)
}
