package api

import (
	"errors"
	"fmt"
	"time"
)

// StepStatus represents the lifecycle state of a single onboarding step.
type StepStatus string

const (
	StatusNotStarted StepStatus = "not_started"
	StatusInProgress StepStatus = "in_progress"
	StatusWaiting    StepStatus = "waiting"
	StatusCompleted  StepStatus = "completed"
	StatusFailed     StepStatus = "failed"
	StatusRetry      StepStatus = "retry"
)

// StepName identifies one step of the onboarding pipeline.
type StepName string

const (
	StepPolicySent           StepName = "policy_sent"
	StepPolicySigned         StepName = "policy_signed"
	StepPolicyQuizPassed     StepName = "policy_quiz_passed"
	StepNDASent              StepName = "nda_sent"
	StepNDASigned            StepName = "nda_signed"
	StepNDAQuizPassed        StepName = "nda_quiz_passed"
	StepGuidelinesSent       StepName = "guidelines_sent"
	StepGuidelinesSigned     StepName = "guidelines_signed"
	StepGuidelinesQuizPassed StepName = "guidelines_quiz_passed"
	StepSlackInvite          StepName = "slack_invite"
	StepJiraAccess           StepName = "jira_access"
	StepCallSchedule         StepName = "call_schedule"
)

// StepOrder is the fixed precedence order of the pipeline. The first nine
// steps are strictly linear; the last three are unordered among themselves
// and run as a concurrent fan-out once everything before them is completed.
var StepOrder = []StepName{
	StepPolicySent,
	StepPolicySigned,
	StepPolicyQuizPassed,
	StepNDASent,
	StepNDASigned,
	StepNDAQuizPassed,
	StepGuidelinesSent,
	StepGuidelinesSigned,
	StepGuidelinesQuizPassed,
	StepSlackInvite,
	StepJiraAccess,
	StepCallSchedule,
}

// FinalSteps are the terminal provisioning steps executed concurrently.
var FinalSteps = []StepName{StepSlackInvite, StepJiraAccess, StepCallSchedule}

// TotalSteps is the number of steps in the pipeline.
const TotalSteps = 12

// stepIndex maps each step to its position in StepOrder.
var stepIndex = func() map[StepName]int {
	m := make(map[StepName]int, len(StepOrder))
	for i, s := range StepOrder {
		m[s] = i
	}
	return m
}()

// StepIndex returns the position of step in StepOrder, or -1 for an
// unknown step name.
func StepIndex(step StepName) int {
	if i, ok := stepIndex[step]; ok {
		return i
	}
	return -1
}

// IsFinalStep reports whether step is one of the unordered terminal steps.
func IsFinalStep(step StepName) bool {
	return step == StepSlackInvite || step == StepJiraAccess || step == StepCallSchedule
}

// IsGateStep reports whether step completes only via an external event
// (a signature or a passing quiz result) rather than by executing a
// side effect.
func IsGateStep(step StepName) bool {
	switch step {
	case StepPolicySigned, StepPolicyQuizPassed,
		StepNDASigned, StepNDAQuizPassed,
		StepGuidelinesSigned, StepGuidelinesQuizPassed:
		return true
	}
	return false
}

// DocumentKind identifies one of the three onboarding documents. The same
// values identify the comprehension quiz attached to each document.
type DocumentKind string

const (
	DocumentPolicy     DocumentKind = "policy"
	DocumentNDA        DocumentKind = "nda"
	DocumentGuidelines DocumentKind = "guidelines"
)

// DocumentKinds lists all valid document kinds in pipeline order.
var DocumentKinds = []DocumentKind{DocumentPolicy, DocumentNDA, DocumentGuidelines}

// Valid reports whether k is a known document kind.
func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentPolicy, DocumentNDA, DocumentGuidelines:
		return true
	}
	return false
}

// SentStep returns the document-delivery step for k.
func (k DocumentKind) SentStep() StepName { return StepName(string(k) + "_sent") }

// SignedStep returns the signature gate step for k.
func (k DocumentKind) SignedStep() StepName { return StepName(string(k) + "_signed") }

// QuizStep returns the quiz gate step for k.
func (k DocumentKind) QuizStep() StepName { return StepName(string(k) + "_quiz_passed") }

// DisplayName returns the human-readable document title, used in email
// bodies and signing requests.
func (k DocumentKind) DisplayName() string {
	switch k {
	case DocumentPolicy:
		return "Company Policy"
	case DocumentNDA:
		return "NDA"
	case DocumentGuidelines:
		return "Development Guidelines"
	}
	return string(k)
}

// DocumentForStep returns the document kind a step belongs to.
// Final provisioning steps belong to no document and return ok=false.
func DocumentForStep(step StepName) (DocumentKind, bool) {
	switch step {
	case StepPolicySent, StepPolicySigned, StepPolicyQuizPassed:
		return DocumentPolicy, true
	case StepNDASent, StepNDASigned, StepNDAQuizPassed:
		return DocumentNDA, true
	case StepGuidelinesSent, StepGuidelinesSigned, StepGuidelinesQuizPassed:
		return DocumentGuidelines, true
	}
	return "", false
}

// DocumentStatus is the assertion carried by a document webhook.
type DocumentStatus string

const (
	DocumentSent   DocumentStatus = "sent"
	DocumentSigned DocumentStatus = "signed"
)

// ErrInvalidEvent marks a webhook payload that failed validation. Handlers
// should map it to a client error and must not mutate any state.
var ErrInvalidEvent = errors.New("invalid event")

// DocumentEvent is an inbound document-status assertion, typically delivered
// by the e-signature service's webhook.
type DocumentEvent struct {
	SubjectID string
	Kind      DocumentKind
	Status    DocumentStatus
}

// Validate checks that all required fields are present and well-formed.
func (e DocumentEvent) Validate() error {
	if e.SubjectID == "" {
		return fmt.Errorf("%w: subject_id is required", ErrInvalidEvent)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown document_kind %q", ErrInvalidEvent, string(e.Kind))
	}
	if e.Status != DocumentSent && e.Status != DocumentSigned {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, string(e.Status))
	}
	return nil
}

// QuizEvent is an inbound quiz-result assertion. Every delivery appends an
// attempt record; only Passed=true satisfies the quiz gate.
type QuizEvent struct {
	SubjectID string
	Kind      DocumentKind
	Score     int
	Passed    bool
}

// Validate checks that all required fields are present and well-formed.
func (e QuizEvent) Validate() error {
	if e.SubjectID == "" {
		return fmt.Errorf("%w: subject_id is required", ErrInvalidEvent)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown quiz_kind %q", ErrInvalidEvent, string(e.Kind))
	}
	if e.Score < 0 || e.Score > 100 {
		return fmt.Errorf("%w: score %d out of range", ErrInvalidEvent, e.Score)
	}
	return nil
}

// RetryPolicy controls how an action step is retried when its side effect
// returns an error. MaxAttempts includes the first attempt:
//
//	MaxAttempts = 1 => no retries (just the initial call)
//	MaxAttempts = 3 => initial call + up to 2 retries
//
// Only transient side-effect failures consume attempts; gate steps never
// retry because they perform no side effect.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryPolicy returns the retry budget applied to action steps when
// the engine is not configured with an explicit policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}
