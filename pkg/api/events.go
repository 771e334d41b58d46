package api

import "time"

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	EventSubjectEnrolled EventType = "subject.enrolled"

	EventWorkflowStarted   EventType = "workflow.started"
	EventWorkflowWaiting   EventType = "workflow.waiting"
	EventWorkflowCompleted EventType = "workflow.completed"
	EventWorkflowFailed    EventType = "workflow.failed"

	EventStepStarted   EventType = "step.started"
	EventStepCompleted EventType = "step.completed"
	EventStepFailed    EventType = "step.failed"

	EventWebhookDocument EventType = "webhook.document"
	EventWebhookQuiz     EventType = "webhook.quiz"

	EventEmailSent   EventType = "email.sent"
	EventEmailFailed EventType = "email.failed"
)

// Event is a single persisted lifecycle event. Events form the audit trail
// of a subject's run and are append-only.
type Event struct {
	// ID is assigned by the event store on append.
	ID int64

	SubjectID string
	At        time.Time
	Type      EventType

	// Step is set for step-scoped events and suspensions.
	Step StepName

	// Detail carries a short human-readable annotation, such as the
	// failing error text or the webhook payload summary.
	Detail string
}
