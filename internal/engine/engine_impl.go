package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/petrijr/aboard/internal/docsign"
	"github.com/petrijr/aboard/internal/mailer"
	"github.com/petrijr/aboard/internal/persistence"
	"github.com/petrijr/aboard/internal/taskqueue"
	"github.com/petrijr/aboard/pkg/api"
)

const (
	defaultCalendarURL = "https://calendly.com/hr-onboarding/30min"

	// defaultRemindAfter is how long a subject may sit at a quiz gate
	// before a reminder email is scheduled.
	defaultRemindAfter = 24 * time.Hour
)

// engineImpl drives the onboarding pipeline for enrolled subjects. All
// state lives in the subject store; the engine itself holds no cursor, so
// a restart loses nothing.
type engineImpl struct {
	subjects persistence.SubjectStore
	events   persistence.EventStore
	queue    taskqueue.Queue
	signer   docsign.Client
	mailer   mailer.Mailer
	observer api.Observer
	logger   *slog.Logger
	retry    api.RetryPolicy

	calendarURL string
	remindAfter time.Duration

	locks    subjectLocks
	handlers map[api.StepName]stepHandler
}

// Config describes how to construct an engine. Only used inside this
// package; external callers use the helper constructors.
type Config struct {
	Persistence persistence.Persistence

	// Queue receives advance and reminder tasks for asynchronous
	// processing by a worker. When nil the engine drives the pipeline
	// inline instead, which keeps the in-process setup self-contained.
	Queue taskqueue.Queue

	// Signer dispatches documents for signature. Defaults to the local
	// simulator.
	Signer docsign.Client

	// Mailer delivers onboarding emails. Defaults to logging them.
	Mailer mailer.Mailer

	Observer api.Observer
	Logger   *slog.Logger
	Retry    api.RetryPolicy

	// CalendarURL is the booking link sent with the call-schedule step.
	CalendarURL string

	// RemindAfter schedules a quiz reminder this long after a subject
	// parks at a quiz gate.
	RemindAfter time.Duration
}

// NewInMemoryEngine returns an engine with no external dependencies.
// Everything lives in process memory; useful for tests and demos.
func NewInMemoryEngine() api.Engine {
	return NewEngine(persistence.Persistence{
		Subjects: persistence.NewInMemoryStore(),
		Events:   persistence.NewInMemoryEventStore(),
	})
}

// NewSQLiteEngine returns an engine persisting subjects and events in the
// given SQLite database.
func NewSQLiteEngine(db *sql.DB) (api.Engine, error) {
	subjects, err := persistence.NewSQLiteSubjectStore(db)
	if err != nil {
		return nil, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngine(persistence.Persistence{
		Subjects: subjects,
		Events:   events,
	}), nil
}

// NewPostgresEngine returns an engine persisting subjects and events in
// the given Postgres database.
func NewPostgresEngine(db *sql.DB) (api.Engine, error) {
	subjects, err := persistence.NewPostgresSubjectStore(db)
	if err != nil {
		return nil, err
	}
	events, err := persistence.NewPostgresEventStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngine(persistence.Persistence{
		Subjects: subjects,
		Events:   events,
	}), nil
}

// NewRedisEngine returns an engine persisting subjects and events in Redis
// under the "aboard:" key prefix.
func NewRedisEngine(client *redis.Client) api.Engine {
	return NewEngine(persistence.Persistence{
		Subjects: persistence.NewRedisSubjectStore(client, "aboard:"),
		Events:   persistence.NewRedisEventStore(client, "aboard:"),
	})
}

// NewEngine returns an engine on the given stores with default wiring:
// simulated signing, logged email, inline advancing.
func NewEngine(p persistence.Persistence) api.Engine {
	return NewEngineWithConfig(Config{Persistence: p})
}

// NewEngineWithConfig creates an engine using the given configuration.
func NewEngineWithConfig(cfg Config) api.Engine {
	if cfg.Observer == nil {
		cfg.Observer = api.NoopObserver{}
	}
	if cfg.Signer == nil {
		cfg.Signer = &docsign.Simulator{}
	}
	if cfg.Mailer == nil {
		cfg.Mailer = mailer.NewLogMailer(cfg.Logger)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = api.DefaultRetryPolicy()
	}
	if cfg.Persistence.Events == nil {
		cfg.Persistence.Events = persistence.NoopEventStore{}
	}
	if cfg.CalendarURL == "" {
		cfg.CalendarURL = defaultCalendarURL
	}
	if cfg.RemindAfter <= 0 {
		cfg.RemindAfter = defaultRemindAfter
	}

	e := &engineImpl{
		subjects:    cfg.Persistence.Subjects,
		events:      cfg.Persistence.Events,
		queue:       cfg.Queue,
		signer:      cfg.Signer,
		mailer:      cfg.Mailer,
		observer:    cfg.Observer,
		logger:      cfg.Logger,
		retry:       cfg.Retry,
		calendarURL: cfg.CalendarURL,
		remindAfter: cfg.RemindAfter,
		locks:       subjectLocks{m: make(map[string]*sync.Mutex)},
	}
	e.handlers = e.buildHandlers()
	return e
}

var _ api.Engine = (*engineImpl)(nil)

// Enroll validates and stores a new subject. The pipeline does not move
// until Start is called.
func (e *engineImpl) Enroll(ctx context.Context, subj *api.Subject) error {
	if err := subj.Validate(); err != nil {
		return err
	}
	if subj.CreatedAt.IsZero() {
		subj.CreatedAt = time.Now().UTC()
	}
	subj.UpdatedAt = subj.CreatedAt
	if subj.Record.Steps == nil {
		subj.Record = api.NewStepRecord()
	}

	if err := e.subjects.SaveSubject(ctx, subj); err != nil {
		return fmt.Errorf("enroll: %w", err)
	}

	e.appendEvent(ctx, subj.ID, api.EventSubjectEnrolled, "", "email="+subj.Email)
	e.logger.InfoContext(ctx, "subject_enrolled",
		"subject_id", subj.ID,
		"department", subj.Department,
	)
	return nil
}

func (e *engineImpl) GetSubject(ctx context.Context, subjectID string) (*api.Subject, error) {
	return e.subjects.GetSubject(ctx, subjectID)
}

func (e *engineImpl) GetSubjectByToken(ctx context.Context, token string) (*api.Subject, error) {
	return e.subjects.GetSubjectByToken(ctx, token)
}

func (e *engineImpl) ListSubjects(ctx context.Context, filter api.SubjectFilter) ([]*api.Subject, error) {
	return e.subjects.ListSubjects(ctx, filter)
}

// Start enrolls the subject into the pipeline: it mints a fresh instance
// token, stamps started_at and hands the first pass to the worker. The
// token is returned immediately; the pipeline itself runs asynchronously
// unless the engine has no queue.
func (e *engineImpl) Start(ctx context.Context, subjectID string) (string, error) {
	token := "thread_" + uuid.NewString()

	subj, err := e.subjects.UpdateSubject(ctx, subjectID, func(s *api.Subject) error {
		s.InstanceToken = token
		if s.Record.StartedAt.IsZero() {
			s.Record.StartedAt = time.Now().UTC()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("start onboarding: %w", err)
	}

	e.appendEvent(ctx, subjectID, api.EventWorkflowStarted, "", "token="+token)
	e.observer.OnWorkflowStart(ctx, subj)

	if e.queue != nil {
		err := e.queue.Enqueue(ctx, taskqueue.Task{
			Type:      taskqueue.TaskTypeStart,
			SubjectID: subjectID,
		})
		if err != nil {
			return "", fmt.Errorf("start onboarding: enqueue: %w", err)
		}
		return token, nil
	}

	// No queue: run the start task inline.
	if err := e.SendWelcome(ctx, subjectID); err != nil {
		e.logger.WarnContext(ctx, "welcome_email_skipped", "subject_id", subjectID, "error", err)
	}
	if _, err := e.Advance(ctx, subjectID); err != nil {
		return token, err
	}
	return token, nil
}

// OnDocumentEvent records a document-status webhook. A "signed" assertion
// completes the matching signature gate, once; re-delivery of the same
// assertion changes nothing. The returned bool tells the caller whether
// the event touched a known subject.
func (e *engineImpl) OnDocumentEvent(ctx context.Context, ev api.DocumentEvent) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}

	gate := ev.Kind.SignedStep()

	var transitioned bool
	_, err := e.subjects.UpdateSubject(ctx, ev.SubjectID, func(s *api.Subject) error {
		if ev.Status != api.DocumentSigned {
			return nil
		}
		state := s.Record.Step(gate)
		if state.Status == api.StatusCompleted {
			return nil
		}
		now := time.Now().UTC()
		state.Status = api.StatusCompleted
		if state.StartedAt.IsZero() {
			state.StartedAt = now
		}
		state.CompletedAt = now
		state.Err = ""
		transitioned = true
		return nil
	})
	if err != nil {
		if errors.Is(err, persistence.ErrSubjectNotFound) {
			e.logger.InfoContext(ctx, "webhook_unknown_subject",
				"subject_id", ev.SubjectID, "kind", string(ev.Kind), "status", string(ev.Status))
			e.observer.OnWebhook(ctx, ev.SubjectID, "document", false)
			return false, nil
		}
		return false, err
	}

	e.observer.OnWebhook(ctx, ev.SubjectID, "document", true)

	// Re-delivery of an already-recorded assertion appends nothing.
	if transitioned {
		e.appendEvent(ctx, ev.SubjectID, api.EventWebhookDocument, gate,
			fmt.Sprintf("kind=%s status=%s", ev.Kind, ev.Status))
	}

	if ev.Status == api.DocumentSigned {
		if err := e.triggerAdvance(ctx, ev.SubjectID); err != nil {
			return true, err
		}
	}
	return true, nil
}

// OnQuizEvent records a quiz-result webhook. The attempt is appended to
// the subject's history whether or not it passed; a pass completes the
// matching quiz gate, once. A later failing attempt never revokes a pass.
func (e *engineImpl) OnQuizEvent(ctx context.Context, ev api.QuizEvent) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}

	gate := ev.Kind.QuizStep()

	_, err := e.subjects.UpdateSubject(ctx, ev.SubjectID, func(s *api.Subject) error {
		s.RecordAttempt(ev.Kind, ev.Score, ev.Passed)

		state := s.Record.Step(gate)
		if !ev.Passed || state.Status == api.StatusCompleted {
			return nil
		}
		now := time.Now().UTC()
		state.Status = api.StatusCompleted
		if state.StartedAt.IsZero() {
			state.StartedAt = now
		}
		state.CompletedAt = now
		state.Err = ""
		return nil
	})
	if err != nil {
		if errors.Is(err, persistence.ErrSubjectNotFound) {
			e.logger.InfoContext(ctx, "webhook_unknown_subject",
				"subject_id", ev.SubjectID, "kind", string(ev.Kind), "score", ev.Score)
			e.observer.OnWebhook(ctx, ev.SubjectID, "quiz", false)
			return false, nil
		}
		return false, err
	}

	e.observer.OnWebhook(ctx, ev.SubjectID, "quiz", true)

	e.appendEvent(ctx, ev.SubjectID, api.EventWebhookQuiz, gate,
		fmt.Sprintf("kind=%s score=%d passed=%t", ev.Kind, ev.Score, ev.Passed))

	if ev.Passed {
		if err := e.triggerAdvance(ctx, ev.SubjectID); err != nil {
			return true, err
		}
	}
	return true, nil
}

// RecoverStale sweeps the store for subjects stranded mid-step by a crash:
// any step still marked in_progress is flipped to retry and the subject is
// handed back to the worker. Returns the number of subjects re-enqueued.
func (e *engineImpl) RecoverStale(ctx context.Context) (int, error) {
	subjects, err := e.subjects.ListSubjects(ctx, api.SubjectFilter{})
	if err != nil {
		return 0, fmt.Errorf("recover stale: %w", err)
	}

	recovered := 0
	for _, subj := range subjects {
		if subj.InstanceToken == "" || subj.Record.Terminal() {
			continue
		}

		stale := false
		for _, state := range subj.Record.Steps {
			if state.Status == api.StatusInProgress || state.Status == api.StatusRetry {
				stale = true
				break
			}
		}
		if !stale {
			continue
		}

		id := subj.ID
		_, err := e.subjects.UpdateSubject(ctx, id, func(s *api.Subject) error {
			for _, state := range s.Record.Steps {
				if state.Status == api.StatusInProgress {
					state.Status = api.StatusRetry
				}
			}
			return nil
		})
		if err != nil {
			return recovered, fmt.Errorf("recover stale: subject %s: %w", id, err)
		}

		if err := e.triggerAdvance(ctx, id); err != nil {
			return recovered, err
		}
		recovered++

		e.logger.InfoContext(ctx, "recovered_stale_subject", "subject_id", id)
	}
	return recovered, nil
}

// SendWelcome delivers the enrollment email. Delivery failures are
// recorded on the subject's email log and otherwise swallowed.
func (e *engineImpl) SendWelcome(ctx context.Context, subjectID string) error {
	subj, err := e.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}

	e.deliverEmail(ctx, subj, mailer.TemplateWelcome, mailer.TemplateData{
		Name:       subj.Name,
		Role:       subj.Role,
		Department: subj.Department,
	})
	return nil
}

// SendReminder nudges a subject still parked at a quiz gate. If the gate
// has been passed in the meantime the reminder is dropped.
func (e *engineImpl) SendReminder(ctx context.Context, subjectID string, step api.StepName) error {
	subj, err := e.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}

	kind, ok := api.DocumentForStep(step)
	if !ok || step != kind.QuizStep() {
		return nil
	}
	if subj.Record.Step(step).Status != api.StatusWaiting {
		return nil
	}

	e.deliverEmail(ctx, subj, mailer.TemplateQuizReminder, mailer.TemplateData{
		Name:     subj.Name,
		Document: kind.DisplayName(),
	})
	return nil
}

// triggerAdvance hands the subject to the worker, or advances inline when
// the engine runs without a queue.
func (e *engineImpl) triggerAdvance(ctx context.Context, subjectID string) error {
	if e.queue != nil {
		return e.queue.Enqueue(ctx, taskqueue.Task{
			Type:      taskqueue.TaskTypeAdvance,
			SubjectID: subjectID,
		})
	}
	_, err := e.Advance(ctx, subjectID)
	return err
}

// deliverEmail composes and sends one templated email, records the outcome
// on the subject's email log and emits the matching event. Notification
// failures never fail the pipeline; they are logged and recorded only.
func (e *engineImpl) deliverEmail(ctx context.Context, subj *api.Subject, template string, data mailer.TemplateData) {
	msg, err := mailer.Compose(template, subj.Email, data)
	if err != nil {
		e.logger.ErrorContext(ctx, "email_compose_failed", "template", template, "error", err)
		return
	}

	sendErr := e.mailer.Send(ctx, msg)

	_, _ = e.subjects.UpdateSubject(ctx, subj.ID, func(s *api.Subject) error {
		s.LogEmail(template, msg.Subject, sendErr)
		return nil
	})

	if sendErr != nil {
		e.appendEvent(ctx, subj.ID, api.EventEmailFailed, "",
			fmt.Sprintf("template=%s error=%v", template, sendErr))
		e.logger.WarnContext(ctx, "email_send_failed",
			"subject_id", subj.ID, "template", template, "error", sendErr)
		return
	}
	e.appendEvent(ctx, subj.ID, api.EventEmailSent, "", "template="+template)
}

// appendEvent records an audit event, best-effort.
func (e *engineImpl) appendEvent(ctx context.Context, subjectID string, typ api.EventType, step api.StepName, detail string) {
	_ = e.events.AppendEvent(ctx, api.Event{
		SubjectID: subjectID,
		At:        time.Now().UTC(),
		Type:      typ,
		Step:      step,
		Detail:    detail,
	})
}

// subjectLocks serializes advance passes per subject. Two concurrent
// triggers for the same subject queue up; triggers for different subjects
// never contend.
type subjectLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *subjectLocks) lock(id string) *sync.Mutex {
	l.mu.Lock()
	m, ok := l.m[id]
	if !ok {
		m = &sync.Mutex{}
		l.m[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m
}
