package aboard

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/aboard/internal/engine"
	"github.com/petrijr/aboard/internal/persistence"
	"github.com/petrijr/aboard/internal/taskqueue"
	"github.com/petrijr/aboard/pkg/api"
	"github.com/redis/go-redis/v9"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	Subject              = api.Subject
	SubjectFilter        = api.SubjectFilter
	StepRecord           = api.StepRecord
	StepState            = api.StepState
	StepName             = api.StepName
	StepStatus           = api.StepStatus
	QuizAttempt          = api.QuizAttempt
	AdvanceResult        = api.AdvanceResult
	Outcome              = api.Outcome
	DocumentEvent        = api.DocumentEvent
	QuizEvent            = api.QuizEvent
	DocumentKind         = api.DocumentKind
	Event                = api.Event
	EventType            = api.EventType
	RetryPolicy          = api.RetryPolicy
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common helpers.

var (
	NewSubject           = api.NewSubject
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
	DefaultRetryPolicy   = api.DefaultRetryPolicy
)

// Re-export step status values for convenience.

const (
	StatusNotStarted = api.StatusNotStarted
	StatusInProgress = api.StatusInProgress
	StatusWaiting    = api.StatusWaiting
	StatusCompleted  = api.StatusCompleted
	StatusFailed     = api.StatusFailed
	StatusRetry      = api.StatusRetry
)

// Re-export advance outcomes.

const (
	OutcomeAdvanced  = api.OutcomeAdvanced
	OutcomeSuspended = api.OutcomeSuspended
	OutcomeCompleted = api.OutcomeCompleted
	OutcomeFailed    = api.OutcomeFailed
)

// Re-export document envelope statuses reported by webhooks.

const (
	DocumentSent   = api.DocumentSent
	DocumentSigned = api.DocumentSigned
)

// Options tunes an engine beyond its storage backend. The zero value
// matches the defaults used by the plain constructors.
type Options struct {
	// Observer receives lifecycle callbacks. Defaults to a no-op.
	Observer Observer

	// Retry is the per-step retry budget for action steps.
	Retry RetryPolicy

	// CalendarURL is the booking link sent with the call-schedule step.
	CalendarURL string

	// RemindAfter schedules a quiz reminder this long after a subject
	// parks at a quiz gate. Only applies to queue-backed setups.
	RemindAfter time.Duration
}

func (o Options) config(p persistence.Persistence, q taskqueue.Queue) engine.Config {
	return engine.Config{
		Persistence: p,
		Queue:       q,
		Observer:    o.Observer,
		Retry:       o.Retry,
		CalendarURL: o.CalendarURL,
		RemindAfter: o.RemindAfter,
	}
}

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewInMemoryEngineWithOptions returns an in-memory Engine with the given
// options applied.
func NewInMemoryEngineWithOptions(opts Options) Engine {
	return engine.NewEngineWithConfig(opts.config(persistence.Persistence{
		Subjects: persistence.NewInMemoryStore(),
		Events:   persistence.NewInMemoryEventStore(),
	}, nil))
}

// NewSQLiteEngine returns an Engine that persists subjects and their audit
// trail in a SQLite database.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(db)
}

// NewSQLiteEngineWithOptions returns a SQLite-backed Engine with the given
// options applied.
func NewSQLiteEngineWithOptions(db *sql.DB, opts Options) (Engine, error) {
	p, err := sqlitePersistence(db)
	if err != nil {
		return nil, err
	}
	return engine.NewEngineWithConfig(opts.config(p, nil)), nil
}

// NewPostgresEngine returns an Engine that persists subjects in PostgreSQL.
func NewPostgresEngine(db *sql.DB) (Engine, error) {
	return engine.NewPostgresEngine(db)
}

// NewPostgresEngineWithOptions returns a Postgres-backed Engine with the
// given options applied.
func NewPostgresEngineWithOptions(db *sql.DB, opts Options) (Engine, error) {
	p, err := postgresPersistence(db)
	if err != nil {
		return nil, err
	}
	return engine.NewEngineWithConfig(opts.config(p, nil)), nil
}

// NewRedisEngine returns an Engine that persists subjects in Redis.
func NewRedisEngine(client *redis.Client) Engine {
	return engine.NewRedisEngine(client)
}

// NewRedisEngineWithOptions returns a Redis-backed Engine with the given
// options applied.
func NewRedisEngineWithOptions(client *redis.Client, opts Options) Engine {
	return engine.NewEngineWithConfig(opts.config(redisPersistence(client), nil))
}

// NewInMemoryQueue returns the process-local task queue used by LocalRunner
// and the worker examples.
func NewInMemoryQueue(capacity int) taskqueue.Queue {
	return taskqueue.NewInMemoryQueue(capacity)
}

func sqlitePersistence(db *sql.DB) (persistence.Persistence, error) {
	subjects, err := persistence.NewSQLiteSubjectStore(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	return persistence.Persistence{Subjects: subjects, Events: events}, nil
}

func postgresPersistence(db *sql.DB) (persistence.Persistence, error) {
	subjects, err := persistence.NewPostgresSubjectStore(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	events, err := persistence.NewPostgresEventStore(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	return persistence.Persistence{Subjects: subjects, Events: events}, nil
}

func redisPersistence(client *redis.Client) persistence.Persistence {
	return persistence.Persistence{
		Subjects: persistence.NewRedisSubjectStore(client, "aboard:"),
		Events:   persistence.NewRedisEventStore(client, "aboard:"),
	}
}

// Convenience helpers that just forward to the underlying Engine.

// Enroll validates and stores a new subject.
func Enroll(ctx context.Context, eng Engine, subj *Subject) error {
	return eng.Enroll(ctx, subj)
}

// StartOnboarding starts the onboarding workflow for an enrolled subject
// and returns its instance token.
func StartOnboarding(ctx context.Context, eng Engine, subjectID string) (string, error) {
	return eng.Start(ctx, subjectID)
}

// Advance runs one pipeline pass for the subject.
func Advance(ctx context.Context, eng Engine, subjectID string) (AdvanceResult, error) {
	return eng.Advance(ctx, subjectID)
}

// GetSubject fetches a subject by ID.
func GetSubject(ctx context.Context, eng Engine, subjectID string) (*Subject, error) {
	return eng.GetSubject(ctx, subjectID)
}

// GetSubjectByToken resolves a subject from its workflow instance token.
func GetSubjectByToken(ctx context.Context, eng Engine, token string) (*Subject, error) {
	return eng.GetSubjectByToken(ctx, token)
}

// ListSubjects lists subjects matching the filter.
func ListSubjects(ctx context.Context, eng Engine, filter SubjectFilter) ([]*Subject, error) {
	return eng.ListSubjects(ctx, filter)
}

// RecoverStale delegates to eng.RecoverStale.
//
// It is typically called on process startup before starting any workers:
//
//	count, err := aboard.RecoverStale(ctx, engine)
func RecoverStale(ctx context.Context, eng Engine) (int, error) {
	return eng.RecoverStale(ctx)
}
