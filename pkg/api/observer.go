package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the onboarding engine for logging and
// metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay pipeline execution.
type Observer interface {
	// OnWorkflowStart is called once when a subject's workflow is first
	// started, before the first step is executed.
	OnWorkflowStart(ctx context.Context, subj *Subject)

	// OnWorkflowSuspended is called when a pass parks at a gate step and
	// returns control to the caller.
	OnWorkflowSuspended(ctx context.Context, subj *Subject, step StepName)

	// OnWorkflowCompleted is called when the terminal marker is set.
	OnWorkflowCompleted(ctx context.Context, subj *Subject)

	// OnWorkflowFailed is called when a step exhausts its retry budget and
	// the pipeline halts.
	OnWorkflowFailed(ctx context.Context, subj *Subject, step StepName, err error)

	// OnStepStart is called before a step's side effect runs.
	OnStepStart(ctx context.Context, subj *Subject, step StepName)

	// OnStepCompleted is called after a step settles, for both successes
	// and failures (err != nil).
	OnStepCompleted(ctx context.Context, subj *Subject, step StepName, err error, duration time.Duration)

	// OnWebhook is called for every webhook delivery the engine accepts,
	// after the subject has been resolved. kind is "document" or "quiz";
	// processed is false when the subject is unknown.
	OnWebhook(ctx context.Context, subjectID string, kind string, processed bool)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnWorkflowStart(ctx context.Context, subj *Subject)                      {}
func (NoopObserver) OnWorkflowSuspended(ctx context.Context, subj *Subject, step StepName)   {}
func (NoopObserver) OnWorkflowCompleted(ctx context.Context, subj *Subject)                  {}
func (NoopObserver) OnWorkflowFailed(ctx context.Context, subj *Subject, s StepName, e error) {
}
func (NoopObserver) OnStepStart(ctx context.Context, subj *Subject, step StepName) {}
func (NoopObserver) OnStepCompleted(ctx context.Context, subj *Subject, step StepName, err error, d time.Duration) {
}
func (NoopObserver) OnWebhook(ctx context.Context, subjectID string, kind string, processed bool) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnWorkflowStart(ctx context.Context, subj *Subject) {
	for _, o := range c.observers {
		o.OnWorkflowStart(ctx, subj)
	}
}

func (c *CompositeObserver) OnWorkflowSuspended(ctx context.Context, subj *Subject, step StepName) {
	for _, o := range c.observers {
		o.OnWorkflowSuspended(ctx, subj, step)
	}
}

func (c *CompositeObserver) OnWorkflowCompleted(ctx context.Context, subj *Subject) {
	for _, o := range c.observers {
		o.OnWorkflowCompleted(ctx, subj)
	}
}

func (c *CompositeObserver) OnWorkflowFailed(ctx context.Context, subj *Subject, step StepName, err error) {
	for _, o := range c.observers {
		o.OnWorkflowFailed(ctx, subj, step, err)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, subj *Subject, step StepName) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, subj, step)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, subj *Subject, step StepName, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, subj, step, err, d)
	}
}

func (c *CompositeObserver) OnWebhook(ctx context.Context, subjectID string, kind string, processed bool) {
	for _, o := range c.observers {
		o.OnWebhook(ctx, subjectID, kind, processed)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs workflow / step lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnWorkflowStart(ctx context.Context, subj *Subject) {
	o.Logger.InfoContext(ctx, "workflow_start",
		slog.String("subject_id", subj.ID),
		slog.String("token", subj.InstanceToken),
	)
}

func (o *LoggingObserver) OnWorkflowSuspended(ctx context.Context, subj *Subject, step StepName) {
	o.Logger.InfoContext(ctx, "workflow_waiting",
		slog.String("subject_id", subj.ID),
		slog.String("step", string(step)),
	)
}

func (o *LoggingObserver) OnWorkflowCompleted(ctx context.Context, subj *Subject) {
	o.Logger.InfoContext(ctx, "workflow_completed",
		slog.String("subject_id", subj.ID),
		slog.String("token", subj.InstanceToken),
	)
}

func (o *LoggingObserver) OnWorkflowFailed(ctx context.Context, subj *Subject, step StepName, err error) {
	o.Logger.ErrorContext(ctx, "workflow_failed",
		slog.String("subject_id", subj.ID),
		slog.String("step", string(step)),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, subj *Subject, step StepName) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("subject_id", subj.ID),
		slog.String("step", string(step)),
		slog.Int("step_index", StepIndex(step)),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, subj *Subject, step StepName, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_completed",
		slog.String("subject_id", subj.ID),
		slog.String("step", string(step)),
		slog.Int("step_index", StepIndex(step)),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnWebhook(ctx context.Context, subjectID string, kind string, processed bool) {
	o.Logger.InfoContext(ctx, "webhook_received",
		slog.String("subject_id", subjectID),
		slog.String("kind", kind),
		slog.Bool("processed", processed),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	workflowsStarted   atomic.Int64
	workflowsSuspended atomic.Int64
	workflowsCompleted atomic.Int64
	workflowsFailed    atomic.Int64
	stepsCompleted     atomic.Int64
	totalStepDuration  atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	WorkflowsStarted   int64
	WorkflowsSuspended int64
	WorkflowsCompleted int64
	WorkflowsFailed    int64
	PendingWorkflows   int64

	StepsCompleted  int64
	AvgStepDuration time.Duration
}

func (m *BasicMetrics) OnWorkflowStart(ctx context.Context, subj *Subject) {
	m.workflowsStarted.Add(1)
}

func (m *BasicMetrics) OnWorkflowSuspended(ctx context.Context, subj *Subject, step StepName) {
	m.workflowsSuspended.Add(1)
}

func (m *BasicMetrics) OnWorkflowCompleted(ctx context.Context, subj *Subject) {
	m.workflowsCompleted.Add(1)
}

func (m *BasicMetrics) OnWorkflowFailed(ctx context.Context, subj *Subject, step StepName, err error) {
	m.workflowsFailed.Add(1)
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, subj *Subject, step StepName, err error, d time.Duration) {
	// Only count successful steps for average duration.
	if err == nil {
		m.stepsCompleted.Add(1)
		m.totalStepDuration.Add(d.Nanoseconds())
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.workflowsStarted.Load()
	suspended := m.workflowsSuspended.Load()
	completed := m.workflowsCompleted.Load()
	failed := m.workflowsFailed.Load()
	steps := m.stepsCompleted.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		WorkflowsStarted:   started,
		WorkflowsSuspended: suspended,
		WorkflowsCompleted: completed,
		WorkflowsFailed:    failed,
		PendingWorkflows:   started - completed - failed,
		StepsCompleted:     steps,
		AvgStepDuration:    avg,
	}
}
