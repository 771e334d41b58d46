// Package metrics exports engine lifecycle events as Prometheus metrics.
//
// PromObserver implements api.Observer; attach it to an engine (alone or via
// api.NewCompositeObserver) and serve Handler() on /metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petrijr/aboard/pkg/api"
)

// PromObserver collects workflow and step counters plus a step-duration
// histogram. Each observer owns its registry, so multiple engines in one
// process never collide on metric registration.
type PromObserver struct {
	api.NoopObserver

	registry *prometheus.Registry

	workflowsStarted   prometheus.Counter
	workflowsCompleted prometheus.Counter
	workflowsFailed    prometheus.Counter
	stepsCompleted     *prometheus.CounterVec
	stepsFailed        *prometheus.CounterVec
	webhooks           *prometheus.CounterVec
	stepDuration       prometheus.Histogram
}

var _ api.Observer = (*PromObserver)(nil)

// NewPromObserver creates a PromObserver with a fresh registry.
func NewPromObserver() *PromObserver {
	o := &PromObserver{
		registry: prometheus.NewRegistry(),
		workflowsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aboard_workflows_started_total",
			Help: "Onboarding workflows started.",
		}),
		workflowsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aboard_workflows_completed_total",
			Help: "Onboarding workflows that reached the terminal state.",
		}),
		workflowsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aboard_workflows_failed_total",
			Help: "Onboarding workflows halted by an exhausted step.",
		}),
		stepsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aboard_steps_completed_total",
			Help: "Pipeline steps completed successfully.",
		}, []string{"step"}),
		stepsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aboard_steps_failed_total",
			Help: "Pipeline step attempts that settled with an error.",
		}, []string{"step"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aboard_webhooks_total",
			Help: "Webhook deliveries accepted by the engine.",
		}, []string{"kind"}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aboard_step_duration_seconds",
			Help:    "Wall-clock duration of pipeline step side effects.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	o.registry.MustRegister(
		o.workflowsStarted,
		o.workflowsCompleted,
		o.workflowsFailed,
		o.stepsCompleted,
		o.stepsFailed,
		o.webhooks,
		o.stepDuration,
	)
	return o
}

// Handler returns the /metrics exposition handler for this observer's
// registry.
func (o *PromObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry so callers can register their own
// collectors alongside the engine's.
func (o *PromObserver) Registry() *prometheus.Registry {
	return o.registry
}

func (o *PromObserver) OnWorkflowStart(ctx context.Context, subj *api.Subject) {
	o.workflowsStarted.Inc()
}

func (o *PromObserver) OnWorkflowCompleted(ctx context.Context, subj *api.Subject) {
	o.workflowsCompleted.Inc()
}

func (o *PromObserver) OnWorkflowFailed(ctx context.Context, subj *api.Subject, step api.StepName, err error) {
	o.workflowsFailed.Inc()
}

func (o *PromObserver) OnStepCompleted(ctx context.Context, subj *api.Subject, step api.StepName, err error, d time.Duration) {
	if err != nil {
		o.stepsFailed.WithLabelValues(string(step)).Inc()
		return
	}
	o.stepsCompleted.WithLabelValues(string(step)).Inc()
	o.stepDuration.Observe(d.Seconds())
}

func (o *PromObserver) OnWebhook(ctx context.Context, subjectID string, kind string, processed bool) {
	o.webhooks.WithLabelValues(kind).Inc()
}
