package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/petrijr/aboard/pkg/api"
)

func TestPromObserverCountsLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	o := NewPromObserver()

	subj := api.NewSubject("emp-1", "priya@example.com", "Priya Sharma", "Backend Engineer", "Engineering", "2026-09-01")

	o.OnWorkflowStart(ctx, subj)
	o.OnWorkflowStart(ctx, subj)
	o.OnWorkflowCompleted(ctx, subj)
	o.OnWorkflowFailed(ctx, subj, api.StepNDASent, errors.New("send failed"))

	o.OnStepCompleted(ctx, subj, api.StepPolicySent, nil, 20*time.Millisecond)
	o.OnStepCompleted(ctx, subj, api.StepPolicySent, nil, 30*time.Millisecond)
	o.OnStepCompleted(ctx, subj, api.StepNDASent, errors.New("send failed"), 5*time.Millisecond)

	o.OnWebhook(ctx, "emp-1", "document", true)
	o.OnWebhook(ctx, "emp-1", "quiz", true)
	o.OnWebhook(ctx, "emp-404", "quiz", false)

	if got := testutil.ToFloat64(o.workflowsStarted); got != 2 {
		t.Fatalf("workflows started = %v, want 2", got)
	}
	if got := testutil.ToFloat64(o.workflowsCompleted); got != 1 {
		t.Fatalf("workflows completed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.workflowsFailed); got != 1 {
		t.Fatalf("workflows failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.stepsCompleted.WithLabelValues(string(api.StepPolicySent))); got != 2 {
		t.Fatalf("policy_sent completions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(o.stepsFailed.WithLabelValues(string(api.StepNDASent))); got != 1 {
		t.Fatalf("nda_sent failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.webhooks.WithLabelValues("quiz")); got != 2 {
		t.Fatalf("quiz webhooks = %v, want 2", got)
	}

	// A failed step must not feed the duration histogram.
	var dm dto.Metric
	if err := o.stepDuration.Write(&dm); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if got := dm.GetHistogram().GetSampleCount(); got != 2 {
		t.Fatalf("duration samples = %d, want 2", got)
	}
}

func TestPromObserverHandlerServesExposition(t *testing.T) {
	ctx := context.Background()
	o := NewPromObserver()
	subj := api.NewSubject("emp-1", "jo@example.com", "Jo Reyes", "Product Designer", "Product", "2026-09-15")
	o.OnWorkflowStart(ctx, subj)
	o.OnStepCompleted(ctx, subj, api.StepPolicySent, nil, 15*time.Millisecond)

	srv := httptest.NewServer(o.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, metric := range []string{
		"aboard_workflows_started_total 1",
		"aboard_steps_completed_total",
		"aboard_step_duration_seconds",
	} {
		if !strings.Contains(string(body), metric) {
			t.Fatalf("exposition missing %q:\n%s", metric, body)
		}
	}
}

// Two observers in one process must not collide on registration.
func TestPromObserverRegistriesAreIndependent(t *testing.T) {
	a := NewPromObserver()
	b := NewPromObserver()

	a.OnWorkflowStart(context.Background(), api.NewSubject("emp-1", "a@example.com", "A", "Role", "Dept", "2026-09-01"))

	if got := testutil.ToFloat64(a.workflowsStarted); got != 1 {
		t.Fatalf("observer a started = %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.workflowsStarted); got != 0 {
		t.Fatalf("observer b started = %v, want 0", got)
	}
}
