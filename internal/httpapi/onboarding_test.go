package httpapi

import (
	"net/http"
	"strings"
	"testing"
)

func TestStartOnboarding(t *testing.T) {
	ts := newTestServer(t)
	id := createEmployee(t, ts, "start@example.com", "Starter")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/onboarding/start", map[string]any{
		"employee_id": id,
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var out struct {
		Message    string `json:"message"`
		EmployeeID string `json:"employee_id"`
		ThreadID   string `json:"thread_id"`
		Status     string `json:"status"`
	}
	decodeJSON(t, resp, &out)
	if out.EmployeeID != id {
		t.Errorf("expected employee_id %q, got %q", id, out.EmployeeID)
	}
	if !strings.HasPrefix(out.ThreadID, "thread_") {
		t.Errorf("expected thread_ token prefix, got %q", out.ThreadID)
	}
	if out.Status != "started" {
		t.Errorf("expected status started, got %q", out.Status)
	}
	if out.Message == "" {
		t.Error("expected a message")
	}

	// The engine runs inline here: the first document goes out and the
	// workflow parks at the signature gate before the response returns.
	var detail employeeDetailView
	decodeJSON(t, doJSON(t, http.MethodGet, ts.URL+"/api/employees/"+id, nil), &detail)
	if detail.ThreadID != out.ThreadID {
		t.Errorf("expected thread persisted on the employee, got %q", detail.ThreadID)
	}
	if detail.Steps["policy_sent"].Status != "completed" {
		t.Errorf("expected policy_sent completed, got %q", detail.Steps["policy_sent"].Status)
	}
	if detail.Steps["policy_signed"].Status != "waiting" {
		t.Errorf("expected policy_signed waiting, got %q", detail.Steps["policy_signed"].Status)
	}
	if detail.Steps["policy_sent"].TrackingID == "" {
		t.Error("expected a tracking id on the dispatched document")
	}
}

func TestStartOnboardingMissingEmployeeID(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/onboarding/start", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStartOnboardingUnknownEmployee(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/onboarding/start", map[string]any{
		"employee_id": "ghost",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestOnboardingStatusByToken(t *testing.T) {
	ts := newTestServer(t)
	id := createEmployee(t, ts, "status@example.com", "Status Check")
	token := startOnboarding(t, ts, id)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/onboarding/status/"+token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out onboardingStatusView
	decodeJSON(t, resp, &out)
	if out.ThreadID != token {
		t.Errorf("expected thread_id %q, got %q", token, out.ThreadID)
	}
	if out.EmployeeID != id {
		t.Errorf("expected employee_id %q, got %q", id, out.EmployeeID)
	}
	if out.EmployeeName != "Status Check" {
		t.Errorf("expected employee_name, got %q", out.EmployeeName)
	}
	if len(out.Steps) != 12 {
		t.Fatalf("expected 12 steps, got %d", len(out.Steps))
	}
	if out.Steps["policy_sent"].Status != "completed" {
		t.Errorf("expected policy_sent completed, got %q", out.Steps["policy_sent"].Status)
	}
	// One of twelve steps done.
	if out.Progress != 8.33 {
		t.Errorf("expected progress 8.33, got %v", out.Progress)
	}
	if out.StartedAt == nil {
		t.Error("expected started_at set")
	}
	if out.CompletedAt != nil {
		t.Error("expected no completed_at while the workflow is parked")
	}
	if out.LastUpdated.IsZero() {
		t.Error("expected last_updated set")
	}
}

func TestOnboardingStatusRecordsQuizAttempts(t *testing.T) {
	ts := newTestServer(t)
	id := createEmployee(t, ts, "quizhist@example.com", "Quiz History")
	token := startOnboarding(t, ts, id)

	// Sign the first document, then fail the quiz once before passing.
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/webhooks/document-status", map[string]any{
		"employee_id": id, "document_type": "policy", "status": "signed",
	})
	resp.Body.Close()
	for _, attempt := range []map[string]any{
		{"employee_id": id, "quiz_type": "policy", "score": 40, "passed": false},
		{"employee_id": id, "quiz_type": "policy", "score": 95, "passed": true},
	} {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/webhooks/quiz-status", attempt)
		resp.Body.Close()
	}

	var out onboardingStatusView
	decodeJSON(t, doJSON(t, http.MethodGet, ts.URL+"/api/onboarding/status/"+token, nil), &out)

	attempts := out.QuizAttempts["policy"]
	if len(attempts) != 2 {
		t.Fatalf("expected 2 recorded attempts, got %d", len(attempts))
	}
	if attempts[0].Passed || attempts[0].Score != 40 {
		t.Errorf("expected first attempt 40/failed, got %+v", attempts[0])
	}
	if !attempts[1].Passed || attempts[1].Score != 95 {
		t.Errorf("expected second attempt 95/passed, got %+v", attempts[1])
	}
	if out.Steps["policy_quiz_passed"].Status != "completed" {
		t.Errorf("expected quiz gate completed, got %q", out.Steps["policy_quiz_passed"].Status)
	}
}

func TestOnboardingStatusUnknownToken(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/onboarding/status/thread_ghost", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestFullOnboardingRunOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	id := createEmployee(t, ts, "full@example.com", "Full Run")
	token := startOnboarding(t, ts, id)

	completeAllGates(t, ts, id)

	var out onboardingStatusView
	decodeJSON(t, doJSON(t, http.MethodGet, ts.URL+"/api/onboarding/status/"+token, nil), &out)
	if out.Progress != 100 {
		t.Errorf("expected progress 100, got %v", out.Progress)
	}
	if out.CompletedAt == nil {
		t.Error("expected completed_at set after the full run")
	}
	for name, st := range out.Steps {
		if st.Status != "completed" {
			t.Errorf("step %s: expected completed, got %q", name, st.Status)
		}
	}

	var detail employeeDetailView
	decodeJSON(t, doJSON(t, http.MethodGet, ts.URL+"/api/employees/"+id, nil), &detail)
	if !detail.Completed {
		t.Error("expected the employee view marked completed")
	}
}
