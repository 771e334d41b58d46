package httpapi

import (
	"net/http"
	"testing"
)

type statsResponse struct {
	TotalEmployees       int            `json:"total_employees"`
	Completed            int            `json:"completed"`
	ProgressDistribution map[string]int `json:"progress_distribution"`
}

func TestAdminStatsEmpty(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/admin/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out statsResponse
	decodeJSON(t, resp, &out)
	if out.TotalEmployees != 0 {
		t.Errorf("expected 0 employees, got %d", out.TotalEmployees)
	}
	if len(out.ProgressDistribution) != 0 {
		t.Errorf("expected empty distribution, got %v", out.ProgressDistribution)
	}
}

func TestAdminStatsBucketsProgress(t *testing.T) {
	ts := newTestServer(t)

	// One untouched enrollment, one finished run.
	createEmployee(t, ts, "idle@example.com", "Idle Hire")
	done := createEmployee(t, ts, "done@example.com", "Done Hire")
	startOnboarding(t, ts, done)
	completeAllGates(t, ts, done)

	var out statsResponse
	decodeJSON(t, doJSON(t, http.MethodGet, ts.URL+"/api/admin/stats", nil), &out)

	if out.TotalEmployees != 2 {
		t.Errorf("expected 2 employees, got %d", out.TotalEmployees)
	}
	if out.Completed != 1 {
		t.Errorf("expected 1 completed, got %d", out.Completed)
	}
	if out.ProgressDistribution["0%"] != 1 {
		t.Errorf("expected one employee in the 0%% bucket, got %v", out.ProgressDistribution)
	}
	if out.ProgressDistribution["100%"] != 1 {
		t.Errorf("expected one employee in the 100%% bucket, got %v", out.ProgressDistribution)
	}
}

func TestClearAllData(t *testing.T) {
	ts := newTestServer(t)
	id := createEmployee(t, ts, "wipe1@example.com", "Wipe One")
	createEmployee(t, ts, "wipe2@example.com", "Wipe Two")

	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/admin/clear-all-data", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Status       string `json:"status"`
		ClearedCount int    `json:"cleared_count"`
	}
	decodeJSON(t, resp, &out)
	if out.Status != "success" {
		t.Errorf("expected status success, got %q", out.Status)
	}
	if out.ClearedCount != 2 {
		t.Errorf("expected 2 cleared, got %d", out.ClearedCount)
	}

	var all []employeeView
	decodeJSON(t, doJSON(t, http.MethodGet, ts.URL+"/api/employees", nil), &all)
	if len(all) != 0 {
		t.Errorf("expected no employees after the wipe, got %d", len(all))
	}

	// The audit trail is gone with them.
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/employees/"+id+"/events", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for a wiped employee, got %d", resp.StatusCode)
	}
}
