package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petrijr/aboard/pkg/api"
)

// handleCreateEmployee: POST /api/employees
//
// Body JSON:
//
//	{
//	  "email": "priya@example.com",
//	  "name": "Priya Sharma",
//	  "role": "Backend Engineer",
//	  "department": "Platform",
//	  "start_date": "2026-09-01"
//	}
//
// The id is generated unless the caller supplies one. Responds 201 with
// the stored employee, 400 on validation failure, 409 when the email is
// already enrolled.
func (s *Server) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	type input struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		Name       string `json:"name"`
		Role       string `json:"role"`
		Department string `json:"department"`
		StartDate  string `json:"start_date"`
	}
	var in input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	subj := api.NewSubject(in.ID, in.Email, in.Name, in.Role, in.Department, in.StartDate)
	if err := s.engine.Enroll(r.Context(), subj); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, viewOf(subj))
}

// handleListEmployees: GET /api/employees
//
// Optional query params:
//
//	?department=Platform
//
// Responds with the employee list, progress included.
func (s *Server) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.engine.ListSubjects(r.Context(), api.SubjectFilter{
		Department: r.URL.Query().Get("department"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	out := make([]employeeView, 0, len(subjects))
	for _, subj := range subjects {
		out = append(out, viewOf(subj))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleGetEmployee: GET /api/employees/{id}
//
// Responds with the full employee record including per-step state, or 404.
func (s *Server) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	subj, err := s.engine.GetSubject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detailViewOf(subj))
}

// handleUpdateEmployeeStatus: PUT /api/employees/{id}/status
//
// Body JSON maps step names to the status to set:
//
//	{ "policy_signed": "completed", "nda_sent": "retry" }
//
// Steps already completed are left alone; the response lists what was
// actually applied. This is the manual admin path and does not advance
// the workflow.
func (s *Server) handleUpdateEmployeeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch map[string]api.StepStatus
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(patch) == 0 {
		s.writeError(w, http.StatusBadRequest, "no steps to update")
		return
	}
	for step, status := range patch {
		if api.StepIndex(api.StepName(step)) < 0 {
			s.writeError(w, http.StatusBadRequest, "unknown step "+step)
			return
		}
		if !validStatus(status) {
			s.writeError(w, http.StatusBadRequest, "unknown status "+string(status))
			return
		}
	}

	var applied []string
	_, err := s.store.Subjects.UpdateSubject(r.Context(), id, func(subj *api.Subject) error {
		applied = applied[:0]
		now := time.Now().UTC()
		for step, status := range patch {
			state := subj.Record.Step(api.StepName(step))
			if state.Status == api.StatusCompleted {
				continue
			}
			state.Status = status
			if state.StartedAt.IsZero() && status != api.StatusNotStarted {
				state.StartedAt = now
			}
			if status == api.StatusCompleted {
				state.CompletedAt = now
				state.Err = ""
			}
			applied = append(applied, step)
		}
		return nil
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	sort.Strings(applied)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":     "status updated",
		"employee_id": id,
		"applied":     applied,
	})
}

func validStatus(st api.StepStatus) bool {
	switch st {
	case api.StatusNotStarted, api.StatusInProgress, api.StatusWaiting,
		api.StatusCompleted, api.StatusFailed, api.StatusRetry:
		return true
	}
	return false
}

// handleEmployeeEvents: GET /api/employees/{id}/events
//
// Responds with the append-only audit trail for one employee, oldest
// first, or 404 when the employee does not exist.
func (s *Server) handleEmployeeEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.Subjects.GetSubject(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	events, err := s.store.Events.ListEvents(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	out := make([]eventView, 0, len(events))
	for _, ev := range events {
		out = append(out, eventView{
			ID:     ev.ID,
			Type:   string(ev.Type),
			Step:   string(ev.Step),
			Detail: ev.Detail,
			At:     ev.At,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}
