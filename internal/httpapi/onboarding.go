package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleStartOnboarding: POST /api/onboarding/start
//
// Body JSON:
//
//	{ "employee_id": "0b3f..." }
//
// Mints a workflow instance token and returns it immediately; the
// pipeline itself runs asynchronously. 400 when employee_id is missing,
// 404 when no such employee exists.
func (s *Server) handleStartOnboarding(w http.ResponseWriter, r *http.Request) {
	type input struct {
		EmployeeID string `json:"employee_id"`
	}
	var in input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.EmployeeID == "" {
		s.writeError(w, http.StatusBadRequest, "employee_id is required")
		return
	}

	token, err := s.engine.Start(r.Context(), in.EmployeeID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"message":     "onboarding workflow started",
		"employee_id": in.EmployeeID,
		"thread_id":   token,
		"status":      "started",
	})
}

// handleOnboardingStatus: GET /api/onboarding/status/{token}
//
// Looks the workflow up by its instance token, not the employee id.
// Responds with per-step statuses, overall progress and the quiz-attempt
// history; 404 when the token is unknown.
func (s *Server) handleOnboardingStatus(w http.ResponseWriter, r *http.Request) {
	subj, err := s.engine.GetSubjectByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, onboardingStatusView{
		ThreadID:     subj.InstanceToken,
		EmployeeID:   subj.ID,
		EmployeeName: subj.Name,
		Steps:        stepsViewOf(&subj.Record),
		Progress:     subj.Record.Progress(),
		StartedAt:    optTime(subj.Record.StartedAt),
		CompletedAt:  optTime(subj.Record.CompletedAt),
		LastUpdated:  subj.Record.LastUpdated,
		QuizAttempts: quizViewOf(subj.QuizAttempts),
	})
}
