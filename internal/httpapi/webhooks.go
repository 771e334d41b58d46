package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/petrijr/aboard/pkg/api"
)

// handleDocumentWebhook: POST /api/webhooks/document-status
//
// Body JSON, as delivered by the e-sign provider:
//
//	{ "employee_id": "0b3f...", "document_type": "policy", "status": "signed" }
//
// A valid payload is always answered 200 {"status":"received",
// "processed":bool}; processed is false when the employee is unknown.
// 400 only on validation failure.
func (s *Server) handleDocumentWebhook(w http.ResponseWriter, r *http.Request) {
	type input struct {
		EmployeeID   string `json:"employee_id"`
		DocumentType string `json:"document_type"`
		Status       string `json:"status"`
	}
	var in input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	processed, err := s.engine.OnDocumentEvent(r.Context(), api.DocumentEvent{
		SubjectID: in.EmployeeID,
		Kind:      api.DocumentKind(in.DocumentType),
		Status:    api.DocumentStatus(in.Status),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "received",
		"processed": processed,
	})
}

// handleQuizWebhook: POST /api/webhooks/quiz-status
//
// Body JSON:
//
//	{ "employee_id": "0b3f...", "quiz_type": "policy", "score": 85, "passed": true }
//
// Every delivery is recorded as an attempt; only a pass moves the gate.
// Same response envelope as the document webhook.
func (s *Server) handleQuizWebhook(w http.ResponseWriter, r *http.Request) {
	type input struct {
		EmployeeID string `json:"employee_id"`
		QuizType   string `json:"quiz_type"`
		Score      int    `json:"score"`
		Passed     bool   `json:"passed"`
	}
	var in input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	processed, err := s.engine.OnQuizEvent(r.Context(), api.QuizEvent{
		SubjectID: in.EmployeeID,
		Kind:      api.DocumentKind(in.QuizType),
		Score:     in.Score,
		Passed:    in.Passed,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "received",
		"processed": processed,
	})
}
