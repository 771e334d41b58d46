package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/petrijr/aboard/pkg/api"
)

// handleAdminStats: GET /api/admin/stats
//
// Responds with headcount totals and a progress-bucket distribution:
//
//	{
//	  "total_employees": 3,
//	  "completed": 1,
//	  "progress_distribution": { "0%": 1, "50%": 1, "100%": 1 }
//	}
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.store.Subjects.ListSubjects(r.Context(), api.SubjectFilter{})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	completed := 0
	distribution := make(map[string]int)
	for _, subj := range subjects {
		if subj.Record.Terminal() {
			completed++
		}
		bucket := fmt.Sprintf("%d%%", int(subj.Record.Progress()))
		distribution[bucket]++
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_employees":       len(subjects),
		"completed":             completed,
		"progress_distribution": distribution,
		"timestamp":             time.Now().UTC(),
	})
}

// handleClearAllData: DELETE /api/admin/clear-all-data
//
// Testing reset: drops every employee and the whole event history.
// Responds with the number of employees removed.
func (s *Server) handleClearAllData(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Subjects.PurgeSubjects(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.store.Events.PurgeEvents(r.Context()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "data_cleared", "employees", count)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"message":       fmt.Sprintf("all data cleared, removed %d employees", count),
		"cleared_count": count,
		"timestamp":     time.Now().UTC(),
	})
}
