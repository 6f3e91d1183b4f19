package http

import (
	"encoding/json"
	"net/http"

	"github.com/mind-engage/papercopy/internal/papercopy"
)

// POST /quizzes/{quizID}/usages/{usageID}/associate  { "user_id": 11 }
// Manual association: binds the copy to a user with blank responses so the
// attempt lands in the needs-grading state.
func AssociateUsageHandler(m *papercopy.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := urlID(r, "quizID")
		if !ok {
			http.Error(w, "quizID required", http.StatusBadRequest)
			return
		}
		usageID, ok := urlID(r, "usageID")
		if !ok {
			http.Error(w, "usageID required", http.StatusBadRequest)
			return
		}
		var req struct {
			UserID int64 `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
			http.Error(w, "user_id required", http.StatusBadRequest)
			return
		}
		a, err := m.AssociateManual(r.Context(), quizID, usageID, req.UserID)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"attempt_id": a.ID,
			"number":     a.Number,
			"grade":      a.Grade,
		})
	}
}

// DELETE /quizzes/{quizID}/usages/{usageID}/association
func DisassociateUsageHandler(m *papercopy.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := urlID(r, "quizID")
		if !ok {
			http.Error(w, "quizID required", http.StatusBadRequest)
			return
		}
		usageID, ok := urlID(r, "usageID")
		if !ok {
			http.Error(w, "usageID required", http.StatusBadRequest)
			return
		}
		associated, err := m.IsAssociated(r.Context(), usageID)
		if err != nil {
			fail(w, err)
			return
		}
		if !associated {
			http.Error(w, "usage not associated", http.StatusNotFound)
			return
		}
		if err := m.DisassociateUsage(r.Context(), quizID, usageID); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DELETE /usages/{usageID}?preserve_associated=
// Router gates this behind the attempt:delete permission.
func DeleteUsageHandler(m *papercopy.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usageID, ok := urlID(r, "usageID")
		if !ok {
			http.Error(w, "usageID required", http.StatusBadRequest)
			return
		}
		if err := m.DeleteUsage(r.Context(), usageID, queryBool(r, "preserve_associated")); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
