// Package http is the transport layer: request plumbing only, all batch and
// reconciliation logic lives in internal/papercopy.
package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/papercopy/internal/layout"
	"github.com/mind-engage/papercopy/internal/papercopy"
)

type createBatchReq struct {
	Count              int    `json:"count"`
	ShuffleMode        string `json:"shuffle_mode"`
	FixFirstPage       bool   `json:"fix_first_page"`
	FixLastPage        bool   `json:"fix_last_page"`
	FixDescriptionLead bool   `json:"fix_description_lead"`
	EntryMethod        string `json:"entry_method"`
}

type batchJSON struct {
	ID          string                       `json:"id"`
	QuizID      int64                        `json:"quiz_id"`
	Usages      []int64                      `json:"usages"`
	EntryMethod string                       `json:"entry_method"`
	Artifacts   map[papercopy.KeyMode]string `json:"artifacts,omitempty"`
	CreatedAt   int64                        `json:"created_at"`
}

func toBatchJSON(b *papercopy.Batch) batchJSON {
	return batchJSON{
		ID:          b.ID,
		QuizID:      b.QuizID,
		Usages:      b.Usages,
		EntryMethod: string(b.EntryMethod),
		Artifacts:   b.Artifacts,
		CreatedAt:   b.CreatedAt.Unix(),
	}
}

// POST /quizzes/{quizID}/batches
func CreateBatchHandler(m *papercopy.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := urlID(r, "quizID")
		if !ok {
			http.Error(w, "quizID required", http.StatusBadRequest)
			return
		}
		var req createBatchReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		mode, ok := parseShuffleMode(req.ShuffleMode)
		if !ok {
			http.Error(w, "unknown shuffle_mode", http.StatusBadRequest)
			return
		}
		entry := papercopy.EntryMethod(req.EntryMethod)
		if entry == "" {
			entry = papercopy.EntryCSV
		}
		quiz, err := m.Quizzes.GetQuiz(r.Context(), quizID)
		if err != nil {
			fail(w, err)
			return
		}
		b, err := m.CreateCopies(r.Context(), quiz, req.Count, layout.Options{
			Mode:               mode,
			FixFirstPage:       req.FixFirstPage,
			FixLastPage:        req.FixLastPage,
			FixDescriptionLead: req.FixDescriptionLead,
		}, entry)
		if err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, toBatchJSON(b))
	}
}

// GET /quizzes/{quizID}/batches
// Runs a maintenance pass first, so defunct batches never show up.
func ListBatchesHandler(m *papercopy.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := urlID(r, "quizID")
		if !ok {
			http.Error(w, "quizID required", http.StatusBadRequest)
			return
		}
		if err := m.Maintain(r.Context(), quizID); err != nil {
			fail(w, err)
			return
		}
		batches, err := m.Batches.ListBatches(r.Context(), quizID)
		if err != nil {
			fail(w, err)
			return
		}
		out := make([]batchJSON, 0, len(batches))
		for _, b := range batches {
			out = append(out, toBatchJSON(b))
		}
		writeJSON(w, out)
	}
}

// DELETE /quizzes/{quizID}/batches/{batchID}?preserve_usages=&preserve_associated=
func DeleteBatchHandler(m *papercopy.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := urlID(r, "quizID")
		if !ok {
			http.Error(w, "quizID required", http.StatusBadRequest)
			return
		}
		batchID := chi.URLParam(r, "batchID")
		err := m.DeleteBatch(r.Context(), quizID, batchID,
			queryBool(r, "preserve_usages"), queryBool(r, "preserve_associated"))
		if err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /quizzes/{quizID}/maintain
func MaintainHandler(m *papercopy.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := urlID(r, "quizID")
		if !ok {
			http.Error(w, "quizID required", http.StatusBadRequest)
			return
		}
		if err := m.Maintain(r.Context(), quizID); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// PUT /batches/{batchID}/artifacts/{mode}
func PutArtifactHandler(m *papercopy.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, ok := parseKeyMode(chi.URLParam(r, "mode"))
		if !ok {
			http.Error(w, "unknown key mode", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
			return
		}
		key, err := m.SaveArtifact(r.Context(), chi.URLParam(r, "batchID"), mode, data)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, map[string]string{"key": key})
	}
}

// GET /batches/{batchID}/artifacts/{mode}
func GetArtifactHandler(m *papercopy.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, ok := parseKeyMode(chi.URLParam(r, "mode"))
		if !ok {
			http.Error(w, "unknown key mode", http.StatusBadRequest)
			return
		}
		rc, err := m.Artifact(r.Context(), chi.URLParam(r, "batchID"), mode)
		if err != nil {
			fail(w, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	}
}
