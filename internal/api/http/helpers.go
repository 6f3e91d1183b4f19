package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/papercopy/internal/layout"
	"github.com/mind-engage/papercopy/internal/papercopy"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil
}

func queryBool(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// httpStatus maps core errors onto response codes. Consistency violations
// are programming bugs and stay 500s.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, papercopy.ErrBatchNotFound),
		errors.Is(err, papercopy.ErrQuizNotFound),
		errors.Is(err, papercopy.ErrAttemptNotFound),
		errors.Is(err, papercopy.ErrInvalidUsage):
		return http.StatusNotFound
	case errors.Is(err, papercopy.ErrEmptyBatch):
		return http.StatusBadRequest
	case errors.Is(err, papercopy.ErrAttemptExists),
		errors.Is(err, papercopy.ErrConflictingUser):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fail(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), httpStatus(err))
}

// parseShuffleMode maps the request's mode name to a layout mode.
func parseShuffleMode(s string) (layout.ShuffleMode, bool) {
	switch s {
	case "", "none":
		return layout.NoShuffle, true
	case "ignore_pages":
		return layout.ShuffleIgnoringPages, true
	case "within_page":
		return layout.ShuffleWithinPageOnly, true
	case "pages_only":
		return layout.ShufflePagesOnly, true
	case "all":
		return layout.ShuffleAll, true
	}
	return layout.NoShuffle, false
}

func parseKeyMode(s string) (papercopy.KeyMode, bool) {
	switch papercopy.KeyMode(s) {
	case papercopy.KeyNone, papercopy.KeyWith, papercopy.KeyOnly:
		return papercopy.KeyMode(s), true
	}
	return "", false
}

// reportJSON is the wire form of a run report: reasons flattened to text.
type reportJSON struct {
	Successes []successJSON `json:"successes"`
	Failures  []failureJSON `json:"failures"`
}

type successJSON struct {
	UserName string  `json:"user_name"`
	Grade    float64 `json:"grade"`
}

type failureJSON struct {
	Info   string `json:"info"`
	Reason string `json:"reason"`
}

func toReportJSON(rep *papercopy.Report, extra []papercopy.Failure) reportJSON {
	out := reportJSON{Successes: []successJSON{}, Failures: []failureJSON{}}
	for _, s := range rep.Successes {
		out.Successes = append(out.Successes, successJSON{UserName: s.UserName, Grade: s.Grade})
	}
	for _, f := range append(extra, rep.Failures...) {
		out.Failures = append(out.Failures, failureJSON{Info: f.Info, Reason: f.Reason.Error()})
	}
	return out
}
