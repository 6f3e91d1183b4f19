package http

import (
	"io"
	"net/http"

	"github.com/mind-engage/papercopy/internal/papercopy"
	"github.com/mind-engage/papercopy/internal/scantron"
)

const maxUploadBytes = 256 << 20

func importOptions(r *http.Request) papercopy.ImportOptions {
	return papercopy.ImportOptions{
		Overwrite:       queryBool(r, "overwrite"),
		AllowCrossUser:  queryBool(r, "allow_cross_user"),
		ErrorIfNotFirst: queryBool(r, "error_if_not_first"),
		ForceFirst:      queryBool(r, "force_first"),
	}
}

func formFileText(r *http.Request, field string) (string, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// POST /quizzes/{quizID}/import/csv
// Multipart upload: "gradedata" carries the scantron CSV. Policy flags come
// in as query parameters.
func ImportCSVHandler(rec *papercopy.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := urlID(r, "quizID")
		if !ok {
			http.Error(w, "quizID required", http.StatusBadRequest)
			return
		}
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, "bad multipart: "+err.Error(), http.StatusBadRequest)
			return
		}
		text, err := formFileText(r, "gradedata")
		if err != nil {
			http.Error(w, "gradedata file required", http.StatusBadRequest)
			return
		}
		rows, err := scantron.ParseCSV(text, queryBool(r, "omit_sparse"))
		if err != nil {
			http.Error(w, "parse csv: "+err.Error(), http.StatusBadRequest)
			return
		}
		quiz, err := rec.Manager.Quizzes.GetQuiz(r.Context(), quizID)
		if err != nil {
			fail(w, err)
			return
		}
		report, err := rec.ImportCSV(r.Context(), quiz, rows, importOptions(r))
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, toReportJSON(report, nil))
	}
}

type scansReportJSON struct {
	reportJSON
	MalformedFilenames []string `json:"malformed_filenames"`
}

// POST /quizzes/{quizID}/import/scans
// Multipart upload: "associations" is a CSV with ID and Test columns, and
// every file under "scans" is one scanned page named
// U<usage>_Q<question>_A<attempt>_[G<grade>_]P<page>.<ext>.
func ImportScansHandler(rec *papercopy.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := urlID(r, "quizID")
		if !ok {
			http.Error(w, "quizID required", http.StatusBadRequest)
			return
		}
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, "bad multipart: "+err.Error(), http.StatusBadRequest)
			return
		}
		assocText, err := formFileText(r, "associations")
		if err != nil {
			http.Error(w, "associations file required", http.StatusBadRequest)
			return
		}
		rows, err := scantron.ParseCSV(assocText, false)
		if err != nil {
			http.Error(w, "parse associations: "+err.Error(), http.StatusBadRequest)
			return
		}

		var files []scantron.ScanFile
		for _, fh := range r.MultipartForm.File["scans"] {
			f, err := fh.Open()
			if err != nil {
				http.Error(w, "open upload: "+err.Error(), http.StatusBadRequest)
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
				return
			}
			files = append(files, scantron.ScanFile{Name: fh.Filename, Data: data})
		}
		images, malformed := scantron.ParseScans(files)

		quiz, err := rec.Manager.Quizzes.GetQuiz(r.Context(), quizID)
		if err != nil {
			fail(w, err)
			return
		}
		assoc, assocFailures, err := rec.AssociationsFromCSV(r.Context(), quiz.CourseID, rows)
		if err != nil {
			fail(w, err)
			return
		}
		report, err := rec.ImportScans(r.Context(), quiz, assoc, images, importOptions(r))
		if err != nil {
			fail(w, err)
			return
		}
		if malformed == nil {
			malformed = []string{}
		}
		writeJSON(w, scansReportJSON{
			reportJSON:         toReportJSON(report, assocFailures),
			MalformedFilenames: malformed,
		})
	}
}
