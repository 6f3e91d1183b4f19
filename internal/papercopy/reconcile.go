package papercopy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mind-engage/papercopy/internal/qusage"
	"github.com/mind-engage/papercopy/internal/roster"
	"github.com/mind-engage/papercopy/internal/scantron"
)

// Scantron CSV column contract. "Special Codes" carries the usage id the
// student bubbled in; per-question answers live in "Question<slot>" columns.
const (
	colUsage = "Special Codes"
	colName  = "Student Name"
	colID    = "ID"
	colTest  = "Test"

	questionColPrefix = "Question"
)

// ImportOptions are the operator's conflict policies for a bulk run.
// ErrorIfNotFirst and ForceFirst are mutually exclusive in the UI; if both
// arrive set anyway, ErrorIfNotFirst wins.
type ImportOptions struct {
	Overwrite       bool
	AllowCrossUser  bool
	ErrorIfNotFirst bool
	ForceFirst      bool
}

// Success is one reconciled attempt in a run report.
type Success struct {
	UserName string
	Grade    float64
}

// Failure is one rejected row: the identifying text the operator typed or
// scanned, plus the reason it was rejected.
type Failure struct {
	Info   string
	Reason error
}

// Report is the two-section outcome of a bulk run, in processing order.
type Report struct {
	Successes []Success
	Failures  []Failure
}

func (r *Report) fail(info string, reason error) {
	r.Failures = append(r.Failures, Failure{Info: info, Reason: reason})
}

// Reconciler matches anonymous paper attempts to enrolled users and commits
// them through the Manager's stores.
type Reconciler struct {
	Manager  *Manager
	Resolver *roster.Resolver
}

// ImportCSV processes bubble-sheet rows in order. Row failures are recorded
// and never abort the run; only infrastructure errors and consistency
// violations do.
func (r *Reconciler) ImportCSV(ctx context.Context, quiz *Quiz, rows []scantron.Row, opts ImportOptions) (*Report, error) {
	report := &Report{}
	for _, row := range rows {
		if err := r.importRow(ctx, quiz, row, opts, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (r *Reconciler) importRow(ctx context.Context, quiz *Quiz, row scantron.Row, opts ImportOptions, report *Report) error {
	usageCell := row[colUsage]
	if usageCell == "" {
		// A row with no usage id and no identity at all is an artifact of
		// the scanning software, not an error.
		if row[colName] == "" && row[colID] == "" {
			return nil
		}
		report.fail(rowInfo(row), fmt.Errorf("%w: missing usage id", ErrInvalidUsage))
		return nil
	}
	usageID, err := strconv.ParseInt(usageCell, 10, 64)
	if err != nil {
		report.fail(rowInfo(row), fmt.Errorf("%w: bad usage id %q", ErrInvalidUsage, usageCell))
		return nil
	}

	person, err := r.Resolver.Resolve(ctx, quiz.CourseID, row[colID], row[colName])
	if err != nil {
		if errors.Is(err, roster.ErrIdentificationFailed) || errors.Is(err, roster.ErrEmptyExternalID) {
			report.fail(rowInfo(row), fmt.Errorf("%w: %s", ErrIdentificationFailed, err))
			return nil
		}
		return err
	}

	proceed, err := r.clearForUser(ctx, quiz, person, usageID, opts, rowInfo(row), report)
	if err != nil || !proceed {
		return err
	}

	u, err := r.Manager.Usages.Load(ctx, usageID)
	if errors.Is(err, qusage.ErrNotFound) {
		report.fail(rowInfo(row), fmt.Errorf("%w: usage %d not found", ErrInvalidUsage, usageID))
		return nil
	}
	if err != nil {
		return err
	}

	for _, s := range u.Slots {
		if !s.Question.Answerable() {
			continue
		}
		cell, ok := row[questionColPrefix+strconv.Itoa(s.Number)]
		if !ok {
			continue
		}
		resp := encoderFor(s.Question.Type).Encode(s.Question, cell)
		if resp == nil {
			continue
		}
		if err := r.Manager.Usages.ApplyResponse(ctx, usageID, s.Number, resp); err != nil {
			return err
		}
	}

	attempt, err := r.Manager.finalizeAttempt(ctx, quiz.ID, usageID, person.ID)
	if err != nil {
		return err
	}
	report.Successes = append(report.Successes, Success{UserName: person.FullName(), Grade: attempt.Grade})
	return nil
}

// clearForUser runs the first-attempt and usage-binding policies for one
// prospective association. It reports false when the row was rejected (the
// failure is already recorded).
func (r *Reconciler) clearForUser(ctx context.Context, quiz *Quiz, person roster.Person, usageID int64, opts ImportOptions, info string, report *Report) (bool, error) {
	if opts.ErrorIfNotFirst || opts.ForceFirst {
		prior, err := r.Manager.Attempts.ByUserQuiz(ctx, person.ID, quiz.ID)
		if err != nil {
			return false, err
		}
		if len(prior) > 0 {
			if opts.ErrorIfNotFirst {
				report.fail(info, ErrNotFirstAttempt)
				return false, nil
			}
			if _, err := r.Manager.Attempts.DeleteByUserQuiz(ctx, person.ID, quiz.ID); err != nil {
				return false, err
			}
		}
	}

	existing, err := r.Manager.Attempts.ByUsage(ctx, usageID)
	if err != nil && !errors.Is(err, ErrAttemptNotFound) {
		return false, err
	}
	if existing != nil {
		if existing.UserID != person.ID && !opts.AllowCrossUser {
			report.fail(info, ErrConflictingUser)
			return false, nil
		}
		if !opts.Overwrite {
			report.fail(info, ErrAttemptExists)
			return false, nil
		}
		if err := r.Manager.Attempts.DeleteByUsage(ctx, usageID); err != nil {
			return false, err
		}
	}
	return true, nil
}

// AssociationsFromCSV derives the usage→user mapping for a scanned-image
// run from an association CSV with ID and Test columns. Unresolvable rows
// are reported, not fatal.
func (r *Reconciler) AssociationsFromCSV(ctx context.Context, courseID int64, rows []scantron.Row) (map[int64]roster.Person, []Failure, error) {
	out := map[int64]roster.Person{}
	var failures []Failure
	for _, row := range rows {
		testCell := row[colTest]
		if testCell == "" {
			if row[colName] == "" && row[colID] == "" {
				continue
			}
			failures = append(failures, Failure{Info: rowInfo(row), Reason: fmt.Errorf("%w: missing test number", ErrInvalidUsage)})
			continue
		}
		usageID, err := strconv.ParseInt(testCell, 10, 64)
		if err != nil {
			failures = append(failures, Failure{Info: rowInfo(row), Reason: fmt.Errorf("%w: bad test number %q", ErrInvalidUsage, testCell)})
			continue
		}
		person, err := r.Resolver.Resolve(ctx, courseID, row[colID], row[colName])
		if err != nil {
			if errors.Is(err, roster.ErrIdentificationFailed) || errors.Is(err, roster.ErrEmptyExternalID) {
				failures = append(failures, Failure{Info: rowInfo(row), Reason: fmt.Errorf("%w: %s", ErrIdentificationFailed, err)})
				continue
			}
			return nil, nil, err
		}
		out[usageID] = person
	}
	return out, failures, nil
}

// ImportScans applies scanned page images to their usages. One bad image
// poisons only its own usage; every other usage still commits. Each
// successfully modified usage is wrapped in a finished attempt afterwards,
// in first-modified order.
func (r *Reconciler) ImportScans(ctx context.Context, quiz *Quiz, associations map[int64]roster.Person, images []scantron.ScannedImage, opts ImportOptions) (*Report, error) {
	report := &Report{}
	failed := map[int64]bool{}
	cleared := map[int64]bool{}
	loaded := map[int64]*qusage.Usage{}
	var modified []int64

	for _, img := range images {
		usageID := img.UsageID
		if failed[usageID] {
			continue
		}
		person, ok := associations[usageID]
		if !ok {
			failed[usageID] = true
			report.fail(scanInfo(usageID, associations), fmt.Errorf("%w: no association for usage %d", ErrIdentificationFailed, usageID))
			continue
		}

		if !cleared[usageID] {
			proceed, err := r.clearForUser(ctx, quiz, person, usageID, opts, scanInfo(usageID, associations), report)
			if err != nil {
				return nil, err
			}
			if !proceed {
				failed[usageID] = true
				continue
			}
			cleared[usageID] = true
		}

		u := loaded[usageID]
		if u == nil {
			var err error
			u, err = r.Manager.Usages.Load(ctx, usageID)
			if errors.Is(err, qusage.ErrNotFound) {
				failed[usageID] = true
				report.fail(scanInfo(usageID, associations), fmt.Errorf("%w: usage %d not found", ErrInvalidUsage, usageID))
				continue
			}
			if err != nil {
				return nil, err
			}
			loaded[usageID] = u
		}

		slot := u.SlotByAttemptID(img.QuestionAttemptID)
		if slot == nil {
			failed[usageID] = true
			report.fail(scanInfo(usageID, associations), fmt.Errorf("%w: no slot with attempt id %d in usage %d", ErrInvalidUsage, img.QuestionAttemptID, usageID))
			continue
		}

		key := fmt.Sprintf("papercopy/scans/%d/%s-%s", usageID, uuid.NewString(), img.Filename)
		if _, err := r.Manager.Blobs.Put(key, bytes.NewReader(img.Data)); err != nil {
			return nil, fmt.Errorf("store scan %s: %w", img.Filename, err)
		}
		if err := r.Manager.Usages.ApplyResponse(ctx, usageID, slot.Number, map[string]string{
			"file":     key,
			"filename": img.Filename,
		}); err != nil {
			return nil, err
		}
		if err := r.Manager.Usages.FinishSlot(ctx, usageID, slot.Number); err != nil {
			return nil, err
		}
		if img.Grade != nil {
			// Scanning forms grade each page 0-10; scale to the question's
			// maximum mark.
			mark := float64(*img.Grade) / 10 * slot.Question.MaxMark
			if err := r.Manager.Usages.ManualGrade(ctx, usageID, slot.Number, "graded on paper", mark); err != nil {
				return nil, err
			}
		}
		if !containsID(modified, usageID) {
			modified = append(modified, usageID)
		}
	}

	for _, usageID := range modified {
		if failed[usageID] {
			continue
		}
		person := associations[usageID]
		attempt, err := r.Manager.finalizeAttempt(ctx, quiz.ID, usageID, person.ID)
		if err != nil {
			return nil, err
		}
		report.Successes = append(report.Successes, Success{UserName: person.FullName(), Grade: attempt.Grade})
	}
	return report, nil
}

func rowInfo(row scantron.Row) string {
	var b strings.Builder
	b.WriteString(row[colName])
	if row[colID] != "" {
		if b.Len() > 0 {
			b.WriteString(" / ")
		}
		b.WriteString(row[colID])
	}
	if test := firstNonEmpty(row[colUsage], row[colTest]); test != "" {
		fmt.Fprintf(&b, " (Test %s)", test)
	}
	if b.Len() == 0 {
		return "unidentified row"
	}
	return b.String()
}

func scanInfo(usageID int64, associations map[int64]roster.Person) string {
	if p, ok := associations[usageID]; ok {
		return fmt.Sprintf("%s (Test %d)", p.FullName(), usageID)
	}
	return fmt.Sprintf("Test %d", usageID)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
