package papercopy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SQLStore implements BatchStore, AttemptStore and QuizStore over the
// papercopy_batches / papercopy_attempts / quizzes tables. A batch's usage
// list is stored as a comma-separated string to keep creation order; the
// UNIQUE constraint on papercopy_attempts.usage_id backs the one-attempt-
// per-usage invariant under concurrent submissions.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) CreateBatch(ctx context.Context, b *Batch) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO papercopy_batches
			(id, quiz_id, usages, entry_method, artifact_none, artifact_with_key, artifact_key_only, created_at)
		VALUES ($1, $2, $3, $4, '', '', '', $5)`,
		b.ID, b.QuizID, encodeUsages(b.Usages), string(b.EntryMethod), b.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (s *SQLStore) GetBatch(ctx context.Context, id string) (*Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, quiz_id, usages, entry_method, artifact_none, artifact_with_key, artifact_key_only, created_at
		FROM papercopy_batches WHERE id = $1`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

func (s *SQLStore) ListBatches(ctx context.Context, quizID int64) ([]*Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quiz_id, usages, entry_method, artifact_none, artifact_with_key, artifact_key_only, created_at
		FROM papercopy_batches WHERE quiz_id = $1 ORDER BY created_at, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()
	var out []*Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("list batches: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateUsages(ctx context.Context, id string, usages []int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE papercopy_batches SET usages = $1 WHERE id = $2`,
		encodeUsages(usages), id)
	if err != nil {
		return fmt.Errorf("update usages: %w", err)
	}
	return requireRow(res, ErrBatchNotFound)
}

func (s *SQLStore) SetArtifact(ctx context.Context, id string, mode KeyMode, blobKey string) error {
	col, err := artifactColumn(mode)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE papercopy_batches SET `+col+` = $1 WHERE id = $2`, blobKey, id)
	if err != nil {
		return fmt.Errorf("set artifact: %w", err)
	}
	return requireRow(res, ErrBatchNotFound)
}

func (s *SQLStore) DeleteBatch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM papercopy_batches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return requireRow(res, ErrBatchNotFound)
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a *Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM papercopy_attempts WHERE usage_id = $1`, a.UsageID).Scan(&one)
	if err == nil {
		return ErrAttemptExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check usage binding: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) + 1 FROM papercopy_attempts`).Scan(&a.ID); err != nil {
		return fmt.Errorf("allocate attempt id: %w", err)
	}
	// The UNIQUE(usage_id) constraint is the real guard; the pre-check above
	// only produces the friendlier error on the common path.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO papercopy_attempts
			(id, usage_id, user_id, quiz_id, attempt_number, finished, grade, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.UsageID, a.UserID, a.QuizID, a.Number, a.Finished, a.Grade, a.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLStore) FinishAttempt(ctx context.Context, id int64, grade float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE papercopy_attempts SET finished = TRUE, grade = $1 WHERE id = $2`, grade, id)
	if err != nil {
		return fmt.Errorf("finish attempt: %w", err)
	}
	return requireRow(res, ErrAttemptNotFound)
}

func (s *SQLStore) ByUsage(ctx context.Context, usageID int64) (*Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, usage_id, user_id, quiz_id, attempt_number, finished, grade, created_at
		FROM papercopy_attempts WHERE usage_id = $1`, usageID)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("attempt by usage: %w", err)
	}
	return a, nil
}

func (s *SQLStore) ByUserQuiz(ctx context.Context, userID, quizID int64) ([]*Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, usage_id, user_id, quiz_id, attempt_number, finished, grade, created_at
		FROM papercopy_attempts WHERE user_id = $1 AND quiz_id = $2 ORDER BY attempt_number`,
		userID, quizID)
	if err != nil {
		return nil, fmt.Errorf("attempts by user: %w", err)
	}
	defer rows.Close()
	var out []*Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("attempts by user: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) MaxNumber(ctx context.Context, userID, quizID int64) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(attempt_number), 0) FROM papercopy_attempts
		WHERE user_id = $1 AND quiz_id = $2`, userID, quizID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max attempt number: %w", err)
	}
	return max, nil
}

func (s *SQLStore) DeleteByUsage(ctx context.Context, usageID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM papercopy_attempts WHERE usage_id = $1`, usageID)
	if err != nil {
		return fmt.Errorf("delete attempt: %w", err)
	}
	return requireRow(res, ErrAttemptNotFound)
}

func (s *SQLStore) DeleteByUserQuiz(ctx context.Context, userID, quizID int64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM papercopy_attempts WHERE user_id = $1 AND quiz_id = $2`, userID, quizID)
	if err != nil {
		return 0, fmt.Errorf("delete attempts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete attempts: %w", err)
	}
	return int(n), nil
}

func (s *SQLStore) GetQuiz(ctx context.Context, id int64) (*Quiz, error) {
	var (
		q   Quiz
		raw string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, course_id, name, questions_json FROM quizzes WHERE id = $1`, id).
		Scan(&q.ID, &q.CourseID, &q.Name, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &q.Questions); err != nil {
		return nil, fmt.Errorf("decode quiz questions: %w", err)
	}
	return &q, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanBatch(r rowScanner) (*Batch, error) {
	var (
		b                    Batch
		usages, entry        string
		none, withKey, kOnly string
		created              int64
	)
	if err := r.Scan(&b.ID, &b.QuizID, &usages, &entry, &none, &withKey, &kOnly, &created); err != nil {
		return nil, err
	}
	b.CreatedAt = time.Unix(created, 0).UTC()
	b.EntryMethod = EntryMethod(entry)
	var err error
	if b.Usages, err = decodeUsages(usages); err != nil {
		return nil, err
	}
	b.Artifacts = map[KeyMode]string{}
	for mode, key := range map[KeyMode]string{KeyNone: none, KeyWith: withKey, KeyOnly: kOnly} {
		if key != "" {
			b.Artifacts[mode] = key
		}
	}
	return &b, nil
}

func scanAttempt(r rowScanner) (*Attempt, error) {
	var (
		a       Attempt
		created int64
	)
	if err := r.Scan(&a.ID, &a.UsageID, &a.UserID, &a.QuizID, &a.Number, &a.Finished, &a.Grade, &created); err != nil {
		return nil, err
	}
	a.CreatedAt = time.Unix(created, 0).UTC()
	return &a, nil
}

func artifactColumn(mode KeyMode) (string, error) {
	switch mode {
	case KeyNone:
		return "artifact_none", nil
	case KeyWith:
		return "artifact_with_key", nil
	case KeyOnly:
		return "artifact_key_only", nil
	default:
		return "", fmt.Errorf("unknown key mode %q", mode)
	}
}

func encodeUsages(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func decodeUsages(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt usage list %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
