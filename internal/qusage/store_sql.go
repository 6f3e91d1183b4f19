package qusage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/papercopy/internal/grading"
)

// slotsPerUsage bounds the derived attempt-id space per usage.
const slotsPerUsage = 1000

// SQLRuntime persists each usage as one row with its slots materialized as
// JSON, so a usage loads and saves atomically.
type SQLRuntime struct {
	db     *sql.DB
	grader *grading.Grader
}

func NewSQLRuntime(db *sql.DB) *SQLRuntime {
	return &SQLRuntime{db: db, grader: grading.NewGrader()}
}

func (s *SQLRuntime) CreateInstance(ctx context.Context, questions []Question) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) + 1 FROM question_usages`).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocate usage id: %w", err)
	}

	// Attempt ids are derived from the usage id, which keeps them unique
	// without a second sequence.
	slots := make([]Slot, 0, len(questions))
	for i, q := range questions {
		slots = append(slots, Slot{
			Number:    i + 1,
			AttemptID: id*slotsPerUsage + int64(i+1),
			Question:  q,
		})
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return 0, fmt.Errorf("marshal slots: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO question_usages (id, slots_json, created_at) VALUES ($1, $2, $3)`,
		id, string(raw), time.Now().Unix()); err != nil {
		return 0, fmt.Errorf("insert usage: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func (s *SQLRuntime) Exists(ctx context.Context, usageID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM question_usages WHERE id = $1`, usageID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query usage: %w", err)
	}
	return true, nil
}

func (s *SQLRuntime) Load(ctx context.Context, usageID int64) (*Usage, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT slots_json FROM question_usages WHERE id = $1`, usageID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}
	u := &Usage{ID: usageID}
	if err := json.Unmarshal([]byte(raw), &u.Slots); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	return u, nil
}

func (s *SQLRuntime) ApplyResponse(ctx context.Context, usageID int64, slot int, response map[string]string) error {
	return s.mutate(ctx, usageID, slot, func(sl *Slot) {
		sl.Response = copyResponse(response)
	})
}

func (s *SQLRuntime) FinishSlot(ctx context.Context, usageID int64, slot int) error {
	return s.mutate(ctx, usageID, slot, func(sl *Slot) {
		sl.Finished = true
	})
}

func (s *SQLRuntime) FinishAll(ctx context.Context, usageID int64) (float64, error) {
	u, err := s.Load(ctx, usageID)
	if err != nil {
		return 0, err
	}
	for i := range u.Slots {
		u.Slots[i].Finished = true
	}
	if err := s.save(ctx, u); err != nil {
		return 0, err
	}
	return totalMark(u, s.grader), nil
}

func (s *SQLRuntime) ManualGrade(ctx context.Context, usageID int64, slot int, comment string, mark float64) error {
	return s.mutate(ctx, usageID, slot, func(sl *Slot) {
		sl.ManualMark = &mark
		sl.Comment = comment
	})
}

func (s *SQLRuntime) Delete(ctx context.Context, usageID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM question_usages WHERE id = $1`, usageID)
	if err != nil {
		return fmt.Errorf("delete usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete usage: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLRuntime) mutate(ctx context.Context, usageID int64, slot int, fn func(*Slot)) error {
	u, err := s.Load(ctx, usageID)
	if err != nil {
		return err
	}
	if slot < 1 || slot > len(u.Slots) {
		return ErrNotFound
	}
	fn(&u.Slots[slot-1])
	return s.save(ctx, u)
}

func (s *SQLRuntime) save(ctx context.Context, u *Usage) error {
	raw, err := json.Marshal(u.Slots)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE question_usages SET slots_json = $1 WHERE id = $2`,
		string(raw), u.ID); err != nil {
		return fmt.Errorf("save usage: %w", err)
	}
	return nil
}
