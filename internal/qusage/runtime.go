// Package qusage is the item-instance runtime behind a printed copy: one
// usage is a self-contained, already-materialized set of question instances
// bound to a single paper copy. The reconciliation core only ever touches a
// usage through the Runtime interface; everything else about a usage's
// internals stays private to this package.
package qusage

import (
	"context"
	"errors"

	"github.com/mind-engage/papercopy/internal/grading"
)

// ErrNotFound is returned when a usage id does not exist (any more).
var ErrNotFound = errors.New("question usage not found")

// Question is one materialized question instance inside a usage.
type Question struct {
	ID        int64   `json:"id"`
	Type      string  `json:"type"`
	Choices   int     `json:"choices,omitempty"`
	AnswerKey []int   `json:"answer_key,omitempty"`
	MaxMark   float64 `json:"max_mark"`
}

// Answerable reports whether the question expects a student response.
func (q Question) Answerable() bool { return q.Type != grading.TypeDescription }

// Slot is one position within a usage's internal ordering. AttemptID is the
// question-attempt database id printed next to the question on paper; scan
// uploads address slots by it.
type Slot struct {
	Number     int               `json:"number"` // 1-based
	AttemptID  int64             `json:"attempt_id"`
	Question   Question          `json:"question"`
	Response   map[string]string `json:"response,omitempty"`
	Finished   bool              `json:"finished"`
	ManualMark *float64          `json:"manual_mark,omitempty"`
	Comment    string            `json:"comment,omitempty"`
}

// Usage is a loaded paper-copy instance.
type Usage struct {
	ID    int64
	Slots []Slot
}

// SlotByAttemptID finds the slot carrying the given question-attempt id,
// or nil.
func (u *Usage) SlotByAttemptID(attemptID int64) *Slot {
	for i := range u.Slots {
		if u.Slots[i].AttemptID == attemptID {
			return &u.Slots[i]
		}
	}
	return nil
}

// Runtime is the item-instance runtime contract the reconciliation core
// depends on. Slot arguments are 1-based slot numbers.
type Runtime interface {
	// CreateInstance materializes a new usage from an ordered question list.
	CreateInstance(ctx context.Context, questions []Question) (int64, error)
	// Exists reports whether the usage is still present in the store.
	Exists(ctx context.Context, usageID int64) (bool, error)
	Load(ctx context.Context, usageID int64) (*Usage, error)
	// ApplyResponse stores (replaces) the response map for one slot.
	ApplyResponse(ctx context.Context, usageID int64, slot int, response map[string]string) error
	// FinishSlot closes a single slot without grading the whole usage.
	FinishSlot(ctx context.Context, usageID int64, slot int) error
	// FinishAll closes every slot, grades the usage and returns the total.
	FinishAll(ctx context.Context, usageID int64) (float64, error)
	// ManualGrade overrides one slot's mark with an operator-entered score.
	ManualGrade(ctx context.Context, usageID int64, slot int, comment string, mark float64) error
	Delete(ctx context.Context, usageID int64) error
}

// totalMark grades every slot: manual marks win, otherwise the grader
// scores the stored response. Description slots contribute nothing.
func totalMark(u *Usage, g *grading.Grader) float64 {
	total := 0.0
	for i := range u.Slots {
		s := &u.Slots[i]
		if !s.Question.Answerable() {
			continue
		}
		if s.ManualMark != nil {
			total += *s.ManualMark
			continue
		}
		res := g.Grade(gradingQ(s.Question), s.Response)
		total += res.Mark
	}
	return total
}

func gradingQ(q Question) grading.Q {
	return grading.Q{Type: q.Type, MaxMark: q.MaxMark, Choices: q.Choices, AnswerKey: q.AnswerKey}
}
