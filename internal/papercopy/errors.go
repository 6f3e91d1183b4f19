package papercopy

import (
	"errors"
	"fmt"
)

// Per-row reconciliation failures. These are recorded in the run report and
// never abort the rest of a bulk import.
var (
	// ErrIdentificationFailed: no enrolled user matched the row's id or name.
	ErrIdentificationFailed = errors.New("user could not be identified")
	// ErrConflictingUser: the usage is already bound to a different user.
	ErrConflictingUser = errors.New("usage already associated with a different user")
	// ErrAttemptExists: the usage is already bound and overwrite is off.
	ErrAttemptExists = errors.New("attempt already exists for usage")
	// ErrInvalidUsage: usage id missing, unparseable, or not loadable.
	ErrInvalidUsage = errors.New("invalid usage reference")
	// ErrNotFirstAttempt: policy requires a first attempt and one exists.
	ErrNotFirstAttempt = errors.New("user already has an attempt on this quiz")
)

// Operation-level errors.
var (
	ErrEmptyBatch      = errors.New("batch must contain at least one usage")
	ErrBatchNotFound   = errors.New("batch not found")
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrQuizNotFound    = errors.New("quiz not found")
)

// ConsistencyError marks a cross-quiz ownership violation: a batch or
// attempt that does not belong to the quiz the caller is operating on.
// It indicates a programming bug, not a transient condition, and always
// aborts the enclosing operation.
type ConsistencyError struct {
	Op      string
	BatchID string
	UsageID int64
	QuizID  int64 // quiz the caller claimed
	OwnerID int64 // quiz the record actually belongs to
}

func (e *ConsistencyError) Error() string {
	if e.BatchID != "" {
		return fmt.Sprintf("%s: batch %s belongs to quiz %d, not quiz %d", e.Op, e.BatchID, e.OwnerID, e.QuizID)
	}
	return fmt.Sprintf("%s: usage %d belongs to quiz %d, not quiz %d", e.Op, e.UsageID, e.OwnerID, e.QuizID)
}
