package papercopy

import "context"

// BatchStore persists Batch records.
type BatchStore interface {
	CreateBatch(ctx context.Context, b *Batch) error
	GetBatch(ctx context.Context, id string) (*Batch, error)
	// ListBatches returns a quiz's batches in creation order.
	ListBatches(ctx context.Context, quizID int64) ([]*Batch, error)
	// UpdateUsages replaces a batch's usage list after pruning.
	UpdateUsages(ctx context.Context, id string, usages []int64) error
	SetArtifact(ctx context.Context, id string, mode KeyMode, blobKey string) error
	DeleteBatch(ctx context.Context, id string) error
}

// AttemptStore persists Attempt records. Implementations must reject a
// second attempt on the same usage.
type AttemptStore interface {
	// CreateAttempt assigns a.ID. Returns ErrAttemptExists when the usage
	// is already bound.
	CreateAttempt(ctx context.Context, a *Attempt) error
	// FinishAttempt marks the attempt finished with its final grade.
	FinishAttempt(ctx context.Context, id int64, grade float64) error
	// ByUsage returns ErrAttemptNotFound when the usage is unbound.
	ByUsage(ctx context.Context, usageID int64) (*Attempt, error)
	ByUserQuiz(ctx context.Context, userID, quizID int64) ([]*Attempt, error)
	// MaxNumber returns 0 when the user has no attempts on the quiz.
	MaxNumber(ctx context.Context, userID, quizID int64) (int, error)
	DeleteByUsage(ctx context.Context, usageID int64) error
	// DeleteByUserQuiz removes every attempt of (user, quiz), returning the
	// count removed.
	DeleteByUserQuiz(ctx context.Context, userID, quizID int64) (int, error)
}

// QuizStore reads the host platform's quiz definitions.
type QuizStore interface {
	GetQuiz(ctx context.Context, id int64) (*Quiz, error)
}
