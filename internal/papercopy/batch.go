// Package papercopy owns the batch lifecycle and reconciliation engine for
// printed quiz copies: minting randomized paper-copy instances in batches,
// pruning and cascading deletion across batch/usage/attempt records, and
// matching returned bubble-sheet CSVs or scanned pages back to enrolled
// users.
package papercopy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/google/uuid"

	"github.com/mind-engage/papercopy/internal/layout"
	"github.com/mind-engage/papercopy/internal/qusage"
	"github.com/mind-engage/papercopy/internal/storage"
)

// Manager drives the batch state machine: a batch is live while it has at
// least one usage the runtime still knows, defunct once it has none, and
// defunct batches are removed on the next Maintain pass.
type Manager struct {
	Batches  BatchStore
	Attempts AttemptStore
	Quizzes  QuizStore
	Usages   qusage.Runtime
	Blobs    storage.BlobStore
	Rand     *rand.Rand
}

// CreateBatch records an already-created set of usages as one batch.
func (m *Manager) CreateBatch(ctx context.Context, quizID int64, usageIDs []int64, entry EntryMethod) (*Batch, error) {
	if len(usageIDs) == 0 {
		return nil, ErrEmptyBatch
	}
	b := &Batch{
		ID:          uuid.NewString(),
		QuizID:      quizID,
		Usages:      append([]int64(nil), usageIDs...),
		EntryMethod: entry,
	}
	if err := m.Batches.CreateBatch(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// CreateCopies mints count fresh paper copies of the quiz, each with its own
// randomized slot order, and records them as one batch.
func (m *Manager) CreateCopies(ctx context.Context, quiz *Quiz, count int, opts layout.Options, entry EntryMethod) (*Batch, error) {
	if count < 1 {
		return nil, ErrEmptyBatch
	}
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("quiz %d has no questions", quiz.ID)
	}
	ordered := make([]layout.Question, len(quiz.Questions))
	byID := make(map[int64]qusage.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		ordered[i] = layout.Question{ID: q.ID, Type: q.Type, Page: q.Page}
		byID[q.ID] = q.Question
	}

	usageIDs := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		arranged := layout.Arrange(ordered, opts, m.Rand)
		questions := make([]qusage.Question, len(arranged))
		for j, q := range arranged {
			questions[j] = byID[q.ID]
		}
		id, err := m.Usages.CreateInstance(ctx, questions)
		if err != nil {
			return nil, fmt.Errorf("create copy %d: %w", i+1, err)
		}
		usageIDs = append(usageIDs, id)
	}
	return m.CreateBatch(ctx, quiz.ID, usageIDs, entry)
}

// Maintain prunes every batch of the quiz down to the usages the runtime
// still has, and removes batches left empty. Idempotent; safe to run on
// every report view.
func (m *Manager) Maintain(ctx context.Context, quizID int64) error {
	batches, err := m.Batches.ListBatches(ctx, quizID)
	if err != nil {
		return err
	}
	for _, b := range batches {
		live := make([]int64, 0, len(b.Usages))
		for _, id := range b.Usages {
			ok, err := m.Usages.Exists(ctx, id)
			if err != nil {
				return fmt.Errorf("maintain batch %s: %w", b.ID, err)
			}
			if ok {
				live = append(live, id)
			}
		}
		switch {
		case len(live) == 0:
			if err := m.removeBatchRecord(ctx, b); err != nil {
				return err
			}
		case len(live) < len(b.Usages):
			if err := m.Batches.UpdateUsages(ctx, b.ID, live); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteBatch cascades: usages first (honoring preserve flags), then cached
// artifacts, then the batch record itself.
func (m *Manager) DeleteBatch(ctx context.Context, quizID int64, batchID string, preserveUsages, preserveAssociated bool) error {
	b, err := m.Batches.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if b.QuizID != quizID {
		return &ConsistencyError{Op: "delete batch", BatchID: batchID, QuizID: quizID, OwnerID: b.QuizID}
	}
	if !preserveUsages {
		for _, usageID := range b.Usages {
			if err := m.deleteUsage(ctx, usageID, preserveAssociated); err != nil {
				return fmt.Errorf("delete batch %s: %w", batchID, err)
			}
		}
	}
	return m.removeBatchRecord(ctx, b)
}

// DeleteUsage removes one paper copy. Callers must hold the grading-delete
// capability; that check lives at the transport layer. With
// preserveAssociated set, an associated usage is left alone.
func (m *Manager) DeleteUsage(ctx context.Context, usageID int64, preserveAssociated bool) error {
	return m.deleteUsage(ctx, usageID, preserveAssociated)
}

func (m *Manager) deleteUsage(ctx context.Context, usageID int64, preserveAssociated bool) error {
	associated, err := m.IsAssociated(ctx, usageID)
	if err != nil {
		return err
	}
	if associated {
		if preserveAssociated {
			return nil
		}
		if err := m.Attempts.DeleteByUsage(ctx, usageID); err != nil {
			return err
		}
	}
	if err := m.Usages.Delete(ctx, usageID); err != nil && !errors.Is(err, qusage.ErrNotFound) {
		return err
	}
	return nil
}

// DisassociateUsage deletes the attempt binding this usage. Calling it on an
// unbound usage is a logic bug, reported as a ConsistencyError.
func (m *Manager) DisassociateUsage(ctx context.Context, quizID, usageID int64) error {
	a, err := m.Attempts.ByUsage(ctx, usageID)
	if errors.Is(err, ErrAttemptNotFound) {
		return &ConsistencyError{Op: "disassociate usage", UsageID: usageID, QuizID: quizID, OwnerID: 0}
	}
	if err != nil {
		return err
	}
	if a.QuizID != quizID {
		return &ConsistencyError{Op: "disassociate usage", UsageID: usageID, QuizID: quizID, OwnerID: a.QuizID}
	}
	return m.Attempts.DeleteByUsage(ctx, usageID)
}

func (m *Manager) IsAssociated(ctx context.Context, usageID int64) (bool, error) {
	_, err := m.Attempts.ByUsage(ctx, usageID)
	if errors.Is(err, ErrAttemptNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AssociateManual binds a usage to a user with no uploaded responses: every
// answerable slot gets an empty response so the attempt lands in the
// needs-grading state, then the attempt is created and finished.
func (m *Manager) AssociateManual(ctx context.Context, quizID, usageID, userID int64) (*Attempt, error) {
	u, err := m.Usages.Load(ctx, usageID)
	if errors.Is(err, qusage.ErrNotFound) {
		return nil, fmt.Errorf("%w: usage %d", ErrInvalidUsage, usageID)
	}
	if err != nil {
		return nil, err
	}
	for _, s := range u.Slots {
		if !s.Question.Answerable() {
			continue
		}
		if err := m.Usages.ApplyResponse(ctx, usageID, s.Number, map[string]string{}); err != nil {
			return nil, err
		}
	}
	return m.finalizeAttempt(ctx, quizID, usageID, userID)
}

// finalizeAttempt is the shared association primitive: commit the attempt
// record, then finish the usage to trigger grading, then persist the grade.
func (m *Manager) finalizeAttempt(ctx context.Context, quizID, usageID, userID int64) (*Attempt, error) {
	max, err := m.Attempts.MaxNumber(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	a := &Attempt{UsageID: usageID, UserID: userID, QuizID: quizID, Number: max + 1}
	if err := m.Attempts.CreateAttempt(ctx, a); err != nil {
		return nil, err
	}
	grade, err := m.Usages.FinishAll(ctx, usageID)
	if err != nil {
		return nil, err
	}
	if err := m.Attempts.FinishAttempt(ctx, a.ID, grade); err != nil {
		return nil, err
	}
	a.Finished = true
	a.Grade = grade
	return a, nil
}

// SaveArtifact caches one rendered variant of a batch, replacing any
// previous blob for that key mode.
func (m *Manager) SaveArtifact(ctx context.Context, batchID string, mode KeyMode, data []byte) (string, error) {
	b, err := m.Batches.GetBatch(ctx, batchID)
	if err != nil {
		return "", err
	}
	key := "papercopy/" + batchID + "/" + uuid.NewString()
	if _, err := m.Blobs.Put(key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	if old := b.Artifacts[mode]; old != "" {
		if err := m.Blobs.Delete(old); err != nil {
			return "", fmt.Errorf("drop stale artifact: %w", err)
		}
	}
	if err := m.Batches.SetArtifact(ctx, batchID, mode, key); err != nil {
		return "", err
	}
	return key, nil
}

// Artifact streams a cached rendered variant, or ErrBatchNotFound when the
// batch has no cache for that mode.
func (m *Manager) Artifact(ctx context.Context, batchID string, mode KeyMode) (io.ReadCloser, error) {
	b, err := m.Batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	key, ok := b.Artifacts[mode]
	if !ok {
		return nil, fmt.Errorf("%w: no %s artifact for batch %s", ErrBatchNotFound, mode, batchID)
	}
	return m.Blobs.Get(key)
}

// removeBatchRecord drops cached artifacts, then the record. Child usages
// are the caller's concern.
func (m *Manager) removeBatchRecord(ctx context.Context, b *Batch) error {
	for _, key := range b.Artifacts {
		if err := m.Blobs.Delete(key); err != nil {
			return fmt.Errorf("delete artifact %s: %w", key, err)
		}
	}
	return m.Batches.DeleteBatch(ctx, b.ID)
}
