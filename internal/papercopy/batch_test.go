package papercopy

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/mind-engage/papercopy/internal/grading"
	"github.com/mind-engage/papercopy/internal/layout"
	"github.com/mind-engage/papercopy/internal/qusage"
	"github.com/mind-engage/papercopy/internal/storage"
)

func testQuiz() *Quiz {
	return &Quiz{
		ID:       3,
		CourseID: 5,
		Name:     "Midterm",
		Questions: []QuizQuestion{
			{Question: qusage.Question{ID: 100, Type: grading.TypeDescription}, Page: 1},
			{Question: qusage.Question{ID: 101, Type: grading.TypeSingleChoice, Choices: 4, AnswerKey: []int{1}, MaxMark: 1}, Page: 1},
			{Question: qusage.Question{ID: 102, Type: grading.TypeSingleChoice, Choices: 4, AnswerKey: []int{0}, MaxMark: 2}, Page: 2},
		},
	}
}

func newTestManager() (*Manager, *MemoryStore, *qusage.MemoryRuntime, *storage.MemStore) {
	store := NewMemoryStore()
	rt := qusage.NewMemoryRuntime()
	blobs := storage.NewMemStore()
	m := &Manager{
		Batches:  store,
		Attempts: store,
		Quizzes:  store,
		Usages:   rt,
		Blobs:    blobs,
		Rand:     rand.New(rand.NewSource(1)),
	}
	return m, store, rt, blobs
}

func TestCreateCopies(t *testing.T) {
	ctx := context.Background()
	m, store, rt, _ := newTestManager()
	quiz := testQuiz()

	b, err := m.CreateCopies(ctx, quiz, 3, layout.Options{Mode: layout.ShuffleAll, FixDescriptionLead: true}, EntryCSV)
	if err != nil {
		t.Fatalf("create copies: %v", err)
	}
	if len(b.Usages) != 3 {
		t.Fatalf("expected 3 usages, got %d", len(b.Usages))
	}
	for _, id := range b.Usages {
		u, err := rt.Load(ctx, id)
		if err != nil {
			t.Fatalf("usage %d not created: %v", id, err)
		}
		if len(u.Slots) != len(quiz.Questions) {
			t.Fatalf("usage %d has %d slots, want %d", id, len(u.Slots), len(quiz.Questions))
		}
	}
	got, err := store.GetBatch(ctx, b.ID)
	if err != nil {
		t.Fatalf("batch not stored: %v", err)
	}
	if got.EntryMethod != EntryCSV {
		t.Fatalf("entry method = %q", got.EntryMethod)
	}
}

func TestCreateBatchRejectsEmpty(t *testing.T) {
	m, _, _, _ := newTestManager()
	if _, err := m.CreateBatch(context.Background(), 3, nil, EntryCSV); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
	if _, err := m.CreateCopies(context.Background(), testQuiz(), 0, layout.Options{}, EntryCSV); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch for zero copies, got %v", err)
	}
}

func TestMaintainPrunesAndRemoves(t *testing.T) {
	ctx := context.Background()
	m, store, rt, _ := newTestManager()
	quiz := testQuiz()

	b, err := m.CreateCopies(ctx, quiz, 3, layout.Options{}, EntryCSV)
	if err != nil {
		t.Fatalf("create copies: %v", err)
	}

	// One usage dies externally.
	if err := rt.Delete(ctx, b.Usages[1]); err != nil {
		t.Fatalf("delete usage: %v", err)
	}
	if err := m.Maintain(ctx, quiz.ID); err != nil {
		t.Fatalf("maintain: %v", err)
	}
	got, _ := store.GetBatch(ctx, b.ID)
	if len(got.Usages) != 2 {
		t.Fatalf("expected pruned list of 2, got %v", got.Usages)
	}

	// Second pass is a no-op.
	if err := m.Maintain(ctx, quiz.ID); err != nil {
		t.Fatalf("second maintain: %v", err)
	}
	again, _ := store.GetBatch(ctx, b.ID)
	if len(again.Usages) != 2 {
		t.Fatalf("maintain not idempotent: %v", again.Usages)
	}

	// All usages gone: batch is defunct and disappears.
	for _, id := range got.Usages {
		rt.Delete(ctx, id)
	}
	if err := m.Maintain(ctx, quiz.ID); err != nil {
		t.Fatalf("final maintain: %v", err)
	}
	if _, err := store.GetBatch(ctx, b.ID); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("defunct batch should be removed, got %v", err)
	}
}

func TestDeleteBatchCascades(t *testing.T) {
	ctx := context.Background()
	m, store, rt, blobs := newTestManager()
	quiz := testQuiz()

	b, _ := m.CreateCopies(ctx, quiz, 2, layout.Options{}, EntryScan)
	if _, err := m.SaveArtifact(ctx, b.ID, KeyWith, []byte("rendered pdf bytes")); err != nil {
		t.Fatalf("save artifact: %v", err)
	}
	if _, err := m.AssociateManual(ctx, quiz.ID, b.Usages[0], 11); err != nil {
		t.Fatalf("associate: %v", err)
	}

	if err := m.DeleteBatch(ctx, quiz.ID, b.ID, false, false); err != nil {
		t.Fatalf("delete batch: %v", err)
	}
	if _, err := store.GetBatch(ctx, b.ID); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("batch record survived: %v", err)
	}
	for _, id := range b.Usages {
		if ok, _ := rt.Exists(ctx, id); ok {
			t.Fatalf("usage %d survived cascade", id)
		}
	}
	if _, err := store.ByUsage(ctx, b.Usages[0]); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("attempt survived cascade: %v", err)
	}
	if blobs.Len() != 0 {
		t.Fatalf("cached artifacts survived cascade: %d blobs left", blobs.Len())
	}
}

func TestDeleteBatchPreservesAssociated(t *testing.T) {
	ctx := context.Background()
	m, store, rt, _ := newTestManager()
	quiz := testQuiz()

	b, _ := m.CreateCopies(ctx, quiz, 2, layout.Options{}, EntryScan)
	if _, err := m.AssociateManual(ctx, quiz.ID, b.Usages[0], 11); err != nil {
		t.Fatalf("associate: %v", err)
	}

	if err := m.DeleteBatch(ctx, quiz.ID, b.ID, false, true); err != nil {
		t.Fatalf("delete batch: %v", err)
	}
	if ok, _ := rt.Exists(ctx, b.Usages[0]); !ok {
		t.Fatal("associated usage should be preserved")
	}
	if ok, _ := rt.Exists(ctx, b.Usages[1]); ok {
		t.Fatal("unassociated usage should be deleted")
	}
	if _, err := store.ByUsage(ctx, b.Usages[0]); err != nil {
		t.Fatalf("attempt should survive: %v", err)
	}
}

func TestDeleteBatchWrongQuizIsConsistencyError(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager()
	quiz := testQuiz()

	b, _ := m.CreateCopies(ctx, quiz, 1, layout.Options{}, EntryCSV)
	err := m.DeleteBatch(ctx, quiz.ID+1, b.ID, false, false)
	var ce *ConsistencyError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}
	if ce.OwnerID != quiz.ID {
		t.Fatalf("error should carry the owning quiz: %+v", ce)
	}
}

func TestDisassociateUsage(t *testing.T) {
	ctx := context.Background()
	m, store, _, _ := newTestManager()
	quiz := testQuiz()

	b, _ := m.CreateCopies(ctx, quiz, 1, layout.Options{}, EntryCSV)
	usageID := b.Usages[0]

	if ok, _ := m.IsAssociated(ctx, usageID); ok {
		t.Fatal("fresh usage should be unassociated")
	}
	// Disassociating an unbound usage is a logic bug.
	var ce *ConsistencyError
	if err := m.DisassociateUsage(ctx, quiz.ID, usageID); !errors.As(err, &ce) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}

	if _, err := m.AssociateManual(ctx, quiz.ID, usageID, 11); err != nil {
		t.Fatalf("associate: %v", err)
	}
	if ok, _ := m.IsAssociated(ctx, usageID); !ok {
		t.Fatal("usage should be associated")
	}
	// Wrong quiz is also a consistency violation.
	if err := m.DisassociateUsage(ctx, quiz.ID+1, usageID); !errors.As(err, &ce) {
		t.Fatalf("expected ConsistencyError for wrong quiz, got %v", err)
	}
	if err := m.DisassociateUsage(ctx, quiz.ID, usageID); err != nil {
		t.Fatalf("disassociate: %v", err)
	}
	if _, err := store.ByUsage(ctx, usageID); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("attempt should be gone: %v", err)
	}
}

func TestDeleteUsagePreserveAssociatedNoOps(t *testing.T) {
	ctx := context.Background()
	m, store, rt, _ := newTestManager()
	quiz := testQuiz()

	b, _ := m.CreateCopies(ctx, quiz, 1, layout.Options{}, EntryCSV)
	usageID := b.Usages[0]
	if _, err := m.AssociateManual(ctx, quiz.ID, usageID, 11); err != nil {
		t.Fatalf("associate: %v", err)
	}

	if err := m.DeleteUsage(ctx, usageID, true); err != nil {
		t.Fatalf("delete usage: %v", err)
	}
	if ok, _ := rt.Exists(ctx, usageID); !ok {
		t.Fatal("preserve_associated should leave the usage alone")
	}

	if err := m.DeleteUsage(ctx, usageID, false); err != nil {
		t.Fatalf("delete usage: %v", err)
	}
	if ok, _ := rt.Exists(ctx, usageID); ok {
		t.Fatal("usage should be deleted")
	}
	if _, err := store.ByUsage(ctx, usageID); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("attempt should be deleted first: %v", err)
	}
}

func TestAssociateManualGradesEmptyResponses(t *testing.T) {
	ctx := context.Background()
	m, store, rt, _ := newTestManager()
	quiz := testQuiz()

	b, _ := m.CreateCopies(ctx, quiz, 1, layout.Options{}, EntryCSV)
	usageID := b.Usages[0]

	a, err := m.AssociateManual(ctx, quiz.ID, usageID, 11)
	if err != nil {
		t.Fatalf("associate: %v", err)
	}
	if !a.Finished || a.Grade != 0 {
		t.Fatalf("manual association should finish with zero grade: %+v", a)
	}
	if a.Number != 1 {
		t.Fatalf("first attempt should be number 1, got %d", a.Number)
	}

	u, _ := rt.Load(ctx, usageID)
	for _, s := range u.Slots {
		if !s.Question.Answerable() {
			continue
		}
		if s.Response == nil {
			t.Fatalf("slot %d should carry an empty response", s.Number)
		}
		if !s.Finished {
			t.Fatalf("slot %d should be finished", s.Number)
		}
	}

	got, err := store.ByUsage(ctx, usageID)
	if err != nil {
		t.Fatalf("attempt not stored: %v", err)
	}
	if got.UserID != 11 || got.QuizID != quiz.ID {
		t.Fatalf("attempt binding wrong: %+v", got)
	}
}

func TestAttemptNumbering(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager()
	quiz := testQuiz()

	b, _ := m.CreateCopies(ctx, quiz, 3, layout.Options{}, EntryCSV)
	for i, usageID := range b.Usages {
		a, err := m.AssociateManual(ctx, quiz.ID, usageID, 11)
		if err != nil {
			t.Fatalf("associate %d: %v", i, err)
		}
		if a.Number != i+1 {
			t.Fatalf("attempt %d numbered %d", i, a.Number)
		}
	}
}

func TestSaveArtifactReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	m, store, _, blobs := newTestManager()
	quiz := testQuiz()

	b, _ := m.CreateCopies(ctx, quiz, 1, layout.Options{}, EntryCSV)
	first, err := m.SaveArtifact(ctx, b.ID, KeyNone, []byte("v1"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := m.SaveArtifact(ctx, b.ID, KeyNone, []byte("v2"))
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if first == second {
		t.Fatal("artifact keys should differ")
	}
	if blobs.Len() != 1 {
		t.Fatalf("stale artifact not dropped: %d blobs", blobs.Len())
	}
	got, _ := store.GetBatch(ctx, b.ID)
	if got.Artifacts[KeyNone] != second {
		t.Fatalf("batch should reference the new artifact: %+v", got.Artifacts)
	}

	rc, err := m.Artifact(ctx, b.ID, KeyNone)
	if err != nil {
		t.Fatalf("fetch artifact: %v", err)
	}
	rc.Close()
	if _, err := m.Artifact(ctx, b.ID, KeyOnly); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("missing mode should report not found, got %v", err)
	}
}
