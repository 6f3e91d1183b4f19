package papercopy

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements BatchStore, AttemptStore and QuizStore in process
// memory. Used in tests and offline single-node runs.
type MemoryStore struct {
	mu            sync.Mutex
	batches       map[string]*Batch
	batchOrder    []string
	attempts      map[int64]*Attempt // by attempt id
	nextAttemptID int64
	quizzes       map[int64]*Quiz
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches:  map[string]*Batch{},
		attempts: map[int64]*Attempt{},
		quizzes:  map[int64]*Quiz{},
	}
}

// PutQuiz installs a quiz definition. Test helper.
func (m *MemoryStore) PutQuiz(q *Quiz) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
}

func (m *MemoryStore) GetQuiz(_ context.Context, id int64) (*Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return nil, ErrQuizNotFound
	}
	return q, nil
}

func (m *MemoryStore) CreateBatch(_ context.Context, b *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	stored := copyBatch(b)
	m.batches[b.ID] = stored
	m.batchOrder = append(m.batchOrder, b.ID)
	return nil
}

func (m *MemoryStore) GetBatch(_ context.Context, id string) (*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return copyBatch(b), nil
}

func (m *MemoryStore) ListBatches(_ context.Context, quizID int64) ([]*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Batch
	for _, id := range m.batchOrder {
		if b, ok := m.batches[id]; ok && b.QuizID == quizID {
			out = append(out, copyBatch(b))
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateUsages(_ context.Context, id string, usages []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return ErrBatchNotFound
	}
	b.Usages = append([]int64(nil), usages...)
	return nil
}

func (m *MemoryStore) SetArtifact(_ context.Context, id string, mode KeyMode, blobKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return ErrBatchNotFound
	}
	if b.Artifacts == nil {
		b.Artifacts = map[KeyMode]string{}
	}
	if blobKey == "" {
		delete(b.Artifacts, mode)
	} else {
		b.Artifacts[mode] = blobKey
	}
	return nil
}

func (m *MemoryStore) DeleteBatch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[id]; !ok {
		return ErrBatchNotFound
	}
	delete(m.batches, id)
	for i, bid := range m.batchOrder {
		if bid == id {
			m.batchOrder = append(m.batchOrder[:i], m.batchOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) CreateAttempt(_ context.Context, a *Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.attempts {
		if existing.UsageID == a.UsageID {
			return ErrAttemptExists
		}
	}
	m.nextAttemptID++
	a.ID = m.nextAttemptID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	stored := *a
	m.attempts[a.ID] = &stored
	return nil
}

func (m *MemoryStore) FinishAttempt(_ context.Context, id int64, grade float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return ErrAttemptNotFound
	}
	a.Finished = true
	a.Grade = grade
	return nil
}

func (m *MemoryStore) ByUsage(_ context.Context, usageID int64) (*Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.UsageID == usageID {
			out := *a
			return &out, nil
		}
	}
	return nil, ErrAttemptNotFound
}

func (m *MemoryStore) ByUserQuiz(_ context.Context, userID, quizID int64) ([]*Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Attempt
	for _, a := range m.attempts {
		if a.UserID == userID && a.QuizID == quizID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *MemoryStore) MaxNumber(_ context.Context, userID, quizID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, a := range m.attempts {
		if a.UserID == userID && a.QuizID == quizID && a.Number > max {
			max = a.Number
		}
	}
	return max, nil
}

func (m *MemoryStore) DeleteByUsage(_ context.Context, usageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.attempts {
		if a.UsageID == usageID {
			delete(m.attempts, id)
			return nil
		}
	}
	return ErrAttemptNotFound
}

func (m *MemoryStore) DeleteByUserQuiz(_ context.Context, userID, quizID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, a := range m.attempts {
		if a.UserID == userID && a.QuizID == quizID {
			delete(m.attempts, id)
			n++
		}
	}
	return n, nil
}

func copyBatch(b *Batch) *Batch {
	out := *b
	out.Usages = append([]int64(nil), b.Usages...)
	if b.Artifacts != nil {
		out.Artifacts = make(map[KeyMode]string, len(b.Artifacts))
		for k, v := range b.Artifacts {
			out.Artifacts[k] = v
		}
	}
	return &out
}
