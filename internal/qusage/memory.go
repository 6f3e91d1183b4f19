package qusage

import (
	"context"
	"sync"

	"github.com/mind-engage/papercopy/internal/grading"
)

// MemoryRuntime keeps usages in process memory. Used in tests and small
// single-node deployments.
type MemoryRuntime struct {
	mu            sync.Mutex
	usages        map[int64]*Usage
	nextUsageID   int64
	nextAttemptID int64
	grader        *grading.Grader
}

func NewMemoryRuntime() *MemoryRuntime {
	return &MemoryRuntime{
		usages: map[int64]*Usage{},
		grader: grading.NewGrader(),
	}
}

func (m *MemoryRuntime) CreateInstance(_ context.Context, questions []Question) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUsageID++
	u := &Usage{ID: m.nextUsageID}
	for i, q := range questions {
		m.nextAttemptID++
		u.Slots = append(u.Slots, Slot{Number: i + 1, AttemptID: m.nextAttemptID, Question: q})
	}
	m.usages[u.ID] = u
	return u.ID, nil
}

// Seed installs a usage under a caller-chosen id, overwriting any existing
// one. Test helper.
func (m *MemoryRuntime) Seed(id int64, questions []Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &Usage{ID: id}
	for i, q := range questions {
		m.nextAttemptID++
		u.Slots = append(u.Slots, Slot{Number: i + 1, AttemptID: m.nextAttemptID, Question: q})
	}
	m.usages[id] = u
	if id > m.nextUsageID {
		m.nextUsageID = id
	}
}

func (m *MemoryRuntime) Exists(_ context.Context, usageID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.usages[usageID]
	return ok, nil
}

func (m *MemoryRuntime) Load(_ context.Context, usageID int64) (*Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usages[usageID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUsage(u), nil
}

func (m *MemoryRuntime) ApplyResponse(_ context.Context, usageID int64, slot int, response map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.slot(usageID, slot)
	if err != nil {
		return err
	}
	s.Response = copyResponse(response)
	return nil
}

func (m *MemoryRuntime) FinishSlot(_ context.Context, usageID int64, slot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.slot(usageID, slot)
	if err != nil {
		return err
	}
	s.Finished = true
	return nil
}

func (m *MemoryRuntime) FinishAll(_ context.Context, usageID int64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usages[usageID]
	if !ok {
		return 0, ErrNotFound
	}
	for i := range u.Slots {
		u.Slots[i].Finished = true
	}
	return totalMark(u, m.grader), nil
}

func (m *MemoryRuntime) ManualGrade(_ context.Context, usageID int64, slot int, comment string, mark float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.slot(usageID, slot)
	if err != nil {
		return err
	}
	s.ManualMark = &mark
	s.Comment = comment
	return nil
}

func (m *MemoryRuntime) Delete(_ context.Context, usageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usages[usageID]; !ok {
		return ErrNotFound
	}
	delete(m.usages, usageID)
	return nil
}

// slot assumes m.mu is held.
func (m *MemoryRuntime) slot(usageID int64, slot int) (*Slot, error) {
	u, ok := m.usages[usageID]
	if !ok {
		return nil, ErrNotFound
	}
	if slot < 1 || slot > len(u.Slots) {
		return nil, ErrNotFound
	}
	return &u.Slots[slot-1], nil
}

func copyUsage(u *Usage) *Usage {
	out := &Usage{ID: u.ID, Slots: make([]Slot, len(u.Slots))}
	copy(out.Slots, u.Slots)
	for i := range out.Slots {
		out.Slots[i].Response = copyResponse(out.Slots[i].Response)
		if u.Slots[i].ManualMark != nil {
			mark := *u.Slots[i].ManualMark
			out.Slots[i].ManualMark = &mark
		}
	}
	return out
}

func copyResponse(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
