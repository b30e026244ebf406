package configstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store backing tests and local runs without a
// Postgres instance — the teacher's own packages keep an in-memory
// counterpart alongside their Postgres store (e.g. store.Cache) for the
// same reason.
type Memory struct {
	mu         sync.Mutex
	models     map[string]*TestModel // key: mn|option
	iterations map[string]*Iteration
	order      []string // iteration ids, insertion order
	updates    []AppConfigUpdate
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		models:     make(map[string]*TestModel),
		iterations: make(map[string]*Iteration),
	}
}

// PutModel registers or replaces the TestModel for (model.MN, model.Option)
// — a test-setup helper with no spec.md analogue, since ConfigStore's
// write path is out of scope; Memory needs some way to seed fixtures.
func (m *Memory) PutModel(model *TestModel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models[modelKey(model.MN, model.Option)] = model
}

// UpsertModel registers or replaces the TestModel for (model.MN,
// model.Option), satisfying ModelWriter for a YamlReloader under test.
func (m *Memory) UpsertModel(_ context.Context, model *TestModel) error {
	m.PutModel(model)
	return nil
}

func modelKey(mn int64, option string) string {
	return fmt.Sprintf("%d|%s", mn, option)
}

func (m *Memory) ResolveModel(_ context.Context, mn int64, option string) (*TestModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	model, ok := m.models[modelKey(mn, option)]
	if !ok {
		return nil, ErrNotFound
	}
	return model, nil
}

func (m *Memory) CreateIteration(_ context.Context, dut DUT, revisionID string) (*Iteration, error) {
	it := &Iteration{
		ID:         uuid.NewString(),
		DUT:        dut,
		RevisionID: revisionID,
		State:      IterationIdle,
	}
	m.mu.Lock()
	m.iterations[it.ID] = it
	m.order = append(m.order, it.ID)
	m.mu.Unlock()
	return it, nil
}

func (m *Memory) CommitIteration(_ context.Context, it *Iteration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.iterations[it.ID]; !ok {
		return fmt.Errorf("configstore: commit of unknown iteration %q", it.ID)
	}
	m.iterations[it.ID] = it
	return nil
}

func (m *Memory) RecentIterations(_ context.Context, n int) ([]*Iteration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Iteration, 0, n)
	for _, id := range m.order {
		out = append(out, m.iterations[id])
	}
	// reverse to newest-first (insertion order == creation order)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *Memory) RecordConfigUpdate(_ context.Context, u AppConfigUpdate) error {
	m.mu.Lock()
	m.updates = append(m.updates, u)
	m.mu.Unlock()
	return nil
}
