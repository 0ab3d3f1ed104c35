package orchestrator

import (
	"sync"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// PlanStore archives plans by their content-hash id. The in-memory store is
// the default; a durable backend can implement the same interface.
type PlanStore interface {
	Put(plan Plan) error
	Get(id string) (Plan, bool)
}

// MemoryPlanStore is the default in-process PlanStore.
type MemoryPlanStore struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewMemoryPlanStore constructs an empty MemoryPlanStore.
func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{plans: map[string]Plan{}}
}

// Put archives plan under its id, overwriting any prior entry.
func (s *MemoryPlanStore) Put(plan Plan) error {
	if plan.ID == "" {
		return ccoserr.New(ccoserr.KindParse, "plan store: cannot archive a plan with no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan
	return nil
}

// Get returns the archived plan for id, if any.
func (s *MemoryPlanStore) Get(id string) (Plan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	return p, ok
}
