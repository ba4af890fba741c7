package manager

import (
	"context"
	"sync"
)

// Registry tracks the machines running in this process so they can be
// signaled.
type Registry struct {
	mu       sync.RWMutex
	machines map[string]*Machine
}

func NewRegistry() *Registry {
	return &Registry{machines: make(map[string]*Machine)}
}

// Run runs m while it is registered.
func (r *Registry) Run(ctx context.Context, m *Machine, scheduleID, stepID int) error {
	id := m.ID().String()

	r.mu.Lock()
	r.machines[id] = m
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.machines, id)
		r.mu.Unlock()
	}()

	return m.Run(ctx, scheduleID, stepID)
}

func (r *Registry) Get(id string) (*Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[id]
	return m, ok
}

func (r *Registry) Running() []Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Progress, 0, len(r.machines))
	for _, m := range r.machines {
		out = append(out, m.Progress())
	}
	return out
}
