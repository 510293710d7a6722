package worker

import (
	"fmt"
	"sync"

	"github.com/fundsage/FundSage/internal/domain"
	"github.com/fundsage/FundSage/internal/domain/flow"
)

// Registry maps routing steps to worker implementations. It is populated at
// wiring time and read-only afterwards; the lock exists for completeness, not
// because steady-state mutation is expected.
type Registry struct {
	mu      sync.RWMutex
	workers map[flow.Step]Worker
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[flow.Step]Worker)}
}

// Register makes a worker available under its step name. Duplicate
// registration for a step is a wiring bug and panics.
func (r *Registry) Register(w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	step := w.Step()
	if _, exists := r.workers[step]; exists {
		panic(fmt.Sprintf("worker: duplicate registration for %q", step))
	}
	r.workers[step] = w
}

// Lookup returns the worker serving the given step.
func (r *Registry) Lookup(step flow.Step) (Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[step]
	if !ok {
		return nil, fmt.Errorf("worker for step %q: %w", step, domain.ErrUnknownWorker)
	}
	return w, nil
}

// Steps returns the steps with a registered worker.
func (r *Registry) Steps() []flow.Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps := make([]flow.Step, 0, len(r.workers))
	for s := range r.workers {
		steps = append(steps, s)
	}
	return steps
}
