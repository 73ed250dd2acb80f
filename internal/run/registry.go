package run

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// TerminalHook is invoked after a run reaches a terminal state. The host
// decides the policy (shut down, log, keep serving other runs); the registry
// only reports the final snapshot.
type TerminalHook func(State)

// Registry is the single source of truth for run state, keyed by run id.
// Every transition for a given run is serialized under the registry lock and
// applied as one atomic replace, so no partial update is ever observable.
// Entries live for the lifetime of the process.
type Registry struct {
	mu     sync.RWMutex
	runs   map[string]State
	now    func() time.Time
	hook   TerminalHook
	logger *zap.Logger
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithTerminalHook installs the post-terminal callback.
func WithTerminalHook(hook TerminalHook) RegistryOption {
	return func(r *Registry) { r.hook = hook }
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		runs:   make(map[string]State),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a fresh run as in_progress with zero progress.
func (r *Registry) Create(id string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[id]; exists {
		return State{}, ErrRunExists
	}
	now := r.now().UTC()
	st := State{
		ID:       id,
		Status:   StatusInProgress,
		Progress: 0,
		Created:  now,
		Updated:  now,
	}
	r.runs[id] = st
	return st, nil
}

// Get returns a snapshot of the run, or ErrRunNotFound.
func (r *Registry) Get(id string) (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.runs[id]
	if !ok {
		return State{}, ErrRunNotFound
	}
	return st, nil
}

// ApplyReport validates the report through the state machine and stores the
// resulting state atomically. On any validation error the stored state is
// untouched. The terminal hook, if any, runs after the lock is released so it
// may call back into the registry.
func (r *Registry) ApplyReport(id string, rep Report) (State, error) {
	r.mu.Lock()
	cur, ok := r.runs[id]
	if !ok {
		r.mu.Unlock()
		return State{}, ErrRunNotFound
	}
	next, err := Apply(cur, rep, r.now().UTC())
	if err != nil {
		r.mu.Unlock()
		return State{}, err
	}
	r.runs[id] = next
	r.mu.Unlock()

	if next.Status.Terminal() {
		r.logger.Info("run reached terminal state",
			zap.String("run_id", id),
			zap.String("status", string(next.Status)),
			zap.String("error", next.ErrorMessage),
		)
		if r.hook != nil {
			r.hook(next)
		}
	}
	return next, nil
}

// Len reports the number of registered runs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}
