// Package transmitter implements the process-wide map from peripheral id
// to executor inbox. It never sees a plugin pointer, only the executor
// handle needed to dispatch requests.
package transmitter

import (
	"context"
	"sync"

	"github.com/kpal-project/kpal/internal/executor"
	"github.com/kpal-project/kpal/internal/kerrors"
	"github.com/kpal-project/kpal/pkg/models"
)

// Registry is a read-write-lock-guarded map of peripheral id to executor,
// plus a per-entry mutex serializing that peripheral's outstanding
// requests. It lives for the process lifetime; there is no delete path
// and ids are never reused.
type Registry struct {
	mu      sync.RWMutex
	entries map[uint64]*entry
}

type entry struct {
	mu sync.Mutex
	ex *executor.Executor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[uint64]*entry)}
}

// NextID returns 1 + the largest existing id, or 0 if the registry is
// empty.
func (r *Registry) NextID() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.entries) == 0 {
		return 0
	}
	var max uint64
	first := true
	for id := range r.entries {
		if first || id > max {
			max = id
			first = false
		}
	}
	return max + 1
}

// Register inserts a new peripheral's executor under id. Takes the
// write lock only for the insert itself.
func (r *Registry) Register(id uint64, ex *executor.Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &entry{ex: ex}
}

// Get returns the executor for id, or ResourceNotFound.
func (r *Registry) Get(id uint64) (*executor.Executor, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, kerrors.New(kerrors.ResourceNotFound, "peripheral does not exist")
	}
	return e.ex, nil
}

// IDs returns every registered peripheral id, unordered.
func (r *Registry) IDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// withEntry looks up id's entry under the registry read lock, then
// releases it before taking the entry's own mutex: the read lock must
// never be held across a blocking reply wait.
func (r *Registry) withEntry(id uint64) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, kerrors.New(kerrors.ResourceNotFound, "peripheral does not exist")
	}
	return e, nil
}

// GetPeripheral serializes on id's entry mutex and forwards to its executor.
func (r *Registry) GetPeripheral(ctx context.Context, id uint64) (models.Peripheral, error) {
	e, err := r.withEntry(id)
	if err != nil {
		return models.Peripheral{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ex.GetPeripheral(ctx)
}

func (r *Registry) GetAttribute(ctx context.Context, id, attrID uint64) (models.Attribute, error) {
	e, err := r.withEntry(id)
	if err != nil {
		return models.Attribute{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ex.GetAttribute(ctx, attrID)
}

func (r *Registry) GetAttributes(ctx context.Context, id uint64) ([]models.Attribute, error) {
	e, err := r.withEntry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ex.GetAttributes(ctx)
}

func (r *Registry) PatchAttribute(ctx context.Context, id, attrID uint64, value models.Value) (models.Attribute, error) {
	e, err := r.withEntry(id)
	if err != nil {
		return models.Attribute{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ex.PatchAttribute(ctx, attrID, value)
}
