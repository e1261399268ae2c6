package upload

import (
	"sort"
	"sync"
	"time"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
)

// DefaultRetention is how long an idle batch stays retrievable.
const DefaultRetention = time.Hour

// Registry keeps batches by id so they can be driven across requests. A batch
// that has been idle for longer than Retention is evicted and its remaining
// files released.
type Registry struct {
	Retention time.Duration

	deps    Deps
	mu      sync.Mutex
	batches map[string]*Batch
}

// NewRegistry creates an empty registry whose batches use deps.
func NewRegistry(deps Deps) *Registry {
	return &Registry{Retention: DefaultRetention, deps: deps, batches: map[string]*Batch{}}
}

// Create registers a new empty batch for owner.
func (r *Registry) Create(owner string, common Common) (*Batch, error) {
	r.Prune()
	b, err := NewBatch(r.deps, owner, common)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.batches[b.ID] = b
	r.mu.Unlock()
	return b, nil
}

// Get returns batch id if it belongs to owner.
func (r *Registry) Get(id, owner string) (*Batch, error) {
	r.mu.Lock()
	b, ok := r.batches[id]
	r.mu.Unlock()
	if !ok || b.OwnerID != owner {
		return nil, errordefs.New(errordefs.VH_NOT_FOUND, "batch not found", "")
	}
	return b, nil
}

// List returns owner's batches, oldest first.
func (r *Registry) List(owner string) []*Batch {
	r.Prune()
	r.mu.Lock()
	var out []*Batch
	for _, b := range r.batches {
		if b.OwnerID == owner {
			out = append(out, b)
		}
	}
	r.mu.Unlock()
	// ULID ids sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Remove drops batch id and releases its files. A running batch is VH_BUSY.
func (r *Registry) Remove(id, owner string) error {
	b, err := r.Get(id, owner)
	if err != nil {
		return err
	}
	if b.Running() {
		return errordefs.New(errordefs.VH_BUSY, "batch is still running", "")
	}
	r.mu.Lock()
	delete(r.batches, id)
	r.mu.Unlock()
	b.Close()
	return nil
}

// Prune evicts batches idle for longer than Retention and returns how many
// it dropped. Retention <= 0 keeps everything.
func (r *Registry) Prune() int {
	if r.Retention <= 0 {
		return 0
	}
	cutoff := r.deps.now().Add(-r.Retention)
	var evicted []*Batch
	r.mu.Lock()
	for id, b := range r.batches {
		if at, ok := b.idleSince(); ok && at.Before(cutoff) {
			delete(r.batches, id)
			evicted = append(evicted, b)
		}
	}
	r.mu.Unlock()
	for _, b := range evicted {
		b.Close()
	}
	return len(evicted)
}

// Close releases every batch.
func (r *Registry) Close() {
	r.mu.Lock()
	batches := r.batches
	r.batches = map[string]*Batch{}
	r.mu.Unlock()
	for _, b := range batches {
		b.Close()
	}
}
