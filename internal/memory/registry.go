package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// userIndex is one user's in-memory index. mu serializes every
// load-mutate-persist cycle for that user.
type userIndex struct {
	mu        sync.Mutex
	index     flatIndex
	payloads  []Payload
	persisted int
}

func newUserIndex(snap *Snapshot) *userIndex {
	h := &userIndex{}
	if snap.Len() > 0 {
		h.index = flatIndex{dim: snap.Dim, vectors: snap.Vectors}
		h.payloads = snap.Payloads
		h.persisted = snap.Len()
	}
	return h
}

func (h *userIndex) snapshot() *Snapshot {
	return &Snapshot{Dim: h.index.dim, Vectors: h.index.vectors, Payloads: h.payloads}
}

// Registry hands out per-user indexes, loading each from Storage on first
// use and keeping it for the life of the process.
type Registry struct {
	storage Storage

	mu      sync.Mutex
	handles map[uuid.UUID]*userIndex
	loads   singleflight.Group
}

func NewRegistry(storage Storage) *Registry {
	return &Registry{
		storage: storage,
		handles: make(map[uuid.UUID]*userIndex),
	}
}

func (r *Registry) cached(userID uuid.UUID) (*userIndex, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[userID]
	return h, ok
}

// get returns the user's index, loading it once even under concurrent callers.
// The shared load is detached from the caller's cancellation so one aborted
// request cannot fail the others waiting on it.
func (r *Registry) get(ctx context.Context, userID uuid.UUID) (*userIndex, error) {
	if h, ok := r.cached(userID); ok {
		return h, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := r.loads.DoChan(userID.String(), func() (any, error) {
		if h, ok := r.cached(userID); ok {
			return h, nil
		}
		snap, err := r.storage.Load(loadCtx, userID)
		if err != nil {
			return nil, err
		}
		h := newUserIndex(snap)
		r.mu.Lock()
		r.handles[userID] = h
		r.mu.Unlock()
		return h, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("loading memory index: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("loading memory index: %w", res.Err)
		}
		return res.Val.(*userIndex), nil
	}
}

// Evict drops a cached index so the next access reloads it from Storage.
func (r *Registry) Evict(userID uuid.UUID) {
	r.mu.Lock()
	delete(r.handles, userID)
	r.mu.Unlock()
}

// Loaded returns how many user indexes are resident.
func (r *Registry) Loaded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
