package fetch

import (
	"fmt"
	"sync"
	"time"
)

type State string

const (
	StateQueued    State = "queued"
	StateFetching  State = "fetching"
	StateSkipped   State = "skipped"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Item tracks the in-memory lifecycle of one manifest asset during a run.
type Item struct {
	ID    string `json:"id"`
	Asset Asset  `json:"asset"`
	State State  `json:"state"`
	Error string `json:"error,omitempty"`

	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256,omitempty"`
	Members   int    `json:"members,omitempty"` // archive members extracted

	// Optional database binding for persistence updates.
	DBID int64 `json:"db_id,omitempty"`

	startedAt time.Time
	updatedAt time.Time
}

// Registry provides thread-safe storage and manipulation of fetch items.
// It acts as a pure state container without any fetch logic or external dependencies.
type Registry struct {
	mu    sync.RWMutex
	items map[string]*Item
}

// NewRegistry creates a new Registry with the specified initial capacity.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = 8
	}
	return &Registry{
		items: make(map[string]*Item, capacity),
	}
}

// Create adds a new item to the registry and returns it.
// Returns an error if an item with the given ID already exists.
func (r *Registry) Create(id string, asset Asset) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; exists {
		return nil, fmt.Errorf("item with id %s already exists", id)
	}

	it := &Item{
		ID:        id,
		Asset:     asset,
		State:     StateQueued,
		startedAt: time.Now(),
		updatedAt: time.Now(),
	}
	r.items[id] = it
	return it, nil
}

// Get retrieves a single item by ID.
// Returns nil if the item doesn't exist.
func (r *Registry) Get(id string) *Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if it, ok := r.items[id]; ok {
		// Return a copy to prevent external modification
		cp := *it
		return &cp
	}
	return nil
}

// Update atomically updates an item using the provided function.
// Returns an error if the item doesn't exist.
func (r *Registry) Update(id string, fn func(*Item)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return fmt.Errorf("item with id %s not found", id)
	}

	fn(it)
	it.updatedAt = time.Now()
	return nil
}

// Snapshot returns a copy of all items in the registry.
// If id is non-empty, returns at most that single item.
func (r *Registry) Snapshot(id string) []*Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id != "" {
		if it, ok := r.items[id]; ok {
			cp := *it
			return []*Item{&cp}
		}
		return []*Item{}
	}

	out := make([]*Item, 0, len(r.items))
	for _, it := range r.items {
		cp := *it
		out = append(out, &cp)
	}
	return out
}

// Attach sets the database ID for an item.
// Returns an error if the item doesn't exist.
func (r *Registry) Attach(id string, dbID int64) error {
	return r.Update(id, func(it *Item) {
		it.DBID = dbID
	})
}

// SetState updates the state and optional error message for an item.
// Returns an error if the item doesn't exist.
func (r *Registry) SetState(id string, state State, errMsg string) error {
	return r.Update(id, func(it *Item) {
		it.State = state
		it.Error = errMsg
	})
}

// SetResult records the measured size, digest, and extracted member count.
// Returns an error if the item doesn't exist.
func (r *Registry) SetResult(id string, sizeBytes int64, sha256 string, members int) error {
	return r.Update(id, func(it *Item) {
		it.SizeBytes = sizeBytes
		it.SHA256 = sha256
		it.Members = members
	})
}

// Size returns the number of items in the registry.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// CountByState returns how many items are in the given state.
func (r *Registry) CountByState(state State) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, it := range r.items {
		if it.State == state {
			n++
		}
	}
	return n
}
