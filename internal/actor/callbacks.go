package actor

import "sync"

// CallbackRegistry is a take-once message-id -> callback mapping: the
// teacher's jobtracker.Tracker keeps progress around until an explicit TTL;
// this registry instead deletes on first lookup, matching spec.md §9's note
// that the original's CallbackRegistry "deletes callbacks on first lookup" —
// a redundant second response for the same id is dropped, not double
// delivered.
type CallbackRegistry struct {
	mu        sync.Mutex
	callbacks map[string]func(*Task)
}

// NewCallbackRegistry returns an empty registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{callbacks: make(map[string]func(*Task))}
}

// Register associates a callback with a task id. Re-registering the same id
// overwrites the previous callback (only one response is ever expected per
// id).
func (r *CallbackRegistry) Register(id string, cb func(*Task)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[id] = cb
}

// Take removes and returns the callback for id, or nil if none is
// registered (already taken, or never registered — e.g. a duplicate
// response).
func (r *CallbackRegistry) Take(id string) func(*Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.callbacks[id]
	if !ok {
		return nil
	}
	delete(r.callbacks, id)
	return cb
}

// Forget drops a callback without invoking it (used when a promise is
// cancelled before its task resolves).
func (r *CallbackRegistry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.callbacks, id)
}
