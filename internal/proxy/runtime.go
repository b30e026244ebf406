package proxy

import (
	"time"

	"github.com/fenwick-labs/stationrt/internal/actor"
)

// Runtime is ProxyRuntime: the entry point TestEngine and instrument
// bootstrap code use to spawn, join, and cancel proxies. It carries no
// state of its own — every proxy is independent — but groups the lifecycle
// operations spec.md §4.4 describes as a unit rather than scattering them
// across callers.
type Runtime struct{}

// New returns a Runtime. There is nothing to configure; it exists so
// call sites read runtime.Spawn(...) rather than a bare package function,
// matching the rest of this codebase's constructor idiom.
func New() *Runtime { return &Runtime{} }

// Spawn starts a proxy over resource, exposing exactly exposedMethods.
func (r *Runtime) Spawn(resource any, exposedMethods []string, label string, onStop actor.ShutdownHook) *Handle {
	return Spawn(resource, exposedMethods, label, onStop)
}

// Cancel raises h's cancel flag and latches its current promise, if any,
// as cancelled.
func (r *Runtime) Cancel(h *Handle) {
	h.Cancel()
}

// Join stops h's worker and returns its resource. It refuses to join while
// a promise is outstanding and unresolved — per spec.md §4.4, the caller
// must resolve or cancel first, since an in-flight task still references
// the worker goroutine Join is about to tear down.
func (r *Runtime) Join(h *Handle, timeout time.Duration) (any, error) {
	h.mu.Lock()
	outstanding := h.current
	h.mu.Unlock()
	if outstanding != nil && !outstanding.cancelled && !outstanding.allDone() {
		return nil, promiseErrorf("cannot join a proxy with an outstanding unresolved promise")
	}
	return h.Join(timeout)
}
