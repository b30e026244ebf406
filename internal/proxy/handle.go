package proxy

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fenwick-labs/stationrt/internal/actor"
	"github.com/fenwick-labs/stationrt/internal/duplex"
	"github.com/fenwick-labs/stationrt/internal/logging"
)

// isTimeoutErr reports whether err is the channel's "nothing arrived within
// the requested wait" signal, as opposed to a closed-link condition.
func isTimeoutErr(err error) bool {
	return errors.Is(err, duplex.ErrEmpty)
}

// Handle is ProxyRuntime's per-resource instance: it owns the parent side of
// a DuplexChannel whose child side an actor.Worker drains, and enforces the
// single-outstanding-promise rule from spec.md §4.4. Callers never construct
// one directly — Spawn returns it, and hand-written per-resource types in
// internal/instruments embed it behind an exposed-method-only surface so a
// non-exposed method is absent at compile time, not merely rejected at
// runtime.
type Handle struct {
	ch         duplex.Channel
	cancelFlag *actor.CancelFlag
	worker     *actor.Worker
	exposed    map[string]struct{}
	label      string

	mu      sync.Mutex
	current *Promise
}

// CancelAware is implemented by a resource whose long-running method wants
// to observe the proxy's cancel flag directly, per spec.md §4.4's
// cancellation protocol: "a long-running resource method calls
// check_cancel() periodically". Spawn wires the same *actor.CancelFlag it
// hands to the worker into resource via SetCancelFlag before starting it,
// so CancelCheck() inside the method and proxy.Cancel() from the caller
// observe the identical flag.
type CancelAware interface {
	SetCancelFlag(*actor.CancelFlag)
}

// Spawn starts an ActorWorker over resource and returns the Handle used to
// issue work to it. exposedMethods lists the method names the proxy surface
// may call; anything else fails with ErrProxy, mirroring spec.md §4.4's
// "calling a non-exposed method must fail — the original raises at the
// proxy boundary; Go has no decorator-based method synthesis, so the
// runtime check here is the enforcement layer beneath the hand-written,
// compile-time-restricted proxy types."
func Spawn(resource any, exposedMethods []string, label string, onStop actor.ShutdownHook) *Handle {
	pair := duplex.NewInProcess()
	cancel := actor.NewCancelFlag()
	if ca, ok := resource.(CancelAware); ok {
		ca.SetCancelFlag(cancel)
	}

	exposed := make(map[string]struct{}, len(exposedMethods))
	for _, m := range exposedMethods {
		exposed[m] = struct{}{}
	}

	h := &Handle{
		ch:         pair.Parent,
		cancelFlag: cancel,
		exposed:    exposed,
		label:      label,
	}
	h.worker = actor.Spawn(resource, pair.Child, cancel, label, onStop)

	if _, err := pair.Parent.Get(5 * time.Second); err != nil {
		logging.Op().Warn("proxy: worker did not signal started in time", "proxy", label, "error", err)
	}
	return h
}

// Issue schedules method against the owned resource at each of times,
// returning the Promise that will carry the result(s). It fails with
// ErrProxy if method isn't exposed, or ErrPromise if a promise is already
// outstanding on this proxy (spec.md §4.4: "a proxy may have at most one
// outstanding promise at a time").
func (h *Handle) Issue(method string, args []any, kwargs map[string]any, times []time.Time) (*Promise, error) {
	if _, ok := h.exposed[method]; !ok {
		return nil, proxyErrorf("method " + method + " is not exposed")
	}
	if len(times) == 0 {
		return nil, promiseErrorf("no scheduled invocation times given")
	}

	h.mu.Lock()
	if h.current != nil {
		h.mu.Unlock()
		return nil, promiseErrorf("a promise is already outstanding on this proxy")
	}

	// Sort by ExecuteAt ascending (stable, so ties keep the caller's given
	// order) before building the Promise and pushing to the worker: spec.md
	// §8's universal invariant requires resolution/iteration order to match
	// sort by (execute_at, insertion_counter) ascending regardless of the
	// order times were passed in (e.g. proxy.tick.after(0.02, 0.01, 0.03)).
	sortedTimes := make([]time.Time, len(times))
	copy(sortedTimes, times)
	sort.SliceStable(sortedTimes, func(i, j int) bool { return sortedTimes[i].Before(sortedTimes[j]) })

	tasks := make([]*actor.Task, len(sortedTimes))
	for i, t := range sortedTimes {
		tasks[i] = actor.NewTask(method, args, kwargs, t)
	}
	p := newPromise(h, tasks)
	h.current = p
	h.mu.Unlock()

	for _, t := range tasks {
		if err := h.ch.Put(t); err != nil {
			h.mu.Lock()
			h.current = nil
			h.mu.Unlock()
			return nil, promiseErrorf("failed to issue task: " + err.Error())
		}
	}
	return p, nil
}

// Cancel atomically raises the shared cancel flag and latches the current
// outstanding promise, if any, as cancelled — per spec.md §4.4, the promise
// never resolves after this point, even if its tasks later complete. It
// also releases the outstanding-promise slot immediately: spec.md's S3
// scenario requires the proxy to "accept a new promise immediately" after
// cancel, not only once something later calls Resolve on the cancelled one.
func (h *Handle) Cancel() {
	h.cancelFlag.Set()
	h.mu.Lock()
	current := h.current
	if current != nil {
		current.cancelled = true
		h.current = nil
	}
	h.mu.Unlock()
}

// CancelCheck reports whether the shared cancel flag is currently raised —
// the one method exposed directly on every proxy surface regardless of the
// underlying resource's own exposed set, per spec.md §4.4.
func (h *Handle) CancelCheck() bool {
	return h.cancelFlag.IsSet()
}

// Join tears the worker down: sends the kill sentinel, waits for the worker
// to fully stop, and returns the resource it owned so the caller can finish
// with it directly. Per spec.md §4.4, Join on a proxy with an outstanding
// unresolved promise is a caller error; it is not this layer's job to
// adjudicate that — ProxyRuntime.Join below does.
func (h *Handle) Join(timeout time.Duration) (any, error) {
	if err := h.ch.KillOther(timeout); err != nil && !errors.Is(err, duplex.ErrConnectionClosed) {
		return nil, err
	}
	select {
	case <-h.worker.Stopped():
		return h.worker.Resource(), nil
	case <-time.After(timeout):
		return nil, errors.New("proxy: worker did not stop before join timeout")
	}
}

// clearOutstanding releases the single-outstanding-promise slot once p
// fully resolves, is cancelled, or (for multi-task promises) finishes
// iteration.
func (h *Handle) clearOutstanding(p *Promise) {
	h.mu.Lock()
	if h.current == p {
		h.current = nil
	}
	h.mu.Unlock()
}

// onChannelError logs a broken link once; callers treat it as a resolved
// promise failure rather than a panic.
func (h *Handle) onChannelError(err error) {
	logging.Op().Error("proxy: channel error while resolving promise", "proxy", h.label, "error", err)
}
