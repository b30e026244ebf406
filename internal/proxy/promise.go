package proxy

import (
	"time"

	"github.com/fenwick-labs/stationrt/internal/actor"
)

// Promise is the handle to one or more Tasks issued as a unit, per spec.md
// §3. It resolves to the single task's result when built from one task, or
// an ordered (by execute_at) slice when built from more than one.
type Promise struct {
	h     *Handle
	tasks []*actor.Task
	byID  map[string]*actor.Task

	resolvedCount int
	observed      bool
	cancelled     bool
	cursor        int // for Iterate
}

func newPromise(h *Handle, tasks []*actor.Task) *Promise {
	byID := make(map[string]*actor.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return &Promise{h: h, tasks: tasks, byID: byID}
}

// allDone reports whether every constituent task has a result slot filled.
func (p *Promise) allDone() bool {
	for _, t := range p.tasks {
		if !t.IsDone() {
			return false
		}
	}
	return true
}

// Resolved reports whether every task is done and the caller has observed
// the promise at least once (via Resolve or Results), per spec.md §3.
func (p *Promise) Resolved() bool {
	return p.observed && p.allDone() && !p.cancelled
}

// Cancelled reports whether cancel(proxy) landed before this promise fully
// resolved.
func (p *Promise) Cancelled() bool { return p.cancelled }

// Resolve blocks until every task completes or timeout elapses, then
// returns the scalar result (single task) or ordered slice (multiple
// tasks). A zero timeout is a poll; a negative timeout blocks indefinitely.
func (p *Promise) Resolve(timeout time.Duration) (any, error) {
	p.observed = true

	if p.cancelled {
		return nil, promiseErrorf("cannot resolve a cancelled promise")
	}

	var deadline time.Time
	hasDeadline := timeout >= 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}

	for !p.allDone() {
		if p.cancelled || p.h.cancelFlag.IsSet() {
			p.cancelled = true
			p.h.clearOutstanding(p)
			return nil, promiseErrorf("promise cancelled while resolving")
		}

		remaining := time.Duration(-1)
		if hasDeadline {
			remaining = time.Until(deadline)
			if remaining < 0 {
				return nil, promiseErrorf("resolve timed out")
			}
		}

		v, err := p.h.ch.Get(remaining)
		if err != nil {
			if isTimeoutErr(err) {
				if hasDeadline {
					return nil, promiseErrorf("resolve timed out")
				}
				continue
			}
			p.h.onChannelError(err)
			return nil, promiseErrorf("channel closed while resolving: " + err.Error())
		}
		p.h.ch.TaskDone()

		task, ok := v.(*actor.Task)
		if !ok {
			continue
		}
		p.ingest(task)
	}

	p.h.clearOutstanding(p)
	return p.resultsLocked()
}

// ingest merges a completed task received over the wire into the promise's
// own task objects, matching by id (the cross-process back-end decodes a
// fresh *Task value rather than sharing the original pointer).
func (p *Promise) ingest(wire *actor.Task) {
	local, ok := p.byID[wire.ID]
	if !ok {
		return
	}
	if local == wire {
		return // in-process back-end: same object, already mutated
	}
	local.AdoptResult(wire)
}

// Results returns the resolved value(s) without waiting further; it fails
// if the promise is unresolved or cancelled.
func (p *Promise) Results() (any, error) {
	if p.cancelled {
		return nil, promiseErrorf("cannot access results of a cancelled promise")
	}
	if !p.observed || !p.allDone() {
		return nil, promiseErrorf("promise not resolved")
	}
	return p.resultsLocked()
}

func (p *Promise) resultsLocked() (any, error) {
	if len(p.tasks) == 1 {
		t := p.tasks[0]
		if t.Exception() != nil {
			return nil, t.Exception()
		}
		return t.Result(), nil
	}
	out := make([]any, len(p.tasks))
	for i, t := range p.tasks {
		if t.Exception() != nil {
			return nil, t.Exception()
		}
		out[i] = t.Result()
	}
	return out, nil
}

// Next implements iteration over a multi-task promise: each call blocks
// until the next-in-order task resolves and returns its value. Calling
// Next on a single-task promise is a PromiseError — single-task promises
// resolve to a scalar, not a sequence.
func (p *Promise) Next(timeout time.Duration) (any, bool, error) {
	if len(p.tasks) == 1 {
		return nil, false, promiseErrorf("cannot iterate a single-task promise")
	}
	if p.cursor >= len(p.tasks) {
		return nil, false, nil // end of iteration, equivalent to resolved
	}

	want := p.tasks[p.cursor]
	var deadline time.Time
	hasDeadline := timeout >= 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}
	for !want.IsDone() {
		if p.cancelled || p.h.cancelFlag.IsSet() {
			p.cancelled = true
			return nil, false, promiseErrorf("promise cancelled while iterating")
		}
		remaining := time.Duration(-1)
		if hasDeadline {
			remaining = time.Until(deadline)
			if remaining < 0 {
				return nil, false, promiseErrorf("iteration timed out")
			}
		}
		v, err := p.h.ch.Get(remaining)
		if err != nil {
			if isTimeoutErr(err) {
				if hasDeadline {
					return nil, false, promiseErrorf("iteration timed out")
				}
				continue
			}
			return nil, false, promiseErrorf("channel closed while iterating: " + err.Error())
		}
		p.h.ch.TaskDone()
		if task, ok := v.(*actor.Task); ok {
			p.ingest(task)
		}
	}

	p.cursor++
	p.observed = true
	if p.cursor == len(p.tasks) {
		p.h.clearOutstanding(p)
	}
	if want.Exception() != nil {
		return nil, true, want.Exception()
	}
	return want.Result(), true, nil
}
