// Package actor implements the ActorWorker runtime: a task owning a single
// resource, serviced by a min-heap scheduled dispatch loop reading from one
// DuplexChannel endpoint. Grounded on the teacher's asyncqueue.WorkerPool
// poll/dispatch structure, generalized from a DB-backed queue to an
// in-memory heap of scheduled *Task values.
package actor

import (
	"time"

	"github.com/google/uuid"
)

// notDone is the sentinel written into Task.result to distinguish "has not
// returned yet" from "returned nil". A Task whose method genuinely returns
// nil must still read as done once the worker writes that nil back.
type notDoneMarker struct{}

var notDone = notDoneMarker{}

// Task is one scheduled invocation of a named method against a worker's
// owned resource.
type Task struct {
	ID         string
	Method     string
	Args       []any
	Kwargs     map[string]any
	ExecuteAt  time.Time
	insertSeq  uint64 // heap tie-break, see heap.go

	result    any
	exception error
	started   time.Time
	done      time.Time
}

// NewTask builds a Task scheduled for execAt.
func NewTask(method string, args []any, kwargs map[string]any, execAt time.Time) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Method:    method,
		Args:      args,
		Kwargs:    kwargs,
		ExecuteAt: execAt,
		result:    notDone,
	}
}

// IsDone reports whether the worker has written a result (value or
// exception) back onto this task. A returned nil value still counts as
// done; only the notDone sentinel means "not yet".
func (t *Task) IsDone() bool {
	_, stillPending := t.result.(notDoneMarker)
	return !stillPending
}

// Result returns the task's returned value. Only meaningful once IsDone.
func (t *Task) Result() any { return t.result }

// Exception returns the exception the resource method raised, if any.
func (t *Task) Exception() error { return t.exception }

// Elapsed returns the wall-clock duration the resource method actually ran
// for: done - started. Zero until the task has been executed.
func (t *Task) Elapsed() time.Duration {
	if t.started.IsZero() || t.done.IsZero() {
		return 0
	}
	return t.done.Sub(t.started)
}

// complete is called by the worker's run loop exactly once per task,
// whether the resource method succeeded or raised.
func (t *Task) complete(result any, err error, started, done time.Time) {
	t.result = result
	t.exception = err
	t.started = started
	t.done = done
}

// AdoptResult copies completion state from wire, a freshly gob-decoded Task
// that arrived over a cross-process DuplexChannel and therefore isn't the
// same object as the one a Promise issued. In-process back-ends never need
// this: the Task that comes back off the channel there is the same pointer
// the worker executed.
func (t *Task) AdoptResult(wire *Task) {
	t.result = wire.result
	t.exception = wire.exception
	t.started = wire.started
	t.done = wire.done
}
