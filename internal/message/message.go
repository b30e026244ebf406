// Package message defines the base envelope every value sent across a
// DuplexChannel embeds, and the three message families the runtime
// distinguishes: Notification, ResponseRequired, and LayeredAction.
package message

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome is the three-valued success flag a Message carries: it is not a
// bool because "not yet answered" must be distinguishable from "answered,
// failed".
type Outcome int

const (
	Unset Outcome = iota
	Succeeded
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unset"
	}
}

// Base is the immutable, identity-bearing envelope embedded by every
// concrete message type. Fields set at send time are exported for display;
// completion fields are mutated at most once via Success/Failure/Exception.
type Base struct {
	ID        string
	SentAt    time.Time
	DoneAt    time.Time
	Timeout   time.Duration
	Fields    []Field
	outcome   Outcome
	err       error
	TraceID   string
	SpanID    string
}

// Field is one (name, value) pair surfaced to a display/log layer. Messages
// carry an ordered set of these rather than a map so rendering order is
// deterministic.
type Field struct {
	Name  string
	Value any
}

// New builds a Base with a fresh id and the current send timestamp.
func New(fields ...Field) Base {
	return Base{
		ID:     uuid.NewString(),
		SentAt: time.Now(),
		Fields: fields,
	}
}

// Done reports whether a completion timestamp has been recorded.
func (b *Base) Done() bool { return !b.DoneAt.IsZero() }

// Outcome returns the three-valued success flag.
func (b *Base) Outcome() Outcome { return b.outcome }

// Err returns the recorded exception, if any.
func (b *Base) Err() error { return b.err }

// Elapsed returns DoneAt - SentAt; zero if not yet complete.
func (b *Base) Elapsed() time.Duration {
	if !b.Done() {
		return 0
	}
	return b.DoneAt.Sub(b.SentAt)
}

// complete records the single allowed completion transition. A second call
// is a programmer error and is ignored rather than panicking, mirroring the
// take-once posture the rest of the runtime uses for message correlation.
func (b *Base) complete(outcome Outcome, err error) {
	if b.Done() {
		return
	}
	b.DoneAt = time.Now()
	b.outcome = outcome
	b.err = err
}

// Notification is a one-way message: no response is ever expected, and no
// completion transition applies.
type Notification interface {
	Message
	notification()
}

// ResponseRequired correlates a request with exactly one response.
type ResponseRequired interface {
	Message
	Success()
	Failure()
	Exception(error)
}

// Message is the common surface every family of message satisfies: an
// identity, a send time, and a completion observation.
type Message interface {
	MessageID() string
	SentAt() time.Time
	DoneAt() time.Time
	Outcome() Outcome
}

// ResponseBase embeds Base and implements the ResponseRequired completion
// transitions. Concrete response-required message types embed this.
type ResponseBase struct {
	Base
}

func (r *ResponseBase) MessageID() string   { return r.ID }
func (r *ResponseBase) SentAt() time.Time   { return r.Base.SentAt }
func (r *ResponseBase) DoneAt() time.Time   { return r.Base.DoneAt }
func (r *ResponseBase) Outcome() Outcome    { return r.Base.Outcome() }
func (r *ResponseBase) Success()            { r.Base.complete(Succeeded, nil) }
func (r *ResponseBase) Failure()            { r.Base.complete(Failed, nil) }
func (r *ResponseBase) Exception(err error) { r.Base.complete(Failed, err) }

// Target discriminates a LayeredAction's recipient: the peer itself, or a
// named sub-component the peer exposes.
type Target struct {
	Self      bool
	Component string
}

// SelfTarget addresses the peer directly.
func SelfTarget() Target { return Target{Self: true} }

// ComponentTarget addresses a named sub-component on the peer.
func ComponentTarget(name string) Target { return Target{Component: name} }

func (t Target) String() string {
	if t.Self {
		return "self"
	}
	return fmt.Sprintf("component:%s", t.Component)
}

// LayeredAction is a ResponseRequired message naming a method, positional
// args, and keyword args to invoke on the target.
type LayeredAction struct {
	ResponseBase
	To     Target
	Method string
	Args   []any
	Kwargs map[string]any
}

// NewLayeredAction builds a LayeredAction envelope ready to send.
func NewLayeredAction(to Target, method string, args []any, kwargs map[string]any) *LayeredAction {
	return &LayeredAction{
		ResponseBase: ResponseBase{Base: New(
			Field{Name: "method", Value: method},
			Field{Name: "target", Value: to.String()},
		)},
		To:     to,
		Method: method,
		Args:   args,
		Kwargs: kwargs,
	}
}

// NotificationBase embeds Base for pure one-way messages.
type NotificationBase struct {
	Base
}

func (n *NotificationBase) MessageID() string { return n.ID }
func (n *NotificationBase) SentAt() time.Time { return n.Base.SentAt }
func (n *NotificationBase) DoneAt() time.Time { return n.Base.DoneAt }
func (n *NotificationBase) Outcome() Outcome  { return n.Base.Outcome() }
func (n *NotificationBase) notification()     {}
