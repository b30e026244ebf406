// Package duplex implements the typed bidirectional message pipe described
// as DuplexChannel: a pair of endpoints with put/get, sentinel-based close,
// and two interchangeable back-ends (in-process queues, cross-process
// pipes). Grounded on the teacher's asyncqueue/queue channel-driven dispatch
// idiom, generalized from a DB-backed work queue to a typed peer-to-peer
// link.
package duplex

import (
	"errors"
	"time"
)

// Sentinel errors returned by Channel operations. These are sentinel error
// values (not exceptions), matching Go idiom and the teacher's error-value
// style throughout its store/executor packages.
var (
	// ErrEmpty is returned by Get/GetNowait when no message is available
	// within the requested timeout. It is not an error to a caller that
	// expects it — e.g. ActorWorker's poll loop treats it as "nothing due".
	ErrEmpty = errors.New("duplex: empty")

	// ErrSentinelReceived is returned by Get when the peer's close sentinel
	// was the next item in the queue.
	ErrSentinelReceived = errors.New("duplex: sentinel received")

	// ErrConnectionClosed is returned by Put/Get once the link is known
	// broken — either because a sentinel was read out (and acknowledged)
	// previously, or because the underlying transport failed. It is an
	// absorbing state: once returned, it is returned for every later call.
	ErrConnectionClosed = errors.New("duplex: connection closed")
)

// sentinel is the distinguished close token. It is never a valid payload
// value — Channel implementations special-case it rather than ever handing
// it back as Get's return value.
type sentinel struct{}

// Sentinel is the exported identity used by callers that need to recognize
// it was exactly the sentinel observed (tests, mostly).
var Sentinel = sentinel{}

// started is the distinguished "I am up" token emitted once by a freshly
// spawned ActorWorker.
type started struct{}

var Started = started{}

func isSentinel(v any) bool {
	_, ok := v.(sentinel)
	return ok
}

func isStarted(v any) bool {
	_, ok := v.(started)
	return ok
}

// Channel is one endpoint of a DuplexChannel. Implementations: inProcess
// (paired Go channels) and crossProcess (length-prefixed gob frames over an
// io.Reader/io.Writer pair, typically an os.Pipe half).
//
// Messages never cross direction: Put always writes on this endpoint's
// outbound leg, Get always reads this endpoint's inbound leg. Sentinels are
// not data and never satisfy a Get that expects a payload.
type Channel interface {
	// Put enqueues msg for the peer. Returns ErrConnectionClosed if the
	// peer end is gone or a sentinel has already closed this leg.
	Put(msg any) error

	// Get blocks until a message arrives, the timeout elapses
	// (ErrEmpty), the peer's sentinel is read (ErrSentinelReceived), or
	// the link is broken (ErrConnectionClosed). A zero timeout is
	// equivalent to GetNowait. A negative timeout blocks indefinitely.
	Get(timeout time.Duration) (any, error)

	// GetNowait is Get(0).
	GetNowait() (any, error)

	// Poll reports whether GetNowait would currently succeed (return a
	// payload message, not an error). It never mutates queue state.
	Poll() bool

	// PutSentinel writes the well-known close token.
	PutSentinel() error

	// PutStarted writes the well-known started token.
	PutStarted() error

	// KillOther sends the close sentinel then blocks reading until the
	// peer acknowledges by sending its own sentinel back, or the link
	// breaks.
	KillOther(timeout time.Duration) error

	// TaskDone acknowledges processing of one dequeued item. A no-op on
	// the cross-process back-end; a pending-count decrement on the
	// in-process back-end (mirrors the teacher's queue ack/commit split).
	TaskDone()

	// Closed reports whether this endpoint has entered the absorbing
	// ErrConnectionClosed state.
	Closed() bool
}

// Pair is the two endpoints of one DuplexChannel, named from the
// perspective of the component that owns each.
type Pair struct {
	Parent Channel
	Child  Channel
}
