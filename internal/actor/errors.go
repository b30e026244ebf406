package actor

import "errors"

// ErrCancelled is the cooperative cancellation condition a long-running
// resource method observes from CheckCancel, per spec.md §4.4's
// cancellation protocol. A method that wants to be cancellable must call
// CheckCancel periodically and propagate this error (wrapped or bare) on
// receipt.
var ErrCancelled = errors.New("actor: cancelled")

// CancelFlag is the shared cancel signal between a Proxy and its
// ActorWorker, and the long-running resource methods that worker invokes.
// It is safe for concurrent use by exactly those three parties.
type CancelFlag struct {
	ch chan struct{}
}

// NewCancelFlag returns a cleared flag.
func NewCancelFlag() *CancelFlag {
	return &CancelFlag{ch: make(chan struct{})}
}

// Set raises the flag. Idempotent: setting an already-set flag is a no-op.
func (f *CancelFlag) Set() {
	select {
	case <-f.ch:
		// already set
	default:
		close(f.ch)
	}
}

// IsSet reports whether the flag is currently raised.
func (f *CancelFlag) IsSet() bool {
	select {
	case <-f.ch:
		return true
	default:
		return false
	}
}

// Clear lowers the flag, replacing the internal channel. Only the worker's
// run loop does this, and only at the top of an iteration, per spec.md
// §4.3 step 1.
func (f *CancelFlag) Clear() {
	if f.IsSet() {
		f.ch = make(chan struct{})
	}
}

// CheckCancel is what a long-running resource method calls periodically.
// It returns ErrCancelled if the flag is set, leaving the flag itself
// untouched — only the worker's run loop clears it.
func (f *CancelFlag) CheckCancel() error {
	if f.IsSet() {
		return ErrCancelled
	}
	return nil
}

// Done returns a channel closed when the flag is set, for use in a select
// alongside a resource method's own blocking operations.
func (f *CancelFlag) Done() <-chan struct{} {
	return f.ch
}
