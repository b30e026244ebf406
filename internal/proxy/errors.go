// Package proxy implements ProxyRuntime: it spawns an actor.Worker for a
// resource and hands the caller back a Proxy whose calls become Tasks and
// Promises, with fluent scheduling modifiers and a single-outstanding-promise
// rule per spec.md §4.4.
package proxy

import "errors"

// ProxyError is raised by proxy surface misuse: calling a method the
// resource did not mark exposed. Never caused by the device under test.
var ErrProxy = errors.New("proxy: method not exposed")

// PromiseError is a programmer error: issuing a second promise while one is
// outstanding, resolving a cancelled promise, accessing results before
// resolution, combining more than one scheduling modifier, or calling a
// modifier with no times at all.
var ErrPromise = errors.New("proxy: promise error")

// ProxyErrorf / PromiseErrorf build a wrapped instance carrying a specific
// reason, while still matching errors.Is(err, ErrProxy/ErrPromise).
type wrapped struct {
	sentinel error
	reason   string
}

func (w *wrapped) Error() string { return "proxy: " + w.reason }
func (w *wrapped) Unwrap() error { return w.sentinel }

func proxyErrorf(reason string) error  { return &wrapped{sentinel: ErrProxy, reason: reason} }
func promiseErrorf(reason string) error { return &wrapped{sentinel: ErrPromise, reason: reason} }
