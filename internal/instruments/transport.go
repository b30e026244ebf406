// Package instruments holds the resource types ActorWorker owns — power
// supplies, light meters, programmers, EEPROM writers — and the
// hand-written proxy-shaped wrappers around proxy.Handle that restrict
// each resource's exposed surface at compile time, per spec.md §9's
// design note and SPEC_FULL.md §4.4's grounding. Wire-protocol framing
// for any one instrument is out of scope (spec.md §1); Transport is the
// seam a real driver plugs into.
package instruments

import (
	"context"
	"time"
)

// Transport is the wire-protocol seam spec.md §1 names as an external
// collaborator: "a Transport trait with send(bytes)/recv(timeout) ->
// bytes and per-instrument framing."
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Recv(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}
