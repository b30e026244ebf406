// Package viewbus fans outbound view messages (Instruction, Notification,
// StepsInit/Start/Progress/Finish, Metrics, History*) out to every
// subscriber, per SPEC_FULL.md's "(NEW) ViewBus" component. Grounded on
// the teacher's eventbus.WorkerPool fan-out shape (a pool of goroutines
// draining a shared source and dispatching to registered targets),
// simplified here to direct channel fan-out since there is no persistent
// delivery queue to poll — view messages are best-effort progress, not
// work that must survive a restart.
package viewbus

import (
	"context"
	"sync"

	"github.com/fenwick-labs/stationrt/internal/logging"
)

// Bus fans every Publish call out to all currently registered
// subscribers. Per spec.md §5 "Ordering guarantees": view messages are
// issued in the order each component emitted them, but no global order is
// guaranteed across components — Bus makes no attempt to interleave or
// buffer beyond each subscriber's own channel.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan any
	nextID int
	mirror Mirror // optional, nil if no remote mirror is configured
}

// Mirror is the optional remote fan-out a Bus publishes alongside its
// local subscribers — the Redis-backed implementation lets a dashboard
// process subscribe without sharing memory with the station process.
type Mirror interface {
	Publish(ctx context.Context, msg any) error
}

// New returns an empty Bus. mirror may be nil.
func New(mirror Mirror) *Bus {
	return &Bus{subs: make(map[int]chan any), mirror: mirror}
}

// Subscribe registers a new subscriber and returns its channel and an
// unsubscribe function. The channel is buffered; a slow subscriber drops
// the oldest pending message rather than blocking Publish, since view
// messages are progress, not a queue that must be exactly delivered.
func (b *Bus) Subscribe(buffer int) (<-chan any, func()) {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan any, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish fans msg out to every current subscriber and, if configured,
// the remote mirror.
func (b *Bus) Publish(ctx context.Context, msg any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}

	if b.mirror != nil {
		if err := b.mirror.Publish(ctx, msg); err != nil {
			logging.Op().Warn("viewbus: mirror publish failed", "error", err)
		}
	}
}

// SubscriberCount reports how many local subscribers are currently
// registered, mostly for tests and health checks.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
