package duplex

import (
	"sync"
	"time"
)

// inProcess is a Channel backed by two unbounded queues guarded by a mutex
// and condition variable, one per direction. NewInProcess returns a linked
// pair sharing both queues, each endpoint reading the leg addressed to it
// and writing the other. The mutex/cond are shared (both legs touch the
// same two slices), but closure is tracked independently per endpoint: each
// side only learns its link is gone once its own Get reads a sentinel off
// its own inbox, or its own Put/PutSentinel/PutStarted is called after
// that. One endpoint reading a sentinel must never flip the other
// endpoint's state — see crossProcess, whose two independent structs each
// carry their own closed bool and don't share this field either.
type inProcess struct {
	mu   *sync.Mutex
	cond *sync.Cond

	// inbox is what Get reads from; outbox is what Put writes to. The
	// peer endpoint has these swapped, so the two endpoints of a pair
	// share the same two slices with opposite roles.
	inbox  *[]any
	outbox *[]any

	closed bool // this endpoint's own "link broken" flag, not shared with the peer

	pending *int // count of delivered-not-yet-task_done items, in-process only
}

// NewInProcess returns a connected pair of in-process Channel endpoints.
func NewInProcess() Pair {
	mu := &sync.Mutex{}
	cond := sync.NewCond(mu)
	aToB := make([]any, 0, 8)
	bToA := make([]any, 0, 8)
	pendingParent := 0
	pendingChild := 0

	parent := &inProcess{
		mu: mu, cond: cond,
		inbox: &bToA, outbox: &aToB,
		pending: &pendingParent,
	}
	child := &inProcess{
		mu: mu, cond: cond,
		inbox: &aToB, outbox: &bToA,
		pending: &pendingChild,
	}
	return Pair{Parent: parent, Child: child}
}

func (c *inProcess) Put(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	*c.outbox = append(*c.outbox, msg)
	c.cond.Broadcast()
	return nil
}

// PutSentinel is not gated on c.closed: it is also how an endpoint
// acknowledges a sentinel it just received (worker.go's shutdown path
// calls PutSentinel right after its own Get returned ErrSentinelReceived,
// which already set c.closed on this same endpoint) — refusing that write
// would silently drop the close acknowledgment the peer is waiting on.
func (c *inProcess) PutSentinel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.outbox = append(*c.outbox, Sentinel)
	c.cond.Broadcast()
	return nil
}

func (c *inProcess) PutStarted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	*c.outbox = append(*c.outbox, Started)
	c.cond.Broadcast()
	return nil
}

func (c *inProcess) Get(timeout time.Duration) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		if c.closed {
			return nil, ErrConnectionClosed
		}
		if len(*c.inbox) > 0 {
			v := (*c.inbox)[0]
			*c.inbox = (*c.inbox)[1:]
			if isSentinel(v) {
				c.closed = true
				c.cond.Broadcast()
				return nil, ErrSentinelReceived
			}
			*c.pending++
			return v, nil
		}
		if timeout < 0 {
			c.cond.Wait()
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrEmpty
		}
		// sync.Cond has no timed wait; emulate with a small poll
		// interval bounded by the remaining budget. epsilon keeps the
		// wake-up prompt without busy-waiting (spec.md bounds this
		// fudge at <= 1ms; we use a coarser interval here since this
		// is a blocking condvar wait, not the scheduler's poll loop).
		step := remaining
		if step > 5*time.Millisecond {
			step = 5 * time.Millisecond
		}
		c.mu.Unlock()
		time.Sleep(step)
		c.mu.Lock()
	}
}

func (c *inProcess) GetNowait() (any, error) {
	return c.Get(0)
}

func (c *inProcess) Poll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(*c.inbox) == 0 {
		return false
	}
	return !isSentinel((*c.inbox)[0])
}

func (c *inProcess) KillOther(timeout time.Duration) error {
	if err := c.PutSentinel(); err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for {
		_, err := c.Get(time.Until(deadline))
		if err == ErrSentinelReceived || err == ErrConnectionClosed {
			return nil
		}
		if err == ErrEmpty {
			return ErrEmpty
		}
		if time.Now().After(deadline) {
			return ErrEmpty
		}
	}
}

func (c *inProcess) TaskDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if *c.pending > 0 {
		*c.pending--
	}
}

func (c *inProcess) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
