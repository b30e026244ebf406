package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-labs/stationrt/internal/actor"
)

// adder is the S1 fixture: resource with method add(a,b) -> a+b.
type adder struct{}

func (a *adder) Add(x, y int) int { return x + y }

// ticker is the S2 fixture: resource with method tick() -> now_ms.
type ticker struct{}

func (t *ticker) Tick() int64 { return time.Now().UnixMilli() }

// slowpoke is the S3/S4 fixture: a method that sleeps in small increments,
// calling CheckCancel each time, per spec.md §4.4's cancellation protocol.
type slowpoke struct {
	cancel *actor.CancelFlag
}

func (s *slowpoke) SetCancelFlag(f *actor.CancelFlag) { s.cancel = f }

func (s *slowpoke) Slow() error {
	for i := 0; i < 50; i++ {
		if err := s.cancel.CheckCancel(); err != nil {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// S1 — Single-task happy path.
func TestS1SingleTaskHappyPath(t *testing.T) {
	rt := New()
	h := rt.Spawn(&adder{}, []string{"Add"}, "adder-1", nil)
	defer func() { _, _ = rt.Join(h, time.Second) }()

	p, err := Method(h, "Add", []any{2, 3}, nil).Issue()
	require.NoError(t, err)

	v, err := p.Resolve(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.True(t, p.Resolved())
	assert.False(t, p.Cancelled())
}

// S2 — Timed multi-task ordering.
func TestS2TimedMultiTaskOrdering(t *testing.T) {
	rt := New()
	h := rt.Spawn(&ticker{}, []string{"Tick"}, "ticker-1", nil)
	defer func() { _, _ = rt.Join(h, time.Second) }()

	t0 := time.Now()
	p, err := Method(h, "Tick", nil, nil).After(20*time.Millisecond, 10*time.Millisecond, 30*time.Millisecond)
	require.NoError(t, err)

	v, err := p.Resolve(time.Second)
	require.NoError(t, err)
	results, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, results, 3)

	ms := make([]int64, 3)
	for i, r := range results {
		ms[i] = r.(int64)
	}
	assert.LessOrEqual(t, ms[0], ms[1])
	assert.LessOrEqual(t, ms[1], ms[2])

	targets := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	for i, target := range targets {
		got := time.UnixMilli(ms[i]).Sub(t0)
		assert.GreaterOrEqual(t, got, target)
		assert.LessOrEqual(t, got, target+50*time.Millisecond)
	}
}

// S3 — Cancellation mid-flight.
func TestS3CancellationMidFlight(t *testing.T) {
	rt := New()
	h := rt.Spawn(&slowpoke{}, []string{"Slow"}, "slow-1", nil)
	defer func() { _, _ = rt.Join(h, time.Second) }()

	p, err := Method(h, "Slow", nil, nil).Issue()
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	h.Cancel()
	time.Sleep(100 * time.Millisecond)

	assert.True(t, p.Cancelled())
	_, err = p.Results()
	assert.Error(t, err)

	// The proxy accepts a new promise immediately.
	p2, err := Method(h, "Slow", nil, nil).Issue()
	require.NoError(t, err)
	p2.h.Cancel()
}

// S4 — Two outstanding promises forbidden.
func TestS4TwoOutstandingPromisesForbidden(t *testing.T) {
	rt := New()
	h := rt.Spawn(&slowpoke{}, []string{"Slow"}, "slow-2", nil)
	defer func() { _, _ = rt.Join(h, time.Second) }()

	p1, err := Method(h, "Slow", nil, nil).Issue()
	require.NoError(t, err)

	_, err = Method(h, "Slow", nil, nil).Issue()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPromise)

	// The first promise is unaffected by the rejected second issue.
	assert.False(t, p1.Cancelled())
	h.Cancel()
}

// Round-trip law: proxy.spawn(R); proxy.join() == R.
func TestProxyJoinReturnsOriginalOwnedResource(t *testing.T) {
	rt := New()
	r := &adder{}
	h := rt.Spawn(r, []string{"Add"}, "adder-join", nil)

	got, err := rt.Join(h, time.Second)
	require.NoError(t, err)
	assert.Same(t, r, got)
}

// Universal invariant: issue() while a promise is outstanding fails and
// leaves the previous promise's state unchanged.
func TestIssueWhileOutstandingLeavesPreviousPromiseUnchanged(t *testing.T) {
	rt := New()
	h := rt.Spawn(&slowpoke{}, []string{"Slow"}, "slow-3", nil)
	defer func() { _, _ = rt.Join(h, time.Second) }()

	p1, err := Method(h, "Slow", nil, nil).Issue()
	require.NoError(t, err)
	before := p1.Resolved()

	_, err = Method(h, "Slow", nil, nil).Issue()
	require.Error(t, err)

	assert.Equal(t, before, p1.Resolved())
	h.Cancel()
}

// Boundary behaviour: resolve(timeout=0) on an unresolved promise fails
// with PromiseError.
func TestResolveZeroTimeoutOnUnresolvedPromiseFails(t *testing.T) {
	rt := New()
	h := rt.Spawn(&slowpoke{}, []string{"Slow"}, "slow-4", nil)
	defer func() { _, _ = rt.Join(h, time.Second) }()

	p, err := Method(h, "Slow", nil, nil).Issue()
	require.NoError(t, err)

	_, err = p.Resolve(0)
	assert.ErrorIs(t, err, ErrPromise)
	h.Cancel()
}

// Boundary behaviour: cancel() on a resolved promise is a no-op.
func TestCancelOnResolvedPromiseIsNoOp(t *testing.T) {
	rt := New()
	h := rt.Spawn(&adder{}, []string{"Add"}, "adder-2", nil)
	defer func() { _, _ = rt.Join(h, time.Second) }()

	p, err := Method(h, "Add", []any{1, 1}, nil).Issue()
	require.NoError(t, err)
	_, err = p.Resolve(time.Second)
	require.NoError(t, err)

	h.Cancel()
	assert.False(t, p.Cancelled(), "cancel after resolution must not retroactively mark a resolved promise cancelled")
}

// Boundary behaviour: a scheduling modifier called with no times fails
// with PromiseError.
func TestSchedulingModifierWithNoTimesFails(t *testing.T) {
	rt := New()
	h := rt.Spawn(&ticker{}, []string{"Tick"}, "ticker-2", nil)
	defer func() { _, _ = rt.Join(h, time.Second) }()

	_, err := Method(h, "Tick", nil, nil).After()
	assert.ErrorIs(t, err, ErrPromise)

	_, err = Method(h, "Tick", nil, nil).At()
	assert.ErrorIs(t, err, ErrPromise)
}
