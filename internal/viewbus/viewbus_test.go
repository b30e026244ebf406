package viewbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := New(nil)
	ch1, unsub1 := b.Subscribe(4)
	defer unsub1()
	ch2, unsub2 := b.Subscribe(4)
	defer unsub2()

	b.Publish(context.Background(), "hello")

	select {
	case got := <-ch1:
		assert.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("subscriber 1 did not receive the message")
	}
	select {
	case got := <-ch2:
		assert.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("subscriber 2 did not receive the message")
	}
}

func TestUnsubscribeStopsFurtherDelivery(t *testing.T) {
	b := New(nil)
	ch, unsub := b.Subscribe(4)
	unsub()

	b.Publish(context.Background(), "after unsubscribe")

	_, open := <-ch
	assert.False(t, open, "channel should be closed after unsubscribe")
	assert.Equal(t, 0, b.SubscriberCount())
}

type recordingMirror struct {
	received []any
}

func (m *recordingMirror) Publish(_ context.Context, msg any) error {
	m.received = append(m.received, msg)
	return nil
}

func TestPublishAlsoReachesMirror(t *testing.T) {
	mirror := &recordingMirror{}
	b := New(mirror)

	b.Publish(context.Background(), "mirrored")

	require.Len(t, mirror.received, 1)
	assert.Equal(t, "mirrored", mirror.received[0])
}
