package testengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-labs/stationrt/internal/circuitbreaker"
	"github.com/fenwick-labs/stationrt/internal/viewbus"
)

var selfCheckBreakerConfig = circuitbreaker.Config{
	ErrorPct:       30,
	WindowDuration: time.Minute,
	OpenDuration:   30 * time.Second,
	HalfOpenProbes: 1,
}

func TestRunSelfCheckReportsClosedForUnregisteredInstrument(t *testing.T) {
	bus := viewbus.New(nil)
	breakers := circuitbreaker.NewBreakers()

	results := RunSelfCheck(context.Background(), bus, breakers, selfCheckBreakerConfig, []string{"psu-1"})

	require.Len(t, results, 1)
	assert.Equal(t, "psu-1", results[0].Instrument)
	assert.True(t, results[0].Healthy)
	assert.Equal(t, circuitbreaker.StateClosed.String(), results[0].State)
}

func TestRunSelfCheckReportsOpenBreakerAsUnhealthy(t *testing.T) {
	bus := viewbus.New(nil)
	breakers := circuitbreaker.NewBreakers()

	b := breakers.Get("psu-1", selfCheckBreakerConfig)
	require.NotNil(t, b)
	for i := 0; i < 10; i++ {
		b.RecordFailure()
	}
	require.Equal(t, circuitbreaker.StateOpen, b.State())

	results := RunSelfCheck(context.Background(), bus, breakers, selfCheckBreakerConfig, []string{"psu-1"})

	require.Len(t, results, 1)
	assert.False(t, results[0].Healthy)
	assert.Equal(t, circuitbreaker.StateOpen.String(), results[0].State)
}

func TestRunSelfCheckPublishesOneNotificationPerInstrument(t *testing.T) {
	bus := viewbus.New(nil)
	ch, cancel := bus.Subscribe(8)
	defer cancel()
	breakers := circuitbreaker.NewBreakers()

	RunSelfCheck(context.Background(), bus, breakers, selfCheckBreakerConfig, []string{"psu-1", "dmx-1"})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-ch:
			n, ok := msg.(NotificationMessage)
			require.True(t, ok)
			assert.Equal(t, "self-check", n.Major)
			seen[n.Minor] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for self-check notification")
		}
	}
	assert.Len(t, seen, 2)
}
