package testengine

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/fenwick-labs/stationrt/internal/circuitbreaker"
	"github.com/fenwick-labs/stationrt/internal/viewbus"
)

// SelfCheckResult is one instrument's outcome from an instrument-level
// self-check broadcast, answering a TECheckMessage.
type SelfCheckResult struct {
	Instrument string
	Healthy    bool
	State      string
}

// RunSelfCheck reports every guarded instrument's current circuit breaker
// state without driving a DUT through any step, and publishes each result
// on bus as a NotificationMessage for the UI. cfg must match the Config
// each instrument's breaker was originally created with (see
// testengine.Guard) — Breakers.Get treats an invalid Config as "not
// configured" and won't return an already-registered breaker under a
// zero Config.
func RunSelfCheck(ctx context.Context, bus *viewbus.Bus, breakers *circuitbreaker.Breakers, cfg circuitbreaker.Config, instruments []string) []SelfCheckResult {
	results := make([]SelfCheckResult, 0, len(instruments))
	for _, name := range instruments {
		state := "unknown"
		healthy := true
		if b := breakers.Get(name, cfg); b != nil {
			state = b.State().String()
			healthy = b.Allow()
		}
		results = append(results, SelfCheckResult{Instrument: name, Healthy: healthy, State: state})

		color := "green"
		if !healthy {
			color = "red"
		}
		bus.Publish(ctx, NotificationMessage{Major: "self-check", Minor: fmt.Sprintf("%s: %s", name, state), Color: color})
	}
	return results
}

// SelfCheckScheduler runs RunSelfCheck on a cron cadence. This is a
// calendar-style cadence with no per-resource affinity, a distinct concern
// from ActorWorker's own min-heap scheduler, which orders tasks within a
// single resource's queue rather than ticking on a wall-clock schedule.
type SelfCheckScheduler struct {
	cron *cron.Cron
}

// NewSelfCheckScheduler starts a cron job matching spec (standard 5-field
// cron syntax) that runs RunSelfCheck against instruments on every tick.
// Call Stop to shut it down.
func NewSelfCheckScheduler(ctx context.Context, spec string, bus *viewbus.Bus, breakers *circuitbreaker.Breakers, cfg circuitbreaker.Config, instruments []string) (*SelfCheckScheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		RunSelfCheck(ctx, bus, breakers, cfg, instruments)
	})
	if err != nil {
		return nil, fmt.Errorf("testengine: schedule self-check %q: %w", spec, err)
	}
	c.Start()
	return &SelfCheckScheduler{cron: c}, nil
}

// Stop waits for any in-flight self-check to finish, then halts the
// scheduler. Safe to call on a nil *SelfCheckScheduler.
func (s *SelfCheckScheduler) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
