package testengine

import (
	"context"
	"fmt"

	"github.com/fenwick-labs/stationrt/internal/circuitbreaker"
	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/metrics"
)

// BreakerGuard wraps a Step with a per-instrument circuit breaker, per
// spec.md §4.5's "instrument wedged" StationFailure trigger: once
// StationFailures make up the config's ErrorPct of the instrument's runs
// within its WindowDuration, the breaker trips, and further calls fail fast
// instead of hanging on a wedged transport. Grounded on the proxy pattern's per-handle isolation —
// a breaker is keyed the same way a proxy.Handle is, by instrument label.
type BreakerGuard struct {
	Step
	Instrument string
	Breaker    *circuitbreaker.Breaker
}

// Guard wraps step with a breaker for instrument, pulling (or creating)
// it from breakers. Returns step unchanged if breakers is nil or the
// breaker's config disables it (see Breakers.Get).
func Guard(step Step, instrument string, breakers *circuitbreaker.Breakers, cfg circuitbreaker.Config) Step {
	if breakers == nil {
		return step
	}
	b := breakers.Get(instrument, cfg)
	if b == nil {
		return step
	}
	return &BreakerGuard{Step: step, Instrument: instrument, Breaker: b}
}

func (g *BreakerGuard) Run(ctx context.Context, model *configstore.TestModel, it *configstore.Iteration) (map[string]any, error) {
	if !g.Breaker.Allow() {
		metrics.SetCircuitBreakerState(g.Instrument, int(g.Breaker.State()))
		return nil, &StationFailure{Reason: fmt.Sprintf("instrument %s is wedged", g.Instrument)}
	}

	payload, err := g.Step.Run(ctx, model, it)

	var stationErr *StationFailure
	if errAs(err, &stationErr) {
		before := g.Breaker.State()
		g.Breaker.RecordFailure()
		after := g.Breaker.State()
		if after != before {
			metrics.RecordCircuitBreakerTrip(g.Instrument, after.String())
		}
	} else {
		g.Breaker.RecordSuccess()
	}
	metrics.SetCircuitBreakerState(g.Instrument, int(g.Breaker.State()))

	return payload, err
}

// errAs is a narrow stand-in for errors.As restricted to *StationFailure,
// avoiding an import cycle concern with wrapped Classified errors that
// also implement Unwrap.
func errAs(err error, target **StationFailure) bool {
	sf, ok := err.(*StationFailure)
	if !ok {
		return false
	}
	*target = sf
	return true
}
