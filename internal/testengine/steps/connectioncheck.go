// Package steps holds the TestStep catalogue spec.md §4.5 describes: one
// file per step kind, each implementing testengine.Step against proxied
// instruments from internal/instruments.
package steps

import (
	"context"
	"fmt"

	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/instruments"
	"github.com/fenwick-labs/stationrt/internal/testengine"
)

// ConnectionResult is the classification enum spec.md §4.5's
// connection-check row names.
type ConnectionResult int

const (
	Unconnected ConnectionResult = iota
	Connected
	ShortCircuit
	ReversedPolarity
	PowerSupplyError
)

func (c ConnectionResult) String() string {
	switch c {
	case Unconnected:
		return "unconnected"
	case Connected:
		return "connected"
	case ShortCircuit:
		return "short-circuit"
	case ReversedPolarity:
		return "reversed-polarity"
	case PowerSupplyError:
		return "power-supply-error"
	default:
		return "unknown"
	}
}

// ConnectionCheck energises the DUT at a diagnostic voltage and
// classifies the measured V/I pair.
type ConnectionCheck struct {
	PSU            *instruments.PowerSupplyProxy
	DiagnosticVolt float64
	MinCurrent     float64
	MaxCurrent     float64
	ShortCurrent   float64
}

func (s *ConnectionCheck) Name() string                  { return "connection-check" }
func (s *ConnectionCheck) Kind() configstore.StepKind    { return configstore.StepConnectionCheck }
func (s *ConnectionCheck) Critical() bool                { return true }

func (s *ConnectionCheck) Validate(model *configstore.TestModel) error {
	if model.ConnectionCheck == "" {
		return fmt.Errorf("steps: connection-check discriminator is unset")
	}
	return nil
}

func (s *ConnectionCheck) Run(ctx context.Context, model *configstore.TestModel, it *configstore.Iteration) (map[string]any, error) {
	vsPromise, err := s.PSU.SetVoltage(s.DiagnosticVolt)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "connection-check: set voltage", Cause: err}
	}
	if _, err := vsPromise.Resolve(-1); err != nil {
		return nil, &testengine.StationFailure{Reason: "connection-check: resolve set voltage", Cause: err}
	}
	outPromise, err := s.PSU.Output(true)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "connection-check: enable output", Cause: err}
	}
	if _, err := outPromise.Resolve(-1); err != nil {
		return nil, &testengine.StationFailure{Reason: "connection-check: resolve output", Cause: err}
	}
	defer func() {
		if offPromise, err := s.PSU.Output(false); err == nil {
			_, _ = offPromise.Resolve(-1)
		}
	}()

	vPromise, err := s.PSU.MeasureVoltage()
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "connection-check: measure voltage", Cause: err}
	}
	vAny, err := vPromise.Resolve(-1)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "connection-check: resolve voltage", Cause: err}
	}
	iPromise, err := s.PSU.MeasureCurrent()
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "connection-check: measure current", Cause: err}
	}
	iAny, err := iPromise.Resolve(-1)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "connection-check: resolve current", Cause: err}
	}
	v := vAny.(float64)
	i := iAny.(float64)

	result := classify(v, i, s.MinCurrent, s.MaxCurrent, s.ShortCurrent)
	payload := map[string]any{"voltage": v, "current": i, "classification": result.String()}
	if result != Connected {
		return payload, &testengine.StepFailure{Step: s.Name(), Reason: result.String()}
	}
	return payload, nil
}

func classify(v, i, minCurrent, maxCurrent, shortCurrent float64) ConnectionResult {
	switch {
	case v < 0:
		return ReversedPolarity
	case i >= shortCurrent:
		return ShortCircuit
	case i < minCurrent:
		return Unconnected
	case i > maxCurrent:
		return PowerSupplyError
	default:
		return Connected
	}
}
