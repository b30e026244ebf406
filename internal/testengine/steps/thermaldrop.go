package steps

import (
	"context"
	"time"

	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/instruments"
	"github.com/fenwick-labs/stationrt/internal/testengine"
	"github.com/fenwick-labs/stationrt/internal/viewbus"
)

// Fixed cadence/duration for the thermal-drop step, resolving spec.md
// §4.5's "fixed cadence ... fixed duration" ambiguity the way
// SPEC_FULL.md §4.5 pins it down.
const (
	SampleInterval  = 250 * time.Millisecond
	Duration        = 90 * time.Second
	DropArmFraction = 0.97
)

// ThermalDrop samples the light meter on a fixed cadence for a fixed
// duration and derives the maximum drop percentage from the nominal
// reading, arming the drop window only once the signal has settled below
// DropArmFraction of nominal — per spec.md §4.5's thermal-drop row.
type ThermalDrop struct {
	Meter          *instruments.LightMeterProxy
	Bus            *viewbus.Bus
	MaxDropPercent float64
	now            func() time.Time
	sleep          func(time.Duration)
}

func (s *ThermalDrop) Name() string               { return "thermal-drop" }
func (s *ThermalDrop) Kind() configstore.StepKind { return configstore.StepThermalDrop }
func (s *ThermalDrop) Critical() bool             { return false }

func (s *ThermalDrop) Validate(model *configstore.TestModel) error { return nil }

func (s *ThermalDrop) Run(ctx context.Context, model *configstore.TestModel, it *configstore.Iteration) (map[string]any, error) {
	now := s.now
	if now == nil {
		now = time.Now
	}
	sleep := s.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	row := findRow(model, s.Name())
	maxDropPercent := s.MaxDropPercent
	if maxDropPercent == 0 {
		maxDropPercent = payloadFloat(row, "max_drop_percent", 5)
	}

	firstPromise, err := s.Meter.Sample()
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "thermal-drop: sample light meter", Cause: err}
	}
	firstAny, err := firstPromise.Resolve(-1)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "thermal-drop: resolve first sample", Cause: err}
	}
	nominal := firstAny.(instruments.Reading).Fcd
	minSeen := nominal
	armed := false
	samples := []float64{nominal}

	deadline := now().Add(Duration)
	for now().Before(deadline) {
		sleep(SampleInterval)
		p, err := s.Meter.Sample()
		if err != nil {
			return nil, &testengine.StationFailure{Reason: "thermal-drop: sample light meter", Cause: err}
		}
		readingAny, err := p.Resolve(-1)
		if err != nil {
			return nil, &testengine.StationFailure{Reason: "thermal-drop: resolve sample", Cause: err}
		}
		fcd := readingAny.(instruments.Reading).Fcd
		samples = append(samples, fcd)
		if s.Bus != nil {
			s.Bus.Publish(ctx, testengine.StepProgressMessage{Step: s.Name(), Value: fcd})
		}

		if !armed && fcd <= nominal*DropArmFraction {
			armed = true
		}
		if armed && fcd < minSeen {
			minSeen = fcd
		}
	}

	dropPercent := 0.0
	if nominal > 0 {
		dropPercent = (nominal - minSeen) / nominal * 100
	}
	pass := dropPercent <= maxDropPercent

	payload := map[string]any{
		"sample_count": len(samples),
		"nominal_fcd":  nominal,
		"min_fcd":      minSeen,
		"drop_percent": dropPercent,
		"pass":         pass,
	}
	if !pass {
		return payload, &testengine.StepFailure{Step: s.Name(), Reason: "thermal drop exceeded tolerance"}
	}
	return payload, nil
}
