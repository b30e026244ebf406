package steps

import (
	"context"
	"math"

	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/instruments"
	"github.com/fenwick-labs/stationrt/internal/testengine"
)

// Illumination implements spec.md §4.5's illumination-sample row: set
// power supply and DMX, sample the light meter, compute CIE distance,
// luminous flux proxy, and electrical power, then apply per-parameter
// tolerances from the model's sheet row.
type Illumination struct {
	PSU        *instruments.PowerSupplyProxy
	DMX        *instruments.DMXControllerProxy
	Meter      *instruments.LightMeterProxy
	DriveVolt  float64
	DMXChannel int
	DMXLevel   byte
}

func (s *Illumination) Name() string               { return "illumination-sample" }
func (s *Illumination) Kind() configstore.StepKind { return configstore.StepIlluminationSample }
func (s *Illumination) Critical() bool             { return false }

func (s *Illumination) Validate(model *configstore.TestModel) error { return nil }

func (s *Illumination) Run(ctx context.Context, model *configstore.TestModel, it *configstore.Iteration) (map[string]any, error) {
	vsPromise, err := s.PSU.SetVoltage(s.DriveVolt)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "illumination-sample: set voltage", Cause: err}
	}
	if _, err := vsPromise.Resolve(-1); err != nil {
		return nil, &testengine.StationFailure{Reason: "illumination-sample: resolve set voltage", Cause: err}
	}
	outPromise, err := s.PSU.Output(true)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "illumination-sample: enable output", Cause: err}
	}
	if _, err := outPromise.Resolve(-1); err != nil {
		return nil, &testengine.StationFailure{Reason: "illumination-sample: resolve output", Cause: err}
	}
	defer func() {
		if offPromise, err := s.PSU.Output(false); err == nil {
			_, _ = offPromise.Resolve(-1)
		}
	}()

	setPromise, err := s.DMX.SetChannel(s.DMXChannel, s.DMXLevel)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "illumination-sample: set dmx channel", Cause: err}
	}
	if _, err := setPromise.Resolve(-1); err != nil {
		return nil, &testengine.StationFailure{Reason: "illumination-sample: resolve dmx channel", Cause: err}
	}
	defer func() {
		if boPromise, err := s.DMX.Blackout(); err == nil {
			_, _ = boPromise.Resolve(-1)
		}
	}()

	samplePromise, err := s.Meter.Sample()
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "illumination-sample: sample light meter", Cause: err}
	}
	sampleAny, err := samplePromise.Resolve(-1)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "illumination-sample: resolve light meter sample", Cause: err}
	}
	reading := sampleAny.(instruments.Reading)

	vPromise, err := s.PSU.MeasureVoltage()
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "illumination-sample: measure voltage", Cause: err}
	}
	vAny, err := vPromise.Resolve(-1)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "illumination-sample: resolve voltage", Cause: err}
	}
	iPromise, err := s.PSU.MeasureCurrent()
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "illumination-sample: measure current", Cause: err}
	}
	iAny, err := iPromise.Resolve(-1)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "illumination-sample: resolve current", Cause: err}
	}
	v := vAny.(float64)
	i := iAny.(float64)
	power := v * i

	row := findRow(model, s.Name())
	nomX := payloadFloat(row, "nominal_x", reading.X)
	nomY := payloadFloat(row, "nominal_y", reading.Y)
	cieTolerance := payloadFloat(row, "cie_tolerance", 0.01)
	fcdMin := payloadFloat(row, "fcd_min", 0)
	fcdMax := payloadFloat(row, "fcd_max", math.MaxFloat64)
	powerMax := payloadFloat(row, "power_max", math.MaxFloat64)
	nomFcd := payloadFloat(row, "nominal_fcd", reading.Fcd)

	cieDistance := math.Hypot(reading.X-nomX, reading.Y-nomY)
	dropPercent := 0.0
	if nomFcd > 0 {
		dropPercent = (nomFcd - reading.Fcd) / nomFcd * 100
	}

	ciePass := cieDistance <= cieTolerance
	fcdPass := reading.Fcd >= fcdMin && reading.Fcd <= fcdMax
	powerPass := power <= powerMax
	dropPass := dropPercent <= payloadFloat(row, "max_drop_percent", 100)

	payload := map[string]any{
		"x": reading.X, "y": reading.Y, "fcd": reading.Fcd, "cct": reading.CCT, "duv": reading.Duv,
		"power_w": power, "cie_distance": cieDistance, "drop_percent": dropPercent,
		"cie_pass": ciePass, "fcd_pass": fcdPass, "power_pass": powerPass, "drop_pass": dropPass,
	}

	if !(ciePass && fcdPass && powerPass && dropPass) {
		return payload, &testengine.StepFailure{Step: s.Name(), Reason: "illumination tolerances exceeded"}
	}
	return payload, nil
}
