package steps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/instruments"
	"github.com/fenwick-labs/stationrt/internal/proxy"
	"github.com/fenwick-labs/stationrt/internal/testengine"
)

func TestConnectionCheckClassifiesConnected(t *testing.T) {
	rt := proxy.New()
	psu := instruments.SpawnPowerSupply(rt, instruments.NewPowerSupply(nil), "psu")
	defer psu.Join(0)

	step := &ConnectionCheck{PSU: psu, DiagnosticVolt: 5, MinCurrent: 0.01, MaxCurrent: 1.0, ShortCurrent: 5.0}
	model := &configstore.TestModel{ConnectionCheck: "standard"}
	require.NoError(t, step.Validate(model))

	it := &configstore.Iteration{}
	// MeasureCurrent mirrors the current-limit setpoint in the reference
	// PowerSupply body, so picking a limit inside [MinCurrent, MaxCurrent]
	// yields Connected.
	limitPromise, err := psu.SetCurrentLimit(0.5)
	require.NoError(t, err)
	_, err = limitPromise.Resolve(-1)
	require.NoError(t, err)

	payload, err := step.Run(context.Background(), model, it)
	require.NoError(t, err)
	assert.Equal(t, "connected", payload["classification"])
}

func TestConnectionCheckDetectsUnconnected(t *testing.T) {
	rt := proxy.New()
	psu := instruments.SpawnPowerSupply(rt, instruments.NewPowerSupply(nil), "psu-2")
	defer psu.Join(0)

	step := &ConnectionCheck{PSU: psu, DiagnosticVolt: 5, MinCurrent: 0.01, MaxCurrent: 1.0, ShortCurrent: 5.0}
	model := &configstore.TestModel{ConnectionCheck: "standard"}
	it := &configstore.Iteration{}

	limitPromise, err := psu.SetCurrentLimit(0.0)
	require.NoError(t, err)
	_, err = limitPromise.Resolve(-1)
	require.NoError(t, err)

	_, err = step.Run(context.Background(), model, it)
	require.Error(t, err)
	var sf *testengine.StepFailure
	require.ErrorAs(t, err, &sf)
}

func TestEEPROMConfigStepWritesAndVerifies(t *testing.T) {
	rt := proxy.New()
	dev := instruments.SpawnEEPROMDevice(rt, instruments.NewEEPROMDevice(nil), "eeprom")
	defer dev.Join(0)

	step := NewInitialEEPROMConfig(dev)
	model := &configstore.TestModel{InitialEEPROM: []configstore.EEPROMWrite{
		{Target: "board", Index: 1, Value: 42, Verify: true},
	}}
	it := &configstore.Iteration{}
	require.NoError(t, step.Validate(model))

	payload, err := step.Run(context.Background(), model, it)
	require.NoError(t, err)
	assert.Equal(t, true, payload["pass"])
}

func TestUnitIdentityWriteThenReadBack(t *testing.T) {
	rt := proxy.New()
	dev := instruments.SpawnEEPROMDevice(rt, instruments.NewEEPROMDevice(nil), "eeprom-uid")
	defer dev.Join(0)

	dut := configstore.DUT{SN: 7, MN: 3}
	step := &UnitIdentity{Device: dev, DUT: dut}
	model := &configstore.TestModel{UnitIdentity: configstore.UnitIdentityWrite}
	it := &configstore.Iteration{}
	require.NoError(t, step.Validate(model))

	payload, err := step.Run(context.Background(), model, it)
	require.NoError(t, err)
	assert.Equal(t, true, payload["pass"])
}

func TestThermalDropPassesWhenFlatSignal(t *testing.T) {
	rt := proxy.New()
	meter := instruments.SpawnLightMeter(rt, instruments.NewLightMeter(nil), "meter")
	defer meter.Join(0)

	fakeNow := time.Unix(0, 0)
	step := &ThermalDrop{
		Meter:          meter,
		MaxDropPercent: 5,
		now:            func() time.Time { return fakeNow },
		sleep: func(d time.Duration) {
			fakeNow = fakeNow.Add(Duration + time.Second) // advance past the deadline in one tick
		},
	}
	model := &configstore.TestModel{}
	it := &configstore.Iteration{}

	payload, err := step.Run(context.Background(), model, it)
	require.NoError(t, err)
	assert.Equal(t, true, payload["pass"])
}
