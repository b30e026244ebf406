package instruments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/proxy"
)

func TestPowerSupplyMeasuresCommandedSetpointWhenOutputEnabled(t *testing.T) {
	rt := proxy.New()
	p := SpawnPowerSupply(rt, NewPowerSupply(nil), "psu-1")
	defer p.Join(0)

	vsPromise, err := p.SetVoltage(5.0)
	require.NoError(t, err)
	_, err = vsPromise.Resolve(-1)
	require.NoError(t, err)
	setPromise, err := p.Output(true)
	require.NoError(t, err)
	_, err = setPromise.Resolve(-1)
	require.NoError(t, err)

	vp, err := p.MeasureVoltage()
	require.NoError(t, err)
	v, err := vp.Resolve(-1)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestPowerSupplyRejectsNegativeVoltage(t *testing.T) {
	rt := proxy.New()
	p := SpawnPowerSupply(rt, NewPowerSupply(nil), "psu-2")
	defer p.Join(0)

	setPromise, err := p.SetVoltage(-1)
	require.NoError(t, err)
	_, err = setPromise.Resolve(-1)
	assert.Error(t, err)
}

func TestEEPROMDeviceReadAfterWrite(t *testing.T) {
	rt := proxy.New()
	e := SpawnEEPROMDevice(rt, NewEEPROMDevice(nil), "eeprom-1")
	defer e.Join(0)

	wp, err := e.WriteRegister(4, 0xAB)
	require.NoError(t, err)
	_, err = wp.Resolve(-1)
	require.NoError(t, err)

	rp, err := e.ReadRegister(4)
	require.NoError(t, err)
	v, err := rp.Resolve(-1)
	require.NoError(t, err)
	assert.EqualValues(t, 0xAB, v)
}

func TestEEPROMDeviceReadUnwrittenRegisterFails(t *testing.T) {
	rt := proxy.New()
	e := SpawnEEPROMDevice(rt, NewEEPROMDevice(nil), "eeprom-2")
	defer e.Join(0)

	rp, err := e.ReadRegister(9)
	require.NoError(t, err)
	_, err = rp.Resolve(-1)
	assert.Error(t, err)
}

func TestProgrammerConfirmDetectsVersionMismatch(t *testing.T) {
	rt := proxy.New()
	pr := SpawnProgrammer(rt, NewProgrammer(nil), "prog-1")
	defer pr.Join(0)

	progPromise, err := pr.Program(configstore.FirmwareSpec{ImageRef: "fw://x", Version: "1.2.3"}, []byte{0x01})
	require.NoError(t, err)
	_, err = progPromise.Resolve(-1)
	require.NoError(t, err)

	confirmPromise, err := pr.Confirm("9.9.9")
	require.NoError(t, err)
	_, err = confirmPromise.Resolve(-1)
	assert.Error(t, err)
}

func TestDMXControllerBlackoutZeroesAllChannels(t *testing.T) {
	rt := proxy.New()
	dev := NewDMXController(nil)
	d := SpawnDMXController(rt, dev, "dmx-1")
	defer d.Join(0)

	setPromise, err := d.SetChannel(1, 255)
	require.NoError(t, err)
	_, err = setPromise.Resolve(-1)
	require.NoError(t, err)

	boPromise, err := d.Blackout()
	require.NoError(t, err)
	_, err = boPromise.Resolve(-1)
	require.NoError(t, err)
	assert.Equal(t, byte(0), dev.levels[1])
}
