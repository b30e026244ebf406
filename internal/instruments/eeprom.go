package instruments

import (
	"fmt"
	"reflect"
	"time"

	"github.com/fenwick-labs/stationrt/internal/logging"
	"github.com/fenwick-labs/stationrt/internal/proxy"
	"github.com/fenwick-labs/stationrt/internal/registry"
)

func init() {
	typ := reflect.TypeOf(&EEPROMDevice{})
	registry.Before(typ, "Setup", registry.AdviceFunc(func(r any) error {
		logging.Op().Info("instrument online", "instrument", fmt.Sprintf("%T", r))
		return nil
	}))
	registry.After(typ, "Teardown", registry.AdviceFunc(func(r any) error {
		logging.Op().Info("instrument offline", "instrument", fmt.Sprintf("%T", r))
		return nil
	}), true)
}

// EEPROMDevice is the resource a worker owns for a DUT's configuration
// EEPROM, addressed by byte offset per spec.md's eeprom-config step
// (initial writes before firmware, final writes — unit identity — after).
type EEPROMDevice struct {
	Transport Transport
	memory    map[int]byte
}

var EEPROMDeviceExposed = []string{"WriteRegister", "ReadRegister"}

func NewEEPROMDevice(t Transport) *EEPROMDevice {
	return &EEPROMDevice{Transport: t, memory: make(map[int]byte)}
}

func (e *EEPROMDevice) WriteRegister(index int, value byte) error {
	if index < 0 {
		return fmt.Errorf("instruments: negative eeprom index %d", index)
	}
	e.memory[index] = value
	return nil
}

func (e *EEPROMDevice) ReadRegister(index int) (byte, error) {
	v, ok := e.memory[index]
	if !ok {
		return 0, fmt.Errorf("instruments: eeprom index %d never written", index)
	}
	return v, nil
}

// EEPROMDeviceProxy is the restricted proxy surface for EEPROMDevice.
type EEPROMDeviceProxy struct {
	h *proxy.Handle
}

func SpawnEEPROMDevice(r *proxy.Runtime, e *EEPROMDevice, label string) *EEPROMDeviceProxy {
	return &EEPROMDeviceProxy{h: r.Spawn(e, EEPROMDeviceExposed, label, nil)}
}

func (p *EEPROMDeviceProxy) WriteRegister(index int, value byte) (*proxy.Promise, error) {
	return proxy.Method(p.h, "WriteRegister", []any{index, value}, nil).Issue()
}

func (p *EEPROMDeviceProxy) ReadRegister(index int) (*proxy.Promise, error) {
	return proxy.Method(p.h, "ReadRegister", []any{index}, nil).Issue()
}

func (p *EEPROMDeviceProxy) CancelCheck() bool                { return p.h.CancelCheck() }
func (p *EEPROMDeviceProxy) Cancel()                          { p.h.Cancel() }
// Join tears the worker down and returns the EEPROMDevice it owned, per
// spec.md §8's "proxy.spawn(R); proxy.join() == R" round-trip law.
func (p *EEPROMDeviceProxy) Join(timeout time.Duration) (*EEPROMDevice, error) {
	r, err := p.h.Join(timeout)
	if err != nil {
		return nil, err
	}
	e, _ := r.(*EEPROMDevice)
	return e, nil
}
