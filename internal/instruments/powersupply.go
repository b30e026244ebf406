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
	typ := reflect.TypeOf(&PowerSupply{})
	registry.Before(typ, "Setup", registry.AdviceFunc(func(r any) error {
		logging.Op().Info("instrument online", "instrument", fmt.Sprintf("%T", r))
		return nil
	}))
	registry.After(typ, "Teardown", registry.AdviceFunc(func(r any) error {
		logging.Op().Info("instrument offline", "instrument", fmt.Sprintf("%T", r))
		return nil
	}), true)
}

// PowerSupply is the resource an ActorWorker owns exclusively; every
// method here is in the exposed set a PowerSupplyProxy forwards.
type PowerSupply struct {
	Transport Transport

	voltage    float64
	currentCap float64
	outputOn   bool
}

// PowerSupplyExposed is the method set ProxyRuntime.Spawn restricts
// runtime dispatch to — the same list a PowerSupplyProxy's compile-time
// surface mirrors.
var PowerSupplyExposed = []string{
	"SetVoltage", "SetCurrentLimit", "Output", "MeasureVoltage", "MeasureCurrent",
}

func NewPowerSupply(t Transport) *PowerSupply {
	return &PowerSupply{Transport: t}
}

func (p *PowerSupply) SetVoltage(volts float64) error {
	if volts < 0 {
		return fmt.Errorf("instruments: negative voltage setpoint %.3f", volts)
	}
	p.voltage = volts
	return nil
}

func (p *PowerSupply) SetCurrentLimit(amps float64) error {
	if amps < 0 {
		return fmt.Errorf("instruments: negative current limit %.3f", amps)
	}
	p.currentCap = amps
	return nil
}

func (p *PowerSupply) Output(on bool) error {
	p.outputOn = on
	return nil
}

// MeasureVoltage returns the measured output voltage. A long-running real
// driver would poll the transport here and observe CancelFlag between
// retries; this reference implementation returns the commanded setpoint
// when output is enabled.
func (p *PowerSupply) MeasureVoltage() (float64, error) {
	if !p.outputOn {
		return 0, nil
	}
	return p.voltage, nil
}

func (p *PowerSupply) MeasureCurrent() (float64, error) {
	if !p.outputOn {
		return 0, nil
	}
	return p.currentCap, nil
}

// PowerSupplyProxy is the hand-written, compile-time-restricted proxy
// surface for PowerSupply: only the methods below exist on this type, so
// a caller cannot reach a non-exposed method even by typo — the absence
// is a compile error, not a runtime ProxyError.
type PowerSupplyProxy struct {
	h *proxy.Handle
}

// SpawnPowerSupply starts PowerSupply on its own worker and returns its
// restricted proxy.
func SpawnPowerSupply(r *proxy.Runtime, p *PowerSupply, label string) *PowerSupplyProxy {
	return &PowerSupplyProxy{h: r.Spawn(p, PowerSupplyExposed, label, nil)}
}

func (p *PowerSupplyProxy) SetVoltage(volts float64) (*proxy.Promise, error) {
	return proxy.Method(p.h, "SetVoltage", []any{volts}, nil).Issue()
}

func (p *PowerSupplyProxy) SetCurrentLimit(amps float64) (*proxy.Promise, error) {
	return proxy.Method(p.h, "SetCurrentLimit", []any{amps}, nil).Issue()
}

func (p *PowerSupplyProxy) Output(on bool) (*proxy.Promise, error) {
	return proxy.Method(p.h, "Output", []any{on}, nil).Issue()
}

func (p *PowerSupplyProxy) MeasureVoltage() (*proxy.Promise, error) {
	return proxy.Method(p.h, "MeasureVoltage", nil, nil).Issue()
}

func (p *PowerSupplyProxy) MeasureCurrent() (*proxy.Promise, error) {
	return proxy.Method(p.h, "MeasureCurrent", nil, nil).Issue()
}

// CancelCheck and Cancel are exposed-directly per spec.md §4.4 — they run
// synchronously on the caller, never through the worker.
func (p *PowerSupplyProxy) CancelCheck() bool { return p.h.CancelCheck() }
func (p *PowerSupplyProxy) Cancel()           { p.h.Cancel() }

// Join tears the worker down and returns the PowerSupply it owned, per
// spec.md §8's "proxy.spawn(R); proxy.join() == R" round-trip law.
func (p *PowerSupplyProxy) Join(timeout time.Duration) (*PowerSupply, error) {
	r, err := p.h.Join(timeout)
	if err != nil {
		return nil, err
	}
	ps, _ := r.(*PowerSupply)
	return ps, nil
}
