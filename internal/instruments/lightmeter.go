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
	typ := reflect.TypeOf(&LightMeter{})
	registry.Before(typ, "Setup", registry.AdviceFunc(func(r any) error {
		logging.Op().Info("instrument online", "instrument", fmt.Sprintf("%T", r))
		return nil
	}))
	registry.After(typ, "Teardown", registry.AdviceFunc(func(r any) error {
		logging.Op().Info("instrument offline", "instrument", fmt.Sprintf("%T", r))
		return nil
	}), true)
}

// Reading is one colorimeter/photometer sample: chromaticity coordinates,
// illuminance in foot-candles, correlated color temperature, and Duv
// (distance from the Planckian locus) — the quantities spec.md's
// illumination-sample step names.
type Reading struct {
	X, Y float64
	Fcd  float64
	CCT  float64
	Duv  float64
}

// LightMeter is the resource a worker owns for one colorimeter channel.
type LightMeter struct {
	Transport Transport
	last      Reading
}

var LightMeterExposed = []string{"Sample"}

func NewLightMeter(t Transport) *LightMeter {
	return &LightMeter{Transport: t}
}

// Sample takes one reading. A real driver round-trips Transport here;
// this reference body returns the last commanded reading, letting test
// fixtures drive it via SetFixture in package tests.
func (l *LightMeter) Sample() (Reading, error) {
	return l.last, nil
}

// SetFixture lets instrument test doubles inject the next Sample result
// without a real Transport. Not part of the exposed proxy surface.
func (l *LightMeter) SetFixture(r Reading) { l.last = r }

// LightMeterProxy is the restricted proxy surface for LightMeter.
type LightMeterProxy struct {
	h *proxy.Handle
}

func SpawnLightMeter(r *proxy.Runtime, l *LightMeter, label string) *LightMeterProxy {
	return &LightMeterProxy{h: r.Spawn(l, LightMeterExposed, label, nil)}
}

func (p *LightMeterProxy) Sample() (*proxy.Promise, error) {
	return proxy.Method(p.h, "Sample", nil, nil).Issue()
}

func (p *LightMeterProxy) CancelCheck() bool                { return p.h.CancelCheck() }
func (p *LightMeterProxy) Cancel()                          { p.h.Cancel() }
// Join tears the worker down and returns the LightMeter it owned, per
// spec.md §8's "proxy.spawn(R); proxy.join() == R" round-trip law.
func (p *LightMeterProxy) Join(timeout time.Duration) (*LightMeter, error) {
	r, err := p.h.Join(timeout)
	if err != nil {
		return nil, err
	}
	l, _ := r.(*LightMeter)
	return l, nil
}
