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
	typ := reflect.TypeOf(&DMXController{})
	registry.Before(typ, "Setup", registry.AdviceFunc(func(r any) error {
		logging.Op().Info("instrument online", "instrument", fmt.Sprintf("%T", r))
		return nil
	}))
	registry.After(typ, "Teardown", registry.AdviceFunc(func(r any) error {
		logging.Op().Info("instrument offline", "instrument", fmt.Sprintf("%T", r))
		if d, ok := r.(*DMXController); ok {
			return d.Blackout()
		}
		return nil
	}), true)
}

// DMXController drives a lighting fixture's DMX512 channels for the
// illumination-sample and thermal-drop steps, which need the fixture
// held at a commanded level while LightMeter samples it.
type DMXController struct {
	Transport Transport
	levels    map[int]byte
}

var DMXControllerExposed = []string{"SetChannel", "Blackout"}

func NewDMXController(t Transport) *DMXController {
	return &DMXController{Transport: t, levels: make(map[int]byte)}
}

func (d *DMXController) SetChannel(channel int, level byte) error {
	if channel < 1 || channel > 512 {
		return fmt.Errorf("instruments: dmx channel %d out of range", channel)
	}
	d.levels[channel] = level
	return nil
}

func (d *DMXController) Blackout() error {
	for ch := range d.levels {
		d.levels[ch] = 0
	}
	return nil
}

// DMXControllerProxy is the restricted proxy surface for DMXController.
type DMXControllerProxy struct {
	h *proxy.Handle
}

func SpawnDMXController(r *proxy.Runtime, d *DMXController, label string) *DMXControllerProxy {
	return &DMXControllerProxy{h: r.Spawn(d, DMXControllerExposed, label, nil)}
}

func (p *DMXControllerProxy) SetChannel(channel int, level byte) (*proxy.Promise, error) {
	return proxy.Method(p.h, "SetChannel", []any{channel, level}, nil).Issue()
}

func (p *DMXControllerProxy) Blackout() (*proxy.Promise, error) {
	return proxy.Method(p.h, "Blackout", nil, nil).Issue()
}

func (p *DMXControllerProxy) CancelCheck() bool                { return p.h.CancelCheck() }
func (p *DMXControllerProxy) Cancel()                          { p.h.Cancel() }
// Join tears the worker down and returns the DMXController it owned, per
// spec.md §8's "proxy.spawn(R); proxy.join() == R" round-trip law.
func (p *DMXControllerProxy) Join(timeout time.Duration) (*DMXController, error) {
	r, err := p.h.Join(timeout)
	if err != nil {
		return nil, err
	}
	d, _ := r.(*DMXController)
	return d, nil
}
