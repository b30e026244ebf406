package instruments

import (
	"fmt"
	"reflect"
	"time"

	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/logging"
	"github.com/fenwick-labs/stationrt/internal/proxy"
	"github.com/fenwick-labs/stationrt/internal/registry"
)

func init() {
	typ := reflect.TypeOf(&Programmer{})
	registry.Before(typ, "Setup", registry.AdviceFunc(func(r any) error {
		logging.Op().Info("instrument online", "instrument", fmt.Sprintf("%T", r))
		return nil
	}))
	registry.After(typ, "Teardown", registry.AdviceFunc(func(r any) error {
		logging.Op().Info("instrument offline", "instrument", fmt.Sprintf("%T", r))
		return nil
	}), true)
}

// Programmer is the resource a worker owns for a firmware programming
// adapter (JTAG/SWD/ISP box, whatever Transport frames for). It holds the
// image bytes RunIteration's firmware step fetched from firmware.Store
// and drives erase/program/confirm against the target.
type Programmer struct {
	Transport Transport
	image     []byte
	version   string
}

var ProgrammerExposed = []string{"ReadVersion", "Erase", "Program", "Confirm"}

func NewProgrammer(t Transport) *Programmer {
	return &Programmer{Transport: t}
}

// ReadVersion reports the firmware version currently resident on the
// target, used by the firmware step to skip programming when the target
// already reports the expected version and ForceOverwrite is not set.
func (p *Programmer) ReadVersion() (string, error) {
	return p.version, nil
}

func (p *Programmer) Erase() error {
	p.version = ""
	return nil
}

// Program writes spec to the target. image is the fetched firmware blob;
// a real driver streams it through Transport in chunks sized to the
// adapter's protocol.
func (p *Programmer) Program(spec configstore.FirmwareSpec, image []byte) error {
	if len(image) == 0 {
		return fmt.Errorf("instruments: empty firmware image for %s", spec.ImageRef)
	}
	p.image = image
	p.version = spec.Version
	return nil
}

// Confirm verifies the resident version matches want, per spec.md's
// program-then-confirm contract.
func (p *Programmer) Confirm(want string) error {
	if p.version != want {
		return fmt.Errorf("instruments: confirm mismatch: resident %q, want %q", p.version, want)
	}
	return nil
}

// ProgrammerProxy is the restricted proxy surface for Programmer.
type ProgrammerProxy struct {
	h *proxy.Handle
}

func SpawnProgrammer(r *proxy.Runtime, p *Programmer, label string) *ProgrammerProxy {
	return &ProgrammerProxy{h: r.Spawn(p, ProgrammerExposed, label, nil)}
}

func (p *ProgrammerProxy) ReadVersion() (*proxy.Promise, error) {
	return proxy.Method(p.h, "ReadVersion", nil, nil).Issue()
}

func (p *ProgrammerProxy) Erase() (*proxy.Promise, error) {
	return proxy.Method(p.h, "Erase", nil, nil).Issue()
}

func (p *ProgrammerProxy) Program(spec configstore.FirmwareSpec, image []byte) (*proxy.Promise, error) {
	return proxy.Method(p.h, "Program", []any{spec, image}, nil).Issue()
}

func (p *ProgrammerProxy) Confirm(want string) (*proxy.Promise, error) {
	return proxy.Method(p.h, "Confirm", []any{want}, nil).Issue()
}

func (p *ProgrammerProxy) CancelCheck() bool                { return p.h.CancelCheck() }
func (p *ProgrammerProxy) Cancel()                          { p.h.Cancel() }
// Join tears the worker down and returns the Programmer it owned, per
// spec.md §8's "proxy.spawn(R); proxy.join() == R" round-trip law.
func (p *ProgrammerProxy) Join(timeout time.Duration) (*Programmer, error) {
	r, err := p.h.Join(timeout)
	if err != nil {
		return nil, err
	}
	pr, _ := r.(*Programmer)
	return pr, nil
}
