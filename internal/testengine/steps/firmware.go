package steps

import (
	"context"
	"fmt"

	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/instruments"
	"github.com/fenwick-labs/stationrt/internal/testengine"
)

// ImageFetcher is the firmware.Store seam: fetch returns the raw image
// bytes referenced by a FirmwareSpec's ImageRef.
type ImageFetcher interface {
	Fetch(ctx context.Context, imageRef string) ([]byte, error)
}

// Firmware implements spec.md §4.5's firmware step: if the DUT already
// reports the expected version and ForceOverwrite isn't set, skip;
// otherwise erase, program, confirm.
type Firmware struct {
	Programmer *instruments.ProgrammerProxy
	Images     ImageFetcher
}

func (s *Firmware) Name() string               { return "firmware" }
func (s *Firmware) Kind() configstore.StepKind { return configstore.StepFirmware }
func (s *Firmware) Critical() bool             { return true }

func (s *Firmware) Validate(model *configstore.TestModel) error {
	if model.Firmware == nil {
		return nil
	}
	if model.Firmware.ImageRef == "" {
		return fmt.Errorf("steps: firmware spec missing image reference")
	}
	if model.Firmware.Version == "" {
		return fmt.Errorf("steps: firmware spec missing target version")
	}
	return nil
}

func (s *Firmware) Run(ctx context.Context, model *configstore.TestModel, it *configstore.Iteration) (map[string]any, error) {
	if model.Firmware == nil {
		return map[string]any{"outcome": "skipped", "reason": "no firmware spec on model"}, nil
	}
	spec := *model.Firmware

	vPromise, err := s.Programmer.ReadVersion()
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "firmware: read version", Cause: err}
	}
	resident, err := vPromise.Resolve(-1)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "firmware: resolve version", Cause: err}
	}
	if resident.(string) == spec.Version && !spec.ForceOverwrite {
		return map[string]any{"outcome": "skipped", "version": spec.Version}, nil
	}

	if s.Images == nil {
		return nil, &testengine.StepFailure{Step: s.Name(), Reason: "no firmware image store configured"}
	}
	image, err := s.Images.Fetch(ctx, spec.ImageRef)
	if err != nil {
		return nil, &testengine.StepFailure{Step: s.Name(), Reason: fmt.Sprintf("fetch image: %v", err)}
	}

	erasePromise, err := s.Programmer.Erase()
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "firmware: erase", Cause: err}
	}
	if _, err := erasePromise.Resolve(-1); err != nil {
		return map[string]any{"outcome": "failed", "stage": "erase"}, &testengine.StepFailure{Step: s.Name(), Reason: err.Error()}
	}

	progPromise, err := s.Programmer.Program(spec, image)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "firmware: program", Cause: err}
	}
	if _, err := progPromise.Resolve(-1); err != nil {
		return map[string]any{"outcome": "failed", "stage": "program"}, &testengine.StepFailure{Step: s.Name(), Reason: err.Error()}
	}

	confirmPromise, err := s.Programmer.Confirm(spec.Version)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "firmware: confirm", Cause: err}
	}
	if _, err := confirmPromise.Resolve(-1); err != nil {
		return map[string]any{"outcome": "failed", "stage": "confirm"}, &testengine.StepFailure{Step: s.Name(), Reason: err.Error()}
	}

	return map[string]any{"outcome": "programmed", "version": spec.Version}, nil
}
