package steps

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/instruments"
	"github.com/fenwick-labs/stationrt/internal/testengine"
)

// Register indices the unit-identity step reads/writes SN and MN through,
// on the same EEPROM the eeprom-config step drives.
const (
	RegisterSN = 0xF0
	RegisterMN = 0xF1
)

// UnitIdentity implements spec.md §4.5's unit-identity row: per
// TestModel.UnitIdentity, optionally write SN/MN, then always read back
// and compare against the scanned DUT identity.
type UnitIdentity struct {
	Device *instruments.EEPROMDeviceProxy
	DUT    configstore.DUT
}

func (s *UnitIdentity) Name() string               { return "unit-identity" }
func (s *UnitIdentity) Kind() configstore.StepKind { return configstore.StepUnitIdentity }
func (s *UnitIdentity) Critical() bool             { return true }

func (s *UnitIdentity) Validate(model *configstore.TestModel) error {
	if model.UnitIdentity < configstore.UnitIdentitySkip || model.UnitIdentity > configstore.UnitIdentityWrite {
		return fmt.Errorf("steps: unknown unit-identity mode %d", model.UnitIdentity)
	}
	return nil
}

func (s *UnitIdentity) Run(ctx context.Context, model *configstore.TestModel, it *configstore.Iteration) (map[string]any, error) {
	if model.UnitIdentity == configstore.UnitIdentitySkip {
		return map[string]any{"outcome": "skipped"}, nil
	}

	if model.UnitIdentity == configstore.UnitIdentityWrite {
		snPromise, err := s.Device.WriteRegister(RegisterSN, byte(s.DUT.SN))
		if err != nil {
			return nil, &testengine.StationFailure{Reason: "unit-identity: write sn", Cause: err}
		}
		if _, err := snPromise.Resolve(-1); err != nil {
			return nil, &testengine.StationFailure{Reason: "unit-identity: resolve sn write", Cause: err}
		}
		mnPromise, err := s.Device.WriteRegister(RegisterMN, byte(s.DUT.MN))
		if err != nil {
			return nil, &testengine.StationFailure{Reason: "unit-identity: write mn", Cause: err}
		}
		if _, err := mnPromise.Resolve(-1); err != nil {
			return nil, &testengine.StationFailure{Reason: "unit-identity: resolve mn write", Cause: err}
		}
	}

	snReadPromise, err := s.Device.ReadRegister(RegisterSN)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "unit-identity: read sn", Cause: err}
	}
	snGot, err := snReadPromise.Resolve(-1)
	if err != nil {
		return map[string]any{"pass": false}, &testengine.StepFailure{Step: s.Name(), Reason: "sn read-back failed: " + err.Error()}
	}
	mnReadPromise, err := s.Device.ReadRegister(RegisterMN)
	if err != nil {
		return nil, &testengine.StationFailure{Reason: "unit-identity: read mn", Cause: err}
	}
	mnGot, err := mnReadPromise.Resolve(-1)
	if err != nil {
		return map[string]any{"pass": false}, &testengine.StepFailure{Step: s.Name(), Reason: "mn read-back failed: " + err.Error()}
	}

	pass := snGot.(byte) == byte(s.DUT.SN) && mnGot.(byte) == byte(s.DUT.MN)
	payload := map[string]any{
		"pass":    pass,
		"sn_read": strconv.Itoa(int(snGot.(byte))),
		"mn_read": strconv.Itoa(int(mnGot.(byte))),
	}
	if !pass {
		return payload, &testengine.StepFailure{Step: s.Name(), Reason: "sn/mn read-back mismatch"}
	}
	return payload, nil
}
