// Package configstore implements the ConfigStore interface spec.md treats
// as an external collaborator (out of scope: the relational store's
// internals) together with the concrete pieces this runtime needs to drive
// TestEngine: a versioned TestModel bundle, DUT identity, and the
// TestIteration persistence tree.
package configstore

import "time"

// DUT identifies a device under test: serial number, model number, and an
// optional build option suffix that can select a different TestModel for
// the same model number.
type DUT struct {
	SN     int64
	MN     int64
	Option string
}

// UnitIdentityMode is the three-mode directive spec.md §3 describes for
// the unit-identity step: write SN/MN to the DUT, only confirm what's
// already there, or skip the step entirely.
type UnitIdentityMode int

const (
	UnitIdentitySkip UnitIdentityMode = iota
	UnitIdentityConfirmOnly
	UnitIdentityWrite
)

// FirmwareSpec describes the firmware image a TestModel references, if
// any: where to fetch it, what version it should report once programmed,
// and two independent override flags.
type FirmwareSpec struct {
	ImageRef        string // firmware.Store key: local path or s3://bucket/key
	Version         string
	ForceOverwrite  bool // program even if the DUT already reports Version
	ProgramWithThermal bool // may overlap with a thermal-drop step in the same iteration
}

// EEPROMWrite is one (target, index, value) triple the eeprom-config step
// writes, with an independent per-register verify flag.
type EEPROMWrite struct {
	Target string
	Index  int
	Value  int64
	Verify bool
}

// ParameterSheetRow is one sub-test's tolerance row (illumination-sample,
// thermal-drop, etc.) — the concrete fields a row carries are step-specific
// and stored as a JSONB payload in Postgres; ParameterSheetRow only fixes the
// identity and ordering columns every row shares.
type ParameterSheetRow struct {
	StepName string
	Ordinal  int
	Payload  map[string]any
}

// TestModel is the versioned bundle TestEngine resolves for (mn, option).
// Two models are equal iff their revision id and content hash match —
// RevisionID alone is what TestIteration keys off.
type TestModel struct {
	RevisionID       string
	ContentHash      string
	MN               int64
	Option           string
	ConnectionCheck  string // discriminator: which connection-check variant applies
	Sheet            []ParameterSheetRow
	Firmware         *FirmwareSpec // nil: no firmware step
	InitialEEPROM    []EEPROMWrite
	FinalEEPROM      []EEPROMWrite
	UnitIdentity     UnitIdentityMode
	CooldownInterval time.Duration
}

// AppConfigUpdate is a single row in the append-only audit log of
// configuration pushes (required table per SPEC_FULL.md §6).
type AppConfigUpdate struct {
	ID        string
	Key       string
	Value     string
	AppliedAt time.Time
}

// ConfigFile is one named on-disk artifact tracked by the config-file
// watcher (required table per SPEC_FULL.md §6).
type ConfigFile struct {
	Path     string
	Checksum string
	UpdatedAt time.Time
}

// YamlFile is the YAML-serialized mirror of a ConfigStore row set, the
// format the config-file watcher diffs against on change (required table
// per SPEC_FULL.md §6).
type YamlFile struct {
	Path    string
	Content string
	UpdatedAt time.Time
}
