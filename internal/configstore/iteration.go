package configstore

import "time"

// StepKind enumerates the step catalogue spec.md §4.5 names.
type StepKind int

const (
	StepConnectionCheck StepKind = iota
	StepFirmware
	StepEEPROMConfig
	StepUnitIdentity
	StepIlluminationSample
	StepThermalDrop
)

func (k StepKind) String() string {
	switch k {
	case StepConnectionCheck:
		return "connection-check"
	case StepFirmware:
		return "firmware"
	case StepEEPROMConfig:
		return "eeprom-config"
	case StepUnitIdentity:
		return "unit-identity"
	case StepIlluminationSample:
		return "illumination-sample"
	case StepThermalDrop:
		return "thermal-drop"
	default:
		return "unknown"
	}
}

// StepRecord is one entry in a TestIteration's ordered step list. Success
// is set exactly once, only by TestEngine, only after the step body
// returns or raises — per spec.md §3's invariant.
type StepRecord struct {
	Kind       StepKind
	Ordinal    int
	Success    bool
	ErrorText  string
	Payload    map[string]any
	StartedAt  time.Time
	FinishedAt time.Time
}

// IterationState is the iteration-level state machine from spec.md §4.5.
type IterationState int

const (
	IterationIdle IterationState = iota
	IterationConfigured
	IterationRunning
	IterationCompleted
	IterationAborted
	IterationFatal
)

func (s IterationState) String() string {
	switch s {
	case IterationIdle:
		return "idle"
	case IterationConfigured:
		return "configured"
	case IterationRunning:
		return "running"
	case IterationCompleted:
		return "completed"
	case IterationAborted:
		return "aborted"
	case IterationFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Iteration is one TestIteration: a run of model against dut, keyed by the
// config revision it was resolved against.
type Iteration struct {
	ID         string
	DUT        DUT
	RevisionID string
	State      IterationState
	Steps      []StepRecord
	Pass       bool // AND of critical steps once Completed
	Unfinished bool // set when a StationFailure still commits a partial tree
	CreatedAt  time.Time
	FinishedAt time.Time
}

// AddStep appends a new step record to the iteration's tree and returns
// its index for later completion via CompleteStep.
func (it *Iteration) AddStep(kind StepKind) int {
	it.Steps = append(it.Steps, StepRecord{
		Kind:      kind,
		Ordinal:   len(it.Steps),
		StartedAt: time.Now(),
	})
	return len(it.Steps) - 1
}

// CompleteStep sets the named step's outcome exactly once.
func (it *Iteration) CompleteStep(idx int, success bool, errText string, payload map[string]any) {
	s := &it.Steps[idx]
	s.Success = success
	s.ErrorText = errText
	s.Payload = payload
	s.FinishedAt = time.Now()
}
