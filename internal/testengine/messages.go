package testengine

// Inbound messages the engine accepts from the UI/driver, per spec.md §6.

// ScanMessage carries a raw barcode scan for classification.
type ScanMessage struct{ Raw string }

// Mode is the engine's Testing/Rework discriminator.
type Mode int

const (
	ModeTesting Mode = iota
	ModeRework
)

// ModeChangeMessage switches the engine's operating mode.
type ModeChangeMessage struct{ Mode Mode }

// TECheckMessage requests an instrument-level self-check broadcast.
type TECheckMessage struct{}

// HistoryGetAllMessage requests a replay of recent iteration summaries.
type HistoryGetAllMessage struct{}

// Outbound messages the engine emits to the UI over the viewbus, per
// spec.md §6.

// InstructionMessage is a human-readable operator prompt.
type InstructionMessage struct {
	Major string
	Minor string
}

// NotificationMessage is a human-readable status line, with an optional
// UI color hint.
type NotificationMessage struct {
	Major string
	Minor string
	Color string
}

// StepsInitMessage announces the ordered step names an iteration will run.
type StepsInitMessage struct{ Steps []string }

// StepStartMessage announces a step beginning.
type StepStartMessage struct{ Step string }

// StepProgressMessage carries an in-progress value for a running step
// (e.g. a partial sample count); never persisted, display-only.
type StepProgressMessage struct {
	Step  string
	Value any
}

// StepFinishMessage announces a step's outcome.
type StepFinishMessage struct {
	Step    string
	Success bool
}

// MetricsMessage carries rolling pass/fail counters.
type MetricsMessage struct {
	PassHour int
	FailHour int
	PassDay  int
	FailDay  int
}

// HistoryAddEntryMessage appends one row to the UI's history table.
type HistoryAddEntryMessage struct {
	ID string
	PF bool
	DT string
	MN int64
	SN int64
}

// HistorySetAllMessage replaces the UI's history table wholesale, in
// response to HistoryGetAllMessage.
type HistorySetAllMessage struct {
	Records []HistoryAddEntryMessage
}
