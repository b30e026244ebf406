// Package testengine implements TestEngine: it resolves a TestModel for a
// scanned DUT, walks its ordered TestSteps against proxied instruments,
// and persists the resulting TestIteration. Grounded on spec.md §4.5.
package testengine

import "fmt"

// Classification is the three-way severity spec.md §4.5's step execution
// semantics and §7's error taxonomy describe: StepFailure stays local,
// TestFailure ends the iteration, StationFailure tears the station down.
// Giving every taxonomy error type an explicit Classification() method
// turns the engine's dispatch into a single type switch rather than
// string matching, per SPEC_FULL.md §7.
type Classification int

const (
	StepLocal Classification = iota
	TestTerminating
	StationFatal
)

func (c Classification) String() string {
	switch c {
	case StepLocal:
		return "step-local"
	case TestTerminating:
		return "test-terminating"
	case StationFatal:
		return "station-fatal"
	default:
		return "unknown"
	}
}

// Classified is implemented by every taxonomy error type.
type Classified interface {
	error
	Classification() Classification
}

// StepFailure is a step-local failure: captured into the step record's
// error field, promoted to TestFailure only if the step is critical.
type StepFailure struct {
	Step   string
	Reason string
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("step %s failed: %s", e.Step, e.Reason)
}
func (e *StepFailure) Classification() Classification { return StepLocal }

// TestFailure terminates the iteration with a failing result row;
// remaining steps are skipped, already-run step records keep their own
// outcomes.
type TestFailure struct {
	Step   string
	Reason string
}

func (e *TestFailure) Error() string {
	return fmt.Sprintf("test failed at step %s: %s", e.Step, e.Reason)
}
func (e *TestFailure) Classification() Classification { return TestTerminating }

// StationFailure means the station itself is in an inconsistent state —
// instrument wedged, config missing, channel closed. The iteration is
// marked unfinished and the engine propagates to its supervisor.
type StationFailure struct {
	Reason string
	Cause  error
}

func (e *StationFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("station failure: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("station failure: %s", e.Reason)
}
func (e *StationFailure) Classification() Classification { return StationFatal }
func (e *StationFailure) Unwrap() error                  { return e.Cause }

// classify maps any error a step body returned to its taxonomy
// classification: one already implementing Classified is trusted as-is;
// anything else is an uncategorized exception, which spec.md §4.5 says
// "is re-raised as StationFailure."
func classify(stepName string, err error) Classified {
	if err == nil {
		return nil
	}
	if c, ok := err.(Classified); ok {
		return c
	}
	return &StationFailure{Reason: fmt.Sprintf("step %s raised an uncategorized error", stepName), Cause: err}
}
