package testengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-labs/stationrt/internal/checkpoint"
	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/viewbus"
)

type fakeStep struct {
	name        string
	kind        configstore.StepKind
	critical    bool
	validateErr error
	runErr      error
	payload     map[string]any
}

func (f *fakeStep) Name() string                          { return f.name }
func (f *fakeStep) Kind() configstore.StepKind            { return f.kind }
func (f *fakeStep) Critical() bool                        { return f.critical }
func (f *fakeStep) Validate(*configstore.TestModel) error { return f.validateErr }
func (f *fakeStep) Run(ctx context.Context, model *configstore.TestModel, it *configstore.Iteration) (map[string]any, error) {
	return f.payload, f.runErr
}

func newFixture(t *testing.T) (*configstore.Memory, configstore.DUT) {
	store := configstore.NewMemory()
	store.PutModel(&configstore.TestModel{RevisionID: "rev-1", MN: 100, Option: ""})
	return store, configstore.DUT{SN: 1, MN: 100}
}

func TestRunIterationCompletesWhenAllStepsPass(t *testing.T) {
	store, dut := newFixture(t)
	steps := []Step{
		&fakeStep{name: "connection-check", kind: configstore.StepConnectionCheck, critical: true, payload: map[string]any{"ok": true}},
	}
	e := New(store, viewbus.New(nil), steps, checkpoint.NewStore(time.Hour))

	it, err := e.RunIteration(context.Background(), dut)
	require.NoError(t, err)
	assert.Equal(t, configstore.IterationCompleted, it.State)
	assert.True(t, it.Pass)
}

func TestRunIterationAbortsOnCriticalStepFailure(t *testing.T) {
	store, dut := newFixture(t)
	steps := []Step{
		&fakeStep{name: "connection-check", kind: configstore.StepConnectionCheck, critical: true, runErr: &StepFailure{Step: "connection-check", Reason: "unconnected"}},
		&fakeStep{name: "firmware", kind: configstore.StepFirmware, critical: true},
	}
	e := New(store, viewbus.New(nil), steps, nil)

	it, err := e.RunIteration(context.Background(), dut)
	require.NoError(t, err)
	assert.Equal(t, configstore.IterationAborted, it.State)
	assert.False(t, it.Pass)
	require.Len(t, it.Steps, 1)
}

func TestRunIterationPropagatesStationFailureFromUncategorizedError(t *testing.T) {
	store, dut := newFixture(t)
	steps := []Step{
		&fakeStep{name: "connection-check", kind: configstore.StepConnectionCheck, critical: true, runErr: assertErr{}},
	}
	e := New(store, viewbus.New(nil), steps, nil)

	it, err := e.RunIteration(context.Background(), dut)
	require.Error(t, err)
	var sf *StationFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, configstore.IterationFatal, it.State)
	assert.True(t, it.Unfinished)
}

func TestRunIterationFailsStationWhenModelUnresolvable(t *testing.T) {
	store := configstore.NewMemory()
	e := New(store, viewbus.New(nil), nil, nil)

	_, err := e.RunIteration(context.Background(), configstore.DUT{SN: 9, MN: 999})
	require.Error(t, err)
	var sf *StationFailure
	require.ErrorAs(t, err, &sf)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

// S6 — step failure is local; test failure aborts. A non-critical step's
// StepFailure is recorded but does not stop the iteration; a later
// TestFailure (a critical step's StepFailure promoted) aborts it, and steps
// after that point never run.
func TestRunIterationNonCriticalStepFailureContinuesThenCriticalAborts(t *testing.T) {
	store, dut := newFixture(t)
	steps := []Step{
		&fakeStep{name: "connection-check", kind: configstore.StepConnectionCheck, critical: true, payload: map[string]any{"ok": true}},
		&fakeStep{name: "illumination", kind: configstore.StepIlluminationSample, critical: false, runErr: &StepFailure{Step: "illumination", Reason: "reading out of range"}},
		&fakeStep{name: "firmware", kind: configstore.StepFirmware, critical: true, runErr: &StepFailure{Step: "firmware", Reason: "confirm mismatch"}},
		&fakeStep{name: "eeprom-config", kind: configstore.StepEEPROMConfig, critical: true, payload: map[string]any{"ok": true}},
	}
	e := New(store, viewbus.New(nil), steps, nil)

	it, err := e.RunIteration(context.Background(), dut)
	require.NoError(t, err)

	assert.Equal(t, configstore.IterationAborted, it.State)
	assert.False(t, it.Pass)

	require.Len(t, it.Steps, 3)
	assert.True(t, it.Steps[0].Success)
	assert.False(t, it.Steps[1].Success, "non-critical step failure must still be recorded")
	assert.False(t, it.Steps[2].Success)
	// The fourth step, after the critical failure, never ran.
}
