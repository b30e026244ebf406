package testengine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fenwick-labs/stationrt/internal/checkpoint"
	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/logging"
	"github.com/fenwick-labs/stationrt/internal/viewbus"
)

// Step is one entry in the step catalogue spec.md §4.5 describes.
// Implementations live in internal/testengine/steps.
type Step interface {
	Name() string
	Kind() configstore.StepKind
	// Critical reports whether a StepFailure from this step must be
	// promoted to a TestFailure that aborts the iteration.
	Critical() bool
	// Validate checks the step's required static configuration is
	// present on model; a misconfigured station is a StationFailure
	// per spec.md §4.5 step 3a, not a StepFailure.
	Validate(model *configstore.TestModel) error
	// Run executes the step against model and the current iteration,
	// returning the payload to persist in the step record.
	Run(ctx context.Context, model *configstore.TestModel, it *configstore.Iteration) (map[string]any, error)
}

// Engine is TestEngine: given a scanned DUT identity and a ConfigStore,
// it resolves a TestModel, walks the configured step catalogue, and
// persists the resulting Iteration.
type Engine struct {
	store       configstore.Store
	bus         *viewbus.Bus
	steps       []Step
	checkpoints *checkpoint.Store
}

// New returns an Engine that runs steps, in order, for every iteration.
// checkpoints may be nil, in which case mid-run progress is held only in
// the Iteration struct itself and no snapshot survives a supervisor
// inspecting the engine between steps.
func New(store configstore.Store, bus *viewbus.Bus, steps []Step, checkpoints *checkpoint.Store) *Engine {
	return &Engine{store: store, bus: bus, steps: steps, checkpoints: checkpoints}
}

// RunIteration implements spec.md §4.5's four-step contract. A non-nil
// error return is always a *StationFailure — TestFailure and per-step
// StepFailure outcomes are captured in the returned Iteration itself,
// per "Completed carries a pass/fail aggregate ... Aborted is test-local
// failure ... Fatal is station-local failure and implies the engine
// should be torn down."
func (e *Engine) RunIteration(ctx context.Context, dut configstore.DUT) (*configstore.Iteration, error) {
	model, err := e.store.ResolveModel(ctx, dut.MN, dut.Option)
	if err != nil {
		return nil, &StationFailure{Reason: "no test model for DUT", Cause: err}
	}

	it, err := e.store.CreateIteration(ctx, dut, model.RevisionID)
	if err != nil {
		return nil, &StationFailure{Reason: "failed to create iteration", Cause: err}
	}

	it.State = configstore.IterationConfigured
	names := make([]string, len(e.steps))
	for i, s := range e.steps {
		names[i] = s.Name()
	}
	e.bus.Publish(ctx, StepsInitMessage{Steps: names})
	it.State = configstore.IterationRunning

	for _, step := range e.steps {
		if err := step.Validate(model); err != nil {
			return e.finishStation(ctx, it, &StationFailure{
				Reason: fmt.Sprintf("step %s is misconfigured", step.Name()),
				Cause:  err,
			})
		}

		e.bus.Publish(ctx, StepStartMessage{Step: step.Name()})
		idx := it.AddStep(step.Kind())

		payload, runErr := step.Run(ctx, model, it)
		e.checkpoint(it, step.Name(), payload)
		if runErr == nil {
			it.CompleteStep(idx, true, "", payload)
			e.bus.Publish(ctx, StepFinishMessage{Step: step.Name(), Success: true})
			continue
		}

		c := classify(step.Name(), runErr)
		it.CompleteStep(idx, false, c.Error(), payload)
		e.bus.Publish(ctx, StepFinishMessage{Step: step.Name(), Success: false})

		switch c.Classification() {
		case StepLocal:
			if step.Critical() {
				return e.finishTest(ctx, it, &TestFailure{Step: step.Name(), Reason: c.Error()})
			}
			// Non-critical StepFailure: record and continue.
		case TestTerminating:
			return e.finishTest(ctx, it, c)
		case StationFatal:
			return e.finishStation(ctx, it, c)
		}
	}

	it.State = configstore.IterationCompleted
	it.Pass = criticalStepsPassed(it, e.steps)
	it.FinishedAt = time.Now()
	if err := e.store.CommitIteration(ctx, it); err != nil {
		return nil, &StationFailure{Reason: "commit iteration", Cause: err}
	}
	e.clearCheckpoint(it)
	return it, nil
}

// checkpoint records it's current step outcome in the in-memory
// checkpoint store, if one is configured. A marshal failure here is not
// itself a StationFailure — checkpointing is diagnostic, not the system
// of record.
func (e *Engine) checkpoint(it *configstore.Iteration, step string, payload map[string]any) {
	if e.checkpoints == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Op().Warn("testengine: failed to marshal checkpoint payload", "iteration", it.ID, "step", step, "error", err)
		return
	}
	e.checkpoints.Save(it.ID, it.RevisionID, step, data)
}

func (e *Engine) clearCheckpoint(it *configstore.Iteration) {
	if e.checkpoints != nil {
		e.checkpoints.Delete(it.ID)
	}
}

func criticalStepsPassed(it *configstore.Iteration, steps []Step) bool {
	critical := make(map[configstore.StepKind]bool, len(steps))
	for _, s := range steps {
		if s.Critical() {
			critical[s.Kind()] = true
		}
	}
	for _, rec := range it.Steps {
		if critical[rec.Kind] && !rec.Success {
			return false
		}
	}
	return true
}

// finishTest commits the iteration as Aborted (test-local failure):
// remaining steps are skipped, already-run step records keep their own
// outcomes, and the engine itself keeps running — the next scan is
// unaffected.
func (e *Engine) finishTest(ctx context.Context, it *configstore.Iteration, tf Classified) (*configstore.Iteration, error) {
	it.State = configstore.IterationAborted
	it.Pass = false
	it.FinishedAt = time.Now()
	if err := e.store.CommitIteration(ctx, it); err != nil {
		logging.Op().Error("testengine: failed to commit aborted iteration", "iteration", it.ID, "error", err)
	}
	e.bus.Publish(ctx, NotificationMessage{Major: "FAIL", Minor: tf.Error(), Color: "red"})
	e.clearCheckpoint(it)
	return it, nil
}

// finishStation commits the partial iteration tagged Unfinished and
// propagates the StationFailure to the caller, which per spec.md §4.5 is
// expected to tear the engine down.
func (e *Engine) finishStation(ctx context.Context, it *configstore.Iteration, sf Classified) (*configstore.Iteration, error) {
	it.State = configstore.IterationFatal
	it.Unfinished = true
	it.FinishedAt = time.Now()
	if err := e.store.CommitIteration(ctx, it); err != nil {
		logging.Op().Error("testengine: failed to commit unfinished iteration", "iteration", it.ID, "error", err)
	}
	e.bus.Publish(ctx, NotificationMessage{Major: "STATION FAILURE", Minor: sf.Error(), Color: "red"})
	return it, sf
}
