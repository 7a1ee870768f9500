// Package session holds the client-side lifecycle controller for one
// simulation attempt. The controller owns the single in-memory copy of the
// simulation, applies state transitions locally, and persists them through a
// SimulationAPI: opportunistically via the auto-saver and definitively on
// pause/complete. The local copy is the fallback of record until the server
// confirms a mutation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elimisha/maabara/core"
	"github.com/elimisha/maabara/core/simulation"
)

var (
	// errors
	ErrNotActive  = errors.New("simulation is not active")
	ErrOpInFlight = errors.New("operation already in progress")

	NowFunc = func() time.Time { return time.Now().UTC() } // mockable
)

type (
	// SimulationAPI is the remote simulation service consumed by the
	// controller. Transition calls return the server's new version so the
	// optimistic token stays in sync.
	SimulationAPI interface {
		CreateSimulation(ctx context.Context, ns simulation.NewSimulation) (simulation.Simulation, error)
		GetSimulation(ctx context.Context, id string) (simulation.Simulation, error)
		StartSimulation(ctx context.Context, id string) (int, error)
		PauseSimulation(ctx context.Context, id string) (int, error)
		ResumeSimulation(ctx context.Context, id string) (int, error)
		UpdateSimulationState(ctx context.Context, id string, patch simulation.StatePatch) (int, error)
		CompleteSimulation(ctx context.Context, id string, res simulation.FinalResults) error
	}

	// Hooks notify the owning view of lifecycle moments.
	Hooks struct {
		// OnCompletionReady fires once when progress reaches 100; the view
		// should open its completion flow instead of auto-advancing.
		OnCompletionReady func()
		// OnRefresh fires after a successful completion; the parent view
		// should reload its session list.
		OnRefresh func()
	}

	// StepData carries what the user entered at one procedure step.
	StepData struct {
		Text   string
		Inputs map[string]string
	}

	Controller struct {
		mu     sync.Mutex
		api    SimulationAPI
		logger core.Logger
		hooks  Hooks

		sim       simulation.Simulation // local working copy
		confirmed simulation.Simulation // last server-confirmed state

		saver *AutoSaver

		inFlight           map[string]bool // re-entrancy guards per logical operation
		completionSignaled bool
	}
)

// NewController binds a controller to a loaded simulation for the lifetime of
// one viewing. Stop it with Close when the view unmounts.
func NewController(api SimulationAPI, sim simulation.Simulation, conf *core.Config, logger core.Logger, hooks Hooks) *Controller {
	if sim.TotalSteps <= 0 {
		// same default the service applies on create; keeps step progress finite
		sim.TotalSteps = 5
	}
	c := &Controller{
		api:       api,
		logger:    logger,
		hooks:     hooks,
		sim:       cloneSimulation(sim),
		confirmed: cloneSimulation(sim),
		inFlight:  make(map[string]bool),
	}
	c.saver = newAutoSaver(c, conf.AutoSave.Interval, conf.AutoSave.ForceCooldown)
	go c.saver.run()
	return c
}

// InitializeExperiment validates the prompt, generates pre-flight content
// (falling back to the static material when generation fails) and creates the
// simulation remotely, returning a controller bound to it.
func InitializeExperiment(
	ctx context.Context,
	api SimulationAPI,
	games core.GameContentService,
	ns simulation.NewSimulation,
	conf *core.Config,
	logger core.Logger,
	hooks Hooks,
) (*Controller, core.ExperimentContent, error) {
	// rejected before any network call
	if err := ns.Validate(); err != nil {
		return nil, core.ExperimentContent{}, err
	}

	content, err := games.GenerateExperimentContent(ctx, ns.Prompt)
	if err != nil || content.IsEmpty() {
		if err != nil {
			logger.Warn(fmt.Sprintf("experiment content generation failed, using fallback: %v", err))
		}
		content = core.FallbackExperimentContent()
	}

	sim, err := api.CreateSimulation(ctx, ns)
	if err != nil {
		return nil, core.ExperimentContent{}, err
	}
	return NewController(api, sim, conf, logger, hooks), content, nil
}

// Snapshot returns a copy of the current local simulation state.
func (c *Controller) Snapshot() simulation.Simulation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneSimulation(c.sim)
}

// Saver exposes the auto-save scheduler, mainly so views can force a save.
func (c *Controller) Saver() *AutoSaver { return c.saver }

// Start transitions not_started -> in_progress. Local state is unchanged on
// failure; the caller surfaces the error and may retry manually.
func (c *Controller) Start(ctx context.Context) error {
	id, err := c.beginOp("start", simulation.StatusNotStarted)
	if err != nil {
		return err
	}
	defer c.endOp("start")

	version, err := c.api.StartSimulation(ctx, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := NowFunc()
	c.sim.Status = simulation.StatusInProgress
	c.sim.StartedAt = now
	c.sim.LastActiveAt = now
	c.sim.Version = version
	c.confirmed.Status = simulation.StatusInProgress
	c.confirmed.Version = version
	return nil
}

// Pause forces an immediate save before transmitting the pause request so no
// progress is lost, then transitions in_progress -> paused.
func (c *Controller) Pause(ctx context.Context) error {
	id, err := c.beginOp("pause", simulation.StatusInProgress)
	if err != nil {
		return err
	}
	defer c.endOp("pause")

	// save-then-pause; save failures are swallowed by the saver
	c.saver.ForceSave(ctx)

	version, err := c.api.PauseSimulation(ctx, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sim.Status = simulation.StatusPaused
	c.sim.Version = version
	c.confirmed.Status = simulation.StatusPaused
	c.confirmed.Version = version
	return nil
}

// Resume transitions paused -> in_progress and refreshes last activity.
func (c *Controller) Resume(ctx context.Context) error {
	id, err := c.beginOp("resume", simulation.StatusPaused)
	if err != nil {
		return err
	}
	defer c.endOp("resume")

	version, err := c.api.ResumeSimulation(ctx, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sim.Status = simulation.StatusInProgress
	c.sim.LastActiveAt = NowFunc()
	c.sim.Version = version
	c.confirmed.Status = simulation.StatusInProgress
	c.confirmed.Version = version
	return nil
}

// RecordStep appends an observation, merges the step's inputs and advances
// progress. When progress reaches 100 it reports completionReady (and fires
// OnCompletionReady once) instead of advancing to a next step.
func (c *Controller) RecordStep(stepIndex int, data StepData) (completionReady bool, err error) {
	c.mu.Lock()
	if !c.sim.Status.IsActive() {
		c.mu.Unlock()
		return false, ErrNotActive
	}

	c.sim.Observations = append(c.sim.Observations, simulation.Observation{
		Step:      stepIndex,
		Timestamp: NowFunc(),
		Text:      data.Text,
	})
	c.sim.MergeInputs(data.Inputs)

	progress := core.ClampPercent(float64(stepIndex+1) / float64(c.sim.TotalSteps) * 100)
	if progress > c.sim.Progress {
		c.sim.Progress = progress
	}
	c.sim.LastActiveAt = NowFunc()

	if c.sim.Progress >= 100 {
		completionReady = true
		signal := !c.completionSignaled
		c.completionSignaled = true
		c.mu.Unlock()
		if signal && c.hooks.OnCompletionReady != nil {
			c.hooks.OnCompletionReady()
		}
		return true, nil
	}

	if stepIndex+1 > c.sim.CurrentStep {
		c.sim.CurrentStep = stepIndex + 1
	}
	c.mu.Unlock()
	return false, nil
}

// ApplyGameScore records a score reported by the sandboxed game host.
// Scores only ever go up.
func (c *Controller) ApplyGameScore(score int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if score > c.sim.Score {
		c.sim.Score = score
	}
}

// GameCompleted handles the host's completion signal: the final score is
// recorded and the completion flow is opened, pending the user's confirmation
// of final observations.
func (c *Controller) GameCompleted(score int) {
	c.mu.Lock()
	if score > c.sim.Score {
		c.sim.Score = score
	}
	if c.sim.Progress < 100 {
		c.sim.Progress = 100
	}
	signal := !c.completionSignaled
	c.completionSignaled = true
	c.mu.Unlock()

	if signal && c.hooks.OnCompletionReady != nil {
		c.hooks.OnCompletionReady()
	}
}

// Complete sends the consolidated results. Valid only while the simulation is
// active; on failure local state is untouched and the user may retry.
func (c *Controller) Complete(ctx context.Context, res simulation.FinalResults) error {
	c.mu.Lock()
	if c.inFlight["complete"] {
		c.mu.Unlock()
		return ErrOpInFlight
	}
	if !c.sim.Status.IsActive() {
		from := c.sim.Status
		c.mu.Unlock()
		return &simulation.TransitionError{From: from, To: simulation.StatusCompleted}
	}
	c.inFlight["complete"] = true
	id := c.sim.ID
	c.mu.Unlock()
	defer c.endOp("complete")

	// push any unsaved state first; results only carry the consolidated outcome
	c.saver.FinalSave(ctx)

	if err := c.api.CompleteSimulation(ctx, id, res); err != nil {
		return err
	}

	c.mu.Lock()
	now := NowFunc()
	c.sim.MergeInputs(res.Inputs)
	c.sim.Observations = append(c.sim.Observations, res.Observations...)
	if res.Score.Valid && res.Score.Int > c.sim.Score {
		c.sim.Score = res.Score.Int
	}
	c.sim.Status = simulation.StatusCompleted
	c.sim.Progress = 100
	c.sim.CompletedAt = now
	c.sim.LastActiveAt = now
	c.confirmed = cloneSimulation(c.sim)
	c.mu.Unlock()

	c.saver.Stop()
	if c.hooks.OnRefresh != nil {
		c.hooks.OnRefresh()
	}
	return nil
}

// Close attempts one last best-effort save and stops the auto-saver. Call it
// when the view unmounts; the server remains the source of truth afterwards.
func (c *Controller) Close(ctx context.Context) {
	c.saver.FinalSave(ctx)
	c.saver.Stop()
}

// beginOp checks the status precondition and the per-operation re-entrancy
// guard, then marks the operation in flight.
func (c *Controller) beginOp(op string, want simulation.Status) (id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[op] {
		return "", ErrOpInFlight
	}
	if c.sim.Status != want {
		to := opTarget(op)
		return "", &simulation.TransitionError{From: c.sim.Status, To: to}
	}
	c.inFlight[op] = true
	return c.sim.ID, nil
}

func (c *Controller) endOp(op string) {
	c.mu.Lock()
	delete(c.inFlight, op)
	c.mu.Unlock()
}

func opTarget(op string) simulation.Status {
	switch op {
	case "start", "resume":
		return simulation.StatusInProgress
	case "pause":
		return simulation.StatusPaused
	default:
		return simulation.StatusCompleted
	}
}

func cloneSimulation(sim simulation.Simulation) simulation.Simulation {
	cp := sim
	if sim.UserInputs != nil {
		cp.UserInputs = make(map[string]string, len(sim.UserInputs))
		for k, v := range sim.UserInputs {
			cp.UserInputs[k] = v
		}
	}
	cp.Observations = append([]simulation.Observation(nil), sim.Observations...)
	return cp
}
