package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimisha/maabara/core"
	"github.com/elimisha/maabara/core/simulation"
)

// fakeAPI records calls in order and hands out incrementing versions.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []string
	version int
	patches []simulation.StatePatch

	createErr   error
	updateErr   error
	completeErr error
}

func (f *fakeAPI) record(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.version++
	return f.version
}

func (f *fakeAPI) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) CreateSimulation(_ context.Context, ns simulation.NewSimulation) (simulation.Simulation, error) {
	f.record("create")
	if f.createErr != nil {
		return simulation.Simulation{}, f.createErr
	}
	return simulation.Simulation{
		ID:         "sim-1",
		StudentID:  ns.StudentID,
		Prompt:     ns.Prompt,
		Status:     simulation.StatusNotStarted,
		TotalSteps: 5,
		Version:    f.version,
	}, nil
}

func (f *fakeAPI) GetSimulation(_ context.Context, id string) (simulation.Simulation, error) {
	f.record("get")
	return simulation.Simulation{ID: id}, nil
}

func (f *fakeAPI) StartSimulation(_ context.Context, _ string) (int, error) {
	return f.record("start"), nil
}

func (f *fakeAPI) PauseSimulation(_ context.Context, _ string) (int, error) {
	return f.record("pause"), nil
}

func (f *fakeAPI) ResumeSimulation(_ context.Context, _ string) (int, error) {
	return f.record("resume"), nil
}

func (f *fakeAPI) UpdateSimulationState(_ context.Context, _ string, patch simulation.StatePatch) (int, error) {
	v := f.record("update")
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	f.mu.Lock()
	f.patches = append(f.patches, patch)
	f.mu.Unlock()
	return v, nil
}

func (f *fakeAPI) CompleteSimulation(_ context.Context, _ string, _ simulation.FinalResults) error {
	f.record("complete")
	return f.completeErr
}

var _ SimulationAPI = (*fakeAPI)(nil)

func testConfig() *core.Config {
	conf := &core.Config{}
	// keep the background timer out of the way
	conf.AutoSave.Interval = time.Hour
	conf.AutoSave.ForceCooldown = time.Hour
	return conf
}

func newTestController(t *testing.T, api *fakeAPI, status simulation.Status, hooks Hooks) *Controller {
	t.Helper()
	sim := simulation.Simulation{
		ID:         "sim-1",
		StudentID:  "std-001",
		Status:     status,
		TotalSteps: 5,
		Version:    1,
	}
	api.version = 1
	c := NewController(api, sim, testConfig(), core.NopLogger{}, hooks)
	t.Cleanup(c.saver.Stop)
	return c
}

func Test_Controller_Start(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(t, api, simulation.StatusNotStarted, Hooks{})

	require.NoError(t, c.Start(context.Background()))
	sim := c.Snapshot()
	assert.Equal(t, simulation.StatusInProgress, sim.Status)
	assert.Equal(t, 2, sim.Version)
	assert.False(t, sim.StartedAt.IsZero())

	// starting an already running simulation is rejected locally
	err := c.Start(context.Background())
	var tErr *simulation.TransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, []string{"start"}, api.callNames())
}

func Test_Controller_Pause_savesBeforePausing(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{})
	c.saver.cooldown = 0 // let the forced save through

	// dirty local state that the pause must not lose
	_, err := c.RecordStep(0, StepData{Text: "filled the burette", Inputs: map[string]string{"volume": "25ml"}})
	require.NoError(t, err)

	require.NoError(t, c.Pause(context.Background()))

	assert.Equal(t, []string{"update", "pause"}, api.callNames())
	require.Len(t, api.patches, 1)
	assert.Equal(t, "25ml", api.patches[0].UserInputs["volume"])

	sim := c.Snapshot()
	assert.Equal(t, simulation.StatusPaused, sim.Status)
	assert.Equal(t, 3, sim.Version)
}

func Test_Controller_Pause_whenNotRunning(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(t, api, simulation.StatusNotStarted, Hooks{})

	var tErr *simulation.TransitionError
	require.ErrorAs(t, c.Pause(context.Background()), &tErr)
	assert.Empty(t, api.callNames())
}

func Test_Controller_Resume(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(t, api, simulation.StatusPaused, Hooks{})

	require.NoError(t, c.Resume(context.Background()))
	sim := c.Snapshot()
	assert.Equal(t, simulation.StatusInProgress, sim.Status)
	assert.False(t, sim.LastActiveAt.IsZero())
}

func Test_Controller_RecordStep(t *testing.T) {
	api := &fakeAPI{}
	var completionCalls int
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{
		OnCompletionReady: func() { completionCalls++ },
	})

	for step := 0; step < 4; step++ {
		ready, err := c.RecordStep(step, StepData{Text: "observed"})
		require.NoError(t, err)
		assert.False(t, ready)
	}
	sim := c.Snapshot()
	assert.Equal(t, 4, sim.CurrentStep)
	assert.Equal(t, 80.0, sim.Progress)
	assert.Len(t, sim.Observations, 4)
	assert.Zero(t, completionCalls)

	// final step: completion flow opens instead of advancing
	ready, err := c.RecordStep(4, StepData{Text: "end point reached"})
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, 1, completionCalls)

	sim = c.Snapshot()
	assert.Equal(t, 4, sim.CurrentStep)
	assert.Equal(t, 100.0, sim.Progress)

	// repeating the last step does not re-fire the hook
	ready, err = c.RecordStep(4, StepData{Text: "again"})
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, 1, completionCalls)
}

func Test_Controller_RecordStep_missingTotalSteps(t *testing.T) {
	api := &fakeAPI{}
	api.version = 1
	var completionCalls int

	// a session loaded without a step count gets the default instead of
	// jumping straight to 100% on the first step
	sim := simulation.Simulation{ID: "sim-1", Status: simulation.StatusInProgress, Version: 1}
	c := NewController(api, sim, testConfig(), core.NopLogger{}, Hooks{
		OnCompletionReady: func() { completionCalls++ },
	})
	t.Cleanup(c.saver.Stop)

	ready, err := c.RecordStep(0, StepData{Text: "first"})
	require.NoError(t, err)
	assert.False(t, ready)

	snap := c.Snapshot()
	assert.Equal(t, 5, snap.TotalSteps)
	assert.Equal(t, 20.0, snap.Progress)
	assert.Equal(t, 1, snap.CurrentStep)
	assert.Zero(t, completionCalls)
}

func Test_Controller_RecordStep_notActive(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(t, api, simulation.StatusNotStarted, Hooks{})

	_, err := c.RecordStep(0, StepData{Text: "too early"})
	assert.ErrorIs(t, err, ErrNotActive)
}

func Test_Controller_gameScores(t *testing.T) {
	api := &fakeAPI{}
	var completionCalls int
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{
		OnCompletionReady: func() { completionCalls++ },
	})

	c.ApplyGameScore(40)
	c.ApplyGameScore(20) // scores only go up
	assert.Equal(t, 40, c.Snapshot().Score)

	c.GameCompleted(90)
	sim := c.Snapshot()
	assert.Equal(t, 90, sim.Score)
	assert.Equal(t, 100.0, sim.Progress)
	assert.Equal(t, 1, completionCalls)
}

func Test_Controller_Complete(t *testing.T) {
	api := &fakeAPI{}
	var refreshed int
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{
		OnRefresh: func() { refreshed++ },
	})

	err := c.Complete(context.Background(), simulation.FinalResults{Summary: "done"})
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusCompleted, c.Snapshot().Status)
	assert.Equal(t, 100.0, c.Snapshot().Progress)
	assert.Equal(t, 1, refreshed)

	// completed is terminal locally too
	var tErr *simulation.TransitionError
	require.ErrorAs(t, c.Complete(context.Background(), simulation.FinalResults{}), &tErr)
	assert.Equal(t, simulation.StatusCompleted, tErr.From)
}

func Test_Controller_Complete_apiFailure(t *testing.T) {
	api := &fakeAPI{completeErr: errors.New("boom")}
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{})

	require.Error(t, c.Complete(context.Background(), simulation.FinalResults{}))
	// local state untouched, the user may retry
	assert.Equal(t, simulation.StatusInProgress, c.Snapshot().Status)

	api.completeErr = nil
	require.NoError(t, c.Complete(context.Background(), simulation.FinalResults{}))
	assert.Equal(t, simulation.StatusCompleted, c.Snapshot().Status)
}

type fixedContentService struct {
	game    core.GamePayload
	content core.ExperimentContent
	err     error
}

func (s *fixedContentService) GenerateGame(context.Context, string) (core.GamePayload, error) {
	return s.game, s.err
}

func (s *fixedContentService) GenerateExperimentContent(context.Context, string) (core.ExperimentContent, error) {
	return s.content, s.err
}

func Test_InitializeExperiment(t *testing.T) {
	api := &fakeAPI{}
	games := &fixedContentService{content: core.ExperimentContent{
		Equipment:    []string{"burette"},
		Instructions: []string{"fill the burette"},
	}}

	ns := simulation.NewSimulation{
		StudentID: "std-001",
		Prompt:    "Explore how acid-base titration works",
		Level:     simulation.LevelBeginner,
	}
	c, content, err := InitializeExperiment(context.Background(), api, games, ns, testConfig(), core.NopLogger{}, Hooks{})
	require.NoError(t, err)
	defer c.saver.Stop()

	assert.Equal(t, []string{"burette"}, content.Equipment)
	assert.Equal(t, simulation.StatusNotStarted, c.Snapshot().Status)
	assert.Equal(t, []string{"create"}, api.callNames())
}

func Test_InitializeExperiment_contentFallback(t *testing.T) {
	api := &fakeAPI{}
	games := &fixedContentService{err: errors.New("model unavailable")}

	ns := simulation.NewSimulation{
		StudentID: "std-001",
		Prompt:    "Explore how acid-base titration works",
		Level:     simulation.LevelBeginner,
	}
	c, content, err := InitializeExperiment(context.Background(), api, games, ns, testConfig(), core.NopLogger{}, Hooks{})
	require.NoError(t, err)
	defer c.saver.Stop()

	// generation failure degrades to the canned material, never an error
	assert.Equal(t, core.FallbackExperimentContent(), content)
	assert.Equal(t, []string{"create"}, api.callNames())
}

func Test_InitializeExperiment_invalidPrompt(t *testing.T) {
	api := &fakeAPI{}
	games := &fixedContentService{}

	ns := simulation.NewSimulation{StudentID: "std-001", Prompt: "short", Level: simulation.LevelBeginner}
	_, _, err := InitializeExperiment(context.Background(), api, games, ns, testConfig(), core.NopLogger{}, Hooks{})
	require.Error(t, err)
	// rejected before any network call
	assert.Empty(t, api.callNames())
}
