package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimisha/maabara/core/simulation"
)

func Test_buildPatch_unchangedStatusOmitted(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{})

	_, err := c.RecordStep(0, StepData{Text: "mixed the solution"})
	require.NoError(t, err)

	patch, _ := c.buildPatch()
	// the status matches the last confirmed state, so it must not be resent
	assert.Nil(t, patch.Status)
	assert.True(t, patch.Progress.Valid)
	assert.True(t, patch.CurrentStep.Valid)
	assert.Len(t, patch.Observations, 1)
	assert.Equal(t, 1, patch.Version)
}

func Test_buildPatch_changedStatusIncluded(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{})

	c.mu.Lock()
	c.sim.Status = simulation.StatusPaused
	c.mu.Unlock()

	patch, _ := c.buildPatch()
	require.NotNil(t, patch.Status)
	assert.Equal(t, simulation.StatusPaused, *patch.Status)
}

func Test_buildPatch_onlyNewObservations(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{})
	c.saver.cooldown = 0

	_, err := c.RecordStep(0, StepData{Text: "first"})
	require.NoError(t, err)
	c.saver.ForceSave(context.Background())

	_, err = c.RecordStep(1, StepData{Text: "second"})
	require.NoError(t, err)

	patch, _ := c.buildPatch()
	require.Len(t, patch.Observations, 1)
	assert.Equal(t, "second", patch.Observations[0].Text)
}

func Test_AutoSaver_emptyPatchSkipsCall(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{})
	c.saver.cooldown = 0

	c.saver.ForceSave(context.Background())
	assert.Empty(t, api.callNames())
}

func Test_AutoSaver_tick_intervalGate(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{})
	c.saver.interval = 30 * time.Second

	_, err := c.RecordStep(0, StepData{Text: "noted"})
	require.NoError(t, err)

	// timer fire inside the interval window: nothing is sent
	c.saver.mu.Lock()
	c.saver.lastSavedAt = NowFunc().Add(-10 * time.Second)
	c.saver.mu.Unlock()
	c.saver.tick()
	assert.Empty(t, api.callNames())

	// a full interval since the last successful save: the fire saves
	c.saver.mu.Lock()
	c.saver.lastSavedAt = NowFunc().Add(-30 * time.Second)
	c.saver.mu.Unlock()
	c.saver.tick()
	assert.Equal(t, []string{"update"}, api.callNames())

	// the successful save restarts the window
	_, err = c.RecordStep(1, StepData{Text: "again"})
	require.NoError(t, err)
	c.saver.tick()
	assert.Equal(t, []string{"update"}, api.callNames())
}

func Test_AutoSaver_never_saved_ticksImmediately(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{})
	c.saver.interval = 30 * time.Second

	_, err := c.RecordStep(0, StepData{Text: "noted"})
	require.NoError(t, err)

	// no save has happened yet, so the first fire is eligible
	c.saver.tick()
	assert.Equal(t, []string{"update"}, api.callNames())
}

func Test_AutoSaver_ForceSave_cooldown(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{})

	_, err := c.RecordStep(0, StepData{Text: "noted"})
	require.NoError(t, err)

	// a fresh save puts the cooldown in effect
	c.saver.mu.Lock()
	c.saver.lastSavedAt = NowFunc()
	c.saver.mu.Unlock()

	c.saver.ForceSave(context.Background())
	assert.Empty(t, api.callNames())

	// the teardown save ignores the cooldown
	c.saver.FinalSave(context.Background())
	assert.Equal(t, []string{"update"}, api.callNames())
}

func Test_AutoSaver_failureIsSwallowedAndRetried(t *testing.T) {
	api := &fakeAPI{updateErr: errors.New("network down")}
	c := newTestController(t, api, simulation.StatusInProgress, Hooks{})
	c.saver.cooldown = 0

	_, err := c.RecordStep(0, StepData{Text: "noted", Inputs: map[string]string{"ph": "7"}})
	require.NoError(t, err)

	c.saver.ForceSave(context.Background())

	// the failed save left the confirmed state and version untouched
	c.mu.Lock()
	assert.Equal(t, 1, c.sim.Version)
	assert.Empty(t, c.confirmed.UserInputs)
	c.mu.Unlock()
	c.saver.mu.Lock()
	assert.True(t, c.saver.lastSavedAt.IsZero())
	c.saver.mu.Unlock()

	// next attempt carries the same state through
	api.updateErr = nil
	c.saver.ForceSave(context.Background())

	require.Len(t, api.patches, 1)
	assert.Equal(t, "7", api.patches[0].UserInputs["ph"])
	c.mu.Lock()
	assert.Equal(t, "7", c.confirmed.UserInputs["ph"])
	assert.Greater(t, c.sim.Version, 1)
	c.mu.Unlock()
}
