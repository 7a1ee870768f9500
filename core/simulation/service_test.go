package simulation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/elimisha/maabara/core"
	"github.com/elimisha/maabara/core/simulation"
	dummydb "github.com/elimisha/maabara/storage/database/dummy"
)

func setup(t *testing.T) simulation.Service {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	return simulation.NewService(dummydb.NewSimulationRepository(db), core.NopLogger{})
}

func newSim(t *testing.T, svc simulation.Service) simulation.Simulation {
	sim, err := svc.Create(simulation.NewSimulation{
		StudentID: "std-001",
		Prompt:    "Explore how acid-base titration works",
		Level:     simulation.LevelBeginner,
		Subject:   "chemistry",
	})
	if err != nil {
		t.Fatalf("newSim() failed: %v", err)
	}
	return sim
}

func startedSim(t *testing.T, svc simulation.Service) simulation.Simulation {
	sim := newSim(t, svc)
	sim, err := svc.Start(sim.ID)
	if err != nil {
		t.Fatalf("startedSim() failed: %v", err)
	}
	return sim
}

func Test_service_Create(t *testing.T) {
	svc := setup(t)
	sim := newSim(t, svc)

	assert.NotEmpty(t, sim.ID)
	assert.Equal(t, simulation.StatusNotStarted, sim.Status)
	assert.Equal(t, 5, sim.TotalSteps) // default
	assert.Equal(t, 1, sim.Version)
	assert.Zero(t, sim.Progress)
	assert.True(t, sim.StartedAt.IsZero())

	_, err := svc.Create(simulation.NewSimulation{StudentID: "std-001", Prompt: "short", Level: "beginner"})
	assert.Error(t, err)
}

func Test_service_transitions(t *testing.T) {
	svc := setup(t)
	sim := newSim(t, svc)

	// not_started -> in_progress
	sim, err := svc.Start(sim.ID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusInProgress, sim.Status)
	assert.Equal(t, 2, sim.Version)
	assert.False(t, sim.StartedAt.IsZero())

	// starting twice is rejected
	_, err = svc.Start(sim.ID)
	var tErr *simulation.TransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, simulation.StatusInProgress, tErr.From)

	// in_progress -> paused -> in_progress
	sim, err = svc.Pause(sim.ID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusPaused, sim.Status)

	sim, err = svc.Resume(sim.ID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusInProgress, sim.Status)
	assert.Equal(t, 4, sim.Version)

	// completed is terminal
	sim, err = svc.Complete(sim.ID, simulation.FinalResults{})
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusCompleted, sim.Status)

	_, err = svc.Resume(sim.ID)
	assert.ErrorAs(t, err, &tErr)
	_, err = svc.Pause(sim.ID)
	assert.ErrorAs(t, err, &tErr)
}

func Test_service_transitions_notFound(t *testing.T) {
	svc := setup(t)
	_, err := svc.Start("nope")
	assert.ErrorIs(t, err, simulation.ErrNotFound)
}

func Test_service_UpdateState(t *testing.T) {
	svc := setup(t)
	sim := startedSim(t, svc)

	sim, err := svc.UpdateState(sim.ID, simulation.StatePatch{
		Version:     sim.Version,
		Progress:    null.Float64From(40),
		CurrentStep: null.IntFrom(2),
		UserInputs:  map[string]string{"volume": "25ml"},
		Observations: []simulation.Observation{
			{Step: 1, Timestamp: time.Now().UTC(), Text: "solution turned pink"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 40.0, sim.Progress)
	assert.Equal(t, 2, sim.CurrentStep)
	assert.Equal(t, "25ml", sim.UserInputs["volume"])
	assert.Len(t, sim.Observations, 1)
	assert.Equal(t, 3, sim.Version)

	// progress never decreases, lower values are ignored
	sim, err = svc.UpdateState(sim.ID, simulation.StatePatch{Version: sim.Version, Progress: null.Float64From(10)})
	require.NoError(t, err)
	assert.Equal(t, 40.0, sim.Progress)

	// stale version is rejected
	_, err = svc.UpdateState(sim.ID, simulation.StatePatch{Version: 1, Progress: null.Float64From(50)})
	assert.ErrorIs(t, err, simulation.ErrVersionConflict)
}

func Test_service_UpdateState_statusChange(t *testing.T) {
	svc := setup(t)
	sim := startedSim(t, svc)

	paused := simulation.StatusPaused
	sim, err := svc.UpdateState(sim.ID, simulation.StatePatch{Version: sim.Version, Status: &paused})
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusPaused, sim.Status)

	// illegal status change through a patch is rejected too
	notStarted := simulation.StatusNotStarted
	_, err = svc.UpdateState(sim.ID, simulation.StatePatch{Version: sim.Version, Status: &notStarted})
	var tErr *simulation.TransitionError
	assert.ErrorAs(t, err, &tErr)
}

func Test_service_Complete(t *testing.T) {
	svc := setup(t)
	sim := startedSim(t, svc)

	sim, err := svc.Complete(sim.ID, simulation.FinalResults{
		Summary: "neutralized at 24.6ml",
		Score:   null.IntFrom(85),
		Inputs:  map[string]string{"final_volume": "24.6ml"},
	})
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusCompleted, sim.Status)
	assert.Equal(t, 100.0, sim.Progress)
	assert.Equal(t, 85, sim.Score)
	assert.False(t, sim.CompletedAt.IsZero())

	// completing twice surfaces a transition conflict
	_, err = svc.Complete(sim.ID, simulation.FinalResults{})
	var tErr *simulation.TransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, simulation.StatusCompleted, tErr.From)
}

func Test_service_Filter(t *testing.T) {
	svc := setup(t)
	sim1 := startedSim(t, svc)
	newSim(t, svc)

	res, err := svc.Filter(simulation.QueryFilter{Status: simulation.StatusInProgress})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, sim1.ID, res[0].ID)

	res, err = svc.Filter(simulation.QueryFilter{StudentID: "std-001"})
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func Test_service_Delete(t *testing.T) {
	svc := setup(t)
	sim := newSim(t, svc)

	require.NoError(t, svc.Delete(sim.ID))
	_, err := svc.GetByID(sim.ID)
	assert.ErrorIs(t, err, simulation.ErrNotFound)
}
