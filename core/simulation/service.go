package simulation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/elimisha/maabara/core"
)

var (
	// errors
	ErrNotFound        = errors.New("simulation not found")
	ErrVersionConflict = errors.New("simulation was modified concurrently")

	NowFunc = func() time.Time { return time.Now().UTC() } // mockable
)

// TransitionError indicates a status change the transition table forbids.
type TransitionError struct {
	From Status
	To   Status
}

func (err *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", err.From, err.To)
}

type (
	Repository interface {
		CreateSimulation(sim Simulation) (Simulation, error)
		GetSimulationByID(id string) (Simulation, error)
		// FilterSimulations applies AND operation on available QueryFilter fields.
		FilterSimulations(filter QueryFilter) ([]Simulation, error)
		// UpdateSimulation persists sim, guarded by its previous version:
		// the stored row must still be at sim.Version-1 or ErrVersionConflict
		// is returned.
		UpdateSimulation(sim Simulation) (Simulation, error)
		DeleteSimulationsByID(ids ...string) error
	}

	Service interface {
		Create(ns NewSimulation) (Simulation, error)
		GetByID(id string) (Simulation, error)
		Filter(filter QueryFilter) ([]Simulation, error)
		Start(id string) (Simulation, error)
		Pause(id string) (Simulation, error)
		Resume(id string) (Simulation, error)
		UpdateState(id string, patch StatePatch) (Simulation, error)
		Complete(id string, res FinalResults) (Simulation, error)
		Delete(ids ...string) error
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (svc *service) Create(ns NewSimulation) (Simulation, error) {
	if err := ns.Validate(); err != nil {
		return Simulation{}, err
	}
	now := NowFunc()
	totalSteps := ns.TotalSteps
	if totalSteps == 0 {
		totalSteps = 5
	}
	sim := Simulation{
		ID:                uuid.NewString(),
		StudentID:         ns.StudentID,
		Prompt:            ns.Prompt,
		Subject:           ns.Subject,
		Level:             ns.Level,
		Gamified:          ns.Gamified,
		Status:            StatusNotStarted,
		TotalSteps:        totalSteps,
		UserInputs:        make(map[string]string),
		Version:           1,
		PreferredDuration: ns.PreferredDuration,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return svc.repo.CreateSimulation(sim)
}

func (svc *service) GetByID(id string) (Simulation, error) {
	return svc.repo.GetSimulationByID(id)
}

func (svc *service) Filter(filter QueryFilter) ([]Simulation, error) {
	return svc.repo.FilterSimulations(filter)
}

func (svc *service) Start(id string) (Simulation, error) {
	return svc.transition(id, StatusInProgress, func(sim *Simulation) {
		now := NowFunc()
		sim.StartedAt = now
		sim.LastActiveAt = now
	})
}

func (svc *service) Pause(id string) (Simulation, error) {
	return svc.transition(id, StatusPaused, nil)
}

func (svc *service) Resume(id string) (Simulation, error) {
	return svc.transition(id, StatusInProgress, func(sim *Simulation) {
		sim.LastActiveAt = NowFunc()
	})
}

// transition moves the simulation to `to` if the transition table allows it,
// applying `mutate` on success before persisting.
func (svc *service) transition(id string, to Status, mutate func(*Simulation)) (Simulation, error) {
	sim, err := svc.repo.GetSimulationByID(id)
	if err != nil {
		return Simulation{}, err
	}
	if !sim.Status.CanTransition(to) {
		return Simulation{}, &TransitionError{From: sim.Status, To: to}
	}
	sim.Status = to
	if mutate != nil {
		mutate(&sim)
	}
	sim.UpdatedAt = NowFunc()
	sim.Version++
	return svc.repo.UpdateSimulation(sim)
}

func (svc *service) UpdateState(id string, patch StatePatch) (Simulation, error) {
	if err := patch.Validate(); err != nil {
		return Simulation{}, err
	}
	sim, err := svc.repo.GetSimulationByID(id)
	if err != nil {
		return Simulation{}, err
	}
	if patch.Version != sim.Version {
		return Simulation{}, ErrVersionConflict
	}

	if patch.Status != nil && *patch.Status != sim.Status {
		if !sim.Status.CanTransition(*patch.Status) {
			return Simulation{}, &TransitionError{From: sim.Status, To: *patch.Status}
		}
		sim.Status = *patch.Status
	}
	if patch.Progress.Valid && patch.Progress.Float64 > sim.Progress {
		// progress is monotonically non-decreasing
		sim.Progress = core.ClampPercent(patch.Progress.Float64)
	}
	if patch.CurrentStep.Valid && patch.CurrentStep.Int > sim.CurrentStep {
		sim.CurrentStep = patch.CurrentStep.Int
	}
	if patch.Score.Valid && patch.Score.Int > sim.Score {
		sim.Score = patch.Score.Int
	}
	sim.MergeInputs(patch.UserInputs)
	sim.Observations = append(sim.Observations, patch.Observations...)

	now := NowFunc()
	sim.LastActiveAt = now
	sim.UpdatedAt = now
	sim.Version++
	return svc.repo.UpdateSimulation(sim)
}

func (svc *service) Complete(id string, res FinalResults) (Simulation, error) {
	sim, err := svc.repo.GetSimulationByID(id)
	if err != nil {
		return Simulation{}, err
	}
	if !sim.Status.IsActive() {
		return Simulation{}, &TransitionError{From: sim.Status, To: StatusCompleted}
	}

	sim.MergeInputs(res.Inputs)
	sim.Observations = append(sim.Observations, res.Observations...)
	if res.Score.Valid && res.Score.Int > sim.Score {
		sim.Score = res.Score.Int
	}

	now := NowFunc()
	sim.Status = StatusCompleted
	sim.Progress = 100
	sim.CompletedAt = now
	sim.LastActiveAt = now
	sim.UpdatedAt = now
	sim.Version++
	return svc.repo.UpdateSimulation(sim)
}

func (svc *service) Delete(ids ...string) error {
	return svc.repo.DeleteSimulationsByID(ids...)
}
