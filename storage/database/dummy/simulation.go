package dummydb

import (
	"sort"

	"github.com/elimisha/maabara/core/simulation"
)

type simulationRepository struct {
	db *simulationTable
}

var _ simulation.Repository = (*simulationRepository)(nil) // interface compliance check

func NewSimulationRepository(db *DB) simulation.Repository {
	return &simulationRepository{db: db.simulation}
}

func (repo *simulationRepository) query() []simulation.Simulation {
	sims := make([]simulation.Simulation, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		sims = append(sims, *s)
	}
	sort.Slice(sims, func(i, j int) bool { return sims[i].CreatedAt.Before(sims[j].CreatedAt) })
	return sims
}

func (repo *simulationRepository) CreateSimulation(sim simulation.Simulation) (simulation.Simulation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[sim.ID] = &sim
	return sim, nil
}

func (repo *simulationRepository) GetSimulationByID(id string) (simulation.Simulation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sim, ok := repo.db.table[id]; ok {
		return *sim, nil
	}
	return simulation.Simulation{}, simulation.ErrNotFound
}

func (repo *simulationRepository) FilterSimulations(filter simulation.QueryFilter) ([]simulation.Simulation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sims := repo.query()

	if filter.StudentID != "" {
		var filtered []simulation.Simulation
		for _, s := range sims {
			if s.StudentID == filter.StudentID {
				filtered = append(filtered, s)
			}
		}
		sims = filtered
	}
	if sims != nil && filter.Status != "" {
		var filtered []simulation.Simulation
		for _, s := range sims {
			if s.Status == filter.Status {
				filtered = append(filtered, s)
			}
		}
		sims = filtered
	}
	if sims != nil && filter.Subject != "" {
		var filtered []simulation.Simulation
		for _, s := range sims {
			if s.Subject == filter.Subject {
				filtered = append(filtered, s)
			}
		}
		sims = filtered
	}
	if sims != nil && filter.Gamified != nil {
		var filtered []simulation.Simulation
		for _, s := range sims {
			if s.Gamified == *filter.Gamified {
				filtered = append(filtered, s)
			}
		}
		sims = filtered
	}
	if sims != nil && !filter.CreatedFrom.IsZero() {
		var filtered []simulation.Simulation
		from := filter.CreatedFrom.UTC()
		for _, s := range sims {
			if !s.CreatedAt.Before(from) {
				filtered = append(filtered, s)
			}
		}
		sims = filtered
	}
	if sims != nil && !filter.CreatedTo.IsZero() {
		var filtered []simulation.Simulation
		to := filter.CreatedTo.UTC()
		for _, s := range sims {
			if !s.CreatedAt.After(to) {
				filtered = append(filtered, s)
			}
		}
		sims = filtered
	}
	return sims, nil
}

func (repo *simulationRepository) UpdateSimulation(sim simulation.Simulation) (simulation.Simulation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[sim.ID]
	if !ok {
		return simulation.Simulation{}, simulation.ErrNotFound
	}
	if stored.Version != sim.Version-1 {
		return simulation.Simulation{}, simulation.ErrVersionConflict
	}
	repo.db.table[sim.ID] = &sim
	return sim, nil
}

func (repo *simulationRepository) DeleteSimulationsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
