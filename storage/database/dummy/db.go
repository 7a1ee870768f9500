package dummydb

import (
	"sync"

	"github.com/elimisha/maabara/core/simulation"
)

type (
	DB struct {
		simulation *simulationTable
	}

	simulationTable struct {
		sync.RWMutex
		table map[string]*simulation.Simulation
	}
)

func Open() (*DB, error) {
	db := &DB{
		simulation: &simulationTable{table: make(map[string]*simulation.Simulation)},
	}
	return db, nil
}
