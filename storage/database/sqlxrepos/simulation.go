package sqlxrepos

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/elimisha/maabara/core/simulation"
)

type simulationRepository struct {
	db *sqlx.DB
}

var _ simulation.Repository = (*simulationRepository)(nil) // interface compliance check

func NewSimulationRepository(db *sqlx.DB) simulation.Repository {
	return &simulationRepository{db: db}
}

// dbSimulation mirrors the simulation table row.
type dbSimulation struct {
	ID                string       `db:"id"`
	StudentID         string       `db:"student_id"`
	Prompt            string       `db:"prompt"`
	Subject           string       `db:"subject"`
	Level             string       `db:"level"`
	Gamified          bool         `db:"gamified"`
	Status            string       `db:"status"`
	Progress          float64      `db:"progress"`
	CurrentStep       int          `db:"current_step"`
	TotalSteps        int          `db:"total_steps"`
	UserInputs        []byte       `db:"user_inputs"`
	Observations      []byte       `db:"observations"`
	Score             int          `db:"score"`
	Version           int          `db:"version"`
	PreferredDuration int          `db:"preferred_duration"`
	StartedAt         sql.NullTime `db:"started_at"`
	CompletedAt       sql.NullTime `db:"completed_at"`
	LastActiveAt      sql.NullTime `db:"last_active_at"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

func toRow(sim simulation.Simulation) (dbSimulation, error) {
	inputs, err := json.Marshal(sim.UserInputs)
	if err != nil {
		return dbSimulation{}, errors.Wrap(err, "marshaling user inputs")
	}
	obs, err := json.Marshal(sim.Observations)
	if err != nil {
		return dbSimulation{}, errors.Wrap(err, "marshaling observations")
	}
	return dbSimulation{
		ID:                sim.ID,
		StudentID:         sim.StudentID,
		Prompt:            sim.Prompt,
		Subject:           sim.Subject,
		Level:             sim.Level,
		Gamified:          sim.Gamified,
		Status:            string(sim.Status),
		Progress:          sim.Progress,
		CurrentStep:       sim.CurrentStep,
		TotalSteps:        sim.TotalSteps,
		UserInputs:        inputs,
		Observations:      obs,
		Score:             sim.Score,
		Version:           sim.Version,
		PreferredDuration: sim.PreferredDuration,
		StartedAt:         asNullTime(sim.StartedAt),
		CompletedAt:       asNullTime(sim.CompletedAt),
		LastActiveAt:      asNullTime(sim.LastActiveAt),
		CreatedAt:         sim.CreatedAt,
		UpdatedAt:         sim.UpdatedAt,
	}, nil
}

func (row dbSimulation) toSimulation() (simulation.Simulation, error) {
	sim := simulation.Simulation{
		ID:                row.ID,
		StudentID:         row.StudentID,
		Prompt:            row.Prompt,
		Subject:           row.Subject,
		Level:             row.Level,
		Gamified:          row.Gamified,
		Status:            simulation.Status(row.Status),
		Progress:          row.Progress,
		CurrentStep:       row.CurrentStep,
		TotalSteps:        row.TotalSteps,
		Score:             row.Score,
		Version:           row.Version,
		PreferredDuration: row.PreferredDuration,
		StartedAt:         fromNullTime(row.StartedAt),
		CompletedAt:       fromNullTime(row.CompletedAt),
		LastActiveAt:      fromNullTime(row.LastActiveAt),
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
	}
	if len(row.UserInputs) > 0 {
		if err := json.Unmarshal(row.UserInputs, &sim.UserInputs); err != nil {
			return simulation.Simulation{}, errors.Wrap(err, "unmarshaling user inputs")
		}
	}
	if len(row.Observations) > 0 {
		if err := json.Unmarshal(row.Observations, &sim.Observations); err != nil {
			return simulation.Simulation{}, errors.Wrap(err, "unmarshaling observations")
		}
	}
	return sim, nil
}

func asNullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

const simulationColumns = `id, student_id, prompt, subject, level, gamified, status, progress,
current_step, total_steps, user_inputs, observations, score, version,
preferred_duration, started_at, completed_at, last_active_at, created_at, updated_at`

func (repo *simulationRepository) CreateSimulation(sim simulation.Simulation) (simulation.Simulation, error) {
	row, err := toRow(sim)
	if err != nil {
		return simulation.Simulation{}, err
	}
	_, err = repo.db.NamedExec(`
		INSERT INTO simulation (`+simulationColumns+`)
		VALUES (:id, :student_id, :prompt, :subject, :level, :gamified, :status, :progress,
		        :current_step, :total_steps, :user_inputs, :observations, :score, :version,
		        :preferred_duration, :started_at, :completed_at, :last_active_at, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return simulation.Simulation{}, errors.Wrap(err, "inserting simulation")
	}
	return sim, nil
}

func (repo *simulationRepository) GetSimulationByID(id string) (simulation.Simulation, error) {
	var row dbSimulation
	err := repo.db.Get(&row, `SELECT `+simulationColumns+` FROM simulation WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return simulation.Simulation{}, simulation.ErrNotFound
	}
	if err != nil {
		return simulation.Simulation{}, errors.Wrap(err, "querying simulation")
	}
	return row.toSimulation()
}

func (repo *simulationRepository) FilterSimulations(filter simulation.QueryFilter) ([]simulation.Simulation, error) {
	var (
		conds []string
		args  []interface{}
	)
	addCond := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.StudentID != "" {
		addCond("student_id = $%d", filter.StudentID)
	}
	if filter.Status != "" {
		addCond("status = $%d", string(filter.Status))
	}
	if filter.Subject != "" {
		addCond("subject = $%d", filter.Subject)
	}
	if filter.Gamified != nil {
		addCond("gamified = $%d", *filter.Gamified)
	}
	if !filter.CreatedFrom.IsZero() {
		addCond("created_at >= $%d", filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		addCond("created_at <= $%d", filter.CreatedTo.UTC())
	}

	query := `SELECT ` + simulationColumns + ` FROM simulation`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at`

	var rows []dbSimulation
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering simulations")
	}

	sims := make([]simulation.Simulation, 0, len(rows))
	for _, row := range rows {
		sim, err := row.toSimulation()
		if err != nil {
			return nil, err
		}
		sims = append(sims, sim)
	}
	return sims, nil
}

func (repo *simulationRepository) UpdateSimulation(sim simulation.Simulation) (simulation.Simulation, error) {
	row, err := toRow(sim)
	if err != nil {
		return simulation.Simulation{}, err
	}

	res, err := repo.db.Exec(`
		UPDATE simulation
		SET status = $1, progress = $2, current_step = $3, user_inputs = $4,
		    observations = $5, score = $6, version = $7, started_at = $8,
		    completed_at = $9, last_active_at = $10, updated_at = $11
		WHERE id = $12 AND version = $13`,
		row.Status, row.Progress, row.CurrentStep, row.UserInputs,
		row.Observations, row.Score, row.Version, row.StartedAt,
		row.CompletedAt, row.LastActiveAt, row.UpdatedAt,
		row.ID, sim.Version-1,
	)
	if err != nil {
		return simulation.Simulation{}, errors.Wrap(err, "updating simulation")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return simulation.Simulation{}, errors.Wrap(err, "updating simulation")
	}
	if affected == 0 {
		// stale version or missing row; look it up to tell which
		if _, err := repo.GetSimulationByID(sim.ID); err != nil {
			return simulation.Simulation{}, err
		}
		return simulation.Simulation{}, simulation.ErrVersionConflict
	}
	return sim, nil
}

func (repo *simulationRepository) DeleteSimulationsByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM simulation WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err := repo.db.Exec(repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting simulations")
	}
	return nil
}
