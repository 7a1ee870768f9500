package simulation

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/elimisha/maabara/core"
)

// Statuses. A Simulation is in exactly one at a time; moves between them go
// through the transition table below.
const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
)

// Levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

var (
	AllStatuses = []Status{StatusNotStarted, StatusInProgress, StatusPaused, StatusCompleted}
	AllLevels   = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}

	// transitions are one-directional except in_progress <-> paused.
	transitions = map[Status][]Status{
		StatusNotStarted: {StatusInProgress},
		StatusInProgress: {StatusPaused, StatusCompleted},
		StatusPaused:     {StatusInProgress, StatusCompleted},
		StatusCompleted:  {},
	}
)

type Status string

func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanTransition reports whether moving from s to `to` is a legal status change.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether the simulation may still be worked on.
func (s Status) IsActive() bool {
	return s == StatusInProgress || s == StatusPaused
}

// Observation is one append-only record of what the student saw at a step.
type Observation struct {
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"` // UTC
	Text      string    `json:"text"`
}

type Simulation struct {
	ID                string            `json:"id"`
	StudentID         string            `json:"student_id"`
	Prompt            string            `json:"prompt"`
	Subject           string            `json:"subject"`
	Level             string            `json:"level"`
	Gamified          bool              `json:"gamified"`
	Status            Status            `json:"status"`
	Progress          float64           `json:"progress"` // 0-100, never decreases
	CurrentStep       int               `json:"current_step"`
	TotalSteps        int               `json:"total_steps"`
	UserInputs        map[string]string `json:"user_inputs"`
	Observations      []Observation     `json:"observations"`
	Score             int               `json:"score"`
	Version           int               `json:"version"` // optimistic concurrency token
	PreferredDuration int               `json:"preferred_duration"` // minutes
	StartedAt         time.Time         `json:"started_at"`    // UTC; zero until started
	CompletedAt       time.Time         `json:"completed_at"`  // UTC; zero until completed
	LastActiveAt      time.Time         `json:"last_active_at"` // UTC
	CreatedAt         time.Time         `json:"created_at"`    // UTC
	UpdatedAt         time.Time         `json:"updated_at"`    // UTC
}

func (s *Simulation) IsCompleted() bool { return s.Status == StatusCompleted }

// MergeInputs folds the given inputs into UserInputs. Inputs accumulate; keys
// are never pruned during a session.
func (s *Simulation) MergeInputs(inputs map[string]string) {
	if len(inputs) == 0 {
		return
	}
	if s.UserInputs == nil {
		s.UserInputs = make(map[string]string, len(inputs))
	}
	for k, v := range inputs {
		s.UserInputs[k] = v
	}
}

// NewSimulation contains information needed to create a new Simulation.
type NewSimulation struct {
	StudentID         string `json:"student_id" validate:"required"`
	Prompt            string `json:"prompt" validate:"required,min=10,max=500"`
	Level             string `json:"level" validate:"required,explevel"`
	Subject           string `json:"subject"`
	Gamified          bool   `json:"gamified"`
	TotalSteps        int    `json:"total_steps" validate:"omitempty,min=1,max=50"`
	PreferredDuration int    `json:"preferred_duration" validate:"omitempty,min=5,max=120"`
}

func (ns *NewSimulation) Validate() error {
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.Prompt = core.CleanString(ns.Prompt)
	ns.Level = core.CleanString(ns.Level, true /* lower */)
	ns.Subject = core.CleanString(ns.Subject, true /* lower */)
	return core.Validate.Struct(ns)
}

// StatePatch defines a partial update to a Simulation's state. Unset fields are
// left untouched. Version must match the server's current version or the patch
// is rejected.
type StatePatch struct {
	Version      int           `json:"version" validate:"min=1"`
	Status       *Status       `json:"status"`
	Progress     null.Float64  `json:"progress"`
	CurrentStep  null.Int      `json:"current_step"`
	Score        null.Int      `json:"score"`
	UserInputs   map[string]string `json:"user_inputs"`
	Observations []Observation `json:"observations"` // appended, not replaced
}

func (p *StatePatch) IsEmpty() bool {
	return p.Status == nil &&
		!p.Progress.Valid &&
		!p.CurrentStep.Valid &&
		!p.Score.Valid &&
		len(p.UserInputs) == 0 &&
		len(p.Observations) == 0
}

func (p *StatePatch) Validate() error {
	if err := core.Validate.Struct(p); err != nil {
		return err
	}
	if p.Status != nil && !p.Status.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "unknown status"})
	}
	if p.Progress.Valid && (p.Progress.Float64 < 0 || p.Progress.Float64 > 100) {
		return core.NewValidationError(nil, core.FieldError{Field: "progress", Error: "progress must be between 0 and 100"})
	}
	return nil
}

// FinalResults is the consolidated outcome sent on completion.
type FinalResults struct {
	Summary      string            `json:"summary"`
	Score        null.Int          `json:"score"`
	Inputs       map[string]string `json:"inputs"`
	Observations []Observation     `json:"observations"`
}

// QueryFilter applies AND operation on available fields.
type QueryFilter struct {
	StudentID   string
	Status      Status
	Subject     string
	Gamified    *bool
	CreatedFrom time.Time
	CreatedTo   time.Time
}
