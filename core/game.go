package core

import "context"

type (
	// GamePayload is the bundle of generated markup/styling/behavior plus metadata
	// returned by a GameContentService. The markup and styling blobs are rendered
	// verbatim by the frontend; the behavior blob is a Lua script executed by the
	// sandboxed game host. No invariant is enforced on the blobs here; malformed
	// content is the sandbox's problem.
	GamePayload struct {
		Title              string   `json:"title"`
		Description        string   `json:"description"`
		EstimatedDuration  int      `json:"estimated_duration"` // minutes
		LearningObjectives []string `json:"learning_objectives"`
		Markup             string   `json:"markup"`
		Styling            string   `json:"styling"`
		Behavior           string   `json:"behavior"`
	}

	// ExperimentContent is the pre-flight material generated for a lab experiment.
	ExperimentContent struct {
		Equipment    []string `json:"equipment"`
		Chemicals    []string `json:"chemicals"`
		Instructions []string `json:"instructions"`
		SafetyNotes  []string `json:"safety_notes"`
	}

	// GameContentService is any service that can generate interactive lab content
	// from an experiment prompt.
	GameContentService interface {
		GenerateGame(ctx context.Context, prompt string) (GamePayload, error)
		GenerateExperimentContent(ctx context.Context, prompt string) (ExperimentContent, error)
	}
)

// FallbackGamePayload returns the static payload substituted when content
// generation fails or is unconfigured. Deterministic on purpose.
func FallbackGamePayload() GamePayload {
	return GamePayload{
		Title:             "Acid-Base Titration Challenge",
		Description:       "Neutralize the unknown acid by adding base one increment at a time.",
		EstimatedDuration: 15,
		LearningObjectives: []string{
			"Identify the equivalence point of a titration",
			"Relate indicator color change to pH",
		},
		Markup: `<div id="lab"><div id="burette"></div><div id="flask"></div><button id="add">Add 1 mL</button></div>`,
		Styling: `#lab { display: flex; } #flask { background: #f3c; border-radius: 0 0 50% 50%; }`,
		Behavior: `local added = 0
local target = 25
while added < target do
  added = added + 1
  report_score(added * 4)
end
complete_game(100)
`,
	}
}

// FallbackExperimentContent returns the static pre-flight material substituted
// when content generation fails or is unconfigured.
func FallbackExperimentContent() ExperimentContent {
	return ExperimentContent{
		Equipment: []string{
			"250 mL Erlenmeyer flask",
			"50 mL burette with stand",
			"10 mL volumetric pipette",
			"Safety goggles",
		},
		Chemicals: []string{
			"0.1 M sodium hydroxide solution",
			"Unknown acid sample",
			"Phenolphthalein indicator",
			"Distilled water",
		},
		Instructions: []string{
			"Rinse and fill the burette with the standard base solution.",
			"Pipette the acid sample into the flask and add two drops of indicator.",
			"Add base slowly while swirling until a faint pink color persists.",
			"Record the burette readings and compute the concentration.",
		},
		SafetyNotes: []string{
			"Wear goggles at all times.",
			"Rinse spills with plenty of water.",
		},
	}
}

func (p *GamePayload) HasBehavior() bool { return p.Behavior != "" }
func (p *GamePayload) HasMarkup() bool   { return p.Markup != "" }

func (c *ExperimentContent) IsEmpty() bool {
	return len(c.Equipment) == 0 && len(c.Chemicals) == 0 && len(c.Instructions) == 0
}
