// Package aigensvc provides core.GameContentService implementations backed by
// hosted model providers, plus a deterministic dummy used as the fallback when
// generation fails or is unconfigured.
package aigensvc

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

const gamePrompt = `You are a science game designer for an e-learning platform.
Given the experiment description below, produce a small interactive mini-game.
Respond with a single JSON object and nothing else, with these keys:
"title", "description", "estimated_duration" (minutes, integer),
"learning_objectives" (array of strings), "markup" (HTML), "styling" (CSS)
and "behavior" (a Lua script; call report_score(n) as the player scores and
complete_game(n) when the game is won).

Experiment: `

const experimentPrompt = `You are a lab instructor for an e-learning platform.
Given the experiment description below, list what the student needs.
Respond with a single JSON object and nothing else, with these keys:
"equipment", "chemicals", "instructions" and "safety_notes",
each an array of strings.

Experiment: `

// unmarshalResponse decodes a model response into target, tolerating the
// markdown code fences models like to wrap JSON in.
func unmarshalResponse(raw string, target interface{}) error {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return errors.Wrap(err, "parsing generated content")
	}
	return nil
}
