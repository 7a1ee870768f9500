// Package gamehost executes AI-generated game behavior inside an isolated Lua
// interpreter and relays score/completion signals over a narrow message
// channel. The interpreter gets the base, table, string and math libraries
// only; there is no io, os or network surface for the untrusted script to
// reach. This is a defense against unpredictable generated code, not against a
// deliberately malicious author.
package gamehost

import (
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/elimisha/maabara/core"
)

type MessageType string

// Message types relayed to the host page.
const (
	MessageScoreUpdate   MessageType = "SCORE_UPDATE"
	MessageGameCompleted MessageType = "GAME_COMPLETED"
)

type Message struct {
	Type  MessageType `json:"type"`
	Score int         `json:"score"`
	Text  string      `json:"message,omitempty"`
}

// completionKeywords drive the legacy alert() heuristic kept for generated
// scripts that never call complete_game directly.
var completionKeywords = []string{"complete", "win", "success", "congratulation"}

// Instruction budget for one behavior script. A generated script that spins
// past this is killed mid-run like any other script error.
const hookQuantum = 10_000

var instructionQuota = 50_000_000 // mockable

type Host struct {
	logger core.Logger
}

func NewHost(logger core.Logger) *Host {
	return &Host{logger: logger}
}

// Run executes the payload's behavior script and streams its messages. The
// channel is closed when the script returns or dies. A dying script emits no
// crash signal: the host goes silent, which callers cannot distinguish from
// "still working".
func (h *Host) Run(payload core.GamePayload) <-chan Message {
	msgs := make(chan Message, 64)
	go func() {
		defer close(msgs)
		h.execute(payload, msgs)
	}()
	return msgs
}

func (h *Host) execute(payload core.GamePayload, msgs chan<- Message) {
	if !payload.HasBehavior() {
		h.logger.Warn(fmt.Sprintf("game %q has no behavior script", payload.Title))
		return
	}

	state := lua.NewState()
	openSandboxLibraries(state)

	var (
		lastScore int
		completed bool
	)

	emit := func(msg Message) {
		if completed {
			return
		}
		msgs <- msg
		if msg.Type == MessageGameCompleted {
			completed = true
		}
	}

	// report_score(n): the script's only way to publish its running score.
	state.Register("report_score", func(l *lua.State) int {
		score := lua.CheckInteger(l, 1)
		if score < 0 {
			score = 0
		}
		lastScore = score
		emit(Message{Type: MessageScoreUpdate, Score: score})
		return 0
	})

	// complete_game(score?): the completion contract for well-behaved scripts.
	state.Register("complete_game", func(l *lua.State) int {
		score := lua.OptInteger(l, 1, lastScore)
		if score < 0 {
			score = 0
		}
		lastScore = score
		emit(Message{Type: MessageGameCompleted, Score: score, Text: "game completed"})
		return 0
	})

	// alert(text): legacy crutch. Generated scripts sometimes announce victory
	// through a blocking dialog; a keyword match reinterprets it as completion.
	state.Register("alert", func(l *lua.State) int {
		text := lua.CheckString(l, 1)
		if containsCompletionKeyword(text) {
			emit(Message{Type: MessageGameCompleted, Score: lastScore, Text: text})
		} else {
			h.logger.Debug(fmt.Sprintf("game alert: %s", text))
		}
		return 0
	})

	var executed int
	lua.SetDebugHook(state, func(l *lua.State, _ lua.Debug) {
		executed += hookQuantum
		if executed >= instructionQuota {
			lua.Errorf(l, "instruction quota exceeded")
		}
	}, lua.MaskCount, hookQuantum)

	if err := lua.DoString(state, payload.Behavior); err != nil {
		// no crash signal is propagated; the host just goes quiet
		h.logger.Warn(fmt.Sprintf("game %q script died: %v", payload.Title, err))
	}
}

// openSandboxLibraries loads the safe subset of the standard libraries.
func openSandboxLibraries(state *lua.State) {
	for _, lib := range []struct {
		name string
		open lua.Function
	}{
		{"_G", lua.BaseOpen},
		{"table", lua.TableOpen},
		{"string", lua.StringOpen},
		{"math", lua.MathOpen},
	} {
		lua.Require(state, lib.name, lib.open, true)
		state.Pop(1)
	}
}

func containsCompletionKeyword(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range completionKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// Relay forwards host messages to the given handlers until the channel closes.
func Relay(msgs <-chan Message, onScore func(score int), onComplete func(score int, message string)) {
	for msg := range msgs {
		switch msg.Type {
		case MessageScoreUpdate:
			if onScore != nil {
				onScore(msg.Score)
			}
		case MessageGameCompleted:
			if onComplete != nil {
				onComplete(msg.Score, msg.Text)
			}
		}
	}
}
