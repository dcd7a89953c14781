package pipeline

import (
	"strings"

	"github.com/raphaelgruber/datacompass-go/internal/agent"
	"github.com/tmc/langchaingo/llms"
)

// maxHistoryTurns bounds the earlier turns replayed to the stages.
const maxHistoryTurns = 10

// Session is the conversation of one interactive run. Each turn sees the
// messages of earlier turns and the latest output of every stage. Turns on a
// Session must not run concurrently.
type Session struct {
	ID string
	// OnStageOutput is called as soon as a stage of a turn completes.
	OnStageOutput func(stage, output string)

	state   agent.State
	history []llms.MessageContent
}

// NewSession creates an empty session.
func NewSession(id string) *Session {
	return &Session{ID: id, state: agent.State{}}
}

// State returns a copy of the latest stage outputs.
func (s *Session) State() agent.State {
	out := make(agent.State, len(s.state))
	for k, v := range s.state {
		out[k] = v
	}
	return out
}

// History returns the human and AI messages of earlier turns, oldest first.
func (s *Session) History() []llms.MessageContent {
	return append([]llms.MessageContent(nil), s.history...)
}

// Turns returns the number of turns kept in the history.
func (s *Session) Turns() int { return len(s.history) / 2 }

// record stores a finished turn. A turn without any stage output leaves the
// session unchanged so human and AI messages keep alternating.
func (s *Session) record(message string, res *Result) {
	var outputs []string
	for _, out := range []string{res.Analysis, res.Benchmark} {
		if strings.TrimSpace(out) != "" {
			outputs = append(outputs, out)
		}
	}
	if len(outputs) == 0 {
		return
	}

	for k, v := range res.State {
		s.state[k] = v
	}
	s.history = append(s.history,
		llms.TextParts(llms.ChatMessageTypeHuman, message),
		llms.TextParts(llms.ChatMessageTypeAI, strings.Join(outputs, "\n\n")),
	)
	if extra := len(s.history) - 2*maxHistoryTurns; extra > 0 {
		s.history = append([]llms.MessageContent(nil), s.history[extra:]...)
	}
}
