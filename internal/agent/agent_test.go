package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/raphaelgruber/datacompass-go/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel replays responses in order and records every request.
type scriptedModel struct {
	responses []*llms.ContentResponse
	err       error
	calls     [][]llms.MessageContent
}

func (m *scriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls = append(m.calls, append([]llms.MessageContent(nil), messages...))
	if m.err != nil {
		return nil, m.err
	}
	if len(m.calls) > len(m.responses) {
		return m.responses[len(m.responses)-1], nil
	}
	return m.responses[len(m.calls)-1], nil
}

type echoTool struct {
	calls []string
	err   error
}

func (t *echoTool) Name() string               { return "echo" }
func (t *echoTool) Description() string        { return "echoes its arguments" }
func (t *echoTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (t *echoTool) Call(_ context.Context, args string) (string, error) {
	t.calls = append(t.calls, args)
	if t.err != nil {
		return "", t.err
	}
	return `{"echo":` + args + `}`, nil
}

func text(s string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s}}}
}

func toolCall(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:           id,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
		}},
	}}}
}

func lastToolResponse(t *testing.T, messages []llms.MessageContent) llms.ToolCallResponse {
	t.Helper()
	last := messages[len(messages)-1]
	require.Equal(t, llms.ChatMessageTypeTool, last.Role)
	require.Len(t, last.Parts, 1)
	resp, ok := last.Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	return resp
}

func TestRunWithoutTools(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{text("hello")}}
	a := New(model, Config{Name: "greeter", Instruction: "be nice"})

	out, err := a.Run(context.Background(), nil, nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	require.Len(t, model.calls, 1)
	msgs := model.calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.TextContent{Text: "be nice"}, msgs[0].Parts[0])
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
}

func TestRunToolRoundTrip(t *testing.T) {
	tool := &echoTool{}
	mc := metrics.NewCollector()
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCall("call-1", "echo", `{"x":1}`),
		text("done"),
	}}
	a := New(model, Config{Name: "a", Tools: []Tool{tool}, Metrics: mc})

	out, err := a.Run(context.Background(), nil, nil, "go")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, []string{`{"x":1}`}, tool.calls)

	require.Len(t, model.calls, 2)
	second := model.calls[1]
	// system, human, assistant tool call, tool response
	require.Len(t, second, 4)
	assert.Equal(t, llms.ChatMessageTypeAI, second[2].Role)

	resp := lastToolResponse(t, second)
	assert.Equal(t, "call-1", resp.ToolCallID)
	assert.Equal(t, "echo", resp.Name)
	assert.Equal(t, `{"echo":{"x":1}}`, resp.Content)

	snap := mc.Snapshot()
	require.NotNil(t, snap.ToolCall)
	assert.Equal(t, int64(1), snap.ToolCall.Count)
}

func TestRunReportsToolProblemsToModel(t *testing.T) {
	tests := []struct {
		name    string
		call    *llms.ContentResponse
		toolErr error
		wantMsg string
	}{
		{
			name:    "unknown tool",
			call:    toolCall("c1", "missing", `{}`),
			wantMsg: `unknown tool "missing"`,
		},
		{
			name:    "tool error",
			call:    toolCall("c1", "echo", `not json`),
			toolErr: errors.New("invalid arguments"),
			wantMsg: "invalid arguments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &scriptedModel{responses: []*llms.ContentResponse{tt.call, text("recovered")}}
			a := New(model, Config{Name: "a", Tools: []Tool{&echoTool{err: tt.toolErr}}})

			out, err := a.Run(context.Background(), nil, nil, "go")
			require.NoError(t, err)
			assert.Equal(t, "recovered", out)

			var result map[string]string
			require.NoError(t, json.Unmarshal([]byte(lastToolResponse(t, model.calls[1]).Content), &result))
			assert.Equal(t, "error", result["status"])
			assert.Equal(t, tt.wantMsg, result["message"])
		})
	}
}

func TestRunMaxIterations(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{toolCall("c", "echo", `{}`)}}
	a := New(model, Config{Name: "loop", Tools: []Tool{&echoTool{}}, MaxIterations: 3})

	_, err := a.Run(context.Background(), nil, nil, "go")
	require.ErrorIs(t, err, ErrMaxIterations)
	assert.Len(t, model.calls, 3)
}

func TestRunModelErrors(t *testing.T) {
	boom := errors.New("boom")
	a := New(&scriptedModel{err: boom}, Config{Name: "a"})
	_, err := a.Run(context.Background(), nil, nil, "go")
	require.ErrorIs(t, err, boom)

	empty := New(&scriptedModel{responses: []*llms.ContentResponse{{}}}, Config{Name: "a"})
	_, err = empty.Run(context.Background(), nil, nil, "go")
	require.ErrorIs(t, err, ErrNoChoices)
}

func TestRunCancelledDuringTool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &scriptedModel{responses: []*llms.ContentResponse{toolCall("c", "echo", `{}`), text("unreachable")}}
	a := New(model, Config{Name: "a", Tools: []Tool{&echoTool{err: errors.New("aborted")}}})

	_, err := a.Run(ctx, nil, nil, "go")
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, model.calls, 1)
}

func TestSystemPromptIncludesContext(t *testing.T) {
	a := New(&scriptedModel{}, Config{Name: "b", Instruction: "report", OutputKey: "benchmark_report"})

	prompt := a.systemPrompt(State{
		"company_analysis": "analysis text",
		"benchmark_report": "stale",
	})
	assert.Contains(t, prompt, "report")
	assert.Contains(t, prompt, "[company_analysis]\nanalysis text")
	assert.NotContains(t, prompt, "stale")

	assert.Equal(t, "report", a.systemPrompt(State{}))
}

func TestSystemPromptIncludesIdentity(t *testing.T) {
	a := New(&scriptedModel{}, Config{Name: "analyst", Description: "Analyzes companies.", Instruction: "report"})

	prompt := a.systemPrompt(nil)
	assert.Equal(t, "You are an agent. Your internal name is \"analyst\". The description about you is \"Analyzes companies.\".\n\nreport", prompt)
}

func TestRunReplaysHistory(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{text("follow-up answer")}}
	a := New(model, Config{Name: "a", Instruction: "be brief"})

	history := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "analyze TechCorp"),
		llms.TextParts(llms.ChatMessageTypeAI, "TechCorp is a SaaS startup"),
	}
	out, err := a.Run(context.Background(), nil, history, "compare that with fintech peers")
	require.NoError(t, err)
	assert.Equal(t, "follow-up answer", out)

	msgs := model.calls[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, history[0], msgs[1])
	assert.Equal(t, history[1], msgs[2])
	assert.Equal(t, llms.TextParts(llms.ChatMessageTypeHuman, "compare that with fintech peers"), msgs[3])
}
