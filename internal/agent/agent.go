// Package agent runs a single LLM agent turn with synchronous tool calling.
//
// An Agent sends its instruction, the read-only context slots of the current
// State, the earlier turns of the session and the user message to the model. While the model answers with tool
// calls, each tool runs synchronously and its verbatim result is appended to
// the conversation. The first answer without tool calls is the agent output.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/raphaelgruber/datacompass-go/internal/metrics"
	"github.com/tmc/langchaingo/llms"
)

// DefaultMaxIterations bounds model round trips per turn.
const DefaultMaxIterations = 8

var (
	// ErrMaxIterations is returned when the model keeps requesting tools.
	ErrMaxIterations = errors.New("max tool iterations reached")

	// ErrNoChoices is returned when the model response has no choices.
	ErrNoChoices = errors.New("model returned no choices")
)

// Generator is the chat model an Agent talks to.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Tool is a synchronous function exposed to the model.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the tool arguments.
	Parameters() map[string]any
	// Call runs the tool with the raw JSON arguments produced by the model.
	Call(ctx context.Context, args string) (string, error)
}

// State holds named outputs of earlier agents. Agents read it as context and
// never modify it.
type State map[string]string

// Config describes an agent.
type Config struct {
	Name          string
	Description   string
	Instruction   string
	OutputKey     string
	Tools         []Tool
	MaxIterations int
	Metrics       *metrics.Collector
	Logger        *slog.Logger
}

// Agent is an instruction-driven model wrapper with tools.
type Agent struct {
	cfg      Config
	model    Generator
	tools    map[string]Tool
	toolDefs []llms.Tool
	logger   *slog.Logger
}

// New creates an agent backed by model.
func New(model Generator, cfg Config) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &Agent{
		cfg:    cfg,
		model:  model,
		tools:  make(map[string]Tool, len(cfg.Tools)),
		logger: logger.With("agent", cfg.Name),
	}
	for _, t := range cfg.Tools {
		a.tools[t.Name()] = t
		a.toolDefs = append(a.toolDefs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return a
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.cfg.Name }

// OutputKey returns the state slot the agent output is stored under.
func (a *Agent) OutputKey() string { return a.cfg.OutputKey }

// Run executes one turn and returns the final model text. history holds the
// human and AI messages of earlier turns, oldest first.
func (a *Agent) Run(ctx context.Context, state State, history []llms.MessageContent, message string) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, a.systemPrompt(state)))
	messages = append(messages, history...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, message))

	var opts []llms.CallOption
	if len(a.toolDefs) > 0 {
		opts = append(opts, llms.WithTools(a.toolDefs))
	}

	for i := 0; i < a.cfg.MaxIterations; i++ {
		resp, err := a.model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return "", fmt.Errorf("%s: %w", a.cfg.Name, err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return "", fmt.Errorf("%s: %w", a.cfg.Name, ErrNoChoices)
		}

		choice := resp.Choices[0]
		if len(choice.ToolCalls) == 0 {
			a.logger.Debug("agent answered", "iterations", i+1, "chars", len(choice.Content))
			return choice.Content, nil
		}

		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if choice.Content != "" {
			assistant.Parts = append(assistant.Parts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistant.Parts = append(assistant.Parts, tc)
		}
		messages = append(messages, assistant)

		for _, tc := range choice.ToolCalls {
			result, err := a.callTool(ctx, tc)
			if err != nil {
				return "", fmt.Errorf("%s: %w", a.cfg.Name, err)
			}
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       toolName(tc),
					Content:    result,
				}},
			})
		}
	}

	return "", fmt.Errorf("%s: %w (%d)", a.cfg.Name, ErrMaxIterations, a.cfg.MaxIterations)
}

// callTool runs one tool call. Tool failures become error results the model
// can react to; only context cancellation aborts the turn.
func (a *Agent) callTool(ctx context.Context, tc llms.ToolCall) (string, error) {
	name := toolName(tc)
	tool, ok := a.tools[name]
	if !ok {
		a.logger.Warn("model requested unknown tool", "tool", name)
		return errorResult(fmt.Sprintf("unknown tool %q", name)), nil
	}

	var args string
	if tc.FunctionCall != nil {
		args = tc.FunctionCall.Arguments
	}

	start := time.Now()
	result, err := tool.Call(ctx, args)
	a.cfg.Metrics.Since(metrics.OpToolCall, start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		a.logger.Warn("tool call failed", "tool", name, "error", err)
		return errorResult(err.Error()), nil
	}

	a.logger.Debug("tool call complete", "tool", name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (a *Agent) systemPrompt(state State) string {
	instruction := a.cfg.Instruction
	if a.cfg.Description != "" {
		instruction = fmt.Sprintf("You are an agent. Your internal name is %q. The description about you is %q.\n\n%s",
			a.cfg.Name, a.cfg.Description, instruction)
	}
	if len(state) == 0 {
		return instruction
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		if k != a.cfg.OutputKey {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return instruction
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nContext from previous steps (read-only):")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n\n[%s]\n%s", k, state[k])
	}
	return b.String()
}

func toolName(tc llms.ToolCall) string {
	if tc.FunctionCall == nil {
		return ""
	}
	return tc.FunctionCall.Name
}

func errorResult(msg string) string {
	b, _ := json.Marshal(map[string]any{"status": "error", "message": msg})
	return string(b)
}
