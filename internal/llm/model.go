package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/datacompass-go/internal/config"
	"github.com/raphaelgruber/datacompass-go/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Model wraps a langchaingo chat model and records usage for every call.
type Model struct {
	llm       llms.Model
	modelName string
	metrics   *metrics.Collector
}

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, mc *metrics.Collector) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderGoogleAI:
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("Google API key required")
		}
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.GoogleAPIKey),
			googleai.WithDefaultModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create googleai model: %w", err)
		}

	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.LLMProvider)
	}

	return NewModelFrom(model, cfg.LLMModel, mc), nil
}

// NewModelFrom wraps an existing langchaingo model.
func NewModelFrom(model llms.Model, name string, mc *metrics.Collector) *Model {
	return &Model{llm: model, modelName: name, metrics: mc}
}

// GenerateContent sends a chat turn to the provider.
// Token usage reported by the provider is recorded under llm_generate.
func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	start := time.Now()
	resp, err := m.llm.GenerateContent(ctx, messages, options...)
	duration := time.Since(start)
	if err != nil {
		slog.Warn("llm call failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("generate content: %w", wrapFatalError(err))
	}

	in, out := tokenUsage(resp)
	m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, in, out)
	slog.Debug("llm call complete", "model", m.modelName, "duration_ms", duration.Milliseconds(),
		"input_tokens", in, "output_tokens", out)
	return resp, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Provider-specific GenerationInfo keys for prompt and completion tokens.
var (
	inputTokenKeys  = []string{"input_tokens", "InputTokens", "PromptTokens", "prompt_tokens"}
	outputTokenKeys = []string{"output_tokens", "OutputTokens", "CompletionTokens", "completion_tokens"}
)

// tokenUsage sums token counts across choices. Providers that do not report
// usage yield zeros.
func tokenUsage(resp *llms.ContentResponse) (int64, int64) {
	if resp == nil {
		return 0, 0
	}
	var in, out int64
	for _, c := range resp.Choices {
		in += firstInt(c.GenerationInfo, inputTokenKeys)
		out += firstInt(c.GenerationInfo, outputTokenKeys)
	}
	return in, out
}

func firstInt(info map[string]any, keys []string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}
