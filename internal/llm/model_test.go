package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/raphaelgruber/datacompass-go/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("embed: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isFatalAPIError(tt.err)
			if got != tt.fatal {
				t.Errorf("isFatalAPIError(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		err := errors.New("invalid api key provided")
		wrapped := wrapFatalError(err)
		if !errors.Is(wrapped, ErrFatalAPI) {
			t.Errorf("expected wrapped error to match ErrFatalAPI")
		}
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		if errors.Is(result, ErrFatalAPI) {
			t.Errorf("non-fatal error should not be wrapped with ErrFatalAPI")
		}
		if result != err {
			t.Errorf("expected original error returned, got %v", result)
		}
	})

	t.Run("nil error", func(t *testing.T) {
		result := wrapFatalError(nil)
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(wrapFatalError(errors.New("HTTP 403"))))
	assert.True(t, IsFatal(errors.New("quota exceeded")))
	assert.False(t, IsFatal(errors.New("connection refused")))
	assert.False(t, IsFatal(nil))
}

func TestGenerateContentRecordsUsage(t *testing.T) {
	tests := []struct {
		name    string
		info    map[string]any
		wantIn  int64
		wantOut int64
	}{
		{"openai keys", map[string]any{"PromptTokens": 120, "CompletionTokens": 30}, 120, 30},
		{"anthropic keys", map[string]any{"InputTokens": 50, "OutputTokens": 5}, 50, 5},
		{"googleai keys", map[string]any{"input_tokens": int32(80), "output_tokens": int32(8)}, 80, 8},
		{"float values", map[string]any{"prompt_tokens": 12.0, "completion_tokens": 3.0}, 12, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := metrics.NewCollector()
			chat := &fakeChat{resp: &llms.ContentResponse{
				Choices: []*llms.ContentChoice{{Content: "ok", GenerationInfo: tt.info}},
			}}
			m := NewModelFrom(chat, "test-model", mc)

			resp, err := m.GenerateContent(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, "ok", resp.Choices[0].Content)

			snap := mc.Snapshot().LLMGenerate
			require.NotNil(t, snap)
			require.NotNil(t, snap.TotalInputTokens)
			assert.Equal(t, tt.wantIn, *snap.TotalInputTokens)
			assert.Equal(t, tt.wantOut, *snap.TotalOutputTokens)
		})
	}
}

func TestGenerateContentWrapsFatalErrors(t *testing.T) {
	m := NewModelFrom(&fakeChat{err: errors.New("invalid api key")}, "test-model", nil)
	_, err := m.GenerateContent(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatalAPI)
	assert.Equal(t, "test-model", m.Model())
}

func TestEmbedderDimensionCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts matching dimension", func(t *testing.T) {
		e := NewEmbedderFrom(&fakeEmbedder{vectors: [][]float32{{0.1, 0.2, 0.3}}}, "fake", 3, nil)
		v, err := e.Embed(ctx, "Acme")
		require.NoError(t, err)
		assert.Len(t, v, 3)
	})

	t.Run("rejects wrong dimension", func(t *testing.T) {
		e := NewEmbedderFrom(&fakeEmbedder{vectors: [][]float32{{0.1, 0.2}}}, "fake", 3, nil)
		_, err := e.Embed(ctx, "Acme")
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("batch count mismatch", func(t *testing.T) {
		e := NewEmbedderFrom(&fakeEmbedder{vectors: [][]float32{{1, 2, 3}}}, "fake", 3, nil)
		_, err := e.EmbedBatch(ctx, []string{"a", "b"})
		assert.ErrorContains(t, err, "count mismatch")
	})

	t.Run("empty batch", func(t *testing.T) {
		e := NewEmbedderFrom(&fakeEmbedder{}, "fake", 3, nil)
		out, err := e.EmbedBatch(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("records batch timing", func(t *testing.T) {
		mc := metrics.NewCollector()
		e := NewEmbedderFrom(&fakeEmbedder{err: errors.New("boom")}, "fake", 3, mc)
		_, err := e.EmbedBatch(ctx, []string{"Acme"})
		require.Error(t, err)
		require.NotNil(t, mc.Snapshot().Embedding)
		assert.Equal(t, int64(1), mc.Snapshot().Embedding.Count)
	})
}
