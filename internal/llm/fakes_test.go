package llm

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
)

type fakeChat struct {
	resp *llms.ContentResponse
	err  error
}

func (f *fakeChat) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	return f.resp, f.err
}

func (f *fakeChat) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

type fakeEmbedder struct {
	vectors [][]float32
	err     error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[:min(len(texts), len(f.vectors))], nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[0], nil
}
