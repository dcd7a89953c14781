// Package indexer builds the company embedding index used by similarity lookups.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/datacompass-go/internal/models"
)

// DefaultBatchSize is the number of names embedded per provider call.
const DefaultBatchSize = 32

// sampleSize is the number of embedded rows kept for verification output.
const sampleSize = 5

// Sample describes one embedded row for build verification.
type Sample struct {
	CompanyID string
	Content   string
	Dimension int
}

// BuildResult summarizes a finished index build.
type BuildResult struct {
	ID        string
	Total     int
	Embedded  int
	Dimension int
	Samples   []Sample
	Duration  time.Duration
}

// IndexStats reports index health.
type IndexStats struct {
	TotalEmbeddings      int64
	SuccessfulEmbeddings int64
	TotalCompanies       int64
}

// Progress is emitted while a build runs.
type Progress struct {
	Step  string
	Done  int
	Total int
}

// ProgressFunc receives build progress. It may be nil.
type ProgressFunc func(Progress)

// Builder computes embeddings for the whole catalog and persists them.
type Builder interface {
	Build(ctx context.Context, progress ProgressFunc) (*BuildResult, error)
}

// Embedding is one row written to the index.
type Embedding struct {
	CompanyID string
	Content   string
	Vector    []float32
}

// Source pages through catalog companies that have a non-blank name.
type Source interface {
	CountCompanies(ctx context.Context) (int, error)
	ListCompanies(ctx context.Context, offset, limit int) ([]models.CompanyRecord, error)
}

// Sink stores embeddings keyed by company id, replacing existing rows.
type Sink interface {
	UpsertEmbeddings(ctx context.Context, rows []Embedding) error
}

// BatchEmbedder embeds many texts in one call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// NewBuildID returns a short id for logging and progress output.
func NewBuildID() string {
	return uuid.New().String()[:8]
}

// BatchBuilder embeds catalog names locally and writes them to a Sink.
type BatchBuilder struct {
	source    Source
	sink      Sink
	embedder  BatchEmbedder
	batchSize int
	logger    *slog.Logger
}

// NewBatchBuilder creates a builder. Non-positive batch sizes use DefaultBatchSize.
func NewBatchBuilder(source Source, sink Sink, embedder BatchEmbedder, batchSize int, logger *slog.Logger) *BatchBuilder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchBuilder{
		source:    source,
		sink:      sink,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Build embeds every named company in batches.
// A failed batch aborts the build; batches already written stay in the index.
func (b *BatchBuilder) Build(ctx context.Context, progress ProgressFunc) (*BuildResult, error) {
	start := time.Now()
	result := &BuildResult{ID: NewBuildID(), Dimension: b.embedder.Dimension()}
	logger := b.logger.With("build_id", result.ID)

	total, err := b.source.CountCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("count companies: %w", err)
	}
	result.Total = total
	logger.Info("index build started", "companies", total, "batch_size", b.batchSize)
	report(progress, Progress{Step: "embedding", Done: 0, Total: total})

	for offset := 0; offset < total; offset += b.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := b.source.ListCompanies(ctx, offset, b.batchSize)
		if err != nil {
			return nil, fmt.Errorf("list companies at %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}

		rows := make([]Embedding, 0, len(page))
		texts := make([]string, 0, len(page))
		for _, rec := range page {
			name := strings.TrimSpace(rec.Name)
			if name == "" {
				continue
			}
			rows = append(rows, Embedding{CompanyID: rec.CompanyID, Content: name})
			texts = append(texts, name)
		}

		if len(texts) > 0 {
			vectors, err := b.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return nil, fmt.Errorf("embed batch at %d: %w", offset, err)
			}
			for i := range rows {
				rows[i].Vector = vectors[i]
			}
			if err := b.sink.UpsertEmbeddings(ctx, rows); err != nil {
				return nil, fmt.Errorf("store batch at %d: %w", offset, err)
			}
		}

		for _, r := range rows {
			if len(result.Samples) == sampleSize {
				break
			}
			result.Samples = append(result.Samples, Sample{CompanyID: r.CompanyID, Content: r.Content, Dimension: len(r.Vector)})
		}
		result.Embedded += len(rows)

		done := min(offset+len(page), total)
		logger.Debug("batch stored", "done", done, "total", total)
		report(progress, Progress{Step: "embedding", Done: done, Total: total})
	}

	result.Duration = time.Since(start)
	logger.Info("index build complete",
		"embedded", result.Embedded,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

func report(fn ProgressFunc, p Progress) {
	if fn != nil {
		fn(p)
	}
}
