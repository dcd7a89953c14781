package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/raphaelgruber/datacompass-go/internal/indexer"
	"google.golang.org/api/iterator"
)

const verifySampleSize = 5

// Build steps reported through indexer.Progress.
const (
	StepCreateModel = "create remote model"
	StepCountSource = "count source rows"
	StepGenerate    = "generate embeddings"
	StepVerify      = "verify embeddings"
)

var buildSteps = []string{StepCreateModel, StepCountSource, StepGenerate, StepVerify}

// Build recreates the remote embedding model and the embedding table.
// Progress is reported per step; the warehouse does not expose row progress
// while ML.GENERATE_EMBEDDING runs.
func (c *Client) Build(ctx context.Context, progress indexer.ProgressFunc) (*indexer.BuildResult, error) {
	start := time.Now()
	result := &indexer.BuildResult{ID: indexer.NewBuildID()}
	logger := c.logger.With("build_id", result.ID)

	step := func(i int) {
		logger.Info("index build step", "step", buildSteps[i], "n", i+1, "of", len(buildSteps))
		if progress != nil {
			progress(indexer.Progress{Step: buildSteps[i], Done: i, Total: len(buildSteps)})
		}
	}

	step(0)
	if err := c.CreateRemoteModel(ctx); err != nil {
		return nil, err
	}

	step(1)
	total, err := c.CountSource(ctx)
	if err != nil {
		return nil, err
	}
	result.Total = int(total)
	logger.Info("found companies with valid names", "companies", total)

	step(2)
	if err := c.GenerateEmbeddings(ctx); err != nil {
		return nil, err
	}

	step(3)
	samples, embedded, err := c.Verify(ctx)
	if err != nil {
		return nil, err
	}
	result.Samples = samples
	result.Embedded = int(embedded)
	result.Dimension = c.dimension
	if len(samples) > 0 {
		result.Dimension = samples[0].Dimension
	}

	if progress != nil {
		progress(indexer.Progress{Step: "done", Done: len(buildSteps), Total: len(buildSteps)})
	}
	result.Duration = time.Since(start)
	logger.Info("index build complete", "embedded", result.Embedded, "duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// CreateRemoteModel creates or replaces the remote embedding model.
// The BigQuery connection to the model endpoint must already exist.
func (c *Client) CreateRemoteModel(ctx context.Context) error {
	return c.exec(ctx, "create remote model", createModelSQL(c.tables, c.endpoint))
}

// CountSource counts catalog companies with a non-blank name.
func (c *Client) CountSource(ctx context.Context) (int64, error) {
	return c.count(ctx, "count source", countSourceSQL(c.tables))
}

// GenerateEmbeddings replaces the embedding table with fresh embeddings of
// every named company.
func (c *Client) GenerateEmbeddings(ctx context.Context) error {
	return c.exec(ctx, "generate embeddings", generateEmbeddingsSQL(c.tables, c.taskType, c.dimension))
}

// Verify returns a few embedded rows and the total number of embeddings.
func (c *Client) Verify(ctx context.Context) ([]indexer.Sample, int64, error) {
	it, err := c.read(ctx, "verify embeddings", verifySQL(c.tables, verifySampleSize))
	if err != nil {
		return nil, 0, err
	}

	var samples []indexer.Sample
	for {
		var row struct {
			CompanyID bigquery.NullString `bigquery:"company_id"`
			Content   bigquery.NullString `bigquery:"content"`
			Dimension int64               `bigquery:"embedding_dimension"`
		}
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("verify embeddings: read row: %w", err)
		}
		samples = append(samples, indexer.Sample{
			CompanyID: row.CompanyID.StringVal,
			Content:   row.Content.StringVal,
			Dimension: int(row.Dimension),
		})
	}

	total, err := c.count(ctx, "count embeddings", countEmbeddingsSQL(c.tables))
	if err != nil {
		return nil, 0, err
	}
	return samples, total, nil
}

// Stats reports embedding and catalog row counts.
func (c *Client) Stats(ctx context.Context) (indexer.IndexStats, error) {
	it, err := c.read(ctx, "index stats", statsSQL(c.tables))
	if err != nil {
		return indexer.IndexStats{}, err
	}

	var row struct {
		TotalEmbeddings      int64 `bigquery:"total_embeddings"`
		SuccessfulEmbeddings int64 `bigquery:"successful_embeddings"`
		TotalCompanies       int64 `bigquery:"total_companies"`
	}
	if err := it.Next(&row); err != nil {
		return indexer.IndexStats{}, fmt.Errorf("index stats: read row: %w", err)
	}
	return indexer.IndexStats{
		TotalEmbeddings:      row.TotalEmbeddings,
		SuccessfulEmbeddings: row.SuccessfulEmbeddings,
		TotalCompanies:       row.TotalCompanies,
	}, nil
}

// count reads the first column of a single-row COUNT query.
func (c *Client) count(ctx context.Context, op, sql string) (int64, error) {
	it, err := c.read(ctx, op, sql)
	if err != nil {
		return 0, err
	}
	var row []bigquery.Value
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("%s: read row: %w", op, err)
	}
	if len(row) == 0 {
		return 0, fmt.Errorf("%s: empty row", op)
	}
	n, ok := row[0].(int64)
	if !ok {
		return 0, fmt.Errorf("%s: unexpected count type %T", op, row[0])
	}
	return n, nil
}
