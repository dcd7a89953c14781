// Package warehouse runs embedding generation, vector search and catalog
// queries inside BigQuery.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/raphaelgruber/datacompass-go/internal/config"
	"google.golang.org/api/option"
)

// Client wraps a BigQuery client bound to one dataset.
type Client struct {
	bq        *bigquery.Client
	tables    tables
	location  string
	endpoint  string
	taskType  string
	dimension int
	logger    *slog.Logger
}

// NewClient connects to BigQuery using the warehouse settings from cfg.
// Credentials come from CredentialsFile when set, otherwise from the
// application default credentials.
func NewClient(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	if cfg.Warehouse.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Warehouse.CredentialsFile))
	}

	logger.Info("connecting to BigQuery", "project", cfg.Warehouse.StorageLocation, "dataset", cfg.Warehouse.DatasetID)
	bq, err := bigquery.NewClient(ctx, cfg.Warehouse.StorageLocation, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}

	return &Client{
		bq:        bq,
		tables:    newTables(cfg.Warehouse),
		location:  cfg.Warehouse.Location,
		endpoint:  cfg.Warehouse.RemoteEndpoint,
		taskType:  cfg.TaskType,
		dimension: cfg.EmbedDimension,
		logger:    logger,
	}, nil
}

// Close releases the BigQuery client.
func (c *Client) Close() error {
	return c.bq.Close()
}

// Dimension returns the configured embedding dimensionality.
func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) query(sql string, params ...bigquery.QueryParameter) *bigquery.Query {
	q := c.bq.Query(sql)
	q.Parameters = params
	q.Location = c.location
	return q
}

// read runs a query and returns its row iterator.
func (c *Client) read(ctx context.Context, op, sql string, params ...bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	start := time.Now()
	it, err := c.query(sql, params...).Read(ctx)
	if err != nil {
		c.logger.Debug("query failed", "op", op, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Debug("query complete", "op", op, "duration_ms", time.Since(start).Milliseconds(), "rows", it.TotalRows)
	return it, nil
}

// exec runs a DDL statement as a job and waits for it to finish.
func (c *Client) exec(ctx context.Context, op, sql string) error {
	start := time.Now()
	job, err := c.query(sql).Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: start job: %w", op, err)
	}
	c.logger.Debug("job started", "op", op, "job_id", job.ID())

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: wait for job %s: %w", op, job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job %s failed: %w", op, job.ID(), err)
	}
	c.logger.Info("job complete", "op", op, "job_id", job.ID(), "duration_ms", time.Since(start).Milliseconds())
	return nil
}
