package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/datacompass-go/internal/config"
	"github.com/raphaelgruber/datacompass-go/internal/db"
	"github.com/raphaelgruber/datacompass-go/internal/indexer"
	"github.com/raphaelgruber/datacompass-go/internal/llm"
	"github.com/raphaelgruber/datacompass-go/internal/models"
	"github.com/raphaelgruber/datacompass-go/internal/pgstore"
	"github.com/raphaelgruber/datacompass-go/internal/pipeline"
	"github.com/raphaelgruber/datacompass-go/internal/similarity"
	"github.com/raphaelgruber/datacompass-go/internal/tools"
	"github.com/raphaelgruber/datacompass-go/internal/warehouse"
)

type statsReader interface {
	Stats(ctx context.Context) (indexer.IndexStats, error)
}

type companyLoader interface {
	UpsertCompanies(ctx context.Context, companies []models.CompanyRecord) error
}

// backend bundles the index, catalog and embedder of the configured backend.
type backend struct {
	embedder similarity.Embedder
	index    similarity.VectorIndex
	catalog  similarity.Catalog
	builder  indexer.Builder
	stats    statsReader
	// loader is nil when the catalog is managed outside datacompass.
	loader companyLoader
	close  func() error
}

// openBackend connects to the backend selected by cfg.Backend.
func openBackend(ctx context.Context) (*backend, error) {
	switch cfg.Backend {
	case config.BackendBigQuery:
		client, err := warehouse.NewClient(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return &backend{
			embedder: client,
			index:    client,
			catalog:  client,
			builder:  client,
			stats:    client,
			close:    client.Close,
		}, nil

	case config.BackendSurrealDB:
		client, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := client.InitSchema(ctx, cfg.EmbedDimension); err != nil {
			_ = client.Close(ctx)
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
		embedder, err := llm.NewEmbedder(ctx, cfg, collector)
		if err != nil {
			_ = client.Close(ctx)
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		return &backend{
			embedder: embedder,
			index:    client,
			catalog:  client,
			builder:  indexer.NewBatchBuilder(client, client, embedder, cfg.EmbedBatchSize, logger),
			stats:    client,
			loader:   client,
			close:    func() error { return client.Close(context.Background()) },
		}, nil

	case config.BackendPostgres:
		store, err := pgstore.NewStore(ctx, cfg.PostgresURL, cfg.EmbedDimension, logger)
		if err != nil {
			return nil, err
		}
		if err := store.InitSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		embedder, err := llm.NewEmbedder(ctx, cfg, collector)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		return &backend{
			embedder: embedder,
			index:    store,
			catalog:  store,
			builder:  indexer.NewBatchBuilder(store, store, embedder, cfg.EmbedBatchSize, logger),
			stats:    store,
			loader:   store,
			close:    store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

// lookupService wires a similarity service over the backend. Fatal provider
// errors are never retried.
func (b *backend) lookupService() *similarity.Service {
	return similarity.NewService(b.embedder, b.index, b.catalog, similarity.Options{
		TopK:       cfg.TopK,
		MaxRetries: cfg.LookupMaxRetries,
		Retryable:  func(err error) bool { return !llm.IsFatal(err) },
		Metrics:    collector,
		Logger:     logger,
	})
}

// newWorkflow creates the reasoning model and the two-stage workflow.
func newWorkflow(ctx context.Context, b *backend) (*pipeline.Pipeline, error) {
	model, err := llm.NewModel(ctx, cfg, collector)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}

	deps := &tools.Dependencies{
		Lookup: b.lookupService(),
		Logger: logger,
	}
	return pipeline.NewCompanyAnalysisWorkflow(model, tools.All(deps), cfg.MaxToolIterations, pipeline.Options{
		Metrics: collector,
		Logger:  logger,
	}), nil
}
