// Package similarity finds catalog companies that resemble a profile.
//
// A lookup embeds a fixed textual rendering of the profile, asks a vector index
// for the nearest catalog embeddings and joins the hits back to catalog
// metadata. Remote failures never escape Lookup; they are reported through
// the returned models.LookupResult.
package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/raphaelgruber/datacompass-go/internal/metrics"
	"github.com/raphaelgruber/datacompass-go/internal/models"
)

// DefaultTopK is the number of comparable companies returned by a lookup.
const DefaultTopK = 5

// Embedder turns text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex returns up to k catalog matches ordered by ascending distance.
type VectorIndex interface {
	SearchNearest(ctx context.Context, vector []float32, k int) ([]models.Match, error)
}

// Catalog resolves company ids to metadata. Ids without a record are absent
// from the returned map.
type Catalog interface {
	CompaniesByID(ctx context.Context, ids []string) (map[string]models.CompanyRecord, error)
}

// Options tune a Service.
type Options struct {
	TopK       int
	MaxRetries int
	Backoff    time.Duration
	// Retryable decides whether a failed step may be retried.
	// Nil retries every error.
	Retryable func(error) bool
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// Service performs similarity lookups.
type Service struct {
	embedder Embedder
	index    VectorIndex
	catalog  Catalog
	opts     Options
	logger   *slog.Logger
}

// NewService creates a lookup service over the given backends.
func NewService(embedder Embedder, index VectorIndex, catalog Catalog, opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder: embedder,
		index:    index,
		catalog:  catalog,
		opts:     opts,
		logger:   logger,
	}
}

// BuildQueryText renders a profile into the text that gets embedded.
// The output depends only on the profile fields.
func BuildQueryText(p models.CompanyProfile) string {
	return fmt.Sprintf(
		"Company Name: %s. Industry: %s. Funding Stage: %s. Revenue Range: %s. "+
			"This is a startup company in the %s industry at %s stage with %s revenue.",
		p.Name, p.Industry, p.Stage, p.RevenueRange, p.Industry, p.Stage, p.RevenueRange,
	)
}

// Lookup returns the companies most similar to p.
func (s *Service) Lookup(ctx context.Context, p models.CompanyProfile) models.LookupResult {
	start := time.Now()
	text := BuildQueryText(p)

	vector, err := retry(ctx, s, "embed", func(ctx context.Context) ([]float32, error) {
		defer s.opts.Metrics.Since(metrics.OpEmbedding, time.Now())
		return s.embedder.Embed(ctx, text)
	})
	if err != nil {
		s.logger.Warn("lookup embedding failed", "company", p.Name, "error", err)
		return models.Failure(err)
	}

	matches, err := retry(ctx, s, "search", func(ctx context.Context) ([]models.Match, error) {
		defer s.opts.Metrics.Since(metrics.OpVectorSearch, time.Now())
		return s.index.SearchNearest(ctx, vector, s.opts.TopK)
	})
	if err != nil {
		s.logger.Warn("lookup search failed", "company", p.Name, "error", err)
		return models.Failure(err)
	}
	if len(matches) == 0 {
		s.logger.Info("lookup found no matches", "company", p.Name, "duration_ms", time.Since(start).Milliseconds())
		return models.Empty()
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.CompanyID
	}
	records, err := retry(ctx, s, "join", func(ctx context.Context) (map[string]models.CompanyRecord, error) {
		defer s.opts.Metrics.Since(metrics.OpCatalogJoin, time.Now())
		return s.catalog.CompaniesByID(ctx, ids)
	})
	if err != nil {
		s.logger.Warn("lookup catalog join failed", "company", p.Name, "error", err)
		return models.Failure(err)
	}

	companies, dropped := joinMatches(matches, records, s.opts.TopK)
	if dropped > 0 {
		s.logger.Warn("dropped matches without catalog metadata", "company", p.Name, "dropped", dropped)
	}

	s.logger.Info("lookup complete",
		"company", p.Name,
		"results", len(companies),
		"duration_ms", time.Since(start).Milliseconds())

	if len(companies) == 0 {
		return models.Empty()
	}
	return models.Success(companies)
}

// joinMatches pairs matches with catalog records, drops unmatched ids and
// returns at most limit companies ordered by ascending distance, along with
// the number of dropped matches.
func joinMatches(matches []models.Match, records map[string]models.CompanyRecord, limit int) ([]models.ComparableCompany, int) {
	companies := make([]models.ComparableCompany, 0, len(matches))
	dropped := 0
	for _, m := range matches {
		rec, ok := records[m.CompanyID]
		if !ok {
			dropped++
			continue
		}
		companies = append(companies, models.NewComparableCompany(m, rec))
	}

	sort.SliceStable(companies, func(i, j int) bool {
		return companies[i].Distance < companies[j].Distance
	})
	if len(companies) > limit {
		companies = companies[:limit]
	}
	return companies, dropped
}
