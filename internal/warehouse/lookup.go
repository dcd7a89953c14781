package warehouse

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/raphaelgruber/datacompass-go/internal/models"
	"google.golang.org/api/iterator"
)

type embedRow struct {
	Embedding []float64 `bigquery:"embedding"`
	Status    string    `bigquery:"status"`
}

type matchRow struct {
	CompanyID bigquery.NullString `bigquery:"company_id"`
	Content   bigquery.NullString `bigquery:"content"`
	Distance  float64             `bigquery:"distance"`
}

type companyRow struct {
	CompanyID       bigquery.NullString  `bigquery:"company_id"`
	Name            bigquery.NullString  `bigquery:"name"`
	CategoryList    bigquery.NullString  `bigquery:"category_list"`
	Market          bigquery.NullString  `bigquery:"market"`
	FundingTotalUSD bigquery.NullString  `bigquery:"funding_total_usd"`
	Status          bigquery.NullString  `bigquery:"status"`
	FundingRounds   bigquery.NullInt64   `bigquery:"funding_rounds"`
	FoundedYear     bigquery.NullInt64   `bigquery:"founded_year"`
	RoundA          bigquery.NullFloat64 `bigquery:"round_a"`
	RoundB          bigquery.NullFloat64 `bigquery:"round_b"`
	RoundC          bigquery.NullFloat64 `bigquery:"round_c"`
	RoundD          bigquery.NullFloat64 `bigquery:"round_d"`
}

// record converts a catalog row, mapping NULLs to zero values.
func (r companyRow) record() models.CompanyRecord {
	return models.CompanyRecord{
		CompanyID:       r.CompanyID.StringVal,
		Name:            r.Name.StringVal,
		CategoryList:    r.CategoryList.StringVal,
		Market:          r.Market.StringVal,
		FundingTotalUSD: r.FundingTotalUSD.StringVal,
		Status:          r.Status.StringVal,
		FundingRounds:   r.FundingRounds.Int64,
		FoundedYear:     r.FoundedYear.Int64,
		RoundA:          r.RoundA.Float64,
		RoundB:          r.RoundB.Float64,
		RoundC:          r.RoundC.Float64,
		RoundD:          r.RoundD.Float64,
	}
}

// Embed generates a query embedding with the warehouse's remote model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	it, err := c.read(ctx, "generate embedding", embedSQL(c.tables, c.taskType, c.dimension),
		bigquery.QueryParameter{Name: "content", Value: text})
	if err != nil {
		return nil, err
	}

	var row embedRow
	if err := it.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, fmt.Errorf("generate embedding: no rows returned")
		}
		return nil, fmt.Errorf("generate embedding: read row: %w", err)
	}
	if row.Status != "" {
		return nil, fmt.Errorf("generate embedding: %s", row.Status)
	}
	if len(row.Embedding) != c.dimension {
		return nil, fmt.Errorf("generate embedding: dimension mismatch: got %d, want %d", len(row.Embedding), c.dimension)
	}
	return toFloat32(row.Embedding), nil
}

// SearchNearest runs VECTOR_SEARCH against the embedding table.
func (c *Client) SearchNearest(ctx context.Context, vector []float32, k int) ([]models.Match, error) {
	it, err := c.read(ctx, "vector search", searchSQL(c.tables, k),
		bigquery.QueryParameter{Name: "query_vector", Value: toFloat64(vector)})
	if err != nil {
		return nil, err
	}

	var matches []models.Match
	for {
		var row matchRow
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vector search: read row: %w", err)
		}
		if !row.CompanyID.Valid {
			continue
		}
		matches = append(matches, models.Match{
			CompanyID: row.CompanyID.StringVal,
			Content:   row.Content.StringVal,
			Distance:  row.Distance,
		})
	}
	return matches, nil
}

// CompaniesByID loads catalog rows for the given ids.
func (c *Client) CompaniesByID(ctx context.Context, ids []string) (map[string]models.CompanyRecord, error) {
	out := make(map[string]models.CompanyRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	it, err := c.read(ctx, "catalog join", joinSQL(c.tables),
		bigquery.QueryParameter{Name: "ids", Value: ids})
	if err != nil {
		return nil, err
	}

	for {
		var row companyRow
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog join: read row: %w", err)
		}
		rec := row.record()
		out[rec.CompanyID] = rec
	}
	return out, nil
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
