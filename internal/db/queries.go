package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/datacompass-go/internal/indexer"
	"github.com/raphaelgruber/datacompass-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// companyDoc mirrors a company row; optional fields decode as nil when NONE.
type companyDoc struct {
	CompanyID       string   `json:"company_id"`
	Name            string   `json:"name"`
	CategoryList    *string  `json:"category_list,omitempty"`
	Market          *string  `json:"market,omitempty"`
	FundingTotalUSD *string  `json:"funding_total_usd,omitempty"`
	Status          *string  `json:"status,omitempty"`
	FundingRounds   *int64   `json:"funding_rounds,omitempty"`
	FoundedYear     *int64   `json:"founded_year,omitempty"`
	RoundA          *float64 `json:"round_a,omitempty"`
	RoundB          *float64 `json:"round_b,omitempty"`
	RoundC          *float64 `json:"round_c,omitempty"`
	RoundD          *float64 `json:"round_d,omitempty"`
}

func (d companyDoc) record() models.CompanyRecord {
	return models.CompanyRecord{
		CompanyID:       d.CompanyID,
		Name:            d.Name,
		CategoryList:    deref(d.CategoryList),
		Market:          deref(d.Market),
		FundingTotalUSD: deref(d.FundingTotalUSD),
		Status:          deref(d.Status),
		FundingRounds:   deref(d.FundingRounds),
		FoundedYear:     deref(d.FoundedYear),
		RoundA:          deref(d.RoundA),
		RoundB:          deref(d.RoundB),
		RoundC:          deref(d.RoundC),
		RoundD:          deref(d.RoundD),
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

const companyFields = `record::id(id) AS company_id, name, category_list, market, funding_total_usd,
		status, funding_rounds, founded_year, round_a, round_b, round_c, round_d`

// SearchNearest returns the k nearest company embeddings by cosine distance.
func (c *Client) SearchNearest(ctx context.Context, vector []float32, k int) ([]models.Match, error) {
	// HNSW with ef=40 for better recall
	sql := fmt.Sprintf(`
		SELECT company_id, content, vector::distance::knn() AS distance
		FROM company_embedding
		WHERE embedding <|%d,40|> $emb
		ORDER BY distance ASC
	`, k)

	results, err := surrealdb.Query[[]models.Match](ctx, c.db, sql, map[string]any{"emb": vector})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", wrapQueryError(err))
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []models.Match{}, nil
}

// CompaniesByID loads catalog rows for the given ids. Unknown ids are absent
// from the result.
func (c *Client) CompaniesByID(ctx context.Context, ids []string) (map[string]models.CompanyRecord, error) {
	out := make(map[string]models.CompanyRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	records := make([]surrealmodels.RecordID, len(ids))
	for i, id := range ids {
		records[i] = surrealmodels.NewRecordID("company", id)
	}

	results, err := surrealdb.Query[[]companyDoc](ctx, c.db,
		`SELECT `+companyFields+` FROM $records`,
		map[string]any{"records": records})
	if err != nil {
		return nil, fmt.Errorf("catalog join: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return out, nil
	}
	for _, doc := range (*results)[0].Result {
		out[doc.CompanyID] = doc.record()
	}
	return out, nil
}

// UpsertCompanies writes catalog rows keyed by company id.
func (c *Client) UpsertCompanies(ctx context.Context, companies []models.CompanyRecord) error {
	if len(companies) == 0 {
		return nil
	}

	rows := make([]map[string]any, len(companies))
	for i, rec := range companies {
		rows[i] = map[string]any{
			"id":                rec.CompanyID,
			"name":              rec.Name,
			"category_list":     rec.CategoryList,
			"market":            rec.Market,
			"funding_total_usd": rec.FundingTotalUSD,
			"status":            rec.Status,
			"funding_rounds":    rec.FundingRounds,
			"founded_year":      rec.FoundedYear,
			"round_a":           rec.RoundA,
			"round_b":           rec.RoundB,
			"round_c":           rec.RoundC,
			"round_d":           rec.RoundD,
		}
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		FOR $row IN $rows {
			UPSERT type::record("company", $row.id) SET
				name = $row.name,
				category_list = $row.category_list,
				market = $row.market,
				funding_total_usd = $row.funding_total_usd,
				status = $row.status,
				funding_rounds = $row.funding_rounds,
				founded_year = $row.founded_year,
				round_a = $row.round_a,
				round_b = $row.round_b,
				round_c = $row.round_c,
				round_d = $row.round_d;
		};
	`, map[string]any{"rows": rows})
	if err != nil {
		return fmt.Errorf("upsert companies: %w", wrapQueryError(err))
	}
	return nil
}

// CountCompanies counts catalog companies with a non-blank name.
func (c *Client) CountCompanies(ctx context.Context) (int, error) {
	n, err := c.count(ctx, `SELECT count() AS c FROM company WHERE string::trim(name) != "" GROUP ALL`, nil)
	return int(n), err
}

// ListCompanies pages through named companies in id order.
func (c *Client) ListCompanies(ctx context.Context, offset, limit int) ([]models.CompanyRecord, error) {
	results, err := surrealdb.Query[[]companyDoc](ctx, c.db, `
		SELECT `+companyFields+`
		FROM company
		WHERE string::trim(name) != ""
		ORDER BY id
		LIMIT $limit START $offset
	`, map[string]any{"limit": limit, "offset": offset})
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", wrapQueryError(err))
	}

	var out []models.CompanyRecord
	if results != nil && len(*results) > 0 {
		for _, doc := range (*results)[0].Result {
			out = append(out, doc.record())
		}
	}
	return out, nil
}

// UpsertEmbeddings replaces the embeddings of the given companies.
func (c *Client) UpsertEmbeddings(ctx context.Context, rows []indexer.Embedding) error {
	if len(rows) == 0 {
		return nil
	}

	vars := make([]map[string]any, len(rows))
	for i, r := range rows {
		vars[i] = map[string]any{
			"company_id": r.CompanyID,
			"content":    r.Content,
			"embedding":  r.Vector,
		}
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		FOR $row IN $rows {
			UPSERT type::record("company_embedding", $row.company_id) SET
				company_id = $row.company_id,
				content = $row.content,
				embedding = $row.embedding;
		};
	`, map[string]any{"rows": vars})
	if err != nil {
		return fmt.Errorf("upsert embeddings: %w", wrapQueryError(err))
	}
	return nil
}

// Stats reports embedding and catalog row counts. An embedding counts as
// successful when its length matches the schema dimension.
func (c *Client) Stats(ctx context.Context) (indexer.IndexStats, error) {
	var stats indexer.IndexStats
	var err error

	if stats.TotalEmbeddings, err = c.count(ctx, `SELECT count() AS c FROM company_embedding GROUP ALL`, nil); err != nil {
		return stats, err
	}
	if stats.SuccessfulEmbeddings, err = c.count(ctx,
		`SELECT count() AS c FROM company_embedding WHERE array::len(embedding) = $dim GROUP ALL`,
		map[string]any{"dim": c.dimension}); err != nil {
		return stats, err
	}
	if stats.TotalCompanies, err = c.count(ctx, `SELECT count() AS c FROM company GROUP ALL`, nil); err != nil {
		return stats, err
	}
	return stats, nil
}

// count runs a `SELECT count() AS c ... GROUP ALL` query. Empty tables yield 0.
func (c *Client) count(ctx context.Context, sql string, vars map[string]any) (int64, error) {
	results, err := surrealdb.Query[[]struct{ C int64 }](ctx, c.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("count: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].C, nil
}
