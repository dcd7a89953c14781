// Package pgstore keeps the company catalog and its embeddings in PostgreSQL
// with the pgvector extension.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/raphaelgruber/datacompass-go/internal/indexer"
	"github.com/raphaelgruber/datacompass-go/internal/models"
)

// Store handles catalog and vector operations with PostgreSQL + pgvector.
type Store struct {
	db        *sqlx.DB
	dimension int
	logger    *slog.Logger
}

// NewStore connects to PostgreSQL and verifies the connection.
func NewStore(ctx context.Context, databaseURL string, dimension int, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return NewStoreFromDB(db, dimension, logger), nil
}

// NewStoreFromDB wraps an existing connection pool.
func NewStoreFromDB(db *sqlx.DB, dimension int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, dimension: dimension, logger: logger}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dimension returns the embedding column dimension.
func (s *Store) Dimension() int {
	return s.dimension
}

// InitSchema creates the pgvector extension, tables and HNSW index.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dimension) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	s.logger.Info("postgres schema ready", "dimension", s.dimension)
	return nil
}

func schemaStatements(dimension int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS companies (
			company_id        TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			category_list     TEXT,
			market            TEXT,
			funding_total_usd TEXT,
			status            TEXT,
			funding_rounds    BIGINT,
			founded_year      BIGINT,
			round_a           DOUBLE PRECISION,
			round_b           DOUBLE PRECISION,
			round_c           DOUBLE PRECISION,
			round_d           DOUBLE PRECISION
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS company_embeddings (
			company_id TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS company_embeddings_hnsw
			ON company_embeddings USING hnsw (embedding vector_cosine_ops)`,
	}
}

type companyRow struct {
	CompanyID       string          `db:"company_id"`
	Name            string          `db:"name"`
	CategoryList    sql.NullString  `db:"category_list"`
	Market          sql.NullString  `db:"market"`
	FundingTotalUSD sql.NullString  `db:"funding_total_usd"`
	Status          sql.NullString  `db:"status"`
	FundingRounds   sql.NullInt64   `db:"funding_rounds"`
	FoundedYear     sql.NullInt64   `db:"founded_year"`
	RoundA          sql.NullFloat64 `db:"round_a"`
	RoundB          sql.NullFloat64 `db:"round_b"`
	RoundC          sql.NullFloat64 `db:"round_c"`
	RoundD          sql.NullFloat64 `db:"round_d"`
}

func (r companyRow) record() models.CompanyRecord {
	return models.CompanyRecord{
		CompanyID:       r.CompanyID,
		Name:            r.Name,
		CategoryList:    r.CategoryList.String,
		Market:          r.Market.String,
		FundingTotalUSD: r.FundingTotalUSD.String,
		Status:          r.Status.String,
		FundingRounds:   r.FundingRounds.Int64,
		FoundedYear:     r.FoundedYear.Int64,
		RoundA:          r.RoundA.Float64,
		RoundB:          r.RoundB.Float64,
		RoundC:          r.RoundC.Float64,
		RoundD:          r.RoundD.Float64,
	}
}

const companyColumns = `company_id, name, category_list, market, funding_total_usd, status,
	funding_rounds, founded_year, round_a, round_b, round_c, round_d`

// SearchNearest returns the k nearest embeddings by cosine distance.
func (s *Store) SearchNearest(ctx context.Context, vector []float32, k int) ([]models.Match, error) {
	query := `
		SELECT company_id, content, embedding <=> $1 AS distance
		FROM company_embeddings
		ORDER BY embedding <=> $1
		LIMIT $2`

	var rows []struct {
		CompanyID string  `db:"company_id"`
		Content   string  `db:"content"`
		Distance  float64 `db:"distance"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, formatEmbedding(vector), k); err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	matches := make([]models.Match, len(rows))
	for i, r := range rows {
		matches[i] = models.Match{CompanyID: r.CompanyID, Content: r.Content, Distance: r.Distance}
	}
	return matches, nil
}

// CompaniesByID loads catalog rows for the given ids.
func (s *Store) CompaniesByID(ctx context.Context, ids []string) (map[string]models.CompanyRecord, error) {
	out := make(map[string]models.CompanyRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []companyRow
	query := `SELECT ` + companyColumns + ` FROM companies WHERE company_id = ANY($1)`
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("catalog join: %w", err)
	}
	for _, r := range rows {
		out[r.CompanyID] = r.record()
	}
	return out, nil
}

// upsertChunkSize bounds the rows per INSERT. Postgres accepts at most 65535
// bind parameters per statement.
const upsertChunkSize = 1000

// UpsertCompanies inserts or replaces catalog rows in chunks inside one
// transaction. When a company id repeats, its last entry wins.
func (s *Store) UpsertCompanies(ctx context.Context, companies []models.CompanyRecord) error {
	companies = lastByID(companies)
	if len(companies) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert companies: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(companies); start += upsertChunkSize {
		chunk := companies[start:min(start+upsertChunkSize, len(companies))]
		if err := upsertCompanyChunk(ctx, tx, chunk); err != nil {
			return fmt.Errorf("upsert companies %d-%d: %w", start+1, start+len(chunk), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert companies: commit: %w", err)
	}
	s.logger.Debug("companies stored", "rows", len(companies))
	return nil
}

func upsertCompanyChunk(ctx context.Context, tx *sqlx.Tx, companies []models.CompanyRecord) error {
	const cols = 12
	valueStrings := make([]string, 0, len(companies))
	valueArgs := make([]any, 0, len(companies)*cols)
	for i, c := range companies {
		valueStrings = append(valueStrings, placeholders(i*cols, cols))
		valueArgs = append(valueArgs,
			c.CompanyID, c.Name, c.CategoryList, c.Market, c.FundingTotalUSD, c.Status,
			c.FundingRounds, c.FoundedYear, c.RoundA, c.RoundB, c.RoundC, c.RoundD)
	}

	query := fmt.Sprintf(`
		INSERT INTO companies (%s)
		VALUES %s
		ON CONFLICT (company_id) DO UPDATE SET
			name = EXCLUDED.name,
			category_list = EXCLUDED.category_list,
			market = EXCLUDED.market,
			funding_total_usd = EXCLUDED.funding_total_usd,
			status = EXCLUDED.status,
			funding_rounds = EXCLUDED.funding_rounds,
			founded_year = EXCLUDED.founded_year,
			round_a = EXCLUDED.round_a,
			round_b = EXCLUDED.round_b,
			round_c = EXCLUDED.round_c,
			round_d = EXCLUDED.round_d`,
		companyColumns, strings.Join(valueStrings, ","))

	_, err := tx.ExecContext(ctx, query, valueArgs...)
	return err
}

// lastByID drops earlier entries of repeated company ids. A single INSERT
// ... ON CONFLICT cannot touch the same row twice.
func lastByID(companies []models.CompanyRecord) []models.CompanyRecord {
	last := make(map[string]int, len(companies))
	for i, c := range companies {
		last[c.CompanyID] = i
	}
	if len(last) == len(companies) {
		return companies
	}

	out := make([]models.CompanyRecord, 0, len(last))
	for i, c := range companies {
		if last[c.CompanyID] == i {
			out = append(out, c)
		}
	}
	return out
}

// CountCompanies counts catalog companies with a non-blank name.
func (s *Store) CountCompanies(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM companies WHERE TRIM(name) <> ''`); err != nil {
		return 0, fmt.Errorf("count companies: %w", err)
	}
	return n, nil
}

// ListCompanies pages through named companies in id order.
func (s *Store) ListCompanies(ctx context.Context, offset, limit int) ([]models.CompanyRecord, error) {
	var rows []companyRow
	query := `SELECT ` + companyColumns + `
		FROM companies
		WHERE TRIM(name) <> ''
		ORDER BY company_id
		LIMIT $1 OFFSET $2`
	if err := s.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}

	out := make([]models.CompanyRecord, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// UpsertEmbeddings inserts or replaces embeddings keyed by company id.
func (s *Store) UpsertEmbeddings(ctx context.Context, rows []indexer.Embedding) error {
	if len(rows) == 0 {
		return nil
	}

	valueStrings := make([]string, 0, len(rows))
	valueArgs := make([]any, 0, len(rows)*3)
	for i, r := range rows {
		valueStrings = append(valueStrings, placeholders(i*3, 3))
		valueArgs = append(valueArgs, r.CompanyID, r.Content, formatEmbedding(r.Vector))
	}

	query := fmt.Sprintf(`
		INSERT INTO company_embeddings (company_id, content, embedding)
		VALUES %s
		ON CONFLICT (company_id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			created_at = now()`,
		strings.Join(valueStrings, ","))

	res, err := s.db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		return fmt.Errorf("upsert embeddings: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Debug("embeddings stored", "rows", n)
	}
	return nil
}

// Stats reports embedding and catalog row counts. An embedding counts as
// successful when its dimension matches the column dimension.
func (s *Store) Stats(ctx context.Context) (indexer.IndexStats, error) {
	var row struct {
		TotalEmbeddings      int64 `db:"total_embeddings"`
		SuccessfulEmbeddings int64 `db:"successful_embeddings"`
		TotalCompanies       int64 `db:"total_companies"`
	}
	query := `
		SELECT
			(SELECT COUNT(*) FROM company_embeddings) AS total_embeddings,
			(SELECT COUNT(*) FROM company_embeddings WHERE vector_dims(embedding) = $1) AS successful_embeddings,
			(SELECT COUNT(*) FROM companies) AS total_companies`
	if err := s.db.GetContext(ctx, &row, query, s.dimension); err != nil {
		return indexer.IndexStats{}, fmt.Errorf("index stats: %w", err)
	}
	return indexer.IndexStats{
		TotalEmbeddings:      row.TotalEmbeddings,
		SuccessfulEmbeddings: row.SuccessfulEmbeddings,
		TotalCompanies:       row.TotalCompanies,
	}, nil
}

// placeholders renders "($start+1, ..., $start+n)".
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(start+i+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// formatEmbedding converts float32 slice to PostgreSQL vector format
func formatEmbedding(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}

	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
