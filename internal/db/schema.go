package db

import "fmt"

// SchemaSQL returns the schema for the company catalog and its embeddings.
// The HNSW index dimension must match the configured embedding model.
func SchemaSQL(dimension int) string {
	return fmt.Sprintf(schemaTemplate, dimension)
}

const schemaTemplate = `
    -- ==========================================================================
    -- COMPANY TABLE (catalog metadata)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS company SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON company TYPE string;
    DEFINE FIELD IF NOT EXISTS category_list ON company TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS market ON company TYPE option<string>;
    -- Kept as text: the source data formats amounts with thousands separators
    DEFINE FIELD IF NOT EXISTS funding_total_usd ON company TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS status ON company TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS funding_rounds ON company TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS founded_year ON company TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS round_a ON company TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS round_b ON company TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS round_c ON company TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS round_d ON company TYPE option<float>;

    DEFINE INDEX IF NOT EXISTS company_name ON company FIELDS name;

    -- ==========================================================================
    -- COMPANY_EMBEDDING TABLE (vector index, one row per company id)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS company_embedding SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS company_id ON company_embedding TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON company_embedding TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON company_embedding TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS created ON company_embedding TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS company_embedding_vec ON company_embedding FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`
