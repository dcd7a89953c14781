package warehouse

import (
	"fmt"

	"github.com/raphaelgruber/datacompass-go/internal/config"
)

// Output columns written by ML.GENERATE_EMBEDDING.
const (
	embeddingColumn = "ml_generate_embedding_result"
	statusColumn    = "ml_generate_embedding_status"
)

// tables holds the backquoted identifiers used in every statement.
// Identifiers cannot be bound as parameters; config.Validate restricts them
// to plain names before they get here.
type tables struct {
	model      string
	embeddings string
	catalog    string
	connection string
}

func quote(path string) string {
	return "`" + path + "`"
}

func newTables(w config.WarehouseConfig) tables {
	return tables{
		model:      quote(w.TablePath(w.EmbeddingModelName)),
		embeddings: quote(w.TablePath(w.EmbeddingTableName)),
		catalog:    quote(w.TablePath(w.CatalogTableName)),
		connection: quote(w.StorageLocation + "." + w.Location + "." + w.ConnectionID),
	}
}

func embeddingOptions(taskType string, dimension int) string {
	return fmt.Sprintf(`STRUCT(
    TRUE AS flatten_json_output,
    '%s' AS task_type,
    %d AS output_dimensionality
  )`, taskType, dimension)
}

// embedSQL embeds the @content parameter with the remote model.
func embedSQL(t tables, taskType string, dimension int) string {
	return fmt.Sprintf(`SELECT
  %s AS embedding,
  %s AS status
FROM ML.GENERATE_EMBEDDING(
  MODEL %s,
  (SELECT @content AS content),
  %s
)`, embeddingColumn, statusColumn, t.model, embeddingOptions(taskType, dimension))
}

// searchSQL finds the k nearest catalog embeddings to @query_vector.
func searchSQL(t tables, k int) string {
	return fmt.Sprintf(`SELECT
  CAST(base.company_id AS STRING) AS company_id,
  base.content AS content,
  distance
FROM VECTOR_SEARCH(
  TABLE %s,
  '%s',
  (SELECT @query_vector AS %s),
  top_k => %d,
  distance_type => 'COSINE'
)
WHERE base.company_id IS NOT NULL
ORDER BY distance ASC
LIMIT %d`, t.embeddings, embeddingColumn, embeddingColumn, k, k)
}

// joinSQL fetches catalog metadata for the ids in @ids.
// The market and funding columns carry surrounding spaces in the source table.
func joinSQL(t tables) string {
	return fmt.Sprintf("SELECT\n"+
		"  CAST(c.company_id AS STRING) AS company_id,\n"+
		"  c.name AS name,\n"+
		"  c.category_list AS category_list,\n"+
		"  c.` market ` AS market,\n"+
		"  CAST(c.` funding_total_usd ` AS STRING) AS funding_total_usd,\n"+
		"  c.status AS status,\n"+
		"  SAFE_CAST(c.funding_rounds AS INT64) AS funding_rounds,\n"+
		"  SAFE_CAST(c.founded_year AS INT64) AS founded_year,\n"+
		"  SAFE_CAST(c.round_A AS FLOAT64) AS round_a,\n"+
		"  SAFE_CAST(c.round_B AS FLOAT64) AS round_b,\n"+
		"  SAFE_CAST(c.round_C AS FLOAT64) AS round_c,\n"+
		"  SAFE_CAST(c.round_D AS FLOAT64) AS round_d\n"+
		"FROM %s c\n"+
		"WHERE CAST(c.company_id AS STRING) IN UNNEST(@ids)", t.catalog)
}

// statsSQL counts embeddings, successful embeddings and catalog rows.
// A successful ML.GENERATE_EMBEDDING row has an empty status string.
func statsSQL(t tables) string {
	return fmt.Sprintf(`SELECT
  (SELECT COUNT(*) FROM %s) AS total_embeddings,
  (SELECT COUNTIF(%s = '') FROM %s) AS successful_embeddings,
  (SELECT COUNT(*) FROM %s) AS total_companies`,
		t.embeddings, statusColumn, t.embeddings, t.catalog)
}

func createModelSQL(t tables, endpoint string) string {
	return fmt.Sprintf(`CREATE OR REPLACE MODEL %s
REMOTE WITH CONNECTION %s
OPTIONS (
  ENDPOINT = '%s'
)`, t.model, t.connection, endpoint)
}

const namedFilter = "name IS NOT NULL AND TRIM(name) != ''"

func countSourceSQL(t tables) string {
	return fmt.Sprintf(`SELECT COUNT(*) AS total_companies
FROM %s
WHERE %s`, t.catalog, namedFilter)
}

func generateEmbeddingsSQL(t tables, taskType string, dimension int) string {
	return fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
SELECT * FROM ML.GENERATE_EMBEDDING(
  MODEL %s,
  (
    SELECT
      company_id,
      name AS content
    FROM %s
    WHERE %s
  ),
  %s
)`, t.embeddings, t.model, t.catalog, namedFilter, embeddingOptions(taskType, dimension))
}

func verifySQL(t tables, limit int) string {
	return fmt.Sprintf(`SELECT
  CAST(company_id AS STRING) AS company_id,
  content,
  ARRAY_LENGTH(%s) AS embedding_dimension
FROM %s
LIMIT %d`, embeddingColumn, t.embeddings, limit)
}

func countEmbeddingsSQL(t tables) string {
	return fmt.Sprintf("SELECT COUNT(*) AS total_embeddings FROM %s", t.embeddings)
}
