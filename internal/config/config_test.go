package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATACOMPASS_BACKEND", "")
	t.Setenv("DATACOMPASS_TOP_K", "")
	t.Setenv("DATACOMPASS_LLM_PROVIDER", "")

	cfg := Load()
	assert.Equal(t, BackendBigQuery, cfg.Backend)
	assert.Equal(t, "crunchbasedataset", cfg.Warehouse.DatasetID)
	assert.Equal(t, "companies_embeddings_ml", cfg.Warehouse.EmbeddingTableName)
	assert.Equal(t, "companies", cfg.Warehouse.CatalogTableName)
	assert.Equal(t, "text_embedding_model", cfg.Warehouse.EmbeddingModelName)
	assert.Equal(t, 256, cfg.EmbedDimension)
	assert.Equal(t, "RETRIEVAL_DOCUMENT", cfg.TaskType)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 0, cfg.LookupMaxRetries)
	assert.Equal(t, ProviderGoogleAI, cfg.LLMProvider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLMModel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATACOMPASS_BACKEND", "Postgres")
	t.Setenv("DATACOMPASS_TOP_K", "3")
	t.Setenv("DATACOMPASS_DATASET_ID", "other")
	t.Setenv("DATACOMPASS_MAX_TOOL_ITERATIONS", "not-a-number")

	cfg := Load()
	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, "other", cfg.Warehouse.DatasetID)
	assert.Equal(t, 8, cfg.MaxToolIterations, "invalid numbers fall back to the default")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		t.Setenv("DATACOMPASS_BACKEND", "")
		t.Setenv("DATACOMPASS_LLM_PROVIDER", "")
		return Load()
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Backend = "mongo" }, "unknown backend"},
		{"injected table name", func(c *Config) { c.Warehouse.CatalogTableName = "companies` WHERE 1=1 --" }, "catalog table"},
		{"bad task type", func(c *Config) { c.TaskType = "x' OR 1" }, "task type"},
		{"unknown llm provider", func(c *Config) { c.LLMProvider = "cohere" }, "unsupported LLM provider"},
		{"zero top k", func(c *Config) { c.TopK = 0 }, "top k"},
		{"negative retries", func(c *Config) { c.LookupMaxRetries = -1 }, "retries"},
		{"local backend bad embedder", func(c *Config) {
			c.Backend = BackendSurrealDB
			c.EmbedProvider = "anthropic"
		}, "embedding provider"},
		{"local backend ignores warehouse names", func(c *Config) {
			c.Backend = BackendPostgres
			c.EmbedDimension = 768
			c.Warehouse.DatasetID = "not valid!"
		}, ""},
		{"local model cannot produce dimension", func(c *Config) {
			c.Backend = BackendPostgres
			c.EmbedModel = "nomic-embed-text:latest"
			c.EmbedDimension = 256
		}, "does not match the 768 dimensions"},
		{"openai shortened embeddings", func(c *Config) {
			c.Backend = BackendSurrealDB
			c.EmbedProvider = ProviderOpenAI
			c.EmbedModel = "text-embedding-3-small"
			c.EmbedDimension = 256
		}, ""},
		{"openai dimension above native", func(c *Config) {
			c.Backend = BackendSurrealDB
			c.EmbedProvider = ProviderOpenAI
			c.EmbedModel = "text-embedding-3-small"
			c.EmbedDimension = 2048
		}, "exceeds the 1536 dimensions"},
		{"unknown local model is checked at runtime", func(c *Config) {
			c.Backend = BackendPostgres
			c.EmbedModel = "my-custom-embedder"
			c.EmbedDimension = 256
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadEmbedDimensionFollowsBackend(t *testing.T) {
	t.Setenv("DATACOMPASS_EMBED_DIMENSION", "")
	t.Setenv("DATACOMPASS_EMBED_PROVIDER", "")
	t.Setenv("DATACOMPASS_EMBED_MODEL", "")
	t.Setenv("DATACOMPASS_LLM_PROVIDER", "")

	t.Setenv("DATACOMPASS_BACKEND", "bigquery")
	assert.Equal(t, WarehouseEmbedDimension, Load().EmbedDimension)

	for _, backend := range []string{BackendPostgres, BackendSurrealDB} {
		t.Setenv("DATACOMPASS_BACKEND", backend)
		cfg := Load()
		assert.Equal(t, 768, cfg.EmbedDimension, "default nomic-embed-text size for %s", backend)
		assert.NoError(t, cfg.Validate())
	}

	t.Setenv("DATACOMPASS_EMBED_DIMENSION", "512")
	assert.Equal(t, 512, Load().EmbedDimension, "explicit setting wins")
}

func TestNativeEmbedDimension(t *testing.T) {
	n, ok := NativeEmbedDimension("nomic-embed-text:latest")
	assert.True(t, ok)
	assert.Equal(t, 768, n)

	n, ok = NativeEmbedDimension("models/text-embedding-004")
	assert.True(t, ok)
	assert.Equal(t, 768, n)

	_, ok = NativeEmbedDimension("my-custom-embedder")
	assert.False(t, ok)

	assert.True(t, CanRequestEmbedDimension(ProviderOpenAI, "text-embedding-3-large"))
	assert.False(t, CanRequestEmbedDimension(ProviderOpenAI, "text-embedding-ada-002"))
	assert.False(t, CanRequestEmbedDimension(ProviderOllama, "nomic-embed-text"))
}

func TestTablePath(t *testing.T) {
	w := WarehouseConfig{StorageLocation: "proj", DatasetID: "ds"}
	assert.Equal(t, "proj.ds.companies", w.TablePath("companies"))
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("lookup complete", "results", 5)

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "lookup complete")
	assert.NotContains(t, stderr.String(), "time=")
	assert.True(t, strings.HasPrefix(file.String(), "{"), "file output is JSON")
	assert.Contains(t, file.String(), `"results":5`)
	assert.Contains(t, file.String(), `"app":"datacompass"`)
	assert.Contains(t, file.String(), `"time":`)
}

func TestSetupLoggerCreatesLogDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "datacompass.log")

	logger, closeLog := SetupLogger(path, slog.LevelInfo)
	logger.Info("session started", "session_id", "abc12345")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session_id":"abc12345"`)
}

func TestSetupLoggerFileOff(t *testing.T) {
	logger, closeLog := SetupLogger(LogFileOff, slog.LevelInfo)
	require.NotNil(t, logger)
	assert.NoError(t, closeLog())
	_, err := os.Stat(LogFileOff)
	assert.True(t, os.IsNotExist(err), "no file named off is created")
}

func TestDefaultLogFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "datacompass", "datacompass.log"), DefaultLogFile())
}
