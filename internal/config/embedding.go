package config

import "strings"

// WarehouseEmbedDimension is the output size requested from the warehouse
// embedding model.
const WarehouseEmbedDimension = 256

// nativeEmbedDimensions maps common embedding models to their output size.
var nativeEmbedDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"text-embedding-004":     768,
}

// NativeEmbedDimension returns the output size of a known embedding model.
// Ollama tags ("nomic-embed-text:latest") and Gemini resource names
// ("models/text-embedding-004") resolve to the base model.
func NativeEmbedDimension(model string) (int, bool) {
	name := strings.TrimPrefix(strings.ToLower(model), "models/")
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[:i]
	}
	n, ok := nativeEmbedDimensions[name]
	return n, ok
}

// CanRequestEmbedDimension reports whether the provider can be asked for a
// shorter embedding than the model's native size.
func CanRequestEmbedDimension(provider, model string) bool {
	return provider == ProviderOpenAI && strings.HasPrefix(strings.ToLower(model), "text-embedding-3")
}

// defaultEmbedDimension is the warehouse size for bigquery and the native
// size of the embed model for the local backends.
func defaultEmbedDimension(backend, model string) int {
	if backend == BackendSurrealDB || backend == BackendPostgres {
		if n, ok := NativeEmbedDimension(model); ok {
			return n
		}
	}
	return WarehouseEmbedDimension
}
