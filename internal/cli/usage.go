package cli

import (
	"fmt"
	"io"

	"github.com/raphaelgruber/datacompass-go/internal/metrics"
)

var opTitles = map[string]string{
	metrics.OpEmbedding:     "Embeddings",
	metrics.OpVectorSearch:  "Vector Search",
	metrics.OpCatalogJoin:   "Catalog Join",
	metrics.OpToolCall:      "Tool Calls",
	metrics.OpPipelineStage: "Pipeline Stages",
	metrics.OpLLMGenerate:   "LLM Generate",
}

// printSnapshot displays session statistics.
func printSnapshot(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "\nSession Statistics (in-memory)\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", snap.UptimeSeconds)

	for _, op := range snap.Ops() {
		title := opTitles[op.Name]
		if title == "" {
			title = op.Name
		}
		fmt.Fprintf(w, "\n%s:\n", title)
		printOpStats(w, op.Stats)
		printTokenStats(w, op.Stats)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op *metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(w io.Writer, op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Fprintf(w, "  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Fprintf(w, ", avg %.0f", *op.AvgInputTokens)
	}
	if op.MinInputTokens != nil && op.MaxInputTokens != nil {
		fmt.Fprintf(w, ", min %d, max %d", *op.MinInputTokens, *op.MaxInputTokens)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Fprintf(w, ", avg %.0f", *op.AvgOutputTokens)
	}
	if op.MinOutputTokens != nil && op.MaxOutputTokens != nil {
		fmt.Fprintf(w, ", min %d, max %d", *op.MinOutputTokens, *op.MaxOutputTokens)
	}
	fmt.Fprintln(w)
}
