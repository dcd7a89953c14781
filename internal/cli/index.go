package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/raphaelgruber/datacompass-go/internal/config"
	"github.com/raphaelgruber/datacompass-go/internal/indexer"
	"github.com/raphaelgruber/datacompass-go/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and inspect the company embedding index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed every named catalog company",
	Long: `Build the company embedding index for the configured backend.

For bigquery the remote embedding model and the embedding table are
recreated inside the warehouse. For surrealdb and postgres catalog names are
embedded locally in batches and upserted by company id.`,
	Args: cobra.NoArgs,
	RunE: runIndexBuild,
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show embedding and catalog row counts",
	Args:  cobra.NoArgs,
	RunE:  runIndexStats,
}

var indexLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load catalog companies from a YAML or JSON file",
	Long: `Upsert catalog companies from a YAML or JSON list (surrealdb and postgres only).

Each entry uses the catalog column names:

  - company_id: "1"
    name: Acme Analytics
    market: Software
    funding_total_usd: "1,500,000"
    funding_rounds: 2
    founded_year: 2015
    round_A: 1000000`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexLoad,
}

func init() {
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexLoadCmd)
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = b.close() }()

	var result *indexer.BuildResult
	if isTerminal(out) {
		result, err = RunBuildProgress(ctx, b.builder)
	} else {
		result, err = b.builder.Build(ctx, func(p indexer.Progress) {
			fmt.Fprintf(out, "[%s] %d/%d\n", p.Step, p.Done, p.Total)
		})
	}
	if err != nil {
		return fmt.Errorf("index build: %w", err)
	}

	printBuildResult(out, result)
	return nil
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = b.close() }()

	stats, err := b.stats.Stats(ctx)
	if err != nil {
		return err
	}
	printIndexStats(cmd.OutOrStdout(), cfg.Backend, stats)
	return nil
}

func runIndexLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	companies, err := readCompanies(args[0])
	if err != nil {
		return err
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = b.close() }()

	if b.loader == nil {
		return fmt.Errorf("%w: the %s catalog is managed in the warehouse", config.ErrInvalidConfig, cfg.Backend)
	}
	if err := b.loader.UpsertCompanies(ctx, companies); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d companies\n", len(companies))
	return nil
}

// readCompanies parses a YAML (or JSON) list of catalog rows.
func readCompanies(path string) ([]models.CompanyRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var companies []models.CompanyRecord
	if err := yaml.Unmarshal(data, &companies); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, c := range companies {
		if c.CompanyID == "" {
			return nil, fmt.Errorf("parse %s: entry %d has no company_id", path, i+1)
		}
	}
	return companies, nil
}

func printBuildResult(w io.Writer, r *indexer.BuildResult) {
	fmt.Fprintf(w, "\nIndex build %s\n", r.ID)
	fmt.Fprintf(w, "═══════════════════════════════════════\n")
	fmt.Fprintf(w, "  Companies:  %d\n", r.Total)
	fmt.Fprintf(w, "  Embedded:   %d\n", r.Embedded)
	fmt.Fprintf(w, "  Dimension:  %d\n", r.Dimension)
	fmt.Fprintf(w, "  Duration:   %s\n", r.Duration.Round(time.Millisecond))

	if len(r.Samples) > 0 {
		fmt.Fprintf(w, "\nSample embeddings:\n")
		for _, s := range r.Samples {
			fmt.Fprintf(w, "  %-12s %-40s dim=%d\n", s.CompanyID, s.Content, s.Dimension)
		}
	}
}

func printIndexStats(w io.Writer, backendName string, s indexer.IndexStats) {
	fmt.Fprintf(w, "Index Statistics (%s)\n", backendName)
	fmt.Fprintf(w, "═══════════════════════════════════════\n")
	fmt.Fprintf(w, "  Total embeddings:      %d\n", s.TotalEmbeddings)
	fmt.Fprintf(w, "  Successful embeddings: %d\n", s.SuccessfulEmbeddings)
	fmt.Fprintf(w, "  Total companies:       %d\n", s.TotalCompanies)
	if s.TotalEmbeddings > s.SuccessfulEmbeddings {
		fmt.Fprintf(w, "  Failed embeddings:     %d\n", s.TotalEmbeddings-s.SuccessfulEmbeddings)
	}
}
