package cli

import (
	"fmt"

	"github.com/raphaelgruber/datacompass-go/internal/models"
	"github.com/raphaelgruber/datacompass-go/internal/tools"
	"github.com/spf13/cobra"
)

var (
	lookupName     string
	lookupIndustry string
	lookupStage    string
	lookupRevenue  string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Find the companies most similar to a profile",
	Long: `Run a single similarity lookup and print the result as the agents see it.

Empty fields are passed through unchanged.

Examples:
  datacompass lookup --name TechCorp --industry SaaS --stage "Series A" --revenue "$1M-$5M"`,
	Args: cobra.NoArgs,
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().StringVar(&lookupName, "name", "", "company name")
	lookupCmd.Flags().StringVar(&lookupIndustry, "industry", "", "industry of the company")
	lookupCmd.Flags().StringVar(&lookupStage, "stage", "", "funding stage")
	lookupCmd.Flags().StringVar(&lookupRevenue, "revenue", "", "annual revenue range")
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = b.close() }()

	res := b.lookupService().Lookup(ctx, models.CompanyProfile{
		Name:         lookupName,
		Industry:     lookupIndustry,
		Stage:        lookupStage,
		RevenueRange: lookupRevenue,
	})

	fmt.Fprintln(cmd.OutOrStdout(), tools.TextResult(res))
	return nil
}
