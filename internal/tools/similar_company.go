package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/raphaelgruber/datacompass-go/internal/models"
)

// SimilarCompanyName is the tool name the agent instructions refer to.
const SimilarCompanyName = "getSimilarCompany"

// SimilarCompanyInput defines the arguments of the getSimilarCompany tool.
type SimilarCompanyInput struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Stage    string `json:"stage"`
	Revenue  string `json:"revenue"`
}

// SimilarCompany exposes similarity lookup as a function tool.
type SimilarCompany struct {
	deps   *Dependencies
	logger *slog.Logger
}

// NewSimilarCompany creates the getSimilarCompany tool.
func NewSimilarCompany(deps *Dependencies) *SimilarCompany {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SimilarCompany{deps: deps, logger: logger}
}

func (t *SimilarCompany) Name() string { return SimilarCompanyName }

func (t *SimilarCompany) Description() string {
	return "Find the top 5 companies most similar to a startup profile using vector search over the company catalog. " +
		"Returns status (success, no_results or error), a message and the matching companies with their similarity scores."
}

func (t *SimilarCompany) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "name of the company",
			},
			"industry": map[string]any{
				"type":        "string",
				"description": "the industry which the start up company belongs to",
			},
			"stage": map[string]any{
				"type":        "string",
				"description": "The funding stage of the company",
			},
			"revenue": map[string]any{
				"type":        "string",
				"description": "The annual revenue of the company. Should be provided as a range",
			},
		},
		"required": []string{"name", "industry", "stage", "revenue"},
	}
}

// Call runs the lookup. Empty fields are passed through unchanged; malformed
// arguments yield an error result instead of an error.
func (t *SimilarCompany) Call(ctx context.Context, args string) (string, error) {
	var input SimilarCompanyInput
	if strings.TrimSpace(args) != "" {
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			t.logger.Warn("invalid tool arguments", "tool", SimilarCompanyName, "error", err)
			return ErrorResult("Invalid arguments: "+err.Error(),
				"Provide name, industry, stage and revenue as strings"), nil
		}
	}

	result := t.deps.Lookup.Lookup(ctx, models.CompanyProfile{
		Name:         input.Name,
		Industry:     input.Industry,
		Stage:        input.Stage,
		RevenueRange: input.Revenue,
	})

	t.logger.Info("similar company lookup completed",
		"name", truncate(input.Name, 30), "status", result.Status, "results", len(result.Companies))

	return TextResult(result), nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
