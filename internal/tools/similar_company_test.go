package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/raphaelgruber/datacompass-go/internal/agent"
	"github.com/raphaelgruber/datacompass-go/internal/models"
	"github.com/raphaelgruber/datacompass-go/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	result  models.LookupResult
	queries []models.CompanyProfile
}

func (f *fakeLookup) Lookup(_ context.Context, p models.CompanyProfile) models.LookupResult {
	f.queries = append(f.queries, p)
	return f.result
}

func newTool(result models.LookupResult) (agent.Tool, *fakeLookup) {
	lookup := &fakeLookup{result: result}
	return tools.NewSimilarCompany(&tools.Dependencies{Lookup: lookup}), lookup
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestSimilarCompanyDefinition(t *testing.T) {
	tool, _ := newTool(models.Empty())

	assert.Equal(t, "getSimilarCompany", tool.Name())
	assert.NotEmpty(t, tool.Description())

	params := tool.Parameters()
	assert.Equal(t, "object", params["type"])
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"name", "industry", "stage", "revenue"} {
		assert.Contains(t, props, key)
	}
	revenue := props["revenue"].(map[string]any)
	assert.Equal(t, "The annual revenue of the company. Should be provided as a range", revenue["description"])

	// The schema must survive JSON encoding for every provider.
	_, err := json.Marshal(params)
	require.NoError(t, err)
}

func TestSimilarCompanyCallSuccess(t *testing.T) {
	company := models.NewComparableCompany(
		models.Match{CompanyID: "1", Content: "Acme", Distance: 0.25},
		models.CompanyRecord{Name: "Acme", Market: "Software", RoundA: 1e6},
	)
	tool, lookup := newTool(models.Success([]models.ComparableCompany{company}))

	out, err := tool.Call(context.Background(),
		`{"name":"TechCorp","industry":"SaaS","stage":"Series A","revenue":"$1M-$5M"}`)
	require.NoError(t, err)

	require.Len(t, lookup.queries, 1)
	assert.Equal(t, models.CompanyProfile{
		Name: "TechCorp", Industry: "SaaS", Stage: "Series A", RevenueRange: "$1M-$5M",
	}, lookup.queries[0])

	result := decode(t, out)
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "Found 1 similar companies", result["message"])

	companies := result["companies"].([]any)
	require.Len(t, companies, 1)
	first := companies[0].(map[string]any)
	assert.Equal(t, "1", first["company_id"])
	assert.Equal(t, "Acme", first["name"])
	assert.InDelta(t, 0.75, first["similarity_score"], 1e-9)
	assert.InDelta(t, 0.25, first["distance"], 1e-9)
	assert.InDelta(t, 1e6, first["round_A"], 1e-9)
}

func TestSimilarCompanyCallSurfacesEmptyAndFailure(t *testing.T) {
	tests := []struct {
		name       string
		result     models.LookupResult
		wantStatus string
		wantMsg    string
	}{
		{"empty", models.Empty(), "no_results", "No similar companies found"},
		{"failure", models.Failure(errors.New("quota")), "error", "Error during vector search: quota"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool, _ := newTool(tt.result)
			out, err := tool.Call(context.Background(), `{"name":"X","industry":"","stage":"","revenue":""}`)
			require.NoError(t, err)

			result := decode(t, out)
			assert.Equal(t, tt.wantStatus, result["status"])
			assert.Equal(t, tt.wantMsg, result["message"])
			assert.Equal(t, []any{}, result["companies"])
		})
	}
}

func TestSimilarCompanyInvalidArguments(t *testing.T) {
	tool, lookup := newTool(models.Empty())

	out, err := tool.Call(context.Background(), `{"name": 42}`)
	require.NoError(t, err)
	assert.Empty(t, lookup.queries, "no lookup for malformed arguments")

	result := decode(t, out)
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["message"], "Invalid arguments")
}

func TestSimilarCompanyEmptyArgumentsPassThrough(t *testing.T) {
	tool, lookup := newTool(models.Empty())

	_, err := tool.Call(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, lookup.queries, 1)
	assert.Equal(t, models.CompanyProfile{}, lookup.queries[0])
}

func TestAllTools(t *testing.T) {
	all := tools.All(&tools.Dependencies{Lookup: &fakeLookup{}})
	require.Len(t, all, 1)
	assert.Equal(t, tools.SimilarCompanyName, all[0].Name())
}
