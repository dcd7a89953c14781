package tools

import "github.com/raphaelgruber/datacompass-go/internal/agent"

// All returns every tool available to the analysis agents.
func All(deps *Dependencies) []agent.Tool {
	return []agent.Tool{
		NewSimilarCompany(deps),
	}
}
