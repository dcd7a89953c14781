// Package tools provides the functions exposed to the analysis agents.
package tools

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/datacompass-go/internal/models"
)

// Lookuper runs a similarity lookup. Failures are reported in the result.
type Lookuper interface {
	Lookup(ctx context.Context, p models.CompanyProfile) models.LookupResult
}

// Dependencies holds shared services for tool handlers.
type Dependencies struct {
	Lookup Lookuper
	Logger *slog.Logger
}
