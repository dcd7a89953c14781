package tools

import (
	"encoding/json"

	"github.com/raphaelgruber/datacompass-go/internal/models"
)

// ErrorResult renders a lookup-shaped error result with an optional recovery hint.
// If hint is non-empty, the message is "{msg}. {hint}".
// The model sees the error and can self-correct.
func ErrorResult(msg, hint string) string {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return TextResult(models.LookupResult{
		Status:    models.LookupError,
		Message:   text,
		Companies: []models.ComparableCompany{},
	})
}

// TextResult renders v as indented JSON.
func TextResult(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return `{"status":"error","message":"failed to encode result"}`
	}
	return string(b)
}
