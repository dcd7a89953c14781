// Package models defines data structures shared by the DataCompass services.
package models

import "fmt"

// Match is one nearest-neighbor hit returned by a vector index.
type Match struct {
	CompanyID string  `json:"company_id"`
	Content   string  `json:"content"`
	Distance  float64 `json:"distance"`
}

// CompanyRecord holds the catalog metadata for a single company.
// Field names follow the catalog table columns.
type CompanyRecord struct {
	CompanyID       string  `json:"company_id" yaml:"company_id"`
	Name            string  `json:"name" yaml:"name"`
	CategoryList    string  `json:"category_list" yaml:"category_list"`
	Market          string  `json:"market" yaml:"market"`
	FundingTotalUSD string  `json:"funding_total_usd" yaml:"funding_total_usd"`
	Status          string  `json:"status" yaml:"status"`
	FundingRounds   int64   `json:"funding_rounds" yaml:"funding_rounds"`
	FoundedYear     int64   `json:"founded_year" yaml:"founded_year"`
	RoundA          float64 `json:"round_A" yaml:"round_A"`
	RoundB          float64 `json:"round_B" yaml:"round_B"`
	RoundC          float64 `json:"round_C" yaml:"round_C"`
	RoundD          float64 `json:"round_D" yaml:"round_D"`
}

// ComparableCompany is a catalog record enriched with its similarity to the
// queried profile. SimilarityScore is always 1 - Distance; it is not clamped,
// so opposite vectors (distance > 1) yield a negative score.
type ComparableCompany struct {
	CompanyRecord
	Content         string  `json:"content"`
	Distance        float64 `json:"distance"`
	SimilarityScore float64 `json:"similarity_score"`
}

// NewComparableCompany joins a vector match with its catalog record.
func NewComparableCompany(m Match, rec CompanyRecord) ComparableCompany {
	rec.CompanyID = m.CompanyID
	return ComparableCompany{
		CompanyRecord:   rec,
		Content:         m.Content,
		Distance:        m.Distance,
		SimilarityScore: 1 - m.Distance,
	}
}

// LookupStatus tags which case of a LookupResult holds.
type LookupStatus string

const (
	LookupSuccess   LookupStatus = "success"
	LookupNoResults LookupStatus = "no_results"
	LookupError     LookupStatus = "error"
)

// LookupResult is the outcome of a similarity lookup. Exactly one status holds;
// Companies is empty unless Status is LookupSuccess.
type LookupResult struct {
	Status    LookupStatus        `json:"status"`
	Message   string              `json:"message"`
	Companies []ComparableCompany `json:"companies"`
}

// Success builds a successful result. Callers must pass at least one company.
func Success(companies []ComparableCompany) LookupResult {
	return LookupResult{
		Status:    LookupSuccess,
		Message:   fmt.Sprintf("Found %d similar companies", len(companies)),
		Companies: companies,
	}
}

// Empty builds the no-match result.
func Empty() LookupResult {
	return LookupResult{
		Status:    LookupNoResults,
		Message:   "No similar companies found",
		Companies: []ComparableCompany{},
	}
}

// Failure converts a remote error into a result value.
func Failure(err error) LookupResult {
	return LookupResult{
		Status:    LookupError,
		Message:   "Error during vector search: " + err.Error(),
		Companies: []ComparableCompany{},
	}
}
