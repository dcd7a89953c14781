package models

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// CompanyProfile is the structured description of the company under analysis.
// Empty fields are allowed and passed through unchanged.
type CompanyProfile struct {
	Name         string `json:"name"`
	Industry     string `json:"industry"`
	Stage        string `json:"stage"`
	RevenueRange string `json:"revenue"`
}

// profileKeys maps accepted input keys (lowercased) to profile fields.
var profileKeys = map[string]func(p *CompanyProfile, v string){
	"companyname":  func(p *CompanyProfile, v string) { p.Name = v },
	"name":         func(p *CompanyProfile, v string) { p.Name = v },
	"industry":     func(p *CompanyProfile, v string) { p.Industry = v },
	"stage":        func(p *CompanyProfile, v string) { p.Stage = v },
	"revenuerange": func(p *CompanyProfile, v string) { p.RevenueRange = v },
	"revenue":      func(p *CompanyProfile, v string) { p.RevenueRange = v },
}

// ParseProfile reads a single JSON or YAML mapping into a profile.
// It reports false when the input is not a mapping or carries none of the
// recognized keys, in which case the caller should treat it as free text.
func ParseProfile(input string) (CompanyProfile, bool) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(input), &raw); err != nil || len(raw) == 0 {
		return CompanyProfile{}, false
	}

	var p CompanyProfile
	matched := false
	for k, v := range raw {
		set, ok := profileKeys[strings.ToLower(k)]
		if !ok {
			continue
		}
		matched = true
		if v != nil {
			set(&p, fmt.Sprint(v))
		}
	}
	return p, matched
}

// Message renders the profile as the user turn sent to the analysis stage.
func (p CompanyProfile) Message() string {
	var b strings.Builder
	b.WriteString("Analyze the following startup company profile:\n")
	fmt.Fprintf(&b, "- Company name: %s\n", p.Name)
	fmt.Fprintf(&b, "- Industry: %s\n", p.Industry)
	fmt.Fprintf(&b, "- Funding stage: %s\n", p.Stage)
	fmt.Fprintf(&b, "- Revenue range: %s\n", p.RevenueRange)
	return b.String()
}
