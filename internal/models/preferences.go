package models

import "strings"

// Preferences are the per-request user preferences. All fields are optional.
type Preferences struct {
	Category      string `json:"category,omitempty" validate:"omitempty,max=64"`
	EcoPreference bool   `json:"eco_preference,omitempty"`

	// EcoTags narrows the eco bonus to these tags; empty means every tag counts.
	EcoTags []string `json:"eco_tags,omitempty" validate:"omitempty,dive,min=1"`

	Budget   float64            `json:"budget,omitempty" validate:"gte=0"`
	Strategy string             `json:"promotion_strategy,omitempty"`
	Weights  map[string]float64 `json:"weights,omitempty" validate:"omitempty,dive,gte=0"`
}

// IsZero reports whether no preference was expressed.
func (p *Preferences) IsZero() bool {
	return p == nil || (p.Category == "" && !p.EcoPreference && len(p.EcoTags) == 0 &&
		p.Budget <= 0 && p.Strategy == "" && len(p.Weights) == 0)
}

// NormalizedCategory is the lower-cased, trimmed preferred category.
func (p *Preferences) NormalizedCategory() string {
	if p == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(p.Category))
}

// MatchesEcoTag reports whether a product tag counts towards the eco bonus.
func (p *Preferences) MatchesEcoTag(tag string) bool {
	if p == nil || !p.EcoPreference {
		return false
	}
	if len(p.EcoTags) == 0 {
		return true
	}
	return containsFold(p.EcoTags, tag)
}
