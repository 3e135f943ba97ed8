package sustainability

import (
	"strings"

	"sustainable-advisor/internal/common/config"
)

// EcoCategory is the weight (0-1) and human reason attached to an eco tag.
type EcoCategory struct {
	Weight float64
	Reason string
}

// Rules is the immutable scoring configuration. Build it with DefaultRules or
// RulesFromConfig; a Scorer copies it on construction.
type Rules struct {
	BaseScore               float64
	CarbonThreshold         float64
	SustainabilityThreshold float64
	KeywordBonus            float64
	EcoCategories           map[string]EcoCategory
	Keywords                []string
	CategoryBonus           map[string]float64
}

// DefaultRules returns the built-in rule table.
func DefaultRules() Rules {
	return Rules{
		BaseScore:               50,
		CarbonThreshold:         50,
		SustainabilityThreshold: 60,
		KeywordBonus:            15,
		EcoCategories: map[string]EcoCategory{
			"sustainable": {Weight: 1.0, Reason: "Certified as a sustainable product"},
			"bamboo":      {Weight: 0.9, Reason: "Renewable and biodegradable material"},
			"handmade":    {Weight: 0.9, Reason: "Artisanal production reduces the industrial footprint"},
			"local":       {Weight: 0.8, Reason: "Local production cuts transport emissions"},
			"organic":     {Weight: 0.8, Reason: "Produced without chemicals harmful to the environment"},
			"fair-trade":  {Weight: 0.8, Reason: "Fair trade and ethical practices"},
			"recycled":    {Weight: 0.8, Reason: "Made from recycled materials"},
			"recyclable":  {Weight: 0.7, Reason: "Can be recycled at the end of its life"},
			"renewable":   {Weight: 0.7, Reason: "Made with renewable materials"},
		},
		Keywords: []string{
			"bamboo", "organic", "eco", "green", "sustainable",
			"recycled", "natural", "biodegradable", "renewable",
			"handmade", "artisan", "local", "fair-trade",
		},
		CategoryBonus: map[string]float64{
			"kitchen": 0.10,
			"home":    0.10,
			"decor":   0.05,
		},
	}
}

// RulesFromConfig overlays configured values on the defaults. Zero numbers
// keep the default; maps merge key by key; a non-empty keyword list replaces
// the default list.
func RulesFromConfig(cfg config.ScoringConfig) Rules {
	r := DefaultRules()

	if cfg.BaseScore != 0 {
		r.BaseScore = cfg.BaseScore
	}
	if cfg.CarbonThreshold != 0 {
		r.CarbonThreshold = cfg.CarbonThreshold
	}
	if cfg.SustainabilityThreshold != 0 {
		r.SustainabilityThreshold = cfg.SustainabilityThreshold
	}
	if cfg.KeywordBonus != 0 {
		r.KeywordBonus = cfg.KeywordBonus
	}

	for tag, weight := range cfg.EcoCategories {
		tag = strings.ToLower(tag)
		cat, ok := r.EcoCategories[tag]
		if !ok {
			cat.Reason = "Recognised eco-friendly attribute"
		}
		cat.Weight = weight
		r.EcoCategories[tag] = cat
	}
	if len(cfg.Keywords) > 0 {
		r.Keywords = make([]string, 0, len(cfg.Keywords))
		for _, k := range cfg.Keywords {
			r.Keywords = append(r.Keywords, strings.ToLower(k))
		}
	}
	for category, bonus := range cfg.CategoryBonus {
		r.CategoryBonus[strings.ToLower(category)] = bonus
	}
	return r
}

// clone deep-copies the rule tables.
func (r Rules) clone() Rules {
	out := r
	out.EcoCategories = make(map[string]EcoCategory, len(r.EcoCategories))
	for k, v := range r.EcoCategories {
		out.EcoCategories[strings.ToLower(k)] = v
	}
	out.Keywords = make([]string, len(r.Keywords))
	for i, k := range r.Keywords {
		out.Keywords[i] = strings.ToLower(k)
	}
	out.CategoryBonus = make(map[string]float64, len(r.CategoryBonus))
	for k, v := range r.CategoryBonus {
		out.CategoryBonus[strings.ToLower(k)] = v
	}
	return out
}
