package ranking

// Pattern describes a user behaviour segment published by the recommender.
// Patterns are informational and do not feed the score.
type Pattern struct {
	Name           string   `json:"name"`
	EcoTags        []string `json:"eco_tags,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	PriceSensitive bool     `json:"price_sensitive,omitempty"`
	QualityFocused bool     `json:"quality_focused,omitempty"`
	BoostFactor    float64  `json:"boost_factor"`
	Description    string   `json:"description"`
}

// PatternSummary aggregates a pattern table.
type PatternSummary struct {
	TotalPatterns  int     `json:"total_patterns"`
	AvgBoostFactor float64 `json:"avg_boost_factor"`
}

// DefaultPatterns returns the built-in behaviour pattern table.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "eco_conscious",
			EcoTags:     []string{"sustainable", "bamboo", "organic", "recyclable", "local"},
			BoostFactor: 1.5,
			Description: "Shoppers who care about sustainability",
		},
		{
			Name:        "home_decorator",
			Categories:  []string{"home", "decor", "kitchen"},
			BoostFactor: 1.3,
			Description: "Shoppers interested in home decoration",
		},
		{
			Name:           "budget_friendly",
			PriceSensitive: true,
			BoostFactor:    1.4,
			Description:    "Shoppers sensitive to price and promotions",
		},
		{
			Name:           "premium_buyer",
			QualityFocused: true,
			BoostFactor:    1.2,
			Description:    "Shoppers who put quality first",
		},
	}
}

// SummarizePatterns counts the patterns and averages their boost factors.
func SummarizePatterns(patterns []Pattern) PatternSummary {
	summary := PatternSummary{TotalPatterns: len(patterns)}
	if len(patterns) == 0 {
		return summary
	}
	var sum float64
	for _, p := range patterns {
		sum += p.BoostFactor
	}
	summary.AvgBoostFactor = sum / float64(len(patterns))
	return summary
}
