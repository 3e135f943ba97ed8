package ranking

import "sustainable-advisor/internal/models"

// Trend is a market trend bucket. A product matching it gains
// Multiplier*10 trend points.
type Trend struct {
	Name        string  `json:"name"`
	Multiplier  float64 `json:"multiplier"`
	Description string  `json:"description"`
	matches     func(p models.Product) bool
}

// Matches reports whether p falls into the bucket.
func (t Trend) Matches(p models.Product) bool {
	return t.matches != nil && t.matches(p)
}

// DefaultTrends returns the built-in trend table.
func DefaultTrends() []Trend {
	return []Trend{
		{
			Name:        "sustainable_living",
			Multiplier:  1.6,
			Description: "Sustainable, bamboo or organic products",
			matches: func(p models.Product) bool {
				return p.HasAnyEcoTag("sustainable", "bamboo", "organic")
			},
		},
		{
			Name:        "home_improvement",
			Multiplier:  1.3,
			Description: "Home and decor products",
			matches: func(p models.Product) bool {
				return p.HasAnyCategory("home", "decor")
			},
		},
		{
			Name:        "eco_kitchen",
			Multiplier:  1.4,
			Description: "Kitchen products with any eco tag",
			matches: func(p models.Product) bool {
				return p.HasCategory("kitchen") && len(p.EcoTags) > 0
			},
		},
		{
			Name:        "artisanal_products",
			Multiplier:  1.2,
			Description: "Handmade products",
			matches: func(p models.Product) bool {
				return p.HasEcoTag("handmade")
			},
		},
	}
}

func trendScore(trends []Trend, p models.Product) float64 {
	var score float64
	for _, t := range trends {
		if t.Matches(p) {
			score += t.Multiplier * 10
		}
	}
	return score
}
