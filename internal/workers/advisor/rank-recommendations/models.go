// internal/workers/advisor/rank-recommendations/models.go
package rankrecommendations

import (
	"sustainable-advisor/internal/crossservice"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/sustainability"
)

type Input struct {
	SustainableProducts []sustainability.Scored `json:"sustainableProducts"`
	UserPreferences     *models.Preferences     `json:"userPreferences,omitempty"`
	Limit               int                     `json:"limit,omitempty"`
}

// Output carries the ranked products as flat records, plus how the ranking
// ended.
type Output struct {
	RankedProducts []crossservice.RankedProduct `json:"rankedProducts"`
	RankingState   crossservice.State           `json:"rankingState"`
	Attempts       int                          `json:"attempts"`
	RankedBy       string                       `json:"rankedBy"`
	LastError      string                       `json:"lastError,omitempty"`
}
