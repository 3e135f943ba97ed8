// internal/workers/advisor/explain-recommendation/models.go
package explainrecommendation

import "sustainable-advisor/internal/models"

// Input names the product to explain. When SustainabilityScore is absent the
// product is scored first.
type Input struct {
	Product             *models.Product `json:"product"`
	SustainabilityScore *float64        `json:"sustainabilityScore,omitempty"`
}

type Output struct {
	ProductID           string   `json:"productId"`
	SustainabilityScore float64  `json:"sustainabilityScore"`
	Grade               string   `json:"grade"`
	Explanation         string   `json:"explanation"`
	KeyFactors          []string `json:"keyFactors"`
	GeneratedBy         string   `json:"generatedBy"`
}
