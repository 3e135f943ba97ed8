// internal/workers/advisor/analyze-sustainability/models.go
package analyzesustainability

import (
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/sustainability"
)

// Input may carry the products to analyse. Without them the configured
// catalog is read.
type Input struct {
	Products []models.Product `json:"products,omitempty"`
	Limit    int              `json:"limit,omitempty"`
}

type Output struct {
	SustainableProducts []sustainability.Scored `json:"sustainableProducts"`
	TotalAnalyzed       int                     `json:"totalAnalyzed"`
	TotalSustainable    int                     `json:"totalSustainable"`
	Stats               sustainability.Stats    `json:"stats"`
}
