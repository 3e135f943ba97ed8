package explain

import (
	"context"
	"strings"

	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/common/metrics"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/sustainability"
)

const (
	SourceLLM      = "llm"
	SourceTemplate = "template"
)

var (
	templateFactors = []string{"materials", "production_method", "environmental_impact"}
	factorKeywords  = []string{"material", "production", "energy", "waste", "carbon", "renewable"}
)

// Explanation is the text returned for one product.
type Explanation struct {
	ProductID   string   `json:"product_id"`
	ProductName string   `json:"product_name"`
	Score       float64  `json:"sustainability_score"`
	Grade       string   `json:"grade"`
	Text        string   `json:"explanation"`
	KeyFactors  []string `json:"key_factors"`
	Source      string   `json:"generated_by"`
}

// Service never fails: a missing or failing generator yields the template.
type Service struct {
	generator Generator
	logger    logger.Logger
}

func NewService(generator Generator, log logger.Logger) *Service {
	return &Service{
		generator: generator,
		logger:    logger.ForComponent(log, "explain"),
	}
}

func (s *Service) Explain(ctx context.Context, product models.Product, score float64) Explanation {
	out := Explanation{
		ProductID:   product.ID,
		ProductName: product.Name,
		Score:       score,
		Grade:       sustainability.Grade(score),
	}

	if s.generator != nil {
		text, err := s.generator.Explain(ctx, product, score)
		if err == nil {
			out.Text = text
			out.KeyFactors = extractFactors(text)
			out.Source = SourceLLM
			metrics.ExplanationsGenerated.WithLabelValues(SourceLLM).Inc()
			return out
		}
		s.logger.Warn("Explanation generator failed, using template", map[string]interface{}{
			"productId": product.ID,
			"error":     err.Error(),
		})
	}

	out.Text = Template(score)
	out.KeyFactors = append([]string(nil), templateFactors...)
	out.Source = SourceTemplate
	metrics.ExplanationsGenerated.WithLabelValues(SourceTemplate).Inc()
	return out
}

func extractFactors(text string) []string {
	lower := strings.ToLower(text)
	factors := make([]string, 0, len(factorKeywords))
	for _, kw := range factorKeywords {
		if strings.Contains(lower, kw) {
			factors = append(factors, kw)
		}
	}
	return factors
}
